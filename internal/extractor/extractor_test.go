package extractor

import "testing"

func TestVideoEntryCanonicalURL(t *testing.T) {
	tests := []struct {
		name  string
		entry VideoEntry
		want  string
	}{
		{
			name:  "prefers webpage url",
			entry: VideoEntry{ID: "abc", URL: "https://other.example/abc", WebpageURL: "https://video.example/watch?v=abc"},
			want:  "https://video.example/watch?v=abc",
		},
		{
			name:  "falls back to url",
			entry: VideoEntry{ID: "abc", URL: "https://other.example/abc"},
			want:  "https://other.example/abc",
		},
		{
			name:  "synthesizes a watch url from a bare id",
			entry: VideoEntry{ID: "abc123"},
			want:  "https://video.example/watch?v=abc123",
		},
		{
			name:  "empty when nothing identifies the video",
			entry: VideoEntry{},
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.CanonicalURL(); got != tt.want {
				t.Fatalf("CanonicalURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

package mirror

import "testing"

func TestIsS3OutputDir(t *testing.T) {
	cases := map[string]bool{
		"s3://bucket/prefix": true,
		"s3://bucket":        true,
		"./subtitles":        false,
		"/var/data/subs":     false,
		"":                   false,
	}
	for dir, want := range cases {
		if got := IsS3OutputDir(dir); got != want {
			t.Errorf("IsS3OutputDir(%q) = %v, want %v", dir, got, want)
		}
	}
}

func TestParseS3URL(t *testing.T) {
	bucket, prefix, err := parseS3URL("s3://my-bucket/transcripts/harvester")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if bucket != "my-bucket" {
		t.Errorf("bucket = %q, want my-bucket", bucket)
	}
	if prefix != "transcripts/harvester" {
		t.Errorf("prefix = %q, want transcripts/harvester", prefix)
	}
}

func TestParseS3URLNoPrefix(t *testing.T) {
	bucket, prefix, err := parseS3URL("s3://my-bucket")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if bucket != "my-bucket" || prefix != "" {
		t.Errorf("got bucket=%q prefix=%q", bucket, prefix)
	}
}

func TestParseS3URLRejectsNonS3(t *testing.T) {
	if _, _, err := parseS3URL("./subtitles"); err == nil {
		t.Fatalf("expected an error for a non-s3 url")
	}
}

func TestMirrorKeyLayout(t *testing.T) {
	m := &Mirror{bucket: "bucket", prefix: "harvester"}
	got := m.key(42, 7, "en")
	want := "harvester/42/7/en.txt"
	if got != want {
		t.Errorf("key = %q, want %q", got, want)
	}
}

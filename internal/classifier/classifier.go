// Package classifier maps extractor adapter failures to a Transient/Permanent
// classification, per spec section 4.4.
package classifier

import "strings"

// Class is the outcome of classifying an error message.
type Class string

const (
	// Transient indicates the Queue Manager should re-queue the video,
	// subject to the retry budget.
	Transient Class = "transient"
	// Permanent indicates the video should be terminally failed
	// regardless of remaining retries.
	Permanent Class = "permanent"
)

// permanent is checked before transient so that an overly generic transient
// marker (e.g. "temporary") cannot claim a message that is really a
// permanent domain failure.
var permanent = []string{
	"private video",
	"unavailable",
	"deleted",
	"age restricted",
	"no subtitles available",
	"no native subtitles",
	"subtitles not available",
	"invalid url",
	"unknown video id",
	"not found",
	"forbidden",
	"http 404",
	"http 403",
}

var transient = []string{
	"timeout",
	"connection",
	"network",
	"temporary",
	"http 500",
	"http 502",
	"http 503",
	"rate limit",
	"too many requests",
	"quota exceeded",
}

// Classify inspects the supplied error text and returns Permanent or
// Transient. Unmatched text defaults to Transient, since retrying an
// unrecognized failure is the safer default.
func Classify(errorText string) Class {
	lower := strings.ToLower(errorText)

	for _, marker := range permanent {
		if strings.Contains(lower, marker) {
			return Permanent
		}
	}
	for _, marker := range transient {
		if strings.Contains(lower, marker) {
			return Transient
		}
	}
	return Transient
}

// ClassifyErr is a convenience wrapper over Classify for Go errors.
func ClassifyErr(err error) Class {
	if err == nil {
		return Transient
	}
	return Classify(err.Error())
}

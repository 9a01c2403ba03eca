package providers

import (
	"errors"
	"testing"
)

func TestClassifyError(t *testing.T) {
	cases := map[string]ErrorType{
		"insufficient_quota: you have run out": ErrorQuota,
		"429 Too Many Requests":                ErrorRate,
		"request timeout while dialing":        ErrorTransient,
		"context length exceeded":              ErrorContext,
		"model not found":                      ErrorPermanent,
	}
	for msg, want := range cases {
		if got := ClassifyError(errors.New(msg)); got != want {
			t.Fatalf("ClassifyError(%q) = %q, want %q", msg, got, want)
		}
	}
	if got := ClassifyError(nil); got != "" {
		t.Fatalf("ClassifyError(nil) = %q", got)
	}
}

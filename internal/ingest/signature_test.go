package ingest

import (
	"errors"
	"testing"
)

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"zen":"Keep it logically awesome."}`)
	if err := VerifySignature("", "", body); err != nil {
		t.Errorf("no secret should accept: %v", err)
	}
	if err := VerifySignature("s3cret", Sign("s3cret", body), body); err != nil {
		t.Errorf("valid signature rejected: %v", err)
	}
	for _, header := range []string{"", "sha1=abc", "sha256=zz", Sign("other", body)} {
		if err := VerifySignature("s3cret", header, body); !errors.Is(err, ErrBadSignature) {
			t.Errorf("header %q: expected ErrBadSignature, got %v", header, err)
		}
	}
}

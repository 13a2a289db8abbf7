package token

import (
	"errors"
	"testing"
	"time"
)

func TestIssueVerifyRoundtrip(t *testing.T) {
	svc := NewService("test-secret", time.Hour)

	for _, sub := range []int64{1, 42, 918273} {
		raw, err := svc.Issue(sub)
		if err != nil {
			t.Fatalf("Issue(%d): %v", sub, err)
		}

		claims, err := svc.Verify(raw)
		if err != nil {
			t.Fatalf("Verify: %v", err)
		}
		if claims.Sub != sub {
			t.Errorf("subject = %d, want %d", claims.Sub, sub)
		}
		if claims.IssuedAtTime().IsZero() {
			t.Error("issued-at missing from verified claims")
		}
	}
}

func TestVerifyExpired(t *testing.T) {
	// Negative lifetime puts the expiry in the past even though the
	// signature is correct.
	svc := NewService("test-secret", -time.Minute)

	raw, err := svc.Issue(7)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	_, err = svc.Verify(raw)
	if !errors.Is(err, ErrExpired) {
		t.Errorf("Verify error = %v, want ErrExpired", err)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	issuer := NewService("secret-a", time.Hour)
	verifier := NewService("secret-b", time.Hour)

	raw, err := issuer.Issue(7)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	_, err = verifier.Verify(raw)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("Verify error = %v, want ErrInvalidSignature", err)
	}
}

func TestVerifyMalformed(t *testing.T) {
	svc := NewService("test-secret", time.Hour)

	for _, raw := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := svc.Verify(raw); !errors.Is(err, ErrMalformed) {
			t.Errorf("Verify(%q) error = %v, want ErrMalformed", raw, err)
		}
	}
}

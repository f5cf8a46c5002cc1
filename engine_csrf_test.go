package authcore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestIssueAndConsumeCSRF(t *testing.T) {
	te := newTestEngine(t, DefaultConfig())
	ctx := context.Background()

	value, err := te.engine.IssueCSRF(ctx, "sess-1")
	if err != nil {
		t.Fatalf("IssueCSRF: %v", err)
	}
	if value == "" {
		t.Fatal("empty token value")
	}

	if err := te.engine.ValidateCSRF(ctx, "sess-1", value, true); err != nil {
		t.Fatalf("ValidateCSRF: %v", err)
	}

	// Single use: the same token must not validate twice.
	if err := te.engine.ValidateCSRF(ctx, "sess-1", value, true); !errors.Is(err, ErrCSRFInvalid) {
		t.Fatalf("err = %v, want ErrCSRFInvalid on replay", err)
	}
}

func TestValidateCSRFPeekDoesNotConsume(t *testing.T) {
	te := newTestEngine(t, DefaultConfig())
	ctx := context.Background()

	value, err := te.engine.IssueCSRF(ctx, "sess-1")
	if err != nil {
		t.Fatalf("IssueCSRF: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := te.engine.ValidateCSRF(ctx, "sess-1", value, false); err != nil {
			t.Fatalf("peek %d: %v", i+1, err)
		}
	}

	if err := te.engine.ValidateCSRF(ctx, "sess-1", value, true); err != nil {
		t.Fatalf("consume after peeks: %v", err)
	}
}

func TestValidateCSRFWrongToken(t *testing.T) {
	te := newTestEngine(t, DefaultConfig())
	ctx := context.Background()

	value, err := te.engine.IssueCSRF(ctx, "sess-1")
	if err != nil {
		t.Fatalf("IssueCSRF: %v", err)
	}

	if err := te.engine.ValidateCSRF(ctx, "sess-1", "forged-value-aaaaaaaaaaaaaaaa", true); !errors.Is(err, ErrCSRFInvalid) {
		t.Fatalf("err = %v, want ErrCSRFInvalid", err)
	}

	// A mismatch must not burn the real token.
	if err := te.engine.ValidateCSRF(ctx, "sess-1", value, true); err != nil {
		t.Fatalf("real token must survive a forged attempt: %v", err)
	}
}

func TestValidateCSRFMissingInputs(t *testing.T) {
	te := newTestEngine(t, DefaultConfig())
	ctx := context.Background()

	if err := te.engine.ValidateCSRF(ctx, "sess-1", "", true); !errors.Is(err, ErrCSRFRequired) {
		t.Fatalf("err = %v, want ErrCSRFRequired", err)
	}
	if err := te.engine.ValidateCSRF(ctx, "", "some-value", true); !errors.Is(err, ErrCSRFInvalid) {
		t.Fatalf("err = %v, want ErrCSRFInvalid", err)
	}
	if err := te.engine.ValidateCSRF(ctx, "unknown-session", "some-value", true); !errors.Is(err, ErrCSRFInvalid) {
		t.Fatalf("err = %v, want ErrCSRFInvalid", err)
	}
}

func TestIssueCSRFReplacesOutstandingToken(t *testing.T) {
	te := newTestEngine(t, DefaultConfig())
	ctx := context.Background()

	first, err := te.engine.IssueCSRF(ctx, "sess-1")
	if err != nil {
		t.Fatalf("IssueCSRF: %v", err)
	}
	second, err := te.engine.IssueCSRF(ctx, "sess-1")
	if err != nil {
		t.Fatalf("IssueCSRF: %v", err)
	}

	if err := te.engine.ValidateCSRF(ctx, "sess-1", first, true); !errors.Is(err, ErrCSRFInvalid) {
		t.Fatalf("superseded token err = %v, want ErrCSRFInvalid", err)
	}
	if err := te.engine.ValidateCSRF(ctx, "sess-1", second, true); err != nil {
		t.Fatalf("current token: %v", err)
	}
}

func TestValidateCSRFExpired(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CSRF.TokenTTL = time.Minute
	te := newTestEngine(t, cfg)
	ctx := context.Background()

	value, err := te.engine.IssueCSRF(ctx, "sess-1")
	if err != nil {
		t.Fatalf("IssueCSRF: %v", err)
	}

	te.redis.FastForward(2 * time.Minute)

	if err := te.engine.ValidateCSRF(ctx, "sess-1", value, true); !errors.Is(err, ErrCSRFInvalid) {
		t.Fatalf("err = %v, want ErrCSRFInvalid after expiry", err)
	}
}

func TestValidateDoubleSubmit(t *testing.T) {
	te := newTestEngine(t, DefaultConfig())

	value, err := te.engine.IssueCSRF(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("IssueCSRF: %v", err)
	}

	if err := te.engine.ValidateDoubleSubmit(value, value); err != nil {
		t.Fatalf("matching pair: %v", err)
	}
	if err := te.engine.ValidateDoubleSubmit(value, ""); !errors.Is(err, ErrCSRFRequired) {
		t.Fatalf("missing header err = %v, want ErrCSRFRequired", err)
	}
	if err := te.engine.ValidateDoubleSubmit("", value); !errors.Is(err, ErrCSRFRequired) {
		t.Fatalf("missing cookie err = %v, want ErrCSRFRequired", err)
	}
	if err := te.engine.ValidateDoubleSubmit(value, value+"x"); !errors.Is(err, ErrCSRFInvalid) {
		t.Fatalf("mismatched pair err = %v, want ErrCSRFInvalid", err)
	}
	if err := te.engine.ValidateDoubleSubmit("short", "short"); !errors.Is(err, ErrCSRFInvalid) {
		t.Fatalf("short value err = %v, want ErrCSRFInvalid", err)
	}
}

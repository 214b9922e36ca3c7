package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"slackhooks/core"
	"slackhooks/models"
)

const (
	HeaderTimestamp = "X-Slack-Request-Timestamp"
	HeaderSignature = "X-Slack-Signature"

	DefaultTolerance = 5 * time.Minute

	version = "v0"
)

type Verifier struct {
	signingSecret []byte
	tolerance     time.Duration
	now           func() time.Time
}

type Option func(*Verifier)

// WithTolerance sets how far the request timestamp may drift from now
func WithTolerance(d time.Duration) Option {
	return func(v *Verifier) {
		if d > 0 {
			v.tolerance = d
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		v.now = now
	}
}

func NewVerifier(signingSecret string, opts ...Option) *Verifier {
	v := &Verifier{
		signingSecret: []byte(signingSecret),
		tolerance:     DefaultTolerance,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Sign computes the v0 signature Slack would send for body at timestamp
func (v *Verifier) Sign(body []byte, timestamp string) string {
	mac := hmac.New(sha256.New, v.signingSecret)
	mac.Write([]byte(version + ":" + timestamp + ":"))
	mac.Write(body)
	return version + "=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks body against the timestamp and signature headers.
// Every failure is reported as core.ErrInvalidSignature.
func (v *Verifier) Verify(body []byte, timestamp, signature string) error {
	if timestamp == "" || signature == "" {
		return fmt.Errorf("missing signature headers: %w", core.ErrInvalidSignature)
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("non-numeric timestamp: %w", core.ErrInvalidSignature)
	}

	skew := v.now().Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > v.tolerance {
		return fmt.Errorf("timestamp outside tolerance: %w", core.ErrInvalidSignature)
	}

	expected := v.Sign(body, timestamp)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("signature mismatch: %w", core.ErrInvalidSignature)
	}
	return nil
}

// VerifyRequest verifies an inbound request using its raw body
func (v *Verifier) VerifyRequest(req *models.InboundRequest) error {
	return v.Verify([]byte(req.RawBody), req.Headers.Get(HeaderTimestamp), req.Headers.Get(HeaderSignature))
}

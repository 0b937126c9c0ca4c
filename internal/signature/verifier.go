package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// HeaderName carries the hex HMAC-SHA256 of the raw request body.
const HeaderName = "X-Webhook-Signature"

// ErrInauthentic is logged when a body fails verification.
var ErrInauthentic = errors.New("inauthentic signature")

// Verdict is the result of verifying one body.
type Verdict int

const (
	Inauthentic Verdict = iota
	Authentic
)

func (v Verdict) String() string {
	if v == Authentic {
		return "authentic"
	}
	return "inauthentic"
}

// Verifier checks webhook bodies against a pre-shared secret.
type Verifier struct {
	secret []byte
}

// NewVerifier returns a Verifier. An empty secret puts it in reduced-security mode
// where every body is accepted.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// ReducedSecurity reports whether verification is skipped for lack of a secret.
func (v *Verifier) ReducedSecurity() bool {
	return len(v.secret) == 0
}

// Verify compares the provided signature with the HMAC of body in constant time.
// A missing, non-hex or wrong-length signature is Inauthentic.
func (v *Verifier) Verify(body []byte, provided string) Verdict {
	if v.ReducedSecurity() {
		return Authentic
	}
	provided = strings.TrimSpace(provided)
	provided = strings.TrimPrefix(strings.ToLower(provided), "sha256=")
	got, err := hex.DecodeString(provided)
	if err != nil || len(got) != sha256.Size {
		return Inauthentic
	}
	if !hmac.Equal(got, Sign(v.secret, body)) {
		return Inauthentic
	}
	return Authentic
}

// Sign returns the raw HMAC-SHA256 of body under secret.
func Sign(secret, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write(body)
	return mac.Sum(nil)
}

// SignHex returns the header value a trusted sender would attach to body.
func SignHex(secret string, body []byte) string {
	return hex.EncodeToString(Sign([]byte(secret), body))
}

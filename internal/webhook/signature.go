package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Signature verification errors. All of them mean the request is rejected
// before any state is touched.
var (
	ErrNoSignature        = errors.New("webhook: missing signature header")
	ErrInvalidSignature   = errors.New("webhook: signature verification failed")
	ErrTimestampTooOld    = errors.New("webhook: signature timestamp outside tolerance")
	ErrMalformedSignature = errors.New("webhook: malformed signature header")
)

// Verifier checks provider signatures of the form "t=<unix>,v1=<hexdigest>"
// where the digest is HMAC-SHA256 over "<unix>.<raw body>" with the shared
// secret. The timestamp bound limits replay of captured deliveries.
type Verifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	return &Verifier{secret: []byte(secret), tolerance: tolerance, now: time.Now}
}

// Verify checks header against the raw request body. Comparison is
// constant-time; any v1 entry matching the expected digest passes.
func (v *Verifier) Verify(body []byte, header string) error {
	if header == "" {
		return ErrNoSignature
	}

	var timestamp int64 = -1
	var candidates []string
	for _, part := range strings.Split(header, ",") {
		k, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return ErrMalformedSignature
		}
		switch k {
		case "t":
			ts, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return ErrMalformedSignature
			}
			timestamp = ts
		case "v1":
			candidates = append(candidates, val)
		}
	}
	if timestamp < 0 || len(candidates) == 0 {
		return ErrMalformedSignature
	}

	age := v.now().Sub(time.Unix(timestamp, 0))
	if age > v.tolerance || age < -v.tolerance {
		return ErrTimestampTooOld
	}

	mac := hmac.New(sha256.New, v.secret)
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, candidate := range candidates {
		if hmac.Equal([]byte(candidate), []byte(expected)) {
			return nil
		}
	}
	return ErrInvalidSignature
}

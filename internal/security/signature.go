package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/resellerdesk/resellerdesk/internal/config"
	"github.com/resellerdesk/resellerdesk/internal/types"
)

// DefaultSignatureTolerance is the anti-replay window for signed webhooks
const DefaultSignatureTolerance = 300 * time.Second

// SignatureVerifier checks that a payment webhook was signed by the provider
// with the shared secret and is still inside the anti-replay window.
type SignatureVerifier interface {
	Verify(rawPaymentID string, headers http.Header) bool
	VerifyAt(rawPaymentID string, headers http.Header, now time.Time) bool
}

type hmacSignatureVerifier struct {
	secret    []byte
	tolerance time.Duration
}

func NewSignatureVerifier(cfg *config.Configuration) SignatureVerifier {
	return NewHMACSignatureVerifier(cfg.Payments.WebhookSecret, cfg.Payments.SignatureTolerance)
}

func NewHMACSignatureVerifier(secret string, tolerance time.Duration) SignatureVerifier {
	if tolerance <= 0 {
		tolerance = DefaultSignatureTolerance
	}
	return &hmacSignatureVerifier{
		secret:    []byte(secret),
		tolerance: tolerance,
	}
}

func (v *hmacSignatureVerifier) Verify(rawPaymentID string, headers http.Header) bool {
	return v.VerifyAt(rawPaymentID, headers, time.Now())
}

func (v *hmacSignatureVerifier) VerifyAt(rawPaymentID string, headers http.Header, now time.Time) bool {
	// no secret, no bypass
	if len(v.secret) == 0 || rawPaymentID == "" {
		return false
	}

	requestID := headers.Get(types.HeaderPaymentRequestID)
	ts, signature, ok := parseSignatureHeader(headers.Get(types.HeaderPaymentSignature))
	if !ok || requestID == "" {
		return false
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	age := now.Sub(time.Unix(unix, 0))
	if age < 0 {
		age = -age
	}
	if age > v.tolerance {
		return false
	}

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	return hmac.Equal(provided, Sign(v.secret, rawPaymentID, requestID, ts))
}

// Sign computes the HMAC-SHA256 of the canonical webhook manifest
func Sign(secret []byte, paymentID, requestID, ts string) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(BuildManifest(paymentID, requestID, ts)))
	return mac.Sum(nil)
}

func BuildManifest(paymentID, requestID, ts string) string {
	return fmt.Sprintf("id:%s;request-id:%s;ts:%s;", paymentID, requestID, ts)
}

// parseSignatureHeader reads "ts=<unix>,v1=<hex>" in any field order
func parseSignatureHeader(header string) (ts, signature string, ok bool) {
	if header == "" {
		return "", "", false
	}
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch strings.TrimSpace(key) {
		case "ts":
			ts = strings.TrimSpace(value)
		case "v1":
			signature = strings.TrimSpace(value)
		}
	}
	return ts, signature, ts != "" && signature != ""
}

package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
)

const (
	// SignatureHeader carries the "<algorithm>=<hex digest>" value.
	SignatureHeader = "X-Hub-Signature-256"

	// Algorithm is the only digest algorithm accepted.
	Algorithm = "sha256"
)

// Error is a verification failure with the HTTP status it maps to.
type Error struct {
	Status int
	Code   string // metrics/log label
	msg    string
}

func (e *Error) Error() string {
	return e.msg
}

var (
	ErrSecretNotConfigured  = &Error{Status: http.StatusInternalServerError, Code: "secret_not_configured", msg: "webhook secret not configured"}
	ErrMissingSignature     = &Error{Status: http.StatusForbidden, Code: "missing_signature", msg: "signature header missing"}
	ErrMalformedSignature   = &Error{Status: http.StatusForbidden, Code: "malformed_signature", msg: "signature header malformed"}
	ErrUnsupportedAlgorithm = &Error{Status: http.StatusNotImplemented, Code: "unsupported_algorithm", msg: "signature algorithm not supported"}
	ErrSignatureMismatch    = &Error{Status: http.StatusForbidden, Code: "signature_mismatch", msg: "signature mismatch"}
)

// Verify authenticates body against the signature header value using secret.
// It returns nil when the signature is valid, otherwise one of the Err* values.
func Verify(secret string, body []byte, header string) error {
	if secret == "" {
		return ErrSecretNotConfigured
	}

	received, err := ParseHeader(header)
	if err != nil {
		return err
	}

	expected := Digest(secret, body)
	if !hmac.Equal([]byte(expected), []byte(received)) {
		return ErrSignatureMismatch
	}

	return nil
}

// ParseHeader checks the shape of a signature header value and returns the
// digest part. It does not need the body, so callers can reject a bad header
// before reading the request.
func ParseHeader(header string) (string, error) {
	if header == "" {
		return "", ErrMissingSignature
	}

	// Exactly one separator between algorithm and digest
	if strings.Count(header, "=") != 1 {
		return "", ErrMalformedSignature
	}
	algo, digest, _ := strings.Cut(header, "=")
	if algo != Algorithm {
		return "", ErrUnsupportedAlgorithm
	}

	return digest, nil
}

// Digest returns the lowercase hex HMAC-SHA256 of body keyed with secret.
func Digest(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Sign returns a complete signature header value for body.
func Sign(secret string, body []byte) string {
	return Algorithm + "=" + Digest(secret, body)
}

// StatusCode maps a Verify error to an HTTP status. Unknown errors are
// treated as server errors and nil as 200.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var verr *Error
	if errors.As(err, &verr) {
		return verr.Status
	}
	return http.StatusInternalServerError
}

// Outcome returns a short label for err, suitable for metrics.
func Outcome(err error) string {
	if err == nil {
		return "accepted"
	}
	var verr *Error
	if errors.As(err, &verr) {
		return verr.Code
	}
	return "error"
}

package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

const (
	signatureHeader = "X-Hub-Signature-256"
	signaturePrefix = "sha256="
)

var (
	// ErrMissingSignature means the request carried no X-Hub-Signature-256 header.
	ErrMissingSignature = errors.New("missing X-Hub-Signature-256 header")
	// ErrBadSignatureFormat means the header is not of the form sha256=<hex>.
	ErrBadSignatureFormat = errors.New("invalid signature format, expected 'sha256=<hash>'")
	// ErrSignatureMismatch means the HMAC did not match the payload.
	ErrSignatureMismatch = errors.New("signature verification failed")
)

// Sign returns the X-Hub-Signature-256 value for payload.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks header against the HMAC-SHA256 of payload using a
// constant-time comparison.
func Verify(payload []byte, header, secret string) error {
	if header == "" {
		return ErrMissingSignature
	}
	if !strings.HasPrefix(header, signaturePrefix) {
		return ErrBadSignatureFormat
	}
	if !hmac.Equal([]byte(header), []byte(Sign(payload, secret))) {
		return ErrSignatureMismatch
	}
	return nil
}

package ingress

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"
)

// SignatureVerifier checks the HMAC signature a platform bot/relay attaches
// to each webhook delivery (§4.14 "authenticated ingress"). Rather than
// HMAC-ing directly with the shared bot secret, it derives a platform-scoped
// signing key via HKDF, so a leaked signature for one platform's deliveries
// can't be replayed as a valid signature for another's.
type SignatureVerifier struct {
	secret []byte
}

// NewSignatureVerifier builds a verifier over the shared webhook bot secret.
// An empty secret disables verification (Verify always succeeds), matching
// unauthenticated local/dev deployments that have none configured.
func NewSignatureVerifier(secret string) *SignatureVerifier {
	return &SignatureVerifier{secret: []byte(secret)}
}

func (v *SignatureVerifier) derive(platform Platform) ([]byte, error) {
	key := make([]byte, 32)
	reader := hkdf.New(sha3.New256, v.secret, nil, []byte("webhook-signature:"+string(platform)))
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Verify reports whether signatureHex (lowercase hex HMAC-SHA256 of body,
// keyed by the platform-derived key) is valid for body. The comparison is
// constant-time.
func (v *SignatureVerifier) Verify(platform Platform, body []byte, signatureHex string) (bool, error) {
	if len(v.secret) == 0 {
		return true, nil
	}
	key, err := v.derive(platform)
	if err != nil {
		return false, err
	}
	got, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false, errors.New("malformed signature encoding")
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), got), nil
}

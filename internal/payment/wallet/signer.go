package wallet

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const signaturePrefix = "sha256="

// Signer computes and checks HMAC-SHA256 signatures shared by every
// regional sub-provider.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) Signer {
	return Signer{secret: []byte(secret)}
}

// Sign returns the lowercase hex digest of body.
func (s Signer) Sign(body []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)

	return hex.EncodeToString(mac.Sum(nil))
}

// Verify accepts a bare hex digest or one prefixed with "sha256=".
func (s Signer) Verify(body []byte, signature string) bool {
	signature = strings.TrimPrefix(strings.TrimSpace(signature), signaturePrefix)
	if signature == "" {
		return false
	}

	got, err := hex.DecodeString(strings.ToLower(signature))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)

	return hmac.Equal(got, mac.Sum(nil))
}

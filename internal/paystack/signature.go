package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
)

// SignatureHeader is the request header Paystack puts the body HMAC in.
const SignatureHeader = "X-Paystack-Signature"

// Signature computes the hex HMAC-SHA512 of body under secret, the scheme
// Paystack uses to sign webhook deliveries.
func Signature(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// ValidSignature checks a webhook signature header against the raw body in
// constant time. An empty header never validates.
func ValidSignature(secret string, body []byte, header string) bool {
	if header == "" {
		return false
	}
	return hmac.Equal([]byte(Signature(secret, body)), []byte(header))
}

package signature

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
)

// Sign returns the lowercase hex HMAC-SHA512 of data under the given secret.
// This is the integrity scheme VNPay applies to payment callbacks.
func Sign(data, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether the provided hex signature matches the HMAC-SHA512
// of data under the given secret. Comparison is constant-time.
func Verify(data, signatureHex, secret string) bool {
	expected := Sign(data, secret)
	return hmac.Equal([]byte(expected), []byte(signatureHex))
}

package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Verifier authenticates payment callbacks.
type Verifier interface {
	Verify(orderID, paymentID, signature string) bool
}

// HMACVerifier checks hex(HMAC-SHA256(secret, orderID + "|" + paymentID)).
type HMACVerifier struct {
	secret []byte
}

func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret)}
}

// Sign returns the signature the gateway would attach to a callback.
func (v *HMACVerifier) Sign(orderID, paymentID string) string {
	return hex.EncodeToString(v.mac(orderID, paymentID))
}

// Verify returns false for empty or malformed input and for any mismatch.
// The comparison is constant time.
func (v *HMACVerifier) Verify(orderID, paymentID, signature string) bool {
	if len(v.secret) == 0 || orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	if strings.Contains(orderID, "|") || strings.Contains(paymentID, "|") {
		return false
	}
	got, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(signature)))
	if err != nil || len(got) != sha256.Size {
		return false
	}
	return hmac.Equal(got, v.mac(orderID, paymentID))
}

func (v *HMACVerifier) mac(orderID, paymentID string) []byte {
	m := hmac.New(sha256.New, v.secret)
	m.Write([]byte(orderID + "|" + paymentID))
	return m.Sum(nil)
}

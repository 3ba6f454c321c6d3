package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// signPayload computes the hex HMAC-SHA256 of "orderID|paymentID", the scheme
// Razorpay uses for checkout callback signatures.
func signPayload(secret, gatewayOrderID, gatewayPaymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// verifySignature recomputes the expected signature and compares it to the
// provided one in constant time.
func verifySignature(secret, gatewayOrderID, gatewayPaymentID, signature string) bool {
	expected := signPayload(secret, gatewayOrderID, gatewayPaymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}

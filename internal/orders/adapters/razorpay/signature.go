package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// VerifySignature checks the checkout signature, an HMAC-SHA256 of
// "<order_id>|<payment_id>" keyed with the API secret, hex encoded.
func (c *Client) VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) bool {
	return verifySignature(c.keySecret, gatewayOrderID, gatewayPaymentID, signature)
}

func verifySignature(secret, gatewayOrderID, gatewayPaymentID, signature string) bool {
	if secret == "" || gatewayOrderID == "" || gatewayPaymentID == "" || signature == "" {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(sign(secret, gatewayOrderID, gatewayPaymentID), got)
}

func sign(secret, gatewayOrderID, gatewayPaymentID string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	return mac.Sum(nil)
}

// Sign returns the signature Razorpay would produce. Used by tests and
// local tooling that simulate the checkout callback.
func Sign(secret, gatewayOrderID, gatewayPaymentID string) string {
	return hex.EncodeToString(sign(secret, gatewayOrderID, gatewayPaymentID))
}

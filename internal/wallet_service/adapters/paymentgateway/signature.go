package paymentgateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign returns the hex encoded HMAC-SHA256 of message under secret.
func Sign(secret string, message []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

// PaymentSignature is the signature the checkout widget hands the client
// for a completed payment.
func PaymentSignature(keySecret, orderID, paymentID string) string {
	return Sign(keySecret, []byte(orderID+"|"+paymentID))
}

func validSignature(secret string, message []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	return hmac.Equal([]byte(Sign(secret, message)), []byte(signature))
}

// signer verifies checkout and webhook signatures. It never touches state.
type signer struct {
	keySecret     string
	webhookSecret string
}

func (s signer) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	if orderID == "" || paymentID == "" {
		return false
	}
	return validSignature(s.keySecret, []byte(orderID+"|"+paymentID), signature)
}

// VerifyWebhookSignature checks signature against the raw request body,
// byte for byte.
func (s signer) VerifyWebhookSignature(payload []byte, signature string) bool {
	return validSignature(s.webhookSecret, payload, signature)
}

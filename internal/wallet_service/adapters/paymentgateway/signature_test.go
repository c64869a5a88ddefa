package paymentgateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSign_KnownVector(t *testing.T) {
	// RFC 4231 test case 2.
	got := Sign("Jefe", []byte("what do ya want for nothing?"))
	assert.Equal(t, "5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843", got)
}

func TestSigner_VerifyPaymentSignature(t *testing.T) {
	s := signer{keySecret: "key-secret", webhookSecret: "hook-secret"}
	valid := PaymentSignature("key-secret", "order_1", "pay_1")

	assert.True(t, s.VerifyPaymentSignature("order_1", "pay_1", valid))
	assert.False(t, s.VerifyPaymentSignature("order_1", "pay_2", valid), "signature is bound to the payment id")
	assert.False(t, s.VerifyPaymentSignature("order_2", "pay_1", valid), "signature is bound to the order id")
	assert.False(t, s.VerifyPaymentSignature("order_1", "pay_1", PaymentSignature("hook-secret", "order_1", "pay_1")))
	assert.False(t, s.VerifyPaymentSignature("order_1", "pay_1", ""))
	assert.False(t, s.VerifyPaymentSignature("", "", Sign("key-secret", []byte("|"))))
}

func TestSigner_VerifyWebhookSignature(t *testing.T) {
	s := signer{keySecret: "key-secret", webhookSecret: "hook-secret"}
	body := []byte(`{"event":"payment.captured","payload":{}}`)
	valid := Sign("hook-secret", body)

	assert.True(t, s.VerifyWebhookSignature(body, valid))
	assert.False(t, s.VerifyWebhookSignature([]byte(`{"event":"payment.captured","payload":{} }`), valid), "any byte change invalidates")
	assert.False(t, s.VerifyWebhookSignature(body, Sign("key-secret", body)))
	assert.False(t, s.VerifyWebhookSignature(body, "deadbeef"))
}

func TestSigner_EmptySecretRejectsEverything(t *testing.T) {
	s := signer{}
	assert.False(t, s.VerifyWebhookSignature([]byte("x"), Sign("", []byte("x"))))
	assert.False(t, s.VerifyPaymentSignature("o", "p", PaymentSignature("", "o", "p")))
}

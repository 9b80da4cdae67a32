package razorpay

import "testing"

func TestVerifySignature(t *testing.T) {
	valid := Sign("secret", "order_abc", "pay_1")

	tests := []struct {
		name      string
		secret    string
		orderID   string
		paymentID string
		signature string
		want      bool
	}{
		{"valid", "secret", "order_abc", "pay_1", valid, true},
		{"wrong secret", "other", "order_abc", "pay_1", valid, false},
		{"swapped ids", "secret", "pay_1", "order_abc", valid, false},
		{"tampered", "secret", "order_abc", "pay_2", valid, false},
		{"not hex", "secret", "order_abc", "pay_1", "zz-not-hex", false},
		{"truncated", "secret", "order_abc", "pay_1", valid[:10], false},
		{"empty signature", "secret", "order_abc", "pay_1", "", false},
		{"empty payment id", "secret", "order_abc", "", valid, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := verifySignature(tt.secret, tt.orderID, tt.paymentID, tt.signature); got != tt.want {
				t.Errorf("verifySignature() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClientVerifySignature(t *testing.T) {
	c := &Client{keySecret: "secret"}
	if !c.VerifySignature("order_abc", "pay_1", Sign("secret", "order_abc", "pay_1")) {
		t.Error("expected signature produced by Sign to verify")
	}
	if len(Sign("secret", "a", "b")) != 64 {
		t.Error("expected a hex encoded sha256 digest")
	}
}

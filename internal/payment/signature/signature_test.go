package signature

import "testing"

func TestVerifyMatches(t *testing.T) {
	body := []byte(`{"event":"charge.success","data":{"id":1}}`)
	secret := "sk_test_abc123"

	header := Compute(body, secret)
	if !Verify(body, header, secret) {
		t.Fatalf("expected signature to verify")
	}
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	body := []byte(`{"event":"charge.success"}`)
	secret := "sk_test_abc123"
	header := Compute(body, secret)

	if Verify([]byte(`{"event":"charge.failed"}`), header, secret) {
		t.Fatalf("expected tampered body to fail verification")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	body := []byte(`{"event":"charge.success"}`)
	header := Compute(body, "sk_test_abc123")

	if Verify(body, header, "sk_test_other") {
		t.Fatalf("expected wrong secret to fail verification")
	}
}

func TestVerifyMissingHeaderOrSecret(t *testing.T) {
	body := []byte(`{}`)
	if Verify(body, "", "sk_test_abc123") {
		t.Fatalf("expected missing header to fail verification")
	}
	if Verify(body, Compute(body, "sk"), "") {
		t.Fatalf("expected missing secret to fail verification")
	}
}

func TestVerifyAcceptsUppercaseHex(t *testing.T) {
	body := []byte(`{"event":"charge.success"}`)
	secret := "sk_test_abc123"
	header := Compute(body, secret)

	upper := make([]byte, len(header))
	for i := 0; i < len(header); i++ {
		c := header[i]
		if c >= 'a' && c <= 'f' {
			c -= 'a' - 'A'
		}
		upper[i] = c
	}

	if !Verify(body, string(upper), secret) {
		t.Fatalf("expected uppercase digest to verify")
	}
}

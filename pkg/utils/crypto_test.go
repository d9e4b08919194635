package utils

import "testing"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	secret := "JBSWY3DPEHPK3PXP"

	encrypted, err := EncryptAESGCM(secret)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if encrypted == secret {
		t.Fatal("ciphertext must differ from plaintext")
	}

	decrypted, err := DecryptAESGCM(encrypted)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if decrypted != secret {
		t.Fatalf("round trip mismatch: %q", decrypted)
	}

	// Two encryptions of the same value use distinct nonces.
	again, err := EncryptAESGCM(secret)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if again == encrypted {
		t.Fatal("nonces must not repeat")
	}
}

func TestDecryptOrPlaintextFallback(t *testing.T) {
	if got := DecryptOrPlaintext("not-ciphertext"); got != "not-ciphertext" {
		t.Fatalf("expected passthrough, got %q", got)
	}

	encrypted, err := EncryptAESGCM("JBSWY3DPEHPK3PXP")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if got := DecryptOrPlaintext(encrypted); got != "JBSWY3DPEHPK3PXP" {
		t.Fatalf("expected decryption, got %q", got)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct-horse-42")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if !CheckPassword("correct-horse-42", hash) {
		t.Fatal("correct password must verify")
	}
	if CheckPassword("wrong", hash) {
		t.Fatal("wrong password must not verify")
	}
}

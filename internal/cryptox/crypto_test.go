package cryptox

import "testing"

func TestSealOpenRoundTrip(t *testing.T) {
	vault, err := NewVault("secret", "salt")
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}

	sealed, nonce, err := vault.Seal("sk-user-api-key")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	opened, err := vault.Open(sealed, nonce)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if opened != "sk-user-api-key" {
		t.Fatalf("round trip mismatch: %q", opened)
	}
}

func TestOpenRejectsTamperedCiphertext(t *testing.T) {
	vault, _ := NewVault("secret", "salt")
	sealed, nonce, err := vault.Seal("sk-user-api-key")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	sealed[0] ^= 0xff
	if _, err := vault.Open(sealed, nonce); err == nil {
		t.Fatalf("expected authentication failure")
	}
}

func TestOpenRejectsWrongSecret(t *testing.T) {
	sealer, _ := NewVault("secret-one", "salt")
	opener, _ := NewVault("secret-two", "salt")

	sealed, nonce, err := sealer.Seal("sk-user-api-key")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := opener.Open(sealed, nonce); err == nil {
		t.Fatalf("expected failure under a different key")
	}
}

func TestNewVaultRequiresSecret(t *testing.T) {
	if _, err := NewVault("", "salt"); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}

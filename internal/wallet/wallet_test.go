package wallet

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "accounts.txt")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, `# test accounts
0xAbCdEf1234567890aBcDeF1234567890abcdef12,0x1111111111111111111111111111111111111111111111111111111111111111

deadbeefdeadbeefdeadbeefdeadbeefdeadbeef,2222222222222222222222222222222222222222222222222222222222222222
`)

	accounts, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(accounts))
	}
	if accounts[0].Address != "0xabcdef1234567890abcdef1234567890abcdef12" {
		t.Errorf("unexpected address: %s", accounts[0].Address)
	}
	if accounts[0].PrivateKey != "1111111111111111111111111111111111111111111111111111111111111111" {
		t.Errorf("private key should be lowercased without prefix: %s", accounts[0].PrivateKey)
	}
	if accounts[1].Address != "0xdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef" {
		t.Errorf("address without 0x should be normalized: %s", accounts[1].Address)
	}
}

func TestLoadEmpty(t *testing.T) {
	path := writeFile(t, "# comments only\n\n")
	if _, err := Load(path); !errors.Is(err, ErrNoAccounts) {
		t.Fatalf("expected ErrNoAccounts, got %v", err)
	}
}

func TestLoadBadLine(t *testing.T) {
	cases := []string{
		"not-a-line",
		"0xabcdef1234567890abcdef1234567890abcdef12,tooshort",
		"0xzzzdef1234567890abcdef1234567890abcdef12,1111111111111111111111111111111111111111111111111111111111111111",
	}
	for _, content := range cases {
		path := writeFile(t, content)
		if _, err := Load(path); err == nil {
			t.Errorf("expected error for %q", content)
		}
	}
}

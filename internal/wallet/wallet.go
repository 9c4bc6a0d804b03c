package wallet

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shaiso/Harvester/internal/domain"
)

// ErrNoAccounts возвращается, если в файле нет ни одного аккаунта.
var ErrNoAccounts = errors.New("wallet: no accounts in file")

// Load читает аккаунты из файла.
//
// Формат: одна строка на аккаунт, "address,privatekey".
// Пустые строки и строки, начинающиеся с '#', игнорируются.
func Load(path string) ([]*domain.Account, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open accounts file: %w", err)
	}
	defer f.Close()

	var accounts []*domain.Account
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		acct, err := parseLine(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		accounts = append(accounts, acct)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read accounts file: %w", err)
	}
	if len(accounts) == 0 {
		return nil, ErrNoAccounts
	}
	return accounts, nil
}

func parseLine(text string) (*domain.Account, error) {
	address, key, ok := strings.Cut(text, ",")
	if !ok {
		return nil, errors.New("expected format: address,privatekey")
	}
	address = strings.TrimSpace(address)
	key = strings.TrimSpace(key)

	if err := validateHex(address, 40); err != nil {
		return nil, fmt.Errorf("address: %w", err)
	}
	if err := validateHex(key, 64); err != nil {
		return nil, fmt.Errorf("private key: %w", err)
	}

	return &domain.Account{
		Address:    "0x" + strings.TrimPrefix(strings.ToLower(address), "0x"),
		PrivateKey: strings.TrimPrefix(strings.ToLower(key), "0x"),
	}, nil
}

// validateHex проверяет hex-строку с опциональным префиксом 0x
// и ровно n шестнадцатеричных символов.
func validateHex(s string, n int) error {
	s = strings.TrimPrefix(s, "0x")
	if len(s) != n {
		return fmt.Errorf("expected %d hex characters, got %d", n, len(s))
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return fmt.Errorf("invalid hex character %q", c)
		}
	}
	return nil
}

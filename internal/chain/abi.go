package chain

import (
	"fmt"
	"math/big"
	"strings"
)

// Селекторы методов стандартных контрактов (первые 4 байта keccak256
// сигнатуры).
const (
	// SelectorBalanceOf — balanceOf(address)
	SelectorBalanceOf = "70a08231"

	// SelectorAllowance — allowance(address,address)
	SelectorAllowance = "dd62ed3e"

	// SelectorApprove — approve(address,uint256)
	SelectorApprove = "095ea7b3"

	// SelectorClaim — claim()
	SelectorClaim = "4e71d92d"

	// SelectorSwap — swap(address,address,uint256)
	SelectorSwap = "df791e50"
)

// MaxUint256 — максимальное значение uint256 (бесконечный approve).
var MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// EncodeCall собирает calldata: селектор + ABI-закодированные аргументы.
func EncodeCall(selector string, args ...string) string {
	var b strings.Builder
	b.WriteString("0x")
	b.WriteString(selector)
	for _, a := range args {
		b.WriteString(a)
	}
	return b.String()
}

// EncodeAddress кодирует адрес как 32-байтовое слово.
func EncodeAddress(addr string) string {
	hex := strings.ToLower(strings.TrimPrefix(addr, "0x"))
	return strings.Repeat("0", 64-len(hex)) + hex
}

// EncodeUint кодирует uint256 как 32-байтовое слово.
func EncodeUint(v *big.Int) string {
	hex := v.Text(16)
	return strings.Repeat("0", 64-len(hex)) + hex
}

// HexUint форматирует uint64 как quantity для JSON-RPC ("0x...").
func HexUint(v uint64) string {
	return fmt.Sprintf("0x%x", v)
}

// HexBig форматирует big.Int как quantity для JSON-RPC ("0x...").
func HexBig(v *big.Int) string {
	return "0x" + v.Text(16)
}

// Package utils provides shared helpers across the zoracle copy-trade core.
package utils

import (
	"math/big"
	"strings"
)

// NormalizeAddress normalizes an EVM address to lowercase with trimmed
// spaces and a guaranteed 0x prefix.
func NormalizeAddress(addr string) string {
	a := strings.TrimSpace(strings.ToLower(addr))
	if a == "" {
		return a
	}
	if !strings.HasPrefix(a, "0x") {
		a = "0x" + a
	}
	return a
}

// ShortAddress returns a truncated address for display (0x1234...5678).
func ShortAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

// ShortHash returns a truncated transaction hash for log lines.
func ShortHash(hash string) string {
	if len(hash) <= 18 {
		return hash
	}
	return hash[:18]
}

// FormatUnits renders an integer base-unit amount as a decimal string
// using the given number of decimals. The result is for display only and
// must never be parsed back into sizing math.
func FormatUnits(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0"
	}
	if decimals <= 0 {
		return amount.String()
	}
	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(amount, divisor, new(big.Int))
	neg := frac.Sign() < 0
	frac.Abs(frac)
	fracStr := frac.String()
	for len(fracStr) < decimals {
		fracStr = "0" + fracStr
	}
	fracStr = strings.TrimRight(fracStr, "0")
	sign := ""
	if neg && whole.Sign() == 0 {
		sign = "-"
	}
	if fracStr == "" {
		return sign + whole.String()
	}
	return sign + whole.String() + "." + fracStr
}

// MinBig returns the smallest of the given big integers. Nil arguments
// are ignored; returns nil when every argument is nil.
func MinBig(values ...*big.Int) *big.Int {
	var min *big.Int
	for _, v := range values {
		if v == nil {
			continue
		}
		if min == nil || v.Cmp(min) < 0 {
			min = v
		}
	}
	if min == nil {
		return nil
	}
	return new(big.Int).Set(min)
}

package executor

import (
	"math/big"
)

// ThresholdWei converts an ETH-denominated threshold into wei.
func ThresholdWei(eth float64) *big.Int {
	if eth <= 0 {
		return nil
	}
	f := new(big.Float).Mul(big.NewFloat(eth), big.NewFloat(1e18))
	wei, _ := f.Int(nil)
	return wei
}

// SplitAmounts partitions an order into sub-orders. Amounts at or
// below the threshold stay whole. Above it, the amount is divided into
// `splits` equal parts with the integer remainder folded into the last
// part, so the parts always sum to the original amount.
func SplitAmounts(amount, threshold *big.Int, splits int) []*big.Int {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	if splits <= 1 || threshold == nil || amount.Cmp(threshold) <= 0 {
		return []*big.Int{new(big.Int).Set(amount)}
	}
	return splitEven(amount, splits)
}

// splitEven divides an amount into n equal parts with the integer
// remainder folded into the last part.
func splitEven(amount *big.Int, n int) []*big.Int {
	each, rem := new(big.Int).DivMod(amount, big.NewInt(int64(n)), new(big.Int))
	if each.Sign() == 0 {
		// Amount too small to split into this many non-zero parts
		return []*big.Int{new(big.Int).Set(amount)}
	}

	parts := make([]*big.Int, n)
	for i := range parts {
		parts[i] = new(big.Int).Set(each)
	}
	parts[n-1].Add(parts[n-1], rem)
	return parts
}

package executor

import (
	"math/big"
	"testing"
)

func eth(v float64) *big.Int {
	f := new(big.Float).Mul(big.NewFloat(v), big.NewFloat(1e18))
	wei, _ := f.Int(nil)
	return wei
}

func TestSplitAmounts(t *testing.T) {
	threshold := eth(1.0)

	cases := []struct {
		name   string
		amount *big.Int
		splits int
		want   int
	}{
		{"below threshold stays whole", eth(0.5), 3, 1},
		{"at threshold stays whole", eth(1.0), 3, 1},
		{"above threshold splits", eth(3.0), 3, 3},
		{"single split configured", eth(3.0), 1, 1},
		{"tiny amount does not split", big.NewInt(2), 3, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			parts := SplitAmounts(tc.amount, threshold, tc.splits)
			if len(parts) != tc.want {
				t.Fatalf("expected %d parts, got %d", tc.want, len(parts))
			}

			sum := new(big.Int)
			for _, p := range parts {
				if p.Sign() <= 0 {
					t.Fatalf("non-positive part %s", p)
				}
				sum.Add(sum, p)
			}
			if sum.Cmp(tc.amount) != 0 {
				t.Fatalf("parts sum %s != amount %s", sum, tc.amount)
			}
		})
	}
}

func TestSplitAmounts_RemainderInLast(t *testing.T) {
	parts := SplitAmounts(big.NewInt(10), big.NewInt(1), 3)
	if len(parts) != 3 {
		t.Fatalf("expected 3 parts, got %d", len(parts))
	}
	if parts[0].Int64() != 3 || parts[1].Int64() != 3 || parts[2].Int64() != 4 {
		t.Fatalf("expected [3 3 4], got %v", parts)
	}
}

func TestSplitAmounts_NilThreshold(t *testing.T) {
	parts := SplitAmounts(eth(5), nil, 4)
	if len(parts) != 1 {
		t.Fatalf("no threshold should mean no splitting, got %d parts", len(parts))
	}
}

func TestSplitAmounts_EmptyAmount(t *testing.T) {
	if parts := SplitAmounts(nil, eth(1), 3); parts != nil {
		t.Fatalf("nil amount should yield nil, got %v", parts)
	}
	if parts := SplitAmounts(big.NewInt(0), eth(1), 3); parts != nil {
		t.Fatalf("zero amount should yield nil, got %v", parts)
	}
}

func TestThresholdWei(t *testing.T) {
	if got := ThresholdWei(1.0); got.Cmp(eth(1.0)) != 0 {
		t.Fatalf("expected 1e18, got %s", got)
	}
	if got := ThresholdWei(0); got != nil {
		t.Fatalf("zero threshold should be nil, got %s", got)
	}
	if got := ThresholdWei(-2); got != nil {
		t.Fatalf("negative threshold should be nil, got %s", got)
	}
}

func TestResultAggregation(t *testing.T) {
	res := &Result{
		SubOrders: []SubOrderResult{
			{Amount: big.NewInt(1), TxHash: "0x1"},
			{Amount: big.NewInt(1), TxHash: "0x2", Err: "reverted"},
			{Amount: big.NewInt(1), Err: "cancelled before submission"},
		},
		Succeeded: 1,
		Failed:    2,
	}

	hashes := res.TxHashes()
	if len(hashes) != 1 || hashes[0] != "0x1" {
		t.Fatalf("expected only the clean hash, got %v", hashes)
	}
	if res.AllFailed() {
		t.Fatal("partial success is not all-failed")
	}

	res.Succeeded = 0
	if !res.AllFailed() {
		t.Fatal("zero successes with failures is all-failed")
	}
}

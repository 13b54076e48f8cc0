package chain

import (
	"math/big"
	"testing"
)

func TestMinAcceptableOutput(t *testing.T) {
	quoted := big.NewInt(1000000)

	cases := []struct {
		name     string
		slippage float64
		want     int64
	}{
		{"zero slippage", 0, 1000000},
		{"five percent", 5, 950000},
		{"half percent", 0.5, 995000},
		{"full slippage clamps to zero", 100, 0},
		{"negative treated as zero", -3, 1000000},
		{"over 100 clamps", 150, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := MinAcceptableOutput(quoted, tc.slippage)
			if got.Int64() != tc.want {
				t.Fatalf("expected %d, got %s", tc.want, got)
			}
		})
	}
}

func TestMinAcceptableOutput_Monotonic(t *testing.T) {
	quoted := big.NewInt(123456789)

	prev := MinAcceptableOutput(quoted, 0)
	for _, s := range []float64{0.1, 1, 2.5, 10, 50, 99} {
		cur := MinAcceptableOutput(quoted, s)
		if cur.Cmp(prev) > 0 {
			t.Fatalf("minOut must not grow with slippage: %s > %s at %v", cur, prev, s)
		}
		prev = cur
	}
}

func TestMinAcceptableOutput_NilQuote(t *testing.T) {
	if got := MinAcceptableOutput(nil, 5); got != nil {
		t.Fatalf("nil quote should give nil, got %s", got)
	}
}

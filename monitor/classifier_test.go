package monitor

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/folajindayo/zoracle-telegram-sub001/chain"
	"github.com/folajindayo/zoracle-telegram-sub001/models"
)

const (
	testRouter = "0xae4ec9901c3076d0ddbe76a520f9e90a6227acb7"
	testWETH   = "0x4200000000000000000000000000000000000006"
	testToken  = "0x1111111111111111111111111111111111111111"
	testWallet = "0x2222222222222222222222222222222222222222"
)

type fakeMetaSource struct {
	decimals map[string]int
}

func (f *fakeMetaSource) TokenDecimals(token string) int {
	if d, ok := f.decimals[token]; ok {
		return d
	}
	return 18
}

func newTestClassifier(t *testing.T, tokens TokenMetaSource) *Classifier {
	t.Helper()
	abis, err := chain.ParseABIs()
	if err != nil {
		t.Fatalf("parse ABIs: %v", err)
	}
	return NewClassifier(abis, []string{testRouter}, []string{"0x3333333333333333333333333333333333333333"}, testWETH, tokens)
}

func packRouter(t *testing.T, method string, args ...interface{}) string {
	t.Helper()
	abis, err := chain.ParseABIs()
	if err != nil {
		t.Fatalf("parse ABIs: %v", err)
	}
	data, err := abis.Router.Pack(method, args...)
	if err != nil {
		t.Fatalf("pack %s: %v", method, err)
	}
	return hexutil.Encode(data)
}

func packERC20(t *testing.T, method string, args ...interface{}) string {
	t.Helper()
	abis, err := chain.ParseABIs()
	if err != nil {
		t.Fatalf("parse ABIs: %v", err)
	}
	data, err := abis.ERC20.Pack(method, args...)
	if err != nil {
		t.Fatalf("pack %s: %v", method, err)
	}
	return hexutil.Encode(data)
}

func TestClassify_BuySwap(t *testing.T) {
	c := newTestClassifier(t, nil)

	value := big.NewInt(1500000000000000000) // 1.5 ETH
	input := packRouter(t, "swapExactETHForTokens",
		big.NewInt(0),
		[]common.Address{common.HexToAddress(testWETH), common.HexToAddress(testToken)},
		common.HexToAddress(testWallet),
		big.NewInt(9999999999),
	)

	intent := c.Classify(&models.ChainTransaction{
		Hash: "0xaaa", From: testWallet, To: testRouter, Value: value, Input: input,
	})
	if intent == nil {
		t.Fatal("expected an intent")
	}
	if intent.Kind != models.TradeKindBuy {
		t.Fatalf("expected buy, got %s", intent.Kind)
	}
	if intent.InputToken != models.NativeToken {
		t.Fatalf("expected native input, got %s", intent.InputToken)
	}
	if intent.OutputToken != testToken {
		t.Fatalf("expected output %s, got %s", testToken, intent.OutputToken)
	}
	if intent.AmountIn.Cmp(value) != 0 {
		t.Fatalf("expected amountIn %s, got %s", value, intent.AmountIn)
	}
	if intent.AmountDisplay != "1.5" {
		t.Fatalf("expected display 1.5, got %s", intent.AmountDisplay)
	}
}

func TestClassify_SellSwapUsesTokenDecimals(t *testing.T) {
	c := newTestClassifier(t, &fakeMetaSource{decimals: map[string]int{testToken: 6}})

	amountIn := big.NewInt(2500000) // 2.5 in 6-decimals
	input := packRouter(t, "swapExactTokensForETH",
		amountIn,
		big.NewInt(0),
		[]common.Address{common.HexToAddress(testToken), common.HexToAddress(testWETH)},
		common.HexToAddress(testWallet),
		big.NewInt(9999999999),
	)

	intent := c.Classify(&models.ChainTransaction{
		Hash: "0xbbb", From: testWallet, To: testRouter, Value: big.NewInt(0), Input: input,
	})
	if intent == nil {
		t.Fatal("expected an intent")
	}
	if intent.Kind != models.TradeKindSell {
		t.Fatalf("expected sell, got %s", intent.Kind)
	}
	if intent.InputToken != testToken {
		t.Fatalf("expected input %s, got %s", testToken, intent.InputToken)
	}
	if intent.InputDecimals != 6 {
		t.Fatalf("expected 6 decimals, got %d", intent.InputDecimals)
	}
	if intent.AmountDisplay != "2.5" {
		t.Fatalf("expected display 2.5, got %s", intent.AmountDisplay)
	}
}

func TestClassify_TokenToToken(t *testing.T) {
	c := newTestClassifier(t, nil)

	other := "0x4444444444444444444444444444444444444444"
	input := packRouter(t, "swapExactTokensForTokens",
		big.NewInt(1000),
		big.NewInt(0),
		[]common.Address{common.HexToAddress(testToken), common.HexToAddress(other)},
		common.HexToAddress(testWallet),
		big.NewInt(9999999999),
	)

	intent := c.Classify(&models.ChainTransaction{
		Hash: "0xccc", From: testWallet, To: testRouter, Input: input,
	})
	if intent == nil || intent.Kind != models.TradeKindTokenToToken {
		t.Fatalf("expected token_to_token, got %+v", intent)
	}
	if intent.InputToken != testToken || intent.OutputToken != other {
		t.Fatalf("wrong path decode: %s -> %s", intent.InputToken, intent.OutputToken)
	}
}

func TestClassify_ERC20TransferAndApprove(t *testing.T) {
	c := newTestClassifier(t, nil)

	transfer := packERC20(t, "transfer", common.HexToAddress(testWallet), big.NewInt(777))
	intent := c.Classify(&models.ChainTransaction{
		Hash: "0xddd", From: testWallet, To: testToken, Input: transfer,
	})
	if intent == nil || intent.Kind != models.TradeKindTransfer {
		t.Fatalf("expected transfer, got %+v", intent)
	}
	if intent.Counterparty != testWallet {
		t.Fatalf("expected counterparty %s, got %s", testWallet, intent.Counterparty)
	}

	approve := packERC20(t, "approve", common.HexToAddress(testRouter), big.NewInt(999))
	intent = c.Classify(&models.ChainTransaction{
		Hash: "0xeee", From: testWallet, To: testToken, Input: approve,
	})
	if intent == nil || intent.Kind != models.TradeKindApproval {
		t.Fatalf("expected approval, got %+v", intent)
	}
	if intent.Counterparty != testRouter {
		t.Fatalf("expected spender %s, got %s", testRouter, intent.Counterparty)
	}
}

func TestClassify_NativeTransfer(t *testing.T) {
	c := newTestClassifier(t, nil)

	intent := c.Classify(&models.ChainTransaction{
		Hash: "0xfff", From: testWallet, To: testToken, Value: big.NewInt(1000000000000000000), Input: "0x",
	})
	if intent == nil || intent.Kind != models.TradeKindTransfer {
		t.Fatalf("expected native transfer, got %+v", intent)
	}
	if intent.InputToken != models.NativeToken {
		t.Fatalf("expected native input, got %s", intent.InputToken)
	}
	if intent.AmountDisplay != "1" {
		t.Fatalf("expected display 1, got %s", intent.AmountDisplay)
	}
}

func TestClassify_UnknownShapesAreSilent(t *testing.T) {
	c := newTestClassifier(t, nil)

	cases := []struct {
		name string
		tx   *models.ChainTransaction
	}{
		{"nil tx", nil},
		{"unknown selector on router", &models.ChainTransaction{To: testRouter, Input: "0xdeadbeef"}},
		{"unknown selector elsewhere", &models.ChainTransaction{To: testToken, Input: "0xdeadbeef"}},
		{"short calldata", &models.ChainTransaction{To: testRouter, Input: "0x0102"}},
		{"bad hex", &models.ChainTransaction{To: testRouter, Input: "0xzz"}},
		{"truncated args", &models.ChainTransaction{To: testRouter, Input: "0x7ff36ab5aa"}},
	}
	for _, tc := range cases {
		if intent := c.Classify(tc.tx); intent != nil {
			t.Fatalf("%s: expected nil intent, got %+v", tc.name, intent)
		}
	}
}

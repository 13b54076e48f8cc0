package main

import (
	"fmt"
	"log"
	"math/big"
	"os"

	"github.com/joho/godotenv"

	"github.com/folajindayo/zoracle-telegram-sub001/chain"
	"github.com/folajindayo/zoracle-telegram-sub001/config"
	"github.com/folajindayo/zoracle-telegram-sub001/models"
	"github.com/folajindayo/zoracle-telegram-sub001/monitor"
)

// Decodes a transaction offline through the classifier and prints the
// resulting intent. Usage:
//
//	decode_tx <to> <value-wei> <calldata-hex>
func main() {
	godotenv.Load()

	if len(os.Args) < 4 {
		fmt.Println("usage: decode_tx <to> <value-wei> <calldata-hex>")
		os.Exit(1)
	}

	cfg, err := config.Load(os.Getenv("ZORACLE_CONFIG"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	abis, err := chain.ParseABIs()
	if err != nil {
		log.Fatalf("failed to parse ABIs: %v", err)
	}

	value, ok := new(big.Int).SetString(os.Args[2], 10)
	if !ok {
		log.Fatalf("invalid value %q", os.Args[2])
	}

	classifier := monitor.NewClassifier(abis, cfg.Classifier.RouterAddresses,
		cfg.Classifier.FactoryAddresses, cfg.Classifier.WETHAddress, nil)

	intent := classifier.Classify(&models.ChainTransaction{
		Hash:  "0x0",
		From:  "0x0000000000000000000000000000000000000000",
		To:    os.Args[1],
		Value: value,
		Input: os.Args[3],
	})
	if intent == nil {
		fmt.Println("no intent: not a recognized call")
		return
	}

	fmt.Printf("kind:     %s\n", intent.Kind)
	fmt.Printf("input:    %s\n", intent.InputToken)
	fmt.Printf("output:   %s\n", intent.OutputToken)
	if intent.AmountIn != nil {
		fmt.Printf("amountIn: %s (%s)\n", intent.AmountIn, intent.AmountDisplay)
	}
	if intent.Counterparty != "" {
		fmt.Printf("counterparty: %s\n", intent.Counterparty)
	}
	for k, v := range intent.Args {
		fmt.Printf("arg %-12s %v\n", k+":", v)
	}
}

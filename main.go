package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/folajindayo/zoracle-telegram-sub001/chain"
	"github.com/folajindayo/zoracle-telegram-sub001/config"
	"github.com/folajindayo/zoracle-telegram-sub001/executor"
	"github.com/folajindayo/zoracle-telegram-sub001/handlers"
	"github.com/folajindayo/zoracle-telegram-sub001/mirror"
	"github.com/folajindayo/zoracle-telegram-sub001/monitor"
	"github.com/folajindayo/zoracle-telegram-sub001/storage"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using defaults")
	}

	cfgPath := os.Getenv("ZORACLE_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	store, err := openStore()
	if err != nil {
		log.Fatalf("failed to init storage: %v", err)
	}
	defer store.Close()

	abis, err := chain.ParseABIs()
	if err != nil {
		log.Fatalf("failed to parse ABIs: %v", err)
	}

	httpEndpoints := append([]string{cfg.Provider.HTTPEndpoint}, cfg.Provider.HTTPFallbacks...)
	node, err := chain.DialNode(httpEndpoints, time.Duration(cfg.Provider.RateLimitCooldownSec)*time.Second)
	if err != nil {
		log.Fatalf("failed to dial node: %v", err)
	}
	defer node.Close()

	tokens := chain.NewTokenReader(node, abis)
	tokenCache := storage.NewTokenMetaCache(store, tokens)
	tokenCache.Start()
	defer tokenCache.Stop()

	classifier := monitor.NewClassifier(abis, cfg.Classifier.RouterAddresses,
		cfg.Classifier.FactoryAddresses, cfg.Classifier.WETHAddress, tokenCache)
	registry := monitor.NewListenerRegistry()
	processed := monitor.NewProcessedSet(cfg.Classifier.ProcessedSetSize)

	provider := chain.NewProviderManager(cfg.Provider, node)
	mon := monitor.NewChainMonitor(provider, processed, classifier, registry)

	signers := chain.NewStaticSignerProvider(cfg.Provider.ChainID)
	loadSignerKeys(signers)

	quoter := chain.NewQuoter(node, abis, cfg.Executor.RouterAddress, cfg.Classifier.WETHAddress)
	exec := executor.New(cfg.Executor, node, quoter, tokens, abis, signers)
	defer exec.Stop()

	engine := mirror.NewEngine(cfg.Mirror, store, registry, exec,
		mirror.NewChainFunds(node, tokens), signers, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := engine.ResumeAll(ctx); err != nil {
		log.Fatalf("failed to resume targets: %v", err)
	}

	if err := provider.Connect(ctx); err != nil {
		log.Fatalf("failed to connect provider: %v", err)
	}
	if err := mon.Start(ctx); err != nil {
		log.Fatalf("failed to start monitor: %v", err)
	}
	if err := provider.Start(ctx); err != nil {
		log.Fatalf("failed to start provider: %v", err)
	}

	// Set up router
	r := gin.Default()
	h := handlers.NewHandler(engine, mon, store)
	h.RegisterRoutes(r)

	port := os.Getenv("PORT")
	if port == "" {
		port = strconv.Itoa(cfg.Server.Port)
	}

	go func() {
		log.Printf("[main] Server starting on http://localhost:%s", port)
		if err := r.Run(":" + port); err != nil {
			log.Fatal(err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[main] Shutting down")
	cancel()
	provider.Stop()
	engine.Wait()
}

// openStore picks the backend from ZORACLE_STORAGE. Postgres is the
// default; "memory" runs without external services for sandbox use.
func openStore() (storage.ConfigStore, error) {
	if strings.EqualFold(os.Getenv("ZORACLE_STORAGE"), "memory") {
		log.Println("[main] Using in-memory storage")
		return storage.NewMemory(), nil
	}
	return storage.NewPostgres(context.Background())
}

// loadSignerKeys reads user:privatekey pairs from ZORACLE_SIGNER_KEYS,
// comma separated.
func loadSignerKeys(signers *chain.StaticSignerProvider) {
	raw := os.Getenv("ZORACLE_SIGNER_KEYS")
	if raw == "" {
		log.Println("[main] No signer keys configured; live mirroring disabled")
		return
	}

	count := 0
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			log.Printf("[main] Skipping malformed signer entry")
			continue
		}
		signers.AddKey(parts[0], parts[1])
		count++
	}
	log.Printf("[main] Loaded %d signer keys", count)
}

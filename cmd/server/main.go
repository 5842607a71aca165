package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/example/walletcore/internal/auth"
	"github.com/example/walletcore/internal/config"
	"github.com/example/walletcore/internal/handlers"
	apihttp "github.com/example/walletcore/internal/http"
	"github.com/example/walletcore/internal/indexer"
	"github.com/example/walletcore/internal/logger"
	"github.com/example/walletcore/internal/price"
	"github.com/example/walletcore/internal/rate"
	"github.com/example/walletcore/internal/retry"
	"github.com/example/walletcore/internal/rpcpool"
	"github.com/example/walletcore/internal/tokenmeta"
	"github.com/example/walletcore/internal/verify"
	"github.com/example/walletcore/internal/wallet"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.Stage == "prod")
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatal("mongo connect", zap.Error(err))
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()

	store, err := auth.NewMongoKeyStore(ctx, mongoClient, cfg.MongoDB, cfg.KeyCacheTTL)
	if err != nil {
		log.Fatal("api key store init", zap.Error(err))
	}

	pool := rpcpool.New(cfg.RPCURLs, rpcpool.Options{
		Commitment: rpc.CommitmentType(cfg.SolCommitment),
		Timeout:    cfg.RPCTimeout,
		Policy: retry.Policy{
			MaxAttemptsPerEndpoint: cfg.MaxAttemptsPerEndpoint,
			Base:                   cfg.BackoffBase,
			Max:                    cfg.BackoffMax,
		},
		FailureCeiling: cfg.FailureCeiling,
		CacheTTL:       cfg.CacheTTL,
		Log:            log.Named("rpcpool"),
	})

	registry, err := tokenmeta.NewRegistry(cfg.MetadataFile)
	if err != nil {
		log.Fatal("token metadata registry", zap.Error(err))
	}
	var resolver wallet.MetaResolver
	if cfg.MetaplexEnabled {
		resolver = tokenmeta.NewResolver(pool, registry, log.Named("metaplex"))
	}

	prices := price.NewService(cfg.PriceAPIURL, cfg.PriceTTL, cfg.PriceRPS, log.Named("price"))

	var fast indexer.Source
	if cfg.IndexerURL != "" {
		fast = indexer.NewClient(cfg.IndexerURL, log.Named("indexer"))
	}

	svc := wallet.NewService(pool, fast, prices, registry, resolver, wallet.Options{
		HoldingsTTL: cfg.HoldingsTTL,
		HistoryTTL:  cfg.CacheTTL,
		Log:         log.Named("wallet"),
	})
	verifier := verify.New(svc, cfg.SettleDelay, log.Named("verify"))

	lm := rate.NewLimiterMap(cfg.RateLimitRPM, cfg.RateLimitRPM, 5*time.Minute)
	defer lm.Stop()

	deps := apihttp.Deps{
		Wallet:  handlers.NewWalletHandler(svc, cfg.TxHistoryLimit, log.Named("http")),
		Verify:  handlers.NewVerifyHandler(verifier, log.Named("http")),
		Signup:  handlers.NewSignupHandler(store),
		Limiter: lm,
		Store:   store,
		Log:     log,
	}
	if cfg.AdminToken != "" {
		deps.Admin = handlers.NewAdminHandler(store, cfg.AdminToken)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      apihttp.NewRouter(deps),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("listening", zap.String("port", cfg.Port), zap.Strings("rpc_urls", cfg.RPCURLs))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")
	shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shCancel()
	_ = srv.Shutdown(shCtx)
}

// Command raffled runs the raffle settlement service.
//
//	raffled [-config path]             serve the API
//	raffled token -sub ADDR [-role r]  mint a bearer token for local testing
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/R3E-Network/raffle_layer/internal/app/httpapi"
	"github.com/R3E-Network/raffle_layer/internal/app/services/raffles"
	"github.com/R3E-Network/raffle_layer/internal/chain"
	"github.com/R3E-Network/raffle_layer/internal/config"
	"github.com/R3E-Network/raffle_layer/internal/middleware"
	"github.com/R3E-Network/raffle_layer/internal/platform/migrations"
	"github.com/R3E-Network/raffle_layer/internal/raffle"
	"github.com/R3E-Network/raffle_layer/internal/raffle/postgres"
	"github.com/R3E-Network/raffle_layer/pkg/logger"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := mintToken(os.Args[2:]); err != nil {
			log.Fatalf("token: %v", err)
		}
		return
	}

	configPath := flag.String("config", "", "Path to the YAML config (default $RAFFLE_CONFIG or "+config.DefaultPath+")")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := run(cfg); err != nil {
		log.Fatalf("raffled: %v", err)
	}
}

func run(cfg config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lg := logger.New(cfg.Logging)
	addresses, err := chain.ParseFormat(cfg.Raffle.AddressFormat)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, cfg.Database, lg)
	if err != nil {
		return err
	}
	defer closeStore()

	querier, err := accountQuerier(cfg, lg)
	if err != nil {
		return err
	}

	contract, err := addresses.Normalize(cfg.Raffle.Contract)
	if err != nil {
		return fmt.Errorf("raffle.contract: %w", err)
	}
	svc := raffles.New(raffle.NewEngine(store, querier), raffle.Identity(contract), lg.Named("raffles"))

	if ep := cfg.Services.VRF; ep.Enabled {
		svc.WithVRF(raffles.NewVRFClient(raffles.VRFClientConfig{
			URL:      ep.URL,
			Secret:   ep.Secret,
			Timeout:  ep.Timeout,
			Callback: ep.Callback,
		}))
	} else {
		lg.Warn("VRF oracle disabled; randomness must be delivered manually")
	}

	admin, msg, err := instantiateMsg(cfg.Raffle, addresses)
	if err != nil {
		return err
	}
	if _, err := svc.EnsureInstantiated(ctx, admin, msg); err != nil {
		return fmt.Errorf("instantiate: %w", err)
	}

	var keeper *raffles.Keeper
	if cfg.Keeper.Enabled {
		keeper = raffles.NewKeeper(svc, admin, lg.Named("keeper"))
		if err := keeper.Start(cfg.Keeper.Schedule); err != nil {
			return err
		}
	}

	stop := make(chan struct{})
	defer close(stop)
	var limiter *middleware.RateLimiter
	if cfg.RateLimit.RequestsPerSecond > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, lg.Named("ratelimit"))
		limiter.StartCleanup(5*time.Minute, stop)
	}

	handler, err := httpapi.NewHandler(httpapi.Options{
		Service:        svc,
		Log:            lg.Named("http"),
		JWTSecret:      []byte(cfg.Auth.JWTSecret),
		GovernanceRole: cfg.Auth.GovernanceRole,
		Addresses:      addresses,
		RateLimiter:    limiter,
		AuditFile:      cfg.Server.AuditFile,
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		lg.WithField("addr", cfg.Server.Addr).Info("raffled listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		lg.WithField("signal", sig.String()).Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		lg.WithError(err).Warn("shutdown error")
	}
	if keeper != nil {
		keeper.Stop(shutdownCtx)
	}
	lg.Info("raffled stopped")
	return nil
}

func openStore(ctx context.Context, cfg config.DatabaseConfig, lg *logger.Logger) (raffle.Store, func(), error) {
	if cfg.Driver != "postgres" {
		lg.Warn("using in-memory store; state is lost on restart")
		return raffle.NewMemoryStore(), func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}
	if err := migrations.Apply(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("apply migrations: %w", err)
	}
	lg.Info("postgres store ready")
	return postgres.New(db), func() { _ = db.Close() }, nil
}

// accountQuerier prefers chain state, with the indexer serving what the node
// cannot answer.
func accountQuerier(cfg config.Config, lg *logger.Logger) (raffle.AccountQuerier, error) {
	var indexer raffle.AccountQuerier
	if ep := cfg.Services.Accounts; ep.Enabled {
		indexer = raffles.NewAccountsClient(ep.URL, ep.Secret, ep.Timeout)
	}
	if cfg.Chain.RPCURL == "" {
		if indexer == nil {
			lg.Warn("no accounts indexer or Neo node configured; gating and discount conditions see empty balances")
			return raffle.EmptyAccounts{}, nil
		}
		return indexer, nil
	}
	node, err := chain.NewClient(chain.Config{RPCURL: cfg.Chain.RPCURL, Timeout: cfg.Chain.Timeout})
	if err != nil {
		return nil, err
	}
	q, err := raffles.NewNodeQuerier(node, cfg.Chain.Denoms, indexer)
	if err != nil {
		return nil, fmt.Errorf("chain.denoms: %w", err)
	}
	lg.WithField("rpc_url", cfg.Chain.RPCURL).Info("account conditions read from Neo node")
	return q, nil
}

// instantiateMsg builds the first-start configuration. The sender is the
// configured owner, falling back to the escrow contract.
func instantiateMsg(rc config.RaffleConfig, addresses chain.Format) (raffle.Identity, raffle.InstantiateMsg, error) {
	norm := func(field, v string) (*raffle.Identity, error) {
		if v == "" {
			return nil, nil
		}
		id, err := addresses.Normalize(v)
		if err != nil {
			return nil, fmt.Errorf("raffle.%s: %w", field, err)
		}
		out := raffle.Identity(id)
		return &out, nil
	}

	rate, err := raffle.ParseRate(rc.RaffleFee)
	if err != nil {
		return "", raffle.InstantiateMsg{}, fmt.Errorf("raffle.raffle_fee: %w", err)
	}
	owner, err := norm("owner", rc.Owner)
	if err != nil {
		return "", raffle.InstantiateMsg{}, err
	}
	feeAddr, err := norm("fee_addr", rc.FeeAddr)
	if err != nil {
		return "", raffle.InstantiateMsg{}, err
	}
	oracle, err := norm("oracle", rc.Oracle)
	if err != nil {
		return "", raffle.InstantiateMsg{}, err
	}
	sender, err := norm("contract", rc.Contract)
	if err != nil {
		return "", raffle.InstantiateMsg{}, err
	}
	if owner != nil {
		sender = owner
	}

	msg := raffle.InstantiateMsg{
		Name:      rc.Name,
		FeeAddr:   feeAddr,
		RaffleFee: rate,
		Oracle:    *oracle,
		OracleFee: raffle.NewCoin(rc.OracleFeeAmount, rc.OracleFeeDenom),
	}
	if rc.CreationFeeAmount > 0 {
		msg.CreationCoins = []raffle.Coin{raffle.NewCoin(rc.CreationFeeAmount, rc.CreationFeeDenom)}
	} else {
		msg.CreationCoins = []raffle.Coin{}
	}
	if rc.MaxTicketsPerRaffle > 0 {
		msg.MaxTicketsPerRaffle = &rc.MaxTicketsPerRaffle
	}
	if rc.MinimumRaffleDuration > 0 {
		msg.MinimumRaffleDuration = &rc.MinimumRaffleDuration
	}
	if rc.RandomnessTimeout > 0 {
		msg.RandomnessTimeout = &rc.RandomnessTimeout
	}
	return *sender, msg, nil
}

func mintToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	secret := fs.String("secret", os.Getenv("RAFFLE_JWT_SECRET"), "HMAC secret (default $RAFFLE_JWT_SECRET)")
	sub := fs.String("sub", "", "Caller address placed in the subject claim")
	role := fs.String("role", "", "Optional role claim, e.g. governance")
	ttl := fs.Duration("ttl", time.Hour, "Token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *secret == "" || *sub == "" {
		fs.Usage()
		os.Exit(1)
	}
	tok, err := middleware.IssueToken([]byte(*secret), *sub, *role, *ttl)
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}

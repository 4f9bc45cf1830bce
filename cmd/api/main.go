package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"fleetgov.org/internal/audit"
	"fleetgov.org/internal/auth"
	"fleetgov.org/internal/config"
	"fleetgov.org/internal/httpapi"
	"fleetgov.org/internal/notify"
	"fleetgov.org/internal/obs"
	"fleetgov.org/internal/store/memory"
	"fleetgov.org/internal/store/pg"
	"fleetgov.org/internal/store/redis"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	obs.InitLogger(cfg.Env, cfg.LogLevel)
	defer obs.Sync()
	obs.Init()
	obs.InitBuildInfo(version, commit)
	log := obs.Named("main")

	// Store selection: PostgreSQL when a DSN is configured, in-memory
	// otherwise. Redis, when configured, takes over the volatile state.
	var (
		store auth.Store
		probe httpapi.ReadyProbe
		units []auth.OrgUnit
	)
	if cfg.PostgresDSN != "" {
		pgStore, err := pg.Open(cfg.PostgresDSN)
		if err != nil {
			log.Fatal("open postgres", zap.Error(err))
		}
		defer pgStore.Close()
		units, err = pgStore.LoadOrgUnits(ctx)
		if err != nil {
			log.Fatal("load organizations", zap.Error(err))
		}
		store = pgStore
		probe.DB = pgStore.DB()
	} else {
		log.Warn("no postgres DSN configured, using in-memory store")
		store = memory.New()
		units = devOrgUnits()
	}

	if cfg.RedisAddr != "" {
		rdb, err := redis.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			log.Fatal("connect redis", zap.Error(err))
		}
		defer rdb.Close()
		store = redis.NewOverlay(store, rdb)
		probe.Redis = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	scope, err := auth.NewScope(units)
	if err != nil {
		log.Fatal("organizational scope", zap.Error(err))
	}

	sender, err := buildSender(cfg, log)
	if err != nil {
		log.Fatal("notification sender", zap.Error(err))
	}
	recorder := audit.NewLogRecorder(obs.Logger())

	svc, err := auth.NewService(store, sender,
		auth.WithSigningSecret(cfg.Auth.SigningSecret),
		auth.WithIssuer(cfg.Auth.TokenIssuer),
		auth.WithLockoutThreshold(cfg.Auth.LockoutThreshold),
		auth.WithLockoutDuration(cfg.Auth.LockoutDuration),
		auth.WithOTPTTL(cfg.Auth.OTPTTL),
		auth.WithSessionTTL(cfg.Auth.SessionTTL),
		auth.WithAudit(recorder),
	)
	if err != nil {
		log.Fatal("auth service", zap.Error(err))
	}

	gate, err := auth.NewGate(svc, scope, recorder)
	if err != nil {
		log.Fatal("auth gate", zap.Error(err))
	}

	api := httpapi.New(svc, gate, store.Officials(), probe, version)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("starting fleetgov-api",
			zap.String("version", version), zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("stopped")
}

// buildSender assembles the delivery dispatcher from whatever channels are
// configured. With neither SMTP nor an SMS gateway, codes go to the log.
func buildSender(cfg *config.Config, log *zap.Logger) (auth.Sender, error) {
	var email, sms auth.Sender
	if cfg.SMTP.Host != "" {
		es, err := notify.NewEmailSender(cfg.SMTP)
		if err != nil {
			return nil, err
		}
		email = es
	}
	if cfg.SMS.GatewayURL != "" {
		sms = notify.NewSMSSender(cfg.SMS)
	}
	if email == nil && sms == nil {
		if cfg.Env == "prod" {
			return nil, errors.New("no delivery channel configured")
		}
		log.Warn("no delivery channel configured, codes will be logged")
		dev := &notify.LogSender{Log: obs.Named("notify")}
		return notify.NewDispatcher(dev, dev, obs.Named("notify")), nil
	}
	return notify.NewDispatcher(email, sms, obs.Named("notify")), nil
}

// devOrgUnits is the organizational tree used when running without a
// database. Mirrors the seed data.
func devOrgUnits() []auth.OrgUnit {
	return []auth.OrgUnit{
		{ID: 1, Name: "Ministry of Transport"},
		{ID: 2, ParentID: 1, Name: "State Department for Transport"},
		{ID: 3, ParentID: 2, Name: "Nairobi Region"},
		{ID: 4, ParentID: 2, Name: "Coast Region"},
		{ID: 5, ParentID: 3, Name: "Nairobi Central Depot"},
		{ID: 6, ParentID: 4, Name: "Mombasa Depot"},
	}
}

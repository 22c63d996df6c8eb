// Package api implements app.Runner for the reward API server process.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	accountservice "github.com/chainsafe/qtx-rewards/pkg/account/service"
	"github.com/chainsafe/qtx-rewards/pkg/accountstore"
	apphttp "github.com/chainsafe/qtx-rewards/pkg/app/http"
	"github.com/chainsafe/qtx-rewards/pkg/auth"
	"github.com/chainsafe/qtx-rewards/pkg/catalog"
	"github.com/chainsafe/qtx-rewards/pkg/config"
	"github.com/chainsafe/qtx-rewards/pkg/oracle"
	"github.com/chainsafe/qtx-rewards/pkg/pgutil"
	reconcilerpkg "github.com/chainsafe/qtx-rewards/pkg/reconciler"
	"github.com/chainsafe/qtx-rewards/pkg/reward"
	rewardservice "github.com/chainsafe/qtx-rewards/pkg/reward/service"
	"github.com/chainsafe/qtx-rewards/pkg/taskverify"
	"github.com/chainsafe/qtx-rewards/pkg/txstore"
	"github.com/chainsafe/qtx-rewards/pkg/verifycache"
)

const presaleBonusTaskID = "presaleBonus"

// Server holds cfg to init the api server.
type Server struct {
	cfg *config.Config
}

// stores groups the persistence backends selected by database.driver
type stores struct {
	accounts accountstore.Store
	txs      txstore.Store
	close    func()
}

// taskVerifiers binds the tasks with their own completion rules. Every other
// task only needs a proof.
func taskVerifiers(cat *catalog.Catalog, st *stores) *taskverify.Registry {
	return taskverify.NewRegistry(nil).
		Register(presaleBonusTaskID, taskverify.PresalePurchased(st.txs, cat.PresaleBonusMinTON())).
		Register(reward.QuotexTaskID, taskverify.SubmissionAged(st.accounts, cat.TaskSubmissionDelay(), nil))
}

// NewServer initializes new api server.
func NewServer(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("api server config is nil")
	}
	cfg := s.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting reward API server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("database_driver", cfg.Database.Driver),
	)

	st, err := s.openStores(logger)
	if err != nil {
		return err
	}
	defer st.close()

	cache, closeCache, err := s.openCache(ctx, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	tonClient, err := oracle.NewTonAPIClient(cfg.Oracle, logger)
	if err != nil {
		return fmt.Errorf("create ton oracle: %w", err)
	}

	cat, err := catalog.New(cfg.Rewards)
	if err != nil {
		return fmt.Errorf("load reward catalog: %w", err)
	}
	loc, err := time.LoadLocation(cfg.Rewards.Timezone)
	if err != nil {
		return fmt.Errorf("load reward timezone %q: %w", cfg.Rewards.Timezone, err)
	}

	tasks := taskVerifiers(cat, st)

	rewardSvc := rewardservice.NewService(
		st.accounts,
		st.txs,
		reward.NewRules(cat, loc),
		tasks,
		tonClient,
		cache,
		rewardservice.PurchaseConfig{
			ReceivingWallet: cfg.Oracle.ReceivingWallet,
			LookbackWindow:  cfg.Oracle.LookbackWindow,
			Tolerance:       tonClient.Tolerance(),
			VerificationTTL: cfg.Oracle.VerificationTTL,
			InFlightLockTTL: cfg.Oracle.InFlightLockTTL,
		},
		logger,
	)

	accountSvc := accountservice.NewService(
		st.accounts,
		st.txs,
		tonClient,
		nil,
		cat,
		accountservice.Config{
			ReceivingWallet: cfg.Oracle.ReceivingWallet,
			Testnet:         cfg.Oracle.Network == "testnet",
		},
		logger,
	)

	rec := reconcilerpkg.New(st.accounts, st.txs, logger)
	s.runInitialReconcile(ctx, rec, logger)

	stopReconcile := s.startPeriodicReconcile(rec, logger)
	// We will call stopReconcile explicitly after ServeAndWait returns for deterministic shutdown order.
	defer stopReconcile()

	router := s.setupRouter(
		rewardservice.NewLog(rewardSvc, logger),
		accountservice.NewLog(accountSvc, logger),
		logger,
	)

	err = apphttp.ServeAndWait(ctx, router, logger, &cfg.Server)

	// Stop background work before deferred store and cache closes kick in.
	stopReconcile()

	return err
}

func (s *Server) openStores(logger *zap.Logger) (*stores, error) {
	if s.cfg.Database.Driver == "memory" {
		logger.Warn("Using in-memory stores; balances are lost on restart")
		return &stores{
			accounts: accountstore.NewMemoryStore(),
			txs:      txstore.NewMemoryStore(),
			close:    func() {},
		}, nil
	}

	db, err := pgutil.ConnectDB(&s.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	logger.Info("Connected to database",
		zap.String("host", s.cfg.Database.Host),
		zap.String("database", s.cfg.Database.Database),
	)

	return &stores{
		accounts: accountstore.NewStore(db, s.cfg.Database.MaxUpdateRetries),
		txs:      txstore.NewStore(db),
		close:    closeDB(db),
	}, nil
}

func closeDB(db *bun.DB) func() {
	return func() { _ = db.Close() }
}

func (s *Server) openCache(ctx context.Context, logger *zap.Logger) (verifycache.Cache, func(), error) {
	if s.cfg.Redis.Addr == "" {
		logger.Warn("Redis not configured; payment verification locks are local to this process")
		return verifycache.NewMemoryCache(), func() {}, nil
	}

	client, err := verifycache.Connect(ctx, s.cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Connected to redis", zap.String("addr", s.cfg.Redis.Addr))

	return verifycache.NewRedisCache(client, logger), func() { _ = client.Close() }, nil
}

func (s *Server) runInitialReconcile(
	ctx context.Context,
	reconciler *reconcilerpkg.Reconciler,
	logger *zap.Logger,
) {
	if s.cfg.Reconciliation.InitialTimeout <= 0 {
		return
	}

	logger.Info("Running initial balance reconciliation",
		zap.Duration("timeout", s.cfg.Reconciliation.InitialTimeout),
	)

	startupCtx, cancel := context.WithTimeout(ctx, s.cfg.Reconciliation.InitialTimeout)
	defer cancel()

	if _, err := reconciler.ReconcileAll(startupCtx); err != nil {
		logger.Warn("Initial reconciliation failed (will retry periodically)", zap.Error(err))
	}
}

func (s *Server) startPeriodicReconcile(
	reconciler *reconcilerpkg.Reconciler,
	logger *zap.Logger,
) func() {
	if s.cfg.Reconciliation.Interval <= 0 {
		return func() {}
	}

	logger.Info("Starting periodic reconciliation", zap.Duration("interval", s.cfg.Reconciliation.Interval))
	reconciler.StartPeriodicReconciliation(s.cfg.Reconciliation.Interval)

	return reconciler.Stop
}

func (s *Server) setupRouter(
	rewardSvc rewardservice.Service,
	accountSvc accountservice.Service,
	logger *zap.Logger,
) chi.Router {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	if s.cfg.Metrics.Enabled {
		r.Handle(s.cfg.Metrics.Path, promhttp.Handler())
	}

	validator := auth.NewJWTValidator(s.cfg.Auth.JWTSecret, s.cfg.Auth.Issuer)
	limiter := apphttp.NewRateLimiter(s.cfg.RateLimit.RequestsPerMinute, s.cfg.RateLimit.Burst)

	r.Route("/api/v1", func(r chi.Router) {
		rewardservice.RegisterPublicRoutes(r, rewardSvc, logger)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(validator, logger))
			accountservice.RegisterRoutes(r, accountSvc, logger)

			r.Group(func(r chi.Router) {
				r.Use(limiter.Middleware(userKey))
				rewardservice.RegisterRoutes(r, rewardSvc, logger)
			})
		})
	})

	return r
}

func userKey(r *http.Request) string {
	userID, _ := auth.UserIDFromContext(r.Context())
	return userID
}

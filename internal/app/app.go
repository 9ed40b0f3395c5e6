package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/pertindetu/internal/backend"
	"github.com/hitoshi/pertindetu/internal/config"
	"github.com/hitoshi/pertindetu/internal/database"
	"github.com/hitoshi/pertindetu/internal/handler"
	"github.com/hitoshi/pertindetu/internal/logger"
	"github.com/hitoshi/pertindetu/internal/marketplace"
	"github.com/hitoshi/pertindetu/internal/metrics"
	"github.com/hitoshi/pertindetu/internal/middleware"
	"github.com/hitoshi/pertindetu/internal/repository"
	"github.com/hitoshi/pertindetu/internal/security"
	"github.com/hitoshi/pertindetu/internal/session"
	"github.com/hitoshi/pertindetu/internal/worker/cleanup"
)

const (
	// sessionEvictInterval はアイドルセッションの追い出し間隔。
	sessionEvictInterval = time.Minute
	// cleanupInterval はスナップショット削除ジョブの実行間隔。
	cleanupInterval = 24 * time.Hour
	// dbPingTimeout は起動時のDB疎通確認のタイムアウト。
	dbPingTimeout = 5 * time.Second
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再セットアップ
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("marketplace_api_url", cfg.MarketplaceAPIURL),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg, CommandArg(args))
	default:
		return runServe(cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return nil, err
	}
	if err := database.Ping(context.Background(), db, dbPingTimeout); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// server は serve モードで構築される依存関係一式。
type server struct {
	handler     http.Handler
	sessions    *session.Manager
	rateLimiter *middleware.RateLimiter
}

// close はバックグラウンド処理を停止する。
func (s *server) close() {
	s.sessions.Stop()
	s.rateLimiter.Stop()
}

// newServer は設定とDB接続から全依存関係をワイヤリングする。
// DBへの接続確認は行わない。
func newServer(cfg *config.Config, db *sql.DB, reg *prometheus.Registry) *server {
	log := slog.Default()

	// 1. リポジトリとメトリクス
	snapshots := repository.NewPostgresSnapshotRepo(db)
	collector := metrics.NewCollector(reg)

	// 2. マーケットプレイスAPIクライアント
	client := backend.NewClient(
		&http.Client{Timeout: cfg.BackendTimeout},
		log,
		cfg.MarketplaceAPIURL,
		backend.Options{
			RatePerSec:           cfg.BackendRatePerSec,
			Burst:                cfg.BackendBurst,
			ProviderLookupPath:   cfg.ProviderLookupPath,
			ProviderScanPageSize: cfg.ProviderScanPageSize,
			Metrics:              collector,
		},
	)

	// 3. セッションとドメインサービス
	sessions := session.NewManager(client, snapshots, collector, log, session.ManagerConfig{
		IdleTimeout:     cfg.SessionIdleTimeout,
		CleanupInterval: sessionEvictInterval,
	})
	orders := marketplace.NewOrderService(client, collector, log)
	reviews := marketplace.NewReviewService(client, log)
	catalog := marketplace.NewCatalogService(client, log)
	accounts := marketplace.NewAccountService(client, log)

	// 4. ルーターの構築
	// RATE_LIMIT_* はreq/min単位で、リミッター側でreq/secに変換する
	limiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitLogin))

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            log,
		SessionResolver:   sessions,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter:    limiter,
		HealthChecker:  db,
		MetricsHandler: metrics.Handler(reg),
		Sessions:       sessions,
		Actors:         sessions,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},
		OrderService:   orders,
		ReviewService:  reviews,
		CatalogService: catalog,
		AccountService: accounts,
		Sanitizer:      security.NewTextSanitizer(),
	})

	return &server{handler: router, sessions: sessions, rateLimiter: limiter}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	srv := newServer(cfg, db, prometheus.NewRegistry())
	defer srv.close()

	httpServer := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	listenErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", httpServer.Addr),
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			listenErr <- err
		}
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 保持期間を過ぎたセッションスナップショットを日次で削除する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	job := cleanup.NewCleanupJob(repository.NewPostgresSnapshotRepo(db), slog.Default(), cfg.SnapshotRetentionDays)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cleanupInterval),
		slog.Int("retention_days", job.RetentionDays),
	)

	// 起動直後に1回実行し、以降はcleanupIntervalごとに実行（ブロッキング）
	job.Start(ctx, cleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// direction が空の場合は未適用のマイグレーションをすべて適用する。
func runMigrate(cfg *config.Config, direction string) error {
	dir, err := database.ParseDirection(direction)
	if err != nil {
		return err
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		slog.String("direction", string(dir)),
	)

	version, err := database.Apply(cfg.DatabaseURL, dir)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}

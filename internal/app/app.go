package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/pawhaven/pawgate/internal/auth"
	"github.com/pawhaven/pawgate/internal/backend"
	"github.com/pawhaven/pawgate/internal/catalog"
	"github.com/pawhaven/pawgate/internal/config"
	"github.com/pawhaven/pawgate/internal/database"
	"github.com/pawhaven/pawgate/internal/forms"
	"github.com/pawhaven/pawgate/internal/handler"
	"github.com/pawhaven/pawgate/internal/idp"
	"github.com/pawhaven/pawgate/internal/imagehost"
	"github.com/pawhaven/pawgate/internal/logger"
	"github.com/pawhaven/pawgate/internal/metrics"
	"github.com/pawhaven/pawgate/internal/middleware"
	"github.com/pawhaven/pawgate/internal/repository"
	"github.com/pawhaven/pawgate/internal/security"
	"github.com/pawhaven/pawgate/internal/session"
	"github.com/pawhaven/pawgate/internal/toast"
	"github.com/pawhaven/pawgate/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

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
			port = "3000"
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
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// sessionTokenSource はリクエストのセッションストアからIDトークンを取り出す。
type sessionTokenSource struct{}

func (sessionTokenSource) Token(ctx context.Context) string {
	store, err := middleware.StoreFromContext(ctx)
	if err != nil {
		return ""
	}
	return store.Token()
}

// timeoutRestorer はセッション復元に上限時間を課す。
// 復元が間に合わない場合でもリクエストを無期限に待たせない。
type timeoutRestorer struct {
	service *auth.Service
	timeout time.Duration
}

func (r *timeoutRestorer) RestoreSession(ctx context.Context, store *session.Store) (session.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.service.RestoreSession(ctx, store)
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	sessionRepo := repository.NewPostgresSessionRepo(db)
	localStore := repository.NewPostgresLocalStore(db)

	// 3. メトリクスとトースト
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)
	toastCenter := toast.NewCenter()

	// 4. セッション管理
	sessionMaxAge := time.Duration(cfg.SessionMaxAge) * time.Second
	manager := session.NewManager(sessionRepo, localStore, sessionMaxAge, func(sessionID string) session.Notifier {
		return toastCenter.For(sessionID)
	})

	// 5. IDプロバイダーとバックエンドクライアント
	provider := idp.NewRESTProvider(idp.RESTProviderConfig{
		APIKey:       cfg.IdPAPIKey,
		ClientID:     cfg.IdPClientID,
		ClientSecret: cfg.IdPClientSecret,
		RedirectURL:  cfg.IdPRedirectURL,
		Timeout:      cfg.RequestTimeout,
	})

	backendClient := backend.NewClient(
		&http.Client{Timeout: cfg.RequestTimeout},
		cfg.APIBaseURL,
		sessionTokenSource{},
		slog.Default(),
	)
	backendClient.WithMetrics(collector.RecordBackendRequest)
	// 401/403はどのエンドポイント経由でも同じ経路でセッションを無効化する
	backendClient.OnUnauthorized(func(ctx context.Context, status int) {
		collector.RecordForcedLogout(status)
		store, err := middleware.StoreFromContext(ctx)
		if err != nil {
			return
		}
		if err := store.Clear(ctx); err != nil {
			slog.Error("failed to invalidate session after backend rejection",
				slog.String("error", err.Error()),
			)
		}
	})

	// 6. ドメインサービスの初期化
	notifier := idp.NewStateNotifier()
	authService := auth.NewService(provider, backendClient, notifier, collector, slog.Default())
	catalogService := catalog.NewService(backendClient, cfg.CatalogCacheTTL, slog.Default())
	formRegistry := forms.NewRegistry()
	imageGuard := security.NewImageGuard()
	sanitizer := security.NewDescriptionSanitizer()
	imageHost := imagehost.NewClient(
		&http.Client{Timeout: cfg.RequestTimeout},
		cfg.ImageHostKey,
		slog.Default(),
	)

	// 7. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(rateLimiterConfig(cfg))
	defer rateLimiter.Stop()

	sessionConfig := middleware.SessionConfig{
		CookieSecure: cfg.CookieSecure,
		MaxAge:       cfg.SessionMaxAge,
		Secret:       cfg.SessionSecret,
	}

	deps := &handler.RouterDeps{
		SessionManager:  manager,
		SessionRestorer: &timeoutRestorer{service: authService, timeout: cfg.InitTimeout},
		SessionConfig:   sessionConfig,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:      cfg.BaseURL,
			CookieSecure: cfg.CookieSecure,
		},

		Catalog:     catalogService,
		Invalidator: catalogService,
		Sanitizer:   sanitizer,

		AdoptionBackend: backendClient,
		FormRegistry:    formRegistry,
		Toasts:          toastCenter,

		ProfileBackend: backendClient,
		ImageGuard:     imageGuard,
		ImageUploader:  imageHost,

		NotificationBackend: backendClient,
	}

	router := handler.NewRouter(deps)

	// /health と /metrics はセッションミドルウェアの外に置く
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", metrics.SetupMetricsRoute(registry))
	mux.Handle("/", router)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// rateLimiterConfig はreq/min単位の設定値をreq/secのリミッター設定に変換する。
func rateLimiterConfig(cfg *config.Config) middleware.RateLimiterConfig {
	limiterCfg := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		limiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		limiterCfg.GeneralBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitLogin > 0 {
		limiterCfg.LoginRate = rate.Limit(float64(cfg.RateLimitLogin) / 60.0)
		limiterCfg.LoginBurst = cfg.RateLimitLogin
	}
	return limiterCfg
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、期限切れセッションのクリーンアップジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. ジョブの初期化
	sessionRepo := repository.NewPostgresSessionRepo(db)
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)
	cleanupJob := cleanup.NewCleanupJob(sessionRepo, collector, slog.Default())

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.SessionCleanupInterval),
	)

	// クリーンアップジョブをメインgoroutineで実行（ブロッキング）
	cleanupJob.Start(ctx, cfg.SessionCleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
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

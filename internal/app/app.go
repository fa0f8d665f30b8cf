package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/imgtag/internal/config"
	"github.com/hitoshi/imgtag/internal/handler"
	"github.com/hitoshi/imgtag/internal/logger"
	"github.com/hitoshi/imgtag/internal/metrics"
	"github.com/hitoshi/imgtag/internal/middleware"
	"github.com/hitoshi/imgtag/internal/render"
	"github.com/hitoshi/imgtag/internal/security"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、LOG_LEVELに従ってJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再初期化する
	level, _ := logger.ParseLevel(cfg.LogLevel)
	logger.SetupDefault(w, level)

	return cfg, nil
}

// server はserveコマンドで起動する依存関係一式。
type server struct {
	cfg         *config.Config
	store       *config.PolicyStore
	registry    *prometheus.Registry
	rateLimiter *middleware.RateLimiter
	watcher     *config.PolicyWatcher
	handler     http.Handler
}

// newServer は設定から全依存関係をワイヤリングする。
// ポリシーファイルが読めない場合は起動を中止する。
func newServer(cfg *config.Config, log *slog.Logger) (*server, error) {
	// 1. 検証ポリシーの読み込み
	settings, err := cfg.LoadSettings()
	if err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}
	store := config.NewPolicyStore(settings)

	// 2. メトリクス
	// 無効な場合はnilインターフェースのまま渡す
	var (
		registry       *prometheus.Registry
		gatherer       prometheus.Gatherer
		renderRecorder render.Recorder
		statusRecorder middleware.StatusRecorder
		reloadRecorder config.ReloadRecorder
		fixRecorder    handler.SelfClosingRecorder
	)
	if cfg.MetricsEnabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		collector := metrics.NewCollector(registry)
		gatherer = registry
		renderRecorder = collector
		statusRecorder = collector
		reloadRecorder = collector
		fixRecorder = collector
	}

	// 3. 描画
	renderer := render.NewRenderer(store, security.NewImgSanitizer(), nil, renderRecorder, log)

	// 4. ポリシーファイルの監視
	var watcher *config.PolicyWatcher
	if cfg.WatchPolicy {
		watcher, err = config.NewPolicyWatcher(cfg, store, reloadRecorder, log)
		if err != nil {
			return nil, fmt.Errorf("failed to start policy watcher: %w", err)
		}
	}

	// 5. ルーター
	rateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig(cfg.RateLimitPerMinute), log)

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:              log,
		CORSAllowedOrigin:   cfg.CORSAllowedOrigin,
		RateLimiter:         rateLimiter,
		StatusRecorder:      statusRecorder,
		Renderer:            renderer,
		SelfClosing:         store,
		SelfClosingRecorder: fixRecorder,
		MetricsGatherer:     gatherer,
	})

	return &server{
		cfg:         cfg,
		store:       store,
		registry:    registry,
		rateLimiter: rateLimiter,
		watcher:     watcher,
		handler:     router,
	}, nil
}

// serve はctxがキャンセルされるまでHTTPサーバーを実行する。
// キャンセル後はShutdownTimeoutの範囲でグレースフルシャットダウンを行う。
func (s *server) serve(ctx context.Context, ln net.Listener) error {
	defer s.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if s.watcher != nil {
		go s.watcher.Run(ctx)
	}

	httpServer := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", ln.Addr().String()))
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// close はレートリミッターとポリシー監視を停止する。複数回呼んでもよい。
func (s *server) close() {
	s.rateLimiter.Stop()
	if s.watcher != nil {
		if err := s.watcher.Close(); err != nil {
			slog.Warn("failed to close policy watcher", slog.String("error", err.Error()))
		}
	}
}

// listenAndServe はaddrで待ち受けてserveを実行する。
// 待ち受けに失敗した場合もnewServerで開始した処理を停止する。
func (s *server) listenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.close()
		return fmt.Errorf("failed to listen: %w", err)
	}

	slog.Info("starting application",
		slog.String("port", s.cfg.ServerPort),
		slog.String("policy_file", s.cfg.PolicyFile),
		slog.Bool("watch_policy", s.cfg.WatchPolicy),
		slog.Bool("metrics_enabled", s.cfg.MetricsEnabled),
	)

	return s.serve(ctx, ln)
}

// runServe はAPIサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルでctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	s, err := newServer(cfg, slog.Default())
	if err != nil {
		return err
	}
	return s.listenAndServe(ctx, ":"+cfg.ServerPort)
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

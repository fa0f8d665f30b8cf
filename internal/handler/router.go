// Package handler は画像URL判定エンジンを公開するHTTPハンドラーを提供する。
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/imgtag/internal/metrics"
	"github.com/hitoshi/imgtag/internal/middleware"
	"github.com/hitoshi/imgtag/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	StatusRecorder    middleware.StatusRecorder

	// 画像
	Renderer RendererInterface
	Messages model.SrcMessageCatalog

	// wikitext
	SelfClosing         SelfClosingSwitch
	SelfClosingRecorder SelfClosingRecorder

	// メトリクス。nilの場合は /metrics を公開しない
	MetricsGatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Recovery → Logging → SecurityHeaders → CORS → RateLimit
//
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger, deps.StatusRecorder))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	imgHandler := NewImgHandler(deps.Renderer, deps.Messages)
	wikitextHandler := NewWikitextHandler(deps.SelfClosing, deps.SelfClosingRecorder)

	r.Get("/health", Health)
	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}

		r.Route("/api/img", func(r chi.Router) {
			r.Post("/validate", imgHandler.Validate)
			r.Post("/render", imgHandler.Render)
		})

		r.Post("/api/wikitext/fix-self-closing", wikitextHandler.FixSelfClosing)
	})

	return r
}

// Health はヘルスチェックに応答する。
// GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

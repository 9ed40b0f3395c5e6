package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/pertindetu/internal/middleware"
	"github.com/hitoshi/pertindetu/internal/security"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	SessionResolver   middleware.SessionResolver
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter

	// 公開エンドポイント
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// 認証・セッション
	Sessions   SessionService
	Actors     ActorResolver
	AuthConfig AuthHandlerConfig

	// 注文・レビュー
	OrderService  OrderServiceInterface
	ReviewService ReviewServiceInterface

	// 公開カタログ・新規登録
	CatalogService CatalogServiceInterface
	AccountService AccountServiceInterface

	Sanitizer security.TextSanitizer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → RequestID → Logging → SecurityHeaders → CORS → CSRF → Session → RateLimit
//
// /health, /metrics, /api/csrf-token はCSRF・セッション検証の外に配置する。
// 公開カタログはセッション不要で、クライアントIP単位で制限する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sanitizer := deps.Sanitizer
	if sanitizer == nil {
		sanitizer = security.NewTextSanitizer()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.Sessions, deps.AuthConfig, sanitizer)
	orderHandler := NewOrderHandler(deps.OrderService, deps.Actors, sanitizer)
	reviewHandler := NewReviewHandler(deps.ReviewService, deps.Actors, sanitizer)
	catalogHandler := NewCatalogHandler(deps.CatalogService, sanitizer)
	accountHandler := NewAccountHandler(deps.AccountService)

	// --- 認証不要のルート ---
	r.Method(http.MethodGet, "/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		r.Route("/auth", func(r chi.Router) {
			r.With(deps.RateLimiter.LoginMiddleware()).Post("/login", authHandler.Login)
			r.With(deps.RateLimiter.LoginMiddleware()).Post("/register", accountHandler.Register)
			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)

			r.With(
				middleware.NewSessionMiddleware(deps.SessionResolver),
				deps.RateLimiter.GeneralMiddleware(),
			).Post("/refresh", authHandler.Refresh)
		})

		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.PublicMiddleware())
			r.Get("/api/services", catalogHandler.ListServices)
			r.Get("/api/services/{id}", catalogHandler.GetService)
		})

		// --- 認証が必要なルート ---
		// ミドルウェアスタック: Session → RateLimit(General)
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewSessionMiddleware(deps.SessionResolver))
			r.Use(deps.RateLimiter.GeneralMiddleware())

			r.Post("/api/me/become-provider", authHandler.BecomeProvider)

			r.Route("/api/orders", func(r chi.Router) {
				r.Get("/", orderHandler.ListAllOrders)
				r.Post("/", orderHandler.CreateOrder)
				r.Get("/client", orderHandler.ListClientOrders)
				r.Get("/provider", orderHandler.ListProviderOrders)
				r.Get("/status/{status}", orderHandler.ListOrdersByStatus)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", orderHandler.GetOrder)
					r.Post("/transitions", orderHandler.TransitionOrder)
					r.Post("/cancel", orderHandler.CancelOrder)
				})
			})

			r.Get("/api/services/{id}/reviews", reviewHandler.ListServiceReviews)

			r.Route("/api/reviews", func(r chi.Router) {
				r.Get("/mine", reviewHandler.ListMyReviews)
				r.Post("/", reviewHandler.CreateReview)
				r.Put("/{id}", reviewHandler.UpdateReview)
				r.Delete("/{id}", reviewHandler.DeleteReview)
			})
		})
	})

	return r
}

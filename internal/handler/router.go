package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pawhaven/pawgate/internal/forms"
	"github.com/pawhaven/pawgate/internal/middleware"
	"github.com/pawhaven/pawgate/internal/security"
	"github.com/pawhaven/pawgate/internal/session"
	"github.com/pawhaven/pawgate/internal/toast"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionManager    *session.Manager
	SessionRestorer   middleware.SessionRestorer
	SessionConfig     middleware.SessionConfig
	CSRFConfig        middleware.CSRFConfig
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ペットカタログ
	Catalog     PetCatalogInterface
	Invalidator CatalogInvalidator
	Sanitizer   security.DescriptionSanitizerService

	// 申請・寄付ウィザード
	AdoptionBackend DonationAdoptionBackend
	FormRegistry    *forms.Registry
	Toasts          *toast.Center

	// プロフィール
	ProfileBackend ProfileBackendInterface
	ImageGuard     security.ImageGuardService

	// 画像アップロード・プロキシ
	ImageUploader ImageUploader

	// 通知
	NotificationBackend NotificationBackendInterface
}

// DonationAdoptionBackend はウィザード系ハンドラーが使うバックエンド操作の合成。
type DonationAdoptionBackend interface {
	AdoptionBackendInterface
	DonationBackendInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Recovery → Logging → Session → CSRF → RateLimit(General)
//
// 認証必須ルートはさらに RequireAuth を重ねる。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 全ルートに効くミドルウェア
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewSessionMiddleware(deps.SessionManager, deps.SessionRestorer, deps.SessionConfig))
	r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
	r.Use(deps.RateLimiter.GeneralMiddleware())

	authHandler := NewAuthHandler(deps.AuthService, deps.SessionManager, deps.AuthConfig, deps.FormRegistry, deps.Toasts)
	petHandler := NewPetHandler(deps.Catalog, deps.Sanitizer)
	watchlistHandler := NewWatchlistHandler(deps.Catalog)
	adoptionHandler := NewAdoptionHandler(deps.AdoptionBackend, deps.Catalog, deps.Invalidator, deps.FormRegistry, deps.Toasts)
	donationHandler := NewDonationHandler(deps.AdoptionBackend, deps.FormRegistry, deps.Toasts)
	profileHandler := NewProfileHandler(deps.ProfileBackend, deps.ImageGuard)
	notificationHandler := NewNotificationHandler(deps.NotificationBackend)
	toastHandler := NewToastHandler(deps.Toasts)
	imageHandler := NewImageHandler(deps.ImageUploader, deps.ImageGuard)

	// --- 認証不要のルート ---

	r.Route("/auth", func(r chi.Router) {
		// ログイン系はブルートフォース対策の専用レート制限を重ねる
		r.With(deps.RateLimiter.LoginMiddleware()).Post("/login", authHandler.Login)
		r.With(deps.RateLimiter.LoginMiddleware()).Post("/register", authHandler.Register)
		r.With(deps.RateLimiter.LoginMiddleware()).Post("/login/backend", authHandler.LoginBackend)

		// OAuthフロー
		r.Get("/provider/login", authHandler.ProviderLogin)
		r.Get("/provider/callback", authHandler.ProviderCallback)

		// セッション管理
		r.Post("/logout", authHandler.Logout)
		r.Post("/reset-password", authHandler.ResetPassword)
		r.Get("/me", authHandler.Me)
	})

	// CSRFトークン配布
	r.Method(http.MethodGet, "/api/csrf", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// ペットカタログは未ログインでも閲覧できる
	r.Route("/api/pets", func(r chi.Router) {
		r.Get("/", petHandler.ListPets)
		r.Get("/{id}", petHandler.GetPet)
	})

	// ウォッチリストとトースト、テーマはセッション単位で動作する
	r.Route("/api/watchlist", func(r chi.Router) {
		r.Get("/", watchlistHandler.List)
		r.Post("/", watchlistHandler.Add)
		r.Delete("/{petId}", watchlistHandler.Remove)
	})
	r.Get("/api/toasts", toastHandler.Drain)
	r.Put("/api/theme", profileHandler.UpdateTheme)

	// 画像アップロードは会員登録フォームでも使うため認証必須にしない
	r.Route("/api/images", func(r chi.Router) {
		r.Post("/", imageHandler.Upload)
		r.Get("/proxy", imageHandler.Proxy)
	})

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewRequireAuthMiddleware(deps.SessionConfig))

		// 里親申請ウィザード
		r.Route("/api/adoptions", func(r chi.Router) {
			r.Get("/", adoptionHandler.List)

			r.Route("/wizard", func(r chi.Router) {
				r.Post("/", adoptionHandler.Start)
				r.Get("/", adoptionHandler.Get)
				r.Put("/", adoptionHandler.Update)
				r.Post("/next", adoptionHandler.Next)
				r.Post("/back", adoptionHandler.Back)
				r.Post("/submit", adoptionHandler.Submit)
			})
		})

		// 寄付ウィザード
		r.Route("/api/donations", func(r chi.Router) {
			r.Get("/", donationHandler.List)

			r.Route("/wizard", func(r chi.Router) {
				r.Post("/", donationHandler.Start)
				r.Get("/", donationHandler.Get)
				r.Put("/", donationHandler.Update)
				r.Post("/next", donationHandler.Next)
				r.Post("/back", donationHandler.Back)
				r.Post("/submit", donationHandler.Submit)
			})
		})

		// プロフィール
		r.Route("/api/profile", func(r chi.Router) {
			r.Get("/", profileHandler.Get)
			r.Put("/", profileHandler.Update)
		})

		// 通知
		r.Route("/api/notifications", func(r chi.Router) {
			r.Get("/", notificationHandler.List)
			r.Put("/read-all", notificationHandler.MarkAllRead)
			r.Put("/{id}/read", notificationHandler.MarkRead)
			r.Delete("/{id}", notificationHandler.Delete)
		})
	})

	return r
}

package router

import (
	"time"

	"mizupay/config"
	"mizupay/internal/handler"
	"mizupay/internal/middleware"
	"mizupay/internal/repository"
	"mizupay/internal/service"
	"mizupay/internal/ws"
	"mizupay/pkg/cardcipher"
	"mizupay/pkg/cloudinary"
	"mizupay/pkg/indexer"
	"mizupay/pkg/mailer"
	"mizupay/pkg/pricefeed"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps are the process-owned collaborators the router wires into handlers.
type Deps struct {
	DB      *gorm.DB
	Cipher  *cardcipher.Cipher
	Cloud   cloudinary.Client
	Mailer  *mailer.Client
	Indexer *indexer.Client
	Feed    *pricefeed.Client
	Hub     *ws.SessionHub
	Limiter *middleware.RateLimiter
}

func Setup(cfg *config.Config, d Deps) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	if d.Limiter == nil {
		d.Limiter = middleware.NewRateLimiter(100, 60*time.Second)
	}
	r.Use(middleware.RateLimit(d.Limiter))

	// Repositories
	userRepo := repository.NewUserRepository(d.DB)
	walletRepo := repository.NewWalletRepository(d.DB)
	sessionRepo := repository.NewSessionRepository(d.DB)
	cardRepo := repository.NewGiftCardRepository(d.DB)
	redemptionRepo := repository.NewRedemptionRepository(d.DB)

	// Services
	authSvc := service.NewAuthService(cfg, userRepo)
	sessionSvc := service.NewSessionService(sessionRepo, cfg.Session.DefaultTTL)
	allocatorSvc := service.NewAllocatorService(cardRepo)
	checkoutSvc := service.NewCheckoutService(
		sessionSvc, allocatorSvc, redemptionRepo, userRepo,
		d.Cipher, d.Mailer, d.Hub, cfg.StoreRules,
	)

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc, userRepo)
	googleOAuthHandler := handler.NewGoogleOAuthHandler(cfg, authSvc)
	sessionHandler := handler.NewSessionHandler(sessionSvc, checkoutSvc, userRepo, walletRepo, d.Hub)
	webhookHandler := handler.NewIndexerWebhookHandler(cfg, sessionSvc, checkoutSvc, d.Indexer)
	walletHandler := handler.NewWalletHandler(walletRepo)
	giftCardHandler := handler.NewGiftCardHandler(cardRepo, redemptionRepo, d.Cipher, d.Cloud)
	ratesHandler := handler.NewRatesHandler(d.Feed)

	authMw := middleware.AuthRequired(&cfg.JWT)
	optionalAuthMw := middleware.OptionalAuth(&cfg.JWT)

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.POST("/logout", authMw, authHandler.Logout)
			authGroup.GET("/google", googleOAuthHandler.Redirect)
			authGroup.GET("/google/callback", googleOAuthHandler.Callback)
		}

		// Checkout sessions: the extension creates them before the user is
		// necessarily signed in, so auth is optional on the write path.
		api.POST("/sessions", optionalAuthMw, sessionHandler.Create)
		api.GET("/sessions/:id", sessionHandler.Get)
		api.POST("/sessions/:id/fail", sessionHandler.Fail)
		api.POST("/sessions/:id/wallet", optionalAuthMw, sessionHandler.AttachWallet)

		api.GET("/rates/celo", ratesHandler.GetCelo)

		me := api.Group("/me")
		me.Use(authMw)
		{
			me.GET("/profile", authHandler.Me)
			me.GET("/sessions", sessionHandler.ListMine)
			me.GET("/redemptions", giftCardHandler.MyRedemptions)
			me.POST("/wallets", walletHandler.Link)
			me.GET("/wallets", walletHandler.List)
			me.PUT("/wallets/:id/primary", walletHandler.SetPrimary)
		}

		admin := api.Group("/admin")
		admin.Use(authMw, middleware.RequireRole("ADMIN"))
		{
			admin.POST("/giftcards", giftCardHandler.Create)
			admin.GET("/giftcards", giftCardHandler.List)
			admin.DELETE("/giftcards/:id", giftCardHandler.Deactivate)
			admin.POST("/giftcards/:id/art", giftCardHandler.UploadArt)
			admin.POST("/sessions/:id/retry-fulfillment", sessionHandler.RetryFulfillment)
		}

		api.POST("/webhooks/indexer", webhookHandler.Handle)
	}

	r.GET("/ws/session", ws.UpgradeSessionWS(d.Hub))

	return r
}

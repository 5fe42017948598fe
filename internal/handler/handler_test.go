package handler

import (
	"fmt"
	"testing"
	"time"

	"mizupay/config"
	"mizupay/internal/models"
	"mizupay/internal/repository"
	"mizupay/internal/service"
	"mizupay/internal/ws"
	"mizupay/pkg/cardcipher"
	"mizupay/pkg/mailer"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap test db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(
		&models.User{},
		&models.Wallet{},
		&models.PaymentSession{},
		&models.GiftCard{},
		&models.Redemption{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// testEnv wires the session and checkout surface onto a bare gin engine, the
// same shape the router builds but without auth, cloudinary or the price feed.
type testEnv struct {
	db       *gorm.DB
	router   *gin.Engine
	sessions *service.SessionService
	cards    *repository.GiftCardRepository
	cipher   *cardcipher.Cipher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	cipher, err := cardcipher.New("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("cipher: %v", err)
	}

	sessionSvc := service.NewSessionService(repository.NewSessionRepository(db), 10*time.Minute)
	cardRepo := repository.NewGiftCardRepository(db)
	userRepo := repository.NewUserRepository(db)
	hub := ws.NewSessionHub()
	checkout := service.NewCheckoutService(
		sessionSvc,
		service.NewAllocatorService(cardRepo),
		repository.NewRedemptionRepository(db),
		userRepo,
		cipher,
		mailer.NewClient("", "", "test@mizupay.xyz"),
		hub,
		config.DefaultStoreRules(),
	)

	cfg := &config.Config{}
	cfg.Indexer.WebhookSecret = "hook-secret"

	sessionHandler := NewSessionHandler(sessionSvc, checkout, userRepo, repository.NewWalletRepository(db), hub)
	webhookHandler := NewIndexerWebhookHandler(cfg, sessionSvc, checkout, nil)

	r := gin.New()
	r.POST("/sessions", sessionHandler.Create)
	r.GET("/sessions/:id", sessionHandler.Get)
	r.POST("/sessions/:id/fail", sessionHandler.Fail)
	r.POST("/admin/sessions/:id/retry-fulfillment", sessionHandler.RetryFulfillment)
	r.POST("/webhooks/indexer", webhookHandler.Handle)

	return &testEnv{db: db, router: r, sessions: sessionSvc, cards: cardRepo, cipher: cipher}
}

func (e *testEnv) seedCard(t *testing.T, provider, currency string, amount float64) *models.GiftCard {
	t.Helper()
	sealed, err := e.cipher.Seal("CODE-" + uuid.New().String())
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	gc := &models.GiftCard{
		Name:     provider + " card",
		Provider: provider,
		Currency: currency,
		Amount:   amount,
		Code:     sealed,
		IsActive: true,
	}
	if err := e.db.Create(gc).Error; err != nil {
		t.Fatalf("seed card: %v", err)
	}
	return gc
}

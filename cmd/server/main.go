// Server runs the merchant document platform API: session engine, merchant
// and document endpoints, and admin listings over HTTP.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	adminhandler "merchant-docs/backend/internal/admin/handler"
	"merchant-docs/backend/internal/audit"
	auditrepo "merchant-docs/backend/internal/audit/repository"
	authhandler "merchant-docs/backend/internal/auth/handler"
	authservice "merchant-docs/backend/internal/auth/service"
	"merchant-docs/backend/internal/config"
	"merchant-docs/backend/internal/db"
	documenthandler "merchant-docs/backend/internal/document/handler"
	"merchant-docs/backend/internal/document/presign"
	documentrepo "merchant-docs/backend/internal/document/repository"
	"merchant-docs/backend/internal/kyc"
	merchanthandler "merchant-docs/backend/internal/merchant/handler"
	merchantrepo "merchant-docs/backend/internal/merchant/repository"
	"merchant-docs/backend/internal/mfa"
	"merchant-docs/backend/internal/notify"
	"merchant-docs/backend/internal/ratelimit"
	"merchant-docs/backend/internal/security"
	"merchant-docs/backend/internal/server"
	"merchant-docs/backend/internal/server/middleware"
	sessionrepo "merchant-docs/backend/internal/session/repository"
	"merchant-docs/backend/internal/telemetry"
	"merchant-docs/backend/internal/telemetry/otel"
	"merchant-docs/backend/internal/telemetry/producer"
	userrepo "merchant-docs/backend/internal/user/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, "merchant-docs-server", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("otel: %v", err)
	}

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer database.Close()

	privateKey, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		log.Fatalf("jwt private key: %v", err)
	}
	publicKey, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("jwt public key: %v", err)
	}
	tokens := security.NewTokenProvider(privateKey, publicKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())
	hasher := security.NewHasher(cfg.Argon2MemoryKB, cfg.Argon2Time, cfg.Argon2Parallelism)
	totp := mfa.New(cfg.TOTPIssuer, 2)

	users := userrepo.NewPostgresRepository(database)
	sessions := sessionrepo.NewPostgresRepository(database)
	merchants := merchantrepo.NewPostgresRepository(database)
	documents := documentrepo.NewPostgresRepository(database)
	auditLogs := auditrepo.NewPostgresRepository(database)

	auditor := audit.NewLogger(auditLogs, func(ctx context.Context) (string, string) {
		meta := middleware.GetClientMeta(ctx)
		return meta.IP, meta.UserAgent
	})

	var limiter *ratelimit.LoginLimiter
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		limiter = ratelimit.NewLoginLimiter(rdb, cfg.LoginAttemptLimit, cfg.AttemptWindow())
	}

	var emitter telemetry.EventEmitter
	kafkaProducer := producer.NewKafkaProducer(cfg.SecurityKafkaBrokersList(), cfg.SecurityKafkaTopic)
	if kafkaProducer != nil {
		defer kafkaProducer.Close()
		emitter = kafkaProducer
	}

	authSvc := authservice.NewService(users, sessions, hasher, tokens, totp,
		auditor, emitter, notify.NewLogNotifier(), limiter, cfg.RefreshTTL())

	presigner := presign.NewHMACPresigner(cfg.UploadBaseURL, []byte(cfg.UploadSigningSecret))
	kycSvc := kyc.NewService(merchants, kyc.MockPanProvider{}, kyc.MockAadhaarProvider{}, auditor)

	secureCookies := cfg.Env == "production"
	router := server.NewRouter(server.Deps{
		Tokens:   tokens,
		Auth:     authhandler.New(authSvc, users, cfg.RefreshTTL(), secureCookies),
		Merchant: merchanthandler.New(merchants, documents, auditor),
		Document: documenthandler.New(documents, presigner, auditor),
		KYC:      kyc.NewHandler(kycSvc),
		Admin:    adminhandler.New(users, auditLogs, authSvc, auditor),
		DB:       database,
	})

	srv := server.New(cfg.HTTPAddr, router)
	go func() {
		if err := srv.Run(); err != nil {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}

	// Let in-flight async event emits finish before telemetry goes away.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("otel shutdown: %v", err)
	}
	log.Println("server stopped")
}

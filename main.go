package main

import (
	"context"
	"log"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/joseAcevesG/phishingMailAI-sub000/internal/client"
	"github.com/joseAcevesG/phishingMailAI-sub000/internal/config"
	"github.com/joseAcevesG/phishingMailAI-sub000/internal/cryptox"
	"github.com/joseAcevesG/phishingMailAI-sub000/internal/db"
	"github.com/joseAcevesG/phishingMailAI-sub000/internal/handler"
	"github.com/joseAcevesG/phishingMailAI-sub000/internal/service"
)

const vaultSalt = "phishing-mail-ai/api-key-vault"

// @title Phishing Mail AI API
// @version 1.0
// @description Phishing-email analysis backend
// @BasePath /
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx := context.Background()

	pool, err := db.NewPostgresPool(ctx)
	if err != nil {
		log.Fatalf("[Main] Postgres connection failed: %v", err)
	}
	defer pool.Close()
	repo := db.NewPostgres(pool)

	if err := repo.EnsureAuthSchema(ctx); err != nil {
		log.Fatalf("[Main] Auth schema setup failed: %v", err)
	}
	if err := repo.EnsureAnalysisSchema(ctx); err != nil {
		log.Fatalf("[Main] Analysis schema setup failed: %v", err)
	}

	sessions, err := service.NewSessionService(repo, cfg.Auth)
	if err != nil {
		log.Fatalf("[Main] Session service setup failed: %v", err)
	}

	var vault *cryptox.Vault
	if cfg.Auth.VaultSecret != "" {
		vault, err = cryptox.NewVault(cfg.Auth.VaultSecret, vaultSalt)
		if err != nil {
			log.Fatalf("[Main] Vault setup failed: %v", err)
		}
	} else {
		log.Printf("[Main] VAULT_SECRET not set; bring-your-own-key storage disabled")
	}

	magicLink, err := client.NewMagicLinkClient(cfg.MagicLink)
	if err != nil {
		log.Fatalf("[Main] Magic link client setup failed: %v", err)
	}

	var oidcClient handler.OIDCProvider
	if cfg.OIDC.Issuer != "" {
		cli, err := client.NewOIDCClient(ctx, cfg.OIDC)
		if err != nil {
			log.Fatalf("[Main] OIDC client setup failed: %v", err)
		}
		oidcClient = cli
	} else {
		log.Printf("[Main] OIDC_ISSUER not set; OIDC sign-in disabled")
	}

	trialLimit, err := strconv.Atoi(cfg.Genai.FreeTrialLimit)
	if err != nil || trialLimit < 0 {
		log.Fatalf("[Main] Invalid FREE_TRIAL_LIMIT: %q", cfg.Genai.FreeTrialLimit)
	}

	classifier := client.NewClassifierClient(cfg.Genai.Model)

	var embeddingSvc *service.EmbeddingService
	if cfg.Genai.APIKey != "" {
		embeddingClient, err := client.NewEmbeddingClient(cfg.Genai)
		if err != nil {
			log.Fatalf("[Main] Embedding client setup failed: %v", err)
		}
		if err := repo.EnsureEmbeddingSchema(ctx); err != nil {
			log.Fatalf("[Main] Embedding schema setup failed: %v", err)
		}
		embeddingSvc = service.NewEmbeddingService(repo, embeddingClient)
	} else {
		log.Printf("[Main] AI_API_KEY not set; similar-mail index disabled, analyses require user keys")
	}

	var indexer service.MailIndexer
	if embeddingSvc != nil {
		indexer = embeddingSvc
	}
	analyzeSvc := service.NewAnalyzeService(repo, classifier, vault, indexer, cfg.Genai.APIKey, trialLimit)

	authHandler := handler.NewAuthHandler(sessions, magicLink, oidcClient)
	analyzeHandler := handler.NewAnalyzeHandler(analyzeSvc, embeddingSvc)

	router := gin.Default()

	origins := strings.Split(cfg.Server.AllowedOrigins, ",")
	router.Use(handler.CORSMiddleware(origins, true))

	router.GET("/ping", handler.Ping)
	router.GET("/", handler.Root)

	api := router.Group("/api")
	api.GET("/openapi.json", handler.OpenAPIDoc)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/signup", authHandler.Signup)
	auth.GET("/authenticate", authHandler.Authenticate)
	auth.GET("/oidc/login", authHandler.OIDCLogin)
	auth.GET("/oidc/callback", authHandler.OIDCCallback)
	auth.GET("/status", authHandler.Status)
	auth.GET("/config", authHandler.Config)

	protected := api.Group("", handler.AuthMiddleware(sessions))
	protected.POST("/auth/logout", authHandler.Logout)
	protected.POST("/auth/logout-all", authHandler.LogoutAll)
	protected.POST("/auth/api-key", analyzeHandler.SetAPIKey)
	protected.DELETE("/auth/api-key", analyzeHandler.DeleteAPIKey)
	protected.POST("/analyze", analyzeHandler.Analyze)
	protected.GET("/analyze", analyzeHandler.List)
	protected.GET("/analyze/:id", analyzeHandler.Get)
	protected.DELETE("/analyze/:id", analyzeHandler.Delete)
	protected.GET("/analyze/:id/similar", analyzeHandler.Similar)

	if err := router.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("[Main] Server exited: %v", err)
	}
}

package config

import "os"

type Config struct {
	Server    ServerConfig
	Auth      AuthConfig
	Genai     GenaiConfig
	MagicLink MagicLinkConfig
	OIDC      OIDCConfig
	Postgres  PostgresConfig
}

type ServerConfig struct {
	Port           string
	AllowedOrigins string
}

type AuthConfig struct {
	JWTSecret      string
	JWTAccessTTL   string
	JWTRefreshTTL  string
	AllowSignup    string
	CookieSecure   string
	CookieSameSite string
	CookieDomain   string
	CookiePath     string
	VaultSecret    string
}

type GenaiConfig struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	FreeTrialLimit string
}

type MagicLinkConfig struct {
	BaseURL string
	Secret  string
}

type OIDCConfig struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

type PostgresConfig struct {
	DatabaseURL string
	Host        string
	Port        string
	User        string
	Password    string
	Database    string
	SSLMode     string
}

func Load() Config {
	return Config{
		Server: ServerConfig{
			Port:           getenv("PORT", "8080"),
			AllowedOrigins: os.Getenv("CORS_ORIGINS"),
		},
		Auth: AuthConfig{
			JWTSecret:      os.Getenv("JWT_SECRET"),
			JWTAccessTTL:   getenv("JWT_ACCESS_TTL", "1h"),
			JWTRefreshTTL:  getenv("JWT_REFRESH_TTL", "168h"),
			AllowSignup:    os.Getenv("ALLOW_SIGNUP"),
			CookieSecure:   os.Getenv("AUTH_COOKIE_SECURE"),
			CookieSameSite: os.Getenv("AUTH_COOKIE_SAMESITE"),
			CookieDomain:   os.Getenv("AUTH_COOKIE_DOMAIN"),
			CookiePath:     os.Getenv("AUTH_COOKIE_PATH"),
			VaultSecret:    os.Getenv("VAULT_SECRET"),
		},
		Genai: GenaiConfig{
			APIKey:         os.Getenv("AI_API_KEY"),
			Model:          getenv("GENAI_MODEL", "gemini-2.0-flash"),
			EmbeddingModel: getenv("GENAI_EMBEDDING_MODEL", "text-embedding-004"),
			FreeTrialLimit: getenv("FREE_TRIAL_LIMIT", "3"),
		},
		MagicLink: MagicLinkConfig{
			BaseURL: os.Getenv("MAGIC_LINK_URL"),
			Secret:  os.Getenv("MAGIC_LINK_SECRET"),
		},
		OIDC: OIDCConfig{
			Issuer:       os.Getenv("OIDC_ISSUER"),
			ClientID:     os.Getenv("OIDC_CLIENT_ID"),
			ClientSecret: os.Getenv("OIDC_CLIENT_SECRET"),
			RedirectURL:  os.Getenv("OIDC_REDIRECT_URL"),
		},
		Postgres: PostgresConfig{
			DatabaseURL: os.Getenv("DATABASE_URL"),
			Host:        getenv("PGHOST", "localhost"),
			Port:        getenv("PGPORT", "5432"),
			User:        os.Getenv("PGUSER"),
			Password:    os.Getenv("PGPASSWORD"),
			Database:    os.Getenv("PGDATABASE"),
			SSLMode:     getenv("PGSSLMODE", "disable"),
		},
	}
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

package config

import (
	"context"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds runtime configuration for the possumbly server.
type Config struct {
	Addr           string   `env:"ADDR,default=:8080"`
	DBDSN          string   `env:"DB_DSN,default=file:possumbly.db"`
	DataDir        string   `env:"DATA_DIR,default=./data"`
	SessionSecret  string   `env:"SESSION_SECRET,required"`
	BaseURL        string   `env:"BASE_URL,default=http://localhost:8080"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS,default=http://localhost:5173"`
	CookieDomain   string   `env:"COOKIE_DOMAIN"`
	CookieSecure   bool     `env:"COOKIE_SECURE,default=false"`
	OTLPEndpoint   string   `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	SessionTTL     time.Duration `env:"SESSION_TTL,default=168h"`
	AuditRetention time.Duration `env:"AUDIT_RETENTION,default=720h"`
	MaxUploadBytes int64         `env:"MAX_UPLOAD_BYTES,default=10485760"`

	RateLimits RateLimits `env:",prefix=RATE_"`
}

// RateLimits are per-IP request budgets per minute, one counter per logical
// endpoint group.
type RateLimits struct {
	Global       int `env:"GLOBAL,default=300"`
	Auth         int `env:"AUTH,default=30"`
	InviteRedeem int `env:"INVITE_REDEEM,default=10"`
	Upload       int `env:"UPLOAD,default=20"`
	Render       int `env:"RENDER,default=30"`
	Delete       int `env:"DELETE,default=30"`
	Vote         int `env:"VOTE,default=60"`
	Gallery      int `env:"GALLERY,default=120"`
}

// Load returns a Config populated from environment variables.
func Load(ctx context.Context) (Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

package app

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr         string // HTTP listen address (default: :8080)
	DatabaseFile string // SQLite database file (default: purplix.db)
	Issuer       string // JWT issuer claim (default: purplix)

	KeyStorageMode string // ephemeral or persistent (default: ephemeral)
	MasterKeyFile  string // key material sealing persisted signing keys
	NumKeys        int    // active signing keys (default: 3)

	SessionDays     int           // session lifetime in days (default: 7)
	SessionCacheTTL time.Duration // how long a live verdict is cached (default: 6m)
	RedisURL        string        // shared revocation cache; in-process when empty

	FrontendURL          string // used in mailed links
	BackendURL           string // public base URL of this service
	VerifyPrefix         string // TXT record prefix for domain verification
	DoHURL               string // DNS-over-HTTPS JSON endpoint
	RegistrationDisabled bool
	TrustProxyHeaders    bool

	CaptchaURL     string
	CaptchaSiteKey string
	CaptchaSecret  string

	ProxyCheckURL string
	ProxyCheckKey string

	SMTPHost     string // mail is disabled when empty
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	NtfyURL      string // push is disabled when empty
	WebhookProxy string // egress proxy for webhooks, optional

	S3Endpoint        string
	S3Region          string
	S3Bucket          string // logo uploads are disabled when empty
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Folder          string
	S3PublicURL       string
	LogoMaxSize       int64

	Env                  string // dev, staging, prod (default: dev)
	LogLevel             string // debug, info, warn, error (default: info)
	LogFormat            string // json, text (default: json)
	ShutdownGracePeriod  time.Duration
	HousekeepingInterval time.Duration
}

func LoadConfig() Config {
	return Config{
		Addr:         getEnvOrDefault("PURPLIX_ADDR", ":8080"),
		DatabaseFile: getEnvOrDefault("PURPLIX_DATABASE_FILE", "purplix.db"),
		Issuer:       getEnvOrDefault("PURPLIX_ISSUER", "purplix"),

		KeyStorageMode: getEnvOrDefault("PURPLIX_KEY_STORAGE", "ephemeral"),
		MasterKeyFile:  os.Getenv("PURPLIX_MASTER_KEY_FILE"),
		NumKeys:        getEnvIntOrDefault("PURPLIX_NUM_KEYS", 3),

		SessionDays:     getEnvIntOrDefault("PURPLIX_SESSION_DAYS", 7),
		SessionCacheTTL: getEnvDurationOrDefault("PURPLIX_SESSION_CACHE_TTL", 6*time.Minute),
		RedisURL:        os.Getenv("PURPLIX_REDIS_URL"),

		FrontendURL:          getEnvOrDefault("PURPLIX_FRONTEND_URL", "http://localhost:3000"),
		BackendURL:           getEnvOrDefault("PURPLIX_BACKEND_URL", "http://localhost:8080"),
		VerifyPrefix:         getEnvOrDefault("PURPLIX_DOMAIN_VERIFY_PREFIX", "purplix.io__verify="),
		DoHURL:               getEnvOrDefault("PURPLIX_DOH_URL", "https://cloudflare-dns.com/dns-query"),
		RegistrationDisabled: getEnvBoolOrDefault("PURPLIX_REGISTRATION_DISABLED", false),
		TrustProxyHeaders:    getEnvBoolOrDefault("PURPLIX_TRUST_PROXY_HEADERS", false),

		CaptchaURL:     os.Getenv("PURPLIX_CAPTCHA_URL"),
		CaptchaSiteKey: os.Getenv("PURPLIX_CAPTCHA_SITE_KEY"),
		CaptchaSecret:  os.Getenv("PURPLIX_CAPTCHA_SECRET"),

		ProxyCheckURL: getEnvOrDefault("PURPLIX_PROXYCHECK_URL", "https://proxycheck.io/v2"),
		ProxyCheckKey: os.Getenv("PURPLIX_PROXYCHECK_KEY"),

		SMTPHost:     os.Getenv("PURPLIX_SMTP_HOST"),
		SMTPPort:     getEnvIntOrDefault("PURPLIX_SMTP_PORT", 587),
		SMTPUsername: os.Getenv("PURPLIX_SMTP_USERNAME"),
		SMTPPassword: os.Getenv("PURPLIX_SMTP_PASSWORD"),
		SMTPFrom:     getEnvOrDefault("PURPLIX_SMTP_FROM", "no-reply@purplix.io"),

		NtfyURL:      os.Getenv("PURPLIX_NTFY_URL"),
		WebhookProxy: os.Getenv("PURPLIX_WEBHOOK_PROXY"),

		S3Endpoint:        os.Getenv("PURPLIX_S3_ENDPOINT"),
		S3Region:          getEnvOrDefault("PURPLIX_S3_REGION", "us-east-1"),
		S3Bucket:          os.Getenv("PURPLIX_S3_BUCKET"),
		S3AccessKeyID:     os.Getenv("PURPLIX_S3_ACCESS_KEY_ID"),
		S3SecretAccessKey: os.Getenv("PURPLIX_S3_SECRET_ACCESS_KEY"),
		S3Folder:          os.Getenv("PURPLIX_S3_FOLDER"),
		S3PublicURL:       os.Getenv("PURPLIX_S3_PUBLIC_URL"),
		LogoMaxSize:       int64(getEnvIntOrDefault("PURPLIX_LOGO_MAX_SIZE", 5<<20)),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 5*time.Minute),
	}
}

// SecureCookies reports whether cookies must be marked Secure. Only a
// localhost backend is served over plain http.
func (c Config) SecureCookies() bool {
	u, err := url.Parse(c.BackendURL)
	if err != nil {
		return true
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return false
	}
	return true
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Plain integers are minutes.
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}

package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config centraliza a configuração carregada do ambiente.
type Config struct {
	Env           string
	Port          int
	DBDSN         string
	DBSSLMode     string
	RedisURL      string
	JWTAccessTTL  time.Duration
	JWTRefreshTTL time.Duration
	JWTSecret     string
	FrontendURL   string
	AllowOrigins  []string
	AutoMigrate   bool
	ResetTokenTTL time.Duration

	RateLimitPublic RateLimitConfig
	RateLimitAuth   RateLimitConfig

	SMTP         SMTPConfig
	Storage      StorageConfig
	Events       EventsConfig
	Housekeeping HousekeepingConfig
}

// RateLimitConfig representa limites simples para throttling.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// SMTPConfig descreve o relay usado para e-mails de recuperação de senha.
type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// Enabled indica se há relay configurado.
func (c SMTPConfig) Enabled() bool {
	return strings.TrimSpace(c.Host) != ""
}

// StorageConfig seleciona o backend dos anexos.
type StorageConfig struct {
	Provider      string
	UploadDir     string
	PublicURL     string
	MaxBytes      int64
	UploadTimeout time.Duration
	S3Region      string
	S3Bucket      string
	S3Endpoint    string
	S3PublicURL   string
}

// EventsConfig seleciona o broker que recebe eventos de chamados.
type EventsConfig struct {
	Driver       string
	RabbitURL    string
	RabbitQueue  string
	KafkaBrokers []string
	KafkaTopic   string
}

// HousekeepingConfig controla a rotina periódica de limpeza.
type HousekeepingConfig struct {
	Enabled  bool
	Interval time.Duration
}

// IsProduction indica ambiente produtivo.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load carrega variáveis de ambiente e aplica defaults seguros.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.Env = strings.ToLower(strings.TrimSpace(firstEnv("development", "APP_ENV", "NODE_ENV")))
	switch cfg.Env {
	case "development", "production", "test":
	default:
		return nil, errors.New("APP_ENV/NODE_ENV deve ser development, production ou test")
	}

	portStr := getEnv("PORT", "3000")
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		return nil, errors.New("PORT inválida")
	}
	cfg.Port = port

	cfg.DBDSN = strings.TrimSpace(firstEnv("", "DATABASE_URL", "DB_DSN"))
	if cfg.DBDSN == "" {
		return nil, errors.New("DATABASE_URL obrigatório")
	}
	if !strings.HasPrefix(cfg.DBDSN, "postgres://") && !strings.HasPrefix(cfg.DBDSN, "postgresql://") {
		return nil, errors.New("DATABASE_URL deve ser uma URL postgres://")
	}
	cfg.DBSSLMode = strings.TrimSpace(getEnv("DB_SSLMODE", ""))

	cfg.RedisURL = strings.TrimSpace(getEnv("REDIS_URL", ""))
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL obrigatório")
	}

	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", ""))
	if len(cfg.JWTSecret) < 32 {
		return nil, errors.New("JWT_SECRET deve ter pelo menos 32 caracteres")
	}

	if cfg.JWTAccessTTL, err = parseDurationEnv("JWT_ACCESS_TTL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.JWTRefreshTTL, err = parseDurationEnv("JWT_REFRESH_TTL", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.ResetTokenTTL, err = parseDurationEnv("RESET_TOKEN_TTL", time.Hour); err != nil {
		return nil, err
	}

	cfg.FrontendURL = strings.TrimRight(strings.TrimSpace(getEnv("FRONTEND_URL", "http://localhost:5173")), "/")
	if !strings.HasPrefix(cfg.FrontendURL, "http://") && !strings.HasPrefix(cfg.FrontendURL, "https://") {
		return nil, errors.New("FRONTEND_URL deve incluir protocolo http/https")
	}

	cfg.AllowOrigins = splitList(getEnv("ALLOW_ORIGINS", "*"))
	cfg.AutoMigrate = parseBoolEnv("AUTO_MIGRATE", false)

	cfg.RateLimitPublic = RateLimitConfig{RequestsPerSecond: 10, Burst: 20}
	cfg.RateLimitAuth = RateLimitConfig{RequestsPerSecond: 10, Burst: 40}

	smtpPort, err := strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil || smtpPort <= 0 {
		return nil, errors.New("SMTP_PORT inválida")
	}
	cfg.SMTP = SMTPConfig{
		Host: strings.TrimSpace(getEnv("SMTP_HOST", "")),
		Port: smtpPort,
		User: getEnv("SMTP_USER", ""),
		Pass: getEnv("SMTP_PASS", ""),
		From: strings.TrimSpace(getEnv("SMTP_FROM", "Minha Cidade <nao-responda@minhacidade.app>")),
	}

	maxBytes, err := strconv.ParseInt(getEnv("UPLOAD_MAX_BYTES", "10485760"), 10, 64)
	if err != nil || maxBytes <= 0 {
		return nil, errors.New("UPLOAD_MAX_BYTES inválido")
	}
	uploadTimeout, err := parseDurationEnv("UPLOAD_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.Storage = StorageConfig{
		Provider:      strings.ToLower(strings.TrimSpace(getEnv("STORAGE_PROVIDER", "local"))),
		UploadDir:     getEnv("UPLOAD_DIR", "uploads"),
		PublicURL:     strings.TrimRight(getEnv("UPLOAD_PUBLIC_URL", "/uploads"), "/"),
		MaxBytes:      maxBytes,
		UploadTimeout: uploadTimeout,
		S3Region:      getEnv("S3_REGION", ""),
		S3Bucket:      getEnv("S3_BUCKET", ""),
		S3Endpoint:    getEnv("S3_ENDPOINT", ""),
		S3PublicURL:   getEnv("S3_PUBLIC_URL", ""),
	}

	cfg.Events = EventsConfig{
		Driver:       strings.ToLower(strings.TrimSpace(getEnv("EVENTS_DRIVER", "none"))),
		RabbitURL:    getEnv("RABBITMQ_URL", ""),
		RabbitQueue:  getEnv("RABBITMQ_QUEUE", "chamados.eventos"),
		KafkaBrokers: splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "chamados.eventos"),
	}
	switch cfg.Events.Driver {
	case "", "none":
	case "rabbitmq":
		if cfg.Events.RabbitURL == "" {
			return nil, errors.New("RABBITMQ_URL obrigatório com EVENTS_DRIVER=rabbitmq")
		}
	case "kafka":
		if len(cfg.Events.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS obrigatório com EVENTS_DRIVER=kafka")
		}
	default:
		return nil, errors.New("EVENTS_DRIVER inválido")
	}

	interval, err := parseDurationEnv("HOUSEKEEPING_INTERVAL", time.Hour)
	if err != nil {
		return nil, err
	}
	cfg.Housekeeping = HousekeepingConfig{Enabled: interval > 0, Interval: interval}

	return cfg, nil
}

func getEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return def
}

// firstEnv devolve o primeiro valor não vazio entre as chaves informadas.
func firstEnv(def string, keys ...string) string {
	for _, key := range keys {
		if val := strings.TrimSpace(os.Getenv(key)); val != "" {
			return val
		}
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	val := getEnv(key, "")
	if val == "" {
		return def, nil
	}
	dur, err := time.ParseDuration(val)
	if err != nil {
		return 0, errors.New(key + " inválido")
	}
	return dur, nil
}

func parseBoolEnv(key string, def bool) bool {
	val := strings.TrimSpace(getEnv(key, ""))
	if val == "" {
		return def
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return def
	}
	return b
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	HTTPPort     string `envconfig:"HTTP_PORT" default:"4242"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	// Persistenz: "file" (Default) oder "postgres"
	StoreBackend string `envconfig:"STORE_BACKEND" default:"file"`
	DataDir      string `envconfig:"DATA_DIR" default:"data"`

	DBHost     string `envconfig:"DB_HOST"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME"`

	// Feed-Sammlung
	EnabledProviders string `envconfig:"ENABLED_PROVIDERS" default:"googlenews"`
	CustomFeeds      string `envconfig:"CUSTOM_FEEDS"` // Format: tag=url,tag=url
	CollectWindow    int    `envconfig:"COLLECT_WINDOW_DAYS" default:"3"`
	CollectTarget    int    `envconfig:"COLLECT_TARGET" default:"21"`
	InboxTarget      int    `envconfig:"INBOX_TARGET" default:"24"`
	FeedTimeout      int    `envconfig:"FEED_TIMEOUT_SECONDS" default:"20"`

	// Generatives Backend (Ollama-kompatibel)
	LLMBaseURL string `envconfig:"LLM_BASE_URL" default:"http://localhost:11434"`
	LLMModel   string `envconfig:"LLM_MODEL" default:"llama3.1:8b"`

	// Übersetzungs-Backends
	LibreTranslateURL string `envconfig:"LIBRETRANSLATE_URL" default:"http://localhost:5000/translate"`

	// Cron-Zeitpläne der drei Batch-Pässe
	CollectSchedule  string `envconfig:"COLLECT_SCHEDULE" default:"0 6 * * *"`
	ApproveSchedule  string `envconfig:"APPROVE_SCHEDULE" default:"30 6 * * *"`
	GenerateSchedule string `envconfig:"GENERATE_SCHEDULE" default:"0 7 * * *"`

	// S3-Backup (cmd/backup)
	BackupS3Key    string `envconfig:"BACKUP_S3_KEY"`
	BackupS3Secret string `envconfig:"BACKUP_S3_SECRET"`
	BackupS3URL    string `envconfig:"BACKUP_S3_URL"`
	BackupS3Region string `envconfig:"BACKUP_S3_REGION"`
	BackupS3Bucket string `envconfig:"BACKUP_S3_BUCKET"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}

package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// MQ backend selectors.
const (
	MQBackendNone     = "none"
	MQBackendRabbitMQ = "rabbitmq"
	MQBackendPubSub   = "pubsub"
)

// Storage backend selectors.
const (
	StorageBackendNone  = "none"
	StorageBackendMinIO = "minio"
	StorageBackendGCS   = "gcs"
)

type Config struct {
	ServerPort int
	JWTSecret  string
	Database   DatabaseConfig
	Mail       MailConfig
	MQ         MQConfig
	Storage    StorageConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool
}

// MailConfig configures outbound email and the links embedded in it.
type MailConfig struct {
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
	From        string
	FrontendURL string
}

// MQConfig selects and configures the mail-dispatch queue backend.
type MQConfig struct {
	Backend  string
	Channel  string
	RabbitMQ RabbitMQConfig
	PubSub   PubSubConfig
}

type RabbitMQConfig struct {
	URL             string
	QueueDurable    bool
	QueueAutoDelete bool
	PrefetchCount   int
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
}

// StorageConfig selects and configures the avatar object-storage backend.
type StorageConfig struct {
	Backend string
	Bucket  string
	MinIO   MinIOConfig
	GCS     GCSConfig
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

type GCSConfig struct {
	ProjectID       string
	CredentialsFile string
}

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "admingate"),
		Password: getEnv("DB_PASSWORD", "password"),
		DBName:   getEnv("DB_NAME", "admingate_db"),
		UseSSL:   getEnvBool("DB_USE_SSL", false),
	}

	mailConfig := MailConfig{
		SMTPHost:    getEnv("SMTP_HOST", "localhost"),
		SMTPPort:    getEnvInt("SMTP_PORT", 587),
		SMTPUser:    getEnv("SMTP_USER", ""),
		SMTPPass:    getEnv("SMTP_PASS", ""),
		From:        getEnv("MAIL_FROM", "no-reply@admingate.local"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),
	}

	mqConfig := MQConfig{
		Backend: getEnv("MQ_BACKEND", MQBackendNone),
		Channel: getEnv("MQ_MAIL_CHANNEL", "mail.outbound"),
		RabbitMQ: RabbitMQConfig{
			URL:             getEnv("RABBITMQ_URL", ""),
			QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
			QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", false),
			PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH_COUNT", 1),
		},
		PubSub: PubSubConfig{
			ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
			CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
			SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
		},
	}

	storageConfig := StorageConfig{
		Backend: getEnv("STORAGE_BACKEND", StorageBackendNone),
		Bucket:  getEnv("STORAGE_BUCKET", "admingate-avatars"),
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		GCS: GCSConfig{
			ProjectID:       getEnv("GCS_PROJECT_ID", ""),
			CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
		},
	}

	return Config{
		ServerPort: getEnvInt("SERVER_PORT", 8080),
		JWTSecret:  getEnv("JWT_SECRET", ""),
		Database:   dbConfig,
		Mail:       mailConfig,
		MQ:         mqConfig,
		Storage:    storageConfig,
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		fmt.Sscanf(valueStr, "%d", &value)
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		return valueStr == "1" || valueStr == "true" || valueStr == "yes"
	}
	return defaultValue
}

package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the application's configuration values.
// Tags like `envconfig:"APP_PORT"` specify the environment variable name.
type Config struct {
	AppEnv     string `envconfig:"APP_ENV" default:"development"` // development, staging, production
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`      // debug, info, warn, error
	HttpServer ServerConfig
	GrpcServer GrpcServerConfig
	Store      StoreConfig
	Postgres   PostgresConfig
	Mongo      MongoConfig
	Catalog    CatalogConfig
	Auth       AuthConfig
	Checkout   CheckoutConfig
	Images     ImagesConfig
	S3         S3Config
	SendGrid   SendGridConfig
}

// ServerConfig holds HTTP server-specific configurations.
type ServerConfig struct {
	Port         string        `envconfig:"HTTP_SERVER_PORT" default:"8080"`
	TimeoutRead  time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_READ" default:"15s"`
	TimeoutWrite time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_WRITE" default:"30s"`
	TimeoutIdle  time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_IDLE" default:"60s"`
	// MaxUploadBytes caps image uploads and product documents.
	MaxUploadBytes int64 `envconfig:"HTTP_SERVER_MAX_UPLOAD_BYTES" default:"10485760"`
}

// GrpcServerConfig holds gRPC server-specific configurations.
type GrpcServerConfig struct {
	Port string `envconfig:"GRPC_SERVER_PORT" default:"9090"`
}

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver string `envconfig:"STORE_DRIVER" default:"postgres"`
}

// PostgresConfig holds PostgreSQL database connection details.
type PostgresConfig struct {
	Host        string `envconfig:"POSTGRES_HOST" default:"localhost"`
	Port        string `envconfig:"POSTGRES_PORT" default:"5432"`
	User        string `envconfig:"POSTGRES_USER"`
	Password    string `envconfig:"POSTGRES_PASSWORD"`
	DBName      string `envconfig:"POSTGRES_DBNAME"`
	SSLMode     string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
	AutoMigrate bool   `envconfig:"POSTGRES_AUTO_MIGRATE" default:"true"`
	// Listen enables LISTEN/NOTIFY driven catalog refreshes on top of polling.
	Listen bool `envconfig:"POSTGRES_LISTEN" default:"true"`
}

// DSN constructs the Data Source Name string for connecting to PostgreSQL.
func (pc *PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		pc.Host, pc.Port, pc.User, pc.Password, pc.DBName, pc.SSLMode)
}

type MongoConfig struct {
	URI      string `envconfig:"MONGO_URI" default:"mongodb://localhost:27017"`
	Database string `envconfig:"MONGO_DATABASE" default:"storefront"`
}

// CatalogConfig tunes the catalog feed and the product size guard.
type CatalogConfig struct {
	PollInterval time.Duration `envconfig:"CATALOG_POLL_INTERVAL" default:"30s"`
	SizeWarnKB   int           `envconfig:"CATALOG_SIZE_WARN_KB" default:"800"`
	SizeLimitKB  int           `envconfig:"CATALOG_SIZE_LIMIT_KB" default:"1000"`
	// SlimImageKB is the inline image size above which "slim product" removes an image.
	SlimImageKB float64 `envconfig:"CATALOG_SLIM_IMAGE_KB" default:"80"`
}

type AuthConfig struct {
	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	TokenTTL  time.Duration `envconfig:"AUTH_TOKEN_TTL" default:"12h"`
	// AdminAccounts are comma separated "email:bcrypt-hash" entries.
	AdminAccounts []string `envconfig:"ADMIN_ACCOUNTS"`
}

type CheckoutConfig struct {
	StoreName         string        `envconfig:"STORE_NAME" default:"VEE"`
	WhatsAppNumber    string        `envconfig:"STORE_WHATSAPP_NUMBER" required:"true"`
	PaymentMethods    string        `envconfig:"STORE_PAYMENT_METHODS" default:"InstaPay / Vodafone Cash"`
	PaymentNumber     string        `envconfig:"STORE_PAYMENT_NUMBER"`
	Currency          string        `envconfig:"STORE_CURRENCY" default:"EGP"`
	DeliveryTablePath string        `envconfig:"DELIVERY_TABLE_PATH"`
	CartTTL           time.Duration `envconfig:"CART_TTL" default:"24h"`
	CartSweepInterval time.Duration `envconfig:"CART_SWEEP_INTERVAL" default:"10m"`
}

const (
	ImageBackendInline = "inline"
	ImageBackendS3     = "s3"
)

type ImagesConfig struct {
	Backend      string `envconfig:"IMAGES_BACKEND" default:"inline"`
	MaxDimension int    `envconfig:"IMAGES_MAX_DIMENSION" default:"800"`
	Quality      int    `envconfig:"IMAGES_QUALITY" default:"60"`
	TargetBytes  int    `envconfig:"IMAGES_TARGET_BYTES" default:"51200"`
	Workers      int    `envconfig:"IMAGES_WORKERS" default:"2"`
	MaxPixels    int    `envconfig:"IMAGES_MAX_PIXELS" default:"40000000"`
}

type S3Config struct {
	Region        string `envconfig:"AWS_REGION" default:"eu-central-1"`
	Bucket        string `envconfig:"S3_BUCKET"`
	Prefix        string `envconfig:"S3_PREFIX" default:"products"`
	PublicBaseURL string `envconfig:"S3_PUBLIC_BASE_URL"`
}

// SendGridConfig enables order mails when APIKey is set.
type SendGridConfig struct {
	APIKey   string `envconfig:"SENDGRID_API_KEY"`
	FromName string `envconfig:"SENDGRID_FROM_NAME" default:"Storefront"`
	From     string `envconfig:"SENDGRID_FROM"`
	To       string `envconfig:"SENDGRID_TO"`
}

// Load initializes the configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that depend on one another.
func (c *Config) Validate() error {
	var errs []error
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET must not be empty"))
	}
	switch c.Store.Driver {
	case DriverPostgres:
		if c.Postgres.User == "" || c.Postgres.DBName == "" {
			errs = append(errs, errors.New("POSTGRES_USER and POSTGRES_DBNAME are required for the postgres store"))
		}
	case DriverMongo:
		if _, err := url.Parse(c.Mongo.URI); err != nil || c.Mongo.URI == "" {
			errs = append(errs, fmt.Errorf("invalid MONGO_URI %q", c.Mongo.URI))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid STORE_DRIVER %q: expected %s or %s", c.Store.Driver, DriverPostgres, DriverMongo))
	}

	switch c.Images.Backend {
	case ImageBackendInline:
	case ImageBackendS3:
		if c.S3.Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET is required for the s3 image backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid IMAGES_BACKEND %q: expected %s or %s", c.Images.Backend, ImageBackendInline, ImageBackendS3))
	}

	if c.SendGrid.APIKey != "" && (c.SendGrid.From == "" || c.SendGrid.To == "") {
		errs = append(errs, errors.New("SENDGRID_FROM and SENDGRID_TO are required when SENDGRID_API_KEY is set"))
	}
	if c.Catalog.SizeWarnKB >= c.Catalog.SizeLimitKB {
		errs = append(errs, fmt.Errorf("CATALOG_SIZE_WARN_KB (%d) must be below CATALOG_SIZE_LIMIT_KB (%d)", c.Catalog.SizeWarnKB, c.Catalog.SizeLimitKB))
	}
	return errors.Join(errs...)
}

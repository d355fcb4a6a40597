// backend-go/internal/config/config.go
package config

import (
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Warehouse WarehouseConfig
	ERP       ERPConfig
	Cache     CacheConfig
	Storage   StorageConfig
	Drive     DriveConfig
	Auth      AuthConfig
	Planning  PlanningConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	LogLevel       string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
	MaxBodyBytes   int64
}

// DatabaseConfig points at the relational store that owns segmentation and
// replenishment data.
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
}

// WarehouseConfig points at the analytical warehouse holding ERP/WMS sales and
// inventory tables.
type WarehouseConfig struct {
	DSN             string
	Schema          string
	Timezone        string
	MinConns        int32
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type ERPConfig struct {
	BaseURL               string
	TokenURL              string
	ClientID              string
	ClientSecret          string
	DataAreaID            string
	ShippingWarehouseID   string
	ShippingLocationID    string
	InventoryStatusID     string
	SalesTaxGroupShipment string
	SalesTaxGroupReceipt  string
	PriceType             string
	RequestTimeout        time.Duration
	MaxAttempts           int
	RetryBackoff          time.Duration
}

type CacheConfig struct {
	Enabled       bool
	RedisURL      string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	TTLSeconds    int
}

type StorageConfig struct {
	Enabled       bool
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	Region        string
	UseSSL        bool
	PresignExpiry time.Duration
}

type DriveConfig struct {
	CredentialsJSON string
}

type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

type PlanningConfig struct {
	Stores             []string
	SegmentationChunk  int
	CentralWarehouseID string
	SalesInvoicePrefix string
}

var (
	once     sync.Once
	instance *Config
)

// DefaultStores is the store list used when PLANNING_STORES is not set. Its
// order is the default store priority.
var DefaultStores = []string{
	"COYHAIQUE", "LASCONDES", "MALLSPORT", "COSTANERA", "CONCEPCION", "PTOVARAS",
	"LADEHESA", "PUCON", "TEMUCO", "OSORNO", "ALERCE", "BNAVENTURA",
}

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()
		instance = load(viper.New())
	})

	return instance
}

func load(v *viper.Viper) *Config {
	setDefaults(v)

	// Read from environment variables
	v.AutomaticEnv()

	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			LogLevel:       v.GetString("LOG_LEVEL"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: splitList(v.GetStringSlice("SERVER_ALLOWED_ORIGINS")),
			MaxBodyBytes:   v.GetInt64("SERVER_MAX_BODY_BYTES"),
		},
		Database: DatabaseConfig{
			Driver:   strings.ToLower(v.GetString("DB_DRIVER")),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
			MaxConns: v.GetInt("DB_MAX_CONNS"),
		},
		Warehouse: WarehouseConfig{
			DSN:             v.GetString("WAREHOUSE_DSN"),
			Schema:          v.GetString("WAREHOUSE_SCHEMA"),
			Timezone:        v.GetString("WAREHOUSE_TIMEZONE"),
			MinConns:        v.GetInt32("WAREHOUSE_MIN_CONNS"),
			MaxConns:        v.GetInt32("WAREHOUSE_MAX_CONNS"),
			MaxConnLifetime: v.GetDuration("WAREHOUSE_MAX_CONN_LIFETIME"),
		},
		ERP: ERPConfig{
			BaseURL:               strings.TrimRight(v.GetString("ERP_URL"), "/"),
			TokenURL:              strings.TrimRight(v.GetString("ERP_TOKEN_URL"), "/"),
			ClientID:              v.GetString("ERP_CLIENT_ID"),
			ClientSecret:          v.GetString("ERP_CLIENT_SECRET"),
			DataAreaID:            v.GetString("ERP_DATA_AREA_ID"),
			ShippingWarehouseID:   v.GetString("ERP_SHIPPING_WAREHOUSE_ID"),
			ShippingLocationID:    v.GetString("ERP_SHIPPING_LOCATION_ID"),
			InventoryStatusID:     v.GetString("ERP_INVENTORY_STATUS_ID"),
			SalesTaxGroupShipment: v.GetString("ERP_SALES_TAX_GROUP_SHIPMENT"),
			SalesTaxGroupReceipt:  v.GetString("ERP_SALES_TAX_GROUP_RECEIPT"),
			PriceType:             v.GetString("ERP_PRICE_TYPE"),
			RequestTimeout:        v.GetDuration("ERP_REQUEST_TIMEOUT"),
			MaxAttempts:           v.GetInt("ERP_MAX_ATTEMPTS"),
			RetryBackoff:          v.GetDuration("ERP_RETRY_BACKOFF"),
		},
		Cache: CacheConfig{
			Enabled:       v.GetBool("CACHE_ENABLED"),
			RedisURL:      v.GetString("REDIS_URL"),
			RedisHost:     v.GetString("REDIS_HOST"),
			RedisPort:     v.GetString("REDIS_PORT"),
			RedisPassword: v.GetString("REDIS_PASSWORD"),
			RedisDB:       v.GetInt("REDIS_DB"),
			TTLSeconds:    v.GetInt("CACHE_TTL_SECONDS"),
		},
		Storage: StorageConfig{
			Enabled:       v.GetBool("STORAGE_ENABLED"),
			Endpoint:      v.GetString("STORAGE_ENDPOINT"),
			AccessKey:     v.GetString("STORAGE_ACCESS_KEY"),
			SecretKey:     v.GetString("STORAGE_SECRET_KEY"),
			Bucket:        v.GetString("STORAGE_BUCKET"),
			Region:        v.GetString("STORAGE_REGION"),
			UseSSL:        v.GetBool("STORAGE_USE_SSL"),
			PresignExpiry: v.GetDuration("STORAGE_PRESIGN_EXPIRY"),
		},
		Drive: DriveConfig{
			CredentialsJSON: v.GetString("GOOGLE_DRIVE_CREDENTIALS_JSON"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("AUTH_JWT_SECRET"),
			Issuer:    v.GetString("AUTH_JWT_ISSUER"),
		},
		Planning: PlanningConfig{
			Stores:             splitList(v.GetStringSlice("PLANNING_STORES")),
			SegmentationChunk:  v.GetInt("PLANNING_SEGMENTATION_CHUNK"),
			CentralWarehouseID: v.GetString("PLANNING_CENTRAL_WAREHOUSE"),
			SalesInvoicePrefix: v.GetString("PLANNING_SALES_INVOICE_PREFIX"),
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MODE", "debug")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SERVER_READ_TIMEOUT", 30)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 120)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("SERVER_MAX_BODY_BYTES", 10<<20)

	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "patagonia_core")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_CONNS", 25)

	v.SetDefault("WAREHOUSE_DSN", "")
	v.SetDefault("WAREHOUSE_SCHEMA", "core")
	v.SetDefault("WAREHOUSE_TIMEZONE", "America/Santiago")
	v.SetDefault("WAREHOUSE_MIN_CONNS", 0)
	v.SetDefault("WAREHOUSE_MAX_CONNS", 10)
	v.SetDefault("WAREHOUSE_MAX_CONN_LIFETIME", time.Hour)

	v.SetDefault("ERP_DATA_AREA_ID", "pat")
	v.SetDefault("ERP_SHIPPING_WAREHOUSE_ID", "CD")
	v.SetDefault("ERP_SHIPPING_LOCATION_ID", "")
	v.SetDefault("ERP_INVENTORY_STATUS_ID", "Disponible")
	v.SetDefault("ERP_SALES_TAX_GROUP_SHIPMENT", "")
	v.SetDefault("ERP_SALES_TAX_GROUP_RECEIPT", "")
	v.SetDefault("ERP_PRICE_TYPE", "CostPrice")
	v.SetDefault("ERP_REQUEST_TIMEOUT", 15*time.Second)
	v.SetDefault("ERP_MAX_ATTEMPTS", 3)
	v.SetDefault("ERP_RETRY_BACKOFF", time.Second)

	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_TTL_SECONDS", 60)

	v.SetDefault("STORAGE_ENABLED", false)
	v.SetDefault("STORAGE_BUCKET", "stock-planning")
	v.SetDefault("STORAGE_REGION", "us-east-1")
	v.SetDefault("STORAGE_USE_SSL", true)
	v.SetDefault("STORAGE_PRESIGN_EXPIRY", 24*time.Hour)

	v.SetDefault("PLANNING_STORES", DefaultStores)
	v.SetDefault("PLANNING_SEGMENTATION_CHUNK", 7000)
	v.SetDefault("PLANNING_CENTRAL_WAREHOUSE", "CD")
	v.SetDefault("PLANNING_SALES_INVOICE_PREFIX", "39-")
}

// splitList flattens comma separated env values into a clean slice.
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}

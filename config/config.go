package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// 存储驱动
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Config 服务配置，来自 .env 和环境变量
type Config struct {
	HTTPAddr string

	// 存储
	StoreDriver string
	SQLitePath  string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string

	// Redis配置，未启用时事件只在本进程内分发
	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	EventChannel  string

	// MinIO 收据归档，Endpoint 为空时不归档
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	// 鉴权
	JWTSecret string
	JWTTTL    time.Duration

	// 托管账户，收款和待提取版税都在这里
	CustodyAccount string

	LogLevel string
	LogFile  string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on existing environment variables and defaults.")
	}

	return &Config{
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		StoreDriver:    strings.ToLower(getEnv("STORE_DRIVER", DriverSQLite)),
		SQLitePath:     getEnv("SQLITE_PATH", "metajuke.db"),
		DBHost:         getEnv("DB_HOST", "127.0.0.1"),
		DBPort:         getEnv("DB_PORT", "3306"),
		DBUser:         getEnv("DB_USER", "root"),
		DBPassword:     os.Getenv("DB_PASSWORD"),
		DBName:         getEnv("DB_NAME", "metajuke"),
		RedisEnabled:   getEnvBool("REDIS_ENABLED", false),
		RedisHost:      getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:      getEnv("REDIS_PORT", "6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		EventChannel:   getEnv("REDIS_EVENT_CHANNEL", "metajuke:events"),
		MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "metajuke-receipts"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		JWTTTL:         time.Duration(getEnvInt("JWT_TTL_HOURS", 24)) * time.Hour,
		CustodyAccount: getEnv("CUSTODY_ACCOUNT", "metajuke-custody"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFile:        getEnv("LOG_FILE", ""),
	}
}

// RedisAddr host:port
func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

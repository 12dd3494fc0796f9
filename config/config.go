package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	Port      string
	WebAppDir string // Root directory of the browser client
	LogLevel  string
	LogPath   string

	// Database
	DBDriver   string // sqlite or mysql
	SQLitePath string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Key/value records (session, playlists): db, redis or memory
	KVDriver      string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Blob storage for media and covers: disk or minio
	StorageDriver  string
	MediaDir       string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	MinioRegion    string

	// Discovery
	JamendoAPIURL   string
	JamendoClientID string
	DiscoverLimit   int

	ImportDir string // Watched folder, empty disables the importer
	Locale    string // Collation locale for album/artist views
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
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() does not override variables that are already set.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	dataDir := getEnv("DATA_DIR", "data")

	return &Config{
		Port:      getEnv("PORT", "3000"),
		WebAppDir: getEnv("WEB_DIR", "."),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPath:   getEnv("LOG_PATH", filepath.Join("logs", "genesis.log")),

		DBDriver:   getEnv("DB_DRIVER", "sqlite"),
		SQLitePath: getEnv("SQLITE_PATH", filepath.Join(dataDir, "genesis.db")),
		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"), // no hardcoded default for the password
		DBName:     getEnv("DB_NAME", "genesis"),

		KVDriver:      getEnv("KV_DRIVER", "db"),
		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		StorageDriver:  getEnv("STORAGE_DRIVER", "disk"),
		MediaDir:       getEnv("MEDIA_DIR", filepath.Join(dataDir, "media")),
		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "genesis"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),

		JamendoAPIURL:   getEnv("JAMENDO_API_URL", "https://api.jamendo.com/v3.0"),
		JamendoClientID: getEnv("JAMENDO_CLIENT_ID", ""),
		DiscoverLimit:   getEnvInt("DISCOVER_LIMIT", 10),

		ImportDir: getEnv("IMPORT_DIR", ""),
		Locale:    getEnv("LOCALE", "en"),
	}
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

package configs

import (
	"log"
	"os"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
)

// AppConfig holds the application configuration.
// It's populated once by LoadConfig.
var AppConfig Configuration
var once sync.Once

// Configuration defines the structure for application settings.
type Configuration struct {
	JWTSecret       string
	ServerPort      string
	FrontendBaseURL string
	DBDriver        string // sqlite | postgres
	DBSource        string // file path for sqlite, DSN for postgres
	RedisAddr       string // empty keeps the change feed in-process and disables redis notifications
	RedisPassword   string
	RedisDB         int
	PolicyPath      string
	MinioEndpoint   string // empty disables attachment uploads
	MinioAccessKey  string
	MinioSecretKey  string
	MinioBucket     string
	MinioPublicURL  string
	MinioUseSSL     bool
	TelegramToken   string // empty disables staff chat alerts
	TelegramChatID  int64
}

const (
	defaultJWTSecret       = "facility"              // Default JWT secret, used if env var is not set.
	envJWTSecretKey        = "JWT_SECRET_KEY"        // Environment variable name for the JWT secret.
	defaultServerPort      = "8080"                  // Default server port.
	envServerPortKey       = "SERVER_PORT"           // Environment variable name for the server port.
	defaultFrontendBaseURL = "http://localhost:3000" // Default frontend origin, also the CORS allow-list.
	envFrontendBaseURLKey  = "FRONTEND_BASE_URL"
	defaultDBDriver        = "sqlite"
	envDBDriverKey         = "DB_DRIVER"
	defaultDBSource        = "data/facility_triage.db"
	envDBSourceKey         = "DB_SOURCE"
	envRedisAddrKey        = "REDIS_ADDR"
	envRedisPasswordKey    = "REDIS_PASSWORD"
	envRedisDBKey          = "REDIS_DB"
	defaultPolicyPath      = "configs/policy.yaml"
	envPolicyPathKey       = "TRIAGE_POLICY_PATH"
	envMinioEndpointKey    = "MINIO_ENDPOINT"
	envMinioAccessKey      = "MINIO_ACCESS_KEY"
	envMinioSecretKey      = "MINIO_SECRET_KEY"
	defaultMinioBucket     = "complaint-attachments"
	envMinioBucketKey      = "MINIO_BUCKET"
	envMinioPublicURLKey   = "MINIO_PUBLIC_URL"
	envMinioUseSSLKey      = "MINIO_USE_SSL"
	envTelegramTokenKey    = "TELEGRAM_BOT_TOKEN"
	envTelegramChatIDKey   = "TELEGRAM_STAFF_CHAT_ID"
)

// LoadConfig loads configuration from a .env file, environment variables or defaults.
// It should be called once at application startup.
func LoadConfig() {
	once.Do(func() {
		if err := godotenv.Load(); err != nil {
			log.Printf("INFO: no .env file loaded (%v); using process environment.", err)
		}

		jwtSecret := os.Getenv(envJWTSecretKey)
		if jwtSecret == "" {
			jwtSecret = defaultJWTSecret
			log.Printf("WARN: %s is not set. Using the default JWT secret; set it in production.", envJWTSecretKey)
		}

		redisDB := 0
		if v := os.Getenv(envRedisDBKey); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				log.Printf("WARN: %s=%q is not a number; using 0.", envRedisDBKey, v)
			} else {
				redisDB = n
			}
		}

		AppConfig = Configuration{
			JWTSecret:       jwtSecret,
			ServerPort:      getEnv(envServerPortKey, defaultServerPort),
			FrontendBaseURL: getEnv(envFrontendBaseURLKey, defaultFrontendBaseURL),
			DBDriver:        getEnv(envDBDriverKey, defaultDBDriver),
			DBSource:        getEnv(envDBSourceKey, defaultDBSource),
			RedisAddr:       os.Getenv(envRedisAddrKey),
			RedisPassword:   os.Getenv(envRedisPasswordKey),
			RedisDB:         redisDB,
			PolicyPath:      getEnv(envPolicyPathKey, defaultPolicyPath),
			MinioEndpoint:   os.Getenv(envMinioEndpointKey),
			MinioAccessKey:  os.Getenv(envMinioAccessKey),
			MinioSecretKey:  os.Getenv(envMinioSecretKey),
			MinioUseSSL:     os.Getenv(envMinioUseSSLKey) == "true",
		}
		AppConfig.TelegramToken = os.Getenv(envTelegramTokenKey)
		if v := os.Getenv(envTelegramChatIDKey); v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				log.Printf("WARN: %s=%q is not a chat id; staff chat alerts are disabled.", envTelegramChatIDKey, v)
				AppConfig.TelegramToken = ""
			} else {
				AppConfig.TelegramChatID = id
			}
		}

		if AppConfig.MinioEndpoint != "" {
			AppConfig.MinioBucket = getEnv(envMinioBucketKey, defaultMinioBucket)
			AppConfig.MinioPublicURL = getEnv(envMinioPublicURLKey, "http://"+AppConfig.MinioEndpoint)
		} else {
			log.Printf("INFO: %s is not set. Attachment uploads are disabled.", envMinioEndpointKey)
		}

		if AppConfig.RedisAddr == "" {
			log.Printf("INFO: %s is not set. The change feed stays in-process and redis notifications are disabled.", envRedisAddrKey)
		}
		log.Println("Application configuration loaded.")
	})
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	log.Printf("INFO: %s is not set. Using default %q.", key, fallback)
	return fallback
}

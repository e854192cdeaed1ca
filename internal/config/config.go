package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/DilipViharika/PostgresTool-sub003/internal/logger"
	"github.com/DilipViharika/PostgresTool-sub003/internal/models"

	"github.com/joho/godotenv"
)

type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Monitor      MonitorConfig
	Thresholds   ThresholdConfig
	Notification NotificationConfig
	MQTT         MQTTConfig
	Security     SecurityConfig
	Logging      LoggingConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	Environment     string
	ShutdownTimeout time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	MaxHeaderBytes  int
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// MonitorConfig drives the background monitoring scheduler.
type MonitorConfig struct {
	Enabled       bool
	Interval      time.Duration
	ProbeTimeout  time.Duration
	MetaAlerts    bool
	RetentionDays int
}

// ThresholdConfig holds the per-probe, single-direction comparisons the
// evaluator applies. Loaded once at startup, read-only afterwards.
type ThresholdConfig struct {
	ConnUsageWarnPct float64
	ConnUsageCritPct float64
	LongQuerySeconds int
	ReplLagBytes     int64
	CacheHitPct      float64
	DeadTuplePct     float64
	BlockedLocks     int
}

// NotificationConfig is the outbound notification policy plus the SMTP
// provider settings.
type NotificationConfig struct {
	Enabled      bool
	MinSeverity  string
	Recipients   []string
	From         string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MaxAttempts  int
	RetryDelay   time.Duration
	QueueSize    int
}

type MQTTConfig struct {
	Enabled        bool
	Broker         string
	Port           int
	ClientID       string
	Username       string
	Password       string
	TopicPrefix    string
	QoS            byte
	ConnectTimeout time.Duration
}

type SecurityConfig struct {
	JWTSecret          string
	RequireAuth        bool
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	RateLimitPerMinute int
	EnableRateLimit    bool
}

type LoggingConfig struct {
	Level     logger.Level
	FilePath  string
	UseColors bool
}

var requiredEnvVars = []string{
	"DB_HOST",
	"DB_PORT",
	"DB_USER",
	"DB_PASSWORD",
	"DB_NAME",
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	if err := validateRequired(); err != nil {
		return nil, err
	}

	cfg := &Config{
		Server:       loadServerConfig(),
		Database:     loadDatabaseConfig(),
		Monitor:      loadMonitorConfig(),
		Thresholds:   loadThresholdConfig(),
		Notification: loadNotificationConfig(),
		MQTT:         loadMQTTConfig(),
		Security:     loadSecurityConfig(),
		Logging:      loadLoggingConfig(),
	}

	return cfg, nil
}

func validateRequired() error {
	var missing []string

	for _, key := range requiredEnvVars {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	return nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("SERVER_HOST", "0.0.0.0"),
		Port:            getEnvAsInt("SERVER_PORT", 8080),
		Environment:     getEnv("ENVIRONMENT", "development"),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", "15s"),
		ReadTimeout:     getEnvAsDuration("READ_TIMEOUT", "10s"),
		WriteTimeout:    getEnvAsDuration("WRITE_TIMEOUT", "10s"),
		MaxHeaderBytes:  getEnvAsInt("MAX_HEADER_BYTES", 1048576),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "postgres"),
		Password:        getEnv("DB_PASSWORD", ""),
		Database:        getEnv("DB_NAME", "postgres"),
		SSLMode:         getEnv("DB_SSL_MODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", "5m"),
		ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", "5m"),
	}
}

func loadMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Enabled:       getEnvAsBool("MONITOR_ENABLED", true),
		Interval:      getEnvAsDuration("MONITOR_INTERVAL", "60s"),
		ProbeTimeout:  getEnvAsDuration("MONITOR_PROBE_TIMEOUT", "5s"),
		MetaAlerts:    getEnvAsBool("MONITOR_META_ALERTS", false),
		RetentionDays: getEnvAsInt("MONITOR_RETENTION_DAYS", 30),
	}
}

func loadThresholdConfig() ThresholdConfig {
	return ThresholdConfig{
		ConnUsageWarnPct: getEnvAsFloat("THRESH_CONN_USAGE_WARN", 80),
		ConnUsageCritPct: getEnvAsFloat("THRESH_CONN_USAGE_CRIT", 95),
		LongQuerySeconds: getEnvAsInt("THRESH_LONG_QUERY_SECONDS", 300),
		ReplLagBytes:     int64(getEnvAsInt("THRESH_REPL_LAG_BYTES", 100*1024*1024)),
		CacheHitPct:      getEnvAsFloat("THRESH_CACHE_HIT_PCT", 90),
		DeadTuplePct:     getEnvAsFloat("THRESH_DEAD_TUPLE_PCT", 20),
		BlockedLocks:     getEnvAsInt("THRESH_BLOCKED_LOCKS", 5),
	}
}

func loadNotificationConfig() NotificationConfig {
	recipients := getEnv("NOTIFY_RECIPIENTS", "")

	cfg := NotificationConfig{
		Enabled:      getEnvAsBool("NOTIFY_ENABLED", false),
		MinSeverity:  getEnv("NOTIFY_MIN_SEVERITY", models.SeverityWarning),
		From:         getEnv("NOTIFY_FROM", "dbhealth@localhost"),
		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		MaxAttempts:  getEnvAsInt("NOTIFY_MAX_ATTEMPTS", 3),
		RetryDelay:   getEnvAsDuration("NOTIFY_RETRY_DELAY", "10s"),
		QueueSize:    getEnvAsInt("NOTIFY_QUEUE_SIZE", 64),
	}

	if recipients != "" {
		cfg.Recipients = strings.Split(recipients, ",")
	}

	return cfg
}

func loadMQTTConfig() MQTTConfig {
	return MQTTConfig{
		Enabled:        getEnvAsBool("MQTT_ENABLED", false),
		Broker:         getEnv("MQTT_BROKER", "localhost"),
		Port:           getEnvAsInt("MQTT_PORT", 1883),
		ClientID:       getEnv("MQTT_CLIENT_ID", "dbhealth-backend"),
		Username:       getEnv("MQTT_USERNAME", ""),
		Password:       getEnv("MQTT_PASSWORD", ""),
		TopicPrefix:    getEnv("MQTT_TOPIC_PREFIX", "dbhealth"),
		QoS:            byte(getEnvAsInt("MQTT_QOS", 1)),
		ConnectTimeout: getEnvAsDuration("MQTT_CONNECT_TIMEOUT", "10s"),
	}
}

func loadSecurityConfig() SecurityConfig {
	origins := getEnv("CORS_ALLOWED_ORIGINS", "*")
	methods := getEnv("CORS_ALLOWED_METHODS", "GET,POST,PUT,DELETE,OPTIONS")

	return SecurityConfig{
		JWTSecret:          getEnv("JWT_SECRET", "dbhealth_secret_change_in_production"),
		RequireAuth:        getEnvAsBool("REQUIRE_AUTH", false),
		CORSAllowedOrigins: strings.Split(origins, ","),
		CORSAllowedMethods: strings.Split(methods, ","),
		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 100),
		EnableRateLimit:    getEnvAsBool("ENABLE_RATE_LIMIT", true),
	}
}

func loadLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:     logger.ParseLevel(getEnv("LOG_LEVEL", "info")),
		FilePath:  getEnv("LOG_FILE_PATH", ""),
		UseColors: getEnvAsBool("LOG_USE_COLORS", true),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

func (c *Config) Validate() error {
	var errors []string

	if c.Database.Password == "" {
		errors = append(errors, "DB_PASSWORD cannot be empty")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		errors = append(errors, "DB_PORT must be between 1 and 65535")
	}

	if c.Monitor.Interval < time.Second {
		errors = append(errors, "MONITOR_INTERVAL must be at least 1s")
	}

	if c.Monitor.ProbeTimeout < 100*time.Millisecond {
		errors = append(errors, "MONITOR_PROBE_TIMEOUT must be at least 100ms")
	}

	if !models.ValidSeverity(c.Notification.MinSeverity) {
		errors = append(errors, "NOTIFY_MIN_SEVERITY must be INFO, WARNING or CRITICAL")
	}

	if c.Notification.Enabled && len(c.Notification.Recipients) == 0 {
		errors = append(errors, "NOTIFY_RECIPIENTS cannot be empty when notifications are enabled")
	}

	if c.Notification.MaxAttempts < 1 {
		errors = append(errors, "NOTIFY_MAX_ATTEMPTS must be at least 1")
	}

	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		errors = append(errors, "MQTT_BROKER cannot be empty when MQTT is enabled")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

func (c *Config) Print() {
	fmt.Println("╔══════════════════════════════════════════════════════════╗")
	fmt.Println("║        Postgres Health Monitor - Configuration           ║")
	fmt.Println("╚══════════════════════════════════════════════════════════╝")
	fmt.Printf("Environment:     %s\n", c.Server.Environment)
	fmt.Printf("Server:          %s:%d\n", c.Server.Host, c.Server.Port)
	fmt.Printf("Database:        %s:%d/%s\n", c.Database.Host, c.Database.Port, c.Database.Database)
	fmt.Printf("Monitoring:      enabled=%t interval=%s\n", c.Monitor.Enabled, c.Monitor.Interval)
	fmt.Printf("Notifications:   enabled=%t min_severity=%s\n", c.Notification.Enabled, c.Notification.MinSeverity)
	fmt.Printf("MQTT fan-out:    enabled=%t\n", c.MQTT.Enabled)
	fmt.Println("──────────────────────────────────────────────────────────")
}

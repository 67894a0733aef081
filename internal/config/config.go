package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr    string
	Port          string
	DatabasePath  string
	SessionSecret string
	JWTSecret     string
	GinMode       string
	// Timezone 是服务端日界策略使用的 IANA 时区名，
	// 决定“今天”在哪个时区截断，默认 UTC
	Timezone      string
	OTPTTL        time.Duration
	AdminUsername string
	AdminPassword string
	LogDir        string
	Debug         bool
}

// Load 从环境变量读取应用配置，并为缺失项提供安全的默认值。
func Load() AppConfig {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	listenAddr := strings.TrimSpace(os.Getenv("LISTEN_ADDR"))
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%s", port)
	}

	databasePath := strings.TrimSpace(os.Getenv("DATABASE_PATH"))
	if databasePath == "" {
		databasePath = "habityfy.db"
	}

	sessionSecret := strings.TrimSpace(os.Getenv("SESSION_SECRET"))
	if sessionSecret == "" {
		sessionSecret = "habityfy-dev-secret"
	}

	jwtSecret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if jwtSecret == "" {
		jwtSecret = "habityfy-dev-jwt-secret"
	}

	ginMode := strings.TrimSpace(os.Getenv("GIN_MODE"))
	if ginMode == "" {
		ginMode = "release"
	}

	timezone := strings.TrimSpace(os.Getenv("TIMEZONE"))
	if timezone == "" {
		timezone = "UTC"
	}

	otpTTL := 10 * time.Minute
	if raw := strings.TrimSpace(os.Getenv("OTP_TTL_MINUTES")); raw != "" {
		if minutes, err := strconv.Atoi(raw); err == nil && minutes > 0 {
			otpTTL = time.Duration(minutes) * time.Minute
		}
	}

	logDir := strings.TrimSpace(os.Getenv("LOG_DIR"))
	if logDir == "" {
		logDir = "logs"
	}

	debug := strings.TrimSpace(os.Getenv("DEBUG")) == "1"

	adminUsername := strings.TrimSpace(os.Getenv("ADMIN_USERNAME"))
	adminPassword := strings.TrimSpace(os.Getenv("ADMIN_PASSWORD"))

	return AppConfig{
		ListenAddr:    listenAddr,
		Port:          port,
		DatabasePath:  databasePath,
		SessionSecret: sessionSecret,
		JWTSecret:     jwtSecret,
		GinMode:       ginMode,
		Timezone:      timezone,
		OTPTTL:        otpTTL,
		AdminUsername: adminUsername,
		AdminPassword: adminPassword,
		LogDir:        logDir,
		Debug:         debug,
	}
}

package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment overrides. They win over the config file.
const (
	EnvJWTSecret         = "RTCORE_JWT_SECRET"
	EnvJWTIssuer         = "RTCORE_JWT_ISSUER"
	EnvHTTPAddr          = "RTCORE_HTTP_ADDR"
	EnvDBDriver          = "RTCORE_DB_DRIVER"
	EnvDBDSN             = "RTCORE_DB_DSN"
	EnvAdminPasswordHash = "RTCORE_ADMIN_PASSWORD_HASH"
	EnvLogLevel          = "RTCORE_LOG_LEVEL"
	EnvEventsSink        = "RTCORE_EVENTS_SINK"
	EnvKafkaBrokers      = "RTCORE_KAFKA_BROKERS"
	EnvSQSQueueURL       = "RTCORE_SQS_QUEUE_URL"
)

// LoadDotEnv reads .env files into the process environment. Variables that
// are already set are left alone, and missing files are ignored.
func LoadDotEnv(paths ...string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			log.Warnf("read %s: %v", p, err)
		}
	}
}

// ApplyEnv copies RTCORE_* variables into cfg.
func ApplyEnv(cfg *Config) {
	set := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(&cfg.Auth.JWTSecret, EnvJWTSecret)
	set(&cfg.Auth.Issuer, EnvJWTIssuer)
	set(&cfg.Server.HTTPAddr, EnvHTTPAddr)
	set(&cfg.Storage.Driver, EnvDBDriver)
	set(&cfg.Storage.DSN, EnvDBDSN)
	set(&cfg.Admin.PasswordHash, EnvAdminPasswordHash)
	set(&cfg.Log.Level, EnvLogLevel)
	set(&cfg.Events.Sink, EnvEventsSink)
	set(&cfg.Events.SQSQueueURL, EnvSQSQueueURL)

	if v := os.Getenv(EnvKafkaBrokers); v != "" {
		var brokers []string
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
		cfg.Events.KafkaBrokers = brokers
	}
}

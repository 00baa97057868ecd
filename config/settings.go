package config

import (
	"docflow/persistence"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	StoreMySQL  = "mysql"
	StoreMemory = "memory"
)

type Settings struct {
	HTTPAddress string
	Release     bool
	LogLevel    string

	StoreDriver string
	Database    *persistence.DatabaseConfig

	EscalationCron    string
	EscalationTimeout time.Duration

	WebhookURL      string
	WebhookRate     float64
	NotifyWorkers   int
	NotifyQueueSize int

	DirectoryURL    string
	DirectoryDomain string
	DirectoryTTL    time.Duration

	ElasticsearchURL string
	AuditReindexCron string

	TrustRemoteUser bool
	AdminUsers      []string
}

// LoadDotEnv loads the first .env file found in paths. Variables already set
// in the environment win.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err == nil {
			logrus.Infof("loaded environment from %s", p)
			return
		}
	}
}

func ParseSettingsFromEnv() (*Settings, error) {
	s := &Settings{
		HTTPAddress:      stringEnv("HTTP_ADDRESS", ":80"),
		Release:          os.Getenv("GIN_MODE") == "release",
		LogLevel:         stringEnv("LOG_LEVEL", ""),
		StoreDriver:      strings.ToLower(stringEnv("STORE_DRIVER", StoreMySQL)),
		EscalationCron:   stringEnv("ESCALATION_CRON", "0 0 * * * *"),
		WebhookURL:       stringEnv("NOTIFY_WEBHOOK_URL", ""),
		DirectoryURL:     stringEnv("DIRECTORY_URL", ""),
		DirectoryDomain:  stringEnv("DIRECTORY_EMAIL_DOMAIN", ""),
		ElasticsearchURL: stringEnv("ELASTICSEARCH_URL", ""),
		AuditReindexCron: stringEnv("AUDIT_REINDEX_CRON", "0 0 23 * * *"),
		AdminUsers:       listEnv("ADMIN_USERS"),
	}

	var err error
	if s.EscalationTimeout, err = durationEnv("ESCALATION_TIMEOUT", 10*time.Minute); err != nil {
		return nil, err
	}
	if s.DirectoryTTL, err = durationEnv("DIRECTORY_CACHE_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	if s.WebhookRate, err = floatEnv("NOTIFY_WEBHOOK_RATE", 5); err != nil {
		return nil, err
	}
	if s.NotifyWorkers, err = intEnv("NOTIFY_WORKERS", 2); err != nil {
		return nil, err
	}
	if s.NotifyQueueSize, err = intEnv("NOTIFY_QUEUE_SIZE", 1000); err != nil {
		return nil, err
	}
	if s.TrustRemoteUser, err = boolEnv("TRUST_REMOTE_USER", false); err != nil {
		return nil, err
	}

	switch s.StoreDriver {
	case StoreMySQL:
		if s.Database, err = persistence.ParseDatabaseConfigFromEnv(); err != nil {
			return nil, err
		}
	case StoreMemory:
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", s.StoreDriver)
	}
	return s, nil
}

func stringEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func listEnv(key string) []string {
	var values []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := stringEnv(key, "")
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func intEnv(key string, def int) (int, error) {
	v := stringEnv(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func floatEnv(key string, def float64) (float64, error) {
	v := stringEnv(key, "")
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func boolEnv(key string, def bool) (bool, error) {
	v := stringEnv(key, "")
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

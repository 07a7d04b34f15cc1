package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP server
	Port string

	// Database
	SQLiteDBPath string

	// Field encryption and auth
	EncryptionSecret string
	JWTSecret        string
	JWTTTL           time.Duration

	// Twilio WhatsApp gateway
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioFromNumber  string
	TwilioTemplateSID string

	// Reminder job
	LookaheadDays int

	// AMQP (optional; export events are skipped without it)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Sheets export worker
	SpreadsheetID   string
	SheetName       string
	ExportBatchSize int
	SweepInterval   time.Duration
}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8082"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/incomes.db"),

		EncryptionSecret: getEnv("ENCRYPTION_SECRET", ""),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		JWTTTL:           getEnvDuration("JWT_TTL", 24*time.Hour),

		TwilioAccountSID:  getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:   getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber:  getEnv("TWILIO_FROM_WHATSAPP_NUMBER", ""),
		TwilioTemplateSID: getEnv("TWILIO_WHATSAPP_TEMPLATE_SID", ""),

		LookaheadDays: getEnvInt("REMINDER_LOOKAHEAD_DAYS", 1),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "incomes"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "export_incomes"),

		SpreadsheetID:   getEnv("GOOGLE_SPREADSHEET_ID", ""),
		SheetName:       getEnv("GOOGLE_SHEET_NAME", "Incomes"),
		ExportBatchSize: getEnvInt("EXPORT_BATCH_SIZE", 10),
		SweepInterval:   getEnvDuration("EXPORT_SWEEP_INTERVAL", time.Minute),
	}
}

// Validate checks the settings every binary depends on. Per-binary
// requirements (Twilio, JWT) have their own checks below.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.EncryptionSecret == "" {
		errs = append(errs, "ENCRYPTION_SECRET must be set")
	}

	if c.SQLiteDBPath == "" {
		errs = append(errs, "SQLite database path cannot be empty")
	} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				errs = append(errs, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
			}
		}
	}

	if c.LookaheadDays < 1 {
		errs = append(errs, fmt.Sprintf("invalid reminder lookahead %d: must be at least 1 day", c.LookaheadDays))
	}

	if c.AMQPURL != "" {
		if parsed, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsed.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.ExportBatchSize < 1 || c.ExportBatchSize > 1000 {
		errs = append(errs, fmt.Sprintf("invalid export batch size %d: must be between 1 and 1000", c.ExportBatchSize))
	}
	if c.SweepInterval < time.Second || c.SweepInterval > 24*time.Hour {
		errs = append(errs, fmt.Sprintf("invalid export sweep interval %v: must be between 1s and 24h", c.SweepInterval))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// ValidateGateway checks the Twilio settings the reminder job cannot run
// without. Missing credentials abort the whole run before any sends.
func (c *Config) ValidateGateway() error {
	var missing []string
	if c.TwilioAccountSID == "" {
		missing = append(missing, "TWILIO_ACCOUNT_SID")
	}
	if c.TwilioAuthToken == "" {
		missing = append(missing, "TWILIO_AUTH_TOKEN")
	}
	if c.TwilioFromNumber == "" {
		missing = append(missing, "TWILIO_FROM_WHATSAPP_NUMBER")
	}
	if c.TwilioTemplateSID == "" {
		missing = append(missing, "TWILIO_WHATSAPP_TEMPLATE_SID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing Twilio settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ValidateServer checks the settings the HTTP server cannot run without.
func (c *Config) ValidateServer() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"tally/internal/core"
	"tally/internal/period"
)

type Config struct {
	// Discord
	DiscordToken     string
	DiscordChannelID string

	// Health endpoint
	HealthPort string

	// Ledger period and formats
	PeriodNameFormat string
	DateFormat       string
	DateDelimiter    string
	RolloverAt       period.TimeOfDay
	TickInterval     time.Duration
	UndoWindow       time.Duration

	// Google Sheets
	SpreadsheetID            string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleOAuthClientFile    string
	GoogleOAuthTokenFile     string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Archive worker
	SQLiteDBPath string

	// Backend selection
	DataBackend string

	// Ledger file: aliases, default beneficiaries, recurring templates
	LedgerConfigFile string
}

func Load() *Config {
	cfg := &Config{
		DiscordToken:     getEnv("DISCORD_TOKEN", ""),
		DiscordChannelID: getEnv("DISCORD_CHANNEL_ID", ""),

		HealthPort: getEnv("HEALTH_PORT", "8081"),

		PeriodNameFormat: getEnv("PERIOD_NAME_FORMAT", "January 2006"),
		DateFormat:       getEnv("DATE_FORMAT", "02.01.2006"),
		DateDelimiter:    getEnv("DATE_DELIMITER", "."),
		RolloverAt:       getEnvTimeOfDay("ROLLOVER_AT", period.TimeOfDay{Hour: 18}),
		TickInterval:     getEnvDuration("TICK_INTERVAL", time.Minute),
		UndoWindow:       getEnvDuration("UNDO_WINDOW", 5*time.Minute),

		SpreadsheetID:            getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleOAuthClientFile:    getEnv("GOOGLE_OAUTH_CLIENT_FILE", ""),
		GoogleOAuthTokenFile:     getEnv("GOOGLE_OAUTH_TOKEN_FILE", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "tally"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "archive_records"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/tally.db"),

		DataBackend: getEnv("DATA_BACKEND", "memory"),

		LedgerConfigFile: getEnv("LEDGER_CONFIG_FILE", ""),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.HealthPort); err != nil {
		errors = append(errors, fmt.Sprintf("invalid health port '%s': must be a number", c.HealthPort))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid health port %d: must be between 1 and 65535", port))
	}

	if c.DiscordToken == "" {
		errors = append(errors, "DISCORD_TOKEN is required")
	}
	if c.DiscordChannelID == "" {
		errors = append(errors, "DISCORD_CHANNEL_ID is required")
	}

	if c.PeriodNameFormat == "" {
		errors = append(errors, "period name format cannot be empty")
	}
	if c.DateFormat == "" {
		errors = append(errors, "date format cannot be empty")
	}
	if len(c.DateDelimiter) != 1 || strings.ContainsAny(c.DateDelimiter, "0123456789 ") {
		errors = append(errors, fmt.Sprintf("invalid date delimiter %q: must be a single non-digit character", c.DateDelimiter))
	}

	if c.RolloverAt.Hour < 0 || c.RolloverAt.Hour > 23 || c.RolloverAt.Minute < 0 || c.RolloverAt.Minute > 59 {
		errors = append(errors, fmt.Sprintf("invalid rollover time %02d:%02d", c.RolloverAt.Hour, c.RolloverAt.Minute))
	}

	if c.TickInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid tick interval %v: must be at least 1 second", c.TickInterval))
	} else if c.TickInterval > time.Hour {
		errors = append(errors, fmt.Sprintf("invalid tick interval %v: must be at most 1 hour", c.TickInterval))
	}

	if c.UndoWindow < time.Second {
		errors = append(errors, fmt.Sprintf("invalid undo window %v: must be at least 1 second", c.UndoWindow))
	} else if c.UndoWindow > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid undo window %v: must be at most 24 hours", c.UndoWindow))
	}

	validBackends := []string{"memory", "sheets"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sheets" {
		if c.SpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}

		hasServiceAccount := c.GoogleServiceAccountJSON != "" || c.GoogleServiceAccountFile != ""
		hasOAuth := c.GoogleOAuthClientFile != "" && c.GoogleOAuthTokenFile != ""
		if !hasServiceAccount && !hasOAuth {
			errors = append(errors, "sheets backend needs either a service account (GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE) or an OAuth client and token file")
		}

		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
		if c.GoogleOAuthClientFile != "" {
			if _, err := os.Stat(c.GoogleOAuthClientFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google OAuth client file does not exist: %s", c.GoogleOAuthClientFile))
			}
		}
		if c.GoogleOAuthTokenFile != "" {
			if _, err := os.Stat(c.GoogleOAuthTokenFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google OAuth token file does not exist: %s", c.GoogleOAuthTokenFile))
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SQLiteDBPath != "" {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Warnings reports hazardous but valid settings. A period name format that
// resolves every date to the same name never triggers an automatic
// rollover; such a ledger can only be closed with the manual command.
func (c *Config) Warnings() []string {
	var warnings []string
	a := core.NewDate(2000, 1, 1)
	b := core.NewDate(2001, 2, 2)
	r := period.Resolver{Format: c.PeriodNameFormat}
	if r.Name(a) == r.Name(b) {
		warnings = append(warnings, fmt.Sprintf(
			"period name format %q does not vary with the date: automatic rollover will never fire", c.PeriodNameFormat))
	}
	return warnings
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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

func getEnvTimeOfDay(key string, defaultValue period.TimeOfDay) period.TimeOfDay {
	if value := os.Getenv(key); value != "" {
		if t, err := ParseTimeOfDay(value); err == nil {
			return t
		}
	}
	return defaultValue
}

// ParseTimeOfDay parses "HH:MM" (24h clock).
func ParseTimeOfDay(s string) (period.TimeOfDay, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return period.TimeOfDay{}, fmt.Errorf("invalid time of day %q: want HH:MM", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return period.TimeOfDay{}, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return period.TimeOfDay{}, fmt.Errorf("invalid minute in %q", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return period.TimeOfDay{}, fmt.Errorf("time of day %q out of range", s)
	}
	return period.TimeOfDay{Hour: hour, Minute: minute}, nil
}

// Ledger is the household-specific part of the configuration, loaded from a
// JSON file: chat-handle aliases, per-person default beneficiaries and the
// recurring entries seeded into every new period.
type Ledger struct {
	Aliases   map[string]string   `json:"aliases"`
	Defaults  map[string]string   `json:"defaults"`
	Recurring []RecurringTemplate `json:"recurring"`
}

type RecurringTemplate struct {
	Description   string   `json:"description"`
	Payer         string   `json:"payer"`
	Beneficiaries []string `json:"beneficiaries"`
	Amount        string   `json:"amount"`
}

// LoadLedger reads and validates the ledger file. An empty path yields an
// empty ledger.
func LoadLedger(path string) (*Ledger, error) {
	if path == "" {
		return &Ledger{}, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ledger config: %w", err)
	}
	var l Ledger
	if err := json.Unmarshal(b, &l); err != nil {
		return nil, fmt.Errorf("parse ledger config %s: %w", path, err)
	}
	for i, r := range l.Recurring {
		if _, err := r.template(); err != nil {
			return nil, fmt.Errorf("ledger config %s: recurring entry %d: %w", path, i, err)
		}
	}
	return &l, nil
}

// Templates converts the recurring entries. LoadLedger already validated
// them, so conversion cannot fail here.
func (l *Ledger) Templates() []period.Template {
	out := make([]period.Template, 0, len(l.Recurring))
	for _, r := range l.Recurring {
		t, err := r.template()
		if err != nil {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (r RecurringTemplate) template() (period.Template, error) {
	amount, err := core.ParseAmount(r.Amount)
	if err != nil {
		return period.Template{}, fmt.Errorf("amount %q: %w", r.Amount, err)
	}
	if amount.Sign() <= 0 {
		return period.Template{}, fmt.Errorf("amount %q: must be positive", r.Amount)
	}
	if r.Description == "" {
		return period.Template{}, fmt.Errorf("description cannot be empty")
	}
	if r.Payer == "" {
		return period.Template{}, fmt.Errorf("payer cannot be empty")
	}
	if len(r.Beneficiaries) == 0 {
		return period.Template{}, fmt.Errorf("beneficiaries cannot be empty")
	}
	return period.Template{
		Description:   r.Description,
		Payer:         r.Payer,
		Beneficiaries: r.Beneficiaries,
		Amount:        amount,
	}, nil
}

// Package config loads and validates the application configuration from
// config.yaml and environment variables via viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// IMAP holds the mailbox connection settings.
type IMAP struct {
	Server   string
	Port     int
	Username string
	Password string
	Folder   string
}

// Poll holds the mailbox polling loop settings.
type Poll struct {
	Interval   time.Duration
	CursorFile string
}

// Vision holds the OCR service settings.
type Vision struct {
	Endpoint string
	APIKey   string
}

// OpenAI holds the record-extraction model settings.
type OpenAI struct {
	BaseURL string
	APIKey  string
	Model   string
}

// Kaipoke holds the remote scheduling system settings.
type Kaipoke struct {
	LoginURL      string
	CorporateCode string
	Username      string
	Password      string
	// EraOffset converts a Gregorian year to the remote calendar's era
	// year: era_year = gregorian_year - EraOffset.
	EraOffset int
	Headless  bool
}

// SMTP holds the outgoing notification mail settings.
type SMTP struct {
	Server   string
	Port     int
	Username string
	Password string
	Security string
}

// Health holds the liveness endpoint settings.
type Health struct {
	Bind string
	Port int
}

// Config is the full application configuration.
type Config struct {
	IMAP       IMAP
	Poll       Poll
	Vision     Vision
	OpenAI     OpenAI
	Kaipoke    Kaipoke
	Facilities map[string]string
	SMTP       SMTP
	Recipients []string
	Health     Health
	// DefaultImage is the image used by the extract command when no
	// path argument is given.
	DefaultImage string
}

// SetDefaults registers viper defaults for all optional keys. Called once
// from cmd before reading the config file.
func SetDefaults() {
	viper.SetDefault("imap.port", 993)
	viper.SetDefault("imap.folder", "INBOX")
	viper.SetDefault("poll.interval", "30s")
	viper.SetDefault("poll.cursor_file", "cursor.json")
	viper.SetDefault("vision.endpoint", "https://vision.googleapis.com/v1/images:annotate")
	viper.SetDefault("openai.base_url", "https://api.openai.com")
	viper.SetDefault("openai.model", "gpt-4o")
	viper.SetDefault("kaipoke.login_url", "https://r.kaipoke.biz/kaipokebiz/login/COM020102.do")
	viper.SetDefault("kaipoke.era_offset", 2018)
	viper.SetDefault("kaipoke.headless", true)
	viper.SetDefault("smtp.port", 465)
	viper.SetDefault("smtp.security", "ssl")
	viper.SetDefault("health.bind", "0.0.0.0")
	viper.SetDefault("health.port", 8080)
}

// Load reads the configuration from viper into a typed Config.
func Load() Config {
	return Config{
		IMAP: IMAP{
			Server:   viper.GetString("imap.server"),
			Port:     viper.GetInt("imap.port"),
			Username: viper.GetString("imap.username"),
			Password: viper.GetString("imap.password"),
			Folder:   viper.GetString("imap.folder"),
		},
		Poll: Poll{
			Interval:   viper.GetDuration("poll.interval"),
			CursorFile: viper.GetString("poll.cursor_file"),
		},
		Vision: Vision{
			Endpoint: viper.GetString("vision.endpoint"),
			APIKey:   viper.GetString("vision.api_key"),
		},
		OpenAI: OpenAI{
			BaseURL: viper.GetString("openai.base_url"),
			APIKey:  viper.GetString("openai.api_key"),
			Model:   viper.GetString("openai.model"),
		},
		Kaipoke: Kaipoke{
			LoginURL:      viper.GetString("kaipoke.login_url"),
			CorporateCode: viper.GetString("kaipoke.corporate_code"),
			Username:      viper.GetString("kaipoke.username"),
			Password:      viper.GetString("kaipoke.password"),
			EraOffset:     viper.GetInt("kaipoke.era_offset"),
			Headless:      viper.GetBool("kaipoke.headless"),
		},
		Facilities: viper.GetStringMapString("facilities"),
		SMTP: SMTP{
			Server:   viper.GetString("smtp.server"),
			Port:     viper.GetInt("smtp.port"),
			Username: viper.GetString("smtp.username"),
			Password: viper.GetString("smtp.password"),
			Security: viper.GetString("smtp.security"),
		},
		Recipients:   viper.GetStringSlice("notify.recipients"),
		Health:       Health{Bind: viper.GetString("health.bind"), Port: viper.GetInt("health.port")},
		DefaultImage: viper.GetString("extract.default_image"),
	}
}

// Validate checks that every credential the pipeline needs is present.
// Missing credentials are a startup-fatal condition, never silently
// defaulted.
func (c Config) Validate() error {
	var missing []string

	if c.IMAP.Server == "" {
		missing = append(missing, "imap.server")
	}
	if c.IMAP.Username == "" {
		missing = append(missing, "imap.username")
	}
	if c.IMAP.Password == "" {
		missing = append(missing, "imap.password")
	}
	if c.Vision.APIKey == "" {
		missing = append(missing, "vision.api_key")
	}
	if c.OpenAI.APIKey == "" {
		missing = append(missing, "openai.api_key")
	}
	if c.Kaipoke.CorporateCode == "" {
		missing = append(missing, "kaipoke.corporate_code")
	}
	if c.Kaipoke.Username == "" {
		missing = append(missing, "kaipoke.username")
	}
	if c.Kaipoke.Password == "" {
		missing = append(missing, "kaipoke.password")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s (run `attendrelay init` to create config.yaml)",
			strings.Join(missing, ", "))
	}

	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll.interval must be positive, got %s", c.Poll.Interval)
	}

	return nil
}

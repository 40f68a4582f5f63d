package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/A78Z/pmn-marches-publics/internal/infrastructure/parser"
)

const (
	defaultTimezone = "Africa/Dakar"
	configPathEnv   = "PMN_CONFIG"
)

// Config holds high-level settings required across the application.
type Config struct {
	Scraping       ScrapingConfig       `yaml:"scraping"`
	Database       DatabaseConfig       `yaml:"database"`
	Scheduler      SchedulerConfig      `yaml:"scheduler"`
	Server         ServerConfig         `yaml:"server"`
	Notifications  NotificationConfig   `yaml:"notifications"`
	Logging        LoggingConfig        `yaml:"logging"`
	Classification ClassificationConfig `yaml:"classification"`
	// Selectors override individual lists of the built-in marchespublics.sn selectors.
	Selectors parser.Selectors `yaml:"selectors"`
}

// ScrapingConfig describes the source site and the page loader.
type ScrapingConfig struct {
	SourceURL         string        `yaml:"sourceUrl"`
	Parser            string        `yaml:"parser"`
	UserAgent         string        `yaml:"userAgent"`
	Timeout           time.Duration `yaml:"timeout"`
	SelectorTimeout   time.Duration `yaml:"selectorTimeout"`
	MaxRetries        int           `yaml:"maxRetries"`
	MaxPages          int           `yaml:"maxPages"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond"`
}

// DatabaseConfig selects the repository backend: sqlite, postgres or memory.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// SchedulerConfig defines when the scraper and the reminders run.
type SchedulerConfig struct {
	Disabled       bool   `yaml:"disabled"`
	CronExpression string `yaml:"cronExpression"`
	Timezone       string `yaml:"timezone"`
	// ReminderCron is empty when deadline reminders are off.
	ReminderCron string `yaml:"reminderCron"`
	ReminderDays int    `yaml:"reminderDays"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	tz := s.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ServerConfig configures the HTTP control surface.
type ServerConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"corsOrigins"`
}

// NotificationConfig encapsulates outbound channels and their recipients.
type NotificationConfig struct {
	PortalURL  string            `yaml:"portalUrl"`
	SMTP       SMTPConfig        `yaml:"smtp"`
	WhatsApp   WhatsAppConfig    `yaml:"whatsapp"`
	Telegram   TelegramConfig    `yaml:"telegram"`
	Recipients []RecipientConfig `yaml:"recipients"`
}

// SMTPConfig holds the outgoing mail server.
type SMTPConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	FromName    string `yaml:"fromName"`
	FromAddress string `yaml:"fromAddress"`
}

// Enabled reports whether a mail server is configured.
func (c SMTPConfig) Enabled() bool { return c.Host != "" }

// WhatsAppConfig holds the Business API credentials.
type WhatsAppConfig struct {
	APIURL        string `yaml:"apiUrl"`
	PhoneNumberID string `yaml:"phoneNumberId"`
	AccessToken   string `yaml:"accessToken"`
}

// Enabled reports whether the Business API is configured.
func (c WhatsAppConfig) Enabled() bool { return c.PhoneNumberID != "" && c.AccessToken != "" }

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	APIURL   string `yaml:"apiUrl"`
	// ChatID receives every digest when set.
	ChatID string `yaml:"chatId"`
}

// RecipientConfig subscribes one person to alerts.
type RecipientConfig struct {
	Name     string   `yaml:"name"`
	Email    string   `yaml:"email"`
	WhatsApp string   `yaml:"whatsapp"`
	Telegram string   `yaml:"telegram"`
	Modules  []string `yaml:"modules"`
	Regions  []string `yaml:"regions"`
}

// LoggingConfig selects level and handler (text, json, console).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ClassificationConfig points at optional keyword table overrides.
type ClassificationConfig struct {
	TablesPath string `yaml:"tablesPath"`
}

// Load reads YAML configuration from path (or $PMN_CONFIG), merges it over
// the defaults and applies environment overrides.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, eris.Wrapf(err, "config: read %s", path)
		}
		var fileCfg Config
		if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
			return Config{}, eris.Wrapf(err, "config: parse %s", path)
		}
		if err := mergo.Merge(&cfg, fileCfg, mergo.WithOverride); err != nil {
			return Config{}, eris.Wrap(err, "config: merge")
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c Config) Validate() error {
	if c.Scraping.SourceURL == "" {
		return eris.New("config: scraping.sourceUrl is required")
	}
	switch c.Database.Driver {
	case "sqlite", "postgres", "memory":
	default:
		return eris.Errorf("config: unknown database driver %q", c.Database.Driver)
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return eris.Wrapf(err, "config: timezone %s", c.Scheduler.Timezone)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return eris.Errorf("config: invalid server port %d", c.Server.Port)
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	str := map[string]*string{
		"DATABASE_DSN":             &c.Database.DSN,
		"DATABASE_DRIVER":          &c.Database.Driver,
		"SCRAPING_SOURCE_URL":      &c.Scraping.SourceURL,
		"SCRAPING_CRON_SCHEDULE":   &c.Scheduler.CronExpression,
		"SCRAPING_USER_AGENT":      &c.Scraping.UserAgent,
		"SCHEDULER_TIMEZONE":       &c.Scheduler.Timezone,
		"SMTP_HOST":                &c.Notifications.SMTP.Host,
		"SMTP_USER":                &c.Notifications.SMTP.User,
		"SMTP_PASS":                &c.Notifications.SMTP.Password,
		"EMAIL_FROM_NAME":          &c.Notifications.SMTP.FromName,
		"EMAIL_FROM_ADDRESS":       &c.Notifications.SMTP.FromAddress,
		"WHATSAPP_API_URL":         &c.Notifications.WhatsApp.APIURL,
		"WHATSAPP_PHONE_NUMBER_ID": &c.Notifications.WhatsApp.PhoneNumberID,
		"WHATSAPP_ACCESS_TOKEN":    &c.Notifications.WhatsApp.AccessToken,
		"TELEGRAM_BOT_TOKEN":       &c.Notifications.Telegram.BotToken,
		"TELEGRAM_CHAT_ID":         &c.Notifications.Telegram.ChatID,
		"PORTAL_URL":               &c.Notifications.PortalURL,
		"LOG_LEVEL":                &c.Logging.Level,
		"LOG_FORMAT":               &c.Logging.Format,
	}
	for env, dst := range str {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"SCRAPING_MAX_RETRIES": &c.Scraping.MaxRetries,
		"PORT":                 &c.Server.Port,
		"SMTP_PORT":            &c.Notifications.SMTP.Port,
	}
	for env, dst := range ints {
		v := os.Getenv(env)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return eris.Wrapf(err, "config: %s", env)
		}
		*dst = n
	}

	if v := os.Getenv("SCRAPING_TIMEOUT"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return eris.Wrap(err, "config: SCRAPING_TIMEOUT")
		}
		c.Scraping.Timeout = time.Duration(ms) * time.Millisecond
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.Server.CORSOrigins = splitList(v)
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func defaultConfig() Config {
	return Config{
		Scraping: ScrapingConfig{
			SourceURL:         "http://www.marchespublics.sn/index.php",
			Parser:            parser.MarchesPublicsName,
			UserAgent:         "PMN-Scraper/1.0 (+http://pmn.sn)",
			Timeout:           30 * time.Second,
			SelectorTimeout:   10 * time.Second,
			MaxRetries:        3,
			MaxPages:          10,
			RequestsPerSecond: 1,
		},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "pmn.db"},
		Scheduler: SchedulerConfig{
			CronExpression: "0 6,12,18 * * *",
			Timezone:       defaultTimezone,
			ReminderDays:   3,
		},
		Server: ServerConfig{Port: 3001, CORSOrigins: []string{"http://localhost:3000"}},
		Notifications: NotificationConfig{
			PortalURL: "https://pmn-marches.sn",
			SMTP:      SMTPConfig{Port: 587, FromName: "PMN Marchés Publics", FromAddress: "noreply@pmn.sn"},
			WhatsApp:  WhatsAppConfig{APIURL: "https://graph.facebook.com/v17.0"},
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

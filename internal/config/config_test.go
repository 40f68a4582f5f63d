package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/A78Z/pmn-marches-publics/internal/infrastructure/parser"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pmn.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(configPathEnv, "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://www.marchespublics.sn/index.php", cfg.Scraping.SourceURL)
	assert.Equal(t, parser.MarchesPublicsName, cfg.Scraping.Parser)
	assert.Equal(t, 30*time.Second, cfg.Scraping.Timeout)
	assert.Equal(t, 3, cfg.Scraping.MaxRetries)
	assert.Equal(t, 10, cfg.Scraping.MaxPages)
	assert.Equal(t, "0 6,12,18 * * *", cfg.Scheduler.CronExpression)
	assert.Equal(t, "Africa/Dakar", cfg.Scheduler.Location().String())
	assert.Equal(t, 3001, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
}

func TestLoadMergesFile(t *testing.T) {
	path := writeConfig(t, `
scraping:
  timeout: 45s
  maxPages: 4
database:
  driver: memory
scheduler:
  reminderCron: "0 8 * * *"
notifications:
  recipients:
    - name: atelier
      email: atelier@example.sn
      modules: [btp, achats]
selectors:
  title: [".intitule"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.Scraping.Timeout)
	assert.Equal(t, 4, cfg.Scraping.MaxPages)
	assert.Equal(t, 3, cfg.Scraping.MaxRetries)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, "0 8 * * *", cfg.Scheduler.ReminderCron)
	assert.Equal(t, "0 6,12,18 * * *", cfg.Scheduler.CronExpression)
	require.Len(t, cfg.Notifications.Recipients, 1)
	assert.Equal(t, []string{"btp", "achats"}, cfg.Notifications.Recipients[0].Modules)
	assert.Equal(t, []string{".intitule"}, cfg.Selectors.Title)
	assert.Equal(t, "PMN Marchés Publics", cfg.Notifications.SMTP.FromName)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(configPathEnv, writeConfig(t, "database:\n  driver: memory\n"))
	t.Setenv("SCRAPING_TIMEOUT", "15000")
	t.Setenv("SCRAPING_MAX_RETRIES", "5")
	t.Setenv("PORT", "8080")
	t.Setenv("CORS_ORIGINS", "https://a.sn, https://b.sn")
	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("DATABASE_DSN", "postgres://pmn@localhost/pmn")
	t.Setenv("WHATSAPP_PHONE_NUMBER_ID", "123")
	t.Setenv("WHATSAPP_ACCESS_TOKEN", "tok")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, cfg.Scraping.Timeout)
	assert.Equal(t, 5, cfg.Scraping.MaxRetries)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"https://a.sn", "https://b.sn"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://pmn@localhost/pmn", cfg.Database.DSN)
	assert.True(t, cfg.Notifications.WhatsApp.Enabled())
	assert.False(t, cfg.Notifications.SMTP.Enabled())
}

func TestLoadErrors(t *testing.T) {
	t.Setenv(configPathEnv, "")

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "config: read")

	_, err = Load(writeConfig(t, "scraping: ["))
	assert.ErrorContains(t, err, "config: parse")

	_, err = Load(writeConfig(t, "database:\n  driver: mongo\n"))
	assert.ErrorContains(t, err, "unknown database driver")

	_, err = Load(writeConfig(t, "scheduler:\n  timezone: Mars/Olympus\n"))
	assert.ErrorContains(t, err, "timezone")

	t.Setenv("PORT", "http")
	_, err = Load("")
	assert.ErrorContains(t, err, "PORT")
}

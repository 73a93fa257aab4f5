// Package config holds two layers of configuration.
//
//   - Operator config (this file): data directory, listen port, classifier
//     API key, Slack webhook URL, sources file. Set via env vars (KOTA_*)
//     or a kota.config.yaml file, resolved through viper.
//
//   - Attention policy (attention.go): per-source thresholds, channel
//     preferences, guardrails, dispatch targets. A JSON document under the
//     data directory, owned by Store, reloadable at runtime.
//
// API keys never live in the attention policy document; the guardrails only
// record whether a key is required, the key itself comes from the operator
// layer.
package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Viper keys. Each maps to an env var with the KOTA_ prefix
// (e.g. "data_dir" → KOTA_DATA_DIR) and to a YAML field in kota.config.yaml.
const (
	KeyDataDir          = "data_dir"
	KeyPort             = "port"
	KeyClassifierAPIKey = "classifier_api_key"
	KeySlackWebhookURL  = "slack_webhook_url"
	KeySourcesFile      = "sources_file"
	KeyDigestCron       = "digest_cron"
)

// Defaults.
const (
	DefaultPort       = 8080
	DefaultDigestCron = "0 9 * * *"
)

// Config holds resolved operator-level configuration for a gateway process.
type Config struct {
	DataDir          string // base directory for all state (~/.kota)
	Port             int    // HTTP server port
	ClassifierAPIKey string // key for the classification backend, if any
	SlackWebhookURL  string // Slack incoming-webhook URL for the slack transport
	SourcesFile      string // path to the webhook sources YAML (optional)
	DigestCron       string // cron expression for the daily digest ("" disables)
}

func init() {
	viper.SetEnvPrefix("KOTA")
	viper.AutomaticEnv()
	viper.SetDefault(KeyPort, DefaultPort)
	viper.SetDefault(KeyDigestCron, DefaultDigestCron)
}

// Load reads configuration from viper (env vars, config file, defaults).
func Load() (*Config, error) {
	return &Config{
		DataDir:          resolveDataDir(),
		Port:             viper.GetInt(KeyPort),
		ClassifierAPIKey: viper.GetString(KeyClassifierAPIKey),
		SlackWebhookURL:  viper.GetString(KeySlackWebhookURL),
		SourcesFile:      viper.GetString(KeySourcesFile),
		DigestCron:       viper.GetString(KeyDigestCron),
	}, nil
}

func resolveDataDir() string {
	if dir := viper.GetString(KeyDataDir); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".kota"
	}
	return filepath.Join(home, ".kota")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0o700)
}

// AttentionConfigPath returns the path of the attention policy document.
func (c *Config) AttentionConfigPath() string {
	return filepath.Join(c.DataDir, "attention.json")
}

// JournalDBPath returns the path of the daily journal SQLite database.
func (c *Config) JournalDBPath() string {
	return filepath.Join(c.DataDir, "journal.db")
}

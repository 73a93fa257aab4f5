// Package trigger implements the gateway's inbound paths: the webhook
// ingress that turns provider events into pipeline runs, and the cron
// scheduler for the daily digest.
package trigger

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Source declares one inbound webhook provider.
type Source struct {
	Name string `yaml:"name"`
	// KindField names the body field carrying the event kind when the
	// X-Kota-Event header is absent. Defaults to "type".
	KindField string `yaml:"kind_field,omitempty"`
	// Secret is the shared secret expected in X-Kota-Secret. SecretEnv names
	// an env var to read it from instead, keeping secrets out of the file.
	Secret    string `yaml:"secret,omitempty"`
	SecretEnv string `yaml:"secret_env,omitempty"`
}

type sourcesFile struct {
	Sources []Source `yaml:"sources"`
}

// LoadSources reads the webhook source definitions from a YAML file and
// resolves env-referenced secrets. An empty path returns nil, which the
// webhook handler treats as "accept any source" (development mode).
func LoadSources(path string) (map[string]Source, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sources file: %w", err)
	}

	var file sourcesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing sources file: %w", err)
	}

	sources := make(map[string]Source, len(file.Sources))
	for _, src := range file.Sources {
		if src.Name == "" {
			return nil, fmt.Errorf("sources file: source with empty name")
		}
		if src.KindField == "" {
			src.KindField = "type"
		}
		if src.SecretEnv != "" {
			src.Secret = os.Getenv(src.SecretEnv)
			if src.Secret == "" {
				log.Warn().Str("source", src.Name).Str("env", src.SecretEnv).Msg("source_secret_env_empty")
			}
		}
		sources[src.Name] = src
	}
	return sources, nil
}

// Package config loads bomsync settings: an optional YAML file, the hub
// token file and FOSSology's config.ini.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
	"stackerbuild.io/bomsync/errors"
	"stackerbuild.io/bomsync/pkg/hub"
	"stackerbuild.io/bomsync/pkg/poll"
)

const (
	EnvHubURL   = "BLACKDUCK_URL"
	EnvHubToken = "BLACKDUCK_API_TOKEN"

	DefaultLicense      = "NOASSERTION"
	DefaultFossyConfig  = "config.ini"
	DefaultFossySection = "prod"
)

type Hub struct {
	URL       string `yaml:"url"`
	TokenFile string `yaml:"token_file"`
	// Token is only taken from the environment.
	Token            string        `yaml:"-"`
	Insecure         bool          `yaml:"insecure"`
	Timeout          time.Duration `yaml:"timeout"`
	Retries          int           `yaml:"retries"`
	MaxSearchResults int           `yaml:"max_search_results"`
}

type Poll struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Interval    time.Duration `yaml:"interval"`
}

type Import struct {
	License string `yaml:"license"`
}

type Fossy struct {
	Config  string `yaml:"config"`
	Section string `yaml:"section"`
}

type Config struct {
	Hub    Hub    `yaml:"hub"`
	Poll   Poll   `yaml:"poll"`
	Import Import `yaml:"import"`
	Fossy  Fossy  `yaml:"fossy"`
}

// DefaultPath is ~/.config/bomsync/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".config", "bomsync", "config.yaml")
}

func Default() *Config {
	return &Config{
		Hub: Hub{
			Timeout:          hub.DefaultTimeout,
			Retries:          hub.DefaultRetryCount,
			MaxSearchResults: hub.DefaultMaxSearchResults,
		},
		Poll: Poll{
			MaxAttempts: poll.DefaultMaxAttempts,
			Interval:    poll.DefaultInterval,
		},
		Import: Import{License: DefaultLicense},
		Fossy:  Fossy{Config: DefaultFossyConfig, Section: DefaultFossySection},
	}
}

// Load reads path over the defaults and applies environment overrides. A
// missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		content, err := os.ReadFile(path)

		switch {
		case os.IsNotExist(err):
			log.Debug().Str("path", path).Msg("no config file")
		case err != nil:
			log.Error().Err(err).Str("path", path).Msg("unable to read config")

			return nil, fmt.Errorf("%w: %w", errors.ErrConfig, err)
		default:
			if err := yaml.Unmarshal(content, cfg); err != nil {
				log.Error().Err(err).Str("path", path).Msg("unable to parse config")

				return nil, fmt.Errorf("%w: %s: %w", errors.ErrConfig, path, err)
			}
		}
	}

	if v := os.Getenv(EnvHubURL); v != "" {
		cfg.Hub.URL = v
	}

	if v := os.Getenv(EnvHubToken); v != "" {
		cfg.Hub.Token = v
	}

	return cfg, nil
}

// HubOptions resolves the token and returns client options.
func (c *Config) HubOptions() (hub.Options, error) {
	token := c.Hub.Token

	if token == "" && c.Hub.TokenFile != "" {
		var err error

		token, err = ReadToken(c.Hub.TokenFile)
		if err != nil {
			return hub.Options{}, err
		}
	}

	return hub.Options{
		BaseURL:          c.Hub.URL,
		Token:            token,
		Insecure:         c.Hub.Insecure,
		Timeout:          c.Hub.Timeout,
		Retries:          c.Hub.Retries,
		MaxSearchResults: c.Hub.MaxSearchResults,
	}, nil
}

// ReadToken returns the first line of a token file, trimmed.
func ReadToken(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("unable to open token file")

		return "", fmt.Errorf("%w: %w", errors.ErrConfig, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("%w: %w", errors.ErrConfig, err)
		}

		return "", fmt.Errorf("%w: token file %s is empty", errors.ErrConfig, path)
	}

	token := strings.TrimSpace(scanner.Text())
	if token == "" {
		return "", fmt.Errorf("%w: token file %s is empty", errors.ErrConfig, path)
	}

	return token, nil
}

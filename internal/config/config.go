// Package config loads esctl configuration from a YAML config file,
// environment variables, and an optional .env file. Environment
// variables use the ESCTL_ prefix (ESCTL_SERVER_URL, ESCTL_TOKEN) and
// take precedence over the config file.
package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"esctl/internal/errors"
	"esctl/internal/log"
	"esctl/internal/splunk"
)

// EnvPrefix is the prefix for configuration environment variables.
const EnvPrefix = "ESCTL"

// Config is the resolved esctl configuration.
type Config struct {
	// ServerURL is the Splunk management endpoint, e.g.
	// https://splunk.example.com:8089.
	ServerURL string `json:"server_url" mapstructure:"server_url"`

	// Token is the bearer token used for authentication.
	Token string `json:"token" mapstructure:"token"`

	// Namespace, User and App select the API path prefix
	// ({namespace}/{user}/{app}/...). Services override App where the
	// endpoint lives in a different Splunk app.
	Namespace string `json:"namespace" mapstructure:"namespace"`
	User      string `json:"user" mapstructure:"user"`
	App       string `json:"app" mapstructure:"app"`

	// Timeout bounds a single HTTP round trip.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries is the retry budget for transient API failures.
	MaxRetries uint64 `json:"max_retries" mapstructure:"max_retries"`

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool `json:"insecure_skip_verify" mapstructure:"insecure_skip_verify"`

	LogLevel  string `json:"log_level" mapstructure:"log_level"`
	LogFormat string `json:"log_format" mapstructure:"log_format"`
}

// Load resolves the configuration. When path is empty the default
// locations are searched ($HOME/.esctl/config.yaml, then the working
// directory); a missing default file is not an error.
func Load(path string) (*Config, error) {
	// Pick up a local .env before viper reads the environment.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Register every key so AutomaticEnv can populate it even when no
	// config file mentions it.
	v.SetDefault("server_url", "")
	v.SetDefault("token", "")
	v.SetDefault("namespace", "servicesNS")
	v.SetDefault("user", "nobody")
	v.SetDefault("app", "SplunkEnterpriseSecuritySuite")
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("max_retries", uint64(3))
	v.SetDefault("insecure_skip_verify", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(errors.ErrCodeConfigNotFound,
				fmt.Sprintf("reading config file %s", path), err).
				WithSuggestion("Check that the file exists and is valid YAML")
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".esctl"))
		}
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !stderrors.As(err, &notFound) {
				return nil, errors.Wrap(errors.ErrCodeConfigInvalid, "reading config file", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigInvalid, "parsing configuration", err)
	}
	return cfg, nil
}

// Validate checks that the configuration is sufficient to reach the
// Splunk API.
func (c *Config) Validate() error {
	var missing []string
	if c.ServerURL == "" {
		missing = append(missing, "server_url")
	}
	if c.Token == "" {
		missing = append(missing, "token")
	}
	if len(missing) > 0 {
		return errors.NewConfigInvalidError("missing " + strings.Join(missing, ", ")).
			WithSuggestion("Set " + EnvPrefix + "_SERVER_URL and " + EnvPrefix + "_TOKEN or add them to the config file")
	}
	if !strings.HasPrefix(c.ServerURL, "http://") && !strings.HasPrefix(c.ServerURL, "https://") {
		return errors.NewConfigInvalidError(
			fmt.Sprintf("server_url %q must start with http:// or https://", c.ServerURL))
	}
	return nil
}

// SplunkConfig maps the configuration onto the API client settings.
func (c *Config) SplunkConfig() splunk.Config {
	return splunk.Config{
		BaseURL:            c.ServerURL,
		Token:              c.Token,
		Timeout:            c.Timeout,
		MaxRetries:         c.MaxRetries,
		InsecureSkipVerify: c.InsecureSkipVerify,
	}
}

// LogConfig maps the configuration onto logger settings.
func (c *Config) LogConfig() log.Config {
	return log.Config{
		Level:  log.ParseLevel(c.LogLevel),
		Format: log.ParseFormat(c.LogFormat),
		Output: log.OutputStderr(),
	}
}

// Redacted returns a copy safe for display, with the token masked.
func (c *Config) Redacted() Config {
	out := *c
	if out.Token != "" {
		out.Token = "********"
	}
	return out
}

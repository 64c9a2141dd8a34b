package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds host configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Repo    RepoConfig    `mapstructure:"repo"`
	Journal JournalConfig `mapstructure:"journal"`
	Publish PublishConfig `mapstructure:"publish"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// CloseGrace closes a surface once its last client has been gone this long. Zero keeps
	// surfaces open until closed explicitly.
	CloseGrace time.Duration `mapstructure:"close_grace"`
}

type RepoConfig struct {
	Dir         string        `mapstructure:"dir"`
	GitHubHosts []string      `mapstructure:"github_hosts"`
	Debounce    time.Duration `mapstructure:"debounce"`
}

type JournalConfig struct {
	Path string `mapstructure:"path"`
}

type PublishConfig struct {
	GHBin string `mapstructure:"gh_bin"`
	Draft bool   `mapstructure:"draft"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json|console
}

// Load reads configuration from file and env. Env var overrides use prefix PRDRAFT_
// (e.g. PRDRAFT_SERVER_ADDR). path, when set, names the config file; otherwise
// PRDRAFT_CONFIG or ~/.config/prdraft/config.toml is used if present.
func Load(path string) (Config, error) {
	v := viper.New()

	home, _ := os.UserHomeDir()
	v.SetDefault("server.addr", "127.0.0.1:7766")
	v.SetDefault("server.close_grace", "0s")
	v.SetDefault("repo.dir", ".")
	v.SetDefault("repo.github_hosts", []string{"github.com"})
	v.SetDefault("repo.debounce", "150ms")
	v.SetDefault("journal.path", filepath.Join(home, ".local", "share", "prdraft", "journal.db"))
	v.SetDefault("publish.gh_bin", "gh")
	v.SetDefault("publish.draft", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetConfigType("toml")

	if path == "" {
		path = os.Getenv("PRDRAFT_CONFIG")
	}
	explicit := path != ""
	if explicit {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(filepath.Join(home, ".config", "prdraft"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("PRDRAFT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	c.Repo.GitHubHosts = normalizeHosts(c.Repo.GitHubHosts)
	return c, nil
}

// Env values arrive as one space or comma separated string.
func normalizeHosts(in []string) []string {
	var out []string
	for _, h := range in {
		for _, f := range strings.FieldsFunc(h, func(r rune) bool { return r == ',' || r == ' ' }) {
			if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
				out = append(out, f)
			}
		}
	}
	return out
}

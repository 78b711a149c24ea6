// Package config loads client settings from flags, environment and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/omochice/relay-chat/internal/logging"
	"github.com/omochice/relay-chat/pkg/protocol"
)

const (
	// DefaultAddress is the public relay.
	DefaultAddress = "ws://sillirc.owomay.hackclub.app"
	// DefaultUsername is used when no name is given and no profile exists.
	DefaultUsername = "Anonymouse"

	envPrefix  = "RELAYCHAT"
	configName = "relay-chat"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the resolved client configuration.
type Config struct {
	Address      string         `mapstructure:"address"`
	Username     string         `mapstructure:"username"`
	Codec        string         `mapstructure:"codec"`
	Profile      string         `mapstructure:"profile"`
	WriteTimeout time.Duration  `mapstructure:"write_timeout"`
	Retry        RetryConfig    `mapstructure:"retry"`
	Log          logging.Config `mapstructure:"log"`

	// UsernameSet reports whether the name came from a flag, env or file
	// rather than the default, so a saved profile name can take precedence.
	UsernameSet bool `mapstructure:"-"`
}

// RetryConfig is the connect backoff. Zero Initial retries immediately.
type RetryConfig struct {
	Initial time.Duration `mapstructure:"initial"`
	Max     time.Duration `mapstructure:"max"`
}

// Load resolves configuration from args (without the program name).
// Precedence, highest first: positional args, flags, RELAYCHAT_* env, config file, defaults.
// It returns pflag.ErrHelp when -h or --help is given.
func Load(args []string) (Config, error) {
	fs := pflag.NewFlagSet("relay-chat", pflag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() { Usage(fs) }
	configFile := fs.String("config", "", "path to a YAML config file")
	fs.String("address", DefaultAddress, "relay address (ws:// or wss://)")
	fs.StringP("username", "u", DefaultUsername, "display name")
	fs.String("codec", "json", "wire encoding: json or protobuf")
	fs.String("profile", defaultProfilePath(), "profile file, empty to disable")
	fs.Duration("write-timeout", 10*time.Second, "timeout for a single frame write")
	fs.Duration("retry-initial", 0, "first connect retry delay, 0 retries immediately")
	fs.Duration("retry-max", 0, "upper bound for the connect retry delay")
	fs.String("log-level", "warn", "log level: trace, debug, info, warn, error, off")
	fs.Bool("log-pretty", false, "human readable logs")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	v := viper.New()
	for key, flag := range map[string]string{
		"address":       "address",
		"username":      "username",
		"codec":         "codec",
		"profile":       "profile",
		"write_timeout": "write-timeout",
		"retry.initial": "retry-initial",
		"retry.max":     "retry-max",
		"log.level":     "log-level",
		"log.pretty":    "log-pretty",
	} {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return Config{}, fmt.Errorf("failed to bind flag %s: %w", flag, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := readConfigFile(v, *configFile); err != nil {
		return Config{}, err
	}

	switch rest := fs.Args(); len(rest) {
	case 2:
		v.Set("address", rest[1])
		fallthrough
	case 1:
		v.Set("username", rest[0])
	case 0:
	default:
		return Config{}, fmt.Errorf("%w: unexpected argument %q", ErrInvalid, rest[2])
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	_, fromEnv := os.LookupEnv(envPrefix + "_USERNAME")
	cfg.UsernameSet = len(fs.Args()) > 0 || fs.Changed("username") || fromEnv || v.InConfig("username")

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Address) == "" {
		return fmt.Errorf("%w: address is empty", ErrInvalid)
	}
	if _, err := protocol.CodecByName(c.Codec); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.Retry.Initial < 0 || c.Retry.Max < 0 || c.WriteTimeout < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrInvalid)
	}
	if c.Retry.Max > 0 && c.Retry.Max < c.Retry.Initial {
		return fmt.Errorf("%w: retry.max is below retry.initial", ErrInvalid)
	}
	return nil
}

// Usage prints the command synopsis and flags.
func Usage(fs *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, "Usage: relay-chat [flags] [USERNAME [ADDRESS]]\n\nFlags:\n%s", fs.FlagUsages())
}

func readConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", path, err)
		}
		return nil
	}

	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, configName))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

func defaultProfilePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, configName, "profile.yaml")
}

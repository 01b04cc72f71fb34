// Package config resolves runtime settings from flags, environment and an optional config file.
//
// PORT and CLAUDE_API_KEY are read under their bare names as well as with the PATTERN_SPACE_ prefix.
package config

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/go-go-golems/pattern-space/pkg/events"
	"github.com/go-go-golems/pattern-space/pkg/generation"
	"github.com/go-go-golems/pattern-space/pkg/logging"
)

const (
	AppName     = "pattern-space"
	EnvPrefix   = "PATTERN_SPACE"
	DefaultHost = "0.0.0.0"
	DefaultPort = 10000
)

// Keys shared by flags, env and config file.
const (
	KeyHost              = "host"
	KeyPort              = "port"
	KeyAPIKey            = "claude-api-key"
	KeyEndpoint          = "anthropic-endpoint"
	KeyGenerationTimeout = "generation-timeout"
	KeyStaticDir         = "static-dir"
	KeyRedisEnabled      = "redis-enabled"
	KeyRedisAddr         = "redis-addr"
	KeyRedisGroup        = "redis-group"
	KeyRedisConsumer     = "redis-consumer"
	KeyLogLevel          = "log-level"
	KeyLogFormat         = "log-format"
	KeyLogFile           = "log-file"
)

type Settings struct {
	Host string
	Port int
	// StaticDir overrides the embedded UI when set.
	StaticDir  string
	Generation generation.Settings
	Events     events.Settings
	Logging    logging.Settings
}

func (s Settings) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// NewViper returns a viper instance with defaults and env bindings in place.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func SetDefaults(v *viper.Viper) {
	ev := events.DefaultSettings()
	lg := logging.DefaultSettings()

	v.SetDefault(KeyHost, DefaultHost)
	v.SetDefault(KeyPort, strconv.Itoa(DefaultPort))
	v.SetDefault(KeyEndpoint, generation.DefaultEndpoint)
	v.SetDefault(KeyGenerationTimeout, generation.DefaultTimeout.String())
	v.SetDefault(KeyRedisEnabled, ev.Enabled)
	v.SetDefault(KeyRedisAddr, ev.Addr)
	v.SetDefault(KeyRedisGroup, ev.Group)
	v.SetDefault(KeyRedisConsumer, ev.Consumer)
	v.SetDefault(KeyLogLevel, lg.Level)
	v.SetDefault(KeyLogFormat, lg.Format)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv(KeyPort, "PORT", EnvPrefix+"_PORT")
	_ = v.BindEnv(KeyAPIKey, "CLAUDE_API_KEY", EnvPrefix+"_CLAUDE_API_KEY")
}

// ReadConfigFile loads path, or $HOME/.pattern-space/config.yaml when path is empty.
// A missing default file is not an error.
func ReadConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		return errors.Wrapf(v.ReadInConfig(), "read config %s", path)
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, "."+AppName))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errors.Wrap(err, "read config")
	}
	return nil
}

// Load resolves Settings. An unparsable or out-of-range port is an error.
func Load(v *viper.Viper) (Settings, error) {
	port, err := ParsePort(v.GetString(KeyPort))
	if err != nil {
		return Settings{}, err
	}

	timeout := v.GetDuration(KeyGenerationTimeout)
	if timeout <= 0 {
		return Settings{}, errors.Errorf("%s must be positive, got %q", KeyGenerationTimeout, v.GetString(KeyGenerationTimeout))
	}

	return Settings{
		Host:      v.GetString(KeyHost),
		Port:      port,
		StaticDir: v.GetString(KeyStaticDir),
		Generation: generation.Settings{
			APIKey:   strings.TrimSpace(v.GetString(KeyAPIKey)),
			Endpoint: v.GetString(KeyEndpoint),
			Timeout:  timeout,
		},
		Events: events.Settings{
			Enabled:  v.GetBool(KeyRedisEnabled),
			Addr:     v.GetString(KeyRedisAddr),
			Group:    v.GetString(KeyRedisGroup),
			Consumer: v.GetString(KeyRedisConsumer),
		},
		Logging: LoggingSettings(v),
	}, nil
}

func ParsePort(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultPort, nil
	}
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid PORT %q", s)
	}
	if port < 1 || port > 65535 {
		return 0, errors.Errorf("invalid PORT %d: out of range", port)
	}
	return port, nil
}

// LoggingSettings is used before the full Load so that log setup errors surface early.
func LoggingSettings(v *viper.Viper) logging.Settings {
	lg := logging.DefaultSettings()
	lg.Level = v.GetString(KeyLogLevel)
	lg.Format = v.GetString(KeyLogFormat)
	lg.File = v.GetString(KeyLogFile)
	return lg
}

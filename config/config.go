package config

import (
	"path"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/kochabonline/hartshorn/core/reflect"
	"github.com/kochabonline/hartshorn/errors"
	"github.com/kochabonline/hartshorn/ioc"
	"github.com/kochabonline/hartshorn/log"
	"github.com/kochabonline/hartshorn/validator"
)

var _ ioc.PropertyResolver = (*Config)(nil)

type Provider int

const (
	ProviderFile Provider = iota
)

// Pre-defined environment key replacer to avoid repeated creation
var envKeyReplacer = strings.NewReplacer(".", "_")

type Config struct {
	viper    *viper.Viper
	mu       sync.RWMutex
	onChange []func(dest any)

	Provider  Provider // Provider is the provider of the configuration, e.g., file, etc.
	Path      []string // Path is the path to the configuration file, can be multiple paths.
	Name      string   // Name is the name of the configuration file, the extension selects the format.
	Dest      any      // Dest is the destination where the configuration will be unmarshalled.
	Optional  bool     // Optional allows a missing configuration file; defaults and env still apply.
	EnvPrefix string   // EnvPrefix scopes environment overrides, e.g. APP_SERVER_ADDR.
}

type Option func(*Config)

func WithViper(v *viper.Viper) Option {
	return func(c *Config) {
		c.viper = v
	}
}

func WithProvider(provider Provider) Option {
	return func(c *Config) {
		c.Provider = provider
	}
}

func WithPath(path ...string) Option {
	return func(c *Config) {
		c.Path = path
	}
}

func WithName(name string) Option {
	return func(c *Config) {
		c.Name = name
	}
}

func WithDest(dest any) Option {
	return func(c *Config) {
		c.Dest = dest
	}
}

func WithOptional() Option {
	return func(c *Config) {
		c.Optional = true
	}
}

func WithEnvPrefix(prefix string) Option {
	return func(c *Config) {
		c.EnvPrefix = prefix
	}
}

// WithOnChange registers a callback run after every successful reload.
func WithOnChange(fn func(dest any)) Option {
	return func(c *Config) {
		if fn != nil {
			c.onChange = append(c.onChange, fn)
		}
	}
}

func New(opts ...Option) (*Config, error) {
	c := &Config{
		Provider: ProviderFile,
		Path:     []string{"."},
		viper:    viper.New(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.Dest != nil {
		if err := reflect.SetDefaultTag(c.Dest); err != nil {
			return nil, errors.Config("defaults of %T", c.Dest).WithCause(err)
		}
	}

	c.configureViper()

	return c, nil
}

// configureViper configures the default settings for the viper instance
func (c *Config) configureViper() {
	// Parse configuration file type
	extension := path.Ext(c.Name)
	configType := strings.TrimPrefix(extension, ".")

	// Configure viper
	for _, configPath := range c.Path {
		c.viper.AddConfigPath(configPath)
	}

	c.viper.SetConfigName(strings.TrimSuffix(c.Name, extension))
	if configType != "" {
		c.viper.SetConfigType(configType)
	}
	if c.EnvPrefix != "" {
		c.viper.SetEnvPrefix(c.EnvPrefix)
	}
	c.viper.AutomaticEnv()
	c.viper.SetEnvKeyReplacer(envKeyReplacer)
}

func (c *Config) GetViper() *viper.Viper {
	return c.viper
}

// ReadInConfig reads the file, unmarshals it into Dest, fills `default` tags and
// validates `validate` tags.
func (c *Config) ReadInConfig() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Name != "" {
		if err := c.viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !c.Optional || !errors.As(err, &notFound) {
				return errors.Config("read %s", c.Name).WithCause(err)
			}
			log.Warn().Msgf("[config] | %s not found | using defaults", c.Name)
		}
	}

	if c.Dest == nil {
		return nil
	}
	if err := c.viper.Unmarshal(c.Dest); err != nil {
		return errors.Config("unmarshal %s", c.Name).WithCause(err)
	}
	if err := reflect.SetDefaultTag(c.Dest); err != nil {
		return errors.Config("defaults of %T", c.Dest).WithCause(err)
	}
	if err := validator.Struct(c.Dest); err != nil {
		return errors.Config("validate %s", c.Name).WithCause(err)
	}
	return nil
}

// WatchConfig reloads Dest when the file changes and runs the change callbacks.
func (c *Config) WatchConfig() error {
	c.viper.OnConfigChange(func(e fsnotify.Event) {
		log.Info().Msgf("[config] | file changed: %s | op: %s", e.Name, e.Op)
		if err := c.ReadInConfig(); err != nil {
			log.Error().Err(err).Msg("[config] | reload failed")
			return
		}
		c.mu.RLock()
		callbacks := append([]func(any){}, c.onChange...)
		c.mu.RUnlock()
		for _, fn := range callbacks {
			fn(c.Dest)
		}
	})
	c.viper.WatchConfig()
	return nil
}

// Property looks up key in the loaded configuration, environment overrides included.
func (c *Config) Property(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.viper.IsSet(key) {
		return nil, false
	}
	return c.viper.Get(key), true
}

// Set overrides a property, mostly useful in tests and for programmatic defaults.
func (c *Config) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.viper.Set(key, value)
}

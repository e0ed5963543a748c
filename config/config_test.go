package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochabonline/hartshorn/errors"
	"github.com/kochabonline/hartshorn/ioc"
)

type mock struct {
	Host    string        `mapstructure:"host" validate:"required,min=2"`
	Port    int           `mapstructure:"port" default:"8080"`
	Timeout time.Duration `mapstructure:"timeout" default:"5s"`
	Tags    []string      `mapstructure:"tags"`
	Nested  struct {
		Host string `mapstructure:"host" default:"localhost"`
	} `mapstructure:"nested"`
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestConfig_ReadInConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app.yaml", `
host: example.com
timeout: 2s
tags: [a, b]
`)

	cfg := new(mock)
	c, err := New(WithPath(dir), WithName("app.yaml"), WithDest(cfg))
	require.NoError(t, err)
	require.NoError(t, c.ReadInConfig())

	assert.Equal(t, "example.com", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 2*time.Second, cfg.Timeout)
	assert.Equal(t, []string{"a", "b"}, cfg.Tags)
	assert.Equal(t, "localhost", cfg.Nested.Host)
}

func TestConfig_Validation(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app.yaml", "host: x\n")

	c, err := New(WithPath(dir), WithName("app.yaml"), WithDest(new(mock)))
	require.NoError(t, err)
	err = c.ReadInConfig()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfig))
}

func TestConfig_Missing(t *testing.T) {
	dir := t.TempDir()

	c, err := New(WithPath(dir), WithName("absent.yaml"), WithDest(new(mock)))
	require.NoError(t, err)
	assert.Error(t, c.ReadInConfig())

	cfg := &mock{Host: "fallback"}
	c, err = New(WithPath(dir), WithName("absent.yaml"), WithDest(cfg), WithOptional())
	require.NoError(t, err)
	require.NoError(t, c.ReadInConfig())
	assert.Equal(t, 8080, cfg.Port)
}

func TestConfig_Property(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app.yaml", `
host: example.com
mail:
  sender: noreply@example.com
  retries: 3
`)
	c, err := New(WithPath(dir), WithName("app.yaml"))
	require.NoError(t, err)
	require.NoError(t, c.ReadInConfig())

	v, ok := c.Property("mail.sender")
	assert.True(t, ok)
	assert.Equal(t, "noreply@example.com", v)
	_, ok = c.Property("mail.missing")
	assert.False(t, ok)

	c.Set("mail.retries", 5)
	v, _ = c.Property("mail.retries")
	assert.Equal(t, 5, v)
}

type mailer struct {
	Sender  string `value:"mail.sender"`
	Retries int    `value:"mail.retries"`
}

func TestConfig_ValueInjection(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app.yaml", `
mail:
  sender: ops@example.com
  retries: "4"
`)
	c, err := New(WithPath(dir), WithName("app.yaml"))
	require.NoError(t, err)
	require.NoError(t, c.ReadInConfig())

	app := ioc.New(ioc.WithProperties(c), ioc.WithAutowire(true))
	m, err := ioc.Get[*mailer](context.Background(), app)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", m.Sender)
	assert.Equal(t, 4, m.Retries)
}

func TestConfig_Env(t *testing.T) {
	t.Setenv("APP_HOST", "from-env")
	cfg := new(mock)
	c, err := New(WithDest(cfg), WithEnvPrefix("APP"))
	require.NoError(t, err)
	c.GetViper().SetDefault("host", "")
	require.NoError(t, c.ReadInConfig())
	assert.Equal(t, "from-env", cfg.Host)

	v, ok := c.Property("host")
	assert.True(t, ok)
	assert.Equal(t, "from-env", v)
}

func TestConfig_Watch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app.yaml", "host: first.example\n")

	var reloads atomic.Int32
	cfg := new(mock)
	c, err := New(WithPath(dir), WithName("app.yaml"), WithDest(cfg), WithOnChange(func(any) {
		reloads.Add(1)
	}))
	require.NoError(t, err)
	require.NoError(t, c.ReadInConfig())
	require.NoError(t, c.WatchConfig())

	writeFile(t, dir, "app.yaml", "host: second.example\n")
	assert.Eventually(t, func() bool { return reloads.Load() > 0 }, 5*time.Second, 50*time.Millisecond)

	v, _ := c.Property("host")
	assert.Equal(t, "second.example", v)
}

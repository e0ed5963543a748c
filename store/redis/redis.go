// Package redis builds go-redis clients from configuration.
package redis

import (
	"context"
	"runtime"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/kochabonline/hartshorn/core/reflect"
	"github.com/kochabonline/hartshorn/errors"
	"github.com/kochabonline/hartshorn/log"
)

// Config describes a single node, or a cluster when Addrs is set.
type Config struct {
	Host     string   `json:"host" mapstructure:"host" default:"localhost"`
	Port     int      `json:"port" mapstructure:"port" default:"6379"`
	Addrs    []string `json:"addrs" mapstructure:"addrs"`
	Password string   `json:"password" mapstructure:"password"`
	DB       int      `json:"db" mapstructure:"db" default:"0"`
	Protocol int      `json:"protocol" mapstructure:"protocol" default:"3"`
	PoolSize int      `json:"poolSize" mapstructure:"poolSize"`
}

func (c *Config) init() error {
	if err := reflect.SetDefaultTag(c); err != nil {
		return err
	}
	if c.PoolSize == 0 {
		c.PoolSize = 10 * runtime.GOMAXPROCS(0)
	}
	return nil
}

func (c *Config) Addr() string {
	var builder strings.Builder
	builder.WriteString(c.Host)
	builder.WriteString(":")
	builder.WriteString(strconv.Itoa(c.Port))
	return builder.String()
}

func (c *Config) cluster() bool {
	return len(c.Addrs) > 0
}

// Client wraps a single node or cluster client behind redis.UniversalClient.
type Client struct {
	redis.UniversalClient
	config *Config
}

// New creates a client and pings the server.
func New(ctx context.Context, c *Config) (*Client, error) {
	if c == nil {
		c = &Config{}
	}
	if err := c.init(); err != nil {
		return nil, errors.Wrap(err, errors.CodeConfig, "redis config")
	}

	cl := &Client{config: c}
	if c.cluster() {
		cl.UniversalClient = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:    c.Addrs,
			Password: c.Password,
			Protocol: c.Protocol,
			PoolSize: c.PoolSize,
		})
	} else {
		cl.UniversalClient = redis.NewClient(&redis.Options{
			Addr:     c.Addr(),
			Password: c.Password,
			DB:       c.DB,
			Protocol: c.Protocol,
			PoolSize: c.PoolSize,
		})
	}

	if err := cl.Ping(ctx).Err(); err != nil {
		_ = cl.UniversalClient.Close()
		return nil, errors.Wrap(err, errors.CodeComponent, "redis ping")
	}
	log.Infof("[redis] | addr: %s | cluster: %t", cl.addr(), c.cluster())
	return cl, nil
}

func (c *Client) addr() string {
	if c.config.cluster() {
		return strings.Join(c.config.Addrs, ",")
	}
	return c.config.Addr()
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// Destroy closes the client when the application context shuts down.
func (c *Client) Destroy(context.Context) error {
	if c.UniversalClient == nil {
		return nil
	}
	return c.UniversalClient.Close()
}

package http

import (
	"time"

	ireflect "github.com/kochabonline/hartshorn/core/reflect"
)

// Config 诊断服务配置, 诊断路由默认开启
type Config struct {
	Name            string        `json:"name" mapstructure:"name" default:"http"`
	Addr            string        `json:"addr" mapstructure:"addr" default:":8080"`
	Prefix          string        `json:"prefix" mapstructure:"prefix" default:"/api"`
	ShutdownTimeout time.Duration `json:"shutdownTimeout" mapstructure:"shutdownTimeout" default:"10s"`
	Health          PathOption    `json:"health" mapstructure:"health"`
	Metrics         PathOption    `json:"metrics" mapstructure:"metrics"`
	Bindings        PathOption    `json:"bindings" mapstructure:"bindings"`
}

type PathOption struct {
	Disabled bool   `json:"disabled" mapstructure:"disabled"`
	Path     string `json:"path" mapstructure:"path"`
}

func (o *PathOption) orDefault(path string) {
	if o.Path == "" {
		o.Path = path
	}
}

func (c *Config) init() error {
	if err := ireflect.SetDefaultTag(c); err != nil {
		return err
	}
	c.Health.orDefault("/health")
	c.Metrics.orDefault("/metrics")
	c.Bindings.orDefault("/bindings")
	return nil
}

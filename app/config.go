package app

import (
	"github.com/kochabonline/hartshorn/cache"
	"github.com/kochabonline/hartshorn/log"
	"github.com/kochabonline/hartshorn/metrics"
	"github.com/kochabonline/hartshorn/store/redis"
	"github.com/kochabonline/hartshorn/transport/http"
)

// ApplicationConfig 应用配置, 对应配置文件的根节点
type ApplicationConfig struct {
	Name     string         `json:"name" mapstructure:"name" default:"hartshorn" validate:"required"`
	Scan     []string       `json:"scan" mapstructure:"scan"`
	Autowire bool           `json:"autowire" mapstructure:"autowire"`
	// Missing 未绑定依赖的处理方式: fail 启动失败, ignore 记录告警并注入零值 (测试/CI)
	Missing  string         `json:"missing_binding" mapstructure:"missing_binding" default:"fail" validate:"oneof=fail ignore"`
	Language string         `json:"language" mapstructure:"language" default:"en"`
	Log      LogConfig      `json:"log" mapstructure:"log"`
	Server   ServerConfig   `json:"server" mapstructure:"server"`
	Metrics  metrics.Config `json:"metrics" mapstructure:"metrics"`
	Cache    cache.Config   `json:"cache" mapstructure:"cache"`
	Redis    redis.Config   `json:"redis" mapstructure:"redis"`
}

// LogConfig 日志配置, File为true时同时输出到文件
type LogConfig struct {
	Level  string     `json:"level" mapstructure:"level" default:"info" validate:"oneof=trace debug info warn error fatal panic disabled"`
	File   bool       `json:"file" mapstructure:"file"`
	Output log.Config `json:"output" mapstructure:"output"`
}

// ServerConfig 诊断服务配置, 默认不启动
type ServerConfig struct {
	Enabled     bool `json:"enabled" mapstructure:"enabled"`
	http.Config `mapstructure:",squash"`
}

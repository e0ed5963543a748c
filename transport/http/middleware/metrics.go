package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kochabonline/hartshorn/metrics"
)

// unmatchedRoute 未匹配路由的标签值, 避免任意路径撑爆标签基数
const unmatchedRoute = "unmatched"

type MetricsConfig struct {
	// 不统计的路径, 如指标路由自身
	SkipPaths []string
}

// GinMetrics 记录请求耗时、并发数和响应大小到给定的注册表
func GinMetrics(p *metrics.Prometheus) gin.HandlerFunc {
	return GinMetricsWithConfig(p, MetricsConfig{})
}

func GinMetricsWithConfig(p *metrics.Prometheus, config MetricsConfig) gin.HandlerFunc {
	if p == nil {
		return func(c *gin.Context) { c.Next() }
	}
	m := p.HTTP()
	skip := make(map[string]struct{}, len(config.SkipPaths))
	for _, path := range config.SkipPaths {
		skip[path] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		m.InFlight.Inc()
		defer m.InFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		method := c.Request.Method
		m.Duration.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
		if size := c.Writer.Size(); size > 0 {
			m.Size.WithLabelValues(method, route).Observe(float64(size))
		}
	}
}

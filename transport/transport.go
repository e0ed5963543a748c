package transport

import (
	"context"
	"net"
	"strconv"
)

// Server 由应用统一启动和关闭的服务
type Server interface {
	Run() error
	Shutdown(context.Context) error
}

// Named 可选接口, 用于日志中标识服务
type Named interface {
	Name() string
	Addr() string
}

// Describe 返回服务的可读描述
func Describe(s Server) string {
	if n, ok := s.(Named); ok {
		return n.Name() + "@" + n.Addr()
	}
	return "server"
}

// ValidateAddress 校验 host:port 形式的监听地址, 端口0表示随机端口
func ValidateAddress(addr string) bool {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	p, err := strconv.Atoi(port)
	return err == nil && p >= 0 && p <= 65535
}

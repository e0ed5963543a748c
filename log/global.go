package log

import (
	"sync/atomic"

	"github.com/rs/zerolog"
)

var global atomic.Pointer[Logger]

func init() {
	global.Store(New())
}

// Global 返回当前的全局日志记录器
func Global() *Logger {
	return global.Load()
}

// SetGlobalLogger 设置全局日志记录器, nil被忽略
func SetGlobalLogger(logger *Logger) {
	if logger != nil {
		global.Store(logger)
	}
}

// SetGlobalLevel 设置全局日志记录器的最低级别
func SetGlobalLevel(level zerolog.Level) {
	for {
		old := global.Load()
		next := &Logger{Logger: old.Logger.Level(level)}
		if global.CompareAndSwap(old, next) {
			return
		}
	}
}

// Debug 全局debug日志
func Debug() *zerolog.Event {
	return Global().Debug()
}

// Info 全局info日志
func Info() *zerolog.Event {
	return Global().Info()
}

// Warn 全局warn日志
func Warn() *zerolog.Event {
	return Global().Warn()
}

// Error 全局error日志
func Error() *zerolog.Event {
	return Global().Error().Stack()
}

func Debugf(format string, args ...any) {
	Global().Debug().Msgf(format, args...)
}

func Infof(format string, args ...any) {
	Global().Info().Msgf(format, args...)
}

func Warnf(format string, args ...any) {
	Global().Warn().Msgf(format, args...)
}

func Errorf(format string, args ...any) {
	Global().Error().Stack().Msgf(format, args...)
}

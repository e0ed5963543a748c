package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kochabonline/hartshorn/core/reflect"
)

// 日志轮转模式
type RotateMode int

const (
	RotateModeTime RotateMode = iota
	RotateModeSize
)

// Config 文件日志配置
type Config struct {
	RotateMode       RotateMode       `mapstructure:"rotate_mode"`
	Filepath         string           `mapstructure:"filepath" default:"log"`
	Filename         string           `mapstructure:"filename" default:"hartshorn"`
	FileExt          string           `mapstructure:"file_ext" default:"log"`
	RotatelogsConfig RotatelogsConfig `mapstructure:"rotatelogs"`
	LumberjackConfig LumberjackConfig `mapstructure:"lumberjack"`
}

type RotatelogsConfig struct {
	MaxAge       int `mapstructure:"max_age" default:"24"`
	RotationTime int `mapstructure:"rotation_time" default:"1"`
}

type LumberjackConfig struct {
	MaxSize    int  `mapstructure:"max_size" default:"100"`
	MaxBackups int  `mapstructure:"max_backups" default:"5"`
	MaxAge     int  `mapstructure:"max_age" default:"30"`
	Compress   bool `mapstructure:"compress"`
}

// Logger 在 zerolog.Logger 之上附加组件维度
type Logger struct {
	zerolog.Logger
}

type Option func(*Logger)

// WithCaller 设置调用栈信息
func WithCaller() Option {
	return func(l *Logger) {
		l.Logger = l.Logger.With().Caller().Logger()
	}
}

// WithCallerSkip 设置调用栈跳过的帧数
func WithCallerSkip(skip int) Option {
	return func(l *Logger) {
		l.Logger = l.Logger.With().CallerWithSkipFrameCount(skip).Logger()
	}
}

// WithLevel 设置最低输出级别
func WithLevel(level zerolog.Level) Option {
	return func(l *Logger) {
		l.Logger = l.Logger.Level(level)
	}
}

// WithWriter 替换输出目标，主要用于测试
func WithWriter(w io.Writer) Option {
	return func(l *Logger) {
		l.Logger = l.Logger.Output(w)
	}
}

func init() {
	zerolog.TimeFieldFormat = time.DateTime
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
}

// ParseLevel 解析日志级别字符串，无法识别时返回 info
func ParseLevel(level string) zerolog.Level {
	l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return l
}

// New 创建新的Logger实例，输出到控制台
func New(opts ...Option) *Logger {
	return build(consoleWriter(), opts...)
}

// NewFile 创建文件输出的Logger
func NewFile(c Config, opts ...Option) *Logger {
	return build(newFallbackWriter(c), opts...)
}

// NewMulti 创建同时输出到文件和控制台的Logger
func NewMulti(c Config, opts ...Option) *Logger {
	return build(zerolog.MultiLevelWriter(newFallbackWriter(c), consoleWriter()), opts...)
}

func build(writer io.Writer, opts ...Option) *Logger {
	logger := &Logger{
		Logger: zerolog.New(writer).With().Timestamp().Logger(),
	}
	for _, opt := range opts {
		opt(logger)
	}
	return logger
}

// Component 返回带有 component 字段的子日志器
func (l *Logger) Component(name string) *Logger {
	return &Logger{Logger: l.Logger.With().Str("component", name).Logger()}
}

// newFallbackWriter 创建文件 writer，失败时回退到控制台
func newFallbackWriter(config Config) io.Writer {
	if err := reflect.SetDefaultTag(&config); err != nil {
		return consoleWriter()
	}

	writer, err := rotateWriter(config)
	if err != nil {
		return consoleWriter()
	}

	return writer
}

// fileFullPathWithFormat 返回带格式的日志文件完整路径
func (c *Config) fileFullPathWithFormat(format string) string {
	var builder strings.Builder
	builder.Grow(len(c.Filename) + len(format) + len(c.FileExt) + 3)

	builder.WriteString(c.Filename)
	if format != "" {
		builder.WriteByte('.')
		builder.WriteString(format)
	}
	builder.WriteByte('.')
	builder.WriteString(c.FileExt)

	return filepath.Join(c.Filepath, builder.String())
}

// consoleWriter 创建控制台输出writer
func consoleWriter() zerolog.ConsoleWriter {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime}
	output.FormatLevel = func(i any) string {
		return strings.ToUpper(fmt.Sprintf("| %-6s|", i))
	}
	return output
}

// rotateWriter 日志轮转writer
func rotateWriter(config Config) (io.Writer, error) {
	switch config.RotateMode {
	case RotateModeTime:
		writer, err := rotatelogs.New(
			config.fileFullPathWithFormat("%Y%m%d%H%M"),
			rotatelogs.WithLinkName(config.fileFullPathWithFormat("")),
			rotatelogs.WithMaxAge(time.Duration(config.RotatelogsConfig.MaxAge)*time.Hour),
			rotatelogs.WithRotationTime(time.Duration(config.RotatelogsConfig.RotationTime)*time.Hour),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create time rotate writer: %w", err)
		}
		return writer, nil
	case RotateModeSize:
		return &lumberjack.Logger{
			Filename:   config.fileFullPathWithFormat(""),
			MaxSize:    config.LumberjackConfig.MaxSize,
			MaxBackups: config.LumberjackConfig.MaxBackups,
			MaxAge:     config.LumberjackConfig.MaxAge,
			Compress:   config.LumberjackConfig.Compress,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported rotate mode: %d", config.RotateMode)
	}
}

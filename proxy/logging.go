package proxy

import (
	"context"
	"time"

	"github.com/kochabonline/hartshorn/ioc"
	"github.com/kochabonline/hartshorn/log"
)

// Logged is implemented by components whose calls should be logged.
// An empty result logs every method.
type Logged interface {
	LoggedMethods() []string
}

// LoggingAdvisor logs every call of Logged components with its duration.
type LoggingAdvisor struct {
	log *log.Logger
}

func NewLoggingAdvisor(l *log.Logger) *LoggingAdvisor {
	if l == nil {
		l = log.Global().Component("proxy")
	}
	return &LoggingAdvisor{log: l}
}

func (a *LoggingAdvisor) Applies(_ ioc.Key, instance any) bool {
	_, ok := instance.(Logged)
	return ok
}

func (a *LoggingAdvisor) Advise(_ context.Context, _ *ioc.ApplicationContext, m *Manager) error {
	methods := m.Target().(Logged).LoggedMethods()
	if len(methods) == 0 {
		methods = m.Methods()
	}
	for _, method := range methods {
		if err := m.Around(method, a.intercept); err != nil {
			return err
		}
	}
	return nil
}

func (a *LoggingAdvisor) intercept(inv *Invocation) ([]any, error) {
	start := time.Now()
	results, err := inv.Proceed()
	elapsed := time.Since(start)

	if err != nil {
		a.log.Warn().Err(err).Msgf("[proxy] | %s.%s | elapsed: %s", inv.Manager().Type(), inv.Method, elapsed)
		return results, err
	}
	a.log.Debug().Msgf("[proxy] | %s.%s | elapsed: %s", inv.Manager().Type(), inv.Method, elapsed)
	return results, nil
}

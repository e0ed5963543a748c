package metrics

import (
	"time"

	"github.com/kochabonline/hartshorn/ioc"
)

// Observer records container resolutions. Pass it to ioc.WithObserver.
type Observer struct {
	p *Prometheus
}

func NewObserver(p *Prometheus) *Observer {
	return &Observer{p: p}
}

func (o *Observer) OnResolve(key ioc.Key, elapsed time.Duration, err error) {
	name := key.String()
	o.p.resolutions.WithLabelValues(name, outcome(err)).Observe(elapsed.Seconds())
	if err != nil {
		o.p.failures.WithLabelValues("resolution", name).Inc()
	}
}

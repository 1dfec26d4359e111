package paydriver

import (
	"github.com/gridmarket/paydriver/bus"
	"github.com/gridmarket/paydriver/logger"
	"github.com/gridmarket/paydriver/metrics"
)

type Option func(*Driver)

func WithLogger(l logger.Logger) Option {
	return func(d *Driver) {
		d.log = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(d *Driver) {
		d.metrics = r
	}
}

func WithBus(b bus.Bus) Option {
	return func(d *Driver) {
		d.bus = b
	}
}

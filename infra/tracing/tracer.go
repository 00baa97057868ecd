package tracing

import (
	"io"

	"github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"
	jaegercfg "github.com/uber/jaeger-client-go/config"
	"github.com/uber/jaeger-lib/metrics"
)

// InitTracer builds a jaeger tracer from the JAEGER_* environment variables
// and installs it as the global tracer. JAEGER_DISABLED=true yields a no-op tracer.
func InitTracer(serviceName string) (io.Closer, error) {
	cfg, err := jaegercfg.FromEnv()
	if err != nil {
		return nil, err
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = serviceName
	}

	tracer, closer, err := cfg.NewTracer(
		jaegercfg.Logger(logrusLogger{}),
		jaegercfg.Metrics(metrics.NullFactory),
	)
	if err != nil {
		return nil, err
	}
	opentracing.SetGlobalTracer(tracer)
	logrus.Infof("tracer initialized for service %s, disabled: %v", cfg.ServiceName, cfg.Disabled)
	return closer, nil
}

type logrusLogger struct{}

func (logrusLogger) Error(msg string) {
	logrus.Error(msg)
}

func (logrusLogger) Infof(msg string, args ...interface{}) {
	logrus.Debugf(msg, args...)
}

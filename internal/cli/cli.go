// Package cli holds the start-up plumbing shared by the avb-talker and
// avb-listener commands: logging setup, the optional metrics endpoint and
// signal driven cancellation.
package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/avbstream/metrics"
)

// ConfigureLogging sets the global logrus level and formatter.
func ConfigureLogging(level string, json bool) error {
	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("log level %q: %w", level, err)
	}
	logrus.SetLevel(lvl)
	if json {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM. The
// transmit loop and the control loop both observe it as their halt flag.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// Metrics is the registry of a command and its optional HTTP endpoint.
type Metrics struct {
	Registry *prometheus.Registry
	server   *http.Server
}

// StartMetrics creates the registry and, when addr is set, serves it.
func StartMetrics(addr string) *Metrics {
	m := &Metrics{Registry: metrics.NewRegistry()}
	if addr != "" {
		m.server = metrics.Serve(addr, m.Registry)
	}
	return m
}

// Shutdown stops the HTTP endpoint if one was started.
func (m *Metrics) Shutdown() {
	if m.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.server.Shutdown(ctx); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Metrics.Shutdown",
			"error":    err.Error(),
		}).Warn("Metrics server shutdown failed")
	}
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/avbstream/afpacket"
	"github.com/opd-ai/avbstream/config"
	"github.com/opd-ai/avbstream/internal/cli"
	"github.com/opd-ai/avbstream/limits"
	"github.com/opd-ai/avbstream/listener"
	"github.com/opd-ai/avbstream/metrics"
	"github.com/opd-ai/avbstream/msrp"
	"github.com/opd-ai/avbstream/rtp"
	"github.com/opd-ai/avbstream/stream"
)

// CLIConfig holds the raw flag values.
type CLIConfig struct {
	configPath  string
	envFile     string
	iface       string
	output      string
	outputDir   string
	monitor     string
	mrpdAddr    string
	metricsAddr string
	logLevel    string
	logJSON     bool
}

func parseCLIFlags(args []string) (*CLIConfig, map[string]bool, error) {
	c := &CLIConfig{}
	fs := flag.NewFlagSet("avb-listener", flag.ContinueOnError)

	fs.StringVar(&c.configPath, "config", "", "YAML configuration file")
	fs.StringVar(&c.envFile, "env", ".env", "Environment file with AVB_* variables")

	fs.StringVar(&c.iface, "i", "", "Network interface (required)")
	fs.StringVar(&c.output, "f", "output", "Output file base name")
	fs.StringVar(&c.outputDir, "dir", "", "Output directory")
	fs.StringVar(&c.monitor, "monitor", "", "RTP monitor destination host:port")
	fs.StringVar(&c.mrpdAddr, "mrpd", "", "MRP daemon control address")

	fs.StringVar(&c.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	fs.StringVar(&c.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	fs.BoolVar(&c.logJSON, "log-json", false, "Log in JSON")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return c, set, nil
}

func applyFlags(cfg *config.Listener, c *CLIConfig, set map[string]bool) {
	if set["i"] {
		cfg.Interface = c.iface
	}
	if set["f"] {
		cfg.Output = c.output
	}
	if set["dir"] {
		cfg.OutputDir = c.outputDir
	}
	if set["monitor"] {
		cfg.Monitor = c.monitor
	}
	if set["mrpd"] {
		cfg.MRPDAddr = c.mrpdAddr
	}
	if set["metrics-addr"] {
		cfg.MetricsAddr = c.metricsAddr
	}
	if set["log-level"] {
		cfg.LogLevel = c.logLevel
	}
	if set["log-json"] {
		cfg.LogJSON = c.logJSON
	}
}

func loadConfig(args []string) (config.Listener, error) {
	c, set, err := parseCLIFlags(args)
	if err != nil {
		return config.Listener{}, err
	}
	cfg, err := config.LoadListener(c.configPath, c.envFile)
	if err != nil {
		return cfg, err
	}
	applyFlags(&cfg, c, set)
	return cfg, cfg.Validate()
}

// sinkFactory returns the WAV writer, teed with an RTP monitor when one is
// configured.
func sinkFactory(cfg config.Listener) (listener.SinkFactory, error) {
	wav := listener.WAVSinks(cfg.OutputDir, cfg.Output)
	if cfg.Monitor == "" {
		return wav, nil
	}
	host, portStr, err := net.SplitHostPort(cfg.Monitor)
	if err != nil {
		return nil, fmt.Errorf("monitor %q: %w", cfg.Monitor, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("monitor port %q: %w", portStr, err)
	}
	monitor := func(d *stream.Descriptor) (listener.Sink, error) {
		m, err := rtp.Dial(rtp.StreamAddr(host, port, d.Index), limits.Channels)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	return listener.TeeSinks(wav, monitor), nil
}

func captureOpener(iface string) listener.CaptureOpener {
	return func(dests []stream.MAC) (listener.Capture, error) {
		c, err := afpacket.OpenCapture(iface, dests)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

func run(ctx context.Context, cfg config.Listener) (err error) {
	m := cli.StartMetrics(cfg.MetricsAddr)
	defer m.Shutdown()

	lm, err := metrics.NewListener(m.Registry)
	if err != nil {
		return err
	}
	rm, err := metrics.NewReservation(m.Registry)
	if err != nil {
		return err
	}

	registry, err := cfg.Registry()
	if err != nil {
		return err
	}
	sinks, err := sinkFactory(cfg)
	if err != nil {
		return err
	}

	client, err := msrp.Connect(msrp.Config{Server: cfg.MRPDAddr, Registry: registry, Metrics: rm})
	if err != nil {
		return err
	}

	demux, err := listener.NewDemux(registry, client, captureOpener(cfg.Interface), sinks, lm,
		listener.WithDomain(cfg.Domain.MSRP()))
	if err != nil {
		_ = client.Disconnect()
		return err
	}
	defer func() {
		err = errors.Join(err, demux.Stop(), client.Disconnect())
	}()

	logrus.WithFields(logrus.Fields{
		"function":  "run",
		"interface": cfg.Interface,
		"accepted":  registry.Len(),
		"vid":       cfg.VID,
		"session":   demux.Session().String(),
	}).Info("Starting listener")

	return demux.Run(ctx)
}

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		fmt.Fprintf(os.Stderr, "Use -help for usage information.\n")
		os.Exit(1)
	}
	if err := cli.ConfigureLogging(cfg.LogLevel, cfg.LogJSON); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := cli.SignalContext(context.Background())
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "main",
			"error":    err.Error(),
		}).Error("Listener failed")
		cancel()
		os.Exit(1)
	}
	logrus.WithField("function", "main").Info("Listener stopped")
}

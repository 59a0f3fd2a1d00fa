package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/avbstream/afpacket"
	"github.com/opd-ai/avbstream/audio"
	"github.com/opd-ai/avbstream/clock"
	"github.com/opd-ai/avbstream/config"
	"github.com/opd-ai/avbstream/internal/cli"
	"github.com/opd-ai/avbstream/limits"
	"github.com/opd-ai/avbstream/metrics"
	"github.com/opd-ai/avbstream/msrp"
	"github.com/opd-ai/avbstream/talker"
)

// CLIConfig holds the raw flag values.
type CLIConfig struct {
	configPath  string
	envFile     string
	iface       string
	streams     int
	destination string
	mrpdAddr    string
	metricsAddr string
	logLevel    string
	logJSON     bool
	gain        float64
	ringSize    int
}

// parseCLIFlags parses args into a CLIConfig and the set of flags given.
func parseCLIFlags(args []string) (*CLIConfig, map[string]bool, error) {
	c := &CLIConfig{}
	fs := flag.NewFlagSet("avb-talker", flag.ContinueOnError)

	fs.StringVar(&c.configPath, "config", "", "YAML configuration file")
	fs.StringVar(&c.envFile, "env", ".env", "Environment file with AVB_* variables")

	fs.StringVar(&c.iface, "i", "", "Network interface (required)")
	fs.IntVar(&c.streams, "n", 1, fmt.Sprintf("Number of streams (1-%d)", limits.MaxTalkerStreams))
	fs.StringVar(&c.destination, "d", "", "Multicast destination base address")
	fs.StringVar(&c.mrpdAddr, "mrpd", "", "MRP daemon control address")
	fs.Float64Var(&c.gain, "gain", 0.5, "Sine tone gain (0-1)")
	fs.IntVar(&c.ringSize, "ring", 64, "Software transmit ring size")

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

// applyFlags overlays the explicitly given flags onto cfg.
func applyFlags(cfg *config.Talker, c *CLIConfig, set map[string]bool) {
	if set["i"] {
		cfg.Interface = c.iface
	}
	if set["n"] {
		cfg.Streams = c.streams
	}
	if set["d"] {
		cfg.Destination = c.destination
	}
	if set["mrpd"] {
		cfg.MRPDAddr = c.mrpdAddr
	}
	if set["gain"] {
		cfg.Gain = c.gain
	}
	if set["ring"] {
		cfg.RingSize = c.ringSize
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

// loadConfig builds and validates the effective configuration.
func loadConfig(args []string) (config.Talker, error) {
	c, set, err := parseCLIFlags(args)
	if err != nil {
		return config.Talker{}, err
	}
	cfg, err := config.LoadTalker(c.configPath, c.envFile)
	if err != nil {
		return cfg, err
	}
	applyFlags(&cfg, c, set)
	return cfg, cfg.Validate()
}

func run(ctx context.Context, cfg config.Talker) error {
	m := cli.StartMetrics(cfg.MetricsAddr)
	defer m.Shutdown()

	tm, err := metrics.NewTalker(m.Registry)
	if err != nil {
		return err
	}
	rm, err := metrics.NewReservation(m.Registry)
	if err != nil {
		return err
	}

	station, err := afpacket.HardwareAddr(cfg.Interface)
	if err != nil {
		return err
	}
	dest, err := cfg.DestinationMAC()
	if err != nil {
		return err
	}

	dev, err := afpacket.OpenDevice(cfg.Interface, afpacket.DeviceConfig{RingSize: cfg.RingSize})
	if err != nil {
		return fmt.Errorf("open device: %w", err)
	}
	defer dev.Close()

	client, err := msrp.Connect(msrp.Config{Server: cfg.MRPDAddr, Metrics: rm})
	if err != nil {
		return err
	}

	src, err := audio.NewSineSource(limits.Channels, cfg.Gain)
	if err != nil {
		return err
	}

	session, err := talker.NewSession(talker.SessionConfig{
		Station:     station,
		Destination: dest,
		Streams:     cfg.Streams,
		Domain:      cfg.Domain.MSRP(),
		Latency:     cfg.Latency,
		Scheduler:   talker.DefaultConfig(),
	}, client, dev, src, clock.SystemSource{}, tm)
	if err != nil {
		_ = client.Disconnect()
		return err
	}

	logrus.WithFields(logrus.Fields{
		"function":  "run",
		"interface": cfg.Interface,
		"station":   station.String(),
		"streams":   cfg.Streams,
	}).Info("Starting talker")

	return session.Run(ctx)
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
		}).Error("Talker failed")
		cancel()
		os.Exit(1)
	}
	logrus.WithField("function", "main").Info("Talker stopped")
}

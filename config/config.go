// Package config loads talker and listener settings.
//
// Settings are layered: built-in defaults, then an optional YAML file, then
// AVB_* variables from the process environment or a .env file. The commands
// apply explicitly set flags last and call Validate once before starting.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/opd-ai/avbstream/limits"
	"github.com/opd-ai/avbstream/msrp"
	"github.com/opd-ai/avbstream/stream"
)

var (
	// ErrMissingInterface indicates no network interface was configured.
	ErrMissingInterface = errors.New("interface name is required")

	// ErrMissingOutput indicates no listener output name was configured.
	ErrMissingOutput = errors.New("output file name is required")

	// ErrInvalidDestination indicates a destination that is not a multicast MAC.
	ErrInvalidDestination = errors.New("destination must be a multicast address")

	// ErrInvalidValue indicates a malformed setting.
	ErrInvalidValue = errors.New("invalid configuration value")
)

// Common holds the settings shared by both commands.
type Common struct {
	Interface   string `yaml:"interface"`
	MRPDAddr    string `yaml:"mrpd_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
	LogJSON     bool   `yaml:"log_json"`
}

// Domain is the SR class domain both roles register with the daemon.
type Domain struct {
	Class    uint8  `yaml:"class"`
	Priority uint8  `yaml:"priority"`
	VID      uint16 `yaml:"vid"`
}

// MSRP returns the domain in the reservation client's form.
func (d Domain) MSRP() msrp.Domain {
	return msrp.Domain{Class: d.Class, Priority: d.Priority, VID: d.VID}
}

// Talker holds the talker settings.
type Talker struct {
	Common      `yaml:",inline"`
	Domain      `yaml:",inline"`
	Streams     int     `yaml:"streams"`
	Destination string  `yaml:"destination"`
	Latency     int     `yaml:"latency"`
	RingSize    int     `yaml:"ring_size"`
	Gain        float64 `yaml:"gain"`
}

// AcceptedStream is one stream the listener will subscribe to.
type AcceptedStream struct {
	ID          string `yaml:"id"`
	Destination string `yaml:"destination"`
}

// Listener holds the listener settings.
type Listener struct {
	Common    `yaml:",inline"`
	Domain    `yaml:",inline"`
	Accepted  []AcceptedStream `yaml:"accepted_streams"`
	Capacity  int              `yaml:"capacity"`
	Output    string           `yaml:"output"`
	OutputDir string           `yaml:"output_dir"`
	// Monitor is an optional host:port receiving an RTP copy of stream 0;
	// stream i goes to port+2i.
	Monitor string `yaml:"monitor"`
}

func defaultDomain() Domain {
	return Domain{
		Class:    msrp.ClassA,
		Priority: msrp.ClassAPriority,
		VID:      msrp.DefaultVID,
	}
}

func defaultCommon() Common {
	return Common{
		MRPDAddr: fmt.Sprintf("127.0.0.1:%d", msrp.DefaultPort),
		LogLevel: "info",
	}
}

// DefaultTalker returns the class A talker defaults.
func DefaultTalker() Talker {
	return Talker{
		Common:      defaultCommon(),
		Domain:      defaultDomain(),
		Streams:     1,
		Destination: stream.DefaultDestination.String(),
		Latency:     3900,
		RingSize:    64,
		Gain:        0.5,
	}
}

// DefaultListener returns the listener defaults: the two streams of a
// two-stream talker with station address a0:36:9f:4c:92:55.
func DefaultListener() Listener {
	return Listener{
		Common: defaultCommon(),
		Domain: defaultDomain(),
		Accepted: []AcceptedStream{
			{ID: "a0:36:9f:4c:92:55:00:00", Destination: stream.DefaultDestination.String()},
			{ID: "a0:36:9f:4c:92:55:00:01", Destination: stream.DefaultDestination.Offset(1).String()},
		},
		Capacity: limits.DefaultAcceptedStreams,
		Output:   "output",
	}
}

// LoadTalker layers the YAML file at path (optional) and the environment
// over the defaults.
func LoadTalker(path string, envFiles ...string) (Talker, error) {
	cfg := DefaultTalker()
	if err := loadYAML(path, &cfg); err != nil {
		return cfg, err
	}
	lookup, err := envLookup(envFiles...)
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.applyEnv(lookup)
}

// LoadListener layers the YAML file at path (optional) and the environment
// over the defaults.
func LoadListener(path string, envFiles ...string) (Listener, error) {
	cfg := DefaultListener()
	if err := loadYAML(path, &cfg); err != nil {
		return cfg, err
	}
	lookup, err := envLookup(envFiles...)
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.applyEnv(lookup)
}

func loadYAML(path string, out any) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	logrus.WithFields(logrus.Fields{
		"function": "loadYAML",
		"path":     path,
	}).Debug("Loaded configuration file")
	return nil
}

type lookupFunc func(key string) (string, bool)

// envLookup reads the .env files (missing files are skipped) and returns a
// lookup where the process environment wins over file values.
func envLookup(files ...string) (lookupFunc, error) {
	fileVars := make(map[string]string)
	for _, f := range files {
		vars, err := godotenv.Read(f)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("read env file %s: %w", f, err)
		}
		for k, v := range vars {
			if _, ok := fileVars[k]; !ok {
				fileVars[k] = v
			}
		}
	}
	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileVars[key]
		return v, ok
	}, nil
}

func (c *Common) applyEnv(lookup lookupFunc) error {
	setString(lookup, "AVB_INTERFACE", &c.Interface)
	setString(lookup, "AVB_MRPD_ADDR", &c.MRPDAddr)
	setString(lookup, "AVB_METRICS_ADDR", &c.MetricsAddr)
	setString(lookup, "AVB_LOG_LEVEL", &c.LogLevel)
	return setBool(lookup, "AVB_LOG_JSON", &c.LogJSON)
}

func (c *Talker) applyEnv(lookup lookupFunc) error {
	if err := c.Common.applyEnv(lookup); err != nil {
		return err
	}
	setString(lookup, "AVB_DESTINATION", &c.Destination)
	if err := setInt(lookup, "AVB_STREAMS", &c.Streams); err != nil {
		return err
	}
	if err := setInt(lookup, "AVB_RING_SIZE", &c.RingSize); err != nil {
		return err
	}
	return c.Domain.applyEnv(lookup)
}

func (d *Domain) applyEnv(lookup lookupFunc) error {
	if v, ok := lookup("AVB_VID"); ok {
		n, err := strconv.ParseUint(v, 0, 12)
		if err != nil {
			return fmt.Errorf("%w: AVB_VID=%q", ErrInvalidValue, v)
		}
		d.VID = uint16(n)
	}
	return nil
}

func (c *Listener) applyEnv(lookup lookupFunc) error {
	if err := c.Common.applyEnv(lookup); err != nil {
		return err
	}
	if err := c.Domain.applyEnv(lookup); err != nil {
		return err
	}
	setString(lookup, "AVB_OUTPUT", &c.Output)
	setString(lookup, "AVB_OUTPUT_DIR", &c.OutputDir)
	setString(lookup, "AVB_MONITOR", &c.Monitor)
	if err := setInt(lookup, "AVB_CAPACITY", &c.Capacity); err != nil {
		return err
	}
	if v, ok := lookup("AVB_ACCEPTED_STREAMS"); ok {
		accepted, err := ParseAccepted(v)
		if err != nil {
			return err
		}
		c.Accepted = accepted
	}
	return nil
}

// ParseAccepted parses a comma separated list of "id" or "id@destination".
// Entries without a destination get the talker convention base+index.
func ParseAccepted(s string) ([]AcceptedStream, error) {
	var out []AcceptedStream
	for i, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, dest, ok := strings.Cut(part, "@")
		if !ok {
			dest = stream.DefaultDestination.Offset(i).String()
		}
		out = append(out, AcceptedStream{ID: strings.TrimSpace(id), Destination: strings.TrimSpace(dest)})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty accepted stream list", ErrInvalidValue)
	}
	return out, nil
}

func setString(lookup lookupFunc, key string, dst *string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func setInt(lookup lookupFunc, key string, dst *int) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, v)
	}
	*dst = n
	return nil
}

func setBool(lookup lookupFunc, key string, dst *bool) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, v)
	}
	*dst = b
	return nil
}

package config

import (
	"fmt"
	"net"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/avbstream/limits"
	"github.com/opd-ai/avbstream/stream"
)

func (c *Common) validate() error {
	if c.Interface == "" {
		return ErrMissingInterface
	}
	if _, _, err := net.SplitHostPort(c.MRPDAddr); err != nil {
		return fmt.Errorf("%w: mrpd_addr %q: %v", ErrInvalidValue, c.MRPDAddr, err)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level %q", ErrInvalidValue, c.LogLevel)
	}
	return nil
}

func (d *Domain) validate() error {
	if d.VID == 0 || d.VID > 4094 {
		return fmt.Errorf("%w: vid %d", ErrInvalidValue, d.VID)
	}
	if d.Priority > 7 {
		return fmt.Errorf("%w: priority %d", ErrInvalidValue, d.Priority)
	}
	return nil
}

// Validate checks the talker settings.
func (c *Talker) Validate() error {
	if err := c.Common.validate(); err != nil {
		return err
	}
	if err := limits.ValidateStreamCount(c.Streams); err != nil {
		return err
	}
	if _, err := c.DestinationMAC(); err != nil {
		return err
	}
	if err := c.Domain.validate(); err != nil {
		return err
	}
	if c.Gain < 0 || c.Gain > 1 {
		return fmt.Errorf("%w: gain %.2f", ErrInvalidValue, c.Gain)
	}
	if c.RingSize < 1 {
		return fmt.Errorf("%w: ring_size %d", ErrInvalidValue, c.RingSize)
	}
	return nil
}

// DestinationMAC parses the multicast base address.
func (c *Talker) DestinationMAC() (stream.MAC, error) {
	return parseMulticast(c.Destination)
}

// Validate checks the listener settings, including the accepted stream set.
func (c *Listener) Validate() error {
	if err := c.Common.validate(); err != nil {
		return err
	}
	if err := c.Domain.validate(); err != nil {
		return err
	}
	if c.Output == "" {
		return ErrMissingOutput
	}
	if c.Monitor != "" {
		if _, _, err := net.SplitHostPort(c.Monitor); err != nil {
			return fmt.Errorf("%w: monitor %q: %v", ErrInvalidValue, c.Monitor, err)
		}
	}
	_, err := c.Registry()
	return err
}

// Registry builds the accepted stream registry.
func (c *Listener) Registry() (*stream.Registry, error) {
	if err := limits.ValidateAcceptedCapacity(len(c.Accepted), c.Capacity); err != nil {
		return nil, err
	}
	reg := stream.NewRegistry(c.Capacity)
	for _, a := range c.Accepted {
		id, err := stream.ParseID(a.ID)
		if err != nil {
			return nil, err
		}
		dest, err := parseMulticast(a.Destination)
		if err != nil {
			return nil, err
		}
		if _, err := reg.Add(id, dest); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func parseMulticast(s string) (stream.MAC, error) {
	m, err := stream.ParseMAC(s)
	if err != nil {
		return stream.MAC{}, err
	}
	if !m.IsMulticast() {
		return stream.MAC{}, fmt.Errorf("%w: %s", ErrInvalidDestination, m)
	}
	return m, nil
}

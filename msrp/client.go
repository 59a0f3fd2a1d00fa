package msrp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/avbstream/limits"
	"github.com/opd-ai/avbstream/metrics"
	"github.com/opd-ai/avbstream/stream"
)

// Config configures Connect.
type Config struct {
	// Server is the daemon control address. Defaults to 127.0.0.1:7500.
	Server string
	// Registry is the listener's accepted stream set. Talkers leave it nil.
	Registry *stream.Registry
	// Metrics is optional.
	Metrics *metrics.Reservation
}

// Option configures a Client built with NewClient.
type Option func(*Client)

// WithMetrics records command and notification counters.
func WithMetrics(m *metrics.Reservation) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// Client is one control session with the MRP daemon.
//
// Commands may be sent from several goroutines. Reads are performed only by
// the goroutine driving AwaitListenerReady or PollTalkerAdvertisement.
type Client struct {
	mu       sync.Mutex
	state    State
	domain   Domain
	conn     net.PacketConn
	server   net.Addr
	registry *stream.Registry
	metrics  *metrics.Reservation

	readBuf []byte
}

// Connect binds an ephemeral UDP socket and returns a client in the
// Connected state.
func Connect(cfg Config) (*Client, error) {
	server := cfg.Server
	if server == "" {
		server = net.JoinHostPort("127.0.0.1", strconv.Itoa(DefaultPort))
	}
	addr, err := net.ResolveUDPAddr("udp4", server)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %s: %w", ErrSocket, server, err)
	}
	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSocket, err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Connect",
		"server":   addr.String(),
		"local":    conn.LocalAddr().String(),
	}).Info("Connected to MRP daemon control port")

	return NewClient(conn, addr, cfg.Registry, WithMetrics(cfg.Metrics)), nil
}

// NewClient wraps an already bound socket. registry may be nil for talkers.
func NewClient(conn net.PacketConn, server net.Addr, registry *stream.Registry, opts ...Option) *Client {
	c := &Client{
		state:    StateConnected,
		domain:   DefaultDomain,
		conn:     conn,
		server:   server,
		registry: registry,
		readBuf:  make([]byte, limits.ControlDatagramSize),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current session state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RegisterDomain declares the SR class domain.
func (c *Client) RegisterDomain(class, priority uint8, vid uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := checkTransition(opRegisterDomain, c.state); err != nil {
		return err
	}
	d := Domain{Class: class, Priority: priority, VID: vid}
	if err := c.sendLocked(domainCommand(d)); err != nil {
		return err
	}
	c.domain = d
	c.state = StateDomainRegistered
	return nil
}

// JoinVLAN joins the VLAN of the registered domain.
func (c *Client) JoinVLAN() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := checkTransition(opJoinVLAN, c.state); err != nil {
		return err
	}
	if err := c.sendLocked(joinVLANCommand(c.domain.VID)); err != nil {
		return err
	}
	c.state = StateVLANJoined
	return nil
}

// Domain returns the last registered domain.
func (c *Client) Domain() Domain {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.domain
}

// Advertise declares a talker stream.
func (c *Client) Advertise(a Advertisement) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := checkTransition(opAdvertise, c.state); err != nil {
		return err
	}
	if err := c.sendLocked(advertiseCommand("S++", a)); err != nil {
		return err
	}
	c.state = StateAdvertising
	return nil
}

// Unadvertise withdraws a talker stream declaration.
func (c *Client) Unadvertise(a Advertisement) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := checkTransition(opUnadvertise, c.state); err != nil {
		return err
	}
	if err := c.sendLocked(advertiseCommand("S--", a)); err != nil {
		return err
	}
	c.state = StateUnadvertising
	return nil
}

// AwaitListenerReady blocks until a listener declares ready for id or ctx is
// done. Cancellation returns ctx.Err() and leaves the client awaiting.
func (c *Client) AwaitListenerReady(ctx context.Context, id stream.ID) error {
	if err := c.enter(opAwaitListener, StateAwaitingListener); err != nil {
		return err
	}

	for {
		ev, err := c.readNotification(ctx)
		if err != nil {
			return err
		}
		if ev.Kind != EventJoin || ev.Declaration != DeclListener || ev.StreamID != id {
			continue
		}
		if ev.Substate != 0 && ev.Substate != DeclReady {
			logrus.WithFields(logrus.Fields{
				"function":  "Client.AwaitListenerReady",
				"stream_id": id.String(),
				"substate":  ev.Substate,
			}).Warn("Listener declared but not ready")
			continue
		}

		logrus.WithFields(logrus.Fields{
			"function":  "Client.AwaitListenerReady",
			"stream_id": id.String(),
		}).Info("Listener ready")

		c.mu.Lock()
		if c.state == StateAwaitingListener {
			c.state = StateStreaming
		}
		c.mu.Unlock()
		return nil
	}
}

// PollTalkerAdvertisement reads one notification. When it is a talker Join
// for an accepted stream that has no consumer yet, the stream is claimed and
// its descriptor returned. Every other notification yields nil.
func (c *Client) PollTalkerAdvertisement(ctx context.Context) (*stream.Descriptor, error) {
	if c.registry == nil {
		return nil, ErrNoRegistry
	}
	if err := c.enter(opPollAdvertise, StateAwaitingAdvertisement); err != nil {
		return nil, err
	}

	ev, err := c.readNotification(ctx)
	if err != nil {
		return nil, err
	}

	fields := logrus.Fields{
		"function": "Client.PollTalkerAdvertisement",
		"kind":     ev.Kind.String(),
	}
	switch {
	case ev.Kind == EventMalformed:
		logrus.WithFields(fields).WithField("raw", ev.Raw).Warn("Malformed notification")
		return nil, nil
	case ev.Kind != EventJoin || ev.Declaration != DeclTalker:
		logrus.WithFields(fields).Debug("Ignoring notification")
		return nil, nil
	}

	fields["stream_id"] = ev.StreamID.String()
	d, ok := c.registry.Claim(ev.StreamID)
	if !ok {
		logrus.WithFields(fields).Debug("Talker not accepted or already spawned")
		return nil, nil
	}
	logrus.WithFields(fields).Info("Matched talker advertisement")
	return d, nil
}

// SendReady declares the listener ready for id.
func (c *Client) SendReady(id stream.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := checkTransition(opSendReady, c.state); err != nil {
		return err
	}
	return c.sendLocked(readyCommand(id))
}

// SendLeave withdraws the listener declaration for id.
func (c *Client) SendLeave(id stream.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := checkTransition(opSendLeave, c.state); err != nil {
		return err
	}
	if err := c.sendLocked(leaveCommand(id)); err != nil {
		return err
	}
	c.state = StateLeaving
	return nil
}

// WithdrawReady withdraws the ready declaration of one stream while the
// listener keeps awaiting advertisements for the others.
func (c *Client) WithdrawReady(id stream.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := checkTransition(opWithdrawReady, c.state); err != nil {
		return err
	}
	return c.sendLocked(leaveCommand(id))
}

// Disconnect sends BYE and closes the socket. The client ends Disconnected
// even when BYE cannot be delivered; that error is still returned.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateDisconnected {
		return nil
	}
	byeErr := c.sendLocked(byeCommand)
	closeErr := c.conn.Close()
	c.state = StateDisconnected

	logrus.WithFields(logrus.Fields{
		"function": "Client.Disconnect",
	}).Info("Disconnected from MRP daemon")

	return errors.Join(byeErr, closeErr)
}

// enter checks op against the current state and moves to next.
func (c *Client) enter(op operation, next State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := checkTransition(op, c.state); err != nil {
		return err
	}
	c.state = next
	return nil
}

// sendLocked writes one padded datagram. c.mu must be held.
func (c *Client) sendLocked(msg string) error {
	verb := verbOf(msg)
	buf, err := encodeDatagram(msg)
	if err != nil {
		c.metrics.CommandFailed(verb)
		return fmt.Errorf("%w: %s: %w", ErrCommandFailed, verb, err)
	}

	n, err := c.conn.WriteTo(buf, c.server)
	if err != nil {
		c.metrics.CommandFailed(verb)
		logrus.WithFields(logrus.Fields{
			"function": "Client.send",
			"command":  msg,
			"error":    err.Error(),
		}).Error("Failed to send control datagram")
		return fmt.Errorf("%w: %s: %w", ErrCommandFailed, verb, err)
	}
	if n != len(buf) {
		c.metrics.CommandFailed(verb)
		logrus.WithFields(logrus.Fields{
			"function": "Client.send",
			"command":  msg,
			"written":  n,
		}).Error("Short control datagram write")
		return fmt.Errorf("%w: %s: %w (%d of %d bytes)", ErrCommandFailed, verb, ErrShortWrite, n, len(buf))
	}

	c.metrics.CommandSent(verb)
	logrus.WithFields(logrus.Fields{
		"function": "Client.send",
		"command":  msg,
	}).Debug("Sent control datagram")
	return nil
}

// readNotification blocks for one datagram. Cancelling ctx sets an immediate
// read deadline so the pending read returns.
func (c *Client) readNotification(ctx context.Context) (Event, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}
	if err := c.conn.SetReadDeadline(time.Time{}); err != nil {
		return Event{}, fmt.Errorf("clear read deadline: %w", err)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	n, from, err := c.conn.ReadFrom(c.readBuf)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Event{}, ctxErr
		}
		return Event{}, fmt.Errorf("read notification: %w", err)
	}

	ev := ParseNotification(c.readBuf[:n])
	c.metrics.Notification(ev.Kind.String())
	logrus.WithFields(logrus.Fields{
		"function": "Client.readNotification",
		"from":     addrString(from),
		"kind":     ev.Kind.String(),
		"raw":      ev.Raw,
	}).Debug("Received notification")
	return ev, nil
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}

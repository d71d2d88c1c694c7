package hub

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/banshee-data/goal-distance/internal/monitoring"
	"github.com/banshee-data/goal-distance/internal/timeutil"
)

// ErrSessionClosed is returned by Session methods called after Close.
var ErrSessionClosed = errors.New("hub: session closed")

// LoopControl tells the processing loop whether to keep going.
type LoopControl int

const (
	LoopContinue LoopControl = iota
	LoopStop
)

func (c LoopControl) String() string {
	switch c {
	case LoopContinue:
		return "continue"
	case LoopStop:
		return "stop"
	default:
		return fmt.Sprintf("LoopControl(%d)", int(c))
	}
}

const maxDatagram = 64 * 1024

// SessionConfig configures a hub session.
type SessionConfig struct {
	LocalAddr string
	HubAddr   string
	// Topics are subscribed on open and unsubscribed on close.
	Topics []string
	// CloseTopic stops the loop when received.
	CloseTopic string

	// PollInterval bounds each blocking read so cancellation is noticed.
	PollInterval time.Duration
	// ReceiveTimeout makes Receive return LoopContinue after this long
	// without a datagram. Zero waits until a datagram or cancellation.
	ReceiveTimeout time.Duration

	Clock timeutil.Clock
}

// DefaultSessionConfig returns the loopback defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		LocalAddr:    fmt.Sprintf("127.0.0.1:%d", DefaultLocalPort),
		HubAddr:      fmt.Sprintf("127.0.0.1:%d", DefaultHubPort),
		Topics:       []string{TopicGoalDistance},
		CloseTopic:   TopicGoalDistanceClose,
		PollInterval: 100 * time.Millisecond,
	}
}

// Session owns the process's hub socket for its whole lifetime.
type Session struct {
	cfg   SessionConfig
	sock  UDPSocket
	hub   *net.UDPAddr
	clock timeutil.Clock
	buf   []byte

	closeOnce sync.Once
	closeErr  error
	mu        sync.Mutex
	closed    bool
}

// OpenSession binds the local socket and subscribes to cfg.Topics.
func OpenSession(factory UDPSocketFactory, cfg SessionConfig) (*Session, error) {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	if cfg.ReceiveTimeout < 0 {
		return nil, fmt.Errorf("receive timeout must be non-negative, got %s", cfg.ReceiveTimeout)
	}
	laddr, err := net.ResolveUDPAddr("udp", cfg.LocalAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve local address %q: %w", cfg.LocalAddr, err)
	}
	haddr, err := net.ResolveUDPAddr("udp", cfg.HubAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve hub address %q: %w", cfg.HubAddr, err)
	}
	sock, err := factory.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.LocalAddr, err)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	s := &Session{
		cfg:   cfg,
		sock:  sock,
		hub:   haddr,
		clock: clock,
		buf:   make([]byte, maxDatagram),
	}
	if len(cfg.Topics) > 0 {
		if err := s.send(SubscribeMessage(cfg.Topics...)); err != nil {
			sock.Close()
			return nil, fmt.Errorf("subscribe: %w", err)
		}
	}
	monitoring.Logf("hub session %s -> %s subscribed to %v", sock.LocalAddr(), haddr, cfg.Topics)
	return s, nil
}

// LocalAddr returns the bound local address.
func (s *Session) LocalAddr() net.Addr {
	return s.sock.LocalAddr()
}

// PublishGoal sends a goal distance result.
func (s *Session) PublishGoal(distance float64, angle *float64) error {
	m, err := NewMessage(TopicGoalDistance, GoalDistance{Distance: distance, Angle: angle})
	if err != nil {
		return err
	}
	return s.send(m)
}

// Publish sends an arbitrary message to the hub.
func (s *Session) Publish(m Message) error {
	return s.send(m)
}

func (s *Session) send(m Message) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	b, err := Encode(m)
	if err != nil {
		return fmt.Errorf("encode %s: %w", m.Type, err)
	}
	if _, err := s.sock.WriteToUDP(b, s.hub); err != nil {
		return fmt.Errorf("send %s to %s: %w", m.Type, s.hub, err)
	}
	return nil
}

// Receive blocks for one inbound datagram and maps it to a LoopControl.
// The close topic yields LoopStop; anything else, including a datagram
// that does not decode, yields LoopContinue.
func (s *Session) Receive(ctx context.Context) (LoopControl, error) {
	start := s.clock.Now()
	for {
		if err := ctx.Err(); err != nil {
			return LoopStop, err
		}
		if s.isClosed() {
			return LoopStop, ErrSessionClosed
		}
		if err := s.sock.SetReadDeadline(time.Now().Add(s.cfg.PollInterval)); err != nil {
			return LoopStop, fmt.Errorf("set read deadline: %w", err)
		}

		n, addr, err := s.sock.ReadFromUDP(s.buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				if s.cfg.ReceiveTimeout > 0 && s.clock.Now().Sub(start) >= s.cfg.ReceiveTimeout {
					return LoopContinue, nil
				}
				continue
			}
			if ctx.Err() != nil {
				return LoopStop, ctx.Err()
			}
			return LoopStop, fmt.Errorf("receive: %w", err)
		}

		m, err := Decode(s.buf[:n])
		if err != nil {
			monitoring.Logf("ignoring malformed datagram from %v: %v", addr, err)
			return LoopContinue, nil
		}
		if s.cfg.CloseTopic != "" && m.Topic == s.cfg.CloseTopic {
			monitoring.Logf("received %s from %v", m.Topic, addr)
			return LoopStop, nil
		}
		return LoopContinue, nil
	}
}

// Close unsubscribes and closes the socket. Only the first call has any
// effect; later calls return the first call's result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		var unsubErr error
		if len(s.cfg.Topics) > 0 {
			unsubErr = s.send(UnsubscribeMessage(s.cfg.Topics...))
		}
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		closeErr := s.sock.Close()
		switch {
		case unsubErr != nil:
			s.closeErr = fmt.Errorf("unsubscribe: %w", unsubErr)
		case closeErr != nil:
			s.closeErr = fmt.Errorf("close socket: %w", closeErr)
		}
		monitoring.Logf("hub session %s closed", s.sock.LocalAddr())
	})
	return s.closeErr
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

package hub

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/banshee-data/goal-distance/internal/monitoring"
)

// RelayStats counts relay traffic.
type RelayStats struct {
	Received  uint64
	Forwarded uint64
	Malformed uint64
	Ignored   uint64
}

// Relay is the topic-based pub/sub hub. Subscribers are identified by
// their source address and port.
type Relay struct {
	sock         UDPSocket
	pollInterval time.Duration

	mu      sync.Mutex
	targets map[string][]*net.UDPAddr
	stats   RelayStats
}

// NewRelay wraps a bound socket.
func NewRelay(sock UDPSocket) *Relay {
	return &Relay{
		sock:         sock,
		pollInterval: 100 * time.Millisecond,
		targets:      make(map[string][]*net.UDPAddr),
	}
}

// ListenRelay binds addr using factory and returns a relay on it.
func ListenRelay(factory UDPSocketFactory, addr string) (*Relay, error) {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve relay address %q: %w", addr, err)
	}
	sock, err := factory.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	monitoring.Logf("hub relay listening on %s", sock.LocalAddr())
	return NewRelay(sock), nil
}

// Serve reads datagrams until ctx is cancelled or the socket fails.
func (r *Relay) Serve(ctx context.Context) error {
	buf := make([]byte, maxDatagram)
	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("hub relay stopping due to context cancellation")
			return ctx.Err()
		default:
		}

		if err := r.sock.SetReadDeadline(time.Now().Add(r.pollInterval)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}
		n, addr, err := r.sock.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("relay receive: %w", err)
		}
		r.Handle(buf[:n], addr)
	}
}

// Handle applies one datagram from sender.
func (r *Relay) Handle(datagram []byte, from *net.UDPAddr) {
	m, err := Decode(datagram)

	r.mu.Lock()
	r.stats.Received++
	if err != nil {
		r.stats.Malformed++
		r.mu.Unlock()
		monitoring.Logf("hub relay: dropping datagram from %v: %v", from, err)
		return
	}

	switch m.Type {
	case TypeSubscribe:
		for _, topic := range m.Topics {
			if indexOf(r.targets[topic], from) == -1 {
				r.targets[topic] = append(r.targets[topic], from)
			}
		}
		r.mu.Unlock()
		monitoring.Debugf("hub relay: %v subscribed to %v", from, m.Topics)

	case TypeUnsubscribe:
		topics := m.Topics
		if len(topics) == 0 {
			for topic := range r.targets {
				topics = append(topics, topic)
			}
		}
		for _, topic := range topics {
			r.removeLocked(topic, from)
		}
		r.mu.Unlock()
		monitoring.Debugf("hub relay: %v unsubscribed from %v", from, topics)

	case TypeMessage:
		targets := append([]*net.UDPAddr(nil), r.targets[m.Topic]...)
		r.mu.Unlock()
		// Forward the original bytes so fields the relay does not model survive.
		payload := append([]byte(nil), datagram...)
		for _, to := range targets {
			if _, err := r.sock.WriteToUDP(payload, to); err != nil {
				monitoring.Logf("hub relay: forward %s to %v: %v", m.Topic, to, err)
				continue
			}
			r.mu.Lock()
			r.stats.Forwarded++
			r.mu.Unlock()
		}

	default:
		r.stats.Ignored++
		r.mu.Unlock()
	}
}

// Subscribers returns the subscribers of topic in subscription order.
func (r *Relay) Subscribers(topic string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.targets[topic]))
	for _, a := range r.targets[topic] {
		out = append(out, a.String())
	}
	return out
}

// Stats returns a snapshot of the relay counters.
func (r *Relay) Stats() RelayStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Close closes the relay socket.
func (r *Relay) Close() error {
	return r.sock.Close()
}

func (r *Relay) removeLocked(topic string, addr *net.UDPAddr) {
	targets := r.targets[topic]
	kept := targets[:0]
	for _, t := range targets {
		if !sameEndpoint(t, addr) {
			kept = append(kept, t)
		}
	}
	r.targets[topic] = kept
}

func indexOf(targets []*net.UDPAddr, addr *net.UDPAddr) int {
	for i, t := range targets {
		if sameEndpoint(t, addr) {
			return i
		}
	}
	return -1
}

func sameEndpoint(a, b *net.UDPAddr) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Port == b.Port && a.IP.Equal(b.IP)
}

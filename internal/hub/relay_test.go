package hub

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/goal-distance/internal/testutil"
)

func loopback(port int) *net.UDPAddr {
	return &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: port}
}

func TestRelay_SubscribeUnsubscribe(t *testing.T) {
	testutil.MuteLogs(t)
	r := NewRelay(NewMockUDPSocket(nil))

	r.Handle([]byte(`{"type":"subscribe","topics":["test"]}`), loopback(8092))
	assert.Equal(t, []string{"127.0.0.1:8092"}, r.Subscribers("test"))

	r.Handle([]byte(`{"type":"subscribe","topics":["test"]}`), loopback(8093))
	assert.Equal(t, []string{"127.0.0.1:8092", "127.0.0.1:8093"}, r.Subscribers("test"))

	// Resubscribing does not duplicate.
	r.Handle([]byte(`{"type":"subscribe","topics":["test"]}`), loopback(8092))
	assert.Len(t, r.Subscribers("test"), 2)

	r.Handle([]byte(`{"type":"unsubscribe","topics":["test"]}`), loopback(8093))
	assert.Equal(t, []string{"127.0.0.1:8092"}, r.Subscribers("test"))

	r.Handle([]byte(`{"type":"unsubscribe","topics":["test"]}`), loopback(8092))
	assert.Empty(t, r.Subscribers("test"))

	r.Handle([]byte(`{"type":"subscribe","topics":["test"]}`), loopback(8092))
	assert.Equal(t, []string{"127.0.0.1:8092"}, r.Subscribers("test"))
}

func TestRelay_UnsubscribeAll(t *testing.T) {
	testutil.MuteLogs(t)
	r := NewRelay(NewMockUDPSocket(nil))
	r.Handle([]byte(`{"type":"subscribe","topics":["a","b"]}`), loopback(9000))
	r.Handle([]byte(`{"type":"subscribe","topics":["b"]}`), loopback(9001))

	r.Handle([]byte(`{"type":"unsubscribe"}`), loopback(9000))

	assert.Empty(t, r.Subscribers("a"))
	assert.Equal(t, []string{"127.0.0.1:9001"}, r.Subscribers("b"))
}

func TestRelay_ForwardsVerbatim(t *testing.T) {
	testutil.MuteLogs(t)
	sock := NewMockUDPSocket(nil)
	r := NewRelay(sock)
	r.Handle([]byte(`{"type":"subscribe","topics":["test2"]}`), loopback(8088))
	r.Handle([]byte(`{"type":"subscribe","topics":["other"]}`), loopback(8087))

	msg := []byte(`{"type":"message","topic":"test2","command":"test_command"}`)
	r.Handle(msg, loopback(8089))

	sent := sock.SentPackets()
	require.Len(t, sent, 1)
	assert.Equal(t, msg, sent[0].Data)
	assert.Equal(t, "127.0.0.1:8088", sent[0].Addr.String())

	stats := r.Stats()
	assert.Equal(t, uint64(3), stats.Received)
	assert.Equal(t, uint64(1), stats.Forwarded)
}

func TestRelay_IgnoresUnknownAndMalformed(t *testing.T) {
	testutil.MuteLogs(t)
	sock := NewMockUDPSocket(nil)
	r := NewRelay(sock)

	r.Handle([]byte(`{"type":"ping","topic":"x"}`), loopback(1))
	r.Handle([]byte(`garbage`), loopback(1))
	r.Handle([]byte(`{"type":"message","topic":"nobody"}`), loopback(1))

	assert.Empty(t, sock.SentPackets())
	stats := r.Stats()
	assert.Equal(t, uint64(1), stats.Ignored)
	assert.Equal(t, uint64(1), stats.Malformed)
}

func TestRelay_Serve(t *testing.T) {
	testutil.MuteLogs(t)
	sock := NewMockUDPSocket(nil)
	sock.Push([]byte(`{"type":"subscribe","topics":["goal_distance"]}`), loopback(DefaultLocalPort))
	sock.Push([]byte(`{"type":"message","topic":"goal_distance","data":{"distance":1,"angle":null}}`), loopback(7000))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sock.OnSend = func(MockUDPPacket) { cancel() }

	r := NewRelay(sock)
	done := make(chan error, 1)
	go func() { done <- r.Serve(ctx) }()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(5 * time.Second):
		t.Fatal("relay did not stop")
	}

	sent := sock.SentPackets()
	require.Len(t, sent, 1)
	assert.Equal(t, DefaultLocalPort, sent[0].Addr.Port)
	require.NoError(t, r.Close())
}

func TestRelay_ServeSocketError(t *testing.T) {
	testutil.MuteLogs(t)
	sock := NewMockUDPSocket(nil)
	sock.ReadError = errors.New("bad descriptor")

	err := NewRelay(sock).Serve(context.Background())
	assert.ErrorContains(t, err, "bad descriptor")
}

func TestListenRelay(t *testing.T) {
	testutil.MuteLogs(t)
	factory := NewMockUDPSocketFactory(NewMockUDPSocket(nil))
	r, err := ListenRelay(factory, "127.0.0.1:8091")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, 8091, factory.ListenCalls[0].Addr.Port)

	_, err = ListenRelay(factory, "::bad::")
	assert.Error(t, err)
}

func TestRelayAndSession_RoundTrip(t *testing.T) {
	testutil.MuteLogs(t)
	relay, err := ListenRelay(NewRealUDPSocketFactory(), "127.0.0.1:0")
	require.NoError(t, err)
	defer relay.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go relay.Serve(ctx)

	cfg := DefaultSessionConfig()
	cfg.LocalAddr = "127.0.0.1:0"
	cfg.HubAddr = relay.sock.LocalAddr().String()
	cfg.ReceiveTimeout = 2 * time.Second
	s, err := OpenSession(NewRealUDPSocketFactory(), cfg)
	require.NoError(t, err)
	defer s.Close()

	require.Eventually(t, func() bool {
		return len(relay.Subscribers(TopicGoalDistance)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	angle := 5.0
	require.NoError(t, s.PublishGoal(2.0, &angle))
	got, err := s.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, LoopContinue, got)

	require.NoError(t, s.Publish(Message{Type: TypeMessage, Topic: TopicGoalDistanceClose}))
	// The close topic has no subscribers, so nothing comes back for it.
	require.Eventually(t, func() bool {
		return relay.Stats().Received == 3
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, uint64(1), relay.Stats().Forwarded)
}

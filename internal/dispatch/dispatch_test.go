package dispatch

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duskforge/channelcore/internal/codec"
	"github.com/duskforge/channelcore/internal/crypto"
	"github.com/duskforge/channelcore/internal/session"
)

func newTestSession(t *testing.T, id uint64) (*session.Session, net.Conn) {
	t.Helper()
	serverConn, clientConn := net.Pipe()
	t.Cleanup(func() { clientConn.Close() })

	server, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	client, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	serverKeys, err := server.DeriveSessionKeys(client.Public())
	require.NoError(t, err)
	bc, err := crypto.NewBlockCipher(serverKeys)
	require.NoError(t, err)

	return session.New(id, serverConn, bc), clientConn
}

func TestDispatcherInvokesRegisteredHandler(t *testing.T) {
	s, _ := newTestSession(t, 1)
	defer s.Kill()

	d := New(2)
	called := make(chan uint16, 1)
	d.Register(0x10, func(ctx context.Context, s *session.Session, pkt codec.Packet) error {
		called <- pkt.Code
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.Post(ctx, s, codec.Packet{Code: 0x10, Body: []byte("x")})

	select {
	case code := <-called:
		assert.Equal(t, uint16(0x10), code)
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked")
	}
}

func TestDispatcherDropsUnknownCodeWithoutFailing(t *testing.T) {
	s, _ := newTestSession(t, 2)
	defer s.Kill()

	d := New(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	// No handler registered for 0xFFFF; Post must not block or panic, and a
	// subsequent registered packet for the same session must still run.
	d.Post(ctx, s, codec.Packet{Code: 0xFFFF})

	called := make(chan struct{}, 1)
	d.Register(0x01, func(ctx context.Context, s *session.Session, pkt codec.Packet) error {
		called <- struct{}{}
		return nil
	})
	d.Post(ctx, s, codec.Packet{Code: 0x01})

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("handler after unknown code never ran")
	}
}

func TestDispatcherPreservesPerSessionOrder(t *testing.T) {
	s, _ := newTestSession(t, 3)
	defer s.Kill()

	d := New(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	var mu sync.Mutex
	var order []byte
	done := make(chan struct{}, 20)
	h := func(ctx context.Context, s *session.Session, pkt codec.Packet) error {
		time.Sleep(time.Millisecond)
		mu.Lock()
		order = append(order, pkt.Body[0])
		mu.Unlock()
		done <- struct{}{}
		return nil
	}
	d.Register(0x01, h)

	const n = 20
	for i := 0; i < n; i++ {
		d.Post(ctx, s, codec.Packet{Code: 0x01, Body: []byte{byte(i)}})
	}
	for i := 0; i < n; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("jobs did not complete")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	expected := make([]byte, n)
	for i := range expected {
		expected[i] = byte(i)
	}
	assert.Equal(t, expected, order, "jobs for one session must run in submission order")
}

func TestDispatcherSkipsClosedSessionJobs(t *testing.T) {
	s, _ := newTestSession(t, 4)
	s.Kill()

	d := New(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	ran := false
	d.Register(0x01, func(ctx context.Context, s *session.Session, pkt codec.Packet) error {
		ran = true
		return nil
	})
	d.Post(ctx, s, codec.Packet{Code: 0x01})

	time.Sleep(50 * time.Millisecond)
	assert.False(t, ran, "handler must not run for an already-closed session")
}

func TestDispatcherServeInvokesOnEncryptedAndStops(t *testing.T) {
	s, clientConn := newTestSession(t, 5)
	defer clientConn.Close()
	defer s.Kill()

	d := New(1)
	encryptedCalled := make(chan struct{}, 1)
	d.OnEncrypted(func(ctx context.Context, s *session.Session) {
		encryptedCalled <- struct{}{}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	serveDone := make(chan struct{})
	go func() {
		d.Serve(ctx, s)
		close(serveDone)
	}()

	s.NotifyEncrypted()
	select {
	case <-encryptedCalled:
	case <-time.After(time.Second):
		t.Fatal("OnEncrypted hook never ran")
	}
	assert.Equal(t, session.Authenticating, s.State())

	s.Kill()
	select {
	case <-serveDone:
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after session disconnect")
	}
}

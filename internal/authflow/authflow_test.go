package authflow

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duskforge/channelcore/internal/codec"
	"github.com/duskforge/channelcore/internal/crypto"
	"github.com/duskforge/channelcore/internal/session"
	"github.com/duskforge/channelcore/internal/wire"
)

func newTestSession(t *testing.T, id uint64) (*session.Session, *crypto.BlockCipher, net.Conn) {
	t.Helper()
	serverConn, clientConn := net.Pipe()
	t.Cleanup(func() { clientConn.Close() })

	server, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	client, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	serverKeys, err := server.DeriveSessionKeys(client.Public())
	require.NoError(t, err)
	clientKeys, err := client.DeriveSessionKeys(server.Public())
	require.NoError(t, err)
	serverCipher, err := crypto.NewBlockCipher(serverKeys)
	require.NoError(t, err)
	clientCipher, err := crypto.NewBlockCipher(clientKeys)
	require.NoError(t, err)

	return session.New(id, serverConn, serverCipher), clientCipher, clientConn
}

func loginPacketBody(version, sessionKey uint32, username string) []byte {
	w := codec.NewWriter()
	defer codec.Put(w)
	w.WriteU32(version)
	w.WriteU32(sessionKey)
	_ = w.WriteString(username, codec.UTF8, false)
	return w.Bytes()
}

func authPacketBody(hash string) []byte {
	w := codec.NewWriter()
	defer codec.Put(w)
	_ = w.WriteString(hash, codec.UTF8, false)
	return w.Bytes()
}

func readReply(t *testing.T, clientCipher *crypto.BlockCipher, clientConn net.Conn) codec.Packet {
	t.Helper()
	frame, err := wire.ReadFrame(clientConn)
	require.NoError(t, err)
	pkt, err := wire.DecodePacket(clientCipher, frame)
	require.NoError(t, err)
	return pkt
}

func TestLoginThenAuthActivatesSessionWithoutStore(t *testing.T) {
	s, clientCipher, clientConn := newTestSession(t, 1)
	defer s.Kill()

	f := New(nil)
	ctx := context.Background()

	require.NoError(t, f.handleLogin(ctx, s, codec.NewPacket(CodeLogin, loginPacketBody(1666, 42, "user_a"))))
	loginReply := readReply(t, clientCipher, clientConn)
	assert.Equal(t, CodeLogin, loginReply.Code)
	status, err := loginReply.Reader().ReadU16()
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, status)

	require.NoError(t, f.handleAuth(ctx, s, codec.NewPacket(CodeAuth, authPacketBody("0000000000000000000000000000000000000000"))))
	authReply := readReply(t, clientCipher, clientConn)
	assert.Equal(t, CodeAuth, authReply.Code)
	status, err = authReply.Reader().ReadU16()
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, status)

	assert.Equal(t, session.Active, s.State())
}

func TestAuthWithoutPrecedingLoginFails(t *testing.T) {
	s, clientCipher, clientConn := newTestSession(t, 2)
	defer s.Kill()

	f := New(nil)
	require.NoError(t, f.handleAuth(context.Background(), s, codec.NewPacket(CodeAuth, authPacketBody("hash"))))

	reply := readReply(t, clientCipher, clientConn)
	status, err := reply.Reader().ReadU16()
	require.NoError(t, err)
	assert.Equal(t, StatusFailure, status)
	assert.NotEqual(t, session.Active, s.State())
}

func TestAuthWithEmptyHashFailsWithoutStore(t *testing.T) {
	s, clientCipher, clientConn := newTestSession(t, 3)
	defer s.Kill()

	f := New(nil)
	ctx := context.Background()
	require.NoError(t, f.handleLogin(ctx, s, codec.NewPacket(CodeLogin, loginPacketBody(1666, 1, "user_b"))))
	readReply(t, clientCipher, clientConn)

	require.NoError(t, f.handleAuth(ctx, s, codec.NewPacket(CodeAuth, authPacketBody(""))))
	reply := readReply(t, clientCipher, clientConn)
	status, err := reply.Reader().ReadU16()
	require.NoError(t, err)
	assert.Equal(t, StatusFailure, status)
}

func TestKeepAliveEchoesNonce(t *testing.T) {
	s, clientCipher, clientConn := newTestSession(t, 4)
	defer s.Kill()

	f := New(nil)
	w := codec.NewWriter()
	w.WriteU32(0xDEADBEEF)
	pkt := codec.NewPacket(CodeKeepAlive, w.Bytes())
	codec.Put(w)
	require.NoError(t, f.handleKeepAlive(context.Background(), s, pkt))

	reply := readReply(t, clientCipher, clientConn)
	assert.Equal(t, CodeKeepAlive, reply.Code)
	nonce, err := reply.Reader().ReadU32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0xDEADBEEF), nonce)
}

func TestForgetDropsPendingLogin(t *testing.T) {
	s, clientCipher, clientConn := newTestSession(t, 5)
	defer s.Kill()

	f := New(nil)
	ctx := context.Background()
	require.NoError(t, f.handleLogin(ctx, s, codec.NewPacket(CodeLogin, loginPacketBody(1666, 1, "user_c"))))
	readReply(t, clientCipher, clientConn)

	f.Forget(s.ID())

	require.NoError(t, f.handleAuth(ctx, s, codec.NewPacket(CodeAuth, authPacketBody("anything"))))
	reply := readReply(t, clientCipher, clientConn)
	status, err := reply.Reader().ReadU16()
	require.NoError(t, err)
	assert.Equal(t, StatusFailure, status)
}

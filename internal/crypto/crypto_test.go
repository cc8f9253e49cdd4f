package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandshakeDerivesMatchingKeys(t *testing.T) {
	server, err := GenerateKeyPair()
	require.NoError(t, err)
	client, err := GenerateKeyPair()
	require.NoError(t, err)

	serverKeys, err := server.DeriveSessionKeys(client.Public())
	require.NoError(t, err)
	clientKeys, err := client.DeriveSessionKeys(server.Public())
	require.NoError(t, err)

	assert.Equal(t, serverKeys.Key, clientKeys.Key)
	assert.Equal(t, serverKeys.IV, clientKeys.IV)
}

func TestBlockCipherRoundTripsAcrossMultipleFrames(t *testing.T) {
	server, err := GenerateKeyPair()
	require.NoError(t, err)
	client, err := GenerateKeyPair()
	require.NoError(t, err)

	serverKeys, err := server.DeriveSessionKeys(client.Public())
	require.NoError(t, err)
	clientKeys, err := client.DeriveSessionKeys(server.Public())
	require.NoError(t, err)

	sender, err := NewBlockCipher(serverKeys)
	require.NoError(t, err)
	receiver, err := NewBlockCipher(clientKeys)
	require.NoError(t, err)

	messages := []string{"first frame", "a somewhat longer second frame body", "3"}
	for _, msg := range messages {
		sealed := sender.Seal([]byte(msg))
		opened, err := receiver.Open(sealed)
		require.NoError(t, err)
		assert.Equal(t, msg, string(opened))
	}
}

func TestBlockCipherRejectsTruncatedCiphertext(t *testing.T) {
	server, err := GenerateKeyPair()
	require.NoError(t, err)
	keys, err := server.DeriveSessionKeys(server.Public())
	require.NoError(t, err)
	bc, err := NewBlockCipher(keys)
	require.NoError(t, err)

	_, err = bc.Open([]byte{1, 2, 3})
	assert.Error(t, err)
}

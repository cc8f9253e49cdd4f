// Package crypto implements the channel protocol's handshake key exchange
// and the symmetric cipher used to protect framed packets once established.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// KeySize is the length in bytes of the derived AES-256 session key.
const KeySize = 32

// IVSize is the length in bytes of the derived CBC initialization vector.
const IVSize = 16

// KeyPair is an ephemeral Diffie-Hellman-style key pair over Curve25519,
// generated fresh for every handshake and discarded once the shared secret
// is derived.
type KeyPair struct {
	private [32]byte
	public  [32]byte
}

// GenerateKeyPair creates a fresh ephemeral key pair for one handshake.
func GenerateKeyPair() (*KeyPair, error) {
	var priv [32]byte
	if _, err := io.ReadFull(rand.Reader, priv[:]); err != nil {
		return nil, fmt.Errorf("generating handshake key: %w", err)
	}
	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("deriving handshake public key: %w", err)
	}
	kp := &KeyPair{private: priv}
	copy(kp.public[:], pub)
	return kp, nil
}

// Public returns the 32-byte public value to send to the peer.
func (k *KeyPair) Public() []byte {
	out := make([]byte, 32)
	copy(out, k.public[:])
	return out
}

// SessionKeys is the pair of symmetric key material derived from a completed
// exchange: an AES-256 key and a CBC initialization vector.
type SessionKeys struct {
	Key [KeySize]byte
	IV  [IVSize]byte
}

// DeriveSessionKeys computes the shared secret against peerPublic and
// expands it via HKDF-SHA256 into an AES key and IV. Both sides of the
// handshake arrive at identical SessionKeys without ever transmitting them.
func (k *KeyPair) DeriveSessionKeys(peerPublic []byte) (*SessionKeys, error) {
	if len(peerPublic) != 32 {
		return nil, fmt.Errorf("deriving session keys: peer public must be 32 bytes, got %d", len(peerPublic))
	}
	shared, err := curve25519.X25519(k.private[:], peerPublic)
	if err != nil {
		return nil, fmt.Errorf("computing shared secret: %w", err)
	}

	h := hkdf.New(sha256.New, shared, nil, []byte("channelcore handshake v1"))
	var sk SessionKeys
	if _, err := io.ReadFull(h, sk.Key[:]); err != nil {
		return nil, fmt.Errorf("expanding session key: %w", err)
	}
	if _, err := io.ReadFull(h, sk.IV[:]); err != nil {
		return nil, fmt.Errorf("expanding session iv: %w", err)
	}
	return &sk, nil
}

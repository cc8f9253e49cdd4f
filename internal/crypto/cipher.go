package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"sync"
)

// BlockCipher wraps AES-256-CBC over a continuous session, chaining the IV
// across packets the way the teacher's Blowfish cipher carries cipher state
// across calls instead of deriving it fresh each time. Safe for concurrent
// Seal/Open calls on the same session (one send path, one receive path).
type BlockCipher struct {
	mu      sync.Mutex
	encIV   [IVSize]byte
	decIV   [IVSize]byte
	encCipher cipher.Block
	decCipher cipher.Block
}

// NewBlockCipher builds a BlockCipher from handshake-derived session keys.
func NewBlockCipher(keys *SessionKeys) (*BlockCipher, error) {
	block, err := aes.NewCipher(keys.Key[:])
	if err != nil {
		return nil, fmt.Errorf("building aes cipher: %w", err)
	}
	bc := &BlockCipher{encCipher: block, decCipher: block}
	bc.encIV = keys.IV
	bc.decIV = keys.IV
	return bc, nil
}

func pkcs7Pad(b []byte) []byte {
	pad := aes.BlockSize - len(b)%aes.BlockSize
	padded := make([]byte, len(b)+pad)
	copy(padded, b)
	for i := len(b); i < len(padded); i++ {
		padded[i] = byte(pad)
	}
	return padded
}

func pkcs7Unpad(b []byte) ([]byte, error) {
	if len(b) == 0 || len(b)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("pkcs7 unpad: invalid length %d", len(b))
	}
	pad := int(b[len(b)-1])
	if pad == 0 || pad > aes.BlockSize || pad > len(b) {
		return nil, fmt.Errorf("pkcs7 unpad: invalid padding byte %d", pad)
	}
	for _, p := range b[len(b)-pad:] {
		if int(p) != pad {
			return nil, fmt.Errorf("pkcs7 unpad: malformed padding")
		}
	}
	return b[:len(b)-pad], nil
}

// Seal pads and encrypts plaintext in-place as a sequence of fixed-size AES
// blocks, advancing the running IV so the next call chains from this one.
func (c *BlockCipher) Seal(plaintext []byte) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	padded := pkcs7Pad(plaintext)
	mode := cipher.NewCBCEncrypter(c.encCipher, c.encIV[:])
	mode.CryptBlocks(padded, padded)
	copy(c.encIV[:], padded[len(padded)-aes.BlockSize:])
	return padded
}

// Open decrypts ciphertext (which must be a multiple of the AES block size)
// and strips PKCS7 padding, advancing the running IV to match the sender.
func (c *BlockCipher) Open(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("block cipher open: ciphertext length %d not a multiple of %d", len(ciphertext), aes.BlockSize)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	nextIV := make([]byte, aes.BlockSize)
	copy(nextIV, ciphertext[len(ciphertext)-aes.BlockSize:])

	out := make([]byte, len(ciphertext))
	mode := cipher.NewCBCDecrypter(c.decCipher, c.decIV[:])
	mode.CryptBlocks(out, ciphertext)

	copy(c.decIV[:], nextIV)
	return pkcs7Unpad(out)
}

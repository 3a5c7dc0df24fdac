package sharestore

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/Davincible/sharecrypt/pkg/secure"
)

const saltSize = 16

// sealMagic prefixes every sealed attachment file.
var sealMagic = []byte("SCSEAL1\n")

var (
	ErrPassphraseRequired = errors.New("sharestore: attachment is sealed and no passphrase was given")
	ErrDecryptionFailed   = errors.New("sharestore: decryption failed")
)

// KeyDerivationParams contains parameters for argon2id key derivation
type KeyDerivationParams struct {
	Time    uint32 `json:"time"`
	Memory  uint32 `json:"memory"`
	Threads uint8  `json:"threads"`
}

// DefaultKeyDerivationParams returns the parameters used for new sealers.
func DefaultKeyDerivationParams() KeyDerivationParams {
	return KeyDerivationParams{
		Time:    3,
		Memory:  64 * 1024, // 64MB
		Threads: 4,
	}
}

// Sealer encrypts attachment files with a passphrase-derived key. Keys are
// derived once per salt and cached.
type Sealer struct {
	passphrase []byte
	params     KeyDerivationParams
	salt       []byte

	mu   sync.Mutex
	keys map[string][]byte
}

// NewSealer creates a sealer with a fresh salt.
func NewSealer(passphrase string, params KeyDerivationParams) (*Sealer, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("passphrase cannot be empty")
	}
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return &Sealer{
		passphrase: []byte(passphrase),
		params:     params,
		salt:       salt,
		keys:       make(map[string][]byte),
	}, nil
}

// IsSealed reports whether data was produced by Seal.
func IsSealed(data []byte) bool {
	return bytes.HasPrefix(data, sealMagic)
}

// Seal encrypts data as magic || salt || nonce || ciphertext.
func (s *Sealer) Seal(data []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key(s.salt))
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := make([]byte, 0, len(sealMagic)+saltSize+len(nonce)+len(data)+aead.Overhead())
	out = append(out, sealMagic...)
	out = append(out, s.salt...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, data, sealMagic), nil
}

// Open decrypts data produced by Seal with the same passphrase.
func (s *Sealer) Open(data []byte) ([]byte, error) {
	if !IsSealed(data) {
		return nil, fmt.Errorf("%w: missing header", ErrDecryptionFailed)
	}
	body := data[len(sealMagic):]
	if len(body) < saltSize+chacha20poly1305.NonceSizeX+chacha20poly1305.Overhead {
		return nil, fmt.Errorf("%w: data too short", ErrDecryptionFailed)
	}

	salt := body[:saltSize]
	nonce := body[saltSize : saltSize+chacha20poly1305.NonceSizeX]
	ciphertext := body[saltSize+chacha20poly1305.NonceSizeX:]

	aead, err := chacha20poly1305.NewX(s.key(salt))
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, sealMagic)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}
	return plaintext, nil
}

// Destroy wipes the passphrase and cached keys.
func (s *Sealer) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	secure.Zero(s.passphrase)
	for _, key := range s.keys {
		secure.Zero(key)
	}
	clear(s.keys)
}

func (s *Sealer) key(salt []byte) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key, ok := s.keys[string(salt)]; ok {
		return key
	}
	key := argon2.IDKey(s.passphrase, salt, s.params.Time, s.params.Memory, s.params.Threads, chacha20poly1305.KeySize)
	s.keys[string(salt)] = key
	return key
}

// Package storage seals share bundles into password-protected files for
// moving shares between machines.
package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/pbkdf2"

	"github.com/Davincible/sharecrypt/pkg/crypto/secretsharing"
	"github.com/Davincible/sharecrypt/pkg/secure"
)

const (
	SaltSize   = 32
	NonceSize  = 12
	KeySize    = 32
	Iterations = 600000

	// FormatVersion is written into every sealed file.
	FormatVersion = 1
	kdfName       = "pbkdf2-sha256"
)

var (
	ErrEmptyPassword     = errors.New("storage: password cannot be empty")
	ErrUnsupportedFormat = errors.New("storage: unsupported file format")
	ErrDecryptionFailed  = errors.New("storage: decryption failed, wrong password or corrupted file")
)

// SecureStorage is a single file sealed with PBKDF2-SHA256 and AES-256-GCM
type SecureStorage struct {
	filepath   string
	iterations int
}

// EncryptedData is the on-disk envelope
type EncryptedData struct {
	Version    int    `json:"version"`
	KDF        string `json:"kdf"`
	Iterations int    `json:"iterations"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

func NewSecureStorage(filepath string) *SecureStorage {
	return &SecureStorage{
		filepath:   filepath,
		iterations: Iterations,
	}
}

// WithIterations overrides the PBKDF2 iteration count used by Save. Load
// always uses the count recorded in the file.
func (s *SecureStorage) WithIterations(n int) *SecureStorage {
	s.iterations = n
	return s
}

func (s *SecureStorage) Save(data []byte, password []byte) error {
	if len(password) == 0 {
		return ErrEmptyPassword
	}

	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}

	gcm, key, err := newGCM(password, salt, s.iterations)
	if err != nil {
		return err
	}
	defer secure.Zero(key)

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	envelope := EncryptedData{
		Version:    FormatVersion,
		KDF:        kdfName,
		Iterations: s.iterations,
		Salt:       salt,
		Nonce:      nonce,
	}
	envelope.Ciphertext = gcm.Seal(nil, nonce, data, envelope.additionalData())

	jsonData, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal encrypted data: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.filepath), 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(s.filepath, jsonData, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

func (s *SecureStorage) Load(password []byte) ([]byte, error) {
	if len(password) == 0 {
		return nil, ErrEmptyPassword
	}

	jsonData, err := os.ReadFile(s.filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var envelope EncryptedData
	if err := json.Unmarshal(jsonData, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
	}
	if envelope.Version != FormatVersion || envelope.KDF != kdfName || envelope.Iterations <= 0 {
		return nil, fmt.Errorf("%w: version %d kdf %q", ErrUnsupportedFormat, envelope.Version, envelope.KDF)
	}
	if len(envelope.Nonce) != NonceSize {
		return nil, fmt.Errorf("%w: bad nonce", ErrUnsupportedFormat)
	}

	gcm, key, err := newGCM(password, envelope.Salt, envelope.Iterations)
	if err != nil {
		return nil, err
	}
	defer secure.Zero(key)

	plaintext, err := gcm.Open(nil, envelope.Nonce, envelope.Ciphertext, envelope.additionalData())
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	return plaintext, nil
}

func (s *SecureStorage) Exists() bool {
	_, err := os.Stat(s.filepath)
	return err == nil
}

// Delete overwrites the file with random bytes before removing it
func (s *SecureStorage) Delete() error {
	if !s.Exists() {
		return nil
	}

	info, err := os.Stat(s.filepath)
	if err != nil {
		return fmt.Errorf("failed to stat file for secure deletion: %w", err)
	}

	noise, err := secure.RandomBytes(int(info.Size()))
	if err != nil {
		return fmt.Errorf("failed to overwrite file: %w", err)
	}

	if err := os.WriteFile(s.filepath, noise, 0600); err != nil {
		return fmt.Errorf("failed to overwrite file: %w", err)
	}

	return os.Remove(s.filepath)
}

func (e EncryptedData) additionalData() []byte {
	return []byte(fmt.Sprintf("sharecrypt/v%d/%s/%d", e.Version, e.KDF, e.Iterations))
}

func newGCM(password, salt []byte, iterations int) (cipher.AEAD, []byte, error) {
	key := pbkdf2.Key(password, salt, iterations, KeySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		secure.Zero(key)
		return nil, nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		secure.Zero(key)
		return nil, nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, key, nil
}

// Bundle is a set of shares moved between stores
type Bundle struct {
	SetID     string                   `json:"set_id,omitempty"`
	Name      string                   `json:"name,omitempty"`
	Scheme    secretsharing.SchemeType `json:"scheme"`
	Threshold int                      `json:"threshold"`
	Parties   int                      `json:"parties"`
	Bits      int                      `json:"bits,omitempty"`
	NumKeys   int                      `json:"num_keys,omitempty"`
	Exported  time.Time                `json:"exported"`
	Shares    []secretsharing.Share    `json:"shares"`
	Metadata  map[string]string        `json:"metadata,omitempty"`
}

// Validate checks that every share belongs to the bundle's scheme
func (b *Bundle) Validate() error {
	if len(b.Shares) == 0 {
		return fmt.Errorf("bundle contains no shares")
	}
	for i, s := range b.Shares {
		if s.Scheme != b.Scheme {
			return fmt.Errorf("share %d uses scheme %s, bundle is %s", i+1, s.Scheme, b.Scheme)
		}
	}
	return nil
}

// BundleStorage stores a Bundle in a SecureStorage file
type BundleStorage struct {
	storage *SecureStorage
}

func NewBundleStorage(filepath string) *BundleStorage {
	return &BundleStorage{
		storage: NewSecureStorage(filepath),
	}
}

// WithIterations overrides the PBKDF2 iteration count used when saving
func (s *BundleStorage) WithIterations(n int) *BundleStorage {
	s.storage.WithIterations(n)
	return s
}

func (s *BundleStorage) SaveBundle(bundle *Bundle, password []byte) error {
	if err := bundle.Validate(); err != nil {
		return err
	}
	if bundle.Exported.IsZero() {
		bundle.Exported = time.Now().UTC()
	}

	data, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("failed to marshal bundle: %w", err)
	}
	defer secure.Zero(data)

	return s.storage.Save(data, password)
}

func (s *BundleStorage) LoadBundle(password []byte) (*Bundle, error) {
	data, err := s.storage.Load(password)
	if err != nil {
		return nil, err
	}
	defer secure.Zero(data)

	var bundle Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bundle: %w", err)
	}
	if err := bundle.Validate(); err != nil {
		return nil, err
	}

	return &bundle, nil
}

func (s *BundleStorage) Exists() bool {
	return s.storage.Exists()
}

func (s *BundleStorage) Delete() error {
	return s.storage.Delete()
}

// Package secretsharing provides a unified interface over the supported
// secret sharing schemes: Shamir over GF(2^b), two-party additive sharing,
// robust (authenticated) Shamir, Vault-compatible GF(256) Shamir and
// prime-field SSSA.
package secretsharing

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
)

// SchemeType names a sharing scheme.
type SchemeType string

const (
	// SchemeShamir is threshold sharing over GF(2^b) with secrets.js share strings
	SchemeShamir SchemeType = "shamir"
	// SchemeAdditive is two-party XOR sharing
	SchemeAdditive SchemeType = "additive"
	// SchemeRobust is Shamir sharing with pairwise PolyQ32 authentication
	SchemeRobust SchemeType = "robust"
	// SchemeVault is HashiCorp Vault's GF(256) Shamir
	SchemeVault SchemeType = "vault"
	// SchemeSSSA is SSSaaS prime-field Shamir
	SchemeSSSA SchemeType = "sssa"
)

// ShareAttachment is the attachment name carrying a party's share.
const ShareAttachment = "share"

var (
	ErrUnsupportedScheme = errors.New("unsupported scheme")
	ErrInvalidConfig     = errors.New("invalid sharing configuration")
	ErrInvalidShare      = errors.New("invalid share")
)

// ParseScheme accepts scheme names and the short aliases "sss" and "rss".
func ParseScheme(name string) (SchemeType, error) {
	switch s := SchemeType(strings.ToLower(strings.TrimSpace(name))); s {
	case "sss":
		return SchemeShamir, nil
	case "rss":
		return SchemeRobust, nil
	case SchemeShamir, SchemeAdditive, SchemeRobust, SchemeVault, SchemeSSSA:
		return s, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, name)
	}
}

// Attachment is a named blob delivered to a party.
type Attachment struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
}

// Share is everything one party receives.
type Share struct {
	Scheme      SchemeType   `json:"scheme"`
	Party       int          `json:"party"`
	Attachments []Attachment `json:"attachments"`
}

// Attachment returns the data of the named attachment.
func (s Share) Attachment(name string) ([]byte, bool) {
	for _, a := range s.Attachments {
		if a.Name == name {
			return a.Data, true
		}
	}
	return nil, false
}

// SecretSharingConfig describes one split. Fields a scheme does not use are
// ignored.
type SecretSharingConfig struct {
	Scheme    SchemeType `json:"scheme" yaml:"scheme"`
	Parties   int        `json:"parties" yaml:"parties"`
	Threshold int        `json:"threshold" yaml:"threshold"`

	// GF(2^b) schemes
	Bits      int `json:"bits,omitempty" yaml:"bits,omitempty"`
	PadLength int `json:"pad_length,omitempty" yaml:"pad_length,omitempty"`

	// Robust scheme
	NumKeys int `json:"num_keys,omitempty" yaml:"num_keys,omitempty"`

	Rand io.Reader `json:"-" yaml:"-"`
}

// CombineOptions tune reconstruction.
type CombineOptions struct {
	// Threshold is enforced after robust verification when positive.
	Threshold int
	Logger    *slog.Logger
}

// Reconstruction is the result of combining shares.
type Reconstruction struct {
	Secret []byte `json:"-"`
	// Accepted is indexed by party number minus one. It is nil for schemes
	// that do not verify shares.
	Accepted []bool `json:"accepted,omitempty"`
}

// SecretSharer is implemented once per scheme.
type SecretSharer interface {
	Split(secret []byte, config SecretSharingConfig) ([]Share, error)

	// Combine reconstructs the secret. Robust sharers also report which
	// parties passed verification.
	Combine(shares []Share, opts CombineOptions) (*Reconstruction, error)

	// Verify checks that a share is well formed for the scheme. It cannot
	// tell whether the share is authentic.
	Verify(share Share) error

	ValidateConfig(config SecretSharingConfig) error

	GetScheme() SchemeType
}

// SharerRegistry maps scheme names to their sharer. It is safe for
// concurrent use.
type SharerRegistry struct {
	mu      sync.RWMutex
	sharers map[SchemeType]SecretSharer
}

func NewRegistry() *SharerRegistry {
	return &SharerRegistry{sharers: make(map[SchemeType]SecretSharer)}
}

// Register adds sharer under its own scheme name, replacing any earlier one.
func (r *SharerRegistry) Register(sharer SecretSharer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sharers[sharer.GetScheme()] = sharer
}

func (r *SharerRegistry) Get(scheme SchemeType) (SecretSharer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if sharer, ok := r.sharers[scheme]; ok {
		return sharer, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
}

// ListSchemes returns the registered scheme names, sorted.
func (r *SharerRegistry) ListSchemes() []SchemeType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.sharers))
}

// DefaultRegistry holds every scheme in this package.
var DefaultRegistry = NewRegistry()

// Split shares secret with the sharer named by config.Scheme.
func Split(secret []byte, config SecretSharingConfig) ([]Share, error) {
	sharer, err := DefaultRegistry.Get(config.Scheme)
	if err != nil {
		return nil, err
	}
	return sharer.Split(secret, config)
}

// Combine reconstructs a secret from shares that must all use one scheme.
func Combine(shares []Share, opts CombineOptions) (*Reconstruction, error) {
	if len(shares) == 0 {
		return nil, fmt.Errorf("%w: no shares given", ErrInvalidShare)
	}

	scheme := shares[0].Scheme
	if i := slices.IndexFunc(shares, func(s Share) bool { return s.Scheme != scheme }); i >= 0 {
		return nil, fmt.Errorf("%w: share %d uses scheme %s, expected %s",
			ErrInvalidShare, i+1, shares[i].Scheme, scheme)
	}

	sharer, err := DefaultRegistry.Get(scheme)
	if err != nil {
		return nil, err
	}
	return sharer.Combine(shares, opts)
}

// Verify checks share with the sharer of its own scheme.
func Verify(share Share) error {
	sharer, err := DefaultRegistry.Get(share.Scheme)
	if err != nil {
		return err
	}
	return sharer.Verify(share)
}

// shareAttachment returns the "share" attachment or an error naming the party.
func shareAttachment(s Share) ([]byte, error) {
	data, ok := s.Attachment(ShareAttachment)
	if !ok {
		return nil, fmt.Errorf("%w: party %d has no %q attachment", ErrInvalidShare, s.Party, ShareAttachment)
	}
	return data, nil
}

// validateCounts applies the generic party/threshold bounds.
func validateCounts(config SecretSharingConfig, maxParties int) error {
	if config.Parties < 2 {
		return fmt.Errorf("%w: parties must be at least 2, got %d", ErrInvalidConfig, config.Parties)
	}
	if config.Parties > maxParties {
		return fmt.Errorf("%w: parties cannot exceed %d, got %d", ErrInvalidConfig, maxParties, config.Parties)
	}
	if config.Threshold < 2 {
		return fmt.Errorf("%w: threshold must be at least 2, got %d", ErrInvalidConfig, config.Threshold)
	}
	if config.Threshold > config.Parties {
		return fmt.Errorf("%w: threshold (%d) cannot be greater than parties (%d)",
			ErrInvalidConfig, config.Threshold, config.Parties)
	}
	return nil
}

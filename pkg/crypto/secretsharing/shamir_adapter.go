package secretsharing

import (
	"fmt"

	"github.com/Davincible/sharecrypt/pkg/crypto/shamir"
)

// ShamirSharer implements SecretSharer for GF(2^b) Shamir shares
type ShamirSharer struct{}

func NewShamirSharer() *ShamirSharer {
	return &ShamirSharer{}
}

func (s *ShamirSharer) Split(secret []byte, config SecretSharingConfig) ([]Share, error) {
	if err := s.ValidateConfig(config); err != nil {
		return nil, err
	}

	parts, err := shamir.Split(secret, shamirConfig(config))
	if err != nil {
		return nil, fmt.Errorf("shamir split failed: %w", err)
	}

	shares := make([]Share, len(parts))
	for i, p := range parts {
		shares[i] = Share{
			Scheme:      SchemeShamir,
			Party:       p.ID,
			Attachments: []Attachment{{Name: ShareAttachment, Data: []byte(p.String())}},
		}
	}
	return shares, nil
}

func (s *ShamirSharer) Combine(shares []Share, _ CombineOptions) (*Reconstruction, error) {
	parsed, err := parseShamirShares(shares)
	if err != nil {
		return nil, err
	}

	secret, err := shamir.Combine(parsed)
	if err != nil {
		return nil, fmt.Errorf("shamir combine failed: %w", err)
	}
	return &Reconstruction{Secret: secret}, nil
}

func (s *ShamirSharer) Verify(share Share) error {
	_, err := parseShamirShares([]Share{share})
	return err
}

func (s *ShamirSharer) ValidateConfig(config SecretSharingConfig) error {
	sc := shamirConfig(config)
	if err := sc.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (s *ShamirSharer) GetScheme() SchemeType {
	return SchemeShamir
}

// NewShare derives the share for party id from existing shares.
func (s *ShamirSharer) NewShare(id int, shares []Share) (Share, error) {
	parsed, err := parseShamirShares(shares)
	if err != nil {
		return Share{}, err
	}
	derived, err := shamir.NewShare(id, parsed)
	if err != nil {
		return Share{}, fmt.Errorf("failed to derive share %d: %w", id, err)
	}
	return Share{
		Scheme:      SchemeShamir,
		Party:       id,
		Attachments: []Attachment{{Name: ShareAttachment, Data: []byte(derived.String())}},
	}, nil
}

func shamirConfig(config SecretSharingConfig) shamir.Config {
	return shamir.Config{
		Shares:    config.Parties,
		Threshold: config.Threshold,
		Bits:      config.Bits,
		PadLength: config.PadLength,
		Rand:      config.Rand,
	}
}

func parseShamirShares(shares []Share) ([]shamir.Share, error) {
	parsed := make([]shamir.Share, 0, len(shares))
	for _, s := range shares {
		data, err := shareAttachment(s)
		if err != nil {
			return nil, err
		}
		p, err := shamir.ParseShare(string(data))
		if err != nil {
			return nil, fmt.Errorf("%w: party %d: %w", ErrInvalidShare, s.Party, err)
		}
		parsed = append(parsed, p)
	}
	return parsed, nil
}

func init() {
	DefaultRegistry.Register(NewShamirSharer())
}

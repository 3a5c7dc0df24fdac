package secretsharing

import (
	"encoding/hex"
	"fmt"

	"github.com/SSSaaS/sssa-golang"
)

// SSSASharer implements SecretSharer with SSSaaS prime-field Shamir. The
// secret is hex encoded before sharing and shares are base64 text.
type SSSASharer struct{}

func NewSSSASharer() *SSSASharer {
	return &SSSASharer{}
}

func (s *SSSASharer) Split(secret []byte, config SecretSharingConfig) ([]Share, error) {
	if err := s.ValidateConfig(config); err != nil {
		return nil, err
	}
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: secret cannot be empty", ErrInvalidConfig)
	}

	parts, err := sssa.Create(config.Threshold, config.Parties, hex.EncodeToString(secret))
	if err != nil {
		return nil, fmt.Errorf("sssa split failed: %w", err)
	}

	shares := make([]Share, len(parts))
	for i, p := range parts {
		shares[i] = Share{
			Scheme:      SchemeSSSA,
			Party:       i + 1,
			Attachments: []Attachment{{Name: ShareAttachment, Data: []byte(p)}},
		}
	}
	return shares, nil
}

func (s *SSSASharer) Combine(shares []Share, _ CombineOptions) (*Reconstruction, error) {
	parts := make([]string, len(shares))
	for i, sh := range shares {
		if err := s.Verify(sh); err != nil {
			return nil, err
		}
		data, _ := sh.Attachment(ShareAttachment)
		parts[i] = string(data)
	}

	secretHex, err := sssa.Combine(parts)
	if err != nil {
		return nil, fmt.Errorf("sssa combine failed: %w", err)
	}

	secret, err := hex.DecodeString(secretHex)
	if err != nil {
		return nil, fmt.Errorf("sssa combine produced invalid output: %w", err)
	}
	return &Reconstruction{Secret: secret}, nil
}

func (s *SSSASharer) Verify(share Share) error {
	data, err := shareAttachment(share)
	if err != nil {
		return err
	}
	if !sssa.IsValidShare(string(data)) {
		return fmt.Errorf("%w: party %d share is not a valid sssa share", ErrInvalidShare, share.Party)
	}
	return nil
}

func (s *SSSASharer) ValidateConfig(config SecretSharingConfig) error {
	return validateCounts(config, 255)
}

func (s *SSSASharer) GetScheme() SchemeType {
	return SchemeSSSA
}

func init() {
	DefaultRegistry.Register(NewSSSASharer())
}

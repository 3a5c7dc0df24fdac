package secretsharing

import (
	"fmt"

	"github.com/Davincible/sharecrypt/pkg/crypto/additive"
)

// AdditiveSharer implements SecretSharer for two-party XOR sharing. Parties
// and Threshold must be 2 or left zero.
type AdditiveSharer struct{}

func NewAdditiveSharer() *AdditiveSharer {
	return &AdditiveSharer{}
}

func (a *AdditiveSharer) Split(secret []byte, config SecretSharingConfig) ([]Share, error) {
	if err := a.ValidateConfig(config); err != nil {
		return nil, err
	}

	parts, err := additive.Split(secret, config.Rand)
	if err != nil {
		return nil, fmt.Errorf("additive split failed: %w", err)
	}

	shares := make([]Share, 0, 2)
	for i, data := range parts.Slice() {
		shares = append(shares, Share{
			Scheme:      SchemeAdditive,
			Party:       i + 1,
			Attachments: []Attachment{{Name: ShareAttachment, Data: data}},
		})
	}
	return shares, nil
}

func (a *AdditiveSharer) Combine(shares []Share, _ CombineOptions) (*Reconstruction, error) {
	data := make([][]byte, len(shares))
	for i, s := range shares {
		d, err := shareAttachment(s)
		if err != nil {
			return nil, err
		}
		data[i] = d
	}

	secret, err := additive.Combine(data...)
	if err != nil {
		return nil, fmt.Errorf("additive combine failed: %w", err)
	}
	return &Reconstruction{Secret: secret}, nil
}

func (a *AdditiveSharer) Verify(share Share) error {
	_, err := shareAttachment(share)
	return err
}

func (a *AdditiveSharer) ValidateConfig(config SecretSharingConfig) error {
	if config.Parties != 0 && config.Parties != 2 {
		return fmt.Errorf("%w: additive sharing always uses 2 parties, got %d", ErrInvalidConfig, config.Parties)
	}
	if config.Threshold != 0 && config.Threshold != 2 {
		return fmt.Errorf("%w: additive sharing needs both shares, got threshold %d", ErrInvalidConfig, config.Threshold)
	}
	return nil
}

func (a *AdditiveSharer) GetScheme() SchemeType {
	return SchemeAdditive
}

func init() {
	DefaultRegistry.Register(NewAdditiveSharer())
}

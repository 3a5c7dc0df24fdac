package secretsharing

import (
	"fmt"

	"github.com/hashicorp/vault/shamir"
)

// VaultSharer implements SecretSharer with HashiCorp Vault's GF(256) Shamir.
// Shares are raw bytes whose last byte is the x coordinate, the same layout
// Vault uses for unseal keys.
type VaultSharer struct{}

func NewVaultSharer() *VaultSharer {
	return &VaultSharer{}
}

func (v *VaultSharer) Split(secret []byte, config SecretSharingConfig) ([]Share, error) {
	if err := v.ValidateConfig(config); err != nil {
		return nil, err
	}
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: secret cannot be empty", ErrInvalidConfig)
	}

	parts, err := shamir.Split(secret, config.Parties, config.Threshold)
	if err != nil {
		return nil, fmt.Errorf("vault split failed: %w", err)
	}

	shares := make([]Share, len(parts))
	for i, p := range parts {
		shares[i] = Share{
			Scheme:      SchemeVault,
			Party:       i + 1,
			Attachments: []Attachment{{Name: ShareAttachment, Data: p}},
		}
	}
	return shares, nil
}

func (v *VaultSharer) Combine(shares []Share, _ CombineOptions) (*Reconstruction, error) {
	if len(shares) < 2 {
		return nil, fmt.Errorf("%w: at least 2 shares are required for reconstruction", ErrInvalidShare)
	}

	parts := make([][]byte, len(shares))
	for i, s := range shares {
		if err := v.Verify(s); err != nil {
			return nil, err
		}
		parts[i], _ = s.Attachment(ShareAttachment)
	}

	secret, err := shamir.Combine(parts)
	if err != nil {
		return nil, fmt.Errorf("vault combine failed: %w", err)
	}
	return &Reconstruction{Secret: secret}, nil
}

func (v *VaultSharer) Verify(share Share) error {
	data, err := shareAttachment(share)
	if err != nil {
		return err
	}
	if len(data) < 2 {
		return fmt.Errorf("%w: party %d share is too short", ErrInvalidShare, share.Party)
	}
	return nil
}

func (v *VaultSharer) ValidateConfig(config SecretSharingConfig) error {
	return validateCounts(config, 255)
}

func (v *VaultSharer) GetScheme() SchemeType {
	return SchemeVault
}

func init() {
	DefaultRegistry.Register(NewVaultSharer())
}

package secretsharing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Davincible/sharecrypt/pkg/crypto/additive"
	"github.com/Davincible/sharecrypt/pkg/crypto/rss"
	"github.com/Davincible/sharecrypt/pkg/crypto/shamir"
)

func TestRegistryListsAllSchemes(t *testing.T) {
	assert.Equal(t, []SchemeType{SchemeAdditive, SchemeRobust, SchemeShamir, SchemeSSSA, SchemeVault},
		DefaultRegistry.ListSchemes())

	_, err := DefaultRegistry.Get("slip039")
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
}

func TestRegistryReplacesByScheme(t *testing.T) {
	r := NewRegistry()
	first := NewVaultSharer()
	second := NewVaultSharer()
	r.Register(first)
	r.Register(second)

	got, err := r.Get(SchemeVault)
	require.NoError(t, err)
	assert.Same(t, second, got)
	assert.Equal(t, []SchemeType{SchemeVault}, r.ListSchemes())
}

func TestParseScheme(t *testing.T) {
	tests := []struct {
		input string
		want  SchemeType
	}{
		{"sss", SchemeShamir},
		{"Shamir", SchemeShamir},
		{"rss", SchemeRobust},
		{"robust", SchemeRobust},
		{"additive", SchemeAdditive},
		{" vault ", SchemeVault},
		{"sssa", SchemeSSSA},
	}
	for _, tt := range tests {
		got, err := ParseScheme(tt.input)
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseScheme("pvss")
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
}

func TestRoundTripAllSchemes(t *testing.T) {
	secret := []byte("correct horse battery staple")

	tests := []struct {
		name    string
		config  SecretSharingConfig
		combine int
	}{
		{"shamir", SecretSharingConfig{Scheme: SchemeShamir, Parties: 5, Threshold: 3}, 3},
		{"shamir wide field", SecretSharingConfig{Scheme: SchemeShamir, Parties: 5, Threshold: 3, Bits: 16}, 3},
		{"additive", SecretSharingConfig{Scheme: SchemeAdditive}, 2},
		{"robust", SecretSharingConfig{Scheme: SchemeRobust, Parties: 4, Threshold: 3}, 4},
		{"vault", SecretSharingConfig{Scheme: SchemeVault, Parties: 5, Threshold: 3}, 3},
		{"sssa", SecretSharingConfig{Scheme: SchemeSSSA, Parties: 5, Threshold: 3}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shares, err := Split(secret, tt.config)
			require.NoError(t, err)

			for i, s := range shares {
				assert.Equal(t, tt.config.Scheme, s.Scheme)
				assert.Equal(t, i+1, s.Party)
				assert.NoError(t, Verify(s))
			}

			rec, err := Combine(shares[len(shares)-tt.combine:], CombineOptions{Threshold: tt.config.Threshold})
			require.NoError(t, err)
			assert.Equal(t, secret, rec.Secret)
		})
	}
}

func TestRobustCombineReportsAcceptance(t *testing.T) {
	shares, err := Split([]byte("robust"), SecretSharingConfig{Scheme: SchemeRobust, Parties: 4, Threshold: 2})
	require.NoError(t, err)

	// Replace party 2's share text with one for a different secret.
	other, err := shamir.Split([]byte("forged"), shamir.Config{Shares: 4, Threshold: 2})
	require.NoError(t, err)
	shares[1].Attachments[0].Data = []byte(other[1].String())

	rec, err := Combine(shares, CombineOptions{})
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true, true}, rec.Accepted)
	assert.Equal(t, []byte("robust"), rec.Secret)
}

func TestRobustCombineBelowThreshold(t *testing.T) {
	shares, err := Split([]byte("robust"), SecretSharingConfig{Scheme: SchemeRobust, Parties: 3, Threshold: 3})
	require.NoError(t, err)
	shares[0].Attachments[0].Data = []byte("801" + string(shares[0].Attachments[0].Data[3:5]) + "00")

	rec, err := Combine(shares, CombineOptions{Threshold: 3})
	assert.ErrorIs(t, err, rss.ErrBelowThreshold)
	require.NotNil(t, rec)
	assert.False(t, rec.Accepted[0])
}

func TestCombineRejectsMixedSchemes(t *testing.T) {
	a, err := Split([]byte("x"), SecretSharingConfig{Scheme: SchemeShamir, Parties: 3, Threshold: 2})
	require.NoError(t, err)
	b, err := Split([]byte("x"), SecretSharingConfig{Scheme: SchemeVault, Parties: 3, Threshold: 2})
	require.NoError(t, err)

	_, err = Combine([]Share{a[0], b[1]}, CombineOptions{})
	assert.ErrorIs(t, err, ErrInvalidShare)

	_, err = Combine(nil, CombineOptions{})
	assert.ErrorIs(t, err, ErrInvalidShare)
}

func TestAdditiveShareCounts(t *testing.T) {
	shares, err := Split([]byte("pad"), SecretSharingConfig{Scheme: SchemeAdditive, Parties: 2, Threshold: 2})
	require.NoError(t, err)
	require.Len(t, shares, 2)

	_, err = Combine(shares[:1], CombineOptions{})
	assert.ErrorIs(t, err, additive.ErrInsufficientShares)

	_, err = Combine(append(shares, shares[0]), CombineOptions{})
	assert.ErrorIs(t, err, additive.ErrAmbiguousShareCount)

	_, err = Split([]byte("pad"), SecretSharingConfig{Scheme: SchemeAdditive, Parties: 3})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		config SecretSharingConfig
	}{
		{"shamir one party", SecretSharingConfig{Scheme: SchemeShamir, Parties: 1, Threshold: 1}},
		{"shamir bad bits", SecretSharingConfig{Scheme: SchemeShamir, Parties: 3, Threshold: 2, Bits: 25}},
		{"robust too wide", SecretSharingConfig{Scheme: SchemeRobust, Parties: 3, Threshold: 2, Bits: 18}},
		{"vault too many", SecretSharingConfig{Scheme: SchemeVault, Parties: 256, Threshold: 2}},
		{"sssa threshold above parties", SecretSharingConfig{Scheme: SchemeSSSA, Parties: 3, Threshold: 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sharer, err := DefaultRegistry.Get(tt.config.Scheme)
			require.NoError(t, err)
			assert.ErrorIs(t, sharer.ValidateConfig(tt.config), ErrInvalidConfig)
		})
	}
}

func TestVerifyRejectsBadShares(t *testing.T) {
	missing := Share{Scheme: SchemeShamir, Party: 1}
	assert.ErrorIs(t, Verify(missing), ErrInvalidShare)

	bad := Share{Scheme: SchemeShamir, Party: 1, Attachments: []Attachment{{Name: ShareAttachment, Data: []byte("zz")}}}
	assert.ErrorIs(t, Verify(bad), ErrInvalidShare)

	robust := Share{Scheme: SchemeRobust, Party: 1, Attachments: []Attachment{
		{Name: ShareAttachment, Data: []byte("801abcd")},
		{Name: "k-2-1", Data: []byte("1\n2\n3")},
	}}
	assert.ErrorIs(t, Verify(robust), ErrInvalidShare)

	sssaShare := Share{Scheme: SchemeSSSA, Party: 1, Attachments: []Attachment{{Name: ShareAttachment, Data: []byte("nope")}}}
	assert.ErrorIs(t, Verify(sssaShare), ErrInvalidShare)
}

func TestShamirNewShare(t *testing.T) {
	secret := []byte("grow the group")
	shares, err := Split(secret, SecretSharingConfig{Scheme: SchemeShamir, Parties: 3, Threshold: 2})
	require.NoError(t, err)

	sharer := NewShamirSharer()
	extra, err := sharer.NewShare(7, shares[:2])
	require.NoError(t, err)
	assert.Equal(t, 7, extra.Party)

	rec, err := Combine([]Share{extra, shares[2]}, CombineOptions{})
	require.NoError(t, err)
	assert.Equal(t, secret, rec.Secret)
}

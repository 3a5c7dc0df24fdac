package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Davincible/sharecrypt/pkg/crypto/secretsharing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "shamir", cfg.Defaults.Scheme)
	assert.Equal(t, 4, cfg.Defaults.Parties)
	assert.Equal(t, 8, cfg.Defaults.Bits)
	assert.Equal(t, 128, cfg.Defaults.PadLength)
	assert.Equal(t, 3, cfg.Defaults.NumKeys)
}

func TestDefaultThreshold(t *testing.T) {
	tests := []struct {
		parties, want int
	}{
		{2, 2},
		{3, 2},
		{4, 3},
		{5, 3},
		{10, 6},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DefaultThreshold(tt.parties), "parties=%d", tt.parties)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "alias scheme", mutate: func(c *Config) { c.Defaults.Scheme = "rss" }},
		{name: "unknown scheme", mutate: func(c *Config) { c.Defaults.Scheme = "slip39" }, wantErr: true},
		{name: "one party", mutate: func(c *Config) { c.Defaults.Parties = 1 }, wantErr: true},
		{name: "threshold one", mutate: func(c *Config) { c.Defaults.Threshold = 1 }, wantErr: true},
		{name: "threshold above parties", mutate: func(c *Config) { c.Defaults.Threshold = 5 }, wantErr: true},
		{name: "bits too wide", mutate: func(c *Config) { c.Defaults.Bits = 21 }, wantErr: true},
		{name: "pad too long", mutate: func(c *Config) { c.Defaults.PadLength = 2048 }, wantErr: true},
		{name: "metrics without textfile", mutate: func(c *Config) { c.Metrics.Enabled = true }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMissingFileUsesDefaults(t *testing.T) {
	cm, err := NewConfigManagerAt(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cm.GetConfig())
}

func TestSaveAndLoad(t *testing.T) {
	for _, name := range []string{"config.json", "config.yaml", "config.yml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			cm, err := NewConfigManagerAt(path)
			require.NoError(t, err)

			cfg := cm.GetConfig()
			cfg.Defaults.Scheme = "robust"
			cfg.Defaults.Parties = 7
			cfg.Defaults.NumKeys = 5
			cfg.Metrics.Enabled = true
			cfg.Metrics.Textfile = "/tmp/sharecrypt.prom"
			require.NoError(t, cm.SaveConfig())

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

			reloaded, err := NewConfigManagerAt(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, reloaded.GetConfig())
		})
	}
}

func TestLoadPartialYAMLKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("defaults:\n  parties: 6\n  threshold: 4\n"), 0600))

	cm, err := NewConfigManagerAt(path)
	require.NoError(t, err)
	cfg := cm.GetConfig()
	assert.Equal(t, 6, cfg.Defaults.Parties)
	assert.Equal(t, 4, cfg.Defaults.Threshold)
	assert.Equal(t, "shamir", cfg.Defaults.Scheme)
	assert.Equal(t, 128, cfg.Defaults.PadLength)
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0600))
	_, err := NewConfigManagerAt(bad)
	assert.Error(t, err)

	invalid := filepath.Join(dir, "invalid.json")
	require.NoError(t, os.WriteFile(invalid, []byte(`{"defaults":{"parties":1}}`), 0600))
	_, err = NewConfigManagerAt(invalid)
	assert.Error(t, err)
}

func TestConfigPathFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	t.Setenv(EnvConfigPath, path)

	got, err := defaultPath()
	require.NoError(t, err)
	assert.Equal(t, path, got)

	t.Setenv(EnvConfigPath, "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	got, err = defaultPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/xdg", "sharecrypt", "config.json"), got)

	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", home)
	got, err = defaultPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "sharecrypt", "config.json"), got)
}

func TestApplyDefaults(t *testing.T) {
	cm, err := NewConfigManagerAt(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)

	tests := []struct {
		name string
		in   secretsharing.SecretSharingConfig
		want secretsharing.SecretSharingConfig
	}{
		{
			name: "empty uses shamir defaults",
			want: secretsharing.SecretSharingConfig{
				Scheme: secretsharing.SchemeShamir, Parties: 4, Threshold: 3, Bits: 8, PadLength: 128,
			},
		},
		{
			name: "robust gets keys",
			in:   secretsharing.SecretSharingConfig{Scheme: secretsharing.SchemeRobust, Parties: 5},
			want: secretsharing.SecretSharingConfig{
				Scheme: secretsharing.SchemeRobust, Parties: 5, Threshold: 3, Bits: 8, PadLength: 128, NumKeys: 3,
			},
		},
		{
			name: "explicit values kept",
			in: secretsharing.SecretSharingConfig{
				Scheme: secretsharing.SchemeShamir, Parties: 6, Threshold: 2, Bits: 12, PadLength: 64,
			},
			want: secretsharing.SecretSharingConfig{
				Scheme: secretsharing.SchemeShamir, Parties: 6, Threshold: 2, Bits: 12, PadLength: 64,
			},
		},
		{
			name: "additive defaults to two of two",
			in:   secretsharing.SecretSharingConfig{Scheme: secretsharing.SchemeAdditive},
			want: secretsharing.SecretSharingConfig{Scheme: secretsharing.SchemeAdditive, Parties: 2, Threshold: 2},
		},
		{
			name: "additive keeps explicit counts for validation",
			in:   secretsharing.SecretSharingConfig{Scheme: secretsharing.SchemeAdditive, Parties: 3},
			want: secretsharing.SecretSharingConfig{Scheme: secretsharing.SchemeAdditive, Parties: 3, Threshold: 2},
		},
		{
			name: "vault ignores field parameters",
			in:   secretsharing.SecretSharingConfig{Scheme: secretsharing.SchemeVault, Parties: 3},
			want: secretsharing.SecretSharingConfig{Scheme: secretsharing.SchemeVault, Parties: 3, Threshold: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in
			cm.ApplyDefaults(&got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyDefaultsConfiguredThreshold(t *testing.T) {
	cm, err := NewConfigManagerAt(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	cm.GetConfig().Defaults.Threshold = 4

	cfg := secretsharing.SecretSharingConfig{Parties: 6}
	cm.ApplyDefaults(&cfg)
	assert.Equal(t, 4, cfg.Threshold)

	// A configured threshold that cannot apply falls back to the majority.
	cfg = secretsharing.SecretSharingConfig{Parties: 3}
	cm.ApplyDefaults(&cfg)
	assert.Equal(t, 2, cfg.Threshold)
}

func TestProfiles(t *testing.T) {
	dir := t.TempDir()
	cm, err := NewConfigManagerAt(filepath.Join(dir, "config.json"))
	require.NoError(t, err)

	require.Error(t, cm.AddProfile(&ShareProfile{}))

	require.NoError(t, cm.AddProfile(&ShareProfile{
		Name: "vault-3",
		Config: secretsharing.SecretSharingConfig{
			Scheme: secretsharing.SchemeVault, Parties: 5, Threshold: 3,
		},
	}))
	require.NoError(t, cm.AddProfile(&ShareProfile{Name: "additive"}))

	reloaded, err := NewConfigManagerAt(filepath.Join(dir, "config.json"))
	require.NoError(t, err)

	profile, err := reloaded.GetProfile("vault-3")
	require.NoError(t, err)
	assert.Equal(t, 3, profile.Config.Threshold)

	list := reloaded.ListProfiles()
	require.Len(t, list, 2)
	assert.Equal(t, "additive", list[0].Name)

	require.NoError(t, reloaded.DeleteProfile("additive"))
	assert.ErrorIs(t, reloaded.DeleteProfile("additive"), ErrProfileNotFound)
	_, err = reloaded.GetProfile("additive")
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestAddProfileRejects(t *testing.T) {
	cm, err := NewConfigManagerAt(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)

	tests := []struct {
		name    string
		profile ShareProfile
	}{
		{"blank name", ShareProfile{Name: "  "}},
		{"path in name", ShareProfile{Name: "a/b"}},
		{"unknown scheme", ShareProfile{Name: "x", Config: secretsharing.SecretSharingConfig{Scheme: "slip039"}}},
		{"negative parties", ShareProfile{Name: "x", Config: secretsharing.SecretSharingConfig{Parties: -1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, cm.AddProfile(&tt.profile))
		})
	}
	assert.Empty(t, cm.ListProfiles())
}

func TestYAMLProfiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	cm, err := NewConfigManagerAt(path)
	require.NoError(t, err)

	require.NoError(t, cm.AddProfile(&ShareProfile{
		Name: " robust ",
		Config: secretsharing.SecretSharingConfig{
			Scheme: secretsharing.SchemeRobust, Parties: 5, Threshold: 3, NumKeys: 4,
		},
	}))

	data, err := os.ReadFile(filepath.Join(dir, "profiles.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "num_keys: 4")

	reloaded, err := NewConfigManagerAt(path)
	require.NoError(t, err)
	p, err := reloaded.GetProfile("robust")
	require.NoError(t, err)
	assert.Equal(t, secretsharing.SchemeRobust, p.Config.Scheme)
	assert.Equal(t, 4, p.Config.NumKeys)
}

func TestValidatePassphrase(t *testing.T) {
	cm, err := NewConfigManagerAt(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	assert.Error(t, cm.ValidatePassphrase("short"))
	assert.NoError(t, cm.ValidatePassphrase("long enough"))
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := ExpandHome("~/.sharecrypt/sets")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".sharecrypt", "sets"), got)

	got, err = ExpandHome("/abs/path")
	require.NoError(t, err)
	assert.Equal(t, "/abs/path", got)

	got, err = ExpandHome("~other/path")
	require.NoError(t, err)
	assert.Equal(t, "~other/path", got)
}

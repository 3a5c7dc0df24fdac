// Package config loads the sharecrypt configuration file and saved sharing
// profiles.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Davincible/sharecrypt/pkg/crypto/secretsharing"
)

// EnvConfigPath overrides the configuration file location.
const EnvConfigPath = "SHARECRYPT_CONFIG"

// ErrProfileNotFound is returned for an unknown sharing profile name.
var ErrProfileNotFound = errors.New("config: profile not found")

// Config is the on-disk configuration.
type Config struct {
	Version  string          `json:"version" yaml:"version"`
	Defaults DefaultSettings `json:"defaults" yaml:"defaults"`
	Security SecurityConfig  `json:"security" yaml:"security"`
	UI       UIConfig        `json:"ui" yaml:"ui"`
	Storage  StorageConfig   `json:"storage" yaml:"storage"`
	Metrics  MetricsConfig   `json:"metrics" yaml:"metrics"`
}

// DefaultSettings fill whatever a split command leaves unset.
type DefaultSettings struct {
	Scheme    string `json:"scheme" yaml:"scheme"`       // Default: shamir
	Parties   int    `json:"parties" yaml:"parties"`     // Default: 4
	Threshold int    `json:"threshold" yaml:"threshold"` // 0 means parties/2 + 1
	Bits      int    `json:"bits" yaml:"bits"`           // Default: 8
	PadLength int    `json:"pad_length" yaml:"pad_length"`
	NumKeys   int    `json:"num_keys" yaml:"num_keys"` // Default: 3
}

type SecurityConfig struct {
	MinPassphraseLength int  `json:"min_passphrase_length" yaml:"min_passphrase_length"`
	WipeMemory          bool `json:"wipe_memory" yaml:"wipe_memory"`
	// EnforceThreshold fails robust reconstruction when fewer shares than
	// the threshold survive verification.
	EnforceThreshold bool `json:"enforce_threshold" yaml:"enforce_threshold"`
}

type UIConfig struct {
	UseColor    bool `json:"use_color" yaml:"use_color"`
	UseMnemonic bool `json:"use_mnemonic" yaml:"use_mnemonic"` // Print byte shares as BIP-39 words when possible
}

// StorageConfig locates the share store.
type StorageConfig struct {
	DefaultPath    string `json:"default_path" yaml:"default_path"`
	EncryptStorage bool   `json:"encrypt_storage" yaml:"encrypt_storage"`
}

// MetricsConfig controls the Prometheus textfile written after each command
type MetricsConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Textfile string `json:"textfile" yaml:"textfile"`
}

// ShareProfile is a named split configuration used by split --profile.
type ShareProfile struct {
	Name        string                            `json:"name" yaml:"name"`
	Description string                            `json:"description" yaml:"description"`
	Config      secretsharing.SecretSharingConfig `json:"config" yaml:"config"`
}

// ConfigManager owns the loaded configuration and profiles.
type ConfigManager struct {
	config     *Config
	configPath string
	profiles   map[string]*ShareProfile
}

// NewConfigManager loads the configuration from the default location, falling
// back to DefaultConfig when no file exists yet.
func NewConfigManager() (*ConfigManager, error) {
	configPath, err := defaultPath()
	if err != nil {
		return nil, err
	}
	return NewConfigManagerAt(configPath)
}

// NewConfigManagerAt is NewConfigManager for an explicit path.
func NewConfigManagerAt(configPath string) (*ConfigManager, error) {
	cm := &ConfigManager{
		configPath: configPath,
		profiles:   make(map[string]*ShareProfile),
	}

	if err := cm.LoadConfig(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		cm.config = DefaultConfig()
	}

	if err := cm.LoadProfiles(); err != nil {
		return nil, err
	}

	return cm, nil
}

func DefaultConfig() *Config {
	return &Config{
		Version: "1.0.0",
		Defaults: DefaultSettings{
			Scheme:    string(secretsharing.SchemeShamir),
			Parties:   4,
			Threshold: 0,
			Bits:      8,
			PadLength: 128,
			NumKeys:   3,
		},
		Security: SecurityConfig{
			MinPassphraseLength: 8,
			WipeMemory:          true,
			EnforceThreshold:    false,
		},
		UI: UIConfig{
			UseColor:    true,
			UseMnemonic: false,
		},
		Storage: StorageConfig{
			DefaultPath:    "~/.sharecrypt/sets",
			EncryptStorage: false,
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Textfile: "",
		},
	}
}

// DefaultThreshold is the majority threshold used when none is configured.
func DefaultThreshold(parties int) int {
	return parties/2 + 1
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if _, err := secretsharing.ParseScheme(c.Defaults.Scheme); err != nil {
		return fmt.Errorf("defaults.scheme: %w", err)
	}
	if c.Defaults.Parties < 2 {
		return fmt.Errorf("defaults.parties must be at least 2, got %d", c.Defaults.Parties)
	}
	if c.Defaults.Threshold < 0 || c.Defaults.Threshold > c.Defaults.Parties {
		return fmt.Errorf("defaults.threshold must be between 0 and %d, got %d", c.Defaults.Parties, c.Defaults.Threshold)
	}
	if c.Defaults.Threshold == 1 {
		return fmt.Errorf("defaults.threshold must be at least 2 when set")
	}
	if c.Defaults.Bits != 0 && (c.Defaults.Bits < 3 || c.Defaults.Bits > 20) {
		return fmt.Errorf("defaults.bits must be between 3 and 20, got %d", c.Defaults.Bits)
	}
	if c.Defaults.PadLength < 0 || c.Defaults.PadLength > 1024 {
		return fmt.Errorf("defaults.pad_length must be between 0 and 1024, got %d", c.Defaults.PadLength)
	}
	if c.Defaults.NumKeys < 0 {
		return fmt.Errorf("defaults.num_keys cannot be negative")
	}
	if c.Metrics.Enabled && c.Metrics.Textfile == "" {
		return fmt.Errorf("metrics.textfile is required when metrics are enabled")
	}
	return nil
}

// LoadConfig reads and validates the file at Path. YAML is used for .yaml
// and .yml files, JSON otherwise. Unset keys keep their DefaultConfig value.
func (cm *ConfigManager) LoadConfig() error {
	data, err := os.ReadFile(cm.configPath)
	if err != nil {
		return err
	}

	config := DefaultConfig()
	if err := unmarshal(cm.configPath, data, config); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", cm.configPath, err)
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", cm.configPath, err)
	}

	cm.config = config
	return nil
}

// SaveConfig writes the current configuration to Path.
func (cm *ConfigManager) SaveConfig() error {
	data, err := marshal(cm.configPath, cm.config)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return writeFile(cm.configPath, data)
}

func (cm *ConfigManager) GetConfig() *Config {
	return cm.config
}

func (cm *ConfigManager) SetConfig(config *Config) {
	cm.config = config
}

// Path is the configuration file location.
func (cm *ConfigManager) Path() string {
	return cm.configPath
}

// profilesPath sits next to the config file and shares its format.
func (cm *ConfigManager) profilesPath() string {
	name := "profiles.json"
	if isYAML(cm.configPath) {
		name = "profiles.yaml"
	}
	return filepath.Join(filepath.Dir(cm.configPath), name)
}

// LoadProfiles reads the saved sharing profiles. A missing file is an empty
// profile set.
func (cm *ConfigManager) LoadProfiles() error {
	path := cm.profilesPath()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	var list []*ShareProfile
	if err := unmarshal(path, data, &list); err != nil {
		return fmt.Errorf("failed to parse profiles %s: %w", path, err)
	}

	cm.profiles = make(map[string]*ShareProfile, len(list))
	for _, p := range list {
		cm.profiles[p.Name] = p
	}
	return nil
}

// SaveProfiles writes every profile, sorted by name.
func (cm *ConfigManager) SaveProfiles() error {
	data, err := marshal(cm.profilesPath(), cm.ListProfiles())
	if err != nil {
		return fmt.Errorf("failed to encode profiles: %w", err)
	}
	return writeFile(cm.profilesPath(), data)
}

// AddProfile saves profile, replacing any profile with the same name.
func (cm *ConfigManager) AddProfile(profile *ShareProfile) error {
	name := strings.TrimSpace(profile.Name)
	if name == "" || strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("invalid profile name %q", profile.Name)
	}
	if profile.Config.Scheme != "" {
		if _, err := secretsharing.ParseScheme(string(profile.Config.Scheme)); err != nil {
			return fmt.Errorf("profile %s: %w", name, err)
		}
	}
	if profile.Config.Parties < 0 || profile.Config.Threshold < 0 {
		return fmt.Errorf("profile %s: party counts cannot be negative", name)
	}

	profile.Name = name
	cm.profiles[name] = profile
	return cm.SaveProfiles()
}

func (cm *ConfigManager) GetProfile(name string) (*ShareProfile, error) {
	if profile, ok := cm.profiles[name]; ok {
		return profile, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
}

// ListProfiles returns the profiles in name order.
func (cm *ConfigManager) ListProfiles() []*ShareProfile {
	list := make([]*ShareProfile, 0, len(cm.profiles))
	for _, p := range cm.profiles {
		list = append(list, p)
	}
	slices.SortFunc(list, func(a, b *ShareProfile) int { return strings.Compare(a.Name, b.Name) })
	return list
}

func (cm *ConfigManager) DeleteProfile(name string) error {
	if _, ok := cm.profiles[name]; !ok {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	delete(cm.profiles, name)
	return cm.SaveProfiles()
}

// StoragePath is storage.default_path with ~ expanded.
func (cm *ConfigManager) StoragePath() (string, error) {
	return ExpandHome(cm.config.Storage.DefaultPath)
}

// ApplyDefaults fills the zero fields of config. Additive sharing is always
// two of two, so only its zero counts are filled.
func (cm *ConfigManager) ApplyDefaults(config *secretsharing.SecretSharingConfig) {
	d := cm.config.Defaults

	if config.Scheme == "" {
		if scheme, err := secretsharing.ParseScheme(d.Scheme); err == nil {
			config.Scheme = scheme
		}
	}

	if config.Scheme == secretsharing.SchemeAdditive {
		if config.Parties == 0 {
			config.Parties = 2
		}
		if config.Threshold == 0 {
			config.Threshold = 2
		}
		return
	}

	if config.Parties == 0 {
		config.Parties = d.Parties
	}
	if config.Threshold == 0 {
		config.Threshold = d.Threshold
		if config.Threshold == 0 || config.Threshold > config.Parties {
			config.Threshold = DefaultThreshold(config.Parties)
		}
	}

	switch config.Scheme {
	case secretsharing.SchemeShamir, secretsharing.SchemeRobust:
		if config.Bits == 0 {
			config.Bits = d.Bits
		}
		if config.PadLength == 0 {
			config.PadLength = d.PadLength
		}
	}
	if config.Scheme == secretsharing.SchemeRobust && config.NumKeys == 0 {
		config.NumKeys = d.NumKeys
	}
}

// ValidatePassphrase enforces security.min_passphrase_length.
func (cm *ConfigManager) ValidatePassphrase(passphrase string) error {
	if len(passphrase) < cm.config.Security.MinPassphraseLength {
		return fmt.Errorf("passphrase must be at least %d characters",
			cm.config.Security.MinPassphraseLength)
	}
	return nil
}

// defaultPath resolves $SHARECRYPT_CONFIG, then $XDG_CONFIG_HOME, then
// ~/.config.
func defaultPath() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot locate home directory: %w", err)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "sharecrypt", "config.json"), nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) (string, error) {
	rest, ok := strings.CutPrefix(path, "~")
	if !ok || (rest != "" && rest[0] != '/') {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot locate home directory: %w", err)
	}
	return filepath.Join(home, rest), nil
}

// writeFile replaces path through a temporary file in the same directory.
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func unmarshal(path string, data []byte, v any) error {
	if isYAML(path) {
		return yaml.Unmarshal(data, v)
	}
	return json.Unmarshal(data, v)
}

func marshal(path string, v any) ([]byte, error) {
	if isYAML(path) {
		return yaml.Marshal(v)
	}
	return json.MarshalIndent(v, "", "  ")
}

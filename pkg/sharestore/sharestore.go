// Package sharestore provides on-disk storage and management of share sets.
//
// A store is a directory holding one subdirectory per share set:
//
//	<root>/<id>/set.json
//	<root>/<id>/party-<n>/<attachment>
//
// Each party directory holds exactly what that party is sent, one file per
// attachment, so it can be handed over as-is and read back with LoadParty.
package sharestore

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Davincible/sharecrypt/pkg/crypto/secretsharing"
	"github.com/Davincible/sharecrypt/pkg/secure"
)

const (
	setFile     = "set.json"
	partyPrefix = "party-"
)

var (
	ErrSetNotFound      = errors.New("sharestore: share set not found")
	ErrAmbiguousID      = errors.New("sharestore: id prefix matches more than one share set")
	ErrChecksumMismatch = errors.New("sharestore: checksum mismatch")
	ErrInsufficient     = errors.New("sharestore: insufficient shares")
	ErrInvalidName      = errors.New("sharestore: invalid attachment name")
)

var attachmentName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ShareSet describes a stored set of shares for one secret
type ShareSet struct {
	ID             string                   `json:"id"`
	Name           string                   `json:"name"`
	Description    string                   `json:"description"`
	Scheme         secretsharing.SchemeType `json:"scheme"`
	Created        time.Time                `json:"created"`
	Modified       time.Time                `json:"modified"`
	Parties        int                      `json:"parties"`
	Threshold      int                      `json:"threshold"`
	Bits           int                      `json:"bits,omitempty"`
	NumKeys        int                      `json:"num_keys,omitempty"`
	Tags           []string                 `json:"tags"`
	Metadata       map[string]string        `json:"metadata"`
	Shares         []ShareInfo              `json:"shares"`
	IsEncrypted    bool                     `json:"is_encrypted"`
	ChecksumSHA256 []byte                   `json:"checksum_sha256"`
}

// ShareInfo contains metadata for one party's share
type ShareInfo struct {
	Party        int         `json:"party"`
	Status       ShareStatus `json:"status"`
	Attachments  []string    `json:"attachments"`
	LastVerified *time.Time  `json:"last_verified,omitempty"`
	Notes        string      `json:"notes,omitempty"`
}

// ShareStatus represents the status of a share
type ShareStatus string

const (
	ShareStatusAvailable ShareStatus = "available"
	ShareStatusAccepted  ShareStatus = "accepted"
	ShareStatusRejected  ShareStatus = "rejected"
	ShareStatusMissing   ShareStatus = "missing"
)

// Usable reports whether a share with this status should be used for recovery
func (s ShareStatus) Usable() bool {
	return s == ShareStatusAvailable || s == ShareStatusAccepted
}

// ShareStore manages collections of share sets
type ShareStore struct {
	storePath string
	sealer    *Sealer
	logger    *slog.Logger

	mu        sync.RWMutex
	shareSets map[string]*ShareSet
}

// Option configures a ShareStore
type Option func(*ShareStore)

// WithSealer encrypts attachment files written by the store and decrypts
// sealed files on load.
func WithSealer(sealer *Sealer) Option {
	return func(ss *ShareStore) { ss.sealer = sealer }
}

// WithLogger sets the logger used for skipped or damaged share sets
func WithLogger(logger *slog.Logger) Option {
	return func(ss *ShareStore) { ss.logger = logger }
}

// NewShareStore opens or creates a share store
func NewShareStore(storePath string, opts ...Option) (*ShareStore, error) {
	store := &ShareStore{
		storePath: storePath,
		shareSets: make(map[string]*ShareSet),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(store)
	}

	if err := os.MkdirAll(storePath, 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	if err := store.loadShareSets(); err != nil {
		return nil, fmt.Errorf("failed to load share sets: %w", err)
	}

	return store, nil
}

// Path returns the store root
func (ss *ShareStore) Path() string {
	return ss.storePath
}

// PartyDir returns the directory holding a party's attachments
func (ss *ShareStore) PartyDir(id string, party int) string {
	return filepath.Join(ss.storePath, id, partyPrefix+strconv.Itoa(party))
}

// AddShareSet stores a new share set with the given shares. The set's ID,
// timestamps, counts and share list are filled in from the shares.
func (ss *ShareStore) AddShareSet(shareSet *ShareSet, shares []secretsharing.Share) error {
	if len(shares) == 0 {
		return fmt.Errorf("no shares to store")
	}
	if shareSet.ID == "" {
		shareSet.ID = uuid.NewString()
	} else if _, err := uuid.Parse(shareSet.ID); err != nil {
		return fmt.Errorf("invalid share set id %q: %w", shareSet.ID, err)
	}

	now := time.Now().UTC()
	if shareSet.Created.IsZero() {
		shareSet.Created = now
	}
	shareSet.Modified = now
	shareSet.Scheme = shares[0].Scheme
	shareSet.Parties = len(shares)
	shareSet.IsEncrypted = ss.sealer != nil
	shareSet.Shares = make([]ShareInfo, 0, len(shares))

	for _, share := range shares {
		if share.Scheme != shareSet.Scheme {
			return fmt.Errorf("share for party %d uses scheme %s, expected %s", share.Party, share.Scheme, shareSet.Scheme)
		}
		names, err := WriteParty(ss.PartyDir(shareSet.ID, share.Party), share, ss.sealer)
		if err != nil {
			return fmt.Errorf("failed to write party %d: %w", share.Party, err)
		}
		shareSet.Shares = append(shareSet.Shares, ShareInfo{
			Party:       share.Party,
			Status:      ShareStatusAvailable,
			Attachments: names,
		})
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.shareSets[shareSet.ID] = shareSet
	return ss.saveShareSet(shareSet)
}

// GetShareSet retrieves a share set by ID or unique ID prefix
func (ss *ShareStore) GetShareSet(id string) (*ShareSet, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return ss.resolve(id)
}

func (ss *ShareStore) resolve(id string) (*ShareSet, error) {
	if shareSet, ok := ss.shareSets[id]; ok {
		return shareSet, nil
	}
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrSetNotFound)
	}

	var match *ShareSet
	for key, shareSet := range ss.shareSets {
		if strings.HasPrefix(key, id) {
			if match != nil {
				return nil, fmt.Errorf("%w: %s", ErrAmbiguousID, id)
			}
			match = shareSet
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s", ErrSetNotFound, id)
	}
	return match, nil
}

// ListShareSets returns all share sets, optionally filtered by tags
func (ss *ShareStore) ListShareSets(tags []string) []*ShareSet {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	var result []*ShareSet
	for _, shareSet := range ss.shareSets {
		if len(tags) == 0 || hasAllTags(shareSet, tags) {
			result = append(result, shareSet)
		}
	}

	// Newest first
	sort.Slice(result, func(i, j int) bool {
		return result[i].Created.After(result[j].Created)
	})

	return result
}

// SearchShareSets searches share sets by name, description, tags or metadata
func (ss *ShareStore) SearchShareSets(query string) []*ShareSet {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	query = strings.ToLower(query)
	var results []*ShareSet
	for _, shareSet := range ss.shareSets {
		if matchesQuery(shareSet, query) {
			results = append(results, shareSet)
		}
	}

	// Exact name matches first, then newest
	sort.Slice(results, func(i, j int) bool {
		iExact := strings.ToLower(results[i].Name) == query
		jExact := strings.ToLower(results[j].Name) == query
		if iExact != jExact {
			return iExact
		}
		return results[i].Created.After(results[j].Created)
	})

	return results
}

// UpdateShareStatus updates the status of one party's share
func (ss *ShareStore) UpdateShareStatus(id string, party int, status ShareStatus) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	shareSet, err := ss.resolve(id)
	if err != nil {
		return err
	}

	for i := range shareSet.Shares {
		if shareSet.Shares[i].Party == party {
			shareSet.Shares[i].Status = status
			shareSet.Modified = time.Now().UTC()
			return ss.saveShareSet(shareSet)
		}
	}

	return fmt.Errorf("party %d not found in share set %s", party, shareSet.ID)
}

// RecordVerification stores the accept vector of a robust reconstruction.
// accepted[i] applies to parties[i].
func (ss *ShareStore) RecordVerification(id string, parties []int, accepted []bool) error {
	if len(parties) != len(accepted) {
		return fmt.Errorf("got %d parties and %d verification results", len(parties), len(accepted))
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()

	shareSet, err := ss.resolve(id)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for i, party := range parties {
		for j := range shareSet.Shares {
			if shareSet.Shares[j].Party != party {
				continue
			}
			shareSet.Shares[j].Status = ShareStatusRejected
			if accepted[i] {
				shareSet.Shares[j].Status = ShareStatusAccepted
			}
			shareSet.Shares[j].LastVerified = &now
		}
	}
	shareSet.Modified = now
	return ss.saveShareSet(shareSet)
}

// LoadShares reads the shares of the given parties, or of every usable
// party when none are named. Parties whose directory has gone are marked
// missing and skipped.
func (ss *ShareStore) LoadShares(id string, parties ...int) ([]secretsharing.Share, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	shareSet, err := ss.resolve(id)
	if err != nil {
		return nil, err
	}

	wanted := make(map[int]bool, len(parties))
	for _, p := range parties {
		wanted[p] = true
	}

	var shares []secretsharing.Share
	changed := false
	for i := range shareSet.Shares {
		info := &shareSet.Shares[i]
		if len(parties) > 0 && !wanted[info.Party] {
			continue
		}
		if len(parties) == 0 && !info.Status.Usable() {
			continue
		}

		share, err := LoadParty(ss.PartyDir(shareSet.ID, info.Party), shareSet.Scheme, ss.sealer)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				ss.logger.Warn("party directory missing", "set", shareSet.ID, "party", info.Party)
				info.Status = ShareStatusMissing
				changed = true
				continue
			}
			return nil, fmt.Errorf("party %d: %w", info.Party, err)
		}
		shares = append(shares, share)
	}

	if changed {
		shareSet.Modified = time.Now().UTC()
		if err := ss.saveShareSet(shareSet); err != nil {
			return nil, err
		}
	}
	if len(shares) == 0 {
		return nil, fmt.Errorf("%w: no readable shares in set %s", ErrInsufficient, shareSet.ID)
	}
	return shares, nil
}

// GetRecoveryShares returns the usable shares of a set, failing when fewer
// than the threshold remain
func (ss *ShareStore) GetRecoveryShares(id string) ([]secretsharing.Share, error) {
	shares, err := ss.LoadShares(id)
	if err != nil {
		return nil, err
	}
	shareSet, err := ss.GetShareSet(id)
	if err != nil {
		return nil, err
	}
	if len(shares) < shareSet.Threshold {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrInsufficient, shareSet.Threshold, len(shares))
	}
	return shares, nil
}

// DeleteShareSet removes a share set and all its party directories
func (ss *ShareStore) DeleteShareSet(id string) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	shareSet, err := ss.resolve(id)
	if err != nil {
		return err
	}

	if err := os.RemoveAll(filepath.Join(ss.storePath, shareSet.ID)); err != nil {
		return fmt.Errorf("failed to delete share set: %w", err)
	}
	delete(ss.shareSets, shareSet.ID)
	return nil
}

// VerificationReport contains the results of share verification
type VerificationReport struct {
	ShareSetID    string                    `json:"share_set_id"`
	Timestamp     time.Time                 `json:"timestamp"`
	TotalShares   int                       `json:"total_shares"`
	ValidShares   int                       `json:"valid_shares"`
	IsRecoverable bool                      `json:"is_recoverable"`
	Results       []ShareVerificationResult `json:"results"`
}

// ShareVerificationResult contains verification results for a single share
type ShareVerificationResult struct {
	Party   int         `json:"party"`
	Status  ShareStatus `json:"status"`
	IsValid bool        `json:"is_valid"`
	Error   string      `json:"error,omitempty"`
}

// VerifyShares checks every party directory of a set against its scheme
func (ss *ShareStore) VerifyShares(id string) (*VerificationReport, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	shareSet, err := ss.resolve(id)
	if err != nil {
		return nil, err
	}

	sharer, err := secretsharing.DefaultRegistry.Get(shareSet.Scheme)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	report := &VerificationReport{
		ShareSetID:  shareSet.ID,
		Timestamp:   now,
		TotalShares: len(shareSet.Shares),
		Results:     make([]ShareVerificationResult, 0, len(shareSet.Shares)),
	}

	for i := range shareSet.Shares {
		info := &shareSet.Shares[i]
		result := ShareVerificationResult{Party: info.Party}

		share, err := LoadParty(ss.PartyDir(shareSet.ID, info.Party), shareSet.Scheme, ss.sealer)
		switch {
		case errors.Is(err, os.ErrNotExist):
			result.Status = ShareStatusMissing
			result.Error = "party directory not found"
		case err != nil:
			result.Status = ShareStatusRejected
			result.Error = err.Error()
		default:
			if err := sharer.Verify(share); err != nil {
				result.Status = ShareStatusRejected
				result.Error = err.Error()
			} else {
				result.Status = ShareStatusAvailable
				result.IsValid = true
				report.ValidShares++
			}
		}

		info.Status = result.Status
		info.LastVerified = &now
		report.Results = append(report.Results, result)
	}

	report.IsRecoverable = report.ValidShares >= shareSet.Threshold

	shareSet.Modified = now
	if err := ss.saveShareSet(shareSet); err != nil {
		return nil, err
	}
	return report, nil
}

// LoadParty reads a party directory as written by the store or received from
// another party. The party number comes from a "party-<n>" directory name and
// is left zero otherwise; robust shares carry it in their attachment names.
func LoadParty(dir string, scheme secretsharing.SchemeType, sealer *Sealer) (secretsharing.Share, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return secretsharing.Share{}, err
	}

	share := secretsharing.Share{Scheme: scheme}
	if n, err := strconv.Atoi(strings.TrimPrefix(filepath.Base(dir), partyPrefix)); err == nil && n > 0 {
		share.Party = n
	}

	for _, entry := range entries {
		if entry.IsDir() || !attachmentName.MatchString(entry.Name()) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return secretsharing.Share{}, err
		}
		if IsSealed(data) {
			if sealer == nil {
				return secretsharing.Share{}, fmt.Errorf("%s: %w", entry.Name(), ErrPassphraseRequired)
			}
			opened, err := sealer.Open(data)
			if err != nil {
				return secretsharing.Share{}, fmt.Errorf("%s: %w", entry.Name(), err)
			}
			data = opened
		}
		share.Attachments = append(share.Attachments, secretsharing.Attachment{Name: entry.Name(), Data: data})
	}

	if _, ok := share.Attachment(secretsharing.ShareAttachment); !ok {
		return secretsharing.Share{}, fmt.Errorf("%w: %s has no %q file", secretsharing.ErrInvalidShare, dir, secretsharing.ShareAttachment)
	}
	sortAttachments(share.Attachments)
	return share, nil
}

// WriteParty writes a share's attachments into dir, sealing them when a
// sealer is given. It returns the attachment names in order.
func WriteParty(dir string, share secretsharing.Share, sealer *Sealer) ([]string, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create party directory: %w", err)
	}

	names := make([]string, 0, len(share.Attachments))
	for _, a := range share.Attachments {
		if !attachmentName.MatchString(a.Name) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidName, a.Name)
		}
		data := a.Data
		if sealer != nil {
			sealed, err := sealer.Seal(data)
			if err != nil {
				return nil, err
			}
			data = sealed
		}
		if err := os.WriteFile(filepath.Join(dir, a.Name), data, 0600); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", a.Name, err)
		}
		names = append(names, a.Name)
	}
	return names, nil
}

// sortAttachments puts the share first and the rest in name order.
func sortAttachments(attachments []secretsharing.Attachment) {
	sort.SliceStable(attachments, func(i, j int) bool {
		ai := attachments[i].Name == secretsharing.ShareAttachment
		aj := attachments[j].Name == secretsharing.ShareAttachment
		if ai != aj {
			return ai
		}
		return attachments[i].Name < attachments[j].Name
	})
}

func (ss *ShareStore) loadShareSets() error {
	entries, err := os.ReadDir(ss.storePath)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(ss.storePath, entry.Name(), setFile)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := ss.loadShareSetFromFile(path); err != nil {
			ss.logger.Warn("skipping share set", "path", path, "error", err)
		}
	}

	return nil
}

func (ss *ShareStore) loadShareSetFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	var shareSet ShareSet
	if err := json.Unmarshal(data, &shareSet); err != nil {
		return err
	}

	if err := verifyChecksum(&shareSet); err != nil {
		return err
	}

	ss.shareSets[shareSet.ID] = &shareSet
	return nil
}

func (ss *ShareStore) saveShareSet(shareSet *ShareSet) error {
	if err := calculateChecksum(shareSet); err != nil {
		return fmt.Errorf("failed to calculate checksum: %w", err)
	}

	data, err := json.MarshalIndent(shareSet, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Join(ss.storePath, shareSet.ID)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, setFile), data, 0600)
}

func calculateChecksum(shareSet *ShareSet) error {
	temp := *shareSet
	temp.ChecksumSHA256 = nil

	data, err := json.Marshal(temp)
	if err != nil {
		return err
	}

	hash := sha256.Sum256(data)
	shareSet.ChecksumSHA256 = hash[:]
	return nil
}

func verifyChecksum(shareSet *ShareSet) error {
	if len(shareSet.ChecksumSHA256) == 0 {
		return fmt.Errorf("%w: no checksum", ErrChecksumMismatch)
	}

	stored := shareSet.ChecksumSHA256
	temp := *shareSet
	if err := calculateChecksum(&temp); err != nil {
		return err
	}

	if !secure.ConstantTimeCompare(stored, temp.ChecksumSHA256) {
		return ErrChecksumMismatch
	}
	return nil
}

func hasAllTags(shareSet *ShareSet, tags []string) bool {
	shareSetTags := make(map[string]bool)
	for _, tag := range shareSet.Tags {
		shareSetTags[strings.ToLower(tag)] = true
	}

	for _, tag := range tags {
		if !shareSetTags[strings.ToLower(tag)] {
			return false
		}
	}
	return true
}

func matchesQuery(shareSet *ShareSet, query string) bool {
	if strings.Contains(strings.ToLower(shareSet.Name), query) ||
		strings.Contains(strings.ToLower(shareSet.Description), query) {
		return true
	}

	for _, tag := range shareSet.Tags {
		if strings.Contains(strings.ToLower(tag), query) {
			return true
		}
	}

	for key, value := range shareSet.Metadata {
		if strings.Contains(strings.ToLower(key), query) ||
			strings.Contains(strings.ToLower(value), query) {
			return true
		}
	}

	return false
}

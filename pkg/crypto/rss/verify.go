package rss

import (
	"fmt"
	"log/slog"

	"github.com/Davincible/sharecrypt/pkg/crypto/shamir"
	"github.com/Davincible/sharecrypt/pkg/crypto/uhash"
)

type VerifyOptions struct {
	// Threshold, when positive, fails reconstruction with ErrBelowThreshold if
	// fewer shares are accepted. Zero combines whatever was accepted.
	Threshold int
	Logger    *slog.Logger
}

type Result struct {
	// Accepted[i] reports whether party i+1's share was accepted.
	Accepted []bool
	// Votes[i] is the number of other parties whose tags matched.
	Votes  []int
	Secret []byte
}

// AcceptedCount returns the number of accepted shares.
func (r *Result) AcceptedCount() int {
	n := 0
	for _, ok := range r.Accepted {
		if ok {
			n++
		}
	}
	return n
}

// Rejected returns the 1-based party numbers whose shares were rejected.
func (r *Result) Rejected() []int {
	var parties []int
	for i, ok := range r.Accepted {
		if !ok {
			parties = append(parties, i+1)
		}
	}
	return parties
}

// Accepts reports whether a share corroborated by votes of the other parties
// is accepted among n parties: the share is rejected only when votes falls
// below n/2 - 1.
func Accepts(votes, n int) bool {
	return 2*votes+2 >= n
}

// VerifyAndReconstruct checks every share against every other party's keys,
// drops shares without enough corroboration and combines the rest. The
// returned Result is non-nil whenever verification ran, even if
// reconstruction failed.
func VerifyAndReconstruct(set *Set, opts VerifyOptions) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	n := set.Parties()
	result := &Result{
		Accepted: make([]bool, n),
		Votes:    make([]int, n),
	}

	var accepted []string
	for owner := 1; owner <= n; owner++ {
		for verifier := 1; verifier <= n; verifier++ {
			if owner == verifier {
				continue
			}
			if set.vote(Pair{Owner: owner, Verifier: verifier}, logger) {
				result.Votes[owner-1]++
			}
		}

		if Accepts(result.Votes[owner-1], n) {
			result.Accepted[owner-1] = true
			accepted = append(accepted, set.Shares[owner-1])
		} else {
			logger.Warn("share rejected", "party", owner, "votes", result.Votes[owner-1], "parties", n)
		}
	}

	if opts.Threshold > 0 && len(accepted) < opts.Threshold {
		return result, fmt.Errorf("%w: %d of %d accepted, threshold %d",
			ErrBelowThreshold, len(accepted), n, opts.Threshold)
	}

	shares, err := shamir.ParseShares(accepted)
	if err != nil {
		return result, fmt.Errorf("failed to parse accepted shares: %w", err)
	}
	secret, err := shamir.Combine(shares)
	if err != nil {
		return result, fmt.Errorf("failed to combine accepted shares: %w", err)
	}

	result.Secret = secret
	return result, nil
}

// vote recomputes every tag of pair and reports whether all of them match,
// stopping at the first mismatch.
func (s *Set) vote(pair Pair, logger *slog.Logger) bool {
	keys, tags := s.Keys[pair], s.Tags[pair]
	if len(keys) < s.NumKeys || len(tags) < s.NumKeys {
		logger.Debug("missing keys or tags", "owner", pair.Owner, "verifier", pair.Verifier)
		return false
	}

	share := s.Shares[pair.Owner-1]
	for m := 0; m < s.NumKeys; m++ {
		tag, err := uhash.PolyQ32(keys[m], share)
		if err != nil {
			logger.Debug("share cannot be hashed", "owner", pair.Owner, "error", err)
			return false
		}
		if tag != tags[m] {
			logger.Debug("tags do not match", "owner", pair.Owner, "verifier", pair.Verifier, "key_index", m)
			return false
		}
	}
	return true
}

package shamir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Davincible/sharecrypt/pkg/crypto/gf"
)

// Share is one party's share in the textual secrets.js layout:
// a base36 bit-width digit, a fixed-width hex id and hex data.
type Share struct {
	Bits int
	ID   int
	Data string
}

// IDLength is the number of hex characters used for share ids in GF(2^bits).
func IDLength(bits int) int {
	return (bits + 3) / 4
}

// MaxShares is the largest share id, and so share count, for the given width.
func MaxShares(bits int) int {
	return 1<<bits - 1
}

func (s Share) String() string {
	return strings.ToUpper(strconv.FormatInt(int64(s.Bits), 36)) +
		fmt.Sprintf("%0*x", IDLength(s.Bits), s.ID) +
		s.Data
}

// Validate checks the share's fields without parsing.
func (s Share) Validate() error {
	if s.Bits < gf.MinBits || s.Bits > gf.MaxBits {
		return fmt.Errorf("%w: %w: got %d", ErrMalformedShare, gf.ErrInvalidBits, s.Bits)
	}
	if s.ID < 1 || s.ID > MaxShares(s.Bits) {
		return fmt.Errorf("%w: share id must be an integer between 1 and %d, got %d",
			ErrMalformedShare, MaxShares(s.Bits), s.ID)
	}
	if s.Data == "" || !isHex(s.Data) {
		return fmt.Errorf("%w: share data must be non-empty hex", ErrMalformedShare)
	}
	return nil
}

// ParseShare decodes a share string. The grammar is
//
//	share = bits id data
//	bits  = one base36 digit in [3, k]
//	id    = IDLength(bits) hex digits, value in [1, 2^bits-1]
//	data  = one or more hex digits
func ParseShare(s string) (Share, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Share{}, fmt.Errorf("%w: empty share", ErrMalformedShare)
	}

	bits, err := strconv.ParseInt(s[:1], 36, 0)
	if err != nil || bits < gf.MinBits || bits > gf.MaxBits {
		return Share{}, fmt.Errorf("%w: %w: bit width digit %q", ErrMalformedShare, gf.ErrInvalidBits, s[:1])
	}

	idLen := IDLength(int(bits))
	if len(s) < 1+idLen+1 {
		return Share{}, fmt.Errorf("%w: share too short (%d characters)", ErrMalformedShare, len(s))
	}

	idHex, data := s[1:1+idLen], s[1+idLen:]
	if !isHex(idHex) || !isHex(data) {
		return Share{}, fmt.Errorf("%w: share id and data must be hex", ErrMalformedShare)
	}

	id, err := strconv.ParseInt(idHex, 16, 0)
	if err != nil {
		return Share{}, fmt.Errorf("%w: share id: %w", ErrMalformedShare, err)
	}

	share := Share{Bits: int(bits), ID: int(id), Data: data}
	if err := share.Validate(); err != nil {
		return Share{}, err
	}
	return share, nil
}

// ParseShares parses each string, reporting the position of the first failure.
func ParseShares(raw []string) ([]Share, error) {
	shares := make([]Share, 0, len(raw))
	for i, s := range raw {
		share, err := ParseShare(s)
		if err != nil {
			return nil, fmt.Errorf("share %d: %w", i+1, err)
		}
		shares = append(shares, share)
	}
	return shares, nil
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

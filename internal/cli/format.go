package cli

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Davincible/sharecrypt/pkg/crypto/mnemonic"
	"github.com/Davincible/sharecrypt/pkg/crypto/secretsharing"
	"github.com/Davincible/sharecrypt/pkg/crypto/shamir"
)

// AttachmentOutput is one named piece of a party's share as printed.
type AttachmentOutput struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Mnemonic string `json:"mnemonic,omitempty"`
}

// PartyOutput is everything printed for one party.
type PartyOutput struct {
	Party       int                `json:"party"`
	Directory   string             `json:"directory,omitempty"`
	Attachments []AttachmentOutput `json:"attachments"`
}

// textScheme reports whether a scheme's attachments are printable text.
// Binary attachments are shown as hex.
func textScheme(scheme secretsharing.SchemeType) bool {
	switch scheme {
	case secretsharing.SchemeShamir, secretsharing.SchemeRobust, secretsharing.SchemeSSSA:
		return true
	}
	return false
}

func renderShare(share secretsharing.Share, words bool) PartyOutput {
	out := PartyOutput{Party: share.Party}
	for _, a := range share.Attachments {
		ao := AttachmentOutput{Name: a.Name}
		if textScheme(share.Scheme) {
			ao.Value = strings.TrimSpace(string(a.Data))
		} else {
			ao.Value = hex.EncodeToString(a.Data)
			if words && mnemonic.Supports(len(a.Data)) {
				ao.Mnemonic, _ = mnemonic.Encode(a.Data)
			}
		}
		out.Attachments = append(out.Attachments, ao)
	}
	return out
}

// parseShareArg turns one command line share into a Share. Shamir strings
// carry their own party number; the others are numbered by position.
func parseShareArg(scheme secretsharing.SchemeType, arg string, position int) (secretsharing.Share, error) {
	arg = strings.TrimSpace(arg)
	share := secretsharing.Share{Scheme: scheme, Party: position}

	var data []byte
	switch scheme {
	case secretsharing.SchemeShamir:
		parsed, err := shamir.ParseShare(arg)
		if err != nil {
			return share, err
		}
		share.Party = parsed.ID
		data = []byte(parsed.String())
	case secretsharing.SchemeSSSA:
		data = []byte(arg)
	case secretsharing.SchemeVault, secretsharing.SchemeAdditive:
		var err error
		if mnemonic.IsMnemonic(arg) {
			data, err = mnemonic.Decode(arg)
		} else {
			data, err = hex.DecodeString(arg)
		}
		if err != nil {
			return share, fmt.Errorf("share must be hex or a BIP-39 phrase: %w", err)
		}
	case secretsharing.SchemeRobust:
		return share, fmt.Errorf("robust shares are read from party directories, use --dir")
	default:
		return share, fmt.Errorf("%w: %s", secretsharing.ErrUnsupportedScheme, scheme)
	}

	share.Attachments = []secretsharing.Attachment{{Name: secretsharing.ShareAttachment, Data: data}}
	return share, nil
}

// detectDirScheme guesses the scheme of a party directory: key or tag files
// mean robust, a parsable Shamir string means shamir.
func detectDirScheme(dir string) (secretsharing.SchemeType, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "k-") || strings.HasPrefix(e.Name(), "tag-") {
			return secretsharing.SchemeRobust, true
		}
	}
	data, err := os.ReadFile(filepath.Join(dir, secretsharing.ShareAttachment))
	if err == nil {
		if _, err := shamir.ParseShare(string(data)); err == nil {
			return secretsharing.SchemeShamir, true
		}
	}
	return "", false
}

// printable reports whether a secret can be shown as text.
func printable(b []byte) bool {
	if len(b) == 0 || !utf8.Valid(b) {
		return false
	}
	for _, r := range string(b) {
		if !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

package cli

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Davincible/sharecrypt/internal/validation"
	"github.com/Davincible/sharecrypt/pkg/config"
	"github.com/Davincible/sharecrypt/pkg/crypto/mnemonic"
	"github.com/Davincible/sharecrypt/pkg/crypto/secretsharing"
	"github.com/Davincible/sharecrypt/pkg/metrics"
	"github.com/Davincible/sharecrypt/pkg/secure"
	"github.com/Davincible/sharecrypt/pkg/sharestore"
)

type CombineResult struct {
	Scheme    secretsharing.SchemeType `json:"scheme"`
	Secret    string                   `json:"secret,omitempty"`
	SecretHex string                   `json:"secret_hex"`
	Mnemonic  string                   `json:"mnemonic,omitempty"`
	// Fingerprint is the wallet fingerprint of Mnemonic.
	Fingerprint string `json:"fingerprint,omitempty"`
	Accepted    []bool `json:"accepted,omitempty"`
	Rejected    []int  `json:"rejected,omitempty"`
}

func NewCombineCommand() *cobra.Command {
	var (
		scheme         string
		inputFile      string
		dirs           []string
		setID          string
		parties        []int
		threshold      int
		hexOutput      bool
		mnemonicOutput bool
		outputFile     string
	)

	cmd := &cobra.Command{
		Use:   "combine [SHARE...]",
		Short: "Reconstruct a secret from shares",
		Long: `Reconstruct a secret from shares given on the command line, in a file
(one per line), in party directories or in the share store.

Robust shares are verified before reconstruction: every party checks every
other party's share against its keys, and shares that fail the vote are
reported and left out. With --threshold, reconstruction fails when fewer
than that many shares survive.`,
		Example: `  # Shamir share strings
  sharecrypt combine 801a3f... 8027c1... 803e90...

  # Robust party directories received from each party
  sharecrypt combine --dir ./alice --dir ./bob --dir ./carol

  # A stored share set, printing the secret as hex
  sharecrypt combine --set 3f2a9c1e --hex`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cm, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			in := newPrompter(cmd)

			sources := 0
			for _, used := range []bool{len(args) > 0 || inputFile != "", len(dirs) > 0, setID != ""} {
				if used {
					sources++
				}
			}
			if sources != 1 {
				return fmt.Errorf("give shares as arguments or --file, or use --dir, or use --set")
			}

			var (
				shares []secretsharing.Share
				store  *sharestore.ShareStore
			)
			switch {
			case setID != "":
				store, err = getShareStore(cmd, cm, in, setID)
				if err != nil {
					return err
				}
				var shareSet *sharestore.ShareSet
				shares, shareSet, err = loadStoredShares(store, setID, parties)
				if err != nil {
					return err
				}
				setID = shareSet.ID
				if threshold == 0 && cm.GetConfig().Security.EnforceThreshold {
					threshold = shareSet.Threshold
				}
			case len(dirs) > 0:
				if shares, err = loadPartyDirs(cm, in, scheme, dirs); err != nil {
					return err
				}
			default:
				if shares, err = parseShareInputs(cm, scheme, inputFile, args); err != nil {
					return err
				}
			}

			if threshold == 0 && cm.GetConfig().Security.EnforceThreshold && shares[0].Scheme == secretsharing.SchemeRobust {
				threshold = config.DefaultThreshold(len(shares))
			}

			start := time.Now()
			rec, err := secretsharing.Combine(shares, secretsharing.CombineOptions{
				Threshold: threshold,
				Logger:    slog.Default(),
			})
			schemeName := string(shares[0].Scheme)
			metrics.RecordOperation(metrics.OpCombine, schemeName, metrics.Status(err), time.Since(start))

			result := CombineResult{Scheme: shares[0].Scheme}
			if rec != nil && rec.Accepted != nil {
				metrics.RecordVerification(schemeName, rec.Accepted)
				result.Accepted = rec.Accepted
				for i, ok := range rec.Accepted {
					if !ok {
						result.Rejected = append(result.Rejected, i+1)
					}
				}
				if store != nil {
					if rerr := store.RecordVerification(setID, partyNumbers(len(rec.Accepted)), rec.Accepted); rerr != nil {
						slog.Warn("Failed to record verification", "set", setID, "error", rerr)
					}
				}
			}
			if err != nil {
				if len(result.Rejected) > 0 {
					return fmt.Errorf("failed to combine shares (rejected parties %v): %w", result.Rejected, err)
				}
				return fmt.Errorf("failed to combine shares: %w", err)
			}
			defer secure.Zero(rec.Secret)
			metrics.RecordSecretSize(metrics.OpCombine, len(rec.Secret))

			if outputFile != "" {
				if err := os.WriteFile(outputFile, rec.Secret, 0600); err != nil {
					return fmt.Errorf("failed to write secret: %w", err)
				}
			}

			result.SecretHex = hex.EncodeToString(rec.Secret)
			if !hexOutput && printable(rec.Secret) {
				result.Secret = string(rec.Secret)
			}
			if mnemonicOutput {
				if result.Mnemonic, err = mnemonic.Encode(rec.Secret); err != nil {
					return fmt.Errorf("secret cannot be shown as a BIP-39 phrase: %w", err)
				}
				if result.Fingerprint, err = mnemonic.Fingerprint(result.Mnemonic, ""); err != nil {
					return err
				}
			}

			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), result)
			}
			return outputCombineText(cmd.OutOrStdout(), result, outputFile)
		},
	}

	cmd.Flags().StringVarP(&scheme, "scheme", "s", "", "Scheme of the shares (default from config, or detected from directories)")
	cmd.Flags().StringVarP(&inputFile, "file", "f", "", "Read shares from a file, one per line")
	cmd.Flags().StringArrayVarP(&dirs, "dir", "d", nil, "Party directory holding a share and its keys and tags (repeatable)")
	cmd.Flags().StringVar(&setID, "set", "", "Combine a stored share set (ID or unique prefix)")
	cmd.Flags().IntSliceVar(&parties, "parties", nil, "Only use these parties of a stored set")
	cmd.Flags().IntVarP(&threshold, "threshold", "t", 0, "Fail when fewer verified shares remain (robust)")
	cmd.Flags().BoolVar(&hexOutput, "hex", false, "Print the secret as hex only")
	cmd.Flags().BoolVar(&mnemonicOutput, "mnemonic", false, "Also print the secret as a BIP-39 phrase")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write the raw secret to a file")

	return cmd
}

func loadStoredShares(store *sharestore.ShareStore, id string, parties []int) ([]secretsharing.Share, *sharestore.ShareSet, error) {
	shareSet, err := store.GetShareSet(id)
	if err != nil {
		return nil, nil, err
	}

	// Robust verification needs every party's keys, whatever their status.
	if shareSet.Scheme == secretsharing.SchemeRobust && len(parties) == 0 {
		parties = partyNumbers(shareSet.Parties)
	}

	start := time.Now()
	var shares []secretsharing.Share
	if len(parties) == 0 {
		shares, err = store.GetRecoveryShares(shareSet.ID)
	} else {
		shares, err = store.LoadShares(shareSet.ID, parties...)
	}
	metrics.RecordOperation(metrics.OpLoad, string(shareSet.Scheme), metrics.Status(err), time.Since(start))
	if err != nil {
		return nil, nil, err
	}
	return shares, shareSet, nil
}

func loadPartyDirs(cm *config.ConfigManager, in *prompter, scheme string, dirs []string) ([]secretsharing.Share, error) {
	schemeType, err := resolveScheme(cm, scheme, dirs[0])
	if err != nil {
		return nil, err
	}

	var sealer *sharestore.Sealer
	shares := make([]secretsharing.Share, 0, len(dirs))
	for i, dir := range dirs {
		if err := validation.ValidatePartyDir(dir); err != nil {
			return nil, err
		}
		share, err := sharestore.LoadParty(dir, schemeType, sealer)
		if errors.Is(err, sharestore.ErrPassphraseRequired) && sealer == nil {
			if sealer, err = newSealer(in, "Enter passphrase for sealed shares: "); err != nil {
				return nil, err
			}
			defer sealer.Destroy()
			share, err = sharestore.LoadParty(dir, schemeType, sealer)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", dir, err)
		}
		if share.Party == 0 && schemeType != secretsharing.SchemeRobust {
			share.Party = i + 1
		}
		shares = append(shares, share)
	}
	return shares, nil
}

func parseShareInputs(cm *config.ConfigManager, scheme, inputFile string, args []string) ([]secretsharing.Share, error) {
	lines := args
	if inputFile != "" {
		data, err := os.ReadFile(inputFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read shares: %w", err)
		}
		lines = append(lines, validation.SplitLines(string(data))...)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("no shares given")
	}

	schemeType, err := resolveScheme(cm, scheme, "")
	if err != nil {
		return nil, err
	}

	shares := make([]secretsharing.Share, len(lines))
	for i, line := range lines {
		if shares[i], err = parseShareArg(schemeType, line, i+1); err != nil {
			return nil, fmt.Errorf("share %d: %w", i+1, err)
		}
	}
	return shares, nil
}

// resolveScheme picks the flag value, then what the directory looks like,
// then the configured default.
func resolveScheme(cm *config.ConfigManager, flag, dir string) (secretsharing.SchemeType, error) {
	if flag != "" {
		return secretsharing.ParseScheme(flag)
	}
	if dir != "" {
		if detected, ok := detectDirScheme(dir); ok {
			return detected, nil
		}
	}
	return secretsharing.ParseScheme(cm.GetConfig().Defaults.Scheme)
}

func partyNumbers(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

func outputCombineText(w io.Writer, result CombineResult, outputFile string) error {
	green := color.New(color.FgGreen, color.Bold)
	red := color.New(color.FgRed, color.Bold)

	if len(result.Accepted) > 0 {
		accepted := len(result.Accepted) - len(result.Rejected)
		fmt.Fprintf(w, "Verified %d of %d shares\n", accepted, len(result.Accepted))
		if len(result.Rejected) > 0 {
			red.Fprintf(w, "Rejected parties: %v\n", result.Rejected)
		}
	}

	green.Fprintln(w, "Secret reconstructed")
	switch {
	case outputFile != "":
		fmt.Fprintf(w, "Written to %s\n", outputFile)
	case result.Secret != "":
		fmt.Fprintln(w, result.Secret)
	default:
		fmt.Fprintln(w, result.SecretHex)
	}
	if result.Mnemonic != "" {
		fmt.Fprintln(w, result.Mnemonic)
		fmt.Fprintf(w, "Wallet fingerprint %s\n", result.Fingerprint)
	}
	return nil
}

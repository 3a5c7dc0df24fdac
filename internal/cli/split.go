package cli

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
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

type SplitResult struct {
	Scheme    secretsharing.SchemeType `json:"scheme"`
	Parties   int                      `json:"parties"`
	Threshold int                      `json:"threshold"`
	SetID     string                   `json:"set_id,omitempty"`
	// Fingerprint is the wallet fingerprint of a shared BIP-39 phrase.
	Fingerprint string        `json:"fingerprint,omitempty"`
	Shares      []PartyOutput `json:"shares"`
}

func NewSplitCommand() *cobra.Command {
	var (
		scheme        string
		parties       int
		threshold     int
		bits          int
		padLength     int
		numKeys       int
		useStdin      bool
		inputFile     string
		hexInput      bool
		mnemonicInput bool
		outDir        string
		store         bool
		name          string
		description   string
		tags          []string
		encrypt       bool
		words         bool
		printShares   bool
		profile       string
	)

	cmd := &cobra.Command{
		Use:   "split",
		Short: "Split a secret into shares",
		Long: `Split a secret into one share per party. Any threshold number of shares
reconstruct the secret; fewer reveal nothing about it.

With --scheme robust every party also receives a key and a tag for each
other party. At reconstruction each share is checked by the others and
shares failing the vote are left out.

Unset parameters come from the defaults section of the config file
(shamir, 4 parties, threshold of a majority).`,
		Example: `  # Split a secret typed at the prompt into 5 shares, 3 needed
  sharecrypt split -n 5 -t 3

  # Robust shares written to one directory per party
  echo -n "launch codes" | sharecrypt split --stdin --scheme robust -n 5 --out ./parties

  # Split a BIP-39 phrase with Vault compatible shares printed as words
  sharecrypt split --scheme vault --mnemonic --words

  # Keep the shares in the local store, sealed with a passphrase
  sharecrypt split --stdin --store --encrypt --name "backup key"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cm, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			in := newPrompter(cmd)

			ssConfig := secretsharing.SecretSharingConfig{
				Parties:   parties,
				Threshold: threshold,
				Bits:      bits,
				PadLength: padLength,
				NumKeys:   numKeys,
			}
			if scheme != "" {
				if ssConfig.Scheme, err = secretsharing.ParseScheme(scheme); err != nil {
					return err
				}
			}
			if profile != "" {
				p, err := cm.GetProfile(profile)
				if err != nil {
					return err
				}
				applyProfile(&ssConfig, p.Config)
			}
			cm.ApplyDefaults(&ssConfig)

			if err := validation.ValidateSplitParams(ssConfig.Scheme, ssConfig.Parties, ssConfig.Threshold, ssConfig.Bits); err != nil {
				return err
			}

			raw, err := readSecret(in, inputFile, useStdin)
			if err != nil {
				return fmt.Errorf("failed to read secret: %w", err)
			}
			var fingerprint string
			if mnemonicInput {
				fingerprint, _ = mnemonic.Fingerprint(string(raw), "")
			}
			secret, err := decodeSecret(raw, hexInput, mnemonicInput)
			secure.Zero(raw)
			if err != nil {
				return err
			}
			guarded := secure.Guard(secret)
			defer guarded.Destroy()

			var shares []secretsharing.Share
			start := time.Now()
			err = guarded.Use(func(b []byte) error {
				var err error
				shares, err = secretsharing.Split(b, ssConfig)
				return err
			})
			metrics.RecordOperation(metrics.OpSplit, string(ssConfig.Scheme), metrics.Status(err), time.Since(start))
			if err != nil {
				return fmt.Errorf("failed to split secret: %w", err)
			}
			metrics.RecordSecretSize(metrics.OpSplit, guarded.Len())

			var sealer *sharestore.Sealer
			if encrypt || (store && cm.GetConfig().Storage.EncryptStorage) {
				if sealer, err = newSealer(in, "Enter passphrase to seal shares: "); err != nil {
					return err
				}
				defer sealer.Destroy()
			}

			result := SplitResult{
				Scheme:      ssConfig.Scheme,
				Parties:     ssConfig.Parties,
				Threshold:   ssConfig.Threshold,
				Fingerprint: fingerprint,
				Shares:      make([]PartyOutput, len(shares)),
			}
			useWords := words || cm.GetConfig().UI.UseMnemonic
			for i, share := range shares {
				result.Shares[i] = renderShare(share, useWords)
			}

			if outDir != "" {
				for i, share := range shares {
					dir := filepath.Join(outDir, "party-"+strconv.Itoa(share.Party))
					if _, err := sharestore.WriteParty(dir, share, sealer); err != nil {
						return fmt.Errorf("failed to write party %d: %w", share.Party, err)
					}
					result.Shares[i].Directory = dir
				}
			}

			if store {
				setID, err := storeShares(cmd, cm, sealer, shares, ssConfig, name, description, tags)
				if err != nil {
					return err
				}
				result.SetID = setID
			}

			if !printShares && (outDir != "" || store) {
				for i := range result.Shares {
					result.Shares[i].Attachments = nil
				}
			}

			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), result)
			}
			return outputSplitText(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVarP(&scheme, "scheme", "s", "", "Sharing scheme: shamir, robust, additive, vault, sssa")
	cmd.Flags().IntVarP(&parties, "parties", "n", 0, "Number of parties (shares) to create")
	cmd.Flags().IntVarP(&threshold, "threshold", "t", 0, "Minimum shares needed to reconstruct")
	cmd.Flags().IntVar(&bits, "bits", 0, "Field size in bits for shamir and robust (3-20)")
	cmd.Flags().IntVar(&padLength, "pad", 0, "Pad the secret to a multiple of this many bits")
	cmd.Flags().IntVar(&numKeys, "keys", 0, "Keys per party pair for robust sharing")
	cmd.Flags().BoolVar(&useStdin, "stdin", false, "Read the secret from stdin")
	cmd.Flags().StringVarP(&inputFile, "file", "f", "", "Read the secret from a file")
	cmd.Flags().BoolVar(&hexInput, "hex", false, "Secret is hex encoded")
	cmd.Flags().BoolVar(&mnemonicInput, "mnemonic", false, "Secret is a BIP-39 phrase; its entropy is shared")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Write one directory per party under this path")
	cmd.Flags().BoolVar(&store, "store", false, "Keep the shares in the share store")
	cmd.Flags().StringVar(&name, "name", "", "Name for the stored share set")
	cmd.Flags().StringVar(&description, "description", "", "Description for the stored share set")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "Tags for the stored share set")
	cmd.Flags().BoolVar(&encrypt, "encrypt", false, "Seal written share files with a passphrase")
	cmd.Flags().BoolVar(&words, "words", false, "Also print byte shares as BIP-39 phrases where possible")
	cmd.Flags().BoolVar(&printShares, "print", false, "Print share values even when writing them to disk")
	cmd.Flags().StringVar(&profile, "profile", "", "Take unset parameters from a saved profile")

	cmd.MarkFlagsMutuallyExclusive("stdin", "file")
	cmd.MarkFlagsMutuallyExclusive("hex", "mnemonic")

	return cmd
}

// applyProfile fills the fields not given on the command line.
func applyProfile(dst *secretsharing.SecretSharingConfig, p secretsharing.SecretSharingConfig) {
	if dst.Scheme == "" {
		dst.Scheme = p.Scheme
	}
	if dst.Parties == 0 {
		dst.Parties = p.Parties
	}
	if dst.Threshold == 0 {
		dst.Threshold = p.Threshold
	}
	if dst.Bits == 0 {
		dst.Bits = p.Bits
	}
	if dst.PadLength == 0 {
		dst.PadLength = p.PadLength
	}
	if dst.NumKeys == 0 {
		dst.NumKeys = p.NumKeys
	}
}

func storeShares(cmd *cobra.Command, cm *config.ConfigManager, sealer *sharestore.Sealer, shares []secretsharing.Share,
	ssConfig secretsharing.SecretSharingConfig, name, description string, tags []string) (string, error) {
	path, err := storePath(cmd, cm)
	if err != nil {
		return "", err
	}

	var opts []sharestore.Option
	if sealer != nil {
		opts = append(opts, sharestore.WithSealer(sealer))
	}
	store, err := sharestore.NewShareStore(path, opts...)
	if err != nil {
		return "", err
	}

	shareSet := &sharestore.ShareSet{
		Name:        name,
		Description: description,
		Tags:        tags,
		Threshold:   ssConfig.Threshold,
		Bits:        ssConfig.Bits,
		NumKeys:     ssConfig.NumKeys,
	}
	start := time.Now()
	err = store.AddShareSet(shareSet, shares)
	metrics.RecordOperation(metrics.OpStore, string(ssConfig.Scheme), metrics.Status(err), time.Since(start))
	if err != nil {
		return "", fmt.Errorf("failed to store share set: %w", err)
	}
	return shareSet.ID, nil
}

func readSecret(in *prompter, inputFile string, useStdin bool) ([]byte, error) {
	var (
		secret []byte
		err    error
	)
	switch {
	case inputFile != "":
		secret, err = os.ReadFile(inputFile)
	case useStdin:
		secret, err = in.all()
		secret = bytes.TrimSuffix(secret, []byte("\n"))
		secret = bytes.TrimSuffix(secret, []byte("\r"))
	default:
		secret, err = in.hidden("Enter your secret: ")
	}
	if err != nil {
		return nil, err
	}
	if len(secret) == 0 {
		return nil, fmt.Errorf("secret cannot be empty")
	}
	return secret, nil
}

func decodeSecret(raw []byte, hexInput, mnemonicInput bool) ([]byte, error) {
	switch {
	case hexInput:
		s := strings.TrimSpace(string(raw))
		if err := validation.ValidateHexBytes(s); err != nil {
			return nil, fmt.Errorf("invalid hex secret: %w", err)
		}
		return hex.DecodeString(s)
	case mnemonicInput:
		phrase := string(raw)
		if err := validation.ValidateMnemonic(phrase); err != nil {
			return nil, fmt.Errorf("invalid mnemonic: %w", err)
		}
		return mnemonic.Decode(phrase)
	default:
		out := make([]byte, len(raw))
		copy(out, raw)
		return out, nil
	}
}

func outputSplitText(w io.Writer, result SplitResult) error {
	yellow := color.New(color.FgYellow, color.Bold)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed, color.Bold)
	cyan := color.New(color.FgCyan, color.Bold)

	fmt.Fprintln(w)
	yellow.Fprintf(w, "=== %s SHARES ===\n", strings.ToUpper(string(result.Scheme)))
	fmt.Fprintln(w)

	green.Fprintf(w, "Created %d shares with threshold %d\n", result.Parties, result.Threshold)
	fmt.Fprintf(w, "Any %d shares can reconstruct the original secret\n", result.Threshold)
	if result.SetID != "" {
		fmt.Fprintf(w, "Stored as share set %s\n", result.SetID)
	}
	if result.Fingerprint != "" {
		fmt.Fprintf(w, "Wallet fingerprint %s\n", result.Fingerprint)
	}
	fmt.Fprintln(w)

	for _, share := range result.Shares {
		cyan.Fprintf(w, "Party %d", share.Party)
		if share.Directory != "" {
			fmt.Fprintf(w, "  -> %s", share.Directory)
		}
		fmt.Fprintln(w)
		for _, a := range share.Attachments {
			fmt.Fprintf(w, "  %-10s %s\n", a.Name+":", a.Value)
			if a.Mnemonic != "" {
				fmt.Fprintf(w, "  %-10s %s\n", "words:", a.Mnemonic)
			}
		}
	}

	fmt.Fprintln(w)
	red.Fprintln(w, "SECURITY WARNING:")
	fmt.Fprintln(w, "- Give each party only its own share")
	fmt.Fprintln(w, "- Never store shares together or unencrypted")
	fmt.Fprintln(w, "- Test recovery with the minimum number of shares before relying on it")

	return nil
}

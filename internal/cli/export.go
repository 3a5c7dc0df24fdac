package cli

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Davincible/sharecrypt/pkg/config"
	"github.com/Davincible/sharecrypt/pkg/crypto/secretsharing"
	"github.com/Davincible/sharecrypt/pkg/metrics"
	"github.com/Davincible/sharecrypt/pkg/sharestore"
	"github.com/Davincible/sharecrypt/pkg/storage"
)

type ExportResult struct {
	SetID   string `json:"set_id"`
	Output  string `json:"output"`
	Format  string `json:"format"`
	Parties int    `json:"parties"`
}

type ImportResult struct {
	SetID     string `json:"set_id"`
	Name      string `json:"name,omitempty"`
	Scheme    string `json:"scheme"`
	Parties   int    `json:"parties"`
	Encrypted bool   `json:"encrypted"`
	Shredded  bool   `json:"shredded"`
}

func NewExportCommand() *cobra.Command {
	var (
		output string
		format string
	)

	cmd := &cobra.Command{
		Use:   "export ID",
		Short: "Export a stored share set to a bundle file",
		Long: `Write every readable share of a stored set to one file for backup or for
moving it to another machine.

Formats:
- bundle: passphrase encrypted (PBKDF2-SHA256, AES-256-GCM); restore with import
- csv:    plain party,attachment,hex rows for printing. Holds every share in clear.`,
		Example: `  # Encrypted bundle
  sharecrypt export 3f2a -o wallet.scb

  # Non-interactive
  SHARECRYPT_PASSPHRASE=... sharecrypt export 3f2a -o wallet.scb`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cm, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			in := newPrompter(cmd)

			store, err := getShareStore(cmd, cm, in, args[0])
			if err != nil {
				return err
			}
			shareSet, err := store.GetShareSet(args[0])
			if err != nil {
				return err
			}
			shares, err := store.LoadShares(shareSet.ID, partyNumbers(shareSet.Parties)...)
			if err != nil {
				return err
			}

			if output == "" {
				ext := ".scb"
				if format == "csv" {
					ext = ".csv"
				}
				output = shareSet.ID + ext
			}

			start := time.Now()
			switch format {
			case "bundle":
				err = exportBundle(cm, in, output, &storage.Bundle{
					SetID:     shareSet.ID,
					Name:      shareSet.Name,
					Scheme:    shareSet.Scheme,
					Threshold: shareSet.Threshold,
					Parties:   shareSet.Parties,
					Bits:      shareSet.Bits,
					NumKeys:   shareSet.NumKeys,
					Shares:    shares,
					Metadata:  shareSet.Metadata,
				})
			case "csv":
				err = exportCSV(output, shareSet, shares)
			default:
				err = fmt.Errorf("unsupported format: %s", format)
			}
			metrics.RecordOperation(metrics.OpExport, string(shareSet.Scheme), metrics.Status(err), time.Since(start))
			if err != nil {
				return err
			}

			result := ExportResult{SetID: shareSet.ID, Output: output, Format: format, Parties: len(shares)}
			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), result)
			}
			w := cmd.OutOrStdout()
			color.New(color.FgGreen).Fprintf(w, "Exported %d share(s) of %s to %s\n", len(shares), shareSet.ID, output)
			if len(shares) < shareSet.Parties {
				color.New(color.FgYellow).Fprintf(w, "%d party directories could not be read\n", shareSet.Parties-len(shares))
			}
			if format == "csv" {
				color.New(color.FgYellow).Fprintln(w, "The CSV file holds every share unencrypted")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default <id>.scb)")
	cmd.Flags().StringVar(&format, "format", "bundle", "Export format (bundle, csv)")

	return cmd
}

func NewImportCommand() *cobra.Command {
	var (
		encrypt   bool
		overwrite bool
		shred     bool
	)

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import a share set from an encrypted bundle",
		Long: `Decrypt a bundle written by export and add its shares to the local store.
The set keeps its ID, so importing the same bundle twice needs --overwrite.
--shred overwrites and removes the bundle once the set is stored.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cm, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			in := newPrompter(cmd)

			bundleStorage := storage.NewBundleStorage(args[0])
			if !bundleStorage.Exists() {
				return fmt.Errorf("bundle not found: %s", args[0])
			}

			password, err := in.password("Enter bundle passphrase: ")
			if err != nil {
				return fmt.Errorf("failed to read passphrase: %w", err)
			}

			start := time.Now()
			bundle, err := bundleStorage.LoadBundle([]byte(password))
			if err != nil {
				metrics.RecordOperation(metrics.OpImport, "", metrics.Status(err), time.Since(start))
				return fmt.Errorf("failed to open bundle: %w", err)
			}

			var sealer *sharestore.Sealer
			if encrypt || cm.GetConfig().Storage.EncryptStorage {
				sealer, err = sharestore.NewSealer(password, sharestore.DefaultKeyDerivationParams())
				if err != nil {
					return err
				}
				defer sealer.Destroy()
			}

			path, err := storePath(cmd, cm)
			if err != nil {
				return err
			}
			var opts []sharestore.Option
			if sealer != nil {
				opts = append(opts, sharestore.WithSealer(sealer))
			}
			store, err := sharestore.NewShareStore(path, opts...)
			if err != nil {
				return err
			}

			if bundle.SetID != "" {
				if existing, err := store.GetShareSet(bundle.SetID); err == nil && existing.ID == bundle.SetID {
					if !overwrite {
						return fmt.Errorf("share set %s already exists, use --overwrite to replace it", bundle.SetID)
					}
					if err := store.DeleteShareSet(existing.ID); err != nil {
						return err
					}
				} else if err != nil && !errors.Is(err, sharestore.ErrSetNotFound) && !errors.Is(err, sharestore.ErrAmbiguousID) {
					return err
				}
			}

			shareSet := &sharestore.ShareSet{
				ID:        bundle.SetID,
				Name:      bundle.Name,
				Threshold: bundle.Threshold,
				Bits:      bundle.Bits,
				NumKeys:   bundle.NumKeys,
				Metadata:  bundle.Metadata,
			}
			err = store.AddShareSet(shareSet, bundle.Shares)
			metrics.RecordOperation(metrics.OpImport, string(bundle.Scheme), metrics.Status(err), time.Since(start))
			if err != nil {
				return fmt.Errorf("failed to store share set: %w", err)
			}

			result := ImportResult{
				SetID:     shareSet.ID,
				Name:      shareSet.Name,
				Scheme:    string(shareSet.Scheme),
				Parties:   shareSet.Parties,
				Encrypted: shareSet.IsEncrypted,
			}
			if shred {
				if err := bundleStorage.Delete(); err != nil {
					return fmt.Errorf("set %s imported but the bundle was not removed: %w", shareSet.ID, err)
				}
				result.Shredded = true
			}

			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), result)
			}
			w := cmd.OutOrStdout()
			color.New(color.FgGreen).Fprintf(w, "Share set imported: %s\n", shareSet.ID)
			fmt.Fprintf(w, "Scheme: %s | Threshold: %d/%d\n", shareSet.Scheme, shareSet.Threshold, shareSet.Parties)
			if result.Shredded {
				fmt.Fprintf(w, "Bundle %s removed\n", args[0])
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&encrypt, "encrypt", false, "Seal the imported share files with the bundle passphrase")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing set with the same ID")
	cmd.Flags().BoolVar(&shred, "shred", false, "Overwrite and delete the bundle after importing")

	return cmd
}

func exportBundle(cm *config.ConfigManager, in *prompter, output string, bundle *storage.Bundle) error {
	password, err := in.password("Enter bundle passphrase: ")
	if err != nil {
		return fmt.Errorf("failed to read passphrase: %w", err)
	}
	if err := cm.ValidatePassphrase(password); err != nil {
		return err
	}
	if os.Getenv(EnvPassphrase) == "" {
		confirm, err := in.password("Confirm passphrase: ")
		if err != nil {
			return fmt.Errorf("failed to read passphrase: %w", err)
		}
		if confirm != password {
			return fmt.Errorf("passphrases do not match")
		}
	}

	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := storage.NewBundleStorage(output).SaveBundle(bundle, []byte(password)); err != nil {
		return fmt.Errorf("failed to write bundle: %w", err)
	}
	return nil
}

func exportCSV(output string, shareSet *sharestore.ShareSet, shares []secretsharing.Share) error {
	f, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	if err := writeSharesCSV(f, shareSet, shares); err != nil {
		return err
	}
	return f.Close()
}

func writeSharesCSV(w io.Writer, shareSet *sharestore.ShareSet, shares []secretsharing.Share) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"set", "scheme", "threshold", "party", "attachment", "value"}); err != nil {
		return err
	}
	for _, share := range shares {
		out := renderShare(share, false)
		for _, a := range out.Attachments {
			row := []string{
				shareSet.ID,
				string(shareSet.Scheme),
				strconv.Itoa(shareSet.Threshold),
				strconv.Itoa(share.Party),
				a.Name,
				a.Value,
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

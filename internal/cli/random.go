package cli

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Davincible/sharecrypt/pkg/crypto/mnemonic"
	"github.com/Davincible/sharecrypt/pkg/crypto/shamir"
	"github.com/Davincible/sharecrypt/pkg/metrics"
)

type RandomResult struct {
	Bits     int    `json:"bits"`
	Hex      string `json:"hex"`
	Mnemonic string `json:"mnemonic,omitempty"`
}

func NewRandomCommand() *cobra.Command {
	var (
		bits  int
		words bool
	)

	cmd := &cobra.Command{
		Use:   "random",
		Short: "Generate a random hex secret",
		Long: `Print a random value of the given bit length as hex, suitable as a secret
for split. With --words and a length of 128 to 256 bits in steps of 32, the
value is also shown as a BIP39 mnemonic.`,
		Example: `  sharecrypt random --bits 256 --words`,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			h, err := shamir.RandomHex(bits, nil)
			metrics.RecordOperation(metrics.OpRandom, "", metrics.Status(err), time.Since(start))
			if err != nil {
				return err
			}

			result := RandomResult{Bits: bits, Hex: h}
			if words {
				if bits%8 != 0 {
					return fmt.Errorf("--words needs a whole number of bytes")
				}
				raw, err := hex.DecodeString(h)
				if err != nil {
					return err
				}
				phrase, err := mnemonic.Encode(raw)
				if err != nil {
					return err
				}
				result.Mnemonic = phrase
			}

			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), result)
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Hex)
			if result.Mnemonic != "" {
				fmt.Fprintln(cmd.OutOrStdout(), result.Mnemonic)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&bits, "bits", "b", 256, "Number of random bits (2 to 65536)")
	cmd.Flags().BoolVarP(&words, "words", "w", false, "Also print the value as a mnemonic")

	return cmd
}

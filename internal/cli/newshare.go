package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Davincible/sharecrypt/internal/validation"
	"github.com/Davincible/sharecrypt/pkg/crypto/secretsharing"
	"github.com/Davincible/sharecrypt/pkg/crypto/shamir"
	"github.com/Davincible/sharecrypt/pkg/metrics"
)

type NewShareResult struct {
	ID    int    `json:"id"`
	Share string `json:"share"`
}

func NewNewShareCommand() *cobra.Command {
	var (
		id        int
		inputFile string
	)

	cmd := &cobra.Command{
		Use:   "newshare --id N SHARE...",
		Short: "Derive the Shamir share for a new party from existing shares",
		Long: `Evaluate the sharing polynomial at a new point. Given at least threshold
shares of a shamir split, prints the share a party with the given ID would
have received. The secret is never reconstructed.`,
		Example: `  sharecrypt newshare --id 6 801a3f... 8027c1... 803e90...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			lines := args
			if inputFile != "" {
				data, err := os.ReadFile(inputFile)
				if err != nil {
					return fmt.Errorf("failed to read shares: %w", err)
				}
				lines = append(lines, validation.SplitLines(string(data))...)
			}
			if len(lines) == 0 {
				return fmt.Errorf("no shares given")
			}

			shares, err := shamir.ParseShares(lines)
			if err != nil {
				return err
			}

			start := time.Now()
			share, err := shamir.NewShare(id, shares)
			metrics.RecordOperation(metrics.OpNewShare, string(secretsharing.SchemeShamir), metrics.Status(err), time.Since(start))
			if err != nil {
				return fmt.Errorf("failed to derive share: %w", err)
			}

			result := NewShareResult{ID: share.ID, Share: share.String()}
			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), result)
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Share)
			return nil
		},
	}

	cmd.Flags().IntVar(&id, "id", 0, "ID of the new share (1 to 2^bits-1)")
	cmd.Flags().StringVarP(&inputFile, "file", "f", "", "Read shares from a file, one per line")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

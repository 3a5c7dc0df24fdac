package cli

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Davincible/sharecrypt/pkg/crypto/uhash"
	"github.com/Davincible/sharecrypt/pkg/metrics"
)

type HashResult struct {
	Message string   `json:"message"`
	Keys    []uint32 `json:"keys"`
	Tags    []uint32 `json:"tags"`
}

func NewHashCommand() *cobra.Command {
	var (
		keys    []string
		textMsg bool
	)

	cmd := &cobra.Command{
		Use:   "hash --key K [--key K...] MESSAGE",
		Short: "Compute PolyQ32 tags of a hex message",
		Long: `Hash a message with the PolyQ32 universal hash, once per key. The message
is read as hex in 128-bit words; a trailing partial word does not contribute.
Keys are decimal or 0x-prefixed hex 32-bit values.`,
		Example: `  sharecrypt hash --key 0x1234 --key 99 00000000000000000000000000000041
  sharecrypt hash --key 7 --text "hello, world, sixteen bytes"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg := args[0]
			if textMsg {
				msg = hex.EncodeToString([]byte(msg))
			}

			parsed := make([]uint32, 0, len(keys))
			for _, k := range keys {
				v, err := parseKey(k)
				if err != nil {
					return err
				}
				parsed = append(parsed, v)
			}

			start := time.Now()
			tags, err := uhash.Tags(parsed, msg)
			metrics.RecordOperation(metrics.OpHash, "polyq32", metrics.Status(err), time.Since(start))
			if err != nil {
				return err
			}

			result := HashResult{Message: msg, Keys: parsed, Tags: tags}
			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), result)
			}
			for i, tag := range tags {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%08x\n", parsed[i], tag)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&keys, "key", "k", nil, "Hash key (repeatable)")
	cmd.Flags().BoolVar(&textMsg, "text", false, "Treat the message as text and hash its hex encoding")
	_ = cmd.MarkFlagRequired("key")

	return cmd
}

func parseKey(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid key %q: must be a 32-bit unsigned integer", s)
	}
	return uint32(v), nil
}

package cli

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Davincible/sharecrypt/pkg/metrics"
	"github.com/Davincible/sharecrypt/pkg/sharestore"
)

// NewSetsCommand manages share sets kept in the local store
func NewSetsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sets",
		Short: "Manage stored share sets",
		Long: `Inspect and maintain the share sets written by "split --store".

Each set keeps one directory per party plus a checksummed record of the
scheme, threshold and the last known status of every party's share.`,
		Example: `  # List all share sets
  sharecrypt sets list

  # Show a set by ID prefix
  sharecrypt sets show 3f2a

  # Check that every party directory still verifies
  sharecrypt sets verify 3f2a

  # Mark party 2 as lost
  sharecrypt sets status 3f2a 2 missing`,
	}

	cmd.AddCommand(
		newSetsListCommand(),
		newSetsShowCommand(),
		newSetsSearchCommand(),
		newSetsVerifyCommand(),
		newSetsStatusCommand(),
		newSetsDeleteCommand(),
		newSetsStatsCommand(),
	)

	return cmd
}

func newSetsListCommand() *cobra.Command {
	var tags []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all share sets",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}

			shareSets := store.ListShareSets(tags)
			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), shareSets)
			}
			printShareSetsList(cmd.OutOrStdout(), shareSets)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&tags, "tags", nil, "Only list sets carrying all of these tags")

	return cmd
}

func newSetsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show detailed information about a share set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}

			shareSet, err := store.GetShareSet(args[0])
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), shareSet)
			}
			displayShareSetDetails(cmd.OutOrStdout(), store, shareSet)
			return nil
		},
	}
}

func newSetsSearchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "search QUERY",
		Short: "Search share sets by name, description, tags or metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}

			results := store.SearchShareSets(args[0])
			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), results)
			}
			if len(results) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No share sets found matching '%s'\n", args[0])
				return nil
			}
			color.New(color.FgCyan).Fprintf(cmd.OutOrStdout(), "Found %d share set(s):\n\n", len(results))
			printShareSetsList(cmd.OutOrStdout(), results)
			return nil
		},
	}
}

func newSetsVerifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify ID",
		Short: "Check every party directory of a share set",
		Long: `Load each party directory of the set and check it is well formed for the
set's scheme. Robust sets are checked structurally; only "combine --set"
runs the pairwise tag checks between parties.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cm, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := getShareStore(cmd, cm, newPrompter(cmd), args[0])
			if err != nil {
				return err
			}

			start := time.Now()
			report, err := store.VerifyShares(args[0])
			scheme := ""
			if shareSet, lookupErr := store.GetShareSet(args[0]); lookupErr == nil {
				scheme = string(shareSet.Scheme)
			}
			metrics.RecordOperation(metrics.OpVerify, scheme, metrics.Status(err), time.Since(start))
			if err != nil {
				return err
			}

			accepted := make([]bool, len(report.Results))
			for i, r := range report.Results {
				accepted[i] = r.IsValid
			}
			metrics.RecordVerification(scheme, accepted)

			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), report)
			}
			displayVerificationReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
}

func newSetsStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status ID PARTY STATUS",
		Short: "Set the recorded status of one party's share",
		Long: `Record what is known about a party's share. Status is one of available,
accepted, rejected or missing. Only available and accepted shares are used
when combining a stored set without --parties.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			party, err := strconv.Atoi(args[1])
			if err != nil || party < 1 {
				return fmt.Errorf("invalid party %q", args[1])
			}
			status, err := parseShareStatus(args[2])
			if err != nil {
				return err
			}

			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			if err := store.UpdateShareStatus(args[0], party, status); err != nil {
				return err
			}

			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Party %d marked %s\n", party, status)
			return nil
		},
	}
}

func newSetsDeleteCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a share set and its party directories",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}

			shareSet, err := store.GetShareSet(args[0])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if !force {
				fmt.Fprintf(w, "This will delete share set '%s' and every stored share.\n", shareSet.Name)
				fmt.Fprintf(w, "ID: %s\n", shareSet.ID)
				fmt.Fprint(w, "Are you sure? (y/N): ")

				response, err := newPrompter(cmd).line()
				if err != nil {
					return fmt.Errorf("failed to read confirmation: %w", err)
				}
				response = strings.ToLower(strings.TrimSpace(response))
				if response != "y" && response != "yes" {
					fmt.Fprintln(w, "Deletion cancelled.")
					return nil
				}
			}

			if err := store.DeleteShareSet(shareSet.ID); err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(w, "Share set %s deleted\n", shareSet.ID)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation")

	return cmd
}

func newSetsStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show statistics about stored share sets",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}

			stats := collectStats(store.ListShareSets(nil))
			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), stats)
			}
			displayStats(cmd.OutOrStdout(), stats)
			return nil
		},
	}
}

func openStore(cmd *cobra.Command) (*sharestore.ShareStore, error) {
	cm, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return getShareStore(cmd, cm, nil, "")
}

func parseShareStatus(s string) (sharestore.ShareStatus, error) {
	status := sharestore.ShareStatus(strings.ToLower(s))
	switch status {
	case sharestore.ShareStatusAvailable, sharestore.ShareStatusAccepted,
		sharestore.ShareStatusRejected, sharestore.ShareStatusMissing:
		return status, nil
	}
	return "", fmt.Errorf("unknown share status %q", s)
}

func usableCount(shareSet *sharestore.ShareSet) int {
	n := 0
	for _, share := range shareSet.Shares {
		if share.Status.Usable() {
			n++
		}
	}
	return n
}

func printShareSetsList(w io.Writer, shareSets []*sharestore.ShareSet) {
	if len(shareSets) == 0 {
		fmt.Fprintln(w, "No share sets found.")
		return
	}

	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	for i, ss := range shareSets {
		if i > 0 {
			fmt.Fprintln(w)
		}

		name := ss.Name
		if name == "" {
			name = "(unnamed)"
		}
		cyan.Fprintf(w, "%s\n", name)
		fmt.Fprintf(w, "   ID: %s\n", ss.ID)
		fmt.Fprintf(w, "   Scheme: %s | Threshold: %d/%d", ss.Scheme, ss.Threshold, ss.Parties)
		if ss.IsEncrypted {
			fmt.Fprint(w, " | Encrypted")
		}
		fmt.Fprintln(w)

		fmt.Fprintf(w, "   Created: %s", ss.Created.Local().Format("2006-01-02 15:04"))
		if !ss.Modified.Equal(ss.Created) {
			fmt.Fprintf(w, " | Modified: %s", ss.Modified.Local().Format("2006-01-02 15:04"))
		}
		fmt.Fprintln(w)

		if len(ss.Tags) > 0 {
			fmt.Fprintf(w, "   Tags: %s\n", strings.Join(ss.Tags, ", "))
		}
		if ss.Description != "" {
			fmt.Fprintf(w, "   %s\n", ss.Description)
		}

		available := usableCount(ss)
		if available >= ss.Threshold {
			green.Fprintf(w, "   Status: recoverable (%d/%d usable)\n", available, ss.Parties)
		} else {
			red.Fprintf(w, "   Status: not recoverable (%d/%d usable)\n", available, ss.Parties)
		}
	}
}

func displayShareSetDetails(w io.Writer, store *sharestore.ShareStore, shareSet *sharestore.ShareSet) {
	fmt.Fprintf(w, "Share Set Details\n")
	fmt.Fprintf(w, "=================\n\n")

	fmt.Fprintf(w, "Name: %s\n", shareSet.Name)
	fmt.Fprintf(w, "ID: %s\n", shareSet.ID)
	fmt.Fprintf(w, "Scheme: %s\n", shareSet.Scheme)
	fmt.Fprintf(w, "Threshold: %d of %d parties\n", shareSet.Threshold, shareSet.Parties)
	if shareSet.Bits > 0 {
		fmt.Fprintf(w, "Field: GF(2^%d)\n", shareSet.Bits)
	}
	if shareSet.NumKeys > 0 {
		fmt.Fprintf(w, "Keys per pair: %d\n", shareSet.NumKeys)
	}
	if shareSet.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", shareSet.Description)
	}
	fmt.Fprintf(w, "Encrypted: %t\n", shareSet.IsEncrypted)
	fmt.Fprintf(w, "Created: %s\n", shareSet.Created.Local().Format("2006-01-02 15:04:05"))
	if !shareSet.Modified.Equal(shareSet.Created) {
		fmt.Fprintf(w, "Modified: %s\n", shareSet.Modified.Local().Format("2006-01-02 15:04:05"))
	}
	if len(shareSet.Tags) > 0 {
		fmt.Fprintf(w, "Tags: %s\n", strings.Join(shareSet.Tags, ", "))
	}
	if len(shareSet.Metadata) > 0 {
		keys := make([]string, 0, len(shareSet.Metadata))
		for k := range shareSet.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintf(w, "Metadata:\n")
		for _, k := range keys {
			fmt.Fprintf(w, "  %s: %s\n", k, shareSet.Metadata[k])
		}
	}

	fmt.Fprintf(w, "\nShares (%d):\n", len(shareSet.Shares))
	for _, share := range shareSet.Shares {
		statusColor := color.New(color.FgYellow)
		switch share.Status {
		case sharestore.ShareStatusAvailable, sharestore.ShareStatusAccepted:
			statusColor = color.New(color.FgGreen)
		case sharestore.ShareStatusRejected, sharestore.ShareStatusMissing:
			statusColor = color.New(color.FgRed)
		}

		fmt.Fprintf(w, "  Party %d - ", share.Party)
		statusColor.Fprint(w, share.Status)
		fmt.Fprintf(w, " | %d attachment(s)", len(share.Attachments))
		if share.LastVerified != nil {
			fmt.Fprintf(w, " | Verified: %s", share.LastVerified.Local().Format("2006-01-02"))
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "    %s\n", store.PartyDir(shareSet.ID, share.Party))
		if share.Notes != "" {
			fmt.Fprintf(w, "    Notes: %s\n", share.Notes)
		}
	}
}

func displayVerificationReport(w io.Writer, report *sharestore.VerificationReport) {
	fmt.Fprintf(w, "Verification Report\n")
	fmt.Fprintf(w, "===================\n\n")

	fmt.Fprintf(w, "Share Set: %s\n", report.ShareSetID)
	fmt.Fprintf(w, "Timestamp: %s\n", report.Timestamp.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Total Shares: %d\n", report.TotalShares)
	fmt.Fprintf(w, "Valid Shares: %d\n", report.ValidShares)

	if report.IsRecoverable {
		color.New(color.FgGreen).Fprintln(w, "Status: secret is recoverable")
	} else {
		color.New(color.FgRed).Fprintln(w, "Status: secret is NOT recoverable")
	}

	fmt.Fprintf(w, "\nDetailed Results:\n")
	for _, result := range report.Results {
		mark := color.New(color.FgGreen).Sprint("ok  ")
		if !result.IsValid {
			mark = color.New(color.FgRed).Sprint("FAIL")
		}
		fmt.Fprintf(w, "  %s Party %d: %s", mark, result.Party, result.Status)
		if result.Error != "" {
			fmt.Fprintf(w, " (%s)", result.Error)
		}
		fmt.Fprintln(w)
	}
}

type StoreStats struct {
	Sets        int            `json:"sets"`
	Shares      int            `json:"shares"`
	Recoverable int            `json:"recoverable"`
	Encrypted   int            `json:"encrypted"`
	ByScheme    map[string]int `json:"by_scheme"`
}

func collectStats(shareSets []*sharestore.ShareSet) StoreStats {
	stats := StoreStats{Sets: len(shareSets), ByScheme: make(map[string]int)}
	for _, ss := range shareSets {
		stats.ByScheme[string(ss.Scheme)]++
		stats.Shares += ss.Parties
		if usableCount(ss) >= ss.Threshold {
			stats.Recoverable++
		}
		if ss.IsEncrypted {
			stats.Encrypted++
		}
	}
	return stats
}

func displayStats(w io.Writer, stats StoreStats) {
	fmt.Fprintf(w, "Share Store Statistics\n")
	fmt.Fprintf(w, "======================\n\n")

	fmt.Fprintf(w, "Total Share Sets: %d\n", stats.Sets)
	fmt.Fprintf(w, "Total Shares: %d\n", stats.Shares)
	fmt.Fprintf(w, "Encrypted Sets: %d\n", stats.Encrypted)
	if stats.Sets > 0 {
		fmt.Fprintf(w, "Recoverable Sets: %d (%.1f%%)\n",
			stats.Recoverable, float64(stats.Recoverable*100)/float64(stats.Sets))
	}

	if len(stats.ByScheme) == 0 {
		return
	}
	schemes := make([]string, 0, len(stats.ByScheme))
	for s := range stats.ByScheme {
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)
	fmt.Fprintf(w, "\nBy Scheme:\n")
	for _, s := range schemes {
		fmt.Fprintf(w, "  %s: %d\n", s, stats.ByScheme[s])
	}
}

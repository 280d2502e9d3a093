package cmd

import (
	"fmt"
	"strconv"

	"github.com/bison808/civix"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the data files for integrity and known answers",
	RunE: func(cmd *cobra.Command, args []string) error {
		offline = true
		r, closer, err := newResolver(nil)
		if err != nil {
			return err
		}
		defer closer.Close()
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Validating data...")
		if err := r.Validate(out); err != nil {
			return err
		}
		fmt.Fprintln(out, "Data OK.")
		return nil
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Compare the curated table with the ZIP range heuristic",
	Long: `audit lists every table ZIP where the range heuristic would guess a
different county or district. Long lists point at ranges that need splitting.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		offline = true
		r, closer, err := newResolver(nil)
		if err != nil {
			return err
		}
		defer closer.Close()
		out := cmd.OutOrStdout()

		findings := r.Audit()
		if wantJSON(cmd) {
			return printJSON(out, findings)
		}
		table := tablewriter.NewWriter(out)
		table.Header("ZIP", "Field", "Table", "Heuristic")
		for _, f := range findings {
			table.Append([]string{f.ZIP, f.Field, f.Table, f.Heuristic})
		}
		table.Render()
		n := r.Table().Len()
		fmt.Fprintf(out, "%d findings across %d ZIPs (%s%% agree on every field)\n",
			len(findings), n, strconv.FormatFloat(agreement(findings, n), 'f', 1, 64))
		return nil
	},
}

// agreement is the share of ZIPs with no finding.
func agreement(findings []civix.AuditFinding, total int) float64 {
	if total == 0 {
		return 0
	}
	seen := make(map[string]bool)
	for _, f := range findings {
		seen[f.ZIP] = true
	}
	return 100 * float64(total-len(seen)) / float64(total)
}

func init() {
	rootCmd.AddCommand(validateCmd, auditCmd)
}

package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bison808/civix"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <zip>...",
	Short: "Resolve ZIP codes to districts",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runResolve,
}

var officialsCmd = &cobra.Command{
	Use:   "officials <zip>",
	Short: "List the officials representing a ZIP code",
	Args:  cobra.ExactArgs(1),
	RunE:  runOfficials,
}

var cityFuzzy bool

var cityCmd = &cobra.Command{
	Use:   "city <name>",
	Short: "Find the ZIP codes of a city",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCity,
}

func init() {
	cityCmd.Flags().BoolVar(&cityFuzzy, "fuzzy", false, "tolerate typos (edit distance up to 3)")
	rootCmd.AddCommand(resolveCmd, officialsCmd, cityCmd)
}

func district(n int) string {
	if n == 0 {
		return "-"
	}
	return strconv.Itoa(n)
}

func runResolve(cmd *cobra.Command, args []string) error {
	r, closer, err := newResolver(nil)
	if err != nil {
		return err
	}
	defer closer.Close()
	out := cmd.OutOrStdout()

	var (
		results []*civix.Resolution
		failed  int
	)
	for _, zip := range args {
		res, err := r.Resolve(cmd.Context(), zip)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", zip, err)
			failed++
			continue
		}
		results = append(results, res)
	}

	if wantJSON(cmd) {
		if err := printJSON(out, results); err != nil {
			return err
		}
	} else if len(results) > 0 {
		table := tablewriter.NewWriter(out)
		table.Header("ZIP", "Place", "County", "CD", "SD", "AD", "Jurisdiction", "Source", "Confidence")
		for _, res := range results {
			table.Append([]string{
				res.ZIP,
				res.Place(),
				res.County,
				district(res.Districts.Congressional),
				district(res.Districts.StateSenate),
				district(res.Districts.Assembly),
				string(res.Jurisdiction.Kind),
				string(res.Source),
				string(res.Confidence),
			})
		}
		table.Render()
		for _, res := range results {
			for _, w := range res.Warnings {
				fmt.Fprintf(out, "%s: %s\n", res.ZIP, w)
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d ZIPs could not be resolved", failed, len(args))
	}
	return nil
}

func runOfficials(cmd *cobra.Command, args []string) error {
	r, closer, err := newResolver(nil)
	if err != nil {
		return err
	}
	defer closer.Close()
	out := cmd.OutOrStdout()

	res, officials, err := r.Officials(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if wantJSON(cmd) {
		return printJSON(out, map[string]interface{}{"resolution": res, "officials": officials})
	}

	fmt.Fprintf(out, "%s: %s, %s County\n", res.ZIP, res.Place(), res.County)
	if !res.Jurisdiction.ShowMunicipal() {
		fmt.Fprintln(out, "Unincorporated or unclassified area: no municipal officials.")
	}
	table := tablewriter.NewWriter(out)
	table.Header("Level", "Office", "District", "Name", "Party")
	for _, o := range officials {
		table.Append([]string{string(o.Level), o.Office, district(o.District), o.Name, o.Party})
	}
	table.Render()
	return nil
}

func runCity(cmd *cobra.Command, args []string) error {
	r, closer, err := newResolver(nil)
	if err != nil {
		return err
	}
	defer closer.Close()
	out := cmd.OutOrStdout()

	name := strings.Join(args, " ")
	matches := r.SearchCity(name, cityFuzzy)
	if wantJSON(cmd) {
		return printJSON(out, matches)
	}
	if len(matches) == 0 {
		return errors.New("no matching city")
	}
	table := tablewriter.NewWriter(out)
	table.Header("City", "County", "ZIPs", "Distance")
	for _, m := range matches {
		table.Append([]string{m.Name, m.County, strings.Join(m.ZIPs, " "), strconv.Itoa(m.Distance)})
	}
	table.Render()
	return nil
}

package main

import (
	"fmt"
	"text/tabwriter"

	"balance_sheet_analyzer/pkg/core/setup"
	"balance_sheet_analyzer/pkg/core/snapshot"

	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Print the stored metrics of a company",
	Long: `Snapshot prints the metric by year table of every company in --group,
or of --company only, exactly as the analysis chat sees it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		group, _ := cmd.Flags().GetString("group")
		only, _ := cmd.Flags().GetString("company")
		if group == "" {
			return fmt.Errorf("--group is required")
		}

		ctx := cmd.Context()
		st, err := setup.OpenStore(ctx, cfg, group)
		if err != nil {
			return err
		}
		defer st.Close()

		companies, err := st.ListCompanies(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		found := false
		for _, c := range companies {
			if only != "" && c.Name != only {
				continue
			}
			found = true
			records, err := st.GetMetricSet(ctx, c.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "== %s ==\n", c.Name)
			if snap := snapshot.Build(records); snap.Empty() {
				fmt.Fprintln(out, "no financial data")
			} else {
				fmt.Fprintln(out, snap.String())
			}
		}
		if only != "" && !found {
			return fmt.Errorf("company %q not found in %s", only, group)
		}
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create and seed the store of every configured group",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		stores, closeStores, err := setup.OpenStores(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeStores()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "GROUP\tCOMPANIES")
		for _, g := range cfg.Groups {
			companies, err := stores[g].ListCompanies(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%d\n", g, len(companies))
		}
		return w.Flush()
	},
}

func init() {
	snapshotCmd.Flags().String("group", "", "parent group")
	snapshotCmd.Flags().String("company", "", "limit output to one company")

	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(migrateCmd)
}

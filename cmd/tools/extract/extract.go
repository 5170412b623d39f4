package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"balance_sheet_analyzer/pkg/core/extraction"
	"balance_sheet_analyzer/pkg/core/ingest"
	"balance_sheet_analyzer/pkg/core/pipeline"
	"balance_sheet_analyzer/pkg/core/setup"
	"balance_sheet_analyzer/pkg/models"

	"github.com/spf13/cobra"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract the canonical metrics of one report",
	Long: `Extract reads an annual report from a local PDF (--file) or a web page
(--url), asks the extraction agent for the 14 canonical balance sheet
metrics of --year and prints the metric set as JSON.

With --save the non-null values are written to --company in --group,
creating the company if it does not exist.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		url, _ := cmd.Flags().GetString("url")
		year, _ := cmd.Flags().GetInt("year")
		save, _ := cmd.Flags().GetBool("save")
		company, _ := cmd.Flags().GetString("company")
		group, _ := cmd.Flags().GetString("group")

		if (file == "") == (url == "") {
			return fmt.Errorf("exactly one of --file or --url is required")
		}
		if year < pipeline.MinYear || year > pipeline.MaxYear {
			return pipeline.ErrInvalidYear
		}
		if save && (company == "" || group == "") {
			return fmt.Errorf("--save needs --company and --group")
		}

		ctx := cmd.Context()
		mgr, closeLLM, err := setup.NewAgentManager(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeLLM()
		engine := setup.NewExtractionEngine(cfg, mgr)

		var (
			set    models.MetricSet
			source string
		)
		if file != "" {
			pages, err := ingest.ExtractPages(file)
			if err != nil {
				return err
			}
			set, err = engine.ExtractPages(ctx, pages, year)
			if err != nil {
				return describe(err)
			}
			source = filepath.Base(file)
		} else {
			text, err := ingest.NewFetcher().FetchAndCleanText(ctx, url)
			if err != nil {
				return err
			}
			set, err = engine.Extract(ctx, text, year)
			if err != nil {
				return describe(err)
			}
			source = url
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(set); err != nil {
			return err
		}
		if !save {
			return nil
		}

		st, err := setup.OpenStore(ctx, cfg, group)
		if err != nil {
			return err
		}
		defer st.Close()

		c, err := st.EnsureCompany(ctx, company)
		if err != nil {
			return err
		}
		n, err := st.UpsertMetrics(ctx, c.ID, year, set, source)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "saved %d metrics for %s %d (%s)\n", n, c.Name, year, group)
		return nil
	},
}

// describe appends the raw backend reply to parse failures.
func describe(err error) error {
	var failure *extraction.Failure
	if errors.As(err, &failure) && failure.Kind == extraction.FailureParse {
		return fmt.Errorf("%w\nraw reply:\n%s", err, failure.Details())
	}
	return err
}

func init() {
	extractCmd.Flags().String("file", "", "annual report PDF")
	extractCmd.Flags().String("url", "", "web page with the financial statements")
	extractCmd.Flags().Int("year", 0, "financial year of the report")
	extractCmd.Flags().Bool("save", false, "write the metrics to the group store")
	extractCmd.Flags().String("company", "", "company name for --save")
	extractCmd.Flags().String("group", "", "parent group for --save")

	rootCmd.AddCommand(extractCmd)
}

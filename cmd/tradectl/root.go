package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"trade-ingestion-service/internal/observability/logging"
	"trade-ingestion-service/internal/schema"
	"trade-ingestion-service/internal/source"
)

// errAnomalies is returned by validate --fail-on-anomaly when any record fails.
var errAnomalies = errors.New("anomalies found")

func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "tradectl",
		Short:         "Validate trade records against a schema",
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logging.Init(logging.Config{Level: logLevel, Format: "console"})
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(newValidateCmd(), newSchemaCmd())
	return root
}

func newValidateCmd() *cobra.Command {
	var (
		schemaFile    string
		output        string
		sourceType    string
		dataPath      string
		failOnAnomaly bool
	)

	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a JSON or CSV file of records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "json" && output != "table" {
				return fmt.Errorf("unsupported output %q (want json or table)", output)
			}

			s, err := loadSchema(schemaFile)
			if err != nil {
				return err
			}

			path := args[0]
			if sourceType == "" {
				sourceType = source.FromExtension(path)
			}
			src, err := source.New(source.Config{Type: sourceType, Path: path, DataPath: dataPath}, s)
			if err != nil {
				return err
			}

			records, err := source.Collect(cmd.Context(), src)
			if err != nil {
				return err
			}

			report, err := schema.Validate(s, records)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if output == "json" {
				err = writeJSON(out, report)
			} else {
				err = writeTable(out, report)
			}
			if err != nil {
				return err
			}

			if failOnAnomaly && len(report.Anomalies) > 0 {
				return fmt.Errorf("%w: %d of %d records", errAnomalies, len(report.Anomalies), len(report.CleanedRecords))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&schemaFile, "schema", "", "YAML schema file (default: built-in trade schema)")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format: json or table")
	cmd.Flags().StringVar(&sourceType, "type", "", "input type: json or csv (default: from file extension)")
	cmd.Flags().StringVar(&dataPath, "data-path", "", "dot-separated key holding the JSON record array")
	cmd.Flags().BoolVar(&failOnAnomaly, "fail-on-anomaly", false, "exit non-zero when any record has an anomaly")
	return cmd
}

func newSchemaCmd() *cobra.Command {
	var schemaFile string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the active schema as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSchema(schemaFile)
			if err != nil {
				return err
			}
			data, err := schema.Marshal(s)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVar(&schemaFile, "schema", "", "YAML schema file to check and print")
	return cmd
}

func loadSchema(path string) (*schema.Schema, error) {
	if path == "" {
		return schema.TradeSchema(), nil
	}
	return schema.LoadFile(path)
}

func writeJSON(w io.Writer, report *schema.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func writeTable(w io.Writer, report *schema.Report) error {
	fmt.Fprintf(w, "Ingestion complete: %d transactions processed\n", len(report.CleanedRecords))
	fmt.Fprintf(w, "Found %d anomalies\n", len(report.Anomalies))
	if len(report.Anomalies) == 0 {
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.Header("Trade ID", "Issues")
	for _, a := range report.Anomalies {
		if err := table.Append([]string{a.RecordID, strings.Join(a.Issues, "; ")}); err != nil {
			return err
		}
	}
	return table.Render()
}

// run executes the root command with args; used by tests.
func run(ctx context.Context, out io.Writer, args ...string) error {
	root := newRootCmd()
	root.SetOut(out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tallyhq/tally/internal/config"
	"github.com/tallyhq/tally/internal/grid"
	"github.com/tallyhq/tally/internal/importer"
)

func newParseCommand() *cobra.Command {
	var strict bool
	var timezone string

	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse a statement and print its transactions without importing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			imp := config.ImportConfig{Strict: strict, Timezone: timezone}
			return runParse(args[0], imp, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "fail on the first malformed row instead of skipping it")
	cmd.Flags().StringVar(&timezone, "timezone", config.Default("").Import.Timezone, "IANA timezone for statement dates")

	return cmd
}

func runParse(path string, imp config.ImportConfig, out io.Writer) error {
	loc, err := imp.Location()
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening statement: %w", err)
	}
	defer f.Close()

	g, err := grid.Read(filepath.Base(path), f)
	if err != nil {
		return err
	}
	res, err := importer.DefaultRegistry(parserOptions(imp, loc)).ParseData(g)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Parser: %s (%s), %d transactions\n\n", res.Parser, res.ImportType, len(res.Transactions))
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tTYPE\tAMOUNT\tDOCUMENT\tDESCRIPTION")
	for _, t := range res.Transactions {
		doc := ""
		if t.Document != nil {
			doc = *t.Document
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			t.Date.Format("2006-01-02"), t.Type, t.Amount.StringFixed(2), doc, t.Description)
	}
	return tw.Flush()
}

func newParsersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "parsers",
		Short: "List the supported statement formats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, p := range importer.DefaultRegistry(importer.Options{}).Catalog() {
				fmt.Fprintf(out, "%-10s %s\n", p.Name, p.Description)
			}
			return nil
		},
	}
}

package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tallyhq/tally/internal/batch"
	"github.com/tallyhq/tally/internal/importer"
)

type importOptions struct {
	commit    bool
	accountID string
	cardID    string
}

func newImportCommand(configPath *string) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import every statement waiting in the inbox",
		Long: "Uploads each statement in the inbox directory as an import batch for review.\n" +
			"With --commit, every row is confirmed and booked to --account or --card.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), *configPath, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&opts.commit, "commit", false, "confirm all rows and commit them to the ledger")
	cmd.Flags().StringVar(&opts.accountID, "account", "", "account id to book committed rows to")
	cmd.Flags().StringVar(&opts.cardID, "card", "", "credit card id to book committed rows to")

	return cmd
}

func runImport(ctx context.Context, configPath string, opts importOptions, out io.Writer) error {
	e, err := openEnv(ctx, configPath, nil)
	if err != nil {
		return err
	}
	defer e.Close()

	ws, err := e.workspace()
	if err != nil {
		return err
	}
	inbox := e.path(e.cfg.Import.InboxDir)

	files, err := importer.Scan(inbox)
	if err != nil {
		return fmt.Errorf("scanning inbox: %w", err)
	}
	if len(files) == 0 {
		fmt.Fprintf(out, "No statements in %s\n", inbox)
		return nil
	}

	var failed int
	for _, fi := range files {
		if err := importFile(ctx, e, ws, fi, opts, out); err != nil {
			failed++
			e.logger.Warn("import failed", "file", fi.Name, "err", err)
			continue
		}
		if err := importer.MarkProcessed(inbox, fi.Name); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "Imported %d of %d statements\n", len(files)-failed, len(files))
	if failed > 0 {
		return fmt.Errorf("%d statements failed to import", failed)
	}
	return nil
}

func importFile(ctx context.Context, e *env, ws string, fi importer.FileInfo, opts importOptions, out io.Writer) error {
	f, err := os.Open(fi.Path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", fi.Name, err)
	}
	defer f.Close()

	b, err := e.batches.Upload(ctx, batch.UploadParams{WorkspaceID: ws, FileName: fi.Name, File: f})
	if err != nil {
		return err
	}
	if !opts.commit {
		fmt.Fprintf(out, "%s: %d rows parsed by %s, batch %s awaiting review\n", fi.Name, len(b.Rows), b.Parser, b.ID)
		return nil
	}

	res, err := e.batches.Confirm(ctx, ws, b.ID, batch.ConfirmParams{
		AccountID: opts.accountID,
		CardID:    opts.cardID,
		All:       true,
	})
	if err != nil {
		// The file stays in the inbox; drop its batch so a rerun starts clean.
		if derr := e.batches.Delete(ctx, ws, b.ID); derr != nil {
			e.logger.Error("discarding batch", "batch", b.ID, "err", derr)
		}
		return err
	}
	fmt.Fprintf(out, "%s: %d transactions committed from batch %s\n", fi.Name, len(res.Transactions), b.ID)
	return nil
}

package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/54b3r/docqa-go/internal/ingestion"
	"github.com/54b3r/docqa-go/internal/logging"
)

// NewIngestCmd constructs the `docqa ingest` command, which runs local
// files through the same pipeline as POST /api/documents.
func NewIngestCmd() *cobra.Command {
	var owner string
	var files []string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Store and index local documents for an owner",
		Long: `Extract, chunk, store and index local documents for an owner.

Supported formats: .pdf (needs pdftotext on PATH), .docx, .txt, .md.
Each file is processed independently; a failure stops the run.

Examples:
  docqa ingest --owner alice --file handbook.pdf
  docqa ingest --owner alice --file a.md --file b.docx`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			owner, err := ownerFlag(owner)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			if len(files) == 0 {
				return fmt.Errorf("ingest: at least one --file is required")
			}

			a, err := buildApp(ctx, log, false)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer a.Close()

			for _, path := range files {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
				res, err := a.pipeline.Ingest(ctx, ingestion.Upload{
					OwnerID:  owner,
					Filename: filepath.Base(path),
					Data:     data,
				})
				if err != nil {
					return fmt.Errorf("ingest: %s: %w", path, err)
				}
				log.Info("ingested",
					slog.String("file", path),
					slog.String("doc_id", res.Document.ID),
					slog.Int("fragments", res.Fragments),
				)
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d fragments\n", res.Document.ID, res.Document.Filename, res.Fragments)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&owner, "owner", "o", "", "Owner the documents belong to")
	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "Document to ingest (repeatable)")

	return cmd
}

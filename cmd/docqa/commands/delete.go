package commands

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/54b3r/docqa-go/internal/lifecycle"
	"github.com/54b3r/docqa-go/internal/logging"
)

// NewDeleteCmd constructs the `docqa delete` command.
func NewDeleteCmd() *cobra.Command {
	var owner, from string

	cmd := &cobra.Command{
		Use:   "delete <document-id>",
		Short: "Delete a document from the index, storage and metadata",
		Long: `Delete a document from the vector index, blob storage and metadata store,
in that order. When a step fails the command names it; rerun with --from to
continue from that step.

Examples:
  docqa delete --owner alice 6f1c...
  docqa delete --owner alice --from blob 6f1c...`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			owner, err := ownerFlag(owner)
			if err != nil {
				return fmt.Errorf("delete: %w", err)
			}
			step := lifecycle.Step(from)
			if !slices.Contains(lifecycle.Steps, step) {
				return fmt.Errorf("delete: unknown step %q (valid: index, blob, metadata)", from)
			}

			a, err := buildApp(ctx, log, false)
			if err != nil {
				return fmt.Errorf("delete: %w", err)
			}
			defer a.Close()

			doc, err := a.docs.Get(ctx, owner, args[0])
			if err != nil {
				return fmt.Errorf("delete: %w", err)
			}
			if err := a.deleter.Resume(ctx, doc, step); err != nil {
				if failed, ok := lifecycle.FailedStep(err); ok {
					return fmt.Errorf("delete: %w (retry with --from %s)", err, failed)
				}
				return fmt.Errorf("delete: %w", err)
			}

			log.Info("deleted", slog.String("doc_id", doc.ID), slog.String("from", from))
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s (%s)\n", doc.ID, doc.Filename)
			return nil
		},
	}

	cmd.Flags().StringVarP(&owner, "owner", "o", "", "Owner of the document")
	cmd.Flags().StringVar(&from, "from", string(lifecycle.StepIndex), "Step to start from: index, blob or metadata")

	return cmd
}

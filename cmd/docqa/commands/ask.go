package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/docqa-go/internal/citation"
	"github.com/54b3r/docqa-go/internal/logging"
	"github.com/54b3r/docqa-go/internal/tracing"
)

// NewAskCmd constructs the `docqa ask` command, which answers one question
// from an owner's documents and streams the answer to stdout.
func NewAskCmd() *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question about an owner's documents",
		Long: `Ask a question answered from an owner's ingested documents.

Answer text is printed as it streams; the sources cited by the model are
listed after the answer.

Examples:
  docqa ask --owner alice "when are invoices due?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			owner, err := ownerFlag(owner)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			flush := tracing.Enable(log)
			defer flush()

			a, err := buildApp(ctx, log, true)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer a.Close()

			events, err := a.chat.Stream(ctx, owner, strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			return printAnswer(cmd, events)
		},
	}

	cmd.Flags().StringVarP(&owner, "owner", "o", "", "Owner whose documents are searched")

	return cmd
}

// printAnswer writes text events as they arrive and lists citations once
// the stream ends. A model failure is returned after the partial answer.
func printAnswer(cmd *cobra.Command, events <-chan citation.Event) error {
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

	var cites []citation.Citation
	var failure error
	for ev := range events {
		switch ev.Kind {
		case citation.KindText:
			fmt.Fprintln(out, ev.Text)
		case citation.KindCitation:
			cites = append(cites, ev.Citation)
		case citation.KindError:
			if errors.Is(ev.Err, citation.ErrModelStreamFailed) {
				failure = ev.Err
				continue
			}
			fmt.Fprintf(errOut, "warning: %v\n", ev.Err)
		}
	}

	if len(cites) > 0 {
		fmt.Fprintln(out, "\nSources:")
		for i, c := range cites {
			fmt.Fprintf(out, "  [%d] %s (doc %s): %s\n", i+1, c.Filename, c.DocID, c.Snippet)
		}
	}
	if failure != nil {
		return fmt.Errorf("ask: %w", failure)
	}
	return nil
}

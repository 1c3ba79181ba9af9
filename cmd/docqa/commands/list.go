package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// NewListCmd constructs the `docqa list` command.
func NewListCmd() *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List an owner's documents, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			owner, err := ownerFlag(owner)
			if err != nil {
				return fmt.Errorf("list: %w", err)
			}

			docs, err := buildDocumentStore()
			if err != nil {
				return fmt.Errorf("list: %w", err)
			}
			defer docs.Close()

			list, err := docs.List(cmd.Context(), owner)
			if err != nil {
				return fmt.Errorf("list: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tFILENAME\tCREATED")
			for _, d := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", d.ID, d.Filename, d.CreatedAt.Local().Format(time.DateTime))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVarP(&owner, "owner", "o", "", "Owner whose documents are listed")

	return cmd
}

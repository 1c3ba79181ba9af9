// Package commands defines all Cobra CLI commands for the docqa binary.
package commands

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/54b3r/docqa-go/internal/audit"
	"github.com/54b3r/docqa-go/internal/config"
	"github.com/54b3r/docqa-go/internal/logging"
)

var (
	// configPath holds the --config flag value for YAML config file override.
	configPath string
	// envFile holds the --env-file flag value.
	envFile string
	// loadedConfigPath stores the resolved config file path for audit logging.
	loadedConfigPath string
)

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "docqa",
		Short: "docqa: ask questions about your documents, with citations",
		Long: `docqa stores uploaded PDF, DOCX, text and Markdown documents, indexes them
per owner in a vector store, and answers questions with a generative model.
Answers stream as text and citation events naming the source document.

Backends are selected through environment variables (MODEL_PROVIDER,
VECTOR_BACKEND, BLOB_BACKEND, ...), a .env file, or a YAML config file
(~/.docqa/config.yaml). Environment variables always win.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := config.LoadDotEnv(envFile); err != nil {
				return err
			}

			// Logger is built after .env so LOG_* from the file apply.
			log := logging.New()
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// YAML may have set LOG_* too.
			log = logging.New()
			slog.SetDefault(log)
			cmd.SetContext(logging.WithLogger(cmd.Context(), log))

			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.docqa/config.yaml)")
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to a .env file (default: ./.env)")

	root.AddCommand(
		NewServeCmd(),
		NewIngestCmd(),
		NewAskCmd(),
		NewListCmd(),
		NewDeleteCmd(),
		NewVersionCmd(),
	)

	return root
}

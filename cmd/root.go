package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/logging"
)

var (
	flagDBPath        string
	flagCatalogDir    string
	flagTemplatesPath string
	flagLogLevel      string
)

var rootCmd = &cobra.Command{
	Use:   "askdb",
	Short: "Ask questions about your database in natural language",
	Long: `askdb turns natural language questions into safe, read-only SQL.

Questions pass through a staged pipeline: similar past queries are retrieved
as examples, a candidate query is generated against the table catalog,
validated against the detailed schemas of the tables it references, checked
by a deterministic safety linter, and executed over a read-only connection.
Successful queries are stored as templates to improve future answers.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	ctx := context.Background()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db-path", "", "Path to the target DuckDB database")
	rootCmd.PersistentFlags().StringVar(&flagCatalogDir, "catalog-dir", "", "Directory holding the table catalog")
	rootCmd.PersistentFlags().StringVar(&flagTemplatesPath, "templates-path", "", "Path to the template index database")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
}

// loadConfig resolves configuration from file, environment, and the
// persistent flags, and initializes logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithOverrides(map[string]interface{}{
		"db-path":        flagDBPath,
		"catalog-dir":    flagCatalogDir,
		"templates-path": flagTemplatesPath,
		"log-level":      flagLogLevel,
	})
	if err != nil {
		return nil, err
	}

	cfg.ExpandAllPaths()

	if err := logging.InitializeLogger(cfg.Logging); err != nil {
		return nil, err
	}

	return cfg, nil
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Display the active configuration",
	Long:  `Show the current active configuration from file, environment variables, and command-line flags.`,
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Println("Active Configuration:")

	fmt.Println("\nDatabase:")
	fmt.Printf("  Path: %s\n", cfg.Database.Path)
	fmt.Printf("  Max Connections: %d\n", cfg.Database.MaxConnections)
	fmt.Printf("  Query Timeout: %s\n", cfg.Database.QueryTimeout)
	fmt.Printf("  Row Cap: %d\n", cfg.Database.RowCap)

	fmt.Println("\nCatalog:")
	fmt.Printf("  Dir: %s\n", cfg.Catalog.Dir)
	fmt.Printf("  Watch: %t\n", cfg.Catalog.Watch)

	fmt.Println("\nTemplates:")
	fmt.Printf("  Path: %s\n", cfg.Templates.Path)
	fmt.Printf("  Seed File: %s\n", cfg.Templates.SeedFile)

	fmt.Println("\nLLM:")
	fmt.Printf("  Provider: %s\n", cfg.LLM.Provider)
	fmt.Printf("  Model: %s\n", cfg.LLM.Model)
	fmt.Printf("  Base URL: %s\n", cfg.LLM.BaseURL)
	fmt.Printf("  Timeout: %s\n", cfg.LLM.Timeout)

	fmt.Println("\nEmbedding:")
	fmt.Printf("  Provider: %s\n", cfg.Embedding.Provider)
	fmt.Printf("  Dimensions: %d\n", cfg.Embedding.Dimensions)

	fmt.Println("\nPipeline:")
	fmt.Printf("  Retry Budget: %d\n", cfg.Pipeline.RetryBudget)
	fmt.Printf("  Max Templates: %d\n", cfg.Pipeline.MaxTemplates)
	fmt.Printf("  Reuse Threshold: %.2f\n", cfg.Pipeline.ReuseThreshold)
	fmt.Printf("  Learning Disabled: %t\n", cfg.Pipeline.LearningDisabled)

	fmt.Println("\nServer:")
	fmt.Printf("  Addr: %s\n", cfg.Server.Addr)

	fmt.Println("\nLogging:")
	fmt.Printf("  Level: %s\n", cfg.Logging.Level)
	fmt.Printf("  Format: %s\n", cfg.Logging.Format)
	fmt.Printf("  Output: %s\n", cfg.Logging.Output)

	return nil
}

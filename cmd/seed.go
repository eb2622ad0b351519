package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/askdb/askdb/internal/embedding"
	askerr "github.com/askdb/askdb/internal/errors"
	"github.com/askdb/askdb/internal/llm"
	"github.com/askdb/askdb/internal/template"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load curated question/SQL templates from a YAML file",
	Long: `Load a seed file of question/SQL pairs into the template index.

Seeding is idempotent: pairs already present are skipped, so the command can
be re-run after editing the seed file. Pairs that fail the safety check are
reported and never stored.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&seedFile, "file", "", "Seed file path (defaults to the configured seed file)")

	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	path := seedFile
	if path == "" {
		path = cfg.Templates.SeedFile
	}

	if path == "" {
		return askerr.New(askerr.KindValidation, "no seed file given: pass --file or set templates.seed_file")
	}

	svc, err := llm.NewService(cfg.LLM)
	if err != nil {
		return askerr.Wrap(err, askerr.KindConfig, "failed to initialize language model service")
	}

	provider, err := embedding.NewProvider(cfg.Embedding, svc)
	if err != nil {
		return askerr.Wrap(err, askerr.KindConfig, "failed to initialize embedding provider")
	}

	index, err := template.NewIndex(cfg.Templates.Path)
	if err != nil {
		return err
	}
	defer index.Close()

	if err := index.Initialize(ctx); err != nil {
		return err
	}

	result, err := index.SeedFromFile(ctx, path, provider)
	if err != nil {
		return err
	}

	fmt.Printf("Loaded %d template(s) from %s\n", result.Loaded, path)

	for _, rejection := range result.Rejected {
		fmt.Printf("  skipped: %s\n", rejection)
	}

	return nil
}

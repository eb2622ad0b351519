package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/askdb/askdb/internal/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the table catalog",
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog tables",
	RunE:  runCatalogList,
}

var catalogShowCmd = &cobra.Command{
	Use:   "show <table>",
	Short: "Show the detailed schema for one table",
	Args:  cobra.ExactArgs(1),
	RunE:  runCatalogShow,
}

func init() {
	catalogCmd.AddCommand(catalogListCmd)
	catalogCmd.AddCommand(catalogShowCmd)

	rootCmd.AddCommand(catalogCmd)
}

func runCatalogList(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store := catalog.NewStore(cfg.Catalog)
	if err := store.Load(); err != nil {
		return err
	}

	entries, err := store.Light()
	if err != nil {
		return err
	}

	fmt.Printf("Catalog version %d, %d table(s)\n\n", store.Version(), len(entries))
	fmt.Print(catalog.FormatLight(entries))

	return nil
}

func runCatalogShow(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store := catalog.NewStore(cfg.Catalog)
	if err := store.Load(); err != nil {
		return err
	}

	schema, err := store.TableSchema(strings.ToLower(args[0]))
	if err != nil {
		return err
	}

	fmt.Print(catalog.FormatSchemas([]*catalog.TableSchema{schema}))

	return nil
}

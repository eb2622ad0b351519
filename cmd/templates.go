package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/askdb/askdb/internal/template"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Inspect and maintain the template index",
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored templates",
	RunE:  runTemplatesList,
}

var templatesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a template by id",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplatesDelete,
}

func init() {
	templatesCmd.AddCommand(templatesListCmd)
	templatesCmd.AddCommand(templatesDeleteCmd)

	rootCmd.AddCommand(templatesCmd)
}

func openTemplateIndex(cmd *cobra.Command) (*template.Index, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	index, err := template.NewIndex(cfg.Templates.Path)
	if err != nil {
		return nil, err
	}

	if err := index.Initialize(cmd.Context()); err != nil {
		index.Close()
		return nil, err
	}

	return index, nil
}

func runTemplatesList(cmd *cobra.Command, _ []string) error {
	index, err := openTemplateIndex(cmd)
	if err != nil {
		return err
	}
	defer index.Close()

	templates, err := index.List(cmd.Context())
	if err != nil {
		return err
	}

	if len(templates) == 0 {
		fmt.Println("No templates stored.")
		return nil
	}

	for _, t := range templates {
		fmt.Printf("%s  [%s, used %d time(s)]\n", t.ID, t.Source, t.UsageCount)
		fmt.Printf("  Q: %s\n", t.QuestionText)
		fmt.Printf("  SQL: %s\n\n", strings.TrimSpace(t.SQLText))
	}

	return nil
}

func runTemplatesDelete(cmd *cobra.Command, args []string) error {
	index, err := openTemplateIndex(cmd)
	if err != nil {
		return err
	}
	defer index.Close()

	if err := index.Delete(cmd.Context(), args[0]); err != nil {
		return err
	}

	fmt.Printf("Deleted template %s\n", args[0])

	return nil
}

package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/askdb/askdb/internal/format"
	"github.com/askdb/askdb/internal/pipeline"
)

var (
	askDebug  bool
	askOutput string
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a natural language question with a read-only SQL query",
	Long: `Run one question through the query pipeline and print the result.

Examples:
  askdb ask "How many pending orders per state?"
  askdb ask --output json "Top 10 partners by revenue this year"
  askdb ask --debug "Which products have never been sold?"`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askDebug, "debug", false, "Include pipeline trace information in the output")
	askCmd.Flags().StringVar(&askOutput, "output", "table", "Output format: table, json, or csv")

	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	question := strings.TrimSpace(args[0])
	if question == "" {
		return fmt.Errorf("question must not be empty")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " thinking..."
	s.Start()

	resp, abort := a.pipeline.Run(ctx, pipeline.Request{
		Question: question,
		Debug:    askDebug,
	})

	s.Stop()

	if abort != nil {
		fmt.Fprintf(os.Stderr, "query failed at %s stage: %s\n", abort.Stage, abort.Message)

		if askDebug && abort.Debug != nil {
			fmt.Fprintf(os.Stderr, "states: %s\n", strings.Join(abort.Debug.States, " -> "))
		}

		return fmt.Errorf("%s", abort.ErrorKind)
	}

	formatter := format.NewFormatter()
	fmt.Println(formatter.FormatResponse(resp, format.OutputFormat(askOutput)))

	return nil
}

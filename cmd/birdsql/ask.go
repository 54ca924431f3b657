package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/birdsql/internal/orchestrator"
)

var (
	askDatabaseID string
	askOutputJSON bool
)

func init() {
	askCmd.Flags().StringVar(&askDatabaseID, "db", "", "database id (inferred from the question when omitted)")
	askCmd.Flags().BoolVar(&askOutputJSON, "json", false, "output the full result as JSON")
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer one natural-language question with SQL",
	Long: `Run a single question through the agent pipeline and print the
generated SQL with its results.

Examples:
  # Ask against a known database
  birdsql ask --db california_schools "How many schools are in Alameda County?"

  # Let the interpreter infer the database from the question
  birdsql ask "In the sales database, what was the total revenue in Q4 2022?"`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	p, err := buildPipeline()
	if err != nil {
		return err
	}
	defer p.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result := p.orch.ProcessQuestion(ctx, args[0], askDatabaseID)

	if askOutputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	return printResult(result)
}

func printResult(r orchestrator.Result) error {
	if !r.Validated() {
		fmt.Printf("Status: %s\n", r.Status)
		if r.SQL != "" {
			fmt.Printf("Last SQL: %s\n", r.SQL)
		}
		if r.LastError != "" {
			fmt.Printf("Error: %s\n", r.LastError)
		}
		return fmt.Errorf("question not answered (%s)", r.Status)
	}

	fmt.Printf("SQL: %s\n\n", r.SQL)
	if r.Rows == nil || len(r.Rows.Rows) == 0 {
		fmt.Println("(no rows)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(r.Rows.Columns, "\t"))
	for _, row := range r.Rows.Rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return w.Flush()
}

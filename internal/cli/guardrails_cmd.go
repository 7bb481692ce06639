package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/inboxpilot/core/internal/guardrails"
	"github.com/spf13/cobra"
)

// guardrailsCmd represents the guardrails command group
var guardrailsCmd = &cobra.Command{
	Use:   "guardrails",
	Short: "Content guardrail tools",
}

var scanConfidence float64

// guardrailsScanCmd runs content through the default guardrail checks
var guardrailsScanCmd = &cobra.Command{
	Use:   "scan [file]",
	Short: "Scan content for guardrail violations",
	Long: `Run a file (or stdin when no file is given) through the guardrail
checks with the default configuration. Exits non-zero on violations.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var data []byte
		var err error
		if len(args) == 1 {
			data, err = os.ReadFile(args[0])
		} else {
			data, err = io.ReadAll(os.Stdin)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot read content: %v\n", err)
			os.Exit(1)
		}

		engine := guardrails.New(guardrails.DefaultConfig())
		result := engine.Validate(string(data), scanConfidence)

		if result.Passed {
			fmt.Println("OK: no violations")
			return
		}

		fmt.Printf("%d violations:\n", len(result.Violations))
		for _, v := range result.Violations {
			fmt.Printf("  [%s] %s (%s)\n", v.Type, v.Description, v.MatchedText)
		}
		os.Exit(1)
	},
}

func init() {
	guardrailsScanCmd.Flags().Float64Var(&scanConfidence, "confidence", 1.0, "reported confidence for the low-confidence check")
	guardrailsCmd.AddCommand(guardrailsScanCmd)
}

package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/inboxpilot/core/internal/rules"
	"github.com/spf13/cobra"
)

// rulesCmd represents the rules command group
var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Automation rule tools",
}

// ruleFile is the on-disk shape accepted by `rules check`
type ruleFile struct {
	Rules []struct {
		Name       string          `json:"name"`
		Priority   int             `json:"priority"`
		Action     string          `json:"action"`
		Conditions json.RawMessage `json:"conditions"`
	} `json:"rules"`
}

// rulesCheckCmd validates rule definition files without touching the database
var rulesCheckCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Validate a rule definition file",
	Long: `Parse a JSON rule definition file and report the first invalid rule.
Unknown fields, operators, and actions are rejected.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		data, err := os.ReadFile(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot read %s: %v\n", args[0], err)
			os.Exit(1)
		}

		var file ruleFile
		if err := json.Unmarshal(data, &file); err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid JSON: %v\n", err)
			os.Exit(1)
		}
		if len(file.Rules) == 0 {
			fmt.Fprintln(os.Stderr, "Error: no rules found")
			os.Exit(1)
		}

		for _, r := range file.Rules {
			if _, err := rules.ParseRuleAction(r.Action); err != nil {
				fmt.Fprintf(os.Stderr, "Rule %q: %v\n", r.Name, err)
				os.Exit(1)
			}
			if _, err := rules.ParseGroup(r.Conditions); err != nil {
				fmt.Fprintf(os.Stderr, "Rule %q: %v\n", r.Name, err)
				os.Exit(1)
			}
		}

		fmt.Printf("OK: %d rules valid\n", len(file.Rules))
	},
}

func init() {
	rulesCmd.AddCommand(rulesCheckCmd)
}

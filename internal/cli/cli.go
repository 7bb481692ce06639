package cli

import (
	"fmt"
	"os"

	"github.com/inboxpilot/core/internal/api/middleware"
	"github.com/inboxpilot/core/internal/config"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	db            *gorm.DB
	cfg           *config.Config
	apiKeyManager *middleware.APIKeyManager
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "inboxpilot",
	Short: "InboxPilot email agent backend",
	Long: `InboxPilot is an email automation agent that drafts, sends, and
routes replies based on user-defined rules and guardrails.

The command line tool provides:
  - key management: show and reset the API key
  - rule validation: check rule definition files before loading them
  - guardrail scanning: run content through the guardrail checks

Examples:
  inboxpilot key show               # show the current API key
  inboxpilot rules check rules.json # validate a rule definition file
  inboxpilot guardrails scan draft.txt`,
}

// Execute runs the CLI with the provided database and config
func Execute(database *gorm.DB, config *config.Config) {
	db = database
	cfg = config

	var err error
	apiKeyManager, err = middleware.NewAPIKeyManager(cfg.DataDir, cfg.APIKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize API key manager: %v\n", err)
		os.Exit(1)
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(guardrailsCmd)
}

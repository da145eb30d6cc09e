// Command cli normalizes bank statements into canonical JSON.
//
//	cli process --file statement.pdf
//	cli batch jan.pdf feb.pdf gs://bucket/mar.pdf --out-dir out/
//	cli runs --limit 20
package main

import (
	"fmt"
	"os"

	"github.com/dvloznov/statement-normalizer/internal/config"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	envFile  string
	logLevel string

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "cli",
	Short: "Normalize bank statements into a canonical ledger",
	Long: `Reads bank statements as PDF or plain text, extracts accounts and
transactions, reconciles running balances and prints canonical JSON.

Settings come from defaults, an optional YAML file (--config), a .env file
and STATEMENT_* environment variables, e.g. STATEMENT_MODEL_API_KEY.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(config.Options{File: cfgFile, EnvFile: envFile})
		if err != nil {
			return err
		}
		if logLevel != "" {
			loaded.Log.Level = logLevel
		}
		cfg = loaded
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a dotenv file; ignored if missing")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log.level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

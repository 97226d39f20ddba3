package cmd

import (
	"github.com/spf13/cobra"

	"github.com/abhisek/leetbuddy/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "leetbuddy",
	Short: "Solve one problem a day or stay blocked",
	Long: "leetbuddy keeps browsing blocked until today's assigned problem is solved.\n" +
		"Run `leetbuddy serve` to start the engine and its local API.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus(cmd)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides LEETBUDDY_DB env var)")
	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().String("env-file", "", "Path to dotenv file (default .env)")
	rootCmd.PersistentFlags().Bool("json", false, "Print results as JSON")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(solveCmd)
	rootCmd.AddCommand(bypassCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(switchCmd)
	rootCmd.AddCommand(policyCmd)
	rootCmd.AddCommand(progressCmd)
	rootCmd.AddCommand(excludeCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then LEETBUDDY_DB env var, then the default XDG path.
func resolveDBPath(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	return store.DefaultDBPath()
}

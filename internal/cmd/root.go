package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/planloop/planloop/internal/config"
	"github.com/planloop/planloop/internal/detect"
	"github.com/planloop/planloop/internal/git"
	"github.com/planloop/planloop/internal/host"
	"github.com/planloop/planloop/internal/logging"
	"github.com/planloop/planloop/internal/loop"
)

var rootCmd = &cobra.Command{
	Use:   "planloop",
	Short: "Unattended plan-driven work loop for agent sessions",
	Long: `Planloop keeps an agent session working through a markdown plan
without supervision. Each time the session goes idle the loop marks the
finished task complete, commits it, and injects the next task's prompt,
until the plan is done or an iteration limit is hit.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/planloop/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if _, err := os.Stat(".planloop.yaml"); err == nil {
		// A project-local config file wins over the per-user one.
		viper.SetConfigFile(".planloop.yaml")
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("PLANLOOP")
	// Replace dots with underscores for nested keys in env vars
	// e.g., PLANLOOP_LOOP_STATE_PATH for loop.state_path
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// resolvePlanPath picks the plan file for a command: an explicit --file
// wins, a --name selects a sibling of the configured plan by basename,
// and otherwise the configured path applies.
func resolvePlanPath(cfg *config.Config, file, name string) string {
	if file != "" {
		return file
	}
	if name != "" {
		return filepath.Join(filepath.Dir(cfg.Plan.Path), name+".md")
	}
	return cfg.Plan.Path
}

// newController wires a controller against the real host, repository,
// and state file.
func newController(cfg *config.Config, planPath string) (*loop.Controller, error) {
	logger, err := logging.New(cfg.Logging.Path, cfg.Logging.Level)
	if err != nil {
		return nil, err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}

	builder := &loop.PromptBuilder{
		PlanPath: planPath,
		ToolHint: detect.ToolHint(cwd),
	}
	client := host.NewHTTPClient(cfg.Host.BaseURL)
	committer := git.NewCommitter(cwd, cfg.Git.CommitTag)
	store := loop.NewStore(cfg.Loop.StatePath)

	return loop.NewController(store, builder, client, client, committer, logger), nil
}

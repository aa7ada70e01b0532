package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/planloop/planloop/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage planloop configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Write the default configuration as YAML. Fails if the file already exists.`,
	RunE:  runConfigInit,
}

var configInitPath string

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().StringVar(&configInitPath, "path", "", "where to write the config (default $HOME/.config/planloop/config.yaml)")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configInitPath
	if path == "" {
		path = filepath.Join(config.ConfigDir(), "config.yaml")
	}

	if err := config.WriteDefault(path); err != nil {
		return err
	}
	fmt.Printf("Wrote default config to %s\n", path)
	return nil
}

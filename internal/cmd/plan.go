package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/planloop/planloop/internal/config"
	"github.com/planloop/planloop/internal/plan"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Create and inspect the plan file",
}

var planCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a templated plan file",
	Long: `Create a new markdown plan from the built-in template. Fails if the
plan file already exists.`,
	RunE: runPlanCreate,
}

var planViewCmd = &cobra.Command{
	Use:   "view",
	Short: "Print the plan file",
	RunE:  runPlanView,
}

var planSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Overwrite the plan file with the given content",
	RunE:  runPlanSave,
}

var (
	planFile    string
	planTitle   string
	planPromise string
	planContent string
)

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.AddCommand(planCreateCmd)
	planCmd.AddCommand(planViewCmd)
	planCmd.AddCommand(planSaveCmd)

	planCmd.PersistentFlags().StringVar(&planFile, "file", "", "plan file path (default from config)")
	planCreateCmd.Flags().StringVar(&planTitle, "name", "", "plan title")
	planCreateCmd.Flags().StringVar(&planPromise, "promise", "", "completion promise phrase")
	planSaveCmd.Flags().StringVar(&planContent, "content", "", "full plan markdown to write")
}

func runPlanCreate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	path := resolvePlanPath(cfg, planFile, "")

	data := plan.TemplateData{Title: planTitle, CompletionPhrase: planPromise}
	if err := plan.Create(path, data); err != nil {
		return err
	}

	fmt.Printf("Created plan at %s\n", path)
	return nil
}

func runPlanView(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	doc, err := plan.Load(resolvePlanPath(cfg, planFile, ""))
	if err != nil {
		return err
	}

	fmt.Print(doc.RawText)
	return nil
}

func runPlanSave(cmd *cobra.Command, args []string) error {
	if planContent == "" {
		return fmt.Errorf("--content is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	path := resolvePlanPath(cfg, planFile, "")

	if err := plan.Save(path, planContent); err != nil {
		return err
	}

	doc := plan.Parse(planContent)
	fmt.Printf("Saved plan at %s (%d tasks)\n", path, len(doc.Tasks))
	return nil
}

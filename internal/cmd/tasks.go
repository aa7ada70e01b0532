package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/planloop/planloop/internal/config"
	"github.com/planloop/planloop/internal/plan"
	"github.com/planloop/planloop/internal/util"
)

// taskTitleWidth bounds titles in the listing so one long task cannot
// wrap the whole table.
const taskTitleWidth = 72

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List the plan's tasks",
	RunE:  runTasks,
}

var tasksFile string

func init() {
	rootCmd.AddCommand(tasksCmd)
	tasksCmd.Flags().StringVar(&tasksFile, "file", "", "plan file path (default from config)")
}

func runTasks(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	doc, err := plan.Load(resolvePlanPath(cfg, tasksFile, ""))
	if err != nil {
		return err
	}

	if doc.Title != "" {
		fmt.Printf("%s\n", doc.Title)
	}
	done := doc.CountByStatus(plan.StatusCompleted)
	fmt.Printf("%d/%d tasks done", done, len(doc.Tasks))
	if doc.CompletionPhrase != "" {
		fmt.Printf("  (promise: %s)", doc.CompletionPhrase)
	}
	fmt.Println()
	fmt.Println()

	for i, task := range doc.Tasks {
		marker := " "
		if task.IsCompleted() {
			marker = "x"
		}
		fmt.Printf("[%s] %2d. %s\n", marker, i+1, util.TruncateString(task.Title, taskTitleWidth))
	}
	return nil
}

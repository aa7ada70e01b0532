package cmd

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/planloop/planloop/internal/config"
	"github.com/planloop/planloop/internal/loop"
	"github.com/planloop/planloop/internal/plan"
	"github.com/planloop/planloop/internal/tui"
)

var loopCmd = &cobra.Command{
	Use:   "loop",
	Short: "Start, inspect, or cancel the work loop",
}

var loopStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start working through the plan's pending tasks",
	Long: `Start an unattended loop over the plan. On every session idle event
the loop marks the current task complete, commits it, and injects the
next pending task's prompt. Exactly one loop may be active at a time.`,
	RunE: runLoopStart,
}

var loopCancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel the active loop",
	RunE:  runLoopCancel,
}

var loopStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the loop state",
	RunE:  runLoopStatus,
}

var (
	loopFile          string
	loopName          string
	loopMaxIterations int
	loopSession       string
	loopWatch         bool
)

func init() {
	rootCmd.AddCommand(loopCmd)
	loopCmd.AddCommand(loopStartCmd)
	loopCmd.AddCommand(loopCancelCmd)
	loopCmd.AddCommand(loopStatusCmd)

	loopStartCmd.Flags().StringVar(&loopFile, "file", "", "plan file path (default from config)")
	loopStartCmd.Flags().StringVar(&loopName, "name", "", "plan name, resolved next to the configured plan file")
	loopStartCmd.Flags().IntVar(&loopMaxIterations, "max-iterations", 0, "iteration bound, 0 for unbounded (default from config)")
	loopStartCmd.Flags().StringVar(&loopSession, "session", "", "host session to drive")
	loopStatusCmd.Flags().BoolVar(&loopWatch, "watch", false, "live status view")
}

func runLoopStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	planPath := resolvePlanPath(cfg, loopFile, loopName)

	maxIterations := loopMaxIterations
	if !cmd.Flags().Changed("max-iterations") {
		maxIterations = cfg.Loop.DefaultMaxIterations
	}

	ctrl, err := newController(cfg, planPath)
	if err != nil {
		return err
	}

	err = ctrl.StartPlanLoop(cmd.Context(), loop.StartOptions{
		PlanPath:      planPath,
		MaxIterations: maxIterations,
		SessionID:     loopSession,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Loop started on %s", planPath)
	if maxIterations > 0 {
		fmt.Printf(" (max %d iterations)", maxIterations)
	}
	fmt.Println()
	if loopSession == "" {
		fmt.Println("No session given; the loop begins on the next idle event.")
	}
	return nil
}

func runLoopCancel(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctrl, err := newController(cfg, cfg.Plan.Path)
	if err != nil {
		return err
	}

	iterations, err := ctrl.Cancel()
	if err != nil {
		return err
	}
	fmt.Printf("Loop cancelled after %d iterations\n", iterations)
	return nil
}

func runLoopStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	store := loop.NewStore(cfg.Loop.StatePath)

	if loopWatch {
		_, err := tea.NewProgram(tui.NewStatusModel(store)).Run()
		return err
	}

	st, err := store.Load()
	if err != nil {
		return err
	}
	if st == nil {
		fmt.Println("No active loop")
		return nil
	}

	fmt.Printf("Mode: %s\n", st.Mode)
	if st.MaxIterations > 0 {
		fmt.Printf("Iteration: %d of %d\n", st.Iteration, st.MaxIterations)
	} else {
		fmt.Printf("Iteration: %d\n", st.Iteration)
	}
	if st.SessionID != "" {
		fmt.Printf("Session: %s\n", st.SessionID)
	}
	if st.HasTask() {
		fmt.Printf("Current task: %s (#%d)\n", st.CurrentTaskID, st.CurrentTaskOrdinal)
	}
	if st.PlanPath != "" {
		if doc, derr := plan.Load(st.PlanPath); derr == nil {
			fmt.Printf("Plan: %s (%d/%d tasks done)\n", st.PlanPath,
				doc.CountByStatus(plan.StatusCompleted), len(doc.Tasks))
		}
	}
	fmt.Printf("Started: %s\n", st.StartedAt.Format(time.RFC3339))
	return nil
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/planloop/planloop/internal/config"
	"github.com/planloop/planloop/internal/loop"
)

var freeformCmd = &cobra.Command{
	Use:   "freeform",
	Short: "Run a plan-less prompt loop",
	Long: `Run the legacy freeform loop: the same prompt is re-injected every
time the session goes idle, until the session emits the completion
promise or the iteration limit is reached.`,
}

var freeformStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a freeform loop",
	RunE:  runFreeformStart,
}

var freeformCancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel the active freeform loop",
	RunE:  runFreeformCancel,
}

var freeformStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the freeform loop state",
	RunE:  runLoopStatus,
}

var (
	freeformPrompt        string
	freeformPromise       string
	freeformMaxIterations int
	freeformSession       string
)

func init() {
	rootCmd.AddCommand(freeformCmd)
	freeformCmd.AddCommand(freeformStartCmd)
	freeformCmd.AddCommand(freeformCancelCmd)
	freeformCmd.AddCommand(freeformStatusCmd)

	freeformStartCmd.Flags().StringVar(&freeformPrompt, "prompt", "", "prompt to re-send each iteration (required)")
	freeformStartCmd.Flags().StringVar(&freeformPromise, "promise", "", "completion phrase that stops the loop")
	freeformStartCmd.Flags().IntVar(&freeformMaxIterations, "max-iterations", 0, "iteration bound, 0 for unbounded")
	freeformStartCmd.Flags().StringVar(&freeformSession, "session", "", "host session to drive")
	_ = freeformStartCmd.MarkFlagRequired("prompt")
}

func runFreeformStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctrl, err := newController(cfg, cfg.Plan.Path)
	if err != nil {
		return err
	}

	err = ctrl.StartFreeform(cmd.Context(), freeformPrompt, freeformPromise, freeformMaxIterations, freeformSession)
	if err != nil {
		return err
	}

	fmt.Println("Freeform loop started")
	if freeformPromise == "" {
		fmt.Println("Warning: no --promise given; only the iteration limit or cancel will stop it.")
	}
	return nil
}

func runFreeformCancel(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store := loop.NewStore(cfg.Loop.StatePath)
	if st, err := store.Load(); err != nil {
		return err
	} else if st != nil && st.Mode != loop.ModeFreeformLoop {
		return fmt.Errorf("active loop is a %s, not a freeform loop; use loop cancel", st.Mode)
	}

	ctrl, err := newController(cfg, cfg.Plan.Path)
	if err != nil {
		return err
	}

	iterations, err := ctrl.Cancel()
	if err != nil {
		return err
	}
	fmt.Printf("Freeform loop cancelled after %d iterations\n", iterations)
	return nil
}

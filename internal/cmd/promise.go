package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/planloop/planloop/internal/config"
	"github.com/planloop/planloop/internal/loop"
	"github.com/planloop/planloop/internal/plan"
	"github.com/planloop/planloop/internal/promise"
)

var promiseCmd = &cobra.Command{
	Use:   "promise",
	Short: "Work with completion promises",
}

var promiseCheckCmd = &cobra.Command{
	Use:   "check [TEXT|-]",
	Short: "Check text for the plan's completion promise",
	Long: `Scan text for a <promise>...</promise> span and compare it against the
configured completion phrase. Reads stdin when TEXT is "-" or omitted.
Exits nonzero when the promise is missing or does not match.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPromiseCheck,
}

func init() {
	rootCmd.AddCommand(promiseCmd)
	promiseCmd.AddCommand(promiseCheckCmd)
}

func runPromiseCheck(cmd *cobra.Command, args []string) error {
	text, err := promiseInput(cmd, args)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	msg, err := checkPromise(text, currentPhrase(cfg))
	if err != nil {
		return err
	}
	fmt.Println(msg)
	return nil
}

func promiseInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return string(data), nil
}

// currentPhrase resolves the phrase to check against: an active loop's
// phrase wins, then the plan's declaration.
func currentPhrase(cfg *config.Config) string {
	if st, err := loop.NewStore(cfg.Loop.StatePath).Load(); err == nil && st != nil && st.CompletionPhrase != "" {
		return st.CompletionPhrase
	}
	if doc, err := plan.Load(cfg.Plan.Path); err == nil {
		return doc.CompletionPhrase
	}
	return ""
}

// checkPromise runs the detector and phrase comparison, returning a
// printable result or an error the shell can branch on.
func checkPromise(text, phrase string) (string, error) {
	got, ok := promise.Extract(text)
	if !ok {
		return "", fmt.Errorf("no promise found")
	}
	if phrase == "" {
		return fmt.Sprintf("Found promise %q (no completion phrase configured)", got), nil
	}
	if got != phrase {
		return "", fmt.Errorf("promise %q does not match phrase %q", got, phrase)
	}
	return fmt.Sprintf("Promise matches %q", phrase), nil
}

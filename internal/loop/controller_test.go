package loop

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/planloop/planloop/internal/git"
	"github.com/planloop/planloop/internal/host"
	"github.com/planloop/planloop/internal/plan"
)

const threeTaskPlan = `# Demo Migration

completion_promise: DEMO_DONE

## Overview

Move the demo service onto the new schema.

## Tasks

- [ ] Add the new tables
- [ ] **Backfill existing rows**
  Use batches of 1000.
- [ ] Drop the old columns
`

type commitCall struct {
	ordinal int
	title   string
}

type fakeCommitter struct {
	err   error
	calls []commitCall
}

func (f *fakeCommitter) CommitTask(ordinal int, title string) (git.Result, error) {
	if f.err != nil {
		return git.Result{}, f.err
	}
	f.calls = append(f.calls, commitCall{ordinal: ordinal, title: title})
	return git.Result{Subject: fmt.Sprintf("planloop: task %d - %s", ordinal, title)}, nil
}

type testRig struct {
	ctrl      *Controller
	mock      *host.Mock
	committer *fakeCommitter
	store     *Store
	planPath  string
}

func newTestRig(t *testing.T, planText string) *testRig {
	t.Helper()
	dir := t.TempDir()

	planPath := filepath.Join(dir, "PLAN.md")
	if err := plan.Save(planPath, planText); err != nil {
		t.Fatal(err)
	}

	store := NewStore(filepath.Join(dir, "loop.json"))
	mock := &host.Mock{}
	committer := &fakeCommitter{}
	builder := &PromptBuilder{PlanPath: planPath}

	return &testRig{
		ctrl:      NewController(store, builder, mock, mock, committer, nil),
		mock:      mock,
		committer: committer,
		store:     store,
		planPath:  planPath,
	}
}

func (r *testRig) idle(t *testing.T, sessionID string) {
	t.Helper()
	if err := r.ctrl.HandleSessionIdle(context.Background(), Event{SessionID: sessionID}); err != nil {
		t.Fatalf("HandleSessionIdle() error = %v", err)
	}
}

func (r *testRig) planText(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(r.planPath)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestController_PlanLoopRunsToCompletion(t *testing.T) {
	r := newTestRig(t, threeTaskPlan)

	err := r.ctrl.StartPlanLoop(context.Background(), StartOptions{
		PlanPath:  r.planPath,
		SessionID: "ses-1",
	})
	if err != nil {
		t.Fatalf("StartPlanLoop() error = %v", err)
	}

	st, _ := r.store.Load()
	if st == nil || st.CurrentTaskID != "task-1" || st.Iteration != 1 {
		t.Fatalf("after start: state = %+v", st)
	}
	if len(r.mock.Injected) != 1 {
		t.Fatalf("start should inject one prompt, got %d", len(r.mock.Injected))
	}
	if !strings.Contains(r.mock.Injected[0].Text, "Task 1 of 3: Add the new tables") {
		t.Errorf("first prompt = %q", r.mock.Injected[0].Text)
	}

	r.idle(t, "ses-1")
	st, _ = r.store.Load()
	if st == nil || st.CurrentTaskID != "task-2" || st.Iteration != 2 {
		t.Fatalf("after first idle: state = %+v", st)
	}
	if got := strings.Count(r.planText(t), "- [x]"); got != 1 {
		t.Errorf("plan should have 1 checked task, has %d", got)
	}

	r.idle(t, "ses-1")
	r.idle(t, "ses-1")

	st, _ = r.store.Load()
	if st != nil {
		t.Errorf("loop should be idle after the last task, state = %+v", st)
	}
	if got := strings.Count(r.planText(t), "- [x]"); got != 3 {
		t.Errorf("plan should have 3 checked tasks, has %d", got)
	}

	if len(r.committer.calls) != 3 {
		t.Fatalf("committer calls = %d, want 3", len(r.committer.calls))
	}
	want := []commitCall{
		{1, "Add the new tables"},
		{2, "Backfill existing rows"},
		{3, "Drop the old columns"},
	}
	for i, w := range want {
		if r.committer.calls[i] != w {
			t.Errorf("commit[%d] = %+v, want %+v", i, r.committer.calls[i], w)
		}
	}

	if len(r.mock.Toasts) != 1 || r.mock.Toasts[0].Variant != "success" {
		t.Errorf("toasts = %+v", r.mock.Toasts)
	}
}

func TestController_PlanLoopIterationLimit(t *testing.T) {
	r := newTestRig(t, threeTaskPlan)

	err := r.ctrl.StartPlanLoop(context.Background(), StartOptions{
		PlanPath:      r.planPath,
		MaxIterations: 1,
		SessionID:     "ses-1",
	})
	if err != nil {
		t.Fatalf("StartPlanLoop() error = %v", err)
	}

	r.idle(t, "ses-1")

	if st, _ := r.store.Load(); st != nil {
		t.Errorf("loop should stop at the limit, state = %+v", st)
	}
	// The finished task keeps its completed mark even though the loop
	// gave up before the rest.
	text := r.planText(t)
	if got := strings.Count(text, "- [x]"); got != 1 {
		t.Errorf("plan should have exactly 1 checked task, has %d", got)
	}
	if !strings.Contains(text, "- [x] Add the new tables") {
		t.Errorf("first task should be checked:\n%s", text)
	}
	if len(r.committer.calls) != 1 {
		t.Errorf("committer calls = %d, want 1", len(r.committer.calls))
	}
	if len(r.mock.Toasts) != 1 || r.mock.Toasts[0].Variant != "warning" {
		t.Errorf("limit stop should warn, toasts = %+v", r.mock.Toasts)
	}
}

func TestController_SingleTaskMarksOnlyTarget(t *testing.T) {
	r := newTestRig(t, threeTaskPlan)

	if err := r.ctrl.StartSingleTask(context.Background(), r.planPath, "2", "ses-1"); err != nil {
		t.Fatalf("StartSingleTask() error = %v", err)
	}

	st, _ := r.store.Load()
	if st == nil || st.Mode != ModeSingleTask || st.CurrentTaskID != "task-2" {
		t.Fatalf("after start: state = %+v", st)
	}
	if len(r.mock.Injected) != 1 || !strings.Contains(r.mock.Injected[0].Text, "Backfill existing rows") {
		t.Fatalf("injected = %+v", r.mock.Injected)
	}

	r.idle(t, "ses-1")

	if st, _ := r.store.Load(); st != nil {
		t.Errorf("single task should clear state, got %+v", st)
	}

	doc, err := plan.Load(r.planPath)
	if err != nil {
		t.Fatal(err)
	}
	for _, task := range doc.Tasks {
		completed := task.Status == plan.StatusCompleted
		if task.ID == "task-2" && !completed {
			t.Error("task-2 should be completed")
		}
		if task.ID != "task-2" && completed {
			t.Errorf("%s should be untouched", task.ID)
		}
	}

	if len(r.committer.calls) != 0 {
		t.Errorf("single task must not commit, calls = %+v", r.committer.calls)
	}
}

func TestController_StartRejectedWhileActive(t *testing.T) {
	r := newTestRig(t, threeTaskPlan)

	if err := r.ctrl.StartPlanLoop(context.Background(), StartOptions{PlanPath: r.planPath, SessionID: "ses-1"}); err != nil {
		t.Fatal(err)
	}
	before, _ := r.store.Load()

	err := r.ctrl.StartPlanLoop(context.Background(), StartOptions{PlanPath: r.planPath, SessionID: "ses-2"})
	if !errors.Is(err, ErrLoopActive) {
		t.Errorf("second plan start error = %v, want ErrLoopActive", err)
	}
	err = r.ctrl.StartFreeform(context.Background(), "other work", "DONE", 0, "ses-2")
	if !errors.Is(err, ErrLoopActive) {
		t.Errorf("freeform start error = %v, want ErrLoopActive", err)
	}

	after, _ := r.store.Load()
	if after == nil || after.ID != before.ID || after.Mode != ModePlanLoop {
		t.Errorf("rejected start must leave state untouched: %+v", after)
	}
}

func TestController_FreeformPromiseStops(t *testing.T) {
	r := newTestRig(t, threeTaskPlan)
	r.mock.Messages = []string{"still going", "done now <promise> DEMO_DONE </promise>"}

	if err := r.ctrl.StartFreeform(context.Background(), "migrate the demo", "DEMO_DONE", 0, "ses-1"); err != nil {
		t.Fatalf("StartFreeform() error = %v", err)
	}
	if len(r.mock.Injected) != 1 || !strings.Contains(r.mock.Injected[0].Text, "<promise>DEMO_DONE</promise>") {
		t.Fatalf("initial prompt should carry the promise contract: %+v", r.mock.Injected)
	}

	r.idle(t, "ses-1")

	if st, _ := r.store.Load(); st != nil {
		t.Errorf("promise should stop the loop, state = %+v", st)
	}
	if len(r.mock.Toasts) != 1 || r.mock.Toasts[0].Variant != "success" {
		t.Errorf("toasts = %+v", r.mock.Toasts)
	}
}

func TestController_FreeformReinjectsVerbatim(t *testing.T) {
	r := newTestRig(t, threeTaskPlan)
	r.mock.Messages = []string{"no promise here"}

	if err := r.ctrl.StartFreeform(context.Background(), "migrate the demo", "DEMO_DONE", 5, "ses-1"); err != nil {
		t.Fatal(err)
	}
	initial := r.mock.Injected[0].Text

	r.idle(t, "ses-1")

	st, _ := r.store.Load()
	if st == nil || st.Iteration != 2 {
		t.Fatalf("after idle: state = %+v", st)
	}
	if len(r.mock.Injected) != 2 {
		t.Fatalf("injected = %d prompts, want 2", len(r.mock.Injected))
	}
	resent := r.mock.Injected[1].Text
	if !strings.HasPrefix(resent, "[loop iteration 2 of 5]") {
		t.Errorf("re-send should carry the iteration banner: %q", resent)
	}
	if !strings.HasSuffix(initial, strings.TrimPrefix(resent, "[loop iteration 2 of 5]\n\n")) {
		t.Error("re-sent prompt should match the stored prompt verbatim")
	}
}

func TestController_FreeformMessageFetchFailure(t *testing.T) {
	r := newTestRig(t, threeTaskPlan)
	r.mock.MessagesErr = errors.New("host down")

	if err := r.ctrl.StartFreeform(context.Background(), "migrate", "DEMO_DONE", 0, "ses-1"); err != nil {
		t.Fatal(err)
	}
	r.idle(t, "ses-1")

	st, _ := r.store.Load()
	if st == nil || st.Iteration != 2 {
		t.Errorf("fetch failure should count as no match and keep looping: %+v", st)
	}
}

func TestController_InjectFailureKeepsLoopActive(t *testing.T) {
	r := newTestRig(t, threeTaskPlan)
	r.mock.InjectErr = errors.New("session gone")

	if err := r.ctrl.StartPlanLoop(context.Background(), StartOptions{PlanPath: r.planPath, SessionID: "ses-1"}); err != nil {
		t.Fatalf("start should survive an injection failure, got %v", err)
	}

	r.idle(t, "ses-1")

	st, _ := r.store.Load()
	if st == nil || st.CurrentTaskID != "task-2" || st.Iteration != 2 {
		t.Errorf("loop should stay active on injection failure: %+v", st)
	}
	if got := strings.Count(r.planText(t), "- [x]"); got != 1 {
		t.Errorf("finished task should still be marked, checked = %d", got)
	}
}

func TestController_StartWithoutSession(t *testing.T) {
	r := newTestRig(t, threeTaskPlan)

	if err := r.ctrl.StartPlanLoop(context.Background(), StartOptions{PlanPath: r.planPath}); err != nil {
		t.Fatalf("StartPlanLoop() error = %v", err)
	}
	st, _ := r.store.Load()
	if st == nil || st.HasTask() {
		t.Fatalf("no session means no assignment yet: %+v", st)
	}
	if len(r.mock.Injected) != 0 {
		t.Fatal("nothing should be injected before a session is known")
	}

	// The first idle notification resolves the session and makes the
	// first assignment without burning an iteration.
	r.idle(t, "ses-9")

	st, _ = r.store.Load()
	if st == nil || st.SessionID != "ses-9" || st.CurrentTaskID != "task-1" || st.Iteration != 1 {
		t.Errorf("after first idle: state = %+v", st)
	}
	if len(r.mock.Injected) != 1 {
		t.Errorf("injected = %d prompts, want 1", len(r.mock.Injected))
	}
}

func TestController_IdleWithoutLoop(t *testing.T) {
	r := newTestRig(t, threeTaskPlan)
	r.idle(t, "ses-1")
	if len(r.mock.Injected) != 0 || len(r.mock.Toasts) != 0 {
		t.Error("an idle notification with no loop should be ignored")
	}
}

func TestController_PlanUnreadableStopsLoop(t *testing.T) {
	r := newTestRig(t, threeTaskPlan)

	if err := r.ctrl.StartPlanLoop(context.Background(), StartOptions{PlanPath: r.planPath, SessionID: "ses-1"}); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(r.planPath); err != nil {
		t.Fatal(err)
	}

	r.idle(t, "ses-1")

	if st, _ := r.store.Load(); st != nil {
		t.Errorf("a vanished plan should stop the loop, state = %+v", st)
	}
}

func TestController_Cancel(t *testing.T) {
	r := newTestRig(t, threeTaskPlan)

	if _, err := r.ctrl.Cancel(); !errors.Is(err, ErrNoActiveLoop) {
		t.Errorf("Cancel() with no loop = %v, want ErrNoActiveLoop", err)
	}

	if err := r.ctrl.StartPlanLoop(context.Background(), StartOptions{PlanPath: r.planPath, SessionID: "ses-1"}); err != nil {
		t.Fatal(err)
	}

	iterations, err := r.ctrl.Cancel()
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if iterations != 1 {
		t.Errorf("iterations = %d, want 1", iterations)
	}
	if st, _ := r.store.Load(); st != nil {
		t.Error("state should be cleared after cancel")
	}
}

func TestController_StartAllCompleted(t *testing.T) {
	done := strings.ReplaceAll(threeTaskPlan, "- [ ]", "- [x]")
	r := newTestRig(t, done)

	err := r.ctrl.StartPlanLoop(context.Background(), StartOptions{PlanPath: r.planPath, SessionID: "ses-1"})
	if err == nil {
		t.Error("starting over a fully completed plan should fail")
	}
	if st, _ := r.store.Load(); st != nil {
		t.Errorf("failed start must not persist state: %+v", st)
	}
}

func TestDecidePlan(t *testing.T) {
	doc := plan.Parse(threeTaskPlan)

	t.Run("advance without prior task keeps iteration", func(t *testing.T) {
		st := &State{Active: true, Mode: ModePlanLoop, Iteration: 1}
		next, action := DecidePlan(st, doc)
		if action.Kind != ActionSendPrompt {
			t.Fatalf("action = %+v", action)
		}
		if next.Iteration != 1 || next.CurrentTaskID != "task-1" || action.Ordinal != 1 {
			t.Errorf("next = %+v, action = %+v", next, action)
		}
	})

	t.Run("advance with prior task increments", func(t *testing.T) {
		st := &State{Active: true, Mode: ModePlanLoop, Iteration: 3, CurrentTaskID: "task-1", CurrentTaskOrdinal: 1}
		next, action := DecidePlan(st, doc)
		if next.Iteration != 4 || action.Kind != ActionSendPrompt {
			t.Errorf("next = %+v, action = %+v", next, action)
		}
	})

	t.Run("all completed wins over limit", func(t *testing.T) {
		done := plan.Parse(strings.ReplaceAll(threeTaskPlan, "- [ ]", "- [x]"))
		st := &State{Active: true, Iteration: 5, MaxIterations: 5}
		next, action := DecidePlan(st, done)
		if next != nil || action.Kind != ActionStop || action.Reason != StopSuccess {
			t.Errorf("next = %+v, action = %+v", next, action)
		}
	})

	t.Run("limit stops with work remaining", func(t *testing.T) {
		st := &State{Active: true, Iteration: 2, MaxIterations: 2}
		next, action := DecidePlan(st, doc)
		if next != nil || action.Reason != StopLimit {
			t.Errorf("next = %+v, action = %+v", next, action)
		}
	})
}

func TestDecideFreeform(t *testing.T) {
	t.Run("promise stops before limit check", func(t *testing.T) {
		st := &State{Active: true, Iteration: 9, MaxIterations: 3}
		next, action := DecideFreeform(st, true)
		if next != nil || action.Reason != StopSuccess {
			t.Errorf("next = %+v, action = %+v", next, action)
		}
	})

	t.Run("no promise advances", func(t *testing.T) {
		st := &State{Active: true, Iteration: 1, MaxIterations: 3}
		next, action := DecideFreeform(st, false)
		if action.Kind != ActionSendPrompt || next.Iteration != 2 {
			t.Errorf("next = %+v, action = %+v", next, action)
		}
	})

	t.Run("limit stops", func(t *testing.T) {
		st := &State{Active: true, Iteration: 3, MaxIterations: 3}
		next, action := DecideFreeform(st, false)
		if next != nil || action.Reason != StopLimit {
			t.Errorf("next = %+v, action = %+v", next, action)
		}
	})
}

package loop

import "testing"

func TestNewState(t *testing.T) {
	st := NewState(ModePlanLoop)

	if !st.Active {
		t.Error("new state should be active")
	}
	if st.Mode != ModePlanLoop {
		t.Errorf("Mode = %q", st.Mode)
	}
	if st.Iteration != 1 {
		t.Errorf("Iteration = %d, want 1", st.Iteration)
	}
	if st.ID == "" {
		t.Error("ID should be assigned")
	}
	if st.StartedAt.IsZero() {
		t.Error("StartedAt should be set")
	}

	other := NewState(ModeFreeformLoop)
	if other.ID == st.ID {
		t.Error("states should get distinct IDs")
	}
}

func TestState_LimitReached(t *testing.T) {
	tests := []struct {
		name      string
		iteration int
		max       int
		want      bool
	}{
		{"unbounded", 100, 0, false},
		{"under limit", 2, 5, false},
		{"at limit", 5, 5, true},
		{"over limit", 6, 5, true},
		{"limit of one", 1, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &State{Iteration: tt.iteration, MaxIterations: tt.max}
			if got := st.LimitReached(); got != tt.want {
				t.Errorf("LimitReached() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestState_HasTask(t *testing.T) {
	st := &State{}
	if st.HasTask() {
		t.Error("empty state should have no task")
	}
	st.CurrentTaskID = "task-2"
	if !st.HasTask() {
		t.Error("state with a task ID should report it")
	}
}

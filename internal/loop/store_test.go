package loop

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "state", "loop.json"))
}

func TestStore_LoadMissing(t *testing.T) {
	s := tempStore(t)
	st, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if st != nil {
		t.Errorf("missing file should read as idle, got %+v", st)
	}
}

func TestStore_SaveLoad(t *testing.T) {
	s := tempStore(t)

	st := NewState(ModePlanLoop)
	st.PlanPath = "plans/PLAN.md"
	st.MaxIterations = 7
	st.CurrentTaskID = "task-3"
	st.CurrentTaskOrdinal = 3

	if err := s.Save(st); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got == nil {
		t.Fatal("Load() returned nil for a saved active state")
	}
	if got.ID != st.ID || got.PlanPath != st.PlanPath || got.MaxIterations != 7 {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.CurrentTaskID != "task-3" || got.CurrentTaskOrdinal != 3 {
		t.Errorf("task fields lost: %+v", got)
	}
}

func TestStore_LoadCorrupt(t *testing.T) {
	s := tempStore(t)
	if err := os.MkdirAll(filepath.Dir(s.Path()), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.Path(), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	st, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if st != nil {
		t.Error("corrupt state should read as idle")
	}
}

func TestStore_LoadInactive(t *testing.T) {
	s := tempStore(t)
	st := NewState(ModePlanLoop)
	st.Active = false
	if err := s.Save(st); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != nil {
		t.Error("inactive state should read as idle")
	}
}

func TestStore_Clear(t *testing.T) {
	s := tempStore(t)
	if err := s.Clear(); err != nil {
		t.Errorf("Clear() on missing file should succeed, got %v", err)
	}

	if err := s.Save(NewState(ModePlanLoop)); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if st, _ := s.Load(); st != nil {
		t.Error("state should be gone after Clear")
	}
}

func TestStore_WithLockSerializes(t *testing.T) {
	s := tempStore(t)

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithLock(func() error {
				v := counter
				time.Sleep(time.Millisecond)
				counter = v + 1
				return nil
			})
			if err != nil {
				t.Errorf("WithLock() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if counter != 8 {
		t.Errorf("counter = %d, want 8; critical sections overlapped", counter)
	}
}

func TestStore_WithLockStaleTakeover(t *testing.T) {
	s := tempStore(t)
	lockPath := s.Path() + ".lock"
	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(lockPath, nil, 0644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-time.Minute)
	if err := os.Chtimes(lockPath, old, old); err != nil {
		t.Fatal(err)
	}

	ran := false
	if err := s.WithLock(func() error { ran = true; return nil }); err != nil {
		t.Fatalf("WithLock() should take over a stale lock, got %v", err)
	}
	if !ran {
		t.Error("critical section did not run")
	}
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Error("lockfile should be removed after release")
	}
}

package store

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestRunRepository_CreateFinish(t *testing.T) {
	s := newTestStore(t)
	repo := s.Runs()

	run := &Run{ID: "run-1"}
	if err := repo.Create(run); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if run.StartedAt.IsZero() {
		t.Error("StartedAt should be set after create")
	}

	got, err := repo.GetByID("run-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !got.Active() {
		t.Error("new run should be active")
	}

	if err := repo.Finish("run-1", "frame_unavailable", 42, "read failed"); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	got, err = repo.GetByID("run-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Active() {
		t.Error("finished run should not be active")
	}
	if got.Reason != "frame_unavailable" || got.Frames != 42 || got.Error != "read failed" {
		t.Errorf("unexpected run %+v", got)
	}
}

func TestRunRepository_NotFound(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Runs().GetByID("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
	if err := s.Runs().Finish("nope", "stopped", 0, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("Finish() error = %v, want ErrNotFound", err)
	}
}

func TestRunRepository_List(t *testing.T) {
	s := newTestStore(t)
	repo := s.Runs()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		run := &Run{ID: fmt.Sprintf("run-%d", i), StartedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := repo.Create(run); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	tests := []struct {
		name    string
		limit   int
		wantLen int
		wantTop string
	}{
		{name: "all", limit: 0, wantLen: 5, wantTop: "run-4"},
		{name: "limited", limit: 2, wantLen: 2, wantTop: "run-4"},
		{name: "limit above count", limit: 50, wantLen: 5, wantTop: "run-4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := repo.List(tt.limit)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(runs) != tt.wantLen {
				t.Fatalf("len = %d, want %d", len(runs), tt.wantLen)
			}
			if runs[0].ID != tt.wantTop {
				t.Errorf("first run = %s, want %s", runs[0].ID, tt.wantTop)
			}
		})
	}
}

func TestRunRepository_ListEmpty(t *testing.T) {
	s := newTestStore(t)

	runs, err := s.Runs().List(10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if runs == nil || len(runs) != 0 {
		t.Errorf("List() = %v, want empty non-nil slice", runs)
	}
}

func TestRunRepository_CloseDangling(t *testing.T) {
	s := newTestStore(t)
	repo := s.Runs()

	repo.Create(&Run{ID: "open-1"})
	repo.Create(&Run{ID: "open-2"})
	repo.Create(&Run{ID: "done"})
	repo.Finish("done", "stopped", 3, "")

	n, err := repo.CloseDangling("interrupted")
	if err != nil {
		t.Fatalf("CloseDangling() error = %v", err)
	}
	if n != 2 {
		t.Errorf("closed %d runs, want 2", n)
	}

	got, _ := repo.GetByID("open-1")
	if got.Active() || got.Reason != "interrupted" {
		t.Errorf("open-1 = %+v, want finished with reason interrupted", got)
	}
	done, _ := repo.GetByID("done")
	if done.Reason != "stopped" {
		t.Errorf("finished run reason overwritten: %q", done.Reason)
	}
}

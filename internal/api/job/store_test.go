// internal/api/job/store_test.go
package job

import (
	"errors"
	"testing"
	"time"

	"github.com/newthinker/momentum/internal/core"
)

func mustCreate(t *testing.T, store *Store, jobType string) Job {
	t.Helper()
	j, err := store.Create(jobType)
	if err != nil {
		t.Fatalf("Create(%s): %v", jobType, err)
	}
	return j
}

func TestStore_CreateAndGet(t *testing.T) {
	store := NewStore(100, time.Hour)

	job := mustCreate(t, store, "backtest")
	if job.ID == "" {
		t.Error("expected job ID")
	}
	if job.Status != StatusPending {
		t.Errorf("expected pending, got %s", job.Status)
	}

	retrieved, err := store.Get(job.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if retrieved.ID != job.ID {
		t.Error("IDs don't match")
	}
}

func TestStore_Update(t *testing.T) {
	store := NewStore(100, time.Hour)
	job := mustCreate(t, store, "optimize")

	err := store.Update(job.ID, func(j *Job) {
		j.Status = StatusRunning
		j.Progress = 50
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	retrieved, _ := store.Get(job.ID)
	if retrieved.Status != StatusRunning {
		t.Errorf("expected running, got %s", retrieved.Status)
	}
	if retrieved.Progress != 50 {
		t.Errorf("expected 50, got %d", retrieved.Progress)
	}
}

func TestStore_MaxSize(t *testing.T) {
	store := NewStore(2, time.Hour)

	job1 := mustCreate(t, store, "backtest")
	store.Update(job1.ID, func(j *Job) { j.Status = StatusComplete })
	mustCreate(t, store, "backtest")
	mustCreate(t, store, "backtest") // Should evict job1

	_, err := store.Get(job1.ID)
	if err == nil {
		t.Error("expected job1 to be evicted")
	}
	if len(store.List()) != 2 {
		t.Errorf("expected 2 jobs, got %d", len(store.List()))
	}
}

func TestStore_FullOfLiveJobs(t *testing.T) {
	store := NewStore(2, time.Hour)

	pending := mustCreate(t, store, TypeOptimize)
	running := mustCreate(t, store, TypeOptimize)
	store.Update(running.ID, func(j *Job) { j.Status = StatusRunning })

	if _, err := store.Create(TypeOptimize); !errors.Is(err, core.ErrJobsFull) {
		t.Fatalf("expected ErrJobsFull, got %v", err)
	}
	for _, id := range []string{pending.ID, running.ID} {
		if _, err := store.Get(id); err != nil {
			t.Errorf("live job %s was evicted", id)
		}
	}
	if got := store.Active(TypeOptimize); got != 2 {
		t.Errorf("expected 2 active jobs, got %d", got)
	}

	store.Update(running.ID, func(j *Job) { j.Status = StatusFailed })
	if _, err := store.Create(TypeOptimize); err != nil {
		t.Errorf("expected room after a job finished, got %v", err)
	}
}

func TestStore_NotFound(t *testing.T) {
	store := NewStore(100, time.Hour)

	_, err := store.Get("nonexistent")
	if !errors.Is(err, core.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
	if err := store.Update("nonexistent", func(*Job) {}); !errors.Is(err, core.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestStore_ListNewestFirst(t *testing.T) {
	store := NewStore(100, time.Hour)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	first := mustCreate(t, store, "backtest")
	now = now.Add(time.Minute)
	second := mustCreate(t, store, "optimize")

	jobs := store.List()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != second.ID || jobs[1].ID != first.ID {
		t.Error("expected newest job first")
	}
}

func TestStore_PrunesFinishedJobs(t *testing.T) {
	store := NewStore(100, time.Hour)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	done := mustCreate(t, store, "backtest")
	store.Update(done.ID, func(j *Job) { j.Status = StatusComplete })
	running := mustCreate(t, store, "optimize")
	store.Update(running.ID, func(j *Job) { j.Status = StatusRunning })

	now = now.Add(2 * time.Hour)
	mustCreate(t, store, "backtest")

	if _, err := store.Get(done.ID); err == nil {
		t.Error("expected finished job to be pruned")
	}
	if _, err := store.Get(running.ID); err != nil {
		t.Error("running job should survive pruning")
	}
}

func TestStore_Active(t *testing.T) {
	store := NewStore(100, time.Hour)
	a := mustCreate(t, store, "optimize")
	mustCreate(t, store, "optimize")
	mustCreate(t, store, "backtest")
	store.Update(a.ID, func(j *Job) { j.Status = StatusFailed })

	if got := store.Active("optimize"); got != 1 {
		t.Errorf("expected 1 active optimize job, got %d", got)
	}
	if got := store.Active("backtest"); got != 1 {
		t.Errorf("expected 1 active backtest job, got %d", got)
	}
}

func TestStore_EvictsFinishedFirst(t *testing.T) {
	store := NewStore(2, 0)

	running := mustCreate(t, store, TypeOptimize)
	done := mustCreate(t, store, TypeBacktest)
	store.Update(done.ID, func(j *Job) { j.Status = StatusComplete })

	mustCreate(t, store, TypeOptimize)

	if _, err := store.Get(running.ID); err != nil {
		t.Error("expected running job to survive eviction")
	}
	if _, err := store.Get(done.ID); !errors.Is(err, core.ErrJobNotFound) {
		t.Error("expected finished job to be evicted")
	}
}

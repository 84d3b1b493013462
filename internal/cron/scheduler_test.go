package cron

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestService_AddPersistsAndComputesNextRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cron.json")
	store := NewStore(path)
	svc := New(store)

	sched, err := NewEverySchedule(1000)
	if err != nil {
		t.Fatalf("NewEverySchedule: %v", err)
	}
	id, err := svc.Add("heartbeat", sched, "say hi", 0)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	rows := svc.List(false)
	if len(rows) != 1 || rows[0].ID != id {
		t.Fatalf("List() = %+v, want one job with id %s", rows, id)
	}
	if rows[0].State.NextRunAtMS == 0 {
		t.Fatal("expected next_run_at_ms to be set on add")
	}

	reloaded := NewStore(path)
	jobs, err := reloaded.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != id {
		t.Fatalf("persisted jobs = %+v, want one job with id %s", jobs, id)
	}
}

func TestService_FiresDueJobsAndAdvancesEveryByExactInterval(t *testing.T) {
	var mu sync.Mutex
	var fired []string

	current := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }

	store := NewStore(filepath.Join(t.TempDir(), "cron.json"))
	svc := New(store, WithNow(clock), WithFireHandler(func(job *Job) error {
		mu.Lock()
		fired = append(fired, job.ID)
		mu.Unlock()
		return nil
	}))

	sched, err := NewEverySchedule(1000)
	if err != nil {
		t.Fatalf("NewEverySchedule: %v", err)
	}
	id, err := svc.Add("tick", sched, "tick", 0)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	current = current.Add(2 * time.Second)
	svc.fireDue()

	mu.Lock()
	n := len(fired)
	mu.Unlock()
	if n != 1 || fired[0] != id {
		t.Fatalf("fired = %v, want exactly one fire of %s", fired, id)
	}

	rows := svc.List(false)
	if len(rows) != 1 {
		t.Fatalf("List() = %+v", rows)
	}
	wantNext := current.Add(time.Second).UnixMilli()
	if rows[0].State.NextRunAtMS != wantNext {
		t.Fatalf("next_run_at_ms = %d, want %d", rows[0].State.NextRunAtMS, wantNext)
	}
	if rows[0].State.RunCount != 1 || rows[0].State.LastStatus != StatusOK {
		t.Fatalf("state after fire = %+v", rows[0].State)
	}
}

func TestService_AtJobWithDeleteAfterRunIsRemoved(t *testing.T) {
	current := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }

	store := NewStore(filepath.Join(t.TempDir(), "cron.json"))
	svc := New(store, WithNow(clock))

	sched, err := NewAtSchedule(current.Add(time.Second).UnixMilli())
	if err != nil {
		t.Fatalf("NewAtSchedule: %v", err)
	}
	id, err := svc.Add("one-shot", sched, "do it once", 0)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	svc.mu.Lock()
	svc.jobs[id].DeleteAfterRun = true
	svc.mu.Unlock()

	current = current.Add(2 * time.Second)
	svc.fireDue()

	if len(svc.List(false)) != 0 {
		t.Fatal("expected at-job with delete_after_run to be removed after firing")
	}
}

func TestService_EnableRecomputesNextRunAndDisableClearsIt(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "cron.json"))
	svc := New(store)

	sched, err := NewEverySchedule(5000)
	if err != nil {
		t.Fatalf("NewEverySchedule: %v", err)
	}
	id, err := svc.Add("periodic", sched, "work", 0)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	if !svc.Enable(id, false) {
		t.Fatal("Enable(false) should succeed for known id")
	}
	rows := svc.List(false)
	if rows[0].Enabled || rows[0].State.NextRunAtMS != 0 {
		t.Fatalf("disabled job state = %+v", rows[0])
	}

	if !svc.Enable(id, true) {
		t.Fatal("Enable(true) should succeed for known id")
	}
	rows = svc.List(false)
	if !rows[0].Enabled || rows[0].State.NextRunAtMS == 0 {
		t.Fatalf("re-enabled job state = %+v", rows[0])
	}

	if svc.Enable("unknown", true) {
		t.Fatal("Enable on unknown id should return false")
	}
}

func TestService_RemoveUnknownReturnsFalse(t *testing.T) {
	svc := New(NewStore(""))
	if svc.Remove("nope") {
		t.Fatal("Remove of unknown id should return false")
	}
}

func TestService_RunNowFiresImmediatelyAndAdvancesSchedule(t *testing.T) {
	var fired int
	current := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	svc := New(NewStore(""), WithNow(func() time.Time { return current }), WithFireHandler(func(job *Job) error {
		fired++
		return nil
	}))

	sched, err := NewEverySchedule(60_000)
	if err != nil {
		t.Fatalf("NewEverySchedule: %v", err)
	}
	id, err := svc.Add("manual", sched, "go", 0)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	current = current.Add(10 * time.Second)
	if !svc.RunNow(id) {
		t.Fatal("RunNow should succeed for known id")
	}
	if fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}
	rows := svc.List(false)
	if want := current.Add(time.Minute).UnixMilli(); len(rows) != 1 || rows[0].State.NextRunAtMS != want {
		t.Fatalf("state after RunNow = %+v, want next_run_at_ms %d", rows, want)
	}
}

func TestService_FireHandlerErrorRecordedAsStatusErrorScheduleStillAdvances(t *testing.T) {
	current := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }
	handlerErr := errors.New("subagent limit reached")

	store := NewStore(filepath.Join(t.TempDir(), "cron.json"))
	svc := New(store, WithNow(clock), WithFireHandler(func(job *Job) error {
		return handlerErr
	}))

	sched, err := NewEverySchedule(1000)
	if err != nil {
		t.Fatalf("NewEverySchedule: %v", err)
	}
	id, err := svc.Add("flaky", sched, "do flaky work", 0)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	current = current.Add(2 * time.Second)
	svc.fireDue()

	rows := svc.List(false)
	if len(rows) != 1 || rows[0].ID != id {
		t.Fatalf("List() = %+v, want one job with id %s", rows, id)
	}
	if rows[0].State.LastStatus != StatusError {
		t.Fatalf("LastStatus = %v, want %v", rows[0].State.LastStatus, StatusError)
	}
	if rows[0].State.LastError != handlerErr.Error() {
		t.Fatalf("LastError = %q, want %q", rows[0].State.LastError, handlerErr.Error())
	}
	if rows[0].State.RunCount != 1 {
		t.Fatalf("RunCount = %d, want 1", rows[0].State.RunCount)
	}
	wantNext := current.Add(time.Second).UnixMilli()
	if rows[0].State.NextRunAtMS != wantNext {
		t.Fatalf("next_run_at_ms = %d, want %d (schedule must still advance on handler failure)", rows[0].State.NextRunAtMS, wantNext)
	}
	if !rows[0].Enabled {
		t.Fatal("job must stay enabled after a handler failure, only a schedule-parse failure disables it")
	}
}

func TestService_FireHandlerPanicRecordedAsStatusError(t *testing.T) {
	current := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }

	store := NewStore(filepath.Join(t.TempDir(), "cron.json"))
	svc := New(store, WithNow(clock), WithFireHandler(func(job *Job) error {
		panic("boom")
	}))

	sched, err := NewEverySchedule(1000)
	if err != nil {
		t.Fatalf("NewEverySchedule: %v", err)
	}
	id, err := svc.Add("panicky", sched, "do panicky work", 0)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	current = current.Add(2 * time.Second)
	svc.fireDue()

	rows := svc.List(false)
	if len(rows) != 1 || rows[0].ID != id {
		t.Fatalf("List() = %+v, want one job with id %s", rows, id)
	}
	if rows[0].State.LastStatus != StatusError {
		t.Fatalf("LastStatus = %v, want %v", rows[0].State.LastStatus, StatusError)
	}
	if rows[0].State.LastError == "" {
		t.Fatal("LastError must be set after a recovered handler panic")
	}
}

func TestNamePrefix(t *testing.T) {
	cases := map[string]string{
		"nightly backup run": "nightly",
		"heartbeat":          "heartbeat",
		"  ":                 "job",
		"":                   "job",
	}
	for in, want := range cases {
		if got := NamePrefix(in); got != want {
			t.Errorf("NamePrefix(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestService_StartLoadsPersistedJobsAndFiresOnSchedule(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cron.json")
	sched, err := NewEverySchedule(50)
	if err != nil {
		t.Fatalf("NewEverySchedule: %v", err)
	}
	seed := &Job{
		ID:       "seed0001",
		Name:     "seeded",
		Enabled:  true,
		Schedule: sched,
		Task:     "do seeded work",
		State:    JobState{LastStatus: StatusIdle, NextRunAtMS: time.Now().Add(-time.Second).UnixMilli()},
	}
	if err := NewStore(path).Save([]*Job{seed}); err != nil {
		t.Fatalf("seed save: %v", err)
	}

	fired := make(chan string, 4)
	svc := New(NewStore(path), WithFireHandler(func(job *Job) error {
		fired <- job.ID
		return nil
	}))

	if err := svc.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer svc.Stop()

	select {
	case id := <-fired:
		if id != seed.ID {
			t.Fatalf("fired job id = %s, want %s", id, seed.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected a due job loaded from the store to fire after Start")
	}
}

package app_test

import (
	"errors"
	"testing"
	"time"

	"classroom-assessment-service/internal/app"
	"classroom-assessment-service/internal/domain"
)

func TestMonitorTracksRemainingTime(t *testing.T) {
	f := newFixture(t)
	a := f.live(t, app.NewAssessment{SecondsPerQuestion: 60}, "q1", "q2")

	state, err := f.service.StartAttempt(f.ctx, "s1", a.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	f.answer(t, "s1", state.ID, map[string]string{"q1": "4"})
	f.clock.Advance(10 * time.Second)
	f.complete(t, "s2", a.ID, nil)

	f.clock.Advance(20 * time.Second)
	m, err := f.service.Monitor(f.ctx, "t1", a.ID)
	if err != nil {
		t.Fatalf("monitor: %v", err)
	}
	if m.TotalDurationSeconds != 120 || len(m.Entries) != 2 {
		t.Fatalf("unexpected monitor %+v", m)
	}
	first := m.Entries[0]
	if first.StudentID != "s1" || first.Status != domain.MonitorInProgress || first.Answered != 1 {
		t.Fatalf("unexpected first entry %+v", first)
	}
	if first.RemainingSeconds == nil || *first.RemainingSeconds != 90 {
		t.Fatalf("expected 90s remaining, got %v", first.RemainingSeconds)
	}
	if m.Entries[1].Status != domain.MonitorSubmitted || m.Entries[1].RemainingSeconds != nil {
		t.Fatalf("unexpected submitted entry %+v", m.Entries[1])
	}

	f.clock.Advance(5 * time.Minute)
	m, _ = f.service.Monitor(f.ctx, "t1", a.ID)
	if *m.Entries[0].RemainingSeconds != 0 {
		t.Fatalf("remaining time must clamp at zero, got %d", *m.Entries[0].RemainingSeconds)
	}
	attempt, _ := f.store.GetAttempt(f.ctx, state.ID)
	if attempt.Finalized() {
		t.Fatalf("monitor must not finalize expired attempts")
	}

	if _, err := f.service.Monitor(f.ctx, "t2", a.ID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected owner check, got %v", err)
	}
}

func TestRemainingSecondsIsMonotone(t *testing.T) {
	total := 90 * time.Second
	prev := app.RemainingSeconds(total, t0, t0)
	if prev != 90 {
		t.Fatalf("expected full budget at start, got %d", prev)
	}
	for step := 1; step <= 120; step++ {
		got := app.RemainingSeconds(total, t0, t0.Add(time.Duration(step)*time.Second))
		if got < 0 || got > prev {
			t.Fatalf("step %d: remaining %d after %d", step, got, prev)
		}
		prev = got
	}
	if prev != 0 {
		t.Fatalf("expected zero once budget is spent, got %d", prev)
	}
}

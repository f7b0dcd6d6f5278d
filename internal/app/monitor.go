package app

import (
	"context"
	"sort"
	"time"

	"classroom-assessment-service/internal/domain"
)

// Monitor projects every attempt on an assessment at the current instant. It never
// finalizes expired attempts; remaining time is display-only.
func (s *Service) Monitor(ctx context.Context, teacherID, assessmentID string) (domain.Monitor, error) {
	a, err := s.ownedAssessment(ctx, assessmentID, teacherID)
	if err != nil {
		return domain.Monitor{}, err
	}
	attempts, err := s.attempts.ListAttempts(ctx, assessmentID)
	if err != nil {
		return domain.Monitor{}, err
	}
	names, err := s.userNames(ctx, studentIDs(attempts))
	if err != nil {
		return domain.Monitor{}, err
	}

	now := s.clock()
	total := a.TotalDuration()
	entries := make([]domain.MonitorEntry, 0, len(attempts))
	for _, attempt := range attempts {
		answers, err := s.attempts.ListAnswers(ctx, attempt.ID)
		if err != nil {
			return domain.Monitor{}, err
		}
		entry := domain.MonitorEntry{
			AttemptID:   attempt.ID,
			StudentID:   attempt.StudentID,
			StudentName: names[attempt.StudentID],
			Status:      domain.MonitorSubmitted,
			Answered:    len(answers),
			StartedAt:   attempt.StartedAt,
		}
		if !attempt.Finalized() {
			entry.Status = domain.MonitorInProgress
			remaining := RemainingSeconds(total, attempt.StartedAt, now)
			entry.RemainingSeconds = &remaining
		}
		entries = append(entries, entry)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].StartedAt.Before(entries[j].StartedAt)
	})

	return domain.Monitor{
		AssessmentID:         a.ID,
		TotalDurationSeconds: int(total / time.Second),
		GeneratedAt:          now,
		Entries:              entries,
	}, nil
}

// RemainingSeconds is max(0, total - (now - startedAt)) in whole seconds.
func RemainingSeconds(total time.Duration, startedAt, now time.Time) int {
	remaining := total - now.Sub(startedAt)
	if remaining < 0 {
		return 0
	}
	return int(remaining / time.Second)
}

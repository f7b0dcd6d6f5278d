package app_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"classroom-assessment-service/internal/app"
	"classroom-assessment-service/internal/domain"
	"classroom-assessment-service/internal/infra/memory"
)

var t0 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	ctx     context.Context
	store   *memory.Store
	clock   *testClock
	service *app.Service
}

// newFixture seeds one classroom (teacher t1, students s1 and s2), an outsider s3,
// a second teacher t2, and questions q1..q3.
func newFixture(t *testing.T, opts ...app.Option) *fixture {
	t.Helper()
	store := memory.NewStore()
	store.AddUser(domain.User{ID: "t1", Name: "Ms Rivera", Role: domain.RoleTeacher})
	store.AddUser(domain.User{ID: "t2", Name: "Mr Okafor", Role: domain.RoleTeacher})
	store.AddUser(domain.User{ID: "s1", Name: "Alice", Role: domain.RoleStudent})
	store.AddUser(domain.User{ID: "s2", Name: "Bob", Role: domain.RoleStudent})
	store.AddUser(domain.User{ID: "s3", Name: "Carol", Role: domain.RoleStudent})
	store.AddClassroom(domain.Classroom{ID: "c1", Name: "Math 7A", TeacherID: "t1"}, "s1", "s2")
	store.AddQuestion(domain.Question{ID: "q1", Prompt: "2 + 2?", Options: []string{"3", "4", "5"}, CorrectOption: "4", Topic: "Arithmetic", Difficulty: "Easy", AuthorID: "t1", CreatedAt: t0})
	store.AddQuestion(domain.Question{ID: "q2", Prompt: "3 * 3?", Options: []string{"6", "9", "12"}, CorrectOption: "9", Topic: "Arithmetic", Difficulty: "Easy", AuthorID: "t1", CreatedAt: t0})
	store.AddQuestion(domain.Question{ID: "q3", Prompt: "10 / 2?", Options: []string{"2", "5", "8"}, CorrectOption: "5", Topic: "Arithmetic", Difficulty: "Medium", AuthorID: "t1", CreatedAt: t0})

	clock := &testClock{now: t0}
	var (
		idMu sync.Mutex
		seq  int
	)
	nextID := func() string {
		idMu.Lock()
		defer idMu.Unlock()
		seq++
		return fmt.Sprintf("id-%03d", seq)
	}
	opts = append([]app.Option{app.WithClock(clock.Now), app.WithIDGenerator(nextID)}, opts...)
	service := app.NewService(store, store, memory.NewQuestionCache(store, time.Minute), store, opts...)
	return &fixture{ctx: context.Background(), store: store, clock: clock, service: service}
}

// draft creates a DRAFT assessment in c1 owned by t1 with the given questions linked.
func (f *fixture) draft(t *testing.T, in app.NewAssessment, questionIDs ...string) domain.Assessment {
	t.Helper()
	if in.ClassroomID == "" {
		in.ClassroomID = "c1"
	}
	if in.Title == "" {
		in.Title = "Quiz"
	}
	if in.Kind == "" {
		in.Kind = domain.KindLive
	}
	a, err := f.service.CreateAssessment(f.ctx, "t1", in)
	if err != nil {
		t.Fatalf("create assessment: %v", err)
	}
	for _, id := range questionIDs {
		if _, err := f.service.AddQuestion(f.ctx, "t1", a.ID, id, 0); err != nil {
			t.Fatalf("add question %s: %v", id, err)
		}
	}
	return a
}

// live creates and publishes an assessment.
func (f *fixture) live(t *testing.T, in app.NewAssessment, questionIDs ...string) domain.Assessment {
	t.Helper()
	a := f.draft(t, in, questionIDs...)
	published, err := f.service.StartAssessment(f.ctx, "t1", a.ID)
	if err != nil {
		t.Fatalf("start assessment: %v", err)
	}
	return published
}

// answer records selections keyed by question id.
func (f *fixture) answer(t *testing.T, studentID, attemptID string, selections map[string]string) {
	t.Helper()
	for qid, sel := range selections {
		if _, err := f.service.RecordAnswer(f.ctx, studentID, attemptID, qid, sel, 5); err != nil {
			t.Fatalf("record answer %s: %v", qid, err)
		}
	}
}

// complete starts, answers and finalizes an attempt for studentID.
func (f *fixture) complete(t *testing.T, studentID, assessmentID string, selections map[string]string) domain.Attempt {
	t.Helper()
	state, err := f.service.StartAttempt(f.ctx, studentID, assessmentID)
	if err != nil {
		t.Fatalf("start attempt: %v", err)
	}
	f.answer(t, studentID, state.ID, selections)
	final, err := f.service.FinalizeAttempt(f.ctx, studentID, state.ID)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	return final
}

func timePtr(t time.Time) *time.Time { return &t }

func intPtr(v int) *int { return &v }

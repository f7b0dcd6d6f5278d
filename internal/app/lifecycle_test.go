package app_test

import (
	"errors"
	"testing"
	"time"

	"classroom-assessment-service/internal/app"
	"classroom-assessment-service/internal/domain"
)

func TestCreateAssessmentRequiresClassroomOwner(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.CreateAssessment(f.ctx, "t2", app.NewAssessment{ClassroomID: "c1", Title: "Quiz", Kind: domain.KindLive})
	if !errors.Is(err, domain.ErrNotClassroomOwner) {
		t.Fatalf("expected classroom owner error, got %v", err)
	}
	_, err = f.service.CreateAssessment(f.ctx, "t1", app.NewAssessment{ClassroomID: "missing", Title: "Quiz", Kind: domain.KindLive})
	if !errors.Is(err, domain.ErrClassroomNotFound) {
		t.Fatalf("expected classroom not found, got %v", err)
	}
}

func TestCreateAssessmentValidatesInput(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.CreateAssessment(f.ctx, "t1", app.NewAssessment{ClassroomID: "c1", Kind: domain.KindSelf})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	fields := map[string]bool{}
	for _, fe := range verr.Fields {
		fields[fe.Field] = true
	}
	if !fields["title"] || !fields["kind"] {
		t.Fatalf("expected title and kind failures, got %+v", verr.Fields)
	}

	_, err = f.service.CreateAssessment(f.ctx, "t1", app.NewAssessment{
		ClassroomID: "c1",
		Title:       "Homework",
		Kind:        domain.KindHomework,
		StartTime:   timePtr(t0.Add(time.Hour)),
		EndTime:     timePtr(t0),
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected window validation error, got %v", err)
	}

	_, err = f.service.CreateAssessment(f.ctx, "t1", app.NewAssessment{
		ClassroomID:        "c1",
		Title:              "Marathon",
		Kind:               domain.KindLive,
		SecondsPerQuestion: 86401,
	})
	if !errors.As(err, &verr) || len(verr.Fields) != 1 || verr.Fields[0].Field != "secondsPerQuestion" {
		t.Fatalf("expected secondsPerQuestion bound, got %v", err)
	}
}

func TestCreateAssessmentStartsAsDraft(t *testing.T) {
	f := newFixture(t)
	a := f.draft(t, app.NewAssessment{Title: "Fractions"})
	if a.Status != domain.StatusDraft || a.OwnerID != "t1" || a.ClassroomID != "c1" {
		t.Fatalf("unexpected assessment %+v", a)
	}
}

func TestAddQuestionRules(t *testing.T) {
	f := newFixture(t)
	a := f.draft(t, app.NewAssessment{}, "q1")

	if _, err := f.service.AddQuestion(f.ctx, "t1", a.ID, "q1", 0); !errors.Is(err, domain.ErrQuestionAlreadyUsed) {
		t.Fatalf("expected duplicate question error, got %v", err)
	}
	if _, err := f.service.AddQuestion(f.ctx, "t1", a.ID, "q2", 1); !errors.Is(err, domain.ErrOrderTaken) {
		t.Fatalf("expected order taken, got %v", err)
	}
	if _, err := f.service.AddQuestion(f.ctx, "t1", a.ID, "missing", 0); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected question not found, got %v", err)
	}
	if _, err := f.service.AddQuestion(f.ctx, "t2", a.ID, "q2", 0); !errors.Is(err, domain.ErrNotAssessmentOwner) {
		t.Fatalf("expected owner error, got %v", err)
	}

	link, err := f.service.AddQuestion(f.ctx, "t1", a.ID, "q2", 0)
	if err != nil {
		t.Fatalf("add q2: %v", err)
	}
	if link.Order != 2 {
		t.Fatalf("expected appended order 2, got %d", link.Order)
	}
	link, err = f.service.AddQuestion(f.ctx, "t1", a.ID, "q3", 10)
	if err != nil {
		t.Fatalf("add q3: %v", err)
	}
	if link.Order != 10 {
		t.Fatalf("expected explicit order 10, got %d", link.Order)
	}
}

func TestLiveAssessmentIsFrozen(t *testing.T) {
	f := newFixture(t)
	a := f.live(t, app.NewAssessment{}, "q1")

	if a.Status != domain.StatusLive {
		t.Fatalf("expected LIVE, got %s", a.Status)
	}
	if a.StartTime == nil || !a.StartTime.Equal(t0) {
		t.Fatalf("expected start time stamped at publish, got %v", a.StartTime)
	}
	if _, err := f.service.AddQuestion(f.ctx, "t1", a.ID, "q2", 0); !errors.Is(err, domain.ErrAssessmentNotDraft) {
		t.Fatalf("expected not draft, got %v", err)
	}
	_, err := f.service.CreateQuestion(f.ctx, "t1", a.ID, app.NewQuestion{Prompt: "?", Options: []string{"a", "b"}, CorrectOption: "a"})
	if !errors.Is(err, domain.ErrAssessmentNotDraft) {
		t.Fatalf("expected not draft for create question, got %v", err)
	}
	if _, err := f.service.StartAssessment(f.ctx, "t1", a.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected second start to fail with invalid state, got %v", err)
	}
}

func TestStartAssessmentKeepsConfiguredStartTime(t *testing.T) {
	f := newFixture(t)
	start := t0.Add(2 * time.Hour)
	a := f.live(t, app.NewAssessment{Kind: domain.KindHomework, StartTime: &start}, "q1")
	if !a.StartTime.Equal(start) {
		t.Fatalf("expected configured start time kept, got %v", a.StartTime)
	}
}

func TestStartAssessmentRequiresOwner(t *testing.T) {
	f := newFixture(t)
	a := f.draft(t, app.NewAssessment{}, "q1")
	if _, err := f.service.StartAssessment(f.ctx, "t2", a.ID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := f.service.StartAssessment(f.ctx, "t1", "missing"); !errors.Is(err, domain.ErrAssessmentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateQuestionLinksAndDefaults(t *testing.T) {
	f := newFixture(t)
	a := f.draft(t, app.NewAssessment{}, "q1")

	q, err := f.service.CreateQuestion(f.ctx, "t1", a.ID, app.NewQuestion{
		Prompt:        "Capital of France?",
		Options:       []string{"Paris", "Lyon"},
		CorrectOption: "Paris",
	})
	if err != nil {
		t.Fatalf("create question: %v", err)
	}
	if q.Topic != "General" || q.Difficulty != "Medium" || q.AuthorID != "t1" {
		t.Fatalf("unexpected defaults %+v", q)
	}

	detail, err := f.service.AssessmentDetail(f.ctx, "t1", a.ID)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if len(detail.QuestionList) != 2 || detail.QuestionList[1].ID != q.ID {
		t.Fatalf("expected new question linked second, got %+v", detail.QuestionList)
	}
}

func TestCreateQuestionRejectsUnknownCorrectOption(t *testing.T) {
	f := newFixture(t)
	a := f.draft(t, app.NewAssessment{})

	_, err := f.service.CreateQuestion(f.ctx, "t1", a.ID, app.NewQuestion{
		Prompt:        "Pick one",
		Options:       []string{"a", "b"},
		CorrectOption: "c",
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, err = f.service.CreateQuestion(f.ctx, "t1", a.ID, app.NewQuestion{
		Prompt:        "Pick one",
		Options:       []string{"a"},
		CorrectOption: "a",
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for single option, got %v", err)
	}
}

func TestListForClassroomByRole(t *testing.T) {
	f := newFixture(t)
	f.draft(t, app.NewAssessment{Title: "Draft"}, "q1")
	live := f.live(t, app.NewAssessment{Title: "Live"}, "q1")
	f.complete(t, "s1", live.ID, map[string]string{"q1": "4"})

	teacherView, err := f.service.ListForClassroom(f.ctx, "t1", "c1")
	if err != nil {
		t.Fatalf("teacher list: %v", err)
	}
	if len(teacherView) != 2 {
		t.Fatalf("teacher should see both assessments, got %d", len(teacherView))
	}

	studentView, err := f.service.ListForClassroom(f.ctx, "s1", "c1")
	if err != nil {
		t.Fatalf("student list: %v", err)
	}
	if len(studentView) != 1 || studentView[0].ID != live.ID {
		t.Fatalf("student should see only the live assessment, got %+v", studentView)
	}
	if !studentView[0].IsSubmitted || studentView[0].AttemptID == "" {
		t.Fatalf("expected submitted annotation, got %+v", studentView[0])
	}

	other, err := f.service.ListForClassroom(f.ctx, "s2", "c1")
	if err != nil {
		t.Fatalf("s2 list: %v", err)
	}
	if other[0].IsSubmitted || other[0].AttemptID != "" {
		t.Fatalf("s2 has no attempt, got %+v", other[0])
	}

	if _, err := f.service.ListForClassroom(f.ctx, "s3", "c1"); !errors.Is(err, domain.ErrNotClassroomMember) {
		t.Fatalf("expected membership error, got %v", err)
	}
}

func TestAssessmentDetailAccess(t *testing.T) {
	f := newFixture(t)
	a := f.live(t, app.NewAssessment{}, "q2", "q1")

	detail, err := f.service.AssessmentDetail(f.ctx, "s1", a.ID)
	if err != nil {
		t.Fatalf("member detail: %v", err)
	}
	if len(detail.QuestionList) != 2 || detail.QuestionList[0].ID != "q2" {
		t.Fatalf("expected questions in link order, got %+v", detail.QuestionList)
	}
	if _, err := f.service.AssessmentDetail(f.ctx, "s3", a.ID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected outsider to be rejected, got %v", err)
	}
}

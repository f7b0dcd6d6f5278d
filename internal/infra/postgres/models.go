package postgres

import (
	"time"

	"classroom-assessment-service/internal/domain"
	"github.com/uptrace/bun"
)

type userRow struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID   string `bun:"id,pk"`
	Name string `bun:"name,notnull"`
	Role string `bun:"role,notnull"`
}

type classroomRow struct {
	bun.BaseModel `bun:"table:classrooms,alias:c"`

	ID        string `bun:"id,pk"`
	Name      string `bun:"name,notnull"`
	TeacherID string `bun:"teacher_id,notnull"`
}

type memberRow struct {
	bun.BaseModel `bun:"table:classroom_members,alias:m"`

	ClassroomID string     `bun:"classroom_id,pk"`
	StudentID   string     `bun:"student_id,pk"`
	JoinedAt    time.Time  `bun:"joined_at,nullzero,notnull,default:current_timestamp"`
	LeftAt      *time.Time `bun:"left_at"`
}

type questionRow struct {
	bun.BaseModel `bun:"table:questions,alias:q"`

	ID            string    `bun:"id,pk"`
	Prompt        string    `bun:"prompt,notnull"`
	Options       []string  `bun:"options,type:jsonb,notnull"`
	CorrectOption string    `bun:"correct_option,notnull"`
	Topic         string    `bun:"topic,notnull"`
	Difficulty    string    `bun:"difficulty,notnull"`
	AuthorID      string    `bun:"author_id,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
}

type assessmentRow struct {
	bun.BaseModel `bun:"table:assessments,alias:a"`

	ID                 string     `bun:"id,pk"`
	ClassroomID        string     `bun:"classroom_id,nullzero"`
	OwnerID            string     `bun:"owner_id,notnull"`
	Title              string     `bun:"title,notnull"`
	Kind               string     `bun:"kind,notnull"`
	Status             string     `bun:"status,notnull"`
	StartTime          *time.Time `bun:"start_time"`
	EndTime            *time.Time `bun:"end_time"`
	SecondsPerQuestion int        `bun:"seconds_per_question,notnull"`
	CreatedAt          time.Time  `bun:"created_at,notnull"`
}

type linkRow struct {
	bun.BaseModel `bun:"table:assessment_questions,alias:aq"`

	ID            int64  `bun:"id,pk,autoincrement"`
	AssessmentID  string `bun:"assessment_id,notnull"`
	QuestionID    string `bun:"question_id,notnull"`
	QuestionOrder int    `bun:"question_order,notnull"`
}

type attemptRow struct {
	bun.BaseModel `bun:"table:attempts,alias:at"`

	ID           string     `bun:"id,pk"`
	AssessmentID string     `bun:"assessment_id,notnull"`
	StudentID    string     `bun:"student_id,notnull"`
	Score        float64    `bun:"score,notnull"`
	StartedAt    time.Time  `bun:"started_at,notnull"`
	SubmittedAt  *time.Time `bun:"submitted_at"`
}

type answerRow struct {
	bun.BaseModel `bun:"table:attempt_answers,alias:an"`

	ID         string `bun:"id,pk"`
	AttemptID  string `bun:"attempt_id,notnull"`
	QuestionID string `bun:"question_id,notnull"`
	Selected   string `bun:"selected,notnull"`
	Correct    bool   `bun:"is_correct,notnull"`
	TimeSpent  int    `bun:"time_spent,notnull"`
}

func toQuestionRow(q domain.Question) questionRow {
	return questionRow{
		ID:            q.ID,
		Prompt:        q.Prompt,
		Options:       q.Options,
		CorrectOption: q.CorrectOption,
		Topic:         q.Topic,
		Difficulty:    q.Difficulty,
		AuthorID:      q.AuthorID,
		CreatedAt:     q.CreatedAt,
	}
}

func toAssessmentRow(a domain.Assessment) assessmentRow {
	return assessmentRow{
		ID:                 a.ID,
		ClassroomID:        a.ClassroomID,
		OwnerID:            a.OwnerID,
		Title:              a.Title,
		Kind:               string(a.Kind),
		Status:             string(a.Status),
		StartTime:          a.StartTime,
		EndTime:            a.EndTime,
		SecondsPerQuestion: a.SecondsPerQuestion,
		CreatedAt:          a.CreatedAt,
	}
}

func (r assessmentRow) toDomain(links []linkRow) domain.Assessment {
	questions := make([]domain.QuestionLink, 0, len(links))
	for _, l := range links {
		questions = append(questions, domain.QuestionLink{QuestionID: l.QuestionID, Order: l.QuestionOrder})
	}
	return domain.Assessment{
		ID:                 r.ID,
		ClassroomID:        r.ClassroomID,
		OwnerID:            r.OwnerID,
		Title:              r.Title,
		Kind:               domain.AssessmentKind(r.Kind),
		Status:             domain.AssessmentStatus(r.Status),
		StartTime:          utc(r.StartTime),
		EndTime:            utc(r.EndTime),
		SecondsPerQuestion: r.SecondsPerQuestion,
		CreatedAt:          r.CreatedAt.UTC(),
		Questions:          questions,
	}
}

func toAttemptRow(a domain.Attempt) attemptRow {
	return attemptRow{
		ID:           a.ID,
		AssessmentID: a.AssessmentID,
		StudentID:    a.StudentID,
		Score:        a.Score,
		StartedAt:    a.StartedAt,
		SubmittedAt:  a.SubmittedAt,
	}
}

func (r attemptRow) toDomain() domain.Attempt {
	return domain.Attempt{
		ID:           r.ID,
		AssessmentID: r.AssessmentID,
		StudentID:    r.StudentID,
		Score:        r.Score,
		StartedAt:    r.StartedAt.UTC(),
		SubmittedAt:  utc(r.SubmittedAt),
	}
}

func (r answerRow) toDomain() domain.Answer {
	return domain.Answer{
		ID:         r.ID,
		AttemptID:  r.AttemptID,
		QuestionID: r.QuestionID,
		Selected:   r.Selected,
		Correct:    r.Correct,
		TimeSpent:  r.TimeSpent,
	}
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

package domain

import "time"

// Role is the classroom role carried by an authenticated caller.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// User is the subset of an account this service reads from the directory.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// Classroom is owned by exactly one teacher.
type Classroom struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	TeacherID string `json:"teacherId"`
}

// AssessmentKind decides timing rules and classroom association.
type AssessmentKind string

const (
	KindLive     AssessmentKind = "LIVE"
	KindHomework AssessmentKind = "HOMEWORK"
	KindSelf     AssessmentKind = "SELF"
)

// AssessmentStatus is the lifecycle state: DRAFT -> LIVE -> CLOSED.
type AssessmentStatus string

const (
	StatusDraft  AssessmentStatus = "DRAFT"
	StatusLive   AssessmentStatus = "LIVE"
	StatusClosed AssessmentStatus = "CLOSED"
)

// QuestionLink places a question inside an assessment. Order values are unique per assessment.
type QuestionLink struct {
	QuestionID string `json:"questionId"`
	Order      int    `json:"order"`
}

// Assessment is an ordered set of questions with a lifecycle status and timing rules.
// ClassroomID is empty for SELF assessments.
type Assessment struct {
	ID                 string           `json:"id"`
	ClassroomID        string           `json:"classroomId,omitempty"`
	OwnerID            string           `json:"ownerId"`
	Title              string           `json:"title"`
	Kind               AssessmentKind   `json:"kind"`
	Status             AssessmentStatus `json:"status"`
	StartTime          *time.Time       `json:"startTime,omitempty"`
	EndTime            *time.Time       `json:"endTime,omitempty"`
	SecondsPerQuestion int              `json:"secondsPerQuestion"`
	CreatedAt          time.Time        `json:"createdAt"`
	Questions          []QuestionLink   `json:"questions"`
}

// HasQuestion reports whether questionID is already linked.
func (a Assessment) HasQuestion(questionID string) bool {
	for _, link := range a.Questions {
		if link.QuestionID == questionID {
			return true
		}
	}
	return false
}

// HasOrder reports whether an order slot is taken.
func (a Assessment) HasOrder(order int) bool {
	for _, link := range a.Questions {
		if link.Order == order {
			return true
		}
	}
	return false
}

// NextOrder returns one past the highest order in use.
func (a Assessment) NextOrder() int {
	next := 1
	for _, link := range a.Questions {
		if link.Order >= next {
			next = link.Order + 1
		}
	}
	return next
}

// TotalDuration is the time budget for the whole assessment; zero means untimed.
func (a Assessment) TotalDuration() time.Duration {
	return time.Duration(a.SecondsPerQuestion*len(a.Questions)) * time.Second
}

// Question models a multiple-choice question with exactly one correct option.
type Question struct {
	ID            string    `json:"id"`
	Prompt        string    `json:"prompt"`
	Options       []string  `json:"options"`
	CorrectOption string    `json:"correctOption"`
	Topic         string    `json:"topic"`
	Difficulty    string    `json:"difficulty"`
	AuthorID      string    `json:"authorId"`
	CreatedAt     time.Time `json:"createdAt"`
}

// IsCorrect compares a selection against the correct option by exact match.
func (q Question) IsCorrect(selection string) bool {
	return selection == q.CorrectOption
}

// Attempt is one student's run through an assessment. Score is meaningful once SubmittedAt is set.
type Attempt struct {
	ID           string     `json:"id"`
	AssessmentID string     `json:"assessmentId"`
	StudentID    string     `json:"studentId"`
	Score        float64    `json:"score"`
	StartedAt    time.Time  `json:"startedAt"`
	SubmittedAt  *time.Time `json:"submittedAt,omitempty"`
}

// Finalized reports whether the attempt has been submitted.
func (a Attempt) Finalized() bool {
	return a.SubmittedAt != nil
}

// Elapsed is the time between start and submission, zero while in progress.
func (a Attempt) Elapsed() time.Duration {
	if a.SubmittedAt == nil {
		return 0
	}
	return a.SubmittedAt.Sub(a.StartedAt)
}

// Answer is the single recorded selection for an (attempt, question) pair.
// Correct is fixed at write time.
type Answer struct {
	ID         string `json:"id"`
	AttemptID  string `json:"attemptId"`
	QuestionID string `json:"questionId"`
	Selected   string `json:"selected"`
	Correct    bool   `json:"correct"`
	TimeSpent  int    `json:"timeSpent"`
}

// AnswerView is an answer as its student sees it. Correct is nil while withheld.
type AnswerView struct {
	ID         string `json:"id"`
	AttemptID  string `json:"attemptId"`
	QuestionID string `json:"questionId"`
	Selected   string `json:"selected"`
	Correct    *bool  `json:"correct,omitempty"`
	TimeSpent  int    `json:"timeSpent"`
}

// View converts the stored answer, keeping correctness only when reveal is set.
func (a Answer) View(reveal bool) AnswerView {
	v := AnswerView{
		ID:         a.ID,
		AttemptID:  a.AttemptID,
		QuestionID: a.QuestionID,
		Selected:   a.Selected,
		TimeSpent:  a.TimeSpent,
	}
	if reveal {
		correct := a.Correct
		v.Correct = &correct
	}
	return v
}

// AttemptState is the read model for an attempt together with its recorded answers.
type AttemptState struct {
	Attempt
	Answers []AnswerView `json:"answers"`
}

package domain

import "time"

// LeaderboardEntry is one ranked, finalized attempt.
type LeaderboardEntry struct {
	Rank        int       `json:"rank"`
	StudentID   string    `json:"studentId"`
	StudentName string    `json:"studentName"`
	Score       float64   `json:"score"`
	ElapsedSecs int       `json:"elapsedSeconds"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Leaderboard captures the ordered scoreboard for an assessment.
type Leaderboard struct {
	AssessmentID string             `json:"assessmentId"`
	Title        string             `json:"title"`
	Entries      []LeaderboardEntry `json:"entries"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

// QuestionResult is the per-question line of a personal report.
// CorrectOption and Correct stay empty while correctness is withheld.
type QuestionResult struct {
	QuestionID    string `json:"questionId"`
	Prompt        string `json:"prompt"`
	Selected      string `json:"selected"`
	CorrectOption string `json:"correctOption,omitempty"`
	Correct       *bool  `json:"correct,omitempty"`
	TimeSpent     int    `json:"timeSpent"`
}

// AttemptReport is the student's own breakdown. Rank is nil until the attempt is finalized.
type AttemptReport struct {
	AttemptID     string           `json:"attemptId"`
	AssessmentID  string           `json:"assessmentId"`
	Score         float64          `json:"score"`
	Answered      int              `json:"answered"`
	QuestionCount int              `json:"questionCount"`
	Rank          *int             `json:"rank"`
	SubmittedAt   *time.Time       `json:"submittedAt,omitempty"`
	Questions     []QuestionResult `json:"questions"`
}

// StudentSummary is one finalized attempt inside a class report.
type StudentSummary struct {
	StudentID   string    `json:"studentId"`
	StudentName string    `json:"studentName"`
	Score       float64   `json:"score"`
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// AssessmentReport aggregates finalized attempts for the owner.
type AssessmentReport struct {
	AssessmentID  string           `json:"assessmentId"`
	Title         string           `json:"title"`
	QuestionCount int              `json:"questionCount"`
	Attempts      int              `json:"attempts"`
	AverageScore  float64          `json:"averageScore"`
	HighestScore  float64          `json:"highestScore"`
	LowestScore   float64          `json:"lowestScore"`
	Students      []StudentSummary `json:"students"`
}

// OptionStats counts how often an option was selected.
type OptionStats struct {
	Option   string `json:"option"`
	Selected int    `json:"selected"`
	Correct  bool   `json:"correct"`
}

// QuestionStats is the option distribution for one question.
type QuestionStats struct {
	QuestionID string        `json:"questionId"`
	Prompt     string        `json:"prompt"`
	Options    []OptionStats `json:"options"`
}

// Analytics is the owner's per-question view over finalized attempts.
type Analytics struct {
	AssessmentID string          `json:"assessmentId"`
	Attempts     int             `json:"attempts"`
	AverageScore float64         `json:"averageScore"`
	HighestScore float64         `json:"highestScore"`
	LowestScore  float64         `json:"lowestScore"`
	Questions    []QuestionStats `json:"questions"`
}

// Monitor statuses.
const (
	MonitorInProgress = "in_progress"
	MonitorSubmitted  = "submitted"
)

// MonitorEntry is the live status of one student's attempt.
type MonitorEntry struct {
	AttemptID        string    `json:"attemptId"`
	StudentID        string    `json:"studentId"`
	StudentName      string    `json:"studentName"`
	Status           string    `json:"status"`
	Answered         int       `json:"answered"`
	StartedAt        time.Time `json:"startedAt"`
	RemainingSeconds *int      `json:"remainingSeconds"`
}

// Monitor is a point-in-time projection of all attempts on an assessment.
type Monitor struct {
	AssessmentID         string         `json:"assessmentId"`
	TotalDurationSeconds int            `json:"totalDurationSeconds"`
	GeneratedAt          time.Time      `json:"generatedAt"`
	Entries              []MonitorEntry `json:"entries"`
}

// AssessmentSummary annotates an assessment with the caller's attempt, if any.
type AssessmentSummary struct {
	Assessment
	AttemptID   string `json:"attemptId,omitempty"`
	IsSubmitted bool   `json:"isSubmitted"`
}

// AssessmentDetail is an assessment with its questions resolved in order.
type AssessmentDetail struct {
	Assessment
	QuestionList []Question `json:"questionList"`
}

// ClientQuestion is a question without its correct option.
type ClientQuestion struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

// AttemptDetail is the attempt screen: attempt state plus questions to answer.
type AttemptDetail struct {
	AttemptState
	Title              string           `json:"title"`
	SecondsPerQuestion int              `json:"secondsPerQuestion"`
	Questions          []ClientQuestion `json:"questions"`
}

// PracticeQuestion is a previously answered question offered for practice.
type PracticeQuestion struct {
	QuestionID  string    `json:"questionId"`
	Prompt      string    `json:"prompt"`
	SourceTitle string    `json:"sourceTitle"`
	WasCorrect  bool      `json:"wasCorrect"`
	AnsweredAt  time.Time `json:"answeredAt"`
}

package app

import (
	"context"
	"errors"
	"time"

	"classroom-assessment-service/internal/domain"
	"github.com/google/uuid"
)

// AssessmentRepository persists assessments and their question links.
type AssessmentRepository interface {
	// CreateAssessment stores the assessment and its links atomically.
	CreateAssessment(ctx context.Context, a domain.Assessment) error
	GetAssessment(ctx context.Context, id string) (domain.Assessment, error)
	ListByClassroom(ctx context.Context, classroomID string) ([]domain.Assessment, error)
	// ListPractice returns SELF assessments owned by ownerID, newest first.
	ListPractice(ctx context.Context, ownerID string) ([]domain.Assessment, error)
	// LinkQuestion appends a link while the assessment is still DRAFT.
	LinkQuestion(ctx context.Context, assessmentID string, link domain.QuestionLink) error
	// CreateLinkedQuestion stores a new question and links it in one unit.
	CreateLinkedQuestion(ctx context.Context, assessmentID string, q domain.Question, order int) error
	// Publish moves a DRAFT assessment to LIVE, stamping startTime when none is set.
	Publish(ctx context.Context, id string, startTime time.Time) (domain.Assessment, error)
}

// ScoreFunc derives a final score from the answers recorded for an attempt.
type ScoreFunc func(answers []domain.Answer) float64

// AttemptRepository persists attempts and answers.
type AttemptRepository interface {
	// CreateAttempt returns domain.ErrAttemptExists if the (assessment, student) pair is taken.
	CreateAttempt(ctx context.Context, a domain.Attempt) error
	GetAttempt(ctx context.Context, id string) (domain.Attempt, error)
	FindAttempt(ctx context.Context, assessmentID, studentID string) (domain.Attempt, error)
	ListAttempts(ctx context.Context, assessmentID string) ([]domain.Attempt, error)
	ListStudentAttempts(ctx context.Context, studentID string) ([]domain.Attempt, error)
	ListAnswers(ctx context.Context, attemptID string) ([]domain.Answer, error)
	// UpsertAnswer replaces the answer for (attempt, question) or inserts it.
	// It fails with domain.ErrAttemptClosed once the attempt is finalized.
	UpsertAnswer(ctx context.Context, answer domain.Answer) (domain.Answer, error)
	// FinalizeAttempt scores and timestamps an attempt exactly once.
	FinalizeAttempt(ctx context.Context, id string, at time.Time, score ScoreFunc) (domain.Attempt, error)
}

// QuestionBank reads questions (cache/backing store).
type QuestionBank interface {
	GetQuestion(ctx context.Context, id string) (domain.Question, error)
}

// Directory answers identity and classroom membership questions owned elsewhere.
type Directory interface {
	GetClassroom(ctx context.Context, id string) (domain.Classroom, error)
	IsMember(ctx context.Context, classroomID, userID string) (bool, error)
	GetUsers(ctx context.Context, ids []string) (map[string]domain.User, error)
}

// Service contains the assessment and attempt use cases.
type Service struct {
	assessments AssessmentRepository
	attempts    AttemptRepository
	questions   QuestionBank
	directory   Directory
	feed        *leaderboardFeed
	now         func() time.Time
	newID       func() string
	// reveal exposes correctness on unfinalized attempts.
	reveal bool
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces the wall clock; used for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator replaces uuid generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

// WithRevealCorrectness shows students whether each answer is correct before they submit.
// Finalized attempts always reveal it.
func WithRevealCorrectness(reveal bool) Option {
	return func(s *Service) { s.reveal = reveal }
}

func NewService(assessments AssessmentRepository, attempts AttemptRepository, questions QuestionBank, directory Directory, opts ...Option) *Service {
	s := &Service{
		assessments: assessments,
		attempts:    attempts,
		questions:   questions,
		directory:   directory,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.feed = newFeed()
	return s
}

// RevealsCorrectness reports whether open attempts show correctness.
func (s *Service) RevealsCorrectness() bool {
	return s.reveal
}

// RevealFor reports whether correctness may be shown for the attempt.
func (s *Service) RevealFor(attempt domain.Attempt) bool {
	return s.reveal || attempt.Finalized()
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

// ownedAssessment loads an assessment and checks the caller owns it.
func (s *Service) ownedAssessment(ctx context.Context, assessmentID, userID string) (domain.Assessment, error) {
	a, err := s.assessments.GetAssessment(ctx, assessmentID)
	if err != nil {
		return domain.Assessment{}, err
	}
	if a.OwnerID != userID {
		return domain.Assessment{}, domain.ErrNotAssessmentOwner
	}
	return a, nil
}

// ownedAttempt loads an attempt; attempts owned by other students are reported as missing.
func (s *Service) ownedAttempt(ctx context.Context, attemptID, studentID string) (domain.Attempt, error) {
	attempt, err := s.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return domain.Attempt{}, err
	}
	if attempt.StudentID != studentID {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return attempt, nil
}

// orderedQuestions resolves an assessment's links in display order.
func (s *Service) orderedQuestions(ctx context.Context, a domain.Assessment) ([]domain.Question, error) {
	questions := make([]domain.Question, 0, len(a.Questions))
	for _, link := range sortedLinks(a.Questions) {
		q, err := s.questions.GetQuestion(ctx, link.QuestionID)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, nil
}

func (s *Service) userNames(ctx context.Context, ids []string) (map[string]string, error) {
	users, err := s.directory.GetUsers(ctx, ids)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(users))
	for id, u := range users {
		names[id] = u.Name
	}
	return names, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

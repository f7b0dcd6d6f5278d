package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"classroom-assessment-service/internal/app"
	"classroom-assessment-service/internal/domain"
)

// Store is an in-memory implementation of the assessment, attempt and directory ports.
// A single mutex serializes writes, which gives the same uniqueness guarantees the
// Postgres constraints provide.
type Store struct {
	mu          sync.RWMutex
	users       map[string]domain.User
	classrooms  map[string]domain.Classroom
	members     map[string]map[string]bool
	questions   map[string]domain.Question
	assessments map[string]domain.Assessment
	attempts    map[string]domain.Attempt
	// assessmentID/studentID -> attemptID
	attemptKeys map[string]string
	// attemptID -> questionID -> answer
	answers map[string]map[string]domain.Answer
}

var (
	_ app.AssessmentRepository = (*Store)(nil)
	_ app.AttemptRepository    = (*Store)(nil)
	_ app.Directory            = (*Store)(nil)
	_ QuestionLoader           = (*Store)(nil)
)

func NewStore() *Store {
	return &Store{
		users:       make(map[string]domain.User),
		classrooms:  make(map[string]domain.Classroom),
		members:     make(map[string]map[string]bool),
		questions:   make(map[string]domain.Question),
		assessments: make(map[string]domain.Assessment),
		attempts:    make(map[string]domain.Attempt),
		attemptKeys: make(map[string]string),
		answers:     make(map[string]map[string]domain.Answer),
	}
}

// AddUser seeds the directory.
func (s *Store) AddUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// AddClassroom seeds a classroom with its current members.
func (s *Store) AddClassroom(c domain.Classroom, memberIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classrooms[c.ID] = c
	if s.members[c.ID] == nil {
		s.members[c.ID] = make(map[string]bool)
	}
	for _, id := range memberIDs {
		s.members[c.ID][id] = true
	}
}

// AddQuestion seeds the question bank.
func (s *Store) AddQuestion(q domain.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions[q.ID] = cloneQuestion(q)
}

func (s *Store) GetClassroom(_ context.Context, id string) (domain.Classroom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.classrooms[id]
	if !ok {
		return domain.Classroom{}, domain.ErrClassroomNotFound
	}
	return c, nil
}

func (s *Store) IsMember(_ context.Context, classroomID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.members[classroomID][userID], nil
}

func (s *Store) GetUsers(_ context.Context, ids []string) (map[string]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.User, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (s *Store) LoadQuestion(_ context.Context, id string) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[id]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return cloneQuestion(q), nil
}

func (s *Store) CreateAssessment(_ context.Context, a domain.Assessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, link := range a.Questions {
		if _, ok := s.questions[link.QuestionID]; !ok {
			return domain.ErrQuestionNotFound
		}
	}
	s.assessments[a.ID] = cloneAssessment(a)
	return nil
}

func (s *Store) GetAssessment(_ context.Context, id string) (domain.Assessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assessments[id]
	if !ok {
		return domain.Assessment{}, domain.ErrAssessmentNotFound
	}
	return cloneAssessment(a), nil
}

func (s *Store) ListByClassroom(_ context.Context, classroomID string) ([]domain.Assessment, error) {
	return s.filterAssessments(func(a domain.Assessment) bool {
		return a.ClassroomID == classroomID
	}), nil
}

func (s *Store) ListPractice(_ context.Context, ownerID string) ([]domain.Assessment, error) {
	return s.filterAssessments(func(a domain.Assessment) bool {
		return a.Kind == domain.KindSelf && a.OwnerID == ownerID
	}), nil
}

func (s *Store) filterAssessments(keep func(domain.Assessment) bool) []domain.Assessment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Assessment{}
	for _, a := range s.assessments {
		if keep(a) {
			out = append(out, cloneAssessment(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) LinkQuestion(_ context.Context, assessmentID string, link domain.QuestionLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[link.QuestionID]; !ok {
		return domain.ErrQuestionNotFound
	}
	return s.linkLocked(assessmentID, link)
}

func (s *Store) CreateLinkedQuestion(_ context.Context, assessmentID string, q domain.Question, order int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLinkLocked(assessmentID, domain.QuestionLink{QuestionID: q.ID, Order: order}); err != nil {
		return err
	}
	s.questions[q.ID] = cloneQuestion(q)
	return s.linkLocked(assessmentID, domain.QuestionLink{QuestionID: q.ID, Order: order})
}

func (s *Store) checkLinkLocked(assessmentID string, link domain.QuestionLink) error {
	a, ok := s.assessments[assessmentID]
	if !ok {
		return domain.ErrAssessmentNotFound
	}
	if a.Status != domain.StatusDraft {
		return domain.ErrAssessmentNotDraft
	}
	if a.HasQuestion(link.QuestionID) {
		return domain.ErrQuestionAlreadyUsed
	}
	if a.HasOrder(link.Order) {
		return domain.ErrOrderTaken
	}
	return nil
}

func (s *Store) linkLocked(assessmentID string, link domain.QuestionLink) error {
	if err := s.checkLinkLocked(assessmentID, link); err != nil {
		return err
	}
	a := s.assessments[assessmentID]
	a.Questions = append(append([]domain.QuestionLink(nil), a.Questions...), link)
	s.assessments[assessmentID] = a
	return nil
}

func (s *Store) Publish(_ context.Context, id string, startTime time.Time) (domain.Assessment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assessments[id]
	if !ok {
		return domain.Assessment{}, domain.ErrAssessmentNotFound
	}
	if a.Status != domain.StatusDraft {
		return domain.Assessment{}, domain.ErrAssessmentNotDraft
	}
	a.Status = domain.StatusLive
	if a.StartTime == nil {
		a.StartTime = &startTime
	}
	s.assessments[id] = a
	return cloneAssessment(a), nil
}

func (s *Store) CreateAttempt(_ context.Context, a domain.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := attemptKey(a.AssessmentID, a.StudentID)
	if _, ok := s.attemptKeys[key]; ok {
		return domain.ErrAttemptExists
	}
	s.attempts[a.ID] = cloneAttempt(a)
	s.attemptKeys[key] = a.ID
	return nil
}

func (s *Store) GetAttempt(_ context.Context, id string) (domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.attempts[id]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return cloneAttempt(a), nil
}

func (s *Store) FindAttempt(_ context.Context, assessmentID, studentID string) (domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.attemptKeys[attemptKey(assessmentID, studentID)]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return cloneAttempt(s.attempts[id]), nil
}

func (s *Store) ListAttempts(_ context.Context, assessmentID string) ([]domain.Attempt, error) {
	return s.filterAttempts(func(a domain.Attempt) bool { return a.AssessmentID == assessmentID }), nil
}

func (s *Store) ListStudentAttempts(_ context.Context, studentID string) ([]domain.Attempt, error) {
	return s.filterAttempts(func(a domain.Attempt) bool { return a.StudentID == studentID }), nil
}

func (s *Store) filterAttempts(keep func(domain.Attempt) bool) []domain.Attempt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Attempt{}
	for _, a := range s.attempts {
		if keep(a) {
			out = append(out, cloneAttempt(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) ListAnswers(_ context.Context, attemptID string) ([]domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.answersLocked(attemptID), nil
}

func (s *Store) answersLocked(attemptID string) []domain.Answer {
	out := make([]domain.Answer, 0, len(s.answers[attemptID]))
	for _, ans := range s.answers[attemptID] {
		out = append(out, ans)
	}
	// assessment question order, unlinked questions last
	order := make(map[string]int)
	if attempt, ok := s.attempts[attemptID]; ok {
		for _, link := range s.assessments[attempt.AssessmentID].Questions {
			order[link.QuestionID] = link.Order
		}
	}
	sort.Slice(out, func(i, j int) bool {
		oi, iok := order[out[i].QuestionID]
		oj, jok := order[out[j].QuestionID]
		if iok != jok {
			return iok
		}
		if oi != oj {
			return oi < oj
		}
		return out[i].QuestionID < out[j].QuestionID
	})
	return out
}

func (s *Store) UpsertAnswer(_ context.Context, answer domain.Answer) (domain.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[answer.AttemptID]
	if !ok {
		return domain.Answer{}, domain.ErrAttemptNotFound
	}
	if attempt.Finalized() {
		return domain.Answer{}, domain.ErrAttemptClosed
	}
	byQuestion := s.answers[answer.AttemptID]
	if byQuestion == nil {
		byQuestion = make(map[string]domain.Answer)
		s.answers[answer.AttemptID] = byQuestion
	}
	if prev, ok := byQuestion[answer.QuestionID]; ok {
		answer.ID = prev.ID
	}
	byQuestion[answer.QuestionID] = answer
	return answer, nil
}

func (s *Store) FinalizeAttempt(_ context.Context, id string, at time.Time, score app.ScoreFunc) (domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[id]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if attempt.Finalized() {
		return domain.Attempt{}, domain.ErrAttemptSubmitted
	}
	if at.Before(attempt.StartedAt) {
		at = attempt.StartedAt
	}
	attempt.Score = score(s.answersLocked(id))
	attempt.SubmittedAt = &at
	s.attempts[id] = attempt
	return cloneAttempt(attempt), nil
}

func attemptKey(assessmentID, studentID string) string {
	return assessmentID + "/" + studentID
}

func cloneAssessment(a domain.Assessment) domain.Assessment {
	a.Questions = append([]domain.QuestionLink{}, a.Questions...)
	a.StartTime = cloneTime(a.StartTime)
	a.EndTime = cloneTime(a.EndTime)
	return a
}

func cloneAttempt(a domain.Attempt) domain.Attempt {
	a.SubmittedAt = cloneTime(a.SubmittedAt)
	return a
}

func cloneQuestion(q domain.Question) domain.Question {
	q.Options = append([]string(nil), q.Options...)
	return q
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

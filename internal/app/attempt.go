package app

import (
	"context"
	"errors"

	"classroom-assessment-service/internal/domain"
)

// StartAttempt opens a new attempt or resumes the caller's unfinished one.
func (s *Service) StartAttempt(ctx context.Context, studentID, assessmentID string) (domain.AttemptState, error) {
	a, err := s.assessments.GetAssessment(ctx, assessmentID)
	if err != nil {
		return domain.AttemptState{}, err
	}
	if a.Status != domain.StatusLive {
		return domain.AttemptState{}, domain.ErrAssessmentNotLive
	}
	if err := s.checkWindow(a); err != nil {
		return domain.AttemptState{}, err
	}

	existing, err := s.attempts.FindAttempt(ctx, assessmentID, studentID)
	switch {
	case err == nil:
		return s.resume(ctx, existing)
	case !isNotFound(err):
		return domain.AttemptState{}, err
	}

	attempt := domain.Attempt{
		ID:           s.newID(),
		AssessmentID: assessmentID,
		StudentID:    studentID,
		StartedAt:    s.clock(),
	}
	if err := s.attempts.CreateAttempt(ctx, attempt); err != nil {
		if !errors.Is(err, domain.ErrAttemptExists) {
			return domain.AttemptState{}, err
		}
		// Lost the insert race to a parallel start; resume the winner.
		existing, err := s.attempts.FindAttempt(ctx, assessmentID, studentID)
		if err != nil {
			return domain.AttemptState{}, err
		}
		return s.resume(ctx, existing)
	}
	return domain.AttemptState{Attempt: attempt, Answers: []domain.AnswerView{}}, nil
}

// RecordAnswer upserts the caller's selection for one question and returns the stored
// answer, correctness included. Whether correctness reaches the student is up to the caller.
func (s *Service) RecordAnswer(ctx context.Context, studentID, attemptID, questionID, selection string, timeSpent int) (domain.Answer, error) {
	attempt, err := s.ownedAttempt(ctx, attemptID, studentID)
	if err != nil {
		return domain.Answer{}, err
	}
	if attempt.Finalized() {
		return domain.Answer{}, domain.ErrAttemptClosed
	}
	if timeSpent < 0 {
		return domain.Answer{}, domain.NewValidationError(domain.FieldError{Field: "timeSpent", Error: "gte=0"})
	}

	a, err := s.assessments.GetAssessment(ctx, attempt.AssessmentID)
	if err != nil {
		return domain.Answer{}, err
	}
	if !a.HasQuestion(questionID) {
		return domain.Answer{}, domain.ErrQuestionNotFound
	}
	question, err := s.questions.GetQuestion(ctx, questionID)
	if err != nil {
		return domain.Answer{}, err
	}

	return s.attempts.UpsertAnswer(ctx, domain.Answer{
		ID:         s.newID(),
		AttemptID:  attemptID,
		QuestionID: questionID,
		Selected:   selection,
		Correct:    question.IsCorrect(selection),
		TimeSpent:  timeSpent,
	})
}

// FinalizeAttempt scores the attempt and stamps its submission time. It can succeed only once.
func (s *Service) FinalizeAttempt(ctx context.Context, studentID, attemptID string) (domain.Attempt, error) {
	attempt, err := s.ownedAttempt(ctx, attemptID, studentID)
	if err != nil {
		return domain.Attempt{}, err
	}
	if attempt.Finalized() {
		return domain.Attempt{}, domain.ErrAttemptSubmitted
	}

	final, err := s.attempts.FinalizeAttempt(ctx, attemptID, s.clock(), ScoreAnswers)
	if err != nil {
		return domain.Attempt{}, err
	}
	s.publishLeaderboard(ctx, final.AssessmentID)
	return final, nil
}

// AttemptDetail returns the caller's attempt with its answers and the questions to answer,
// correct options withheld.
func (s *Service) AttemptDetail(ctx context.Context, studentID, attemptID string) (domain.AttemptDetail, error) {
	attempt, err := s.ownedAttempt(ctx, attemptID, studentID)
	if err != nil {
		return domain.AttemptDetail{}, err
	}
	state, err := s.assemble(ctx, attempt)
	if err != nil {
		return domain.AttemptDetail{}, err
	}
	a, err := s.assessments.GetAssessment(ctx, attempt.AssessmentID)
	if err != nil {
		return domain.AttemptDetail{}, err
	}
	questions, err := s.orderedQuestions(ctx, a)
	if err != nil {
		return domain.AttemptDetail{}, err
	}

	client := make([]domain.ClientQuestion, 0, len(questions))
	for _, q := range questions {
		client = append(client, domain.ClientQuestion{ID: q.ID, Prompt: q.Prompt, Options: q.Options})
	}
	return domain.AttemptDetail{
		AttemptState:       state,
		Title:              a.Title,
		SecondsPerQuestion: a.SecondsPerQuestion,
		Questions:          client,
	}, nil
}

// ScoreAnswers counts correct answers among those recorded.
func ScoreAnswers(answers []domain.Answer) float64 {
	correct := 0
	for _, ans := range answers {
		if ans.Correct {
			correct++
		}
	}
	return float64(correct)
}

// checkWindow applies the start/end window to HOMEWORK assessments only.
func (s *Service) checkWindow(a domain.Assessment) error {
	if a.Kind != domain.KindHomework {
		return nil
	}
	now := s.clock()
	if a.StartTime != nil && now.Before(*a.StartTime) {
		return domain.ErrAssessmentNotOpen
	}
	if a.EndTime != nil && now.After(*a.EndTime) {
		return domain.ErrAssessmentExpired
	}
	return nil
}

func (s *Service) resume(ctx context.Context, attempt domain.Attempt) (domain.AttemptState, error) {
	if attempt.Finalized() {
		return domain.AttemptState{}, domain.ErrAttemptSubmitted
	}
	return s.assemble(ctx, attempt)
}

// assemble is the single place an attempt read model is built from stored rows.
func (s *Service) assemble(ctx context.Context, attempt domain.Attempt) (domain.AttemptState, error) {
	answers, err := s.attempts.ListAnswers(ctx, attempt.ID)
	if err != nil {
		return domain.AttemptState{}, err
	}
	reveal := s.RevealFor(attempt)
	views := make([]domain.AnswerView, 0, len(answers))
	for _, ans := range answers {
		views = append(views, ans.View(reveal))
	}
	return domain.AttemptState{Attempt: attempt, Answers: views}, nil
}

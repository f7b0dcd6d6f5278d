package app

import (
	"context"
	"sort"

	"classroom-assessment-service/internal/domain"
)

const (
	defaultPracticeTitle = "Self Assessment Practice"
	// one day, matching the NewPractice.Minutes bound
	maxPracticeMinutes = 1440
)

// CreatePractice builds a LIVE, classroom-less SELF assessment owned by the student.
func (s *Service) CreatePractice(ctx context.Context, studentID string, in NewPractice) (domain.Assessment, error) {
	if err := validateInput(in); err != nil {
		return domain.Assessment{}, err
	}
	ids := dedupe(in.QuestionIDs)
	if len(ids) == 0 {
		return domain.Assessment{}, domain.ErrEmptyPractice
	}

	links := make([]domain.QuestionLink, 0, len(ids))
	for i, id := range ids {
		if _, err := s.questions.GetQuestion(ctx, id); err != nil {
			return domain.Assessment{}, err
		}
		links = append(links, domain.QuestionLink{QuestionID: id, Order: i + 1})
	}

	now := s.clock()
	a := domain.Assessment{
		ID:                 s.newID(),
		OwnerID:            studentID,
		Title:              defaultString(in.Title, defaultPracticeTitle),
		Kind:               domain.KindSelf,
		Status:             domain.StatusLive,
		StartTime:          &now,
		SecondsPerQuestion: PerQuestionSeconds(in.Minutes, len(links)),
		CreatedAt:          now,
		Questions:          links,
	}
	if err := s.assessments.CreateAssessment(ctx, a); err != nil {
		return domain.Assessment{}, err
	}
	return a, nil
}

// PerQuestionSeconds spreads a minute budget over the questions, floor division.
// A missing or non-positive budget means untimed (zero); larger budgets are capped at one day.
func PerQuestionSeconds(minutes *int, questions int) int {
	if minutes == nil || *minutes <= 0 || questions <= 0 {
		return 0
	}
	budget := min(*minutes, maxPracticeMinutes)
	return (budget * 60) / questions
}

// PracticeHistory lists the student's own SELF assessments, newest first.
func (s *Service) PracticeHistory(ctx context.Context, studentID string) ([]domain.AssessmentSummary, error) {
	practice, err := s.assessments.ListPractice(ctx, studentID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.AssessmentSummary, 0, len(practice))
	for _, a := range practice {
		if a.OwnerID != studentID || a.Kind != domain.KindSelf {
			continue
		}
		summary, err := s.annotate(ctx, a, studentID)
		if err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// PracticeQuestions lists questions the student answered in finalized attempts, the most
// recent answer per question, newest first.
func (s *Service) PracticeQuestions(ctx context.Context, studentID string) ([]domain.PracticeQuestion, error) {
	attempts, err := s.attempts.ListStudentAttempts(ctx, studentID)
	if err != nil {
		return nil, err
	}
	finalized := finalizedOnly(attempts)
	sort.SliceStable(finalized, func(i, j int) bool {
		return finalized[i].SubmittedAt.After(*finalized[j].SubmittedAt)
	})

	seen := make(map[string]bool)
	titles := make(map[string]string)
	out := []domain.PracticeQuestion{}
	for _, attempt := range finalized {
		title, ok := titles[attempt.AssessmentID]
		if !ok {
			a, err := s.assessments.GetAssessment(ctx, attempt.AssessmentID)
			if err != nil {
				return nil, err
			}
			title = a.Title
			titles[attempt.AssessmentID] = title
		}
		answers, err := s.attempts.ListAnswers(ctx, attempt.ID)
		if err != nil {
			return nil, err
		}
		for _, ans := range answers {
			if seen[ans.QuestionID] {
				continue
			}
			q, err := s.questions.GetQuestion(ctx, ans.QuestionID)
			if err != nil {
				return nil, err
			}
			seen[ans.QuestionID] = true
			out = append(out, domain.PracticeQuestion{
				QuestionID:  q.ID,
				Prompt:      q.Prompt,
				SourceTitle: title,
				WasCorrect:  ans.Correct,
				AnsweredAt:  *attempt.SubmittedAt,
			})
		}
	}
	return out, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

package app

import (
	"context"
	"sort"

	"classroom-assessment-service/internal/domain"
)

// RankForLeaderboard orders finalized attempts by score desc, earlier submission first on
// ties. The leaderboard rewards speed; rank is the 1-based position in this order.
func RankForLeaderboard(attempts []domain.Attempt) []domain.Attempt {
	ranked := finalizedOnly(attempts)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].SubmittedAt.Before(*ranked[j].SubmittedAt)
	})
	return ranked
}

// ReportRank is 1 + the number of finalized attempts with a strictly greater score.
// Ties share a rank here, unlike the leaderboard.
func ReportRank(attempts []domain.Attempt, score float64) int {
	better := 0
	for _, a := range attempts {
		if a.Finalized() && a.Score > score {
			better++
		}
	}
	return better + 1
}

// Leaderboard ranks the finalized attempts of an assessment.
func (s *Service) Leaderboard(ctx context.Context, assessmentID string) (domain.Leaderboard, error) {
	a, err := s.assessments.GetAssessment(ctx, assessmentID)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	attempts, err := s.attempts.ListAttempts(ctx, assessmentID)
	if err != nil {
		return domain.Leaderboard{}, err
	}

	ranked := RankForLeaderboard(attempts)
	names, err := s.userNames(ctx, studentIDs(ranked))
	if err != nil {
		return domain.Leaderboard{}, err
	}

	entries := make([]domain.LeaderboardEntry, 0, len(ranked))
	for i, attempt := range ranked {
		entries = append(entries, domain.LeaderboardEntry{
			Rank:        i + 1,
			StudentID:   attempt.StudentID,
			StudentName: names[attempt.StudentID],
			Score:       attempt.Score,
			ElapsedSecs: int(attempt.Elapsed().Seconds()),
			SubmittedAt: *attempt.SubmittedAt,
		})
	}
	return domain.Leaderboard{
		AssessmentID: a.ID,
		Title:        a.Title,
		Entries:      entries,
		UpdatedAt:    s.clock(),
	}, nil
}

// AttemptReport is the caller's per-question breakdown of their own attempt.
func (s *Service) AttemptReport(ctx context.Context, studentID, attemptID string) (domain.AttemptReport, error) {
	attempt, err := s.ownedAttempt(ctx, attemptID, studentID)
	if err != nil {
		return domain.AttemptReport{}, err
	}
	a, err := s.assessments.GetAssessment(ctx, attempt.AssessmentID)
	if err != nil {
		return domain.AttemptReport{}, err
	}
	answers, err := s.attempts.ListAnswers(ctx, attemptID)
	if err != nil {
		return domain.AttemptReport{}, err
	}

	byQuestion := make(map[string]domain.Answer, len(answers))
	for _, ans := range answers {
		byQuestion[ans.QuestionID] = ans
	}

	reveal := s.RevealFor(attempt)
	results := make([]domain.QuestionResult, 0, len(answers))
	for _, link := range sortedLinks(a.Questions) {
		ans, ok := byQuestion[link.QuestionID]
		if !ok {
			continue
		}
		q, err := s.questions.GetQuestion(ctx, link.QuestionID)
		if err != nil {
			return domain.AttemptReport{}, err
		}
		result := domain.QuestionResult{
			QuestionID: q.ID,
			Prompt:     q.Prompt,
			Selected:   ans.Selected,
			TimeSpent:  ans.TimeSpent,
		}
		if reveal {
			correct := ans.Correct
			result.CorrectOption = q.CorrectOption
			result.Correct = &correct
		}
		results = append(results, result)
	}

	report := domain.AttemptReport{
		AttemptID:     attempt.ID,
		AssessmentID:  attempt.AssessmentID,
		Score:         attempt.Score,
		Answered:      len(answers),
		QuestionCount: len(a.Questions),
		SubmittedAt:   attempt.SubmittedAt,
		Questions:     results,
	}
	if attempt.Finalized() {
		all, err := s.attempts.ListAttempts(ctx, attempt.AssessmentID)
		if err != nil {
			return domain.AttemptReport{}, err
		}
		rank := ReportRank(all, attempt.Score)
		report.Rank = &rank
	}
	return report, nil
}

// AssessmentReport aggregates finalized attempts for the assessment owner.
func (s *Service) AssessmentReport(ctx context.Context, teacherID, assessmentID string) (domain.AssessmentReport, error) {
	a, err := s.ownedAssessment(ctx, assessmentID, teacherID)
	if err != nil {
		return domain.AssessmentReport{}, err
	}
	attempts, err := s.attempts.ListAttempts(ctx, assessmentID)
	if err != nil {
		return domain.AssessmentReport{}, err
	}
	finalized := finalizedOnly(attempts)
	names, err := s.userNames(ctx, studentIDs(finalized))
	if err != nil {
		return domain.AssessmentReport{}, err
	}

	stats := aggregate(finalized)
	students := make([]domain.StudentSummary, 0, len(finalized))
	for _, attempt := range finalized {
		students = append(students, domain.StudentSummary{
			StudentID:   attempt.StudentID,
			StudentName: names[attempt.StudentID],
			Score:       attempt.Score,
			Status:      "Completed",
			SubmittedAt: *attempt.SubmittedAt,
		})
	}
	return domain.AssessmentReport{
		AssessmentID:  a.ID,
		Title:         a.Title,
		QuestionCount: len(a.Questions),
		Attempts:      stats.count,
		AverageScore:  stats.avg,
		HighestScore:  stats.max,
		LowestScore:   stats.min,
		Students:      students,
	}, nil
}

// Analytics reports score aggregates and the option distribution of each question.
func (s *Service) Analytics(ctx context.Context, teacherID, assessmentID string) (domain.Analytics, error) {
	a, err := s.ownedAssessment(ctx, assessmentID, teacherID)
	if err != nil {
		return domain.Analytics{}, err
	}
	attempts, err := s.attempts.ListAttempts(ctx, assessmentID)
	if err != nil {
		return domain.Analytics{}, err
	}
	finalized := finalizedOnly(attempts)

	// question -> selection -> count
	counts := make(map[string]map[string]int)
	for _, attempt := range finalized {
		answers, err := s.attempts.ListAnswers(ctx, attempt.ID)
		if err != nil {
			return domain.Analytics{}, err
		}
		for _, ans := range answers {
			if counts[ans.QuestionID] == nil {
				counts[ans.QuestionID] = make(map[string]int)
			}
			counts[ans.QuestionID][ans.Selected]++
		}
	}

	questions, err := s.orderedQuestions(ctx, a)
	if err != nil {
		return domain.Analytics{}, err
	}
	perQuestion := make([]domain.QuestionStats, 0, len(questions))
	for _, q := range questions {
		options := make([]domain.OptionStats, 0, len(q.Options))
		for _, opt := range q.Options {
			options = append(options, domain.OptionStats{
				Option:   opt,
				Selected: counts[q.ID][opt],
				Correct:  opt == q.CorrectOption,
			})
		}
		perQuestion = append(perQuestion, domain.QuestionStats{QuestionID: q.ID, Prompt: q.Prompt, Options: options})
	}

	stats := aggregate(finalized)
	return domain.Analytics{
		AssessmentID: a.ID,
		Attempts:     stats.count,
		AverageScore: stats.avg,
		HighestScore: stats.max,
		LowestScore:  stats.min,
		Questions:    perQuestion,
	}, nil
}

// Subscribe returns a channel of leaderboard updates for an assessment.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *Service) Subscribe(ctx context.Context, assessmentID string) (<-chan domain.Leaderboard, func(), error) {
	lb, err := s.Leaderboard(ctx, assessmentID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.feed.subscribe(assessmentID, lb)
	return ch, cancel, nil
}

func (s *Service) publishLeaderboard(ctx context.Context, assessmentID string) {
	if !s.feed.watched(assessmentID) {
		return
	}
	lb, err := s.Leaderboard(ctx, assessmentID)
	if err != nil {
		return
	}
	s.feed.broadcast(assessmentID, lb)
}

type scoreStats struct {
	count         int
	avg, max, min float64
}

// aggregate returns zeros when nothing is finalized.
func aggregate(finalized []domain.Attempt) scoreStats {
	if len(finalized) == 0 {
		return scoreStats{}
	}
	st := scoreStats{count: len(finalized), max: finalized[0].Score, min: finalized[0].Score}
	sum := 0.0
	for _, a := range finalized {
		sum += a.Score
		if a.Score > st.max {
			st.max = a.Score
		}
		if a.Score < st.min {
			st.min = a.Score
		}
	}
	st.avg = sum / float64(len(finalized))
	return st
}

func finalizedOnly(attempts []domain.Attempt) []domain.Attempt {
	out := make([]domain.Attempt, 0, len(attempts))
	for _, a := range attempts {
		if a.Finalized() {
			out = append(out, a)
		}
	}
	return out
}

func studentIDs(attempts []domain.Attempt) []string {
	ids := make([]string, 0, len(attempts))
	for _, a := range attempts {
		ids = append(ids, a.StudentID)
	}
	return ids
}

package app

import (
	"context"
	"sort"

	"classroom-assessment-service/internal/domain"
)

// CreateAssessment creates a DRAFT assessment in a classroom the teacher owns.
func (s *Service) CreateAssessment(ctx context.Context, teacherID string, in NewAssessment) (domain.Assessment, error) {
	if err := validateInput(in); err != nil {
		return domain.Assessment{}, err
	}
	if in.StartTime != nil && in.EndTime != nil && in.EndTime.Before(*in.StartTime) {
		return domain.Assessment{}, domain.NewValidationError(domain.FieldError{Field: "endTime", Error: "gtefield=startTime"})
	}

	room, err := s.directory.GetClassroom(ctx, in.ClassroomID)
	if err != nil {
		return domain.Assessment{}, err
	}
	if room.TeacherID != teacherID {
		return domain.Assessment{}, domain.ErrNotClassroomOwner
	}

	a := domain.Assessment{
		ID:                 s.newID(),
		ClassroomID:        room.ID,
		OwnerID:            teacherID,
		Title:              in.Title,
		Kind:               in.Kind,
		Status:             domain.StatusDraft,
		StartTime:          utcPtr(in.StartTime),
		EndTime:            utcPtr(in.EndTime),
		SecondsPerQuestion: in.SecondsPerQuestion,
		CreatedAt:          s.clock(),
		Questions:          []domain.QuestionLink{},
	}
	if err := s.assessments.CreateAssessment(ctx, a); err != nil {
		return domain.Assessment{}, err
	}
	return a, nil
}

// AddQuestion links an existing question to a DRAFT assessment. An order of zero appends.
func (s *Service) AddQuestion(ctx context.Context, teacherID, assessmentID, questionID string, order int) (domain.QuestionLink, error) {
	a, err := s.editableAssessment(ctx, assessmentID, teacherID)
	if err != nil {
		return domain.QuestionLink{}, err
	}
	if _, err := s.questions.GetQuestion(ctx, questionID); err != nil {
		return domain.QuestionLink{}, err
	}
	link, err := placeLink(a, questionID, order)
	if err != nil {
		return domain.QuestionLink{}, err
	}
	if err := s.assessments.LinkQuestion(ctx, assessmentID, link); err != nil {
		return domain.QuestionLink{}, err
	}
	return link, nil
}

// CreateQuestion authors a new question and links it to a DRAFT assessment.
func (s *Service) CreateQuestion(ctx context.Context, teacherID, assessmentID string, in NewQuestion) (domain.Question, error) {
	a, err := s.editableAssessment(ctx, assessmentID, teacherID)
	if err != nil {
		return domain.Question{}, err
	}
	if err := validateInput(in); err != nil {
		return domain.Question{}, err
	}
	if !containsString(in.Options, in.CorrectOption) {
		return domain.Question{}, domain.NewValidationError(domain.FieldError{Field: "correctOption", Error: "oneof=options"})
	}

	q := domain.Question{
		ID:            s.newID(),
		Prompt:        in.Prompt,
		Options:       append([]string(nil), in.Options...),
		CorrectOption: in.CorrectOption,
		Topic:         defaultString(in.Topic, "General"),
		Difficulty:    defaultString(in.Difficulty, "Medium"),
		AuthorID:      teacherID,
		CreatedAt:     s.clock(),
	}
	link, err := placeLink(a, q.ID, in.Order)
	if err != nil {
		return domain.Question{}, err
	}
	if err := s.assessments.CreateLinkedQuestion(ctx, assessmentID, q, link.Order); err != nil {
		return domain.Question{}, err
	}
	return q, nil
}

// StartAssessment publishes a DRAFT assessment (DRAFT -> LIVE).
func (s *Service) StartAssessment(ctx context.Context, teacherID, assessmentID string) (domain.Assessment, error) {
	a, err := s.ownedAssessment(ctx, assessmentID, teacherID)
	if err != nil {
		return domain.Assessment{}, err
	}
	if a.Status != domain.StatusDraft {
		return domain.Assessment{}, domain.ErrAssessmentNotDraft
	}
	return s.assessments.Publish(ctx, assessmentID, s.clock())
}

// ListForClassroom returns every assessment to the owning teacher, and LIVE ones annotated
// with the caller's submission status to members.
func (s *Service) ListForClassroom(ctx context.Context, userID, classroomID string) ([]domain.AssessmentSummary, error) {
	room, err := s.directory.GetClassroom(ctx, classroomID)
	if err != nil {
		return nil, err
	}
	all, err := s.assessments.ListByClassroom(ctx, classroomID)
	if err != nil {
		return nil, err
	}

	if room.TeacherID == userID {
		out := make([]domain.AssessmentSummary, 0, len(all))
		for _, a := range all {
			out = append(out, domain.AssessmentSummary{Assessment: a})
		}
		return out, nil
	}

	member, err := s.directory.IsMember(ctx, classroomID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, domain.ErrNotClassroomMember
	}

	out := make([]domain.AssessmentSummary, 0, len(all))
	for _, a := range all {
		if a.Status != domain.StatusLive {
			continue
		}
		summary, err := s.annotate(ctx, a, userID)
		if err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, nil
}

// AssessmentDetail returns the assessment with its questions, correct options included,
// to the owner or a current classroom member.
func (s *Service) AssessmentDetail(ctx context.Context, userID, assessmentID string) (domain.AssessmentDetail, error) {
	a, err := s.assessments.GetAssessment(ctx, assessmentID)
	if err != nil {
		return domain.AssessmentDetail{}, err
	}
	if a.OwnerID != userID {
		if a.ClassroomID == "" {
			return domain.AssessmentDetail{}, domain.ErrNotAssessmentOwner
		}
		member, err := s.directory.IsMember(ctx, a.ClassroomID, userID)
		if err != nil {
			return domain.AssessmentDetail{}, err
		}
		if !member {
			return domain.AssessmentDetail{}, domain.ErrNotAssessmentOwner
		}
	}

	questions, err := s.orderedQuestions(ctx, a)
	if err != nil {
		return domain.AssessmentDetail{}, err
	}
	return domain.AssessmentDetail{Assessment: a, QuestionList: questions}, nil
}

func (s *Service) editableAssessment(ctx context.Context, assessmentID, teacherID string) (domain.Assessment, error) {
	a, err := s.ownedAssessment(ctx, assessmentID, teacherID)
	if err != nil {
		return domain.Assessment{}, err
	}
	if a.Status != domain.StatusDraft {
		return domain.Assessment{}, domain.ErrAssessmentNotDraft
	}
	return a, nil
}

func (s *Service) annotate(ctx context.Context, a domain.Assessment, studentID string) (domain.AssessmentSummary, error) {
	summary := domain.AssessmentSummary{Assessment: a}
	attempt, err := s.attempts.FindAttempt(ctx, a.ID, studentID)
	switch {
	case err == nil:
		summary.AttemptID = attempt.ID
		summary.IsSubmitted = attempt.Finalized()
	case isNotFound(err):
	default:
		return domain.AssessmentSummary{}, err
	}
	return summary, nil
}

func placeLink(a domain.Assessment, questionID string, order int) (domain.QuestionLink, error) {
	if a.HasQuestion(questionID) {
		return domain.QuestionLink{}, domain.ErrQuestionAlreadyUsed
	}
	if order <= 0 {
		order = a.NextOrder()
	}
	if a.HasOrder(order) {
		return domain.QuestionLink{}, domain.ErrOrderTaken
	}
	return domain.QuestionLink{QuestionID: questionID, Order: order}, nil
}

func sortedLinks(links []domain.QuestionLink) []domain.QuestionLink {
	out := append([]domain.QuestionLink(nil), links...)
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

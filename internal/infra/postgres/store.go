package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"classroom-assessment-service/internal/app"
	"classroom-assessment-service/internal/domain"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

const uniqueViolation = "23505"

var (
	_ app.AssessmentRepository = (*Store)(nil)
	_ app.AttemptRepository    = (*Store)(nil)
	_ app.Directory            = (*Store)(nil)
)

// Store is the bun-backed repository. Multi-row writes run in a transaction and
// lock the parent row so concurrent requests serialize per assessment or attempt.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// SaveUser upserts a directory user.
func (s *Store) SaveUser(ctx context.Context, u domain.User) error {
	row := userRow{ID: u.ID, Name: u.Name, Role: string(u.Role)}
	_, err := s.db.NewInsert().Model(&row).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("role = EXCLUDED.role").
		Exec(ctx)
	return err
}

// SaveClassroom upserts a classroom and enrolls the given students.
func (s *Store) SaveClassroom(ctx context.Context, c domain.Classroom, memberIDs ...string) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		row := classroomRow{ID: c.ID, Name: c.Name, TeacherID: c.TeacherID}
		if _, err := tx.NewInsert().Model(&row).
			On("CONFLICT (id) DO UPDATE").
			Set("name = EXCLUDED.name").
			Exec(ctx); err != nil {
			return err
		}
		for _, id := range memberIDs {
			member := memberRow{ClassroomID: c.ID, StudentID: id}
			if _, err := tx.NewInsert().Model(&member).
				On("CONFLICT (classroom_id, student_id) DO UPDATE").
				Set("left_at = NULL").
				Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveQuestion inserts a bank question.
func (s *Store) SaveQuestion(ctx context.Context, q domain.Question) error {
	row := toQuestionRow(q)
	_, err := s.db.NewInsert().Model(&row).Exec(ctx)
	return err
}

func (s *Store) GetClassroom(ctx context.Context, id string) (domain.Classroom, error) {
	var row classroomRow
	err := s.db.NewSelect().Model(&row).Where("c.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Classroom{}, domain.ErrClassroomNotFound
	}
	if err != nil {
		return domain.Classroom{}, fmt.Errorf("get classroom: %w", err)
	}
	return domain.Classroom{ID: row.ID, Name: row.Name, TeacherID: row.TeacherID}, nil
}

func (s *Store) IsMember(ctx context.Context, classroomID, userID string) (bool, error) {
	return s.db.NewSelect().Model((*memberRow)(nil)).
		Where("m.classroom_id = ?", classroomID).
		Where("m.student_id = ?", userID).
		Where("m.left_at IS NULL").
		Exists(ctx)
}

func (s *Store) GetUsers(ctx context.Context, ids []string) (map[string]domain.User, error) {
	out := make(map[string]domain.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []userRow
	if err := s.db.NewSelect().Model(&rows).Where("u.id IN (?)", bun.In(ids)).Scan(ctx); err != nil {
		return nil, fmt.Errorf("get users: %w", err)
	}
	for _, r := range rows {
		out[r.ID] = domain.User{ID: r.ID, Name: r.Name, Role: domain.Role(r.Role)}
	}
	return out, nil
}

func (s *Store) CreateAssessment(ctx context.Context, a domain.Assessment) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		row := toAssessmentRow(a)
		if _, err := tx.NewInsert().Model(&row).Exec(ctx); err != nil {
			return fmt.Errorf("insert assessment: %w", err)
		}
		for _, link := range a.Questions {
			if err := insertLink(ctx, tx, a.ID, link); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) GetAssessment(ctx context.Context, id string) (domain.Assessment, error) {
	return getAssessment(ctx, s.db, id, false)
}

func (s *Store) ListByClassroom(ctx context.Context, classroomID string) ([]domain.Assessment, error) {
	var rows []assessmentRow
	err := s.db.NewSelect().Model(&rows).
		Where("a.classroom_id = ?", classroomID).
		OrderExpr("a.created_at DESC, a.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	return s.withLinks(ctx, rows)
}

func (s *Store) ListPractice(ctx context.Context, ownerID string) ([]domain.Assessment, error) {
	var rows []assessmentRow
	err := s.db.NewSelect().Model(&rows).
		Where("a.owner_id = ?", ownerID).
		Where("a.kind = ?", string(domain.KindSelf)).
		OrderExpr("a.created_at DESC, a.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list practice: %w", err)
	}
	return s.withLinks(ctx, rows)
}

func (s *Store) withLinks(ctx context.Context, rows []assessmentRow) ([]domain.Assessment, error) {
	out := make([]domain.Assessment, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	var links []linkRow
	err := s.db.NewSelect().Model(&links).
		Where("aq.assessment_id IN (?)", bun.In(ids)).
		OrderExpr("aq.question_order ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	byAssessment := make(map[string][]linkRow, len(rows))
	for _, l := range links {
		byAssessment[l.AssessmentID] = append(byAssessment[l.AssessmentID], l)
	}
	for _, r := range rows {
		out = append(out, r.toDomain(byAssessment[r.ID]))
	}
	return out, nil
}

func (s *Store) LinkQuestion(ctx context.Context, assessmentID string, link domain.QuestionLink) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockDraft(ctx, tx, assessmentID); err != nil {
			return err
		}
		exists, err := tx.NewSelect().Model((*questionRow)(nil)).Where("q.id = ?", link.QuestionID).Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrQuestionNotFound
		}
		return insertLink(ctx, tx, assessmentID, link)
	})
}

func (s *Store) CreateLinkedQuestion(ctx context.Context, assessmentID string, q domain.Question, order int) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockDraft(ctx, tx, assessmentID); err != nil {
			return err
		}
		row := toQuestionRow(q)
		if _, err := tx.NewInsert().Model(&row).Exec(ctx); err != nil {
			return fmt.Errorf("insert question: %w", err)
		}
		return insertLink(ctx, tx, assessmentID, domain.QuestionLink{QuestionID: q.ID, Order: order})
	})
}

func (s *Store) Publish(ctx context.Context, id string, startTime time.Time) (domain.Assessment, error) {
	var out domain.Assessment
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		a, err := getAssessment(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if a.Status != domain.StatusDraft {
			return domain.ErrAssessmentNotDraft
		}
		if _, err := tx.NewUpdate().Model((*assessmentRow)(nil)).
			Set("status = ?", string(domain.StatusLive)).
			Set("start_time = COALESCE(start_time, ?)", startTime).
			Where("id = ?", id).
			Exec(ctx); err != nil {
			return fmt.Errorf("publish assessment: %w", err)
		}
		a.Status = domain.StatusLive
		if a.StartTime == nil {
			a.StartTime = utc(&startTime)
		}
		out = a
		return nil
	})
	return out, err
}

func (s *Store) CreateAttempt(ctx context.Context, a domain.Attempt) error {
	row := toAttemptRow(a)
	_, err := s.db.NewInsert().Model(&row).Exec(ctx)
	if isUniqueViolation(err) {
		return domain.ErrAttemptExists
	}
	return err
}

func (s *Store) GetAttempt(ctx context.Context, id string) (domain.Attempt, error) {
	return getAttempt(ctx, s.db, id, false)
}

func (s *Store) FindAttempt(ctx context.Context, assessmentID, studentID string) (domain.Attempt, error) {
	var row attemptRow
	err := s.db.NewSelect().Model(&row).
		Where("at.assessment_id = ?", assessmentID).
		Where("at.student_id = ?", studentID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("find attempt: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListAttempts(ctx context.Context, assessmentID string) ([]domain.Attempt, error) {
	return s.listAttempts(ctx, "at.assessment_id = ?", assessmentID)
}

func (s *Store) ListStudentAttempts(ctx context.Context, studentID string) ([]domain.Attempt, error) {
	return s.listAttempts(ctx, "at.student_id = ?", studentID)
}

func (s *Store) listAttempts(ctx context.Context, where string, arg string) ([]domain.Attempt, error) {
	var rows []attemptRow
	err := s.db.NewSelect().Model(&rows).
		Where(where, arg).
		OrderExpr("at.started_at ASC, at.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	out := make([]domain.Attempt, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) ListAnswers(ctx context.Context, attemptID string) ([]domain.Answer, error) {
	return listAnswers(ctx, s.db, attemptID)
}

func (s *Store) UpsertAnswer(ctx context.Context, answer domain.Answer) (domain.Answer, error) {
	var out domain.Answer
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		attempt, err := getAttempt(ctx, tx, answer.AttemptID, true)
		if err != nil {
			return err
		}
		if attempt.Finalized() {
			return domain.ErrAttemptClosed
		}
		row := answerRow{
			ID:         answer.ID,
			AttemptID:  answer.AttemptID,
			QuestionID: answer.QuestionID,
			Selected:   answer.Selected,
			Correct:    answer.Correct,
			TimeSpent:  answer.TimeSpent,
		}
		// Returning overwrites row.ID with the surviving row's id on conflict.
		if _, err := tx.NewInsert().Model(&row).
			On("CONFLICT (attempt_id, question_id) DO UPDATE").
			Set("selected = EXCLUDED.selected").
			Set("is_correct = EXCLUDED.is_correct").
			Set("time_spent = EXCLUDED.time_spent").
			Returning("id").
			Exec(ctx); err != nil {
			return fmt.Errorf("upsert answer: %w", err)
		}
		out = row.toDomain()
		return nil
	})
	return out, err
}

func (s *Store) FinalizeAttempt(ctx context.Context, id string, at time.Time, score app.ScoreFunc) (domain.Attempt, error) {
	var out domain.Attempt
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		attempt, err := getAttempt(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if attempt.Finalized() {
			return domain.ErrAttemptSubmitted
		}
		answers, err := listAnswers(ctx, tx, id)
		if err != nil {
			return err
		}
		if at.Before(attempt.StartedAt) {
			at = attempt.StartedAt
		}
		attempt.Score = score(answers)
		attempt.SubmittedAt = utc(&at)

		row := toAttemptRow(attempt)
		if _, err := tx.NewUpdate().Model(&row).
			Column("score", "submitted_at").
			WherePK().
			Where("submitted_at IS NULL").
			Exec(ctx); err != nil {
			return fmt.Errorf("finalize attempt: %w", err)
		}
		out = attempt
		return nil
	})
	return out, err
}

func getAssessment(ctx context.Context, db bun.IDB, id string, forUpdate bool) (domain.Assessment, error) {
	var row assessmentRow
	q := db.NewSelect().Model(&row).Where("a.id = ?", id)
	if forUpdate {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Assessment{}, domain.ErrAssessmentNotFound
		}
		return domain.Assessment{}, fmt.Errorf("get assessment: %w", err)
	}
	var links []linkRow
	if err := db.NewSelect().Model(&links).
		Where("aq.assessment_id = ?", id).
		OrderExpr("aq.question_order ASC").
		Scan(ctx); err != nil {
		return domain.Assessment{}, fmt.Errorf("get links: %w", err)
	}
	return row.toDomain(links), nil
}

func lockDraft(ctx context.Context, tx bun.Tx, assessmentID string) error {
	a, err := getAssessment(ctx, tx, assessmentID, true)
	if err != nil {
		return err
	}
	if a.Status != domain.StatusDraft {
		return domain.ErrAssessmentNotDraft
	}
	return nil
}

// insertLink relies on the two unique constraints of assessment_questions; the
// constraint name tells which rule was broken.
func insertLink(ctx context.Context, tx bun.Tx, assessmentID string, link domain.QuestionLink) error {
	row := linkRow{AssessmentID: assessmentID, QuestionID: link.QuestionID, QuestionOrder: link.Order}
	_, err := tx.NewInsert().Model(&row).Exec(ctx)
	if err == nil {
		return nil
	}
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) && pgErr.Field('C') == uniqueViolation {
		if pgErr.Field('n') == "assessment_questions_assessment_id_question_order_key" {
			return domain.ErrOrderTaken
		}
		return domain.ErrQuestionAlreadyUsed
	}
	return fmt.Errorf("insert link: %w", err)
}

func getAttempt(ctx context.Context, db bun.IDB, id string, forUpdate bool) (domain.Attempt, error) {
	var row attemptRow
	q := db.NewSelect().Model(&row).Where("at.id = ?", id)
	if forUpdate {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Attempt{}, domain.ErrAttemptNotFound
		}
		return domain.Attempt{}, fmt.Errorf("get attempt: %w", err)
	}
	return row.toDomain(), nil
}

func listAnswers(ctx context.Context, db bun.IDB, attemptID string) ([]domain.Answer, error) {
	var rows []answerRow
	if err := db.NewSelect().Model(&rows).
		Join("JOIN attempts AS at ON at.id = an.attempt_id").
		Join("LEFT JOIN assessment_questions AS aq ON aq.assessment_id = at.assessment_id AND aq.question_id = an.question_id").
		Where("an.attempt_id = ?", attemptID).
		OrderExpr("aq.question_order ASC NULLS LAST, an.question_id ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	out := make([]domain.Answer, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == uniqueViolation
}

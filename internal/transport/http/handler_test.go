package http

import (
	"net/http"
	"testing"

	"classroom-assessment-service/internal/app"
	"classroom-assessment-service/internal/domain"
)

func TestAttemptFlowOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	teacher := srv.token(t, "t1", domain.RoleTeacher)
	student := srv.token(t, "s1", domain.RoleStudent)
	a := srv.publish(t, teacher, "q1", "q2")

	var state domain.AttemptState
	if status := srv.call(t, http.MethodPost, "/assessments/"+a.ID+"/attempt", student, nil, &state); status != http.StatusOK {
		t.Fatalf("start attempt: status %d", status)
	}

	var answer map[string]any
	status := srv.call(t, http.MethodPost, "/attempts/"+state.ID+"/answer", student, map[string]any{
		"questionId": "q1",
		"selected":   "4",
		"timeSpent":  7,
	}, &answer)
	if status != http.StatusOK {
		t.Fatalf("record answer: status %d", status)
	}
	if _, ok := answer["correct"]; ok {
		t.Fatalf("correctness must be withheld by default, got %v", answer)
	}

	var final domain.Attempt
	if status := srv.call(t, http.MethodPost, "/attempts/"+state.ID+"/submit", student, nil, &final); status != http.StatusOK {
		t.Fatalf("submit: status %d", status)
	}
	if final.Score != 1 {
		t.Fatalf("expected score 1, got %v", final.Score)
	}

	var errBody errorBody
	if status := srv.call(t, http.MethodPost, "/attempts/"+state.ID+"/submit", student, nil, &errBody); status != http.StatusForbidden {
		t.Fatalf("expected 403 on second submit, got %d", status)
	}
	if errBody.Error != domain.ErrAttemptSubmitted.Error() {
		t.Fatalf("unexpected error body %+v", errBody)
	}

	var lb domain.Leaderboard
	if status := srv.call(t, http.MethodGet, "/assessments/"+a.ID+"/leaderboard", student, nil, &lb); status != http.StatusOK {
		t.Fatalf("leaderboard: status %d", status)
	}
	if len(lb.Entries) != 1 || lb.Entries[0].StudentName != "Alice" {
		t.Fatalf("unexpected leaderboard %+v", lb)
	}

	var report domain.AttemptReport
	if status := srv.call(t, http.MethodGet, "/attempts/"+state.ID+"/report", student, nil, &report); status != http.StatusOK {
		t.Fatalf("attempt report: status %d", status)
	}
	if report.Rank == nil || *report.Rank != 1 {
		t.Fatalf("expected rank 1, got %+v", report)
	}

	var classReport domain.AssessmentReport
	if status := srv.call(t, http.MethodGet, "/assessments/"+a.ID+"/report", teacher, nil, &classReport); status != http.StatusOK {
		t.Fatalf("assessment report: status %d", status)
	}
	if classReport.Attempts != 1 || classReport.HighestScore != 1 {
		t.Fatalf("unexpected class report %+v", classReport)
	}
}

func TestRevealCorrectnessOption(t *testing.T) {
	srv := newTestServer(t, app.WithRevealCorrectness(true))
	teacher := srv.token(t, "t1", domain.RoleTeacher)
	student := srv.token(t, "s1", domain.RoleStudent)
	a := srv.publish(t, teacher, "q1")

	var state domain.AttemptState
	srv.call(t, http.MethodPost, "/assessments/"+a.ID+"/attempt", student, nil, &state)

	var answer map[string]any
	srv.call(t, http.MethodPost, "/attempts/"+state.ID+"/answer", student, map[string]any{"questionId": "q1", "selected": "3"}, &answer)
	if answer["correct"] != false {
		t.Fatalf("expected correct=false in response, got %v", answer)
	}

	var resumed struct {
		Answers []map[string]any `json:"answers"`
	}
	srv.call(t, http.MethodPost, "/assessments/"+a.ID+"/attempt", student, nil, &resumed)
	if len(resumed.Answers) != 1 || resumed.Answers[0]["correct"] != false {
		t.Fatalf("expected correctness on resume, got %v", resumed.Answers)
	}
}

func TestCorrectnessWithheldBeforeSubmit(t *testing.T) {
	srv := newTestServer(t)
	teacher := srv.token(t, "t1", domain.RoleTeacher)
	student := srv.token(t, "s1", domain.RoleStudent)
	a := srv.publish(t, teacher, "q1", "q2")

	var state domain.AttemptState
	srv.call(t, http.MethodPost, "/assessments/"+a.ID+"/attempt", student, nil, &state)
	srv.call(t, http.MethodPost, "/attempts/"+state.ID+"/answer", student, map[string]any{"questionId": "q1", "selected": "3"}, nil)

	type answersView struct {
		Answers   []map[string]any `json:"answers"`
		Questions []map[string]any `json:"questions"`
	}

	var resumed answersView
	if status := srv.call(t, http.MethodPost, "/assessments/"+a.ID+"/attempt", student, nil, &resumed); status != http.StatusOK {
		t.Fatalf("resume: status %d", status)
	}
	var detail answersView
	if status := srv.call(t, http.MethodGet, "/attempts/"+state.ID, student, nil, &detail); status != http.StatusOK {
		t.Fatalf("detail: status %d", status)
	}
	for name, view := range map[string]answersView{"resume": resumed, "detail": detail} {
		if len(view.Answers) != 1 {
			t.Fatalf("%s: expected one answer, got %v", name, view.Answers)
		}
		if _, ok := view.Answers[0]["correct"]; ok {
			t.Fatalf("%s: correctness leaked before submit: %v", name, view.Answers[0])
		}
	}
	for _, q := range detail.Questions {
		if _, ok := q["correctOption"]; ok {
			t.Fatalf("detail leaked correct option: %v", q)
		}
	}

	var report answersView
	if status := srv.call(t, http.MethodGet, "/attempts/"+state.ID+"/report", student, nil, &report); status != http.StatusOK {
		t.Fatalf("report: status %d", status)
	}
	if len(report.Questions) != 1 {
		t.Fatalf("expected one report line, got %v", report.Questions)
	}
	for _, key := range []string{"correct", "correctOption"} {
		if _, ok := report.Questions[0][key]; ok {
			t.Fatalf("report leaked %s before submit: %v", key, report.Questions[0])
		}
	}

	srv.call(t, http.MethodPost, "/attempts/"+state.ID+"/submit", student, nil, nil)

	var final answersView
	srv.call(t, http.MethodGet, "/attempts/"+state.ID+"/report", student, nil, &final)
	if len(final.Questions) != 1 || final.Questions[0]["correct"] != false || final.Questions[0]["correctOption"] != "4" {
		t.Fatalf("expected correctness after submit, got %v", final.Questions)
	}
	var finalDetail answersView
	srv.call(t, http.MethodGet, "/attempts/"+state.ID, student, nil, &finalDetail)
	if len(finalDetail.Answers) != 1 || finalDetail.Answers[0]["correct"] != false {
		t.Fatalf("expected correctness in detail after submit, got %v", finalDetail.Answers)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	srv := newTestServer(t)
	teacher := srv.token(t, "t1", domain.RoleTeacher)
	student := srv.token(t, "s1", domain.RoleStudent)

	if status := srv.call(t, http.MethodGet, "/assessments/missing", "", nil, nil); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", status)
	}
	if status := srv.call(t, http.MethodGet, "/assessments/missing", "garbage", nil, nil); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", status)
	}
	if status := srv.call(t, http.MethodPost, "/assessments", student, map[string]any{"classroomId": "c1"}, nil); status != http.StatusForbidden {
		t.Fatalf("expected 403 for student creating assessment, got %d", status)
	}
	if status := srv.call(t, http.MethodGet, "/assessments/missing", teacher, nil, nil); status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}

	var verr errorBody
	status := srv.call(t, http.MethodPost, "/assessments", teacher, map[string]any{"classroomId": "c1", "kind": "LIVE"}, &verr)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing title, got %d", status)
	}
	if len(verr.Fields) != 1 || verr.Fields[0].Field != "title" {
		t.Fatalf("expected title field error, got %+v", verr)
	}

	a := srv.publish(t, teacher, "q1")
	if status := srv.call(t, http.MethodPatch, "/assessments/"+a.ID+"/start", teacher, nil, nil); status != http.StatusConflict {
		t.Fatalf("expected 409 on second start, got %d", status)
	}
	if status := srv.call(t, http.MethodPost, "/practice", student, map[string]any{"questionIds": []string{}}, nil); status != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty practice, got %d", status)
	}
}

func TestPracticeRoutes(t *testing.T) {
	srv := newTestServer(t)
	student := srv.token(t, "s2", domain.RoleStudent)

	var a domain.Assessment
	status := srv.call(t, http.MethodPost, "/practice", student, map[string]any{
		"questionIds": []string{"q1", "q2"},
		"minutes":     4,
	}, &a)
	if status != http.StatusCreated {
		t.Fatalf("create practice: status %d", status)
	}
	if a.Kind != domain.KindSelf || a.SecondsPerQuestion != 120 {
		t.Fatalf("unexpected practice %+v", a)
	}

	var history []domain.AssessmentSummary
	if status := srv.call(t, http.MethodGet, "/practice", student, nil, &history); status != http.StatusOK {
		t.Fatalf("history: status %d", status)
	}
	if len(history) != 1 || history[0].ID != a.ID {
		t.Fatalf("unexpected history %+v", history)
	}
}

func TestHealthzIsPublic(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

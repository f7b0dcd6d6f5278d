package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"classroom-assessment-service/internal/app"
	"classroom-assessment-service/internal/domain"
	"classroom-assessment-service/internal/infra/memory"
)

const testSecret = "test-secret"

type testServer struct {
	*httptest.Server
	auth    *Authenticator
	service *app.Service
}

func newTestServer(t *testing.T, opts ...app.Option) *testServer {
	t.Helper()
	store := memory.NewStore()
	store.AddUser(domain.User{ID: "t1", Name: "Ms Rivera", Role: domain.RoleTeacher})
	store.AddUser(domain.User{ID: "s1", Name: "Alice", Role: domain.RoleStudent})
	store.AddUser(domain.User{ID: "s2", Name: "Bob", Role: domain.RoleStudent})
	store.AddClassroom(domain.Classroom{ID: "c1", Name: "Math 7A", TeacherID: "t1"}, "s1", "s2")
	store.AddQuestion(domain.Question{ID: "q1", Prompt: "2 + 2?", Options: []string{"3", "4", "5"}, CorrectOption: "4", AuthorID: "t1"})
	store.AddQuestion(domain.Question{ID: "q2", Prompt: "3 * 3?", Options: []string{"6", "9"}, CorrectOption: "9", AuthorID: "t1"})

	service := app.NewService(store, store, memory.NewQuestionCache(store, time.Minute), store, opts...)
	auth := NewAuthenticator(testSecret)
	handler := NewHandler(service, auth, NewWSHandler(service, 50*time.Millisecond))
	server := httptest.NewServer(handler.Routes())
	t.Cleanup(server.Close)
	return &testServer{Server: server, auth: auth, service: service}
}

func (s *testServer) token(t *testing.T, userID string, role domain.Role) string {
	t.Helper()
	tok, err := s.auth.Issue(userID, role, time.Now(), time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

// call performs a JSON request and decodes the response into out when non-nil.
func (s *testServer) call(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

// publish creates and starts a LIVE assessment with the given questions through the API.
func (s *testServer) publish(t *testing.T, teacher string, questionIDs ...string) domain.Assessment {
	t.Helper()
	var a domain.Assessment
	status := s.call(t, http.MethodPost, "/assessments", teacher, map[string]any{
		"classroomId": "c1",
		"title":       "Quick check",
		"kind":        "LIVE",
	}, &a)
	if status != http.StatusCreated {
		t.Fatalf("create assessment: status %d", status)
	}
	for _, id := range questionIDs {
		if status := s.call(t, http.MethodPost, "/assessments/"+a.ID+"/questions", teacher, map[string]any{"questionId": id}, nil); status != http.StatusCreated {
			t.Fatalf("add question %s: status %d", id, status)
		}
	}
	if status := s.call(t, http.MethodPatch, "/assessments/"+a.ID+"/start", teacher, nil, &a); status != http.StatusOK {
		t.Fatalf("start assessment: status %d", status)
	}
	return a
}

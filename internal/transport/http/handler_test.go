package http_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"company-quiz-service/internal/app"
	"company-quiz-service/internal/auth"
	"company-quiz-service/internal/infra/memory"
	transport "company-quiz-service/internal/transport/http"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := memory.NewStore()
	quizCache := memory.NewQuizCache(store, time.Minute)
	answers := memory.NewAnswerCache()
	tokens := auth.NewTokenManager("test-secret", time.Minute)

	companies := app.NewCompanyService(store)
	users := app.NewUserService(store, tokens, auth.NewBcryptHasher(), nil)
	quizzes := app.NewQuizService(store, companies, quizCache)
	scoring := app.NewScoringService(store, quizCache, answers)
	analytics := app.NewAnalyticsService(store, store)

	mux := http.NewServeMux()
	transport.NewHandler(users, companies, quizzes, scoring, analytics).Register(mux)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &payload)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func registerAndLogin(t *testing.T, server *httptest.Server, name string) string {
	t.Helper()
	email := fmt.Sprintf("%s@example.com", name)
	resp, _ := doJSON(t, http.MethodPost, server.URL+"/auth/register", "", map[string]string{
		"email":            email,
		"username":         name,
		"password":         "pass1234",
		"confirm_password": "pass1234",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: status %d", name, resp.StatusCode)
	}
	resp, body := doJSON(t, http.MethodPost, server.URL+"/auth/login", "", map[string]string{
		"email":    email,
		"password": "pass1234",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: status %d", name, resp.StatusCode)
	}
	token, _ := body["access_token"].(string)
	if token == "" {
		t.Fatalf("login %s: no token in %v", name, body)
	}
	return token
}

func TestAuthRequired(t *testing.T) {
	server := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, server.URL+"/users", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodGet, server.URL+"/users", "garbage", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", resp.StatusCode)
	}
}

func TestRegisterLoginMe(t *testing.T) {
	server := newTestServer(t)
	token := registerAndLogin(t, server, "alice")

	resp, body := doJSON(t, http.MethodGet, server.URL+"/auth/me", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me: status %d", resp.StatusCode)
	}
	if body["email"] != "alice@example.com" {
		t.Fatalf("expected own profile, got %v", body)
	}
}

func TestRefreshEndpoint(t *testing.T) {
	server := newTestServer(t)
	token := registerAndLogin(t, server, "alice")

	resp, body := doJSON(t, http.MethodPost, server.URL+"/auth/refresh", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh: status %d", resp.StatusCode)
	}
	fresh, _ := body["access_token"].(string)
	if fresh == "" {
		t.Fatalf("expected a refreshed token, got %v", body)
	}
	resp, _ = doJSON(t, http.MethodGet, server.URL+"/auth/me", fresh, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me with refreshed token: status %d", resp.StatusCode)
	}
}

func TestCompanyAndQuizFlow(t *testing.T) {
	server := newTestServer(t)
	owner := registerAndLogin(t, server, "owner")

	resp, company := doJSON(t, http.MethodPost, server.URL+"/companies", owner, map[string]any{
		"name":        "acme",
		"description": "test",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create company: status %d", resp.StatusCode)
	}
	companyID := int64(company["id"].(float64))

	quizPayload := map[string]any{
		"title": "math",
		"questions": []map[string]any{
			{"question_title": "q1", "answers": []map[string]any{
				{"answer_text": "right", "is_correct": true},
				{"answer_text": "wrong"},
			}},
			{"question_title": "q2", "answers": []map[string]any{
				{"answer_text": "right", "is_correct": true},
				{"answer_text": "wrong"},
			}},
		},
	}
	url := fmt.Sprintf("%s/companies/%d/quizzes", server.URL, companyID)
	resp, quiz := doJSON(t, http.MethodPost, url, owner, quizPayload)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create quiz: status %d %v", resp.StatusCode, quiz)
	}
	quizID := int64(quiz["id"].(float64))

	// Duplicate title maps to 409.
	resp, _ = doJSON(t, http.MethodPost, url, owner, quizPayload)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate quiz: expected 409, got %d", resp.StatusCode)
	}

	// Questions come back without correctness flags.
	resp, _ = doJSON(t, http.MethodGet, fmt.Sprintf("%s/quizzes/%d/questions", server.URL, quizID), owner, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("questions: status %d", resp.StatusCode)
	}

	var questions []struct {
		ID      int64 `json:"id"`
		Answers []struct {
			ID int64 `json:"id"`
		} `json:"answers"`
	}
	req, _ := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/quizzes/%d/questions", server.URL, quizID), nil)
	req.Header.Set("Authorization", "Bearer "+owner)
	raw, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("questions request: %v", err)
	}
	defer raw.Body.Close()
	if err := json.NewDecoder(raw.Body).Decode(&questions); err != nil {
		t.Fatalf("decode questions: %v", err)
	}

	submission := map[string]any{"answers": []map[string]any{
		{"question_id": questions[0].ID, "choosed_answer_id": questions[0].Answers[0].ID},
		{"question_id": questions[1].ID, "choosed_answer_id": questions[1].Answers[0].ID},
	}}
	resp, result := doJSON(t, http.MethodPost, fmt.Sprintf("%s/quizzes/%d/pass", server.URL, quizID), owner, submission)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("pass quiz: status %d %v", resp.StatusCode, result)
	}
	if result["attempts"].(float64) != 1 {
		t.Fatalf("expected first attempt, got %v", result)
	}

	resp, _ = doJSON(t, http.MethodGet, fmt.Sprintf("%s/analytics/me/average", server.URL), owner, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("my average: status %d", resp.StatusCode)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	server := newTestServer(t)
	owner := registerAndLogin(t, server, "owner")
	stranger := registerAndLogin(t, server, "stranger")

	resp, _ := doJSON(t, http.MethodPost, server.URL+"/companies", owner, map[string]any{"name": "acme"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create company: status %d", resp.StatusCode)
	}

	// Missing name -> 400.
	resp, _ = doJSON(t, http.MethodPost, server.URL+"/companies", stranger, map[string]any{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty name, got %d", resp.StatusCode)
	}
	// Taken name -> 409.
	resp, _ = doJSON(t, http.MethodPost, server.URL+"/companies", stranger, map[string]any{"name": "acme"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for taken name, got %d", resp.StatusCode)
	}
	// Absent user -> 404.
	resp, _ = doJSON(t, http.MethodGet, server.URL+"/users/999", owner, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for absent user, got %d", resp.StatusCode)
	}
	// Analytics on a foreign company -> 401.
	resp, _ = doJSON(t, http.MethodGet, server.URL+"/analytics/companies/1/members/activity", stranger, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for foreign analytics, got %d", resp.StatusCode)
	}
}

package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

// setupSuggestTest creates a Gin engine backed by a mock OpenAI server and a
// gate on a manual clock. Returns the router, the mock server, a function to
// set the mock response, and the clock.
func setupSuggestTest() (*gin.Engine, *httptest.Server, func(int, interface{}), *testClock) {
	var mockStatus int
	var mockBody interface{}

	mockOpenAI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(mockStatus)
		json.NewEncoder(w).Encode(mockBody)
	}))

	clock := &testClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	gate := newCallGate(defaultCooldown, clock.Now)
	sc := newSuggestClient("test-key", mockOpenAI.URL, gate)

	gin.SetMode(gin.TestMode)
	h := &Handler{session: newTestSession(&fakeGateway{}), suggest: sc}
	router := gin.New()
	h.registerRoutes(router)

	setMock := func(status int, body interface{}) {
		mockStatus = status
		mockBody = body
	}

	return router, mockOpenAI, setMock, clock
}

// doJSONRequest sends a POST with the given JSON body.
func doJSONRequest(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// openAIChatResponse wraps a content string in the OpenAI chat completions
// response shape (choices[0].message.content).
func openAIChatResponse(content string) map[string]interface{} {
	return map[string]interface{}{
		"choices": []map[string]interface{}{
			{
				"message": map[string]interface{}{
					"content": content,
				},
			},
		},
	}
}

func TestAnalyzeFood_Success(t *testing.T) {
	router, mockServer, setMock, _ := setupSuggestTest()
	defer mockServer.Close()

	setMock(http.StatusOK, openAIChatResponse(
		`{"name":"Scrambled Eggs","calories":180,"protein_g":14,"carbs_g":2,"fat_g":12,"confidence":4}`))

	w := doJSONRequest(router, "/api/analyze/food", `{"description":"2 eggs scrambled"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp foodAnalysis
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Name != "Scrambled Eggs" {
		t.Errorf("expected name 'Scrambled Eggs', got '%s'", resp.Name)
	}
	if resp.Calories != 180 {
		t.Errorf("expected calories 180, got %d", resp.Calories)
	}
}

func TestAnalyzeExercise_Success(t *testing.T) {
	router, mockServer, setMock, _ := setupSuggestTest()
	defer mockServer.Close()

	// No profile loaded — the fallback prompt is used.
	setMock(http.StatusOK, openAIChatResponse(
		`{"name":"Jogging","duration_min":30,"calories_burned":250,"confidence":3}`))

	w := doJSONRequest(router, "/api/analyze/exercise", `{"description":"30 minute jog"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp exerciseAnalysis
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Name != "Jogging" {
		t.Errorf("expected name 'Jogging', got '%s'", resp.Name)
	}
	if resp.CaloriesBurned != 250 {
		t.Errorf("expected calories_burned 250, got %d", resp.CaloriesBurned)
	}
}

func TestAnalyzeFood_Unrecognized(t *testing.T) {
	router, mockServer, setMock, _ := setupSuggestTest()
	defer mockServer.Close()

	setMock(http.StatusOK, openAIChatResponse(`{"error":"unrecognized"}`))

	w := doJSONRequest(router, "/api/analyze/food", `{"description":"asdfghjkl"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["error"] != "unrecognized" {
		t.Errorf("expected error 'unrecognized', got '%s'", resp["error"])
	}
}

func TestAnalyzeFood_BackendError500(t *testing.T) {
	router, mockServer, setMock, _ := setupSuggestTest()
	defer mockServer.Close()

	setMock(http.StatusInternalServerError, map[string]string{"error": "server error"})

	w := doJSONRequest(router, "/api/analyze/food", `{"description":"banana"}`)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAnalyzeFood_EmptyDescription(t *testing.T) {
	router, mockServer, _, _ := setupSuggestTest()
	defer mockServer.Close()

	w := doJSONRequest(router, "/api/analyze/food", `{"description":""}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAnalyzeFood_MalformedResponse(t *testing.T) {
	router, mockServer, setMock, _ := setupSuggestTest()
	defer mockServer.Close()

	setMock(http.StatusOK, openAIChatResponse(`not valid json at all`))

	w := doJSONRequest(router, "/api/analyze/food", `{"description":"banana"}`)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAnalyzeFood_CooldownRejects(t *testing.T) {
	router, mockServer, setMock, clock := setupSuggestTest()
	defer mockServer.Close()

	setMock(http.StatusOK, openAIChatResponse(
		`{"name":"Banana","calories":105,"protein_g":1,"carbs_g":27,"fat_g":0,"confidence":5}`))

	w := doJSONRequest(router, "/api/analyze/food", `{"description":"banana"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on first call, got %d: %s", w.Code, w.Body.String())
	}

	// 1 second later, still inside the 4.1s window.
	clock.Advance(time.Second)
	w = doJSONRequest(router, "/api/analyze/food", `{"description":"apple"}`)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 inside cooldown window, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["error"] != "wait 3 more seconds" {
		t.Errorf("expected 'wait 3 more seconds', got '%s'", resp["error"])
	}

	// The food-analysis cooldown must not block an exercise analysis.
	setMock(http.StatusOK, openAIChatResponse(
		`{"name":"Rowing","duration_min":20,"calories_burned":180,"confidence":4}`))
	w = doJSONRequest(router, "/api/analyze/exercise", `{"description":"20 min row"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for independently keyed call, got %d: %s", w.Code, w.Body.String())
	}

	// After the window elapses the food key unlocks again.
	clock.Advance(defaultCooldown)
	setMock(http.StatusOK, openAIChatResponse(
		`{"name":"Apple","calories":95,"protein_g":0,"carbs_g":25,"fat_g":0,"confidence":5}`))
	w = doJSONRequest(router, "/api/analyze/food", `{"description":"apple"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 after window elapsed, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetSuggestion_Success(t *testing.T) {
	router, mockServer, setMock, _ := setupSuggestTest()
	defer mockServer.Close()

	setMock(http.StatusOK, openAIChatResponse(
		`{"suggestion":"You have plenty of protein budget left, a greek yogurt would fit well tonight."}`))

	w := doJSONRequest(router, "/api/suggestion", `{"date":"2026-03-14"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if !strings.Contains(resp["suggestion"], "protein") {
		t.Errorf("unexpected suggestion: %q", resp["suggestion"])
	}
}

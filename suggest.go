package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

/* ─── Response types ─────────────────────────────────────────────────── */

// foodAnalysis is the structured nutrition estimate returned for a food
// description. Confidence is 1-5 indicating how accurate the estimate is.
type foodAnalysis struct {
	Name       string  `json:"name"`
	Calories   int     `json:"calories"`
	ProteinG   float64 `json:"protein_g"`
	CarbsG     float64 `json:"carbs_g"`
	FatG       float64 `json:"fat_g"`
	Confidence int     `json:"confidence"`
}

// exerciseAnalysis is the structured burn estimate for an exercise description.
type exerciseAnalysis struct {
	Name           string `json:"name"`
	DurationMin    int    `json:"duration_min"`
	CaloriesBurned int    `json:"calories_burned"`
	Confidence     int    `json:"confidence"`
}

// cooldownError signals that the gate rejected a call; Message is the
// user-facing "wait N more seconds" text.
type cooldownError struct {
	Message string
}

func (e *cooldownError) Error() string { return e.Message }

/* ─── Prompt constants ───────────────────────────────────────────────── */

const suggestionSystemPrompt = `You are a nutrition coach. Given a summary of a user's day (calories consumed, burned, net, macro totals, and their daily targets), return a JSON object with:
- "suggestion" (string, 2-3 sentences of actionable advice for the rest of the day)

Be concrete and encouraging. Return only valid JSON, no explanation.`

const foodAnalysisSystemPrompt = `You are a nutrition assistant. Parse the food description and return a JSON object with:
- "name" (string, cleaned up title case)
- "calories" (integer, total for the full quantity)
- "protein_g" (number, grams)
- "carbs_g" (number, grams)
- "fat_g" (number, grams)
- "confidence" (integer 1-5: 5=exact known nutritional data, 1=very uncertain)

Always provide your best estimate, even for unfamiliar or vague items. Only return {"error": "unrecognized"} if the input is not food at all.
Return only valid JSON, no explanation.`

// exerciseAnalysisSystemPromptTemplate includes placeholders for the user's
// body stats so calories burned can be estimated more accurately.
const exerciseAnalysisSystemPromptTemplate = `You are a fitness calorie-burn estimator. The user is:
- Gender: %s
- Age: %d years
- Weight: %.1f kg
- Height: %.0f cm

Parse the exercise description and return a JSON object with:
- "name" (string, cleaned up title case)
- "duration_min" (integer, minutes)
- "calories_burned" (integer, estimated calories burned)
- "confidence" (integer 1-5: 5=well-studied exercise with known MET values, 1=very uncertain)

Always provide your best estimate. Only return {"error": "unrecognized"} if the input is not an exercise at all.
Return only valid JSON, no explanation.`

// exerciseAnalysisSystemPromptFallback is used when no profile is loaded.
const exerciseAnalysisSystemPromptFallback = `You are a fitness calorie-burn estimator. No body stats are available — use averages for an adult.

Parse the exercise description and return a JSON object with:
- "name" (string, cleaned up title case)
- "duration_min" (integer, minutes)
- "calories_burned" (integer, estimated calories burned)
- "confidence" (integer 1-5: 5=well-studied exercise with known MET values, 1=very uncertain)

Always provide your best estimate. Only return {"error": "unrecognized"} if the input is not an exercise at all.
Return only valid JSON, no explanation.`

/* ─── OpenAI HTTP client ─────────────────────────────────────────────── */

// openAIMessage is a single message in the OpenAI chat completions request.
type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// openAIRequest is the request body for the OpenAI chat completions API.
type openAIRequest struct {
	Model          string                 `json:"model"`
	Messages       []openAIMessage        `json:"messages"`
	Temperature    float64                `json:"temperature"`
	ResponseFormat map[string]interface{} `json:"response_format"`
}

// suggestClient calls the suggestion/analysis backend. Every call site goes
// through the cooldown gate: Check rejects calls still inside the window, and
// Record stamps the key before dispatch so slow responses cannot let a second
// call slip through. The base URL is overridable for tests.
type suggestClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	gate    *callGate
}

func newSuggestClient(apiKey, baseURL string, gate *callGate) *suggestClient {
	return &suggestClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
		gate:    gate,
	}
}

// call sends a chat completions request and returns the raw content string
// from the first choice. Uses raw net/http to avoid pulling in the OpenAI SDK.
func (sc *suggestClient) call(ctx context.Context, gateKey string, messages []openAIMessage) (string, error) {
	if sc.apiKey == "" {
		return "", fmt.Errorf("OPENAI_API_KEY not set")
	}
	if ok, msg := sc.gate.Check(gateKey); !ok {
		return "", &cooldownError{Message: msg}
	}
	sc.gate.Record(gateKey)

	reqBody := openAIRequest{
		Model:       "gpt-4o-mini",
		Messages:    messages,
		Temperature: 0,
		ResponseFormat: map[string]interface{}{
			"type": "json_object",
		},
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", sc.baseURL+"/v1/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+sc.apiKey)

	resp, err := sc.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openai returned status %d: %s", resp.StatusCode, string(respBytes))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBytes, &result); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return result.Choices[0].Message.Content, nil
}

// errUnrecognized is returned when the backend could not make sense of the
// described item.
var errUnrecognized = fmt.Errorf("unrecognized input")

// checkUnrecognized inspects a response for the {"error":"unrecognized"} shape.
func checkUnrecognized(content string) error {
	var errorResp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(content), &errorResp); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	if errorResp.Error == "unrecognized" {
		return errUnrecognized
	}
	return nil
}

/* ─── Gated operations ───────────────────────────────────────────────── */

// FetchSuggestion asks for coaching text based on the day's progress snapshot.
// All plain suggestion call sites share one gate key.
func (sc *suggestClient) FetchSuggestion(ctx context.Context, p dailyProgress) (string, error) {
	summary := fmt.Sprintf(
		"Date %s: consumed %d kcal (P %.0fg / C %.0fg / F %.0fg), burned %d kcal total (BMR %d, exercise %d, activity %d, TEF %d), net %d kcal. Daily target: %d kcal, protein %.0fg, carbs %.0fg, fat %.0fg. Water: %d of %d ml.",
		p.Date, p.CaloriesConsumed, p.ProteinG, p.CarbsG, p.FatG,
		p.TotalCaloriesOut, p.BMR, p.ExerciseBurn, p.NeatBurn, p.TEF, p.NetCalories,
		p.GoalCalories, p.ProteinTargetG, p.CarbsTargetG, p.FatTargetG,
		p.WaterIntakeML, p.WaterTargetML)

	content, err := sc.call(ctx, gateKeySuggest, []openAIMessage{
		{Role: "system", Content: suggestionSystemPrompt},
		{Role: "user", Content: summary},
	})
	if err != nil {
		return "", err
	}

	var resp struct {
		Suggestion string `json:"suggestion"`
	}
	if err := json.Unmarshal([]byte(content), &resp); err != nil {
		return "", fmt.Errorf("parse suggestion: %w", err)
	}
	if resp.Suggestion == "" {
		return "", fmt.Errorf("empty suggestion in response")
	}
	return resp.Suggestion, nil
}

// AnalyzeFood parses a free-form food description into a structured estimate.
func (sc *suggestClient) AnalyzeFood(ctx context.Context, description string) (foodAnalysis, error) {
	content, err := sc.call(ctx, gateKeyFoodAnalysis, []openAIMessage{
		{Role: "system", Content: foodAnalysisSystemPrompt},
		{Role: "user", Content: description},
	})
	if err != nil {
		return foodAnalysis{}, err
	}
	if err := checkUnrecognized(content); err != nil {
		return foodAnalysis{}, err
	}

	var analysis foodAnalysis
	if err := json.Unmarshal([]byte(content), &analysis); err != nil {
		return foodAnalysis{}, fmt.Errorf("parse food analysis: %w", err)
	}
	if analysis.Name == "" || analysis.Calories == 0 {
		return foodAnalysis{}, errUnrecognized
	}
	return analysis, nil
}

// AnalyzeExercise parses a free-form exercise description into a structured
// burn estimate, personalized with profile stats when available.
func (sc *suggestClient) AnalyzeExercise(ctx context.Context, description string, profile *userProfile) (exerciseAnalysis, error) {
	systemPrompt := exerciseAnalysisSystemPromptFallback
	if profile != nil {
		systemPrompt = fmt.Sprintf(exerciseAnalysisSystemPromptTemplate,
			profile.Gender, profile.Age, profile.WeightKG, profile.HeightCM)
	}

	content, err := sc.call(ctx, gateKeyExerciseAnalysis, []openAIMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: description},
	})
	if err != nil {
		return exerciseAnalysis{}, err
	}
	if err := checkUnrecognized(content); err != nil {
		return exerciseAnalysis{}, err
	}

	var analysis exerciseAnalysis
	if err := json.Unmarshal([]byte(content), &analysis); err != nil {
		return exerciseAnalysis{}, fmt.Errorf("parse exercise analysis: %w", err)
	}
	if analysis.Name == "" || analysis.CaloriesBurned == 0 {
		return exerciseAnalysis{}, errUnrecognized
	}
	return analysis, nil
}

/* ─── Debouncer ──────────────────────────────────────────────────────── */

// suggestDebounceDelay is how long the log must settle after a change before
// the suggestion refresh fires.
const suggestDebounceDelay = 3 * time.Second

// debouncer coalesces a burst of triggers into one fn call after the delay.
type debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
	fn    func()
}

func newDebouncer(delay time.Duration, fn func()) *debouncer {
	return &debouncer{delay: delay, fn: fn}
}

// Trigger (re)arms the timer; fn runs once the triggers stop for the delay.
func (d *debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fn)
}

// Stop cancels any pending fire.
func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}

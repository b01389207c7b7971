package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

/* ─── Gateway contract ───────────────────────────────────────────────── */

// bootstrap is the bulk user-data payload fetched once at session start.
type bootstrap struct {
	User      *userProfile  `json:"user"`
	DailyLogs []dailyLog    `json:"daily_logs"`
	Goals     userGoals     `json:"user_goals"`
	WeightLog []weightEntry `json:"weight_log"`
}

// gateway is the remote persistence store. Per-mutation writes go through Do
// so pending operations can be journaled and replayed without the journal
// knowing any entity shapes; goals get a typed call because goal updates are
// write-through and need the confirmed record back.
type gateway interface {
	Load(ctx context.Context) (*bootstrap, error)
	PutGoals(ctx context.Context, g userGoals) (userGoals, error)
	Do(ctx context.Context, method, path string, body []byte) error
}

/* ─── Remote operations ──────────────────────────────────────────────── */

// remoteOp is one write-through call: everything needed to issue (or re-issue)
// it against the gateway. ID is the mutation ID used as the journal key.
type remoteOp struct {
	ID     string
	Method string
	Path   string
	Body   []byte
}

// mustJSON marshals a value that cannot fail to marshal (domain structs with
// no channels/funcs). Panics otherwise, which would be a programming error.
func mustJSON(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func opCreateFoods(id string, items []foodLog) remoteOp {
	return remoteOp{ID: id, Method: http.MethodPost, Path: "/food",
		Body: mustJSON(map[string]interface{}{"foods": items})}
}

func opUpdateFood(id, foodID string, name *string, calories *int) remoteOp {
	return remoteOp{ID: id, Method: http.MethodPut, Path: "/food/" + foodID,
		Body: mustJSON(map[string]interface{}{"name": name, "calories": calories})}
}

func opDeleteFood(id, foodID string) remoteOp {
	return remoteOp{ID: id, Method: http.MethodDelete, Path: "/food/" + foodID}
}

func opCreateExercise(id string, e exerciseLog) remoteOp {
	return remoteOp{ID: id, Method: http.MethodPost, Path: "/exercise",
		Body: mustJSON(map[string]interface{}{"exercise": e})}
}

func opUpdateExercise(id, exerciseID string, name *string, durationMin, caloriesBurned *int) remoteOp {
	return remoteOp{ID: id, Method: http.MethodPut, Path: "/exercise/" + exerciseID,
		Body: mustJSON(map[string]interface{}{
			"name": name, "duration_min": durationMin, "calories_burned": caloriesBurned,
		})}
}

func opDeleteExercise(id, exerciseID string) remoteOp {
	return remoteOp{ID: id, Method: http.MethodDelete, Path: "/exercise/" + exerciseID}
}

func opCreateNeat(id string, n neatLog) remoteOp {
	return remoteOp{ID: id, Method: http.MethodPost, Path: "/neat",
		Body: mustJSON(map[string]interface{}{"neat": n})}
}

func opUpdateNeat(id, neatID string, calories int) remoteOp {
	return remoteOp{ID: id, Method: http.MethodPut, Path: "/neat/" + neatID,
		Body: mustJSON(map[string]interface{}{"calories": calories})}
}

func opDeleteNeat(id, neatID string) remoteOp {
	return remoteOp{ID: id, Method: http.MethodDelete, Path: "/neat/" + neatID}
}

func opAddWater(id string, amountML int) remoteOp {
	return remoteOp{ID: id, Method: http.MethodPost, Path: "/water",
		Body: mustJSON(map[string]interface{}{"amount": amountML})}
}

func opAddWeightEntry(id string, w weightEntry) remoteOp {
	return remoteOp{ID: id, Method: http.MethodPost, Path: "/weight-log",
		Body: mustJSON(w)}
}

/* ─── REST client ────────────────────────────────────────────────────── */

// restGateway talks to the persistence backend: REST-style paths, JSON bodies,
// bearer-token auth. The client carries no timeout — a hung write blocks only
// its own goroutine, and session teardown cancels it through the context.
type restGateway struct {
	baseURL string
	token   string
	client  *http.Client
}

func newRESTGateway(baseURL, token string) *restGateway {
	return &restGateway{baseURL: baseURL, token: token, client: &http.Client{}}
}

// do issues one request and returns the raw response body on 2xx.
func (g *restGateway) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+g.token)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s %s returned status %d: %s", method, path, resp.StatusCode, string(respBytes))
	}
	return respBytes, nil
}

// Load fetches the full user-data payload. A missing user is an error — the
// session cannot initialize from an empty state without masking a failure.
func (g *restGateway) Load(ctx context.Context) (*bootstrap, error) {
	respBytes, err := g.do(ctx, http.MethodGet, "/user-data", nil)
	if err != nil {
		return nil, fmt.Errorf("load user data: %w", err)
	}
	var b bootstrap
	if err := json.Unmarshal(respBytes, &b); err != nil {
		return nil, fmt.Errorf("unmarshal user data: %w", err)
	}
	if b.User == nil {
		return nil, fmt.Errorf("load user data: no user in response")
	}
	return &b, nil
}

// PutGoals replaces the goal record and returns the server-confirmed copy.
func (g *restGateway) PutGoals(ctx context.Context, goals userGoals) (userGoals, error) {
	respBytes, err := g.do(ctx, http.MethodPut, "/goals", mustJSON(goals))
	if err != nil {
		return userGoals{}, fmt.Errorf("put goals: %w", err)
	}
	var confirmed userGoals
	if err := json.Unmarshal(respBytes, &confirmed); err != nil {
		return userGoals{}, fmt.Errorf("unmarshal confirmed goals: %w", err)
	}
	return confirmed, nil
}

// Do issues a write-through call, discarding the response body.
func (g *restGateway) Do(ctx context.Context, method, path string, body []byte) error {
	_, err := g.do(ctx, method, path, body)
	return err
}

package main

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Handler holds shared dependencies (session, suggestion client) for all
// route handlers.
type Handler struct {
	session *session
	suggest *suggestClient
}

// apiError returns a consistent JSON error response: {"error": "message"}.
func apiError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// dateOrToday validates an optional YYYY-MM-DD value, defaulting to today.
// Returns "" after writing a 400 when the value is malformed.
func dateOrToday(c *gin.Context, value string) string {
	if value == "" {
		return time.Now().Format("2006-01-02")
	}
	if _, err := time.Parse("2006-01-02", value); err != nil {
		apiError(c, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return ""
	}
	return value
}

// registerRoutes registers all API routes on the router.
func (h *Handler) registerRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.GET("/progress", h.getProgress)
	api.GET("/logs", h.getLogHistory)
	api.GET("/logs/daily", h.getDailyLog)

	api.POST("/logs/foods", h.addFoods)
	api.PUT("/logs/foods/:id", h.updateFood)
	api.DELETE("/logs/foods/:id", h.deleteFood)

	api.POST("/logs/exercises", h.addExercise)
	api.PUT("/logs/exercises/:id", h.updateExercise)
	api.DELETE("/logs/exercises/:id", h.deleteExercise)

	api.POST("/logs/activities", h.addNeatActivity)
	api.PUT("/logs/activities/:id", h.updateNeatActivity)
	api.DELETE("/logs/activities/:id", h.removeNeatActivity)

	api.POST("/logs/water", h.addWater)

	api.GET("/goals", h.getGoals)
	api.PUT("/goals", h.updateGoals)

	api.GET("/weight-log", h.getWeightLog)
	api.POST("/weight-log", h.addWeightEntry)

	api.POST("/suggestion", h.getSuggestion)
	api.POST("/analyze/food", h.analyzeFood)
	api.POST("/analyze/exercise", h.analyzeExercise)

	api.GET("/notices", h.getNotices)
}

/* ─── Progress & logs ────────────────────────────────────────────────── */

// getProgress returns the derived daily snapshot for a date.
// GET /api/progress?date=YYYY-MM-DD (defaults to today).
func (h *Handler) getProgress(c *gin.Context) {
	date := dateOrToday(c, c.Query("date"))
	if date == "" {
		return
	}
	progress, err := h.session.Progress(date)
	if err != nil {
		apiError(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, progress)
}

// getLogHistory returns every recorded daily log in insertion order.
// GET /api/logs.
func (h *Handler) getLogHistory(c *gin.Context) {
	c.JSON(http.StatusOK, h.session.History())
}

// getDailyLog returns the log for one date (a synthesized empty log when the
// date has never been written — reads do not create entries).
// GET /api/logs/daily?date=YYYY-MM-DD (defaults to today).
func (h *Handler) getDailyLog(c *gin.Context) {
	date := dateOrToday(c, c.Query("date"))
	if date == "" {
		return
	}
	day, err := h.session.Log(date)
	if err != nil {
		apiError(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, day)
}

/* ─── Food mutations ─────────────────────────────────────────────────── */

// addFoods appends one or more foods to a date's log.
// POST /api/logs/foods. Body: { "date"?, "foods": [...] }.
func (h *Handler) addFoods(c *gin.Context) {
	var body struct {
		Date  string    `json:"date"`
		Foods []foodLog `json:"foods"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(body.Foods) == 0 {
		apiError(c, http.StatusBadRequest, "foods is required")
		return
	}
	for _, f := range body.Foods {
		if f.Name == "" {
			apiError(c, http.StatusBadRequest, "food name is required")
			return
		}
		if !validMealTypes[f.MealType] {
			apiError(c, http.StatusBadRequest, "meal_type must be one of: Breakfast, Lunch, Dinner, Snacks")
			return
		}
	}
	date := dateOrToday(c, body.Date)
	if date == "" {
		return
	}

	created, err := h.session.AddFoods(date, body.Foods)
	if err != nil {
		apiError(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusCreated, gin.H{"foods": created})
}

// updateFood edits a food's name and/or calories.
// PUT /api/logs/foods/:id. Body: { "date"?, "name"?, "calories"? }.
func (h *Handler) updateFood(c *gin.Context) {
	var body struct {
		Date     string  `json:"date"`
		Name     *string `json:"name"`
		Calories *int    `json:"calories"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	date := dateOrToday(c, body.Date)
	if date == "" {
		return
	}

	if err := h.session.UpdateFood(date, c.Param("id"), body.Name, body.Calories); err != nil {
		apiError(c, http.StatusBadRequest, err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

// deleteFood removes a food by ID. Unknown IDs are accepted and leave the log
// unchanged locally.
// DELETE /api/logs/foods/:id?date=YYYY-MM-DD.
func (h *Handler) deleteFood(c *gin.Context) {
	date := dateOrToday(c, c.Query("date"))
	if date == "" {
		return
	}
	if err := h.session.DeleteFood(date, c.Param("id")); err != nil {
		apiError(c, http.StatusBadRequest, err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

/* ─── Exercise mutations ─────────────────────────────────────────────── */

// addExercise appends an exercise entry.
// POST /api/logs/exercises. Body: { "date"?, "name", "duration_min", "calories_burned" }.
func (h *Handler) addExercise(c *gin.Context) {
	var body struct {
		Date           string `json:"date"`
		Name           string `json:"name"`
		DurationMin    int    `json:"duration_min"`
		CaloriesBurned int    `json:"calories_burned"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Name == "" {
		apiError(c, http.StatusBadRequest, "name is required")
		return
	}
	if body.DurationMin <= 0 {
		apiError(c, http.StatusBadRequest, "duration_min must be positive")
		return
	}
	date := dateOrToday(c, body.Date)
	if date == "" {
		return
	}

	created, err := h.session.AddExercise(date, exerciseLog{
		Name:           body.Name,
		DurationMin:    body.DurationMin,
		CaloriesBurned: body.CaloriesBurned,
	})
	if err != nil {
		apiError(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusCreated, created)
}

// updateExercise edits an exercise entry.
// PUT /api/logs/exercises/:id. Body: { "date"?, "name"?, "duration_min"?, "calories_burned"? }.
func (h *Handler) updateExercise(c *gin.Context) {
	var body struct {
		Date           string  `json:"date"`
		Name           *string `json:"name"`
		DurationMin    *int    `json:"duration_min"`
		CaloriesBurned *int    `json:"calories_burned"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.DurationMin != nil && *body.DurationMin <= 0 {
		apiError(c, http.StatusBadRequest, "duration_min must be positive")
		return
	}
	date := dateOrToday(c, body.Date)
	if date == "" {
		return
	}

	if err := h.session.UpdateExercise(date, c.Param("id"), body.Name, body.DurationMin, body.CaloriesBurned); err != nil {
		apiError(c, http.StatusBadRequest, err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

// deleteExercise removes an exercise by ID.
// DELETE /api/logs/exercises/:id?date=YYYY-MM-DD.
func (h *Handler) deleteExercise(c *gin.Context) {
	date := dateOrToday(c, c.Query("date"))
	if date == "" {
		return
	}
	if err := h.session.DeleteExercise(date, c.Param("id")); err != nil {
		apiError(c, http.StatusBadRequest, err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

/* ─── NEAT mutations ─────────────────────────────────────────────────── */

// addNeatActivity appends a passive-activity entry.
// POST /api/logs/activities. Body: { "date"?, "name", "calories" }.
func (h *Handler) addNeatActivity(c *gin.Context) {
	var body struct {
		Date     string `json:"date"`
		Name     string `json:"name"`
		Calories int    `json:"calories"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Name == "" {
		apiError(c, http.StatusBadRequest, "name is required")
		return
	}
	date := dateOrToday(c, body.Date)
	if date == "" {
		return
	}

	created, err := h.session.AddNeatActivity(date, neatLog{Name: body.Name, Calories: body.Calories})
	if err != nil {
		apiError(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusCreated, created)
}

// updateNeatActivity replaces a NEAT entry's calorie amount.
// PUT /api/logs/activities/:id. Body: { "date"?, "calories" }.
func (h *Handler) updateNeatActivity(c *gin.Context) {
	var body struct {
		Date     string `json:"date"`
		Calories int    `json:"calories"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	date := dateOrToday(c, body.Date)
	if date == "" {
		return
	}

	if err := h.session.UpdateNeatActivity(date, c.Param("id"), body.Calories); err != nil {
		apiError(c, http.StatusBadRequest, err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

// removeNeatActivity removes a NEAT entry by ID.
// DELETE /api/logs/activities/:id?date=YYYY-MM-DD.
func (h *Handler) removeNeatActivity(c *gin.Context) {
	date := dateOrToday(c, c.Query("date"))
	if date == "" {
		return
	}
	if err := h.session.RemoveNeatActivity(date, c.Param("id")); err != nil {
		apiError(c, http.StatusBadRequest, err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

/* ─── Water, goals, weight ───────────────────────────────────────────── */

// addWater adds to a date's water intake. Negative amounts are rejected here;
// the store treats the amount as opaque.
// POST /api/logs/water. Body: { "date"?, "amount_ml" }.
func (h *Handler) addWater(c *gin.Context) {
	var body struct {
		Date     string `json:"date"`
		AmountML int    `json:"amount_ml"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.AmountML < 0 {
		apiError(c, http.StatusBadRequest, "amount_ml must be non-negative")
		return
	}
	date := dateOrToday(c, body.Date)
	if date == "" {
		return
	}

	if err := h.session.AddWater(date, body.AmountML); err != nil {
		apiError(c, http.StatusBadRequest, err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

// getGoals returns the current goal record. GET /api/goals.
func (h *Handler) getGoals(c *gin.Context) {
	c.JSON(http.StatusOK, h.session.Goals())
}

// updateGoals replaces the goal record, write-through: the response carries
// the server-confirmed goals, and a remote failure leaves local goals as they
// were.
// PUT /api/goals. Body: userGoals.
func (h *Handler) updateGoals(c *gin.Context) {
	var body userGoals
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validWeightGoals[body.WeightGoal] {
		apiError(c, http.StatusBadRequest, "weight_goal must be one of: lose, maintain, gain")
		return
	}
	if body.TimelineWeeks < 0 {
		apiError(c, http.StatusBadRequest, "goal_timeline_weeks must be non-negative")
		return
	}

	confirmed, err := h.session.UpdateGoals(c.Request.Context(), body)
	if err != nil {
		log.Printf("[goals] update failed: %v", err)
		apiError(c, http.StatusBadGateway, "failed to save goals")
		return
	}
	c.JSON(http.StatusOK, confirmed)
}

// getWeightLog returns the full weight history. GET /api/weight-log.
func (h *Handler) getWeightLog(c *gin.Context) {
	c.JSON(http.StatusOK, h.session.WeightLog())
}

// addWeightEntry appends a weight record.
// POST /api/weight-log. Body: { "date"?, "weight_kg" }.
func (h *Handler) addWeightEntry(c *gin.Context) {
	var body struct {
		Date     string  `json:"date"`
		WeightKG float64 `json:"weight_kg"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.WeightKG <= 0 || body.WeightKG > 500 {
		apiError(c, http.StatusBadRequest, "weight_kg must be between 0 and 500")
		return
	}
	date := dateOrToday(c, body.Date)
	if date == "" {
		return
	}

	entry, err := h.session.AddWeightEntry(date, body.WeightKG)
	if err != nil {
		apiError(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusCreated, entry)
}

/* ─── Suggestions & analysis ─────────────────────────────────────────── */

// suggestError maps suggestion-client failures to responses: cooldown
// rejections become 429 with the wait message, unrecognized input mirrors the
// backend's {"error":"unrecognized"} shape, everything else is a 500.
func suggestError(c *gin.Context, err error) {
	var cd *cooldownError
	if errors.As(err, &cd) {
		apiError(c, http.StatusTooManyRequests, cd.Message)
		return
	}
	if errors.Is(err, errUnrecognized) {
		c.JSON(http.StatusOK, gin.H{"error": "unrecognized"})
		return
	}
	log.Printf("[suggest] request failed: %v", err)
	apiError(c, http.StatusInternalServerError, "suggestion request failed")
}

// getSuggestion returns coaching text for a date's progress.
// POST /api/suggestion. Body: { "date"? }.
func (h *Handler) getSuggestion(c *gin.Context) {
	var body struct {
		Date string `json:"date"`
	}
	// Body is optional; ignore bind errors from an empty body.
	_ = c.ShouldBindJSON(&body)
	date := dateOrToday(c, body.Date)
	if date == "" {
		return
	}

	progress, err := h.session.Progress(date)
	if err != nil {
		apiError(c, http.StatusBadRequest, err.Error())
		return
	}
	text, err := h.suggest.FetchSuggestion(c.Request.Context(), progress)
	if err != nil {
		suggestError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestion": text})
}

// analyzeFood parses a food description into a structured estimate.
// POST /api/analyze/food. Body: { "description" }.
func (h *Handler) analyzeFood(c *gin.Context) {
	var body struct {
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Description == "" {
		apiError(c, http.StatusBadRequest, "description is required")
		return
	}

	analysis, err := h.suggest.AnalyzeFood(c.Request.Context(), body.Description)
	if err != nil {
		suggestError(c, err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}

// analyzeExercise parses an exercise description into a burn estimate.
// POST /api/analyze/exercise. Body: { "description" }.
func (h *Handler) analyzeExercise(c *gin.Context) {
	var body struct {
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Description == "" {
		apiError(c, http.StatusBadRequest, "description is required")
		return
	}

	analysis, err := h.suggest.AnalyzeExercise(c.Request.Context(), body.Description, h.session.Profile())
	if err != nil {
		suggestError(c, err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}

/* ─── Notices ────────────────────────────────────────────────────────── */

// getNotices drains and returns queued transient notices (failed background
// saves). GET /api/notices.
func (h *Handler) getNotices(c *gin.Context) {
	notices := h.session.Notices()
	if notices == nil {
		notices = []notice{}
	}
	c.JSON(http.StatusOK, notices)
}

package main

import (
	"time"
)

// DateOnly wraps time.Time to serialize as "YYYY-MM-DD" in JSON.
type DateOnly struct{ time.Time }

func (d DateOnly) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Time.Format("2006-01-02") + `"`), nil
}

func (d *DateOnly) UnmarshalJSON(b []byte) error {
	t, err := time.Parse(`"2006-01-02"`, string(b))
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// Key returns the canonical YYYY-MM-DD form used for log lookups.
func (d DateOnly) Key() string {
	return d.Time.Format("2006-01-02")
}

// todayKey returns today's date in the user's local calendar as a log key.
func todayKey() string {
	return time.Now().Format("2006-01-02")
}

/* ─── Enums ──────────────────────────────────────────────────────────── */

// validGenders is the set of known gender values. Anything else falls through
// to the non-male BMR constant.
var validGenders = map[string]bool{
	"male":   true,
	"female": true,
	"other":  true,
}

// validMealTypes is the set of allowed meal_type values for food entries.
var validMealTypes = map[string]bool{
	"Breakfast": true,
	"Lunch":     true,
	"Dinner":    true,
	"Snacks":    true,
}

// validWeightGoals is the set of allowed weight_goal values.
var validWeightGoals = map[string]bool{
	"lose":     true,
	"maintain": true,
	"gain":     true,
}

/* ─── Domain structs ─────────────────────────────────────────────────── */

// userProfile is the read-only user record. The engine never mutates it;
// profile edits happen through flows outside this service.
type userProfile struct {
	Email         string   `json:"email"`
	WeightKG      float64  `json:"weight_kg"`
	HeightCM      float64  `json:"height_cm"`
	Age           int      `json:"age"`
	Gender        string   `json:"gender"`
	Country       string   `json:"country"`
	StartWeightKG *float64 `json:"start_weight_kg,omitempty"`
}

// userGoals is the single goal record, replaced wholesale on edit.
// StartDate anchors the projection countdown; nil means the record predates
// the field and the entry-count fallback applies (see daysRemaining).
type userGoals struct {
	TargetWeightKG float64   `json:"target_weight_kg"`
	WeightGoal     string    `json:"weight_goal"`
	TimelineWeeks  int       `json:"goal_timeline_weeks"`
	StartDate      *DateOnly `json:"start_date,omitempty"`
}

// weightEntry is one append-only weight-history record. The most recent entry
// is the "current weight" used for projection.
type weightEntry struct {
	Date     DateOnly `json:"date"`
	WeightKG float64  `json:"weight_kg"`
}

// nutrientInfo is a single named nutrient amount in grams.
type nutrientInfo struct {
	Name    string  `json:"name"`
	AmountG float64 `json:"amount_g"`
}

// foodNutrients splits nutrients into the three fixed macros and free-form micros.
type foodNutrients struct {
	Macros []nutrientInfo `json:"macros"`
	Micros []nutrientInfo `json:"micros"`
}

// foodLog is one logged food. ID and Timestamp are assigned at creation and
// never change; name and calories are editable in place.
type foodLog struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Calories        int           `json:"calories"`
	MealType        string        `json:"meal_type"`
	ServingQuantity float64       `json:"serving_quantity"`
	ServingUnit     string        `json:"serving_unit"`
	Nutrients       foodNutrients `json:"nutrients"`
	Timestamp       time.Time     `json:"timestamp"`
}

// exerciseLog is one logged exercise session.
type exerciseLog struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	DurationMin    int       `json:"duration_min"`
	CaloriesBurned int       `json:"calories_burned"`
	Timestamp      time.Time `json:"timestamp"`
}

// neatLog is one passive-activity entry. No timestamp — NEAT entries describe
// incidental activity spread over the day, not a point in time.
type neatLog struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Calories int    `json:"calories"`
}

// dailyLog is the authoritative per-date log. Date is the identity and never
// changes after creation; only the four collection fields mutate.
type dailyLog struct {
	Date           DateOnly      `json:"date"`
	Foods          []foodLog     `json:"foods"`
	Exercises      []exerciseLog `json:"exercises"`
	NeatActivities []neatLog     `json:"neat_activities"`
	WaterIntakeML  int           `json:"water_intake_ml"`
}

// emptyDailyLog synthesizes a fresh log for a date, with empty (not nil)
// collections so JSON renders arrays instead of null.
func emptyDailyLog(date DateOnly) dailyLog {
	return dailyLog{
		Date:           date,
		Foods:          []foodLog{},
		Exercises:      []exerciseLog{},
		NeatActivities: []neatLog{},
	}
}

// macroNames is the fixed macro set every food carries, in canonical order.
var macroNames = [3]string{"Protein", "Carbs", "Fat"}

// normalizeMacros reshapes a macro slice to exactly the three named macros in
// canonical order. Amounts present in the input are kept (negatives clamped
// to 0); missing macros default to 0, never null.
func normalizeMacros(in []nutrientInfo) []nutrientInfo {
	byName := make(map[string]float64, len(in))
	for _, n := range in {
		amount := n.AmountG
		if amount < 0 {
			amount = 0
		}
		byName[n.Name] = amount
	}
	out := make([]nutrientInfo, 0, len(macroNames))
	for _, name := range macroNames {
		out = append(out, nutrientInfo{Name: name, AmountG: byName[name]})
	}
	return out
}

// dailyProgress is the derived snapshot exposed to the UI layer. Never stored;
// recomputed from the day's log, profile, goals, and weight history on demand.
type dailyProgress struct {
	Date string `json:"date"`

	BMR              int `json:"bmr"`
	CaloriesConsumed int `json:"calories_consumed"`
	ExerciseBurn     int `json:"exercise_burn"`
	NeatBurn         int `json:"neat_burn"`
	TEF              int `json:"tef"`
	TotalCaloriesOut int `json:"total_calories_out"`
	NetCalories      int `json:"net_calories"`

	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
	FatG     float64 `json:"fat_g"`

	GoalCalories   int     `json:"goal_calories"`
	ProteinTargetG float64 `json:"protein_target_g"`
	CarbsTargetG   float64 `json:"carbs_target_g"`
	FatTargetG     float64 `json:"fat_target_g"`
	WaterTargetML  int     `json:"water_target_ml"`

	WaterIntakeML int `json:"water_intake_ml"`
}

package main

import (
	"math"
	"time"
)

// kcalPerKG is the energy equivalent of one kilogram of body-mass change.
const kcalPerKG = 7700

// waterMLPerKG is the daily water target per kilogram of body weight.
const waterMLPerKG = 35

// defaultWaterTargetML is the daily water target when no weight is known.
const defaultWaterTargetML = 2500

// goalTargets is the dynamic daily target derived from the user's goal and the
// maintenance burn. Macro targets are computed against maintenance (the 30/40/30
// split over totalOut), not the adjusted goal calories.
type goalTargets struct {
	GoalCalories    int
	DailyAdjustment float64
	ProteinTargetG  float64
	CarbsTargetG    float64
	FatTargetG      float64
	WaterTargetML   int
	CurrentWeightKG float64
}

// currentWeightKG returns the most recent weight-log entry's weight, falling
// back to the profile weight when no history exists, and 0 when neither is
// available.
func currentWeightKG(profile *userProfile, weights []weightEntry) float64 {
	if len(weights) > 0 {
		latest := weights[0]
		for _, w := range weights[1:] {
			if w.Date.Time.After(latest.Date.Time) {
				latest = w
			}
		}
		return latest.WeightKG
	}
	if profile != nil {
		return profile.WeightKG
	}
	return 0
}

// daysRemaining returns how many days are left to reach the goal. With a goal
// start date set, it is timeline days minus calendar days elapsed since the
// start. Goals loaded without a start date fall back to using the count of
// recorded daily logs as a proxy for days elapsed (the historical behavior,
// which drifts when days are skipped).
func daysRemaining(goals userGoals, logCount int, today time.Time) int {
	total := goals.TimelineWeeks * 7
	if goals.StartDate != nil {
		elapsed := int(today.Sub(goals.StartDate.Time).Hours() / 24)
		if elapsed < 0 {
			elapsed = 0
		}
		return total - elapsed
	}
	elapsed := logCount - 1
	if elapsed < 0 {
		elapsed = 0
	}
	return total - elapsed
}

// computeGoalTargets converts the maintenance burn into the dynamic daily
// calorie/macro/water target steering the user toward the goal weight.
// A zero timeline or an expired deadline collapses the adjustment to 0, so
// goal calories equal plain maintenance — never a division by zero.
func computeGoalTargets(goals userGoals, profile *userProfile, weights []weightEntry, totalOut int, logCount int, today time.Time) goalTargets {
	t := goalTargets{
		CurrentWeightKG: currentWeightKG(profile, weights),
		ProteinTargetG:  float64(totalOut) * 0.30 / 4,
		CarbsTargetG:    float64(totalOut) * 0.40 / 4,
		FatTargetG:      float64(totalOut) * 0.30 / 9,
		WaterTargetML:   defaultWaterTargetML,
	}
	if t.CurrentWeightKG > 0 {
		t.WaterTargetML = int(math.Round(t.CurrentWeightKG * waterMLPerKG))
	}

	totalCalorieDiff := (goals.TargetWeightKG - t.CurrentWeightKG) * kcalPerKG
	if days := daysRemaining(goals, logCount, today); days > 0 {
		t.DailyAdjustment = totalCalorieDiff / float64(days)
	}
	t.GoalCalories = int(math.Round(float64(totalOut) + t.DailyAdjustment))
	return t
}

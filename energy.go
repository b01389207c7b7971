package main

import "math"

// tefRatio is the thermic effect of food: energy spent digesting, modeled as
// 10% of calories consumed.
const tefRatio = 0.10

// energyBalance is the pure energy-accounting slice of a day: everything
// derivable from one dailyLog plus a BMR, with no goal applied.
type energyBalance struct {
	CaloriesConsumed int
	ExerciseBurn     int
	NeatBurn         int
	TEF              int
	TotalCaloriesOut int
	NetCalories      int

	ProteinG float64
	CarbsG   float64
	FatG     float64
}

// computeEnergyBalance derives the day's energy picture from its log and the
// user's BMR. Pure and deterministic: identical inputs yield identical output.
//
//	totalOut = BMR + NEAT + exercise + TEF
//	net      = consumed - totalOut
//
// An empty log therefore nets exactly -BMR.
func computeEnergyBalance(day dailyLog, bmr int) energyBalance {
	var eb energyBalance

	for _, f := range day.Foods {
		eb.CaloriesConsumed += f.Calories
		for _, m := range f.Nutrients.Macros {
			switch m.Name {
			case "Protein":
				eb.ProteinG += m.AmountG
			case "Carbs":
				eb.CarbsG += m.AmountG
			case "Fat":
				eb.FatG += m.AmountG
			}
		}
	}
	for _, e := range day.Exercises {
		eb.ExerciseBurn += e.CaloriesBurned
	}
	for _, n := range day.NeatActivities {
		eb.NeatBurn += n.Calories
	}

	eb.TEF = int(math.Round(float64(eb.CaloriesConsumed) * tefRatio))
	eb.TotalCaloriesOut = bmr + eb.NeatBurn + eb.ExerciseBurn + eb.TEF
	eb.NetCalories = eb.CaloriesConsumed - eb.TotalCaloriesOut
	return eb
}

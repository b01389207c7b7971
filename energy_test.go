package main

import "testing"

// dayOn builds a dailyLog for a fixed date with the given entries.
func dayOn(foods []foodLog, exercises []exerciseLog, neat []neatLog) dailyLog {
	d, _ := parseDate("2026-03-14")
	dl := emptyDailyLog(d)
	dl.Foods = foods
	dl.Exercises = exercises
	dl.NeatActivities = neat
	return dl
}

// foodWithMacros builds a food entry with the three macros set.
func foodWithMacros(calories int, protein, carbs, fat float64) foodLog {
	return foodLog{
		Name:     "test food",
		Calories: calories,
		Nutrients: foodNutrients{
			Macros: normalizeMacros([]nutrientInfo{
				{Name: "Protein", AmountG: protein},
				{Name: "Carbs", AmountG: carbs},
				{Name: "Fat", AmountG: fat},
			}),
		},
	}
}

/* ─── Net-calorie identity ───────────────────────────────────────────── */

// TestComputeEnergyBalance_EmptyLog verifies that an empty log nets exactly
// -BMR: nothing consumed, nothing burned beyond the basal rate.
func TestComputeEnergyBalance_EmptyLog(t *testing.T) {
	eb := computeEnergyBalance(dayOn(nil, nil, nil), 1700)
	if eb.TotalCaloriesOut != 1700 {
		t.Errorf("TotalCaloriesOut = %d, want 1700", eb.TotalCaloriesOut)
	}
	if eb.NetCalories != -1700 {
		t.Errorf("NetCalories = %d, want -1700", eb.NetCalories)
	}
}

// TestComputeEnergyBalance_NetIdentity verifies
// net = consumed - (BMR + NEAT + exercise + TEF) across several combinations.
func TestComputeEnergyBalance_NetIdentity(t *testing.T) {
	cases := []struct {
		name      string
		foods     []foodLog
		exercises []exerciseLog
		neat      []neatLog
		bmr       int
	}{
		{"food only", []foodLog{foodWithMacros(600, 30, 60, 20)}, nil, nil, 1500},
		{"exercise only", nil, []exerciseLog{{Name: "run", CaloriesBurned: 400}}, nil, 1500},
		{"neat only", nil, nil, []neatLog{{Name: "walking", Calories: 150}}, 1500},
		{
			"everything",
			[]foodLog{foodWithMacros(500, 40, 50, 10), foodWithMacros(734, 10, 90, 30)},
			[]exerciseLog{{Name: "lift", CaloriesBurned: 250}, {Name: "bike", CaloriesBurned: 180}},
			[]neatLog{{Name: "chores", Calories: 90}},
			1805,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			eb := computeEnergyBalance(dayOn(tc.foods, tc.exercises, tc.neat), tc.bmr)
			wantOut := tc.bmr + eb.NeatBurn + eb.ExerciseBurn + eb.TEF
			if eb.TotalCaloriesOut != wantOut {
				t.Errorf("TotalCaloriesOut = %d, want %d", eb.TotalCaloriesOut, wantOut)
			}
			wantNet := eb.CaloriesConsumed - wantOut
			if eb.NetCalories != wantNet {
				t.Errorf("NetCalories = %d, want %d", eb.NetCalories, wantNet)
			}
		})
	}
}

// TestComputeEnergyBalance_TEFRounding verifies TEF rounds to the nearest
// integer: 10% of 1234 is 123.4, which rounds to 123.
func TestComputeEnergyBalance_TEFRounding(t *testing.T) {
	eb := computeEnergyBalance(dayOn([]foodLog{foodWithMacros(1234, 0, 0, 0)}, nil, nil), 1500)
	if eb.TEF != 123 {
		t.Errorf("TEF = %d, want 123", eb.TEF)
	}

	// 10% of 1235 is 123.5, which rounds up to 124.
	eb = computeEnergyBalance(dayOn([]foodLog{foodWithMacros(1235, 0, 0, 0)}, nil, nil), 1500)
	if eb.TEF != 124 {
		t.Errorf("TEF = %d, want 124", eb.TEF)
	}
}

// TestComputeEnergyBalance_MacroTotals verifies per-macro sums and that a food
// missing a macro contributes 0 for it.
func TestComputeEnergyBalance_MacroTotals(t *testing.T) {
	partialMacros := foodLog{
		Name:     "protein shake",
		Calories: 120,
		Nutrients: foodNutrients{
			// Only protein present; normalize fills Carbs and Fat with 0.
			Macros: normalizeMacros([]nutrientInfo{{Name: "Protein", AmountG: 25}}),
		},
	}
	eb := computeEnergyBalance(dayOn([]foodLog{foodWithMacros(500, 40, 50, 10), partialMacros}, nil, nil), 1500)

	if eb.ProteinG != 65 {
		t.Errorf("ProteinG = %f, want 65", eb.ProteinG)
	}
	if eb.CarbsG != 50 {
		t.Errorf("CarbsG = %f, want 50", eb.CarbsG)
	}
	if eb.FatG != 10 {
		t.Errorf("FatG = %f, want 10", eb.FatG)
	}
}

// TestComputeEnergyBalance_FullDay walks the full scenario: profile
// {80kg, 180cm, 25y, male} gives BMR 1805; one 500 kcal food (P40/C50/F10),
// one 300 kcal exercise, one 100 kcal passive activity.
// TEF = 50, out = 1805+100+300+50 = 2255, net = 500-2255 = -1755.
func TestComputeEnergyBalance_FullDay(t *testing.T) {
	bmr := computeBMR(userProfile{WeightKG: 80, HeightCM: 180, Age: 25, Gender: "male"})
	if bmr != 1805 {
		t.Fatalf("BMR = %d, want 1805", bmr)
	}

	eb := computeEnergyBalance(dayOn(
		[]foodLog{foodWithMacros(500, 40, 50, 10)},
		[]exerciseLog{{Name: "run", CaloriesBurned: 300}},
		[]neatLog{{Name: "gardening", Calories: 100}},
	), bmr)

	if eb.TEF != 50 {
		t.Errorf("TEF = %d, want 50", eb.TEF)
	}
	if eb.TotalCaloriesOut != 2255 {
		t.Errorf("TotalCaloriesOut = %d, want 2255", eb.TotalCaloriesOut)
	}
	if eb.NetCalories != -1755 {
		t.Errorf("NetCalories = %d, want -1755", eb.NetCalories)
	}
	if eb.ProteinG != 40 || eb.CarbsG != 50 || eb.FatG != 10 {
		t.Errorf("macros = %f/%f/%f, want 40/50/10", eb.ProteinG, eb.CarbsG, eb.FatG)
	}
}

// TestComputeEnergyBalance_Idempotent verifies two runs over identical input
// produce identical output.
func TestComputeEnergyBalance_Idempotent(t *testing.T) {
	day := dayOn(
		[]foodLog{foodWithMacros(812, 33, 71, 29)},
		[]exerciseLog{{Name: "swim", CaloriesBurned: 377}},
		[]neatLog{{Name: "stairs", Calories: 42}},
	)
	first := computeEnergyBalance(day, 1652)
	second := computeEnergyBalance(day, 1652)
	if first != second {
		t.Errorf("computeEnergyBalance not idempotent: %+v vs %+v", first, second)
	}
}

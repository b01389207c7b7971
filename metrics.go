package main

import "math"

// defaultBMR is the documented fallback used when no profile exists. Callers
// must substitute this rather than calling computeBMR with a zeroed profile.
const defaultBMR = 1600

// computeBMR computes basal metabolic rate (kcal/day) from a profile using the
// Mifflin-St Jeor formula, rounded to the nearest integer. The gender constant
// is +5 for male and -161 otherwise ("other" gets the female constant — the
// formula has no third variant).
func computeBMR(p userProfile) int {
	bmr := 10*p.WeightKG + 6.25*p.HeightCM - 5*float64(p.Age)
	if p.Gender == "male" {
		bmr += 5
	} else {
		bmr -= 161
	}
	return int(math.Round(bmr))
}

// bmrFor returns the BMR for an optional profile, falling back to defaultBMR
// when none is loaded.
func bmrFor(p *userProfile) int {
	if p == nil {
		return defaultBMR
	}
	return computeBMR(*p)
}

package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// notice is a transient user-facing message, raised when a best-effort remote
// write fails. Local state is never rolled back over a notice.
type notice struct {
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// maxNotices bounds the undrained notice backlog; older notices are dropped.
const maxNotices = 20

// defaultWriteBackoff is the retry schedule for a failed write-through call.
// After the last wait the operation is left to the journal for next-load replay.
var defaultWriteBackoff = []time.Duration{time.Second, 5 * time.Second, 30 * time.Second}

// session owns the in-memory user state: the ordered per-date log collection,
// goals, profile, and weight history. Every per-date mutation applies locally
// first (optimistic) and then issues an asynchronous best-effort write to the
// gateway; only goal updates are write-through. All state access goes through
// one mutex, so mutations issued back-to-back observe each other's effects and
// two concurrent writes targeting the same date cannot lose an update.
type session struct {
	gw      gateway
	journal *journal // nil disables durable pending writes
	now     func() time.Time
	newID   func() string
	backoff []time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	profile  *userProfile
	goals    userGoals
	weights  []weightEntry
	logs     []dailyLog
	notices  []notice
	onChange func()
}

func newSession(gw gateway, j *journal) *session {
	ctx, cancel := context.WithCancel(context.Background())
	return &session{
		gw:      gw,
		journal: j,
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
		backoff: defaultWriteBackoff,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Load performs the bulk fetch at session start. Failure here is fatal to the
// session — proceeding with empty state would present a healthy-looking blank
// slate after a real outage. After a successful load, surviving journal
// entries from a previous session are replayed against the gateway.
func (s *session) Load(ctx context.Context) error {
	b, err := s.gw.Load(ctx)
	if err != nil {
		return fmt.Errorf("session load: %w", err)
	}
	if b.User != nil && !validGenders[b.User.Gender] {
		// Unknown genders get the non-male BMR constant; say so once.
		log.Printf("[store] profile has unknown gender %q, treating as %q", b.User.Gender, "other")
	}

	s.mu.Lock()
	s.profile = b.User
	s.goals = b.Goals
	s.weights = b.WeightLog
	s.logs = b.DailyLogs
	if s.logs == nil {
		s.logs = []dailyLog{}
	}
	s.mu.Unlock()

	if s.journal != nil {
		remaining, err := s.journal.Replay(ctx, s.gw)
		if err != nil {
			return fmt.Errorf("session load: %w", err)
		}
		if remaining > 0 {
			log.Printf("[store] %d pending write(s) still unsynced after replay", remaining)
		}
	}
	return nil
}

// Close tears the session down: in-flight write-throughs are cancelled and
// waited out so a dead session cannot leak writes.
func (s *session) Close() {
	s.cancel()
	s.wg.Wait()
}

// SetOnChange registers a hook fired after every local mutation, outside the
// store lock. Used to kick the debounced suggestion refresh.
func (s *session) SetOnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

/* ─── Core primitive ─────────────────────────────────────────────────── */

// parseDate validates a YYYY-MM-DD date string.
func parseDate(date string) (DateOnly, error) {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return DateOnly{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", date)
	}
	return DateOnly{t}, nil
}

// updateLog finds the log for date and replaces it with updater(log); when no
// log exists yet, a fresh empty one is synthesized for the date, updated, and
// appended. Exactly one log per date can ever exist: lookup is by exact date
// key and creation happens under the same lock as the search.
func (s *session) updateLog(date string, updater func(dailyLog) dailyLog) (dailyLog, error) {
	d, err := parseDate(date)
	if err != nil {
		return dailyLog{}, err
	}

	s.mu.Lock()
	var updated dailyLog
	found := false
	for i := range s.logs {
		if s.logs[i].Date.Key() == d.Key() {
			updated = updater(s.logs[i])
			updated.Date = s.logs[i].Date // identity is immutable
			s.logs[i] = updated
			found = true
			break
		}
	}
	if !found {
		updated = updater(emptyDailyLog(d))
		updated.Date = d
		s.logs = append(s.logs, updated)
	}
	hook := s.onChange
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	return updated, nil
}

/* ─── Food mutations ─────────────────────────────────────────────────── */

// AddFoods appends the given foods to the date's log, assigning each a fresh
// ID and creation timestamp and normalizing calories and macros on the way in.
func (s *session) AddFoods(date string, items []foodLog) ([]foodLog, error) {
	created := make([]foodLog, len(items))
	now := s.now()
	for i, item := range items {
		item.ID = s.newID()
		item.Timestamp = now
		if item.Calories < 0 {
			item.Calories = 0
		}
		item.Nutrients.Macros = normalizeMacros(item.Nutrients.Macros)
		if item.Nutrients.Micros == nil {
			item.Nutrients.Micros = []nutrientInfo{}
		}
		created[i] = item
	}

	if _, err := s.updateLog(date, func(dl dailyLog) dailyLog {
		dl.Foods = append(append([]foodLog{}, dl.Foods...), created...)
		return dl
	}); err != nil {
		return nil, err
	}

	s.dispatch("food entry", opCreateFoods(s.newID(), created))
	return created, nil
}

// UpdateFood edits a food's name and/or calories in place. A missing ID is a
// silent local no-op; the remote call still fires and may surface its own
// error through a notice.
func (s *session) UpdateFood(date, foodID string, name *string, calories *int) error {
	if _, err := s.updateLog(date, func(dl dailyLog) dailyLog {
		foods := append([]foodLog{}, dl.Foods...)
		for i := range foods {
			if foods[i].ID != foodID {
				continue
			}
			if name != nil {
				foods[i].Name = *name
			}
			if calories != nil {
				c := *calories
				if c < 0 {
					c = 0
				}
				foods[i].Calories = c
			}
			break
		}
		dl.Foods = foods
		return dl
	}); err != nil {
		return err
	}

	s.dispatch("food update", opUpdateFood(s.newID(), foodID, name, calories))
	return nil
}

// DeleteFood removes a food by ID. A missing ID leaves the log untouched.
func (s *session) DeleteFood(date, foodID string) error {
	if _, err := s.updateLog(date, func(dl dailyLog) dailyLog {
		foods := make([]foodLog, 0, len(dl.Foods))
		for _, f := range dl.Foods {
			if f.ID != foodID {
				foods = append(foods, f)
			}
		}
		dl.Foods = foods
		return dl
	}); err != nil {
		return err
	}

	s.dispatch("food delete", opDeleteFood(s.newID(), foodID))
	return nil
}

/* ─── Exercise mutations ─────────────────────────────────────────────── */

// AddExercise appends an exercise entry with a fresh ID and timestamp.
func (s *session) AddExercise(date string, e exerciseLog) (exerciseLog, error) {
	e.ID = s.newID()
	e.Timestamp = s.now()
	if e.CaloriesBurned < 0 {
		e.CaloriesBurned = 0
	}

	if _, err := s.updateLog(date, func(dl dailyLog) dailyLog {
		dl.Exercises = append(append([]exerciseLog{}, dl.Exercises...), e)
		return dl
	}); err != nil {
		return exerciseLog{}, err
	}

	s.dispatch("exercise entry", opCreateExercise(s.newID(), e))
	return e, nil
}

// UpdateExercise edits an exercise in place; missing IDs are silent no-ops
// locally, mirroring UpdateFood.
func (s *session) UpdateExercise(date, exerciseID string, name *string, durationMin, caloriesBurned *int) error {
	if _, err := s.updateLog(date, func(dl dailyLog) dailyLog {
		exercises := append([]exerciseLog{}, dl.Exercises...)
		for i := range exercises {
			if exercises[i].ID != exerciseID {
				continue
			}
			if name != nil {
				exercises[i].Name = *name
			}
			if durationMin != nil {
				exercises[i].DurationMin = *durationMin
			}
			if caloriesBurned != nil {
				b := *caloriesBurned
				if b < 0 {
					b = 0
				}
				exercises[i].CaloriesBurned = b
			}
			break
		}
		dl.Exercises = exercises
		return dl
	}); err != nil {
		return err
	}

	s.dispatch("exercise update", opUpdateExercise(s.newID(), exerciseID, name, durationMin, caloriesBurned))
	return nil
}

// DeleteExercise removes an exercise by ID.
func (s *session) DeleteExercise(date, exerciseID string) error {
	if _, err := s.updateLog(date, func(dl dailyLog) dailyLog {
		exercises := make([]exerciseLog, 0, len(dl.Exercises))
		for _, e := range dl.Exercises {
			if e.ID != exerciseID {
				exercises = append(exercises, e)
			}
		}
		dl.Exercises = exercises
		return dl
	}); err != nil {
		return err
	}

	s.dispatch("exercise delete", opDeleteExercise(s.newID(), exerciseID))
	return nil
}

/* ─── NEAT mutations ─────────────────────────────────────────────────── */

// AddNeatActivity appends a passive-activity entry with a fresh ID.
func (s *session) AddNeatActivity(date string, n neatLog) (neatLog, error) {
	n.ID = s.newID()
	if n.Calories < 0 {
		n.Calories = 0
	}

	if _, err := s.updateLog(date, func(dl dailyLog) dailyLog {
		dl.NeatActivities = append(append([]neatLog{}, dl.NeatActivities...), n)
		return dl
	}); err != nil {
		return neatLog{}, err
	}

	s.dispatch("activity entry", opCreateNeat(s.newID(), n))
	return n, nil
}

// UpdateNeatActivity replaces a NEAT entry's calorie amount.
func (s *session) UpdateNeatActivity(date, neatID string, calories int) error {
	if calories < 0 {
		calories = 0
	}

	if _, err := s.updateLog(date, func(dl dailyLog) dailyLog {
		activities := append([]neatLog{}, dl.NeatActivities...)
		for i := range activities {
			if activities[i].ID == neatID {
				activities[i].Calories = calories
				break
			}
		}
		dl.NeatActivities = activities
		return dl
	}); err != nil {
		return err
	}

	s.dispatch("activity update", opUpdateNeat(s.newID(), neatID, calories))
	return nil
}

// RemoveNeatActivity removes a NEAT entry by ID.
func (s *session) RemoveNeatActivity(date, neatID string) error {
	if _, err := s.updateLog(date, func(dl dailyLog) dailyLog {
		activities := make([]neatLog, 0, len(dl.NeatActivities))
		for _, n := range dl.NeatActivities {
			if n.ID != neatID {
				activities = append(activities, n)
			}
		}
		dl.NeatActivities = activities
		return dl
	}); err != nil {
		return err
	}

	s.dispatch("activity delete", opDeleteNeat(s.newID(), neatID))
	return nil
}

/* ─── Water, weight, goals ───────────────────────────────────────────── */

// AddWater adds to the date's water intake. Amounts are non-negative by
// contract; the handler rejects negatives before they reach the store.
func (s *session) AddWater(date string, amountML int) error {
	if _, err := s.updateLog(date, func(dl dailyLog) dailyLog {
		dl.WaterIntakeML += amountML
		return dl
	}); err != nil {
		return err
	}

	s.dispatch("water entry", opAddWater(s.newID(), amountML))
	return nil
}

// AddWeightEntry appends to the weight history. The newest entry becomes the
// current weight driving goal projection.
func (s *session) AddWeightEntry(date string, weightKG float64) (weightEntry, error) {
	d, err := parseDate(date)
	if err != nil {
		return weightEntry{}, err
	}
	entry := weightEntry{Date: d, WeightKG: weightKG}

	s.mu.Lock()
	s.weights = append(s.weights, entry)
	hook := s.onChange
	s.mu.Unlock()
	if hook != nil {
		hook()
	}

	s.dispatch("weight entry", opAddWeightEntry(s.newID(), entry))
	return entry, nil
}

// UpdateGoals replaces the goal record. This is the one write-through mutation
// in the system: the remote call goes first and local state only changes on a
// confirmed response, so goals never drift from the server. A goal sent
// without a start date is stamped with today so the projection countdown has
// an explicit anchor.
func (s *session) UpdateGoals(ctx context.Context, g userGoals) (userGoals, error) {
	if g.StartDate == nil {
		today := DateOnly{s.now()}
		g.StartDate = &today
	}

	confirmed, err := s.gw.PutGoals(ctx, g)
	if err != nil {
		return userGoals{}, fmt.Errorf("update goals: %w", err)
	}

	s.mu.Lock()
	s.goals = confirmed
	hook := s.onChange
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return confirmed, nil
}

/* ─── Reads ──────────────────────────────────────────────────────────── */

// Log returns the log for a date, or a synthesized empty one — reads never
// create entries.
func (s *session) Log(date string) (dailyLog, error) {
	d, err := parseDate(date)
	if err != nil {
		return dailyLog{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.logs {
		if s.logs[i].Date.Key() == d.Key() {
			return s.logs[i], nil
		}
	}
	return emptyDailyLog(d), nil
}

// History returns all logs in insertion order.
func (s *session) History() []dailyLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]dailyLog{}, s.logs...)
}

// Goals returns the current goal record.
func (s *session) Goals() userGoals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.goals
}

// WeightLog returns the weight history.
func (s *session) WeightLog() []weightEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]weightEntry{}, s.weights...)
}

// Profile returns the loaded profile, or nil before load.
func (s *session) Profile() *userProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

// Progress computes the derived snapshot for a date from the current log,
// profile, goals, and weight history. Always recomputed — never cached.
func (s *session) Progress(date string) (dailyProgress, error) {
	day, err := s.Log(date)
	if err != nil {
		return dailyProgress{}, err
	}

	s.mu.Lock()
	profile := s.profile
	goals := s.goals
	weights := append([]weightEntry{}, s.weights...)
	logCount := len(s.logs)
	s.mu.Unlock()

	bmr := bmrFor(profile)
	eb := computeEnergyBalance(day, bmr)
	targets := computeGoalTargets(goals, profile, weights, eb.TotalCaloriesOut, logCount, s.now())

	return dailyProgress{
		Date:             day.Date.Key(),
		BMR:              bmr,
		CaloriesConsumed: eb.CaloriesConsumed,
		ExerciseBurn:     eb.ExerciseBurn,
		NeatBurn:         eb.NeatBurn,
		TEF:              eb.TEF,
		TotalCaloriesOut: eb.TotalCaloriesOut,
		NetCalories:      eb.NetCalories,
		ProteinG:         eb.ProteinG,
		CarbsG:           eb.CarbsG,
		FatG:             eb.FatG,
		GoalCalories:     targets.GoalCalories,
		ProteinTargetG:   targets.ProteinTargetG,
		CarbsTargetG:     targets.CarbsTargetG,
		FatTargetG:       targets.FatTargetG,
		WaterTargetML:    targets.WaterTargetML,
		WaterIntakeML:    day.WaterIntakeML,
	}, nil
}

/* ─── Notices ────────────────────────────────────────────────────────── */

// pushNotice queues a transient user-facing message, dropping the oldest when
// the backlog is full.
func (s *session) pushNotice(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, notice{Message: message, Time: s.now()})
	if len(s.notices) > maxNotices {
		s.notices = s.notices[len(s.notices)-maxNotices:]
	}
}

// Notices drains and returns the queued notices.
func (s *session) Notices() []notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	drained := s.notices
	s.notices = nil
	return drained
}

/* ─── Write-through dispatch ─────────────────────────────────────────── */

// dispatch journals the operation's intent and issues it to the gateway in the
// background, retrying on the backoff schedule. Exhausting the retries raises
// a notice and leaves the journal row for next-load replay; local state is
// never rolled back. The session context bounds every attempt, so Close
// cancels anything still in flight.
func (s *session) dispatch(desc string, op remoteOp) {
	if s.journal != nil {
		if err := s.journal.Enqueue(s.ctx, op); err != nil {
			log.Printf("[store] journal enqueue for %s failed: %v", desc, err)
		}
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		var err error
		for attempt := 0; ; attempt++ {
			err = s.gw.Do(s.ctx, op.Method, op.Path, op.Body)
			if err == nil {
				if s.journal != nil {
					if cerr := s.journal.Complete(s.ctx, op.ID); cerr != nil {
						log.Printf("[store] journal complete for %s failed: %v", desc, cerr)
					}
				}
				return
			}
			if s.ctx.Err() != nil {
				return
			}
			if attempt >= len(s.backoff) {
				break
			}
			select {
			case <-s.ctx.Done():
				return
			case <-time.After(s.backoff[attempt]):
			}
		}

		log.Printf("[store] saving %s failed: %v", desc, err)
		if s.journal != nil {
			if merr := s.journal.MarkAttempt(s.ctx, op.ID); merr != nil {
				log.Printf("[store] journal mark attempt for %s failed: %v", desc, merr)
			}
		}
		s.pushNotice(fmt.Sprintf("Could not save your %s. It is kept on this device and will sync later.", desc))
	}()
}

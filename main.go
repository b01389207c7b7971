package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"
)

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	log.SetPrefix("energy-balance: ")
	log.SetFlags(0)

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	apiBaseURL := getenv("API_BASE_URL", "")
	if apiBaseURL == "" {
		fmt.Fprintln(os.Stderr, "API_BASE_URL is required")
		os.Exit(1)
	}
	apiToken := getenv("API_TOKEN", "")
	journalPath := getenv("JOURNAL_PATH", "./data/pending.db")
	openAIBaseURL := getenv("OPENAI_BASE_URL", "https://api.openai.com")
	port := getenv("PORT", "8080")

	db, err := sql.Open("sqlite3", journalPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to open journal database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	j := newJournal(db)
	if err := j.InitTable(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Unable to initialize journal: %v\n", err)
		os.Exit(1)
	}

	gw := newRESTGateway(apiBaseURL, apiToken)
	s := newSession(gw, j)
	defer s.Close()

	// A failed bulk load is fatal: starting with empty state would look like a
	// healthy account with no data.
	if err := s.Load(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Unable to load user data: %v\n", err)
		os.Exit(1)
	}
	log.Printf("session loaded: %d daily log(s)", len(s.History()))

	gate := newCallGate(defaultCooldown, nil)
	sc := newSuggestClient(os.Getenv("OPENAI_API_KEY"), openAIBaseURL, gate)

	// Refresh the day's suggestion once edits settle for a few seconds. The
	// result is only logged here; the UI pulls fresh text through the API.
	refresh := newDebouncer(suggestDebounceDelay, func() {
		progress, err := s.Progress(todayKey())
		if err != nil {
			return
		}
		if _, err := sc.FetchSuggestion(context.Background(), progress); err != nil {
			log.Printf("[suggest] background refresh skipped: %v", err)
		}
	})
	defer refresh.Stop()
	s.SetOnChange(refresh.Trigger)

	h := &Handler{session: s, suggest: sc}
	router := gin.Default()
	router.SetTrustedProxies(nil)
	h.registerRoutes(router)

	if err := router.Run(":" + port); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

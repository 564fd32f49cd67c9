package db

import (
	"database/sql"
	"time"
)

type Poem struct {
	ID        int64
	Title     string
	Author    string
	Body      string
	SourceUrl string
	TextHash  string
	CharCount int64
	ScrapedAt time.Time
	PostedAt  sql.NullTime
}

type Post struct {
	ID             int64
	PoemID         int64
	Platform       string
	PlatformPostID sql.NullString
	PostUrl        sql.NullString
	PostText       string
	Truncated      bool
	PostedAt       time.Time
}

type ScrapeRun struct {
	ID           int64
	SourceUrl    string
	Status       string
	Candidates   int64
	Fetched      int64
	Misses       int64
	FetchErrors  int64
	Saved        int64
	ErrorMessage sql.NullString
	StartedAt    time.Time
	CompletedAt  sql.NullTime
}

// Scrape run statuses.
const (
	ScrapeRunRunning   = "running"
	ScrapeRunCompleted = "completed"
	ScrapeRunFailed    = "failed"
)

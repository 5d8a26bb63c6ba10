package domain

import "time"

// Podcast represents a tenant with a generation schedule. The scheduler only
// reads CronExpr and LastGeneratedAt; everything else is descriptive.
type Podcast struct {
	ID              int64
	Name            string
	CronExpr        string
	LastGeneratedAt *time.Time
	CreatedAt       time.Time
}

// Episode is the persisted artifact of one generation run
type Episode struct {
	ID        int64
	PodcastID int64
	Title     string
	Script    string
	CreatedAt time.Time
}

package model

import "time"

// Project is a registered git repository that Orange runs tasks against.
type Project struct {
	Name           string    `json:"name"`
	Path           string    `json:"path"`
	DefaultBranch  string    `json:"default_branch"`
	PoolSize       int       `json:"pool_size"`
	Harness        string    `json:"harness,omitempty"`
	ReviewHarness  string    `json:"review_harness,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// DefaultPoolSize is used when a project is created without an explicit size.
const DefaultPoolSize = 2

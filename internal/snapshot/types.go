// Package snapshot exports a user's planner data to a portable archive and
// restores it. An archive is a gzipped tar holding a manifest with per-file
// checksums, one profile file and a tasks and chat file per day.
package snapshot

import (
	"time"

	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
)

const (
	// FormatVersion is the current snapshot manifest format version.
	FormatVersion = 1

	manifestArchivePath = "manifest.json"
	profileArchivePath  = "profile.json"
	daysArchiveRoot     = "days"
	tasksFileName       = "tasks.json"
	chatFileName        = "chat.json"
)

// ConflictPolicy controls how import handles records that already exist.
type ConflictPolicy string

const (
	ConflictSkip      ConflictPolicy = "skip"
	ConflictOverwrite ConflictPolicy = "overwrite"
	ConflictFail      ConflictPolicy = "fail"
)

// FileEntry describes one archived file.
type FileEntry struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// Manifest is the metadata file stored at the archive root.
type Manifest struct {
	Version        int         `json:"version"`
	CreatedAt      time.Time   `json:"created_at"`
	AppVersion     string      `json:"app_version,omitempty"`
	UserID         string      `json:"user_id"`
	From           string      `json:"from"`
	To             string      `json:"to"`
	Days           []string    `json:"days"`
	TaskCount      int         `json:"task_count"`
	MessageCount   int         `json:"message_count"`
	ProfilePresent bool        `json:"profile_present"`
	Files          []FileEntry `json:"files"`
}

// Stores are the collaborators read on export and written on import.
// Profiles may be nil.
type Stores struct {
	Tasks    core.TaskStore
	Chats    core.ChatStore
	Profiles core.ProfileStore
}

// ExportOptions configures snapshot export.
type ExportOptions struct {
	OutputPath string
	UserID     string
	// From and To bound the exported days, inclusive.
	From       time.Time
	To         time.Time
	AppVersion string
}

// ExportResult describes an export.
type ExportResult struct {
	OutputPath string    `json:"output_path"`
	Manifest   *Manifest `json:"manifest"`
}

// ImportOptions configures snapshot import.
type ImportOptions struct {
	InputPath      string
	ConflictPolicy ConflictPolicy
	// UserID restores the data under another user; empty keeps the archived one.
	UserID string
	DryRun bool
}

// ImportReport summarizes an import.
type ImportReport struct {
	UserID           string   `json:"user_id"`
	DryRun           bool     `json:"dry_run"`
	TasksCreated     int      `json:"tasks_created"`
	TasksUpdated     int      `json:"tasks_updated"`
	TasksSkipped     int      `json:"tasks_skipped"`
	ChatDaysRestored int      `json:"chat_days_restored"`
	ChatDaysSkipped  int      `json:"chat_days_skipped"`
	ProfileRestored  bool     `json:"profile_restored"`
	Warnings         []string `json:"warnings,omitempty"`
}

// maxDays bounds an export range.
const maxDays = 366

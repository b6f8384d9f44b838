package models

// SyncStatus describes whether local commits are known to have reached the
// remote store. It is derived, never stored: the tracker compares the last
// uploaded commit id against the current HEAD of the primary branch.
type SyncStatus string

const (
	// SyncStatusUnknown means the status file is missing or unreadable, or
	// git could not be consulted. Displayed as an empty statusline.
	SyncStatusUnknown SyncStatus = "unknown"

	// SyncStatusPushed means the primary branch HEAD matches the last
	// uploaded commit.
	SyncStatusPushed SyncStatus = "pushed"

	// SyncStatusPending means there are local commits not yet uploaded.
	SyncStatusPending SyncStatus = "pending"
)

// Statusline returns the string editors embed in their status line.
func (s SyncStatus) Statusline() string {
	switch s {
	case SyncStatusPushed:
		return "[Notes: pushed]"
	case SyncStatusPending:
		return "[Notes: there are unpushed commits]"
	default:
		return ""
	}
}

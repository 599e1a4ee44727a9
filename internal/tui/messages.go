package tui

import "github.com/johan-st/query-console/internal/console"

// Messages for async operations

// ReadyMsg is sent when the database answered (or failed) the startup ping.
type ReadyMsg struct {
	Error error
}

// QueryExecutedMsg is sent when an execution settled.
type QueryExecutedMsg struct {
	Error error
}

// ClipboardCopiedMsg is sent when copying the results finished.
type ClipboardCopiedMsg struct {
	Error error
}

// CopiedExpiredMsg is sent when the copied window should have elapsed.
type CopiedExpiredMsg struct{}

// DownloadFinishedMsg is sent when saving the results finished.
type DownloadFinishedMsg struct {
	Download console.Download
	Error    error
}

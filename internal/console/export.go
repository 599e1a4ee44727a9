package console

import (
	"net/url"
)

const (
	// DownloadFileName is the name of the saved result file.
	DownloadFileName = "patient_query_results.json"
	// DownloadMIME is the media type of the saved result file.
	DownloadMIME = "application/json"
)

// MarshalRows encodes rows as a JSON array indented with two spaces.
// Characters such as < and & are written as is.
func MarshalRows(rows []Row) ([]byte, error) {
	if rows == nil {
		rows = []Row{}
	}
	return marshalJSON(rows, "  ")
}

// DataURI wraps a JSON payload in a data URI.
func DataURI(data []byte) string {
	return "data:" + DownloadMIME + ";charset=utf-8," + url.PathEscape(string(data))
}

// Download describes a completed save.
type Download struct {
	Name     string
	Location string
	Size     int
	Rows     int
}

// Saved reports whether a save took place.
func (d Download) Saved() bool {
	return d.Name != ""
}

package console

import "context"

// Service executes a query against the data store.
// A returned result must respect the QueryResult invariants; the
// controller normalizes it anyway.
type Service interface {
	Execute(ctx context.Context, query string) (*QueryResult, error)
}

// ClipboardWriter writes text to a clipboard.
type ClipboardWriter interface {
	WriteText(ctx context.Context, text string) error
}

// FileSaver persists a named payload and returns where it ended up.
type FileSaver interface {
	Save(ctx context.Context, name, mimeType string, data []byte) (string, error)
}

// ServiceFunc adapts a function to Service.
type ServiceFunc func(ctx context.Context, query string) (*QueryResult, error)

// Execute calls f.
func (f ServiceFunc) Execute(ctx context.Context, query string) (*QueryResult, error) {
	return f(ctx, query)
}

type noopClipboard struct{}

func (noopClipboard) WriteText(context.Context, string) error { return ErrClipboardUnavailable }

type noopSaver struct{}

func (noopSaver) Save(context.Context, string, string, []byte) (string, error) {
	return "", ErrSaverUnavailable
}

package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// DefaultCopiedWindow is how long the copied flag stays set.
const DefaultCopiedWindow = 2000 * time.Millisecond

var (
	// ErrExecutionInProgress is returned when Execute is called while a
	// previous execution has not settled.
	ErrExecutionInProgress = errors.New("a query is already executing")
	// ErrClipboardUnavailable is returned when no clipboard is configured.
	ErrClipboardUnavailable = errors.New("clipboard not available")
	// ErrSaverUnavailable is returned when no file saver is configured.
	ErrSaverUnavailable = errors.New("file saving not available")
)

// Options configures a Controller.
type Options struct {
	Clipboard    ClipboardWriter
	Saver        FileSaver
	Logger       *log.Logger
	CopiedWindow time.Duration
	InitialQuery string

	// OnChange is called after state changes that happen outside a
	// caller's own method call, such as the copied flag reverting.
	OnChange func()
}

// Controller owns the query text, the execution lifecycle and the
// current result.
type Controller struct {
	service   Service
	clipboard ClipboardWriter
	saver     FileSaver
	logger    *log.Logger
	window    time.Duration
	onChange  func()

	mu        sync.Mutex
	query     string
	state     ExecutionState
	result    *QueryResult
	copied    bool
	copyTimer *time.Timer
	copyGen   uint64
	closed    bool
}

// NewController creates a controller backed by the given service.
func NewController(service Service, opts Options) *Controller {
	c := &Controller{
		service:   service,
		clipboard: opts.Clipboard,
		saver:     opts.Saver,
		logger:    opts.Logger,
		window:    opts.CopiedWindow,
		onChange:  opts.OnChange,
		query:     opts.InitialQuery,
		state:     Idle,
	}
	if c.clipboard == nil {
		c.clipboard = noopClipboard{}
	}
	if c.saver == nil {
		c.saver = noopSaver{}
	}
	if c.logger == nil {
		c.logger = log.New(io.Discard)
	}
	if c.window <= 0 {
		c.window = DefaultCopiedWindow
	}
	return c
}

// SetQueryText replaces the query text verbatim.
func (c *Controller) SetQueryText(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.query = text
}

// LoadExample overwrites the query text with an example, discarding edits.
func (c *Controller) LoadExample(text string) {
	c.SetQueryText(text)
}

// QueryText returns the current query text.
func (c *Controller) QueryText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

// State returns the execution state.
func (c *Controller) State() ExecutionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Executing reports whether an execution is in flight.
func (c *Controller) Executing() bool {
	return c.State() == Executing
}

// Result returns the current result, or nil before the first execution.
func (c *Controller) Result() *QueryResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// Copied reports whether a copy happened within the copied window.
func (c *Controller) Copied() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copied
}

// CopiedWindow returns how long the copied flag stays set.
func (c *Controller) CopiedWindow() time.Duration {
	return c.window
}

// CanExport reports whether copy and download are enabled.
func (c *Controller) CanExport() bool {
	return c.Result().Exportable()
}

// View projects the current result and state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Project(c.result, c.state)
}

// Execute runs the current query text. Empty or whitespace-only text is a
// no-op. Failures of the service are recorded in the result, not returned.
// A context that is already done leaves the state untouched and its error
// is returned.
func (c *Controller) Execute(ctx context.Context) error {
	c.mu.Lock()
	query := c.query
	if strings.TrimSpace(query) == "" {
		c.mu.Unlock()
		return nil
	}
	if c.state == Executing {
		c.mu.Unlock()
		return ErrExecutionInProgress
	}
	if err := ctx.Err(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.state = Executing
	c.mu.Unlock()

	id := uuid.NewString()
	logger := c.logger.With("query_id", id)
	logger.Debug("executing query", "query", query)
	start := time.Now()

	result := Failure("")
	defer func() {
		c.mu.Lock()
		c.result = result
		if result.Success {
			c.state = Succeeded
		} else {
			c.state = Failed
		}
		c.mu.Unlock()

		if result.Success {
			logger.Info("query succeeded", "rows", len(result.Data), "duration", time.Since(start))
		} else {
			logger.Warn("query failed", "error", result.Error, "duration", time.Since(start))
		}
	}()

	result = c.run(ctx, query)
	return nil
}

// run calls the service and collapses every outcome into a result.
func (c *Controller) run(ctx context.Context, query string) (result *QueryResult) {
	defer func() {
		if p := recover(); p != nil {
			result = Failure(fmt.Sprint(p))
		}
	}()

	res, err := c.service.Execute(ctx, query)
	if err != nil {
		return Failure(err.Error())
	}
	return Normalize(res)
}

// CopyToClipboard writes text to the clipboard and sets the copied flag
// for the copied window. A new copy cancels the pending revert.
func (c *Controller) CopyToClipboard(ctx context.Context, text string) error {
	if err := c.clipboard.WriteText(ctx, text); err != nil {
		c.logger.Warn("clipboard write failed", "error", err)
		return fmt.Errorf("copy to clipboard: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	if c.copyTimer != nil {
		c.copyTimer.Stop()
	}
	c.copyGen++
	gen := c.copyGen
	c.copied = true
	c.copyTimer = time.AfterFunc(c.window, func() { c.revertCopied(gen) })
	return nil
}

func (c *Controller) revertCopied(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.copyGen {
		c.mu.Unlock()
		return
	}
	c.copied = false
	c.copyTimer = nil
	c.mu.Unlock()

	if c.onChange != nil {
		c.onChange()
	}
}

// CopyResults copies the current rows as JSON. It is a no-op when there
// is nothing to export.
func (c *Controller) CopyResults(ctx context.Context) error {
	result := c.Result()
	if !result.Exportable() {
		return nil
	}
	data, err := MarshalRows(result.Data)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	return c.CopyToClipboard(ctx, string(data))
}

// DownloadResults saves the current rows as a JSON file. It is a no-op,
// returning a zero Download, when there is nothing to export.
func (c *Controller) DownloadResults(ctx context.Context) (Download, error) {
	result := c.Result()
	if !result.Exportable() {
		return Download{}, nil
	}

	data, err := MarshalRows(result.Data)
	if err != nil {
		return Download{}, fmt.Errorf("encode results: %w", err)
	}

	location, err := c.saver.Save(ctx, DownloadFileName, DownloadMIME, data)
	if err != nil {
		c.logger.Warn("saving results failed", "error", err)
		return Download{}, fmt.Errorf("save results: %w", err)
	}

	c.logger.Info("results saved", "location", location, "rows", len(result.Data))
	return Download{
		Name:     DownloadFileName,
		Location: location,
		Size:     len(data),
		Rows:     len(result.Data),
	}, nil
}

// Close cancels the pending copied revert. The controller stays readable.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.copyTimer != nil {
		c.copyTimer.Stop()
		c.copyTimer = nil
	}
}

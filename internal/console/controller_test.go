package console

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClipboard struct {
	mu     sync.Mutex
	writes []string
	err    error
}

func (f *fakeClipboard) WriteText(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.writes = append(f.writes, text)
	return nil
}

type savedFile struct {
	name, mime string
	data       []byte
}

type fakeSaver struct {
	saves []savedFile
	err   error
}

func (f *fakeSaver) Save(_ context.Context, name, mimeType string, data []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.saves = append(f.saves, savedFile{name: name, mime: mimeType, data: data})
	return "/tmp/" + name, nil
}

func staticService(result *QueryResult, err error) Service {
	return ServiceFunc(func(context.Context, string) (*QueryResult, error) {
		return result, err
	})
}

func patientRows() []Row {
	return []Row{
		NewRow([]string{"id", "name"}, []any{int64(1), "A"}),
		NewRow([]string{"id", "name"}, []any{int64(2), "B"}),
	}
}

func TestController_Execute_Outcomes(t *testing.T) {
	tests := []struct {
		name      string
		service   Service
		wantState ExecutionState
		wantRows  int
		wantError string
	}{
		{
			name:      "success",
			service:   staticService(Success(patientRows()), nil),
			wantState: Succeeded,
			wantRows:  2,
		},
		{
			name:      "service returns failure result",
			service:   staticService(&QueryResult{Success: false, Error: "syntax error"}, nil),
			wantState: Failed,
			wantError: "syntax error",
		},
		{
			name:      "service error with message",
			service:   staticService(nil, errors.New("no such table: patientz")),
			wantState: Failed,
			wantError: "no such table: patientz",
		},
		{
			name:      "service error without message",
			service:   staticService(nil, errors.New("")),
			wantState: Failed,
			wantError: DefaultErrorMessage,
		},
		{
			name:      "nil result without error",
			service:   staticService(nil, nil),
			wantState: Failed,
			wantError: DefaultErrorMessage,
		},
		{
			name: "failure carrying rows is normalized",
			service: staticService(&QueryResult{
				Success: false,
				Data:    patientRows(),
				Error:   "partial",
			}, nil),
			wantState: Failed,
			wantError: "partial",
		},
		{
			name: "success carrying error is normalized",
			service: staticService(&QueryResult{
				Success: true,
				Data:    patientRows(),
				Error:   "stale",
			}, nil),
			wantState: Succeeded,
			wantRows:  2,
		},
		{
			name: "panicking service",
			service: ServiceFunc(func(context.Context, string) (*QueryResult, error) {
				panic("driver exploded")
			}),
			wantState: Failed,
			wantError: "driver exploded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewController(tt.service, Options{InitialQuery: "SELECT * FROM patients"})
			defer c.Close()

			require.NoError(t, c.Execute(context.Background()))

			assert.Equal(t, tt.wantState, c.State())
			assert.False(t, c.Executing())

			res := c.Result()
			require.NotNil(t, res)
			assert.Len(t, res.Data, tt.wantRows)
			assert.Equal(t, tt.wantError, res.Error)
			if !res.Success {
				assert.Empty(t, res.Data)
			}
		})
	}
}

func TestController_Execute_EmptyQueryIsNoop(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t  \n"} {
		calls := 0
		svc := ServiceFunc(func(context.Context, string) (*QueryResult, error) {
			calls++
			return Success(nil), nil
		})
		c := NewController(svc, Options{})
		c.SetQueryText(text)

		require.NoError(t, c.Execute(context.Background()))
		assert.Equal(t, 0, calls)
		assert.Equal(t, Idle, c.State())
		assert.Nil(t, c.Result())
	}
}

func TestController_Execute_EmptyQueryKeepsPreviousResult(t *testing.T) {
	c := NewController(staticService(Success(patientRows()), nil), Options{InitialQuery: "SELECT 1"})
	require.NoError(t, c.Execute(context.Background()))
	before := c.Result()

	c.SetQueryText("  ")
	require.NoError(t, c.Execute(context.Background()))

	assert.Same(t, before, c.Result())
	assert.Equal(t, Succeeded, c.State())
}

func TestController_Execute_PassesQueryVerbatim(t *testing.T) {
	var got string
	svc := ServiceFunc(func(_ context.Context, q string) (*QueryResult, error) {
		got = q
		return Success(nil), nil
	})
	c := NewController(svc, Options{})
	c.SetQueryText("  SELECT 1  ")

	require.NoError(t, c.Execute(context.Background()))
	assert.Equal(t, "  SELECT 1  ", got)
}

func TestController_Execute_ReplacesResultWholesale(t *testing.T) {
	results := []*QueryResult{
		Success(patientRows()),
		Failure("boom"),
	}
	i := 0
	svc := ServiceFunc(func(context.Context, string) (*QueryResult, error) {
		r := results[i]
		i++
		return r, nil
	})
	c := NewController(svc, Options{InitialQuery: "SELECT 1"})

	require.NoError(t, c.Execute(context.Background()))
	assert.Len(t, c.Result().Data, 2)

	require.NoError(t, c.Execute(context.Background()))
	assert.False(t, c.Result().Success)
	assert.Empty(t, c.Result().Data)
	assert.Equal(t, Failed, c.State())
}

func TestController_Execute_RejectsOverlap(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	svc := ServiceFunc(func(context.Context, string) (*QueryResult, error) {
		close(started)
		<-release
		return Success(patientRows()), nil
	})
	c := NewController(svc, Options{InitialQuery: "SELECT 1"})

	done := make(chan error, 1)
	go func() { done <- c.Execute(context.Background()) }()
	<-started

	assert.Equal(t, Executing, c.State())
	assert.True(t, c.View().Busy)
	assert.ErrorIs(t, c.Execute(context.Background()), ErrExecutionInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, Succeeded, c.State())
}

func TestController_Execute_DoneContext(t *testing.T) {
	called := false
	c := NewController(ServiceFunc(func(context.Context, string) (*QueryResult, error) {
		called = true
		return Success(patientRows()), nil
	}), Options{InitialQuery: "SELECT 1"})
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, c.Execute(ctx), context.Canceled)
	assert.False(t, called)
	assert.Equal(t, Idle, c.State())
	assert.Nil(t, c.Result())
}

func TestController_DefaultCopiedWindow(t *testing.T) {
	c := NewController(staticService(nil, nil), Options{})
	defer c.Close()
	assert.Equal(t, 2000*time.Millisecond, c.CopiedWindow())
}

func TestController_LoadExample(t *testing.T) {
	c := NewController(staticService(nil, nil), Options{InitialQuery: "SELECT * FROM patients LIMIT 10"})
	c.SetQueryText("half typed quer")

	c.LoadExample("SELECT * FROM patients ORDER BY last_name LIMIT 10")

	assert.Equal(t, "SELECT * FROM patients ORDER BY last_name LIMIT 10", c.QueryText())
}

func TestController_CopyToClipboard(t *testing.T) {
	clip := &fakeClipboard{}
	c := NewController(staticService(nil, nil), Options{
		Clipboard:    clip,
		CopiedWindow: 50 * time.Millisecond,
	})
	defer c.Close()

	require.NoError(t, c.CopyToClipboard(context.Background(), "anything"))
	assert.True(t, c.Copied())
	assert.Equal(t, []string{"anything"}, clip.writes)

	assert.Eventually(t, func() bool { return !c.Copied() }, time.Second, 5*time.Millisecond)
}

func TestController_CopyToClipboard_RestartsWindow(t *testing.T) {
	changes := make(chan struct{}, 4)
	c := NewController(staticService(nil, nil), Options{
		Clipboard:    &fakeClipboard{},
		CopiedWindow: 150 * time.Millisecond,
		OnChange:     func() { changes <- struct{}{} },
	})
	defer c.Close()

	require.NoError(t, c.CopyToClipboard(context.Background(), "first"))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, c.CopyToClipboard(context.Background(), "second"))

	// The first window would have ended here.
	time.Sleep(80 * time.Millisecond)
	assert.True(t, c.Copied())

	assert.Eventually(t, func() bool { return !c.Copied() }, time.Second, 5*time.Millisecond)
	select {
	case <-changes:
	case <-time.After(time.Second):
		t.Fatal("expected change notification")
	}
	assert.Len(t, changes, 0, "only one revert should fire")
}

func TestController_CopyToClipboard_Failure(t *testing.T) {
	c := NewController(staticService(nil, nil), Options{
		Clipboard: &fakeClipboard{err: errors.New("no display")},
	})

	err := c.CopyToClipboard(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no display")
	assert.False(t, c.Copied())
}

func TestController_CopyToClipboard_NoClipboard(t *testing.T) {
	c := NewController(staticService(nil, nil), Options{})
	assert.ErrorIs(t, c.CopyToClipboard(context.Background(), "x"), ErrClipboardUnavailable)
}

func TestController_Close_CancelsRevert(t *testing.T) {
	notified := false
	c := NewController(staticService(nil, nil), Options{
		Clipboard:    &fakeClipboard{},
		CopiedWindow: 20 * time.Millisecond,
		OnChange:     func() { notified = true },
	})

	require.NoError(t, c.CopyToClipboard(context.Background(), "x"))
	c.Close()
	time.Sleep(60 * time.Millisecond)

	assert.True(t, c.Copied())
	assert.False(t, notified)
}

func TestController_CopyResults(t *testing.T) {
	clip := &fakeClipboard{}
	c := NewController(staticService(Success(patientRows()), nil), Options{
		Clipboard:    clip,
		InitialQuery: "SELECT 1",
	})
	defer c.Close()

	// Nothing to copy before the first execution.
	require.NoError(t, c.CopyResults(context.Background()))
	assert.Empty(t, clip.writes)

	require.NoError(t, c.Execute(context.Background()))
	require.NoError(t, c.CopyResults(context.Background()))

	want := "[\n  {\n    \"id\": 1,\n    \"name\": \"A\"\n  },\n  {\n    \"id\": 2,\n    \"name\": \"B\"\n  }\n]"
	require.Len(t, clip.writes, 1)
	assert.Equal(t, want, clip.writes[0])
	assert.True(t, c.Copied())
}

func TestController_DownloadResults(t *testing.T) {
	saver := &fakeSaver{}
	c := NewController(staticService(Success(patientRows()), nil), Options{
		Saver:        saver,
		InitialQuery: "SELECT 1",
	})
	require.NoError(t, c.Execute(context.Background()))

	dl, err := c.DownloadResults(context.Background())
	require.NoError(t, err)

	require.Len(t, saver.saves, 1)
	assert.Equal(t, "patient_query_results.json", saver.saves[0].name)
	assert.Equal(t, "application/json", saver.saves[0].mime)
	assert.JSONEq(t, `[{"id":1,"name":"A"},{"id":2,"name":"B"}]`, string(saver.saves[0].data))

	assert.True(t, dl.Saved())
	assert.Equal(t, "/tmp/patient_query_results.json", dl.Location)
	assert.Equal(t, 2, dl.Rows)
	assert.Equal(t, len(saver.saves[0].data), dl.Size)
}

func TestController_DownloadResults_Noop(t *testing.T) {
	tests := []struct {
		name    string
		service Service
		execute bool
	}{
		{name: "no result yet", service: staticService(nil, nil)},
		{name: "zero rows", service: staticService(Success(nil), nil), execute: true},
		{name: "failed result", service: staticService(nil, errors.New("boom")), execute: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			saver := &fakeSaver{}
			c := NewController(tt.service, Options{Saver: saver, InitialQuery: "SELECT 1"})
			if tt.execute {
				require.NoError(t, c.Execute(context.Background()))
			}

			dl, err := c.DownloadResults(context.Background())
			require.NoError(t, err)
			assert.False(t, dl.Saved())
			assert.Empty(t, saver.saves)
			assert.False(t, c.CanExport())
		})
	}
}

func TestController_DownloadResults_SaverError(t *testing.T) {
	c := NewController(staticService(Success(patientRows()), nil), Options{
		Saver:        &fakeSaver{err: errors.New("disk full")},
		InitialQuery: "SELECT 1",
	})
	require.NoError(t, c.Execute(context.Background()))

	dl, err := c.DownloadResults(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.False(t, dl.Saved())
}

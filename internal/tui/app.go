package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/johan-st/query-console/internal/config"
	"github.com/johan-st/query-console/internal/console"
)

// Focus represents which pane is focused
type Focus int

const (
	FocusEditor Focus = iota
	FocusResults
)

const (
	editorLines = 5 // visible lines of the query editor
	maxColWidth = 40

	pingTimeout = 5 * time.Second
	pingRetry   = 2 * time.Second

	// copiedRecheck is how soon the copied label is checked again when
	// the window was restarted by another copy.
	copiedRecheck = 50 * time.Millisecond
)

// Pinger reports whether the database is ready to serve queries.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures an App.
type Options struct {
	Title    string
	Source   string // database shown in the status bar
	Examples []config.Example
	Pinger   Pinger
	Context  context.Context
	Width    int
	Height   int
}

// App is the main TUI application model.
type App struct {
	// Dependencies
	controller *console.Controller
	pinger     Pinger
	ctx        context.Context

	title    string
	source   string
	examples []config.Example

	// Window size
	width, height int

	// Initialization gate
	ready   bool
	initErr error

	// Components
	focus       Focus
	editor      textarea.Model
	spinner     spinner.Model
	resultTable table.Model

	// Result state
	view      console.View
	submitted bool

	// Column scrolling
	colOffset   int // first visible column index
	visibleCols int // number of columns that fit in the pane

	// UI state
	status    string
	statusErr bool
	showHelp  bool

	// Key bindings
	keys KeyMap
}

// NewApp creates a new TUI application around a controller.
func NewApp(controller *console.Controller, opts Options) *App {
	editor := textarea.New()
	editor.Placeholder = "Enter a SQL query..."
	editor.ShowLineNumbers = false
	editor.CharLimit = 0
	editor.SetValue(controller.QueryText())
	editor.Focus()

	sp := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(busyStyle),
	)

	resultTable := table.New(
		table.WithColumns([]table.Column{}),
		table.WithRows([]table.Row{}),
		table.WithFocused(false),
		table.WithHeight(5),
	)
	resultTable.SetStyles(table.Styles{
		Header:   tableHeaderStyle,
		Cell:     tableCellStyle,
		Selected: tableSelectedRowStyle,
	})

	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	title := opts.Title
	if title == "" {
		title = "query-console"
	}

	a := &App{
		controller:  controller,
		pinger:      opts.Pinger,
		ctx:         ctx,
		title:       title,
		source:      opts.Source,
		examples:    opts.Examples,
		width:       opts.Width,
		height:      opts.Height,
		focus:       FocusEditor,
		editor:      editor,
		spinner:     sp,
		resultTable: resultTable,
		view:        controller.View(),
		keys:        DefaultKeyMap(),
	}
	a.updateSizes()

	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, a.checkReady, textarea.Blink)
}

// checkReady pings the database for the initialization gate.
func (a *App) checkReady() tea.Msg {
	if a.pinger == nil {
		return ReadyMsg{}
	}
	ctx, cancel := context.WithTimeout(a.ctx, pingTimeout)
	defer cancel()
	return ReadyMsg{Error: a.pinger.Ping(ctx)}
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKey(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.updateSizes()
		return a, nil

	case ReadyMsg:
		if msg.Error != nil {
			a.initErr = msg.Error
			return a, tea.Tick(pingRetry, func(time.Time) tea.Msg { return a.checkReady() })
		}
		a.ready = true
		a.initErr = nil
		return a, nil

	case spinner.TickMsg:
		if a.ready && !a.busy() {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case QueryExecutedMsg:
		a.submitted = false
		if msg.Error != nil {
			a.setStatus(msg.Error.Error(), true)
			return a, nil
		}
		a.refreshResults()
		switch a.view.Kind {
		case console.ViewError:
			a.setStatus("Query failed", true)
		case console.ViewTable, console.ViewEmpty:
			a.setStatus(fmt.Sprintf("Query returned %s rows", humanize.Comma(int64(len(a.view.Rows)))), false)
		}
		return a, nil

	case ClipboardCopiedMsg:
		if msg.Error != nil {
			a.setStatus(msg.Error.Error(), true)
			return a, nil
		}
		a.setStatus(fmt.Sprintf("Copied %s rows to clipboard", humanize.Comma(int64(len(a.view.Rows)))), false)
		return a, expireCopied(a.controller.CopiedWindow())

	case CopiedExpiredMsg:
		if a.controller.Copied() {
			return a, expireCopied(copiedRecheck)
		}
		return a, nil

	case DownloadFinishedMsg:
		if msg.Error != nil {
			a.setStatus(msg.Error.Error(), true)
			return a, nil
		}
		if msg.Download.Saved() {
			a.setStatus(fmt.Sprintf("Saved %s rows (%s) to %s",
				humanize.Comma(int64(msg.Download.Rows)),
				humanize.Bytes(uint64(msg.Download.Size)),
				msg.Download.Location), false)
		}
		return a, nil
	}

	// Update focused component
	var cmd tea.Cmd
	switch a.focus {
	case FocusEditor:
		a.editor, cmd = a.editor.Update(msg)
	case FocusResults:
		a.resultTable, cmd = a.resultTable.Update(msg)
	}
	return a, cmd
}

func expireCopied(after time.Duration) tea.Cmd {
	return tea.Tick(after, func(time.Time) tea.Msg { return CopiedExpiredMsg{} })
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, a.keys.Quit) {
		return a, tea.Quit
	}

	// Handle help overlay
	if a.showHelp {
		if key.Matches(msg, a.keys.Back) || key.Matches(msg, a.keys.Help) {
			a.showHelp = false
		}
		return a, nil
	}

	// Nothing but quitting until the database is ready
	if !a.ready {
		return a, nil
	}

	switch {
	case key.Matches(msg, a.keys.Help):
		a.showHelp = true
		return a, nil

	case key.Matches(msg, a.keys.Run):
		return a.runQuery()

	case key.Matches(msg, a.keys.Copy):
		return a.copyResults()

	case key.Matches(msg, a.keys.Download):
		return a.downloadResults()

	case key.Matches(msg, a.keys.Example):
		return a.loadExample(msg.String())

	case key.Matches(msg, a.keys.NextPane):
		if a.focus == FocusEditor {
			a.focus = FocusResults
		} else {
			a.focus = FocusEditor
		}
		a.updateFocus()
		return a, nil
	}

	if a.focus == FocusEditor {
		var cmd tea.Cmd
		a.editor, cmd = a.editor.Update(msg)
		a.controller.SetQueryText(a.editor.Value())
		return a, cmd
	}

	switch {
	case key.Matches(msg, a.keys.Back):
		a.focus = FocusEditor
		a.updateFocus()
		return a, nil

	case key.Matches(msg, a.keys.Left):
		if a.colOffset > 0 {
			a.colOffset--
			a.updateResultTable()
		}
		return a, nil

	case key.Matches(msg, a.keys.Right):
		if a.colOffset+a.visibleCols < len(a.view.Headers) {
			a.colOffset++
			a.updateResultTable()
		}
		return a, nil
	}

	var cmd tea.Cmd
	a.resultTable, cmd = a.resultTable.Update(msg)
	return a, cmd
}

func (a *App) updateFocus() {
	a.editor.Blur()
	a.resultTable.Blur()
	switch a.focus {
	case FocusEditor:
		a.editor.Focus()
	case FocusResults:
		a.resultTable.Focus()
	}
}

// busy reports whether a submitted query has not settled yet.
func (a *App) busy() bool {
	return a.submitted || a.controller.Executing()
}

func (a *App) setStatus(text string, isErr bool) {
	a.status = text
	a.statusErr = isErr
}

func (a *App) runQuery() (tea.Model, tea.Cmd) {
	if a.busy() || strings.TrimSpace(a.controller.QueryText()) == "" {
		return a, nil
	}

	a.submitted = true
	a.setStatus("", false)

	controller, ctx := a.controller, a.ctx
	execute := func() tea.Msg {
		return QueryExecutedMsg{Error: controller.Execute(ctx)}
	}
	return a, tea.Batch(a.spinner.Tick, execute)
}

func (a *App) copyResults() (tea.Model, tea.Cmd) {
	if !a.controller.CanExport() {
		return a, nil
	}
	controller, ctx := a.controller, a.ctx
	return a, func() tea.Msg {
		return ClipboardCopiedMsg{Error: controller.CopyResults(ctx)}
	}
}

func (a *App) downloadResults() (tea.Model, tea.Cmd) {
	if !a.controller.CanExport() {
		return a, nil
	}
	controller, ctx := a.controller, a.ctx
	return a, func() tea.Msg {
		d, err := controller.DownloadResults(ctx)
		return DownloadFinishedMsg{Download: d, Error: err}
	}
}

func (a *App) loadExample(keyName string) (tea.Model, tea.Cmd) {
	idx, ok := exampleIndex(keyName)
	if !ok || idx >= len(a.examples) {
		return a, nil
	}

	ex := a.examples[idx]
	a.controller.LoadExample(ex.Query)
	a.editor.SetValue(ex.Query)
	a.focus = FocusEditor
	a.updateFocus()
	a.setStatus("Loaded example: "+ex.Name, false)
	return a, nil
}

// refreshResults takes a new projection of the controller's result.
func (a *App) refreshResults() {
	a.view = a.controller.View()
	a.colOffset = 0
	a.updateResultTable()
	a.resultTable.SetCursor(0)
}

// resultsPaneHeight is the outer height of the results pane: the screen
// minus the editor pane, the toolbar and the status bar.
func (a *App) resultsPaneHeight() int {
	h := a.height - (editorLines + 2) - 2
	if h < 3 {
		h = 3
	}
	return h
}

func (a *App) updateSizes() {
	w := a.width - 4 // borders and padding
	if w < 10 {
		w = 10
	}
	a.editor.SetWidth(w)
	a.editor.SetHeight(editorLines)
	a.updateResultTable()
}

// updateResultTable rebuilds the visible columns and rows of the table.
func (a *App) updateResultTable() {
	headers := a.view.Headers
	if a.view.Kind != console.ViewTable || len(headers) == 0 {
		a.visibleCols = 0
		a.resultTable.SetRows([]table.Row{})
		a.resultTable.SetColumns([]table.Column{})
		return
	}

	totalCols := len(headers)

	// Clamp colOffset to valid range
	if a.colOffset < 0 {
		a.colOffset = 0
	}
	if a.colOffset >= totalCols {
		a.colOffset = totalCols - 1
	}

	// Content width of every column, header included
	widths := make([]int, totalCols)
	for i, h := range headers {
		w := lipgloss.Width(h)
		for _, row := range a.view.Rows {
			if cw := lipgloss.Width(cellText(row[i])); cw > w {
				w = cw
			}
		}
		if w > maxColWidth {
			w = maxColWidth
		}
		if w < 4 {
			w = 4
		}
		widths[i] = w
	}

	// Fit as many columns as the pane allows, at least one
	available := a.width - 4
	used := 0
	endCol := a.colOffset
	for endCol < totalCols {
		w := widths[endCol] + 2 // cell padding
		if used+w > available && endCol > a.colOffset {
			break
		}
		used += w
		endCol++
	}
	a.visibleCols = endCol - a.colOffset

	columns := make([]table.Column, a.visibleCols)
	for i := range columns {
		src := a.colOffset + i
		columns[i] = table.Column{
			Title: truncateString(headers[src], widths[src]),
			Width: widths[src],
		}
	}

	rows := make([]table.Row, len(a.view.Rows))
	for r, row := range a.view.Rows {
		cells := make([]string, a.visibleCols)
		for i := range cells {
			src := a.colOffset + i
			cells[i] = truncateString(cellText(row[src]), widths[src])
		}
		rows[r] = cells
	}

	// Must set rows before columns to avoid index panic in bubbles/table
	cursor := a.resultTable.Cursor()
	a.resultTable.SetRows([]table.Row{}) // clear first
	a.resultTable.SetColumns(columns)
	a.resultTable.SetRows(rows)
	a.resultTable.SetHeight(a.tableHeight())
	if cursor < len(rows) {
		a.resultTable.SetCursor(cursor)
	}
}

// tableHeight is the table height left after the indicator lines.
func (a *App) tableHeight() int {
	h := a.resultsPaneHeight() - 2
	if a.visibleCols < len(a.view.Headers) {
		h-- // column scroll indicator
	}
	if len(a.view.Mismatched) > 0 {
		h-- // mismatch warning
	}
	if h < 2 {
		h = 2
	}
	return h
}

// View implements tea.Model.
func (a *App) View() string {
	if a.width < 40 || a.height < 14 {
		return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center,
			errorStyle.Render("Terminal too small\nMin: 40x14"))
	}

	if !a.ready {
		return a.renderInitGate()
	}

	if a.showHelp {
		return a.renderHelp()
	}

	var b strings.Builder

	b.WriteString(a.renderPaneWithTitle(a.editor.View(), a.width, editorLines+2, "Query", a.focus == FocusEditor))
	b.WriteString("\n")

	b.WriteString(a.renderToolbar())
	b.WriteString("\n")

	b.WriteString(a.renderResultsPane(a.width, a.resultsPaneHeight()))
	b.WriteString("\n")

	b.WriteString(a.renderStatusBar())

	return b.String()
}

func (a *App) renderInitGate() string {
	var b strings.Builder
	b.WriteString(a.spinner.View())
	b.WriteString(" Connecting to database...")
	if a.initErr != nil {
		b.WriteString("\n\n")
		b.WriteString(errorStyle.Render(a.initErr.Error()))
		b.WriteString("\n")
		b.WriteString(dimItemStyle.Render("Retrying. Press ^C to quit."))
	}
	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, b.String())
}

func (a *App) renderToolbar() string {
	canExport := a.controller.CanExport()
	var parts []string

	switch {
	case a.busy():
		parts = append(parts, a.spinner.View()+busyStyle.Render("Executing..."))
	case strings.TrimSpace(a.controller.QueryText()) == "":
		parts = append(parts, disabledButtonStyle.Render("Run ^R"))
	default:
		parts = append(parts, buttonStyle.Render("Run ^R"))
	}

	switch {
	case a.controller.Copied():
		parts = append(parts, copiedButtonStyle.Render("Copied!"))
	case canExport:
		parts = append(parts, buttonStyle.Render("Copy ^Y"))
	default:
		parts = append(parts, disabledButtonStyle.Render("Copy ^Y"))
	}

	if canExport {
		parts = append(parts, buttonStyle.Render("Download ^S"))
	} else {
		parts = append(parts, disabledButtonStyle.Render("Download ^S"))
	}

	for i, ex := range a.examples {
		if i >= maxExamples {
			break
		}
		parts = append(parts, statusKeyStyle.Render(fmt.Sprintf("alt+%d", i+1))+" "+dimItemStyle.Render(ex.Name))
	}

	return lipgloss.NewStyle().MaxWidth(a.width).Render(strings.Join(parts, "  "))
}

func (a *App) renderResultsPane(width, height int) string {
	focused := a.focus == FocusResults
	v := a.view

	var content strings.Builder
	title := "Results"

	switch v.Kind {
	case console.ViewNone:
		if a.busy() {
			content.WriteString(a.spinner.View() + dimItemStyle.Render("Executing query..."))
		} else {
			content.WriteString(dimItemStyle.Render("Run a query to see results"))
		}

	case console.ViewError:
		title = "Results · error"
		content.WriteString(errorStyle.Render(v.Message))

	case console.ViewEmpty:
		title = "Results · 0 rows"
		content.WriteString(dimItemStyle.Render(v.Message))

	case console.ViewTable:
		title = fmt.Sprintf("Results · %s rows", humanize.Comma(int64(len(v.Rows))))

		// Column scroll indicator (header)
		totalCols := len(v.Headers)
		endCol := a.colOffset + a.visibleCols
		if a.colOffset > 0 || endCol < totalCols {
			leftArrow := ""
			rightArrow := ""
			if a.colOffset > 0 {
				leftArrow = fmt.Sprintf("← %d ", a.colOffset)
			}
			if endCol < totalCols {
				rightArrow = fmt.Sprintf(" %d →", totalCols-endCol)
			}
			content.WriteString(dimItemStyle.Render(fmt.Sprintf("%scols %d-%d/%d%s", leftArrow, a.colOffset+1, endCol, totalCols, rightArrow)))
			content.WriteString("\n")
		}

		if n := len(v.Mismatched); n > 0 {
			content.WriteString(warningStyle.Render(fmt.Sprintf("%d rows have columns that differ from the header", n)))
			content.WriteString("\n")
		}

		content.WriteString(a.resultTable.View())
	}

	return a.renderPaneWithTitle(content.String(), width, height, title, focused)
}

// buildBorderTitle builds a top border line with an embedded title
// width is the total width including border characters
func (a *App) buildBorderTitle(width int, title string, focused bool) string {
	border := lipgloss.RoundedBorder()
	borderColor := mutedColor
	style := borderTitleStyle
	if focused {
		borderColor = primaryColor
		style = focusedBorderTitleStyle
	}

	borderStyle := lipgloss.NewStyle().Foreground(borderColor)

	// Format: ╭─ Title ───────╮
	titleRendered := style.Render(title)
	remainingWidth := width - 5 - lipgloss.Width(titleRendered)
	if remainingWidth < 0 {
		remainingWidth = 0
	}

	var b strings.Builder
	b.WriteString(borderStyle.Render(border.TopLeft))
	b.WriteString(borderStyle.Render(border.Top))
	b.WriteString(" ")
	b.WriteString(titleRendered)
	b.WriteString(" ")
	b.WriteString(borderStyle.Render(strings.Repeat(border.Top, remainingWidth)))
	b.WriteString(borderStyle.Render(border.TopRight))

	return b.String()
}

// renderPaneWithTitle renders content in a pane with a title in the top border
func (a *App) renderPaneWithTitle(content string, width, height int, title string, focused bool) string {
	border := lipgloss.RoundedBorder()
	borderColor := mutedColor
	if focused {
		borderColor = primaryColor
	}
	borderStyle := lipgloss.NewStyle().Foreground(borderColor)

	// Inner dimensions (excluding borders)
	innerWidth := width - 2
	innerHeight := height - 2
	if innerWidth < 1 {
		innerWidth = 1
	}
	if innerHeight < 1 {
		innerHeight = 1
	}

	// Pad or truncate to innerHeight lines
	contentLines := strings.Split(content, "\n")
	for len(contentLines) < innerHeight {
		contentLines = append(contentLines, "")
	}
	if len(contentLines) > innerHeight {
		contentLines = contentLines[:innerHeight]
	}

	lineStyle := lipgloss.NewStyle().MaxWidth(innerWidth)

	var result strings.Builder

	result.WriteString(a.buildBorderTitle(width, title, focused))
	result.WriteString("\n")

	for _, line := range contentLines {
		result.WriteString(borderStyle.Render(border.Left))
		paddedLine := lineStyle.Render(" " + line) // left padding
		if lineWidth := lipgloss.Width(paddedLine); lineWidth < innerWidth {
			paddedLine += strings.Repeat(" ", innerWidth-lineWidth)
		}
		result.WriteString(paddedLine)
		result.WriteString(borderStyle.Render(border.Right))
		result.WriteString("\n")
	}

	result.WriteString(borderStyle.Render(border.BottomLeft))
	result.WriteString(borderStyle.Render(strings.Repeat(border.Bottom, innerWidth)))
	result.WriteString(borderStyle.Render(border.BottomRight))

	return result.String()
}

func (a *App) renderStatusBar() string {
	leftParts := []string{titleStyle.Render(a.title)}
	if a.source != "" {
		leftParts = append(leftParts, dimItemStyle.Render(a.source))
	}

	var rightParts []string
	if a.status != "" {
		if a.statusErr {
			rightParts = append(rightParts, errorStyle.Render(a.status))
		} else {
			rightParts = append(rightParts, successStyle.Render(a.status))
		}
	}
	rightParts = append(rightParts, dimItemStyle.Render("| F1:help ^C:quit"))

	leftContent := strings.Join(leftParts, " ")
	rightContent := strings.Join(rightParts, " ")

	// Calculate padding between left and right
	padding := a.width - lipgloss.Width(leftContent) - lipgloss.Width(rightContent) - 2 // -2 for statusBar padding
	if padding < 1 {
		padding = 1
	}

	content := leftContent + strings.Repeat(" ", padding) + rightContent
	return statusBarStyle.Width(a.width).MaxWidth(a.width).Render(content)
}

func (a *App) renderHelp() string {
	var b strings.Builder

	for _, group := range a.keys.FullHelp() {
		for _, binding := range group {
			h := binding.Help()
			b.WriteString(helpKeyStyle.Render(fmt.Sprintf("%-12s", h.Key)))
			b.WriteString(helpDescStyle.Render(h.Desc))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	for i, ex := range a.examples {
		if i >= maxExamples {
			break
		}
		b.WriteString(helpKeyStyle.Render(fmt.Sprintf("%-12s", fmt.Sprintf("alt+%d", i+1))))
		b.WriteString(helpDescStyle.Render(ex.Name))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(dimItemStyle.Render("Press F1 or Esc to close"))

	modal := modalStyle.Render(titleStyle.Render("Help") + "\n\n" + b.String())
	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, modal)
}

// cellText flattens a display value onto one line.
func cellText(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", " "), "\n", " ")
}

func truncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes))+1 > maxLen {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}

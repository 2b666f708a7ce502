package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/doridoridoriand/hdrconf/internal/config"
	"github.com/doridoridoriand/hdrconf/internal/report"
	"github.com/gdamore/tcell/v2"
)

const (
	headerLines = 2
	minWidth    = 20
	minHeight   = 4
)

// WriteFunc saves the configuration and returns the paths written.
type WriteFunc func() ([]string, error)

type action int

const (
	actionNone action = iota
	actionUp
	actionDown
	actionPageUp
	actionPageDown
	actionHome
	actionEnd
	actionToggle
	actionWrite
	actionQuit
)

// row is either a section header or a setting.
type row struct {
	header string
	entry  report.Entry
}

func (r row) selectable() bool {
	return r.header == ""
}

// UI is an interactive browser that toggles settings.
type UI struct {
	cfg    *config.Config
	write  WriteFunc
	title  string
	rows   []row
	cursor int
	offset int
	status string
}

// New returns a browser over cfg. write is called on the write key.
func New(cfg *config.Config, write WriteFunc) *UI {
	u := &UI{cfg: cfg, write: write, title: cfg.Filename("")}
	u.refresh()
	u.cursor = u.nextSelectable(-1, 1)
	return u
}

// Run blocks until the user quits or ctx is cancelled. Quitting returns nil.
func (u *UI) Run(ctx context.Context, screen tcell.Screen) error {
	if err := screen.Init(); err != nil {
		return err
	}
	screen.HideCursor()
	defer screen.Fini()

	eventCh := make(chan tcell.Event, 1)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case eventCh <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	u.render(screen)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-eventCh:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				_, height := screen.Size()
				if u.handle(actionFor(ev), height-headerLines) {
					return nil
				}
			case *tcell.EventResize:
				screen.Sync()
			}
			u.render(screen)
		}
	}
}

func actionFor(ev *tcell.EventKey) action {
	switch ev.Key() {
	case tcell.KeyCtrlC, tcell.KeyEscape:
		return actionQuit
	case tcell.KeyUp:
		return actionUp
	case tcell.KeyDown:
		return actionDown
	case tcell.KeyPgUp:
		return actionPageUp
	case tcell.KeyPgDn:
		return actionPageDown
	case tcell.KeyHome:
		return actionHome
	case tcell.KeyEnd:
		return actionEnd
	case tcell.KeyEnter:
		return actionToggle
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			return actionQuit
		case 'k':
			return actionUp
		case 'j':
			return actionDown
		case ' ':
			return actionToggle
		case 'w':
			return actionWrite
		}
	}
	return actionNone
}

// handle applies one action and reports whether the browser should exit.
func (u *UI) handle(a action, pageSize int) bool {
	if pageSize < 1 {
		pageSize = 1
	}
	switch a {
	case actionQuit:
		return true
	case actionUp:
		u.move(-1, 1)
	case actionDown:
		u.move(1, 1)
	case actionPageUp:
		u.move(-1, pageSize)
	case actionPageDown:
		u.move(1, pageSize)
	case actionHome:
		u.cursor = u.nextSelectable(-1, 1)
	case actionEnd:
		u.cursor = u.nextSelectable(len(u.rows), -1)
	case actionToggle:
		u.toggle()
	case actionWrite:
		u.save()
	}
	return false
}

func (u *UI) move(dir, steps int) {
	for i := 0; i < steps; i++ {
		next := u.nextSelectable(u.cursor, dir)
		if next < 0 {
			return
		}
		u.cursor = next
	}
}

// nextSelectable returns the first setting row after from in direction dir,
// or -1.
func (u *UI) nextSelectable(from, dir int) int {
	for i := from + dir; i >= 0 && i < len(u.rows); i += dir {
		if u.rows[i].selectable() {
			return i
		}
	}
	return -1
}

func (u *UI) selected() (report.Entry, bool) {
	if u.cursor < 0 || u.cursor >= len(u.rows) || !u.rows[u.cursor].selectable() {
		return report.Entry{}, false
	}
	return u.rows[u.cursor].entry, true
}

func (u *UI) toggle() {
	entry, ok := u.selected()
	if !ok {
		return
	}
	if u.cfg.Contains(entry.Name) {
		u.cfg.Unset(entry.Name)
		u.status = "unset " + entry.Name
	} else {
		if err := u.cfg.Set(entry.Name); err != nil {
			u.status = err.Error()
			return
		}
		u.status = "set " + entry.Name
	}
	u.refresh()
}

func (u *UI) save() {
	if u.write == nil {
		return
	}
	written, err := u.write()
	switch {
	case err != nil:
		u.status = "write failed: " + err.Error()
	case len(written) == 0:
		u.status = "no changes to write"
	default:
		u.status = "wrote " + strings.Join(written, ", ")
	}
}

func (u *UI) refresh() {
	groups := report.GroupBySection(report.Snapshot(u.cfg))
	rows := make([]row, 0, len(u.rows))
	for _, group := range groups {
		rows = append(rows, row{header: group.Name})
		for _, entry := range group.Entries {
			rows = append(rows, row{entry: entry})
		}
	}
	u.rows = rows
}

func (u *UI) render(screen tcell.Screen) {
	screen.Clear()
	width, height := screen.Size()
	if width < minWidth || height < minHeight {
		screen.Show()
		return
	}

	header := fmt.Sprintf(" hdrconf  %s  (space toggle, w write, q quit)", u.title)
	drawText(screen, 0, 0, width, header, tcell.StyleDefault.Bold(true))
	summary := report.Summarize(report.Snapshot(u.cfg))
	status := fmt.Sprintf(" %d settings, %d active", summary.Total, summary.Active)
	if u.status != "" {
		status += "  " + u.status
	}
	drawText(screen, 0, 1, width, status, tcell.StyleDefault.Foreground(tcell.ColorGray))

	visible := height - headerLines
	u.scrollTo(visible)
	for i := 0; i < visible && u.offset+i < len(u.rows); i++ {
		index := u.offset + i
		r := u.rows[index]
		y := headerLines + i
		if !r.selectable() {
			drawText(screen, 0, y, width, "## "+r.header, tcell.StyleDefault.Bold(true))
			continue
		}
		style := entryStyle(r.entry.Active)
		if index == u.cursor {
			style = style.Reverse(true)
		}
		drawText(screen, 0, y, width, "  "+report.FormatEntry(r.entry), style)
	}

	screen.Show()
}

// scrollTo keeps the cursor inside a window of visible rows.
func (u *UI) scrollTo(visible int) {
	if visible < 1 || u.cursor < 0 {
		return
	}
	if u.cursor < u.offset {
		u.offset = u.cursor
		// keep the section header of the first setting in view
		if u.offset > 0 && !u.rows[u.offset-1].selectable() {
			u.offset--
		}
	}
	if u.cursor >= u.offset+visible {
		u.offset = u.cursor - visible + 1
	}
}

func entryStyle(active bool) tcell.Style {
	if active {
		return tcell.StyleDefault.Foreground(tcell.ColorGreen)
	}
	return tcell.StyleDefault.Foreground(tcell.ColorGray)
}

func drawText(screen tcell.Screen, x, y, width int, text string, style tcell.Style) {
	if width <= 0 {
		return
	}
	col := x
	for _, r := range padOrTrim(text, width) {
		screen.SetContent(col, y, r, nil, style)
		col++
	}
}

func padOrTrim(value string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(value)
	if len(runes) > width {
		return string(runes[:width])
	}
	if len(runes) < width {
		return value + strings.Repeat(" ", width-len(runes))
	}
	return value
}

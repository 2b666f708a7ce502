package ui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/doridoridoriand/hdrconf/internal/config"
	"github.com/gdamore/tcell/v2"
	"github.com/spf13/afero"
)

const header = `/**
 * \name SECTION: System support
 */
#define MBEDTLS_HAVE_ASM
//#define MBEDTLS_NO_UDBL_DIVISION
/**
 * \name SECTION: Group X
 */
#define MBEDTLS_SSL_MAX_CONTENT_LEN 16384
`

func newTestUI(t *testing.T) (*UI, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/config.h", []byte(header), 0o644); err != nil {
		t.Fatalf("write header: %v", err)
	}
	cf, err := config.NewConfigFile(fs, "Mbed TLS", nil, "/config.h")
	if err != nil {
		t.Fatalf("NewConfigFile error: %v", err)
	}
	cfg, err := config.Load([]*config.ConfigFile{cf})
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	return New(cfg, func() ([]string, error) { return cfg.Write("") }), fs
}

func screenLine(screen tcell.Screen, y int) string {
	width, _ := screen.Size()
	var b strings.Builder
	for x := 0; x < width; x++ {
		r, _, _, _ := screen.GetContent(x, y)
		b.WriteRune(r)
	}
	return strings.TrimRight(b.String(), " ")
}

func newScreen(t *testing.T, width, height int) tcell.SimulationScreen {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("screen init: %v", err)
	}
	screen.SetSize(width, height)
	t.Cleanup(screen.Fini)
	return screen
}

func TestRowsGroupedBySection(t *testing.T) {
	u, _ := newTestUI(t)

	var got []string
	for _, r := range u.rows {
		if r.selectable() {
			got = append(got, r.entry.Name)
		} else {
			got = append(got, "## "+r.header)
		}
	}
	want := []string{
		"## System support", "MBEDTLS_HAVE_ASM", "MBEDTLS_NO_UDBL_DIVISION",
		"## Group X", "MBEDTLS_SSL_MAX_CONTENT_LEN",
	}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if u.cursor != 1 {
		t.Fatalf("expected cursor on first setting, got %d", u.cursor)
	}
}

func TestMovementSkipsHeaders(t *testing.T) {
	u, _ := newTestUI(t)

	u.handle(actionDown, 10)
	u.handle(actionDown, 10)
	if entry, _ := u.selected(); entry.Name != "MBEDTLS_SSL_MAX_CONTENT_LEN" {
		t.Fatalf("expected last setting, got %q", entry.Name)
	}
	u.handle(actionDown, 10)
	if entry, _ := u.selected(); entry.Name != "MBEDTLS_SSL_MAX_CONTENT_LEN" {
		t.Fatalf("cursor must stop at the last setting, got %q", entry.Name)
	}
	u.handle(actionHome, 10)
	if entry, _ := u.selected(); entry.Name != "MBEDTLS_HAVE_ASM" {
		t.Fatalf("expected first setting, got %q", entry.Name)
	}
	u.handle(actionPageDown, 10)
	if entry, _ := u.selected(); entry.Name != "MBEDTLS_SSL_MAX_CONTENT_LEN" {
		t.Fatalf("expected page down to reach the end, got %q", entry.Name)
	}
	u.handle(actionUp, 10)
	if entry, _ := u.selected(); entry.Name != "MBEDTLS_NO_UDBL_DIVISION" {
		t.Fatalf("expected previous setting, got %q", entry.Name)
	}
}

func TestToggleAndWrite(t *testing.T) {
	u, fs := newTestUI(t)

	u.handle(actionDown, 10)
	u.handle(actionToggle, 10)
	if !u.cfg.Contains("MBEDTLS_NO_UDBL_DIVISION") {
		t.Fatalf("expected toggle to activate the setting")
	}
	if u.status != "set MBEDTLS_NO_UDBL_DIVISION" {
		t.Fatalf("unexpected status %q", u.status)
	}
	if entry, _ := u.selected(); !entry.Active {
		t.Fatalf("expected rows refreshed after toggle")
	}

	u.handle(actionWrite, 10)
	if u.status != "wrote /config.h" {
		t.Fatalf("unexpected status %q", u.status)
	}
	data, err := afero.ReadFile(fs, "/config.h")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "\n#define MBEDTLS_NO_UDBL_DIVISION\n") {
		t.Fatalf("expected activated line in file, got:\n%s", data)
	}

	u.handle(actionToggle, 10)
	if u.cfg.Contains("MBEDTLS_NO_UDBL_DIVISION") || u.status != "unset MBEDTLS_NO_UDBL_DIVISION" {
		t.Fatalf("expected second toggle to deactivate, status %q", u.status)
	}
}

func TestWriteWithoutChanges(t *testing.T) {
	u, _ := newTestUI(t)
	u.handle(actionWrite, 10)
	if u.status != "no changes to write" {
		t.Fatalf("unexpected status %q", u.status)
	}
}

func TestWriteFailureShownInStatus(t *testing.T) {
	u, _ := newTestUI(t)
	u.write = func() ([]string, error) { return nil, errors.New("disk full") }
	u.handle(actionWrite, 10)
	if u.status != "write failed: disk full" {
		t.Fatalf("unexpected status %q", u.status)
	}
}

func TestQuit(t *testing.T) {
	u, _ := newTestUI(t)
	if !u.handle(actionQuit, 10) {
		t.Fatalf("expected quit")
	}
	if u.handle(actionNone, 10) {
		t.Fatalf("unexpected quit")
	}
}

func TestRender(t *testing.T) {
	u, _ := newTestUI(t)
	screen := newScreen(t, 60, 10)

	u.render(screen)

	if line := screenLine(screen, 0); !strings.Contains(line, "hdrconf") || !strings.Contains(line, "/config.h") {
		t.Fatalf("unexpected header %q", line)
	}
	if line := screenLine(screen, 1); line != " 3 settings, 2 active" {
		t.Fatalf("unexpected status line %q", line)
	}
	want := []string{
		"## System support",
		"  [x] MBEDTLS_HAVE_ASM",
		"  [ ] MBEDTLS_NO_UDBL_DIVISION",
		"## Group X",
		"  [x] MBEDTLS_SSL_MAX_CONTENT_LEN 16384",
	}
	for i, w := range want {
		if got := screenLine(screen, headerLines+i); got != w {
			t.Fatalf("line %d: expected %q, got %q", headerLines+i, w, got)
		}
	}
	_, _, style, _ := screen.GetContent(2, headerLines+1)
	_, _, attrs := style.Decompose()
	if attrs&tcell.AttrReverse == 0 {
		t.Fatalf("expected cursor row highlighted")
	}
}

func TestRenderScrollsToCursor(t *testing.T) {
	u, _ := newTestUI(t)
	screen := newScreen(t, 60, 4)

	u.handle(actionEnd, 2)
	u.render(screen)
	if got := screenLine(screen, 3); got != "  [x] MBEDTLS_SSL_MAX_CONTENT_LEN 16384" {
		t.Fatalf("expected cursor row visible at bottom, got %q", got)
	}

	u.handle(actionHome, 2)
	u.render(screen)
	if got := screenLine(screen, 2); got != "## System support" {
		t.Fatalf("expected section header above first setting, got %q", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	u, _ := newTestUI(t)
	screen := tcell.NewSimulationScreen("UTF-8")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- u.Run(ctx, screen)
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}

func TestPadOrTrim(t *testing.T) {
	if got := padOrTrim("abc", 5); got != "abc  " {
		t.Fatalf("expected padding, got %q", got)
	}
	if got := padOrTrim("abcdef", 3); got != "abc" {
		t.Fatalf("expected trimming, got %q", got)
	}
	if got := padOrTrim("abc", 0); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}

// Package cli implements the hdrconf command line: global options, the
// command table and the mapping of errors to exit statuses.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/doridoridoriand/hdrconf/internal/batch"
	"github.com/doridoridoriand/hdrconf/internal/config"
	"github.com/doridoridoriand/hdrconf/internal/log"
	"github.com/doridoridoriand/hdrconf/internal/profile"
	"github.com/doridoridoriand/hdrconf/internal/report"
	"github.com/doridoridoriand/hdrconf/internal/script"
	"github.com/doridoridoriand/hdrconf/internal/ui"
	"github.com/gdamore/tcell/v2"
	"github.com/spf13/afero"
)

const version = "0.1.0"

var (
	// DefaultConfigPaths are tried in order when --file is not given.
	DefaultConfigPaths = []string{"include/mbedtls/mbedtls_config.h"}
	// DefaultCryptoPaths are tried in order when --cryptofile is not given.
	DefaultCryptoPaths = []string{
		"include/psa/crypto_config.h",
		"tf-psa-crypto/include/psa/crypto_config.h",
	}
)

// ExitError ends a command with a specific exit status. Message, when not
// empty, is printed to stderr.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Message
}

// App runs commands against a filesystem and a pair of output streams.
type App struct {
	Fs        afero.Fs
	Stdout    io.Writer
	Stderr    io.Writer
	NewScreen func() (tcell.Screen, error)
}

// Run executes args against the real filesystem and terminal and returns
// the process exit status.
func Run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &App{
		Fs:        afero.NewOsFs(),
		Stdout:    stdout,
		Stderr:    stderr,
		NewScreen: tcell.NewScreen,
	}
	return app.Run(ctx, args)
}

// Run executes args and returns the exit status: 0 on success, 1 when a
// symbol is not found or the command fails, 2 when the options cannot be
// parsed.
func (a *App) Run(ctx context.Context, args []string) int {
	err := a.run(ctx, args)
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Message != "" {
			fmt.Fprintln(a.Stderr, exitErr.Message)
		}
		return exitErr.Code
	}
	fmt.Fprintf(a.Stderr, "hdrconf: %v\n", err)
	return 1
}

type options struct {
	file        OptionalString
	cryptoFile  OptionalString
	write       OptionalString
	cryptoWrite OptionalString
	force       OptionalBool
	logLevel    OptionalLevel
	profiles    OptionalString
	version     bool
}

func (o *options) register(flags *flag.FlagSet) {
	flags.Var(&o.file, "file", "file to read and modify (default: "+DefaultConfigPaths[0]+")")
	flags.Var(&o.file, "f", "file to read and modify (shorthand for --file)")
	flags.Var(&o.cryptoFile, "cryptofile", "PSA crypto file to read and modify (default: first of "+strings.Join(DefaultCryptoPaths, ", ")+" that exists)")
	flags.Var(&o.cryptoFile, "c", "PSA crypto file (shorthand for --cryptofile)")
	flags.Var(&o.write, "write", "file to write to instead of the input file")
	flags.Var(&o.write, "w", "file to write to (shorthand for --write)")
	flags.Var(&o.cryptoWrite, "crypto-write", "file to write to instead of the PSA crypto file")
	flags.Var(&o.force, "force", "for set and apply, accept a symbol that has no #define")
	flags.Var(&o.force, "o", "accept unknown symbols (shorthand for --force)")
	flags.Var(&o.logLevel, "log-level", "log level: debug|info|warn|error (default: warn)")
	flags.Var(&o.profiles, "profiles", "HCL file defining the profiles used by adapt")
	flags.BoolVar(&o.version, "version", false, "show version")
	flags.BoolVar(&o.version, "v", false, "show version")
}

type command struct {
	name    string
	args    string
	help    string
	minArgs int
	maxArgs int // -1 for no limit
	mutates bool
	run     func(s *session, args []string) error
}

var commands = []command{
	{name: "get", args: "SYMBOL", help: "print the value of SYMBOL; exit 1 if it is not active", minArgs: 1, maxArgs: 1, run: (*session).get},
	{name: "set", args: "SYMBOL [VALUE]", help: "activate SYMBOL, optionally changing its value", minArgs: 1, maxArgs: 2, mutates: true, run: (*session).set},
	{name: "set-all", args: "[REGEX...]", help: "activate every symbol whose name matches a REGEX", maxArgs: -1, mutates: true, run: (*session).setAll},
	{name: "unset", args: "SYMBOL", help: "comment out SYMBOL", minArgs: 1, maxArgs: 1, mutates: true, run: (*session).unset},
	{name: "unset-all", args: "[REGEX...]", help: "comment out every symbol whose name matches a REGEX", maxArgs: -1, mutates: true, run: (*session).unsetAll},
	{name: "full", help: "activate every symbol", mutates: true, run: (*session).full},
	{name: "adapt", args: "PROFILE", help: "apply a profile from the --profiles file", minArgs: 1, maxArgs: 1, mutates: true, run: (*session).adapt},
	{name: "adapt-lua", args: "SCRIPT", help: "apply the adapt function of a Lua script", minArgs: 1, maxArgs: 1, mutates: true, run: (*session).adaptLua},
	{name: "apply", args: "FILE", help: "apply a YAML batch of edits", minArgs: 1, maxArgs: 1, mutates: true, run: (*session).apply},
	{name: "list", args: "[--json] [REGEX...]", help: "list symbols grouped by section", maxArgs: -1, run: (*session).list},
	{name: "browse", help: "browse and toggle symbols interactively", run: (*session).browse},
}

func lookupCommand(name string) (command, bool) {
	for _, cmd := range commands {
		if cmd.name == name {
			return cmd, true
		}
	}
	return command{}, false
}

func (c command) usage() string {
	if c.args == "" {
		return "usage: hdrconf [options] " + c.name
	}
	return "usage: hdrconf [options] " + c.name + " " + c.args
}

func printUsage(w io.Writer, flags *flag.FlagSet) {
	fmt.Fprintln(w, "usage: hdrconf [options] COMMAND [ARGS]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-32s %s\n", strings.TrimSpace(cmd.name+" "+cmd.args), cmd.help)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	flags.PrintDefaults()
}

// session is one command invocation over a loaded configuration.
type session struct {
	ctx    context.Context
	app    *App
	opts   *options
	logger *log.Logger
	cfg    *config.Config
}

func (a *App) run(ctx context.Context, args []string) error {
	var opts options
	flags := flag.NewFlagSet("hdrconf", flag.ContinueOnError)
	flags.SetOutput(a.Stderr)
	opts.register(flags)
	flags.Usage = func() { printUsage(a.Stderr, flags) }

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return &ExitError{Code: 2}
	}

	if opts.version {
		fmt.Fprintf(a.Stdout, "hdrconf version %s\n", version)
		return nil
	}

	rest := flags.Args()
	if len(rest) == 0 {
		flags.Usage()
		return &ExitError{Code: 1}
	}
	cmd, ok := lookupCommand(rest[0])
	if !ok {
		return &ExitError{Code: 1, Message: fmt.Sprintf("unknown command %q; run hdrconf -h for a list", rest[0])}
	}
	cmdArgs := rest[1:]
	if len(cmdArgs) < cmd.minArgs || (cmd.maxArgs >= 0 && len(cmdArgs) > cmd.maxArgs) {
		return &ExitError{Code: 1, Message: cmd.usage()}
	}

	logger := log.NewLogger(log.LevelWarn)
	logger.SetOutput(a.Stderr)
	if level, ok := opts.logLevel.Value(); ok {
		logger.SetLevel(level)
	}

	s := &session{ctx: ctx, app: a, opts: &opts, logger: logger}
	cfg, err := s.load()
	if err != nil {
		return err
	}
	s.cfg = cfg

	logger.LogCommand(cmd.name, cmdArgs)
	if err := cmd.run(s, cmdArgs); err != nil {
		return err
	}
	if !cmd.mutates {
		return nil
	}
	_, err = s.write()
	return err
}

// load reads the primary configuration file and, when one is given or found
// among the default candidates, the PSA crypto file. Unknown PSA_ symbols
// are routed to the crypto file.
func (s *session) load() (*config.Config, error) {
	path, _ := s.opts.file.Value()
	primary, err := config.NewConfigFile(s.app.Fs, "Mbed TLS", DefaultConfigPaths, path)
	if err != nil {
		s.logger.LogConfigLoad(false, path, 0, err)
		return nil, err
	}
	files := []*config.ConfigFile{primary}

	cryptoPath, explicit := s.opts.cryptoFile.Value()
	crypto, err := config.NewConfigFile(s.app.Fs, "PSA crypto", DefaultCryptoPaths, cryptoPath)
	switch {
	case err == nil:
		files = append(files, crypto)
	case explicit:
		s.logger.LogConfigLoad(false, cryptoPath, 0, err)
		return nil, err
	default:
		s.logger.Debug("no PSA crypto configuration file", map[string]interface{}{
			"candidates": DefaultCryptoPaths,
		})
	}

	cfg := config.New(config.WithSelector(config.PrefixSelector{
		Routes: []config.Route{{Prefix: "PSA_", File: 1}},
	}))
	for i, cf := range files {
		if err := cfg.AddFile(cf); err != nil {
			s.logger.LogConfigLoad(false, cf.Path(), 0, err)
			return nil, err
		}
		s.logger.LogConfigLoad(true, cf.Path(), countOwned(cfg, i), nil)
	}
	return cfg, nil
}

func countOwned(cfg *config.Config, file int) int {
	count := 0
	for _, setting := range cfg.Settings() {
		if setting.File == file {
			count++
		}
	}
	return count
}

// write saves every modified file to its output path and returns the paths
// written.
func (s *session) write() ([]string, error) {
	files := s.cfg.Files()
	primary, _ := s.opts.write.Value()
	crypto, _ := s.opts.cryptoWrite.Value()
	targets := []string{primary, crypto}[:len(files)]

	written, err := s.cfg.WriteFiles(targets)
	if err != nil {
		s.logger.LogError("write", err, nil)
		return written, err
	}
	for i, cf := range files {
		target := targets[i]
		if target == "" {
			target = cf.Path()
		}
		s.logger.LogWrite(target, slices.Contains(written, target), nil)
	}
	return written, nil
}

func (s *session) get(args []string) error {
	value, err := s.cfg.Get(args[0])
	if err != nil {
		return &ExitError{Code: 1}
	}
	if value != "" {
		fmt.Fprintln(s.app.Stdout, value)
	}
	return nil
}

func (s *session) set(args []string) error {
	name := args[0]
	if !s.cfg.Known(name) {
		if force, _ := s.opts.force.Value(); !force {
			return &ExitError{
				Code:    1,
				Message: fmt.Sprintf("A #define for the symbol %s was not found in %s", name, s.cfg.Filename(name)),
			}
		}
		s.logger.Warn("symbol has no #define line and will not be written", map[string]interface{}{
			"symbol": name,
			"path":   s.cfg.Filename(name),
		})
	}
	if len(args) == 2 {
		return s.cfg.SetWithValue(name, args[1])
	}
	return s.cfg.Set(name)
}

func (s *session) setAll(args []string) error {
	return s.cfg.ChangeMatching(args, true)
}

func (s *session) unset(args []string) error {
	s.cfg.Unset(args[0])
	return nil
}

func (s *session) unsetAll(args []string) error {
	return s.cfg.ChangeMatching(args, false)
}

func (s *session) full(_ []string) error {
	s.cfg.Adapt(func(string, bool, string) bool {
		return true
	})
	return nil
}

func (s *session) adapt(args []string) error {
	path, _ := s.opts.profiles.Value()
	if path == "" {
		return &ExitError{Code: 1, Message: "adapt requires --profiles FILE"}
	}
	set, err := profile.Load(s.app.Fs, path)
	if err != nil {
		return err
	}
	p, ok := set.Lookup(args[0])
	if !ok {
		return &ExitError{
			Code:    1,
			Message: fmt.Sprintf("profile %q not found in %s (available: %s)", args[0], path, strings.Join(set.Names(), ", ")),
		}
	}
	return p.Apply(s.cfg)
}

func (s *session) adaptLua(args []string) error {
	sc, err := script.Load(s.app.Fs, args[0])
	if err != nil {
		return err
	}
	defer sc.Close()
	return sc.Apply(s.cfg)
}

func (s *session) apply(args []string) error {
	doc, err := batch.Load(s.app.Fs, args[0])
	if err != nil {
		return err
	}
	force, _ := s.opts.force.Value()
	return doc.Apply(s.cfg, force)
}

func (s *session) list(args []string) error {
	flags := flag.NewFlagSet("list", flag.ContinueOnError)
	flags.SetOutput(s.app.Stderr)
	var asJSON OptionalBool
	flags.Var(&asJSON, "json", "print a JSON array instead of text")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return &ExitError{Code: 2}
	}

	entries, err := report.Filter(report.Snapshot(s.cfg), flags.Args())
	if err != nil {
		return err
	}
	if v, _ := asJSON.Value(); v {
		return report.WriteJSON(s.app.Stdout, entries)
	}
	return report.WriteText(s.app.Stdout, entries)
}

func (s *session) browse(_ []string) error {
	if s.app.NewScreen == nil {
		return errors.New("no terminal available")
	}
	screen, err := s.app.NewScreen()
	if err != nil {
		return fmt.Errorf("open terminal: %w", err)
	}
	err = ui.New(s.cfg, s.write).Run(s.ctx, screen)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Package shell provides the interactive command-line interface of
// observe-shell.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/chzyer/readline"

	"github.com/gyptix/observable-go/pkg/bridge"
	"github.com/gyptix/observable-go/pkg/consolelog"
	"github.com/gyptix/observable-go/pkg/mutation"
	"github.com/gyptix/observable-go/pkg/observable"
)

// ViewKey is the document key the bridge view element is stored under.
const ViewKey = "view"

// Config configures a Shell.
type Config struct {
	// Observation is the observed document. Required.
	Observation *observable.Observation

	// Console receives subscriber output. Nil creates a default log.
	Console *consolelog.Log

	// Bridge enables the WebSocket view bridge.
	Bridge bool

	// Logger receives shell and bridge diagnostics. Nil discards them.
	Logger *slog.Logger

	// Out receives command output until Run replaces it with the
	// readline writer. Nil discards it.
	Out io.Writer
}

// Shell runs commands against an observed document.
type Shell struct {
	obs     *observable.Observation
	console *consolelog.Log
	logger  *slog.Logger
	bridge  *bridge.Server

	// docMu serializes document access between commands and the bridge.
	docMu sync.Mutex
	subs  map[string]*observable.Subscriber

	outMu sync.Mutex
	out   io.Writer
}

// view is the element the bridge feeds. Reading it under deep observation
// binds the bridge to the document's subscribers.
type view struct {
	src mutation.Source
}

func (v *view) MutationSource() mutation.Source { return v.src }

func (v *view) String() string { return "<view>" }

// New creates a shell. With Config.Bridge set it stores a view element
// under ViewKey and turns on deep observation so the element gets bound.
func New(config Config) (*Shell, error) {
	if config.Observation == nil {
		return nil, errors.New("shell: observation required")
	}
	if config.Console == nil {
		config.Console = consolelog.New(consolelog.Config{})
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	if config.Out == nil {
		config.Out = io.Discard
	}

	s := &Shell{
		obs:     config.Observation,
		console: config.Console,
		logger:  config.Logger,
		subs:    make(map[string]*observable.Subscriber),
		out:     config.Out,
	}

	if config.Bridge {
		if err := s.attachBridge(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Shell) attachBridge() error {
	if _, ok := s.obs.Raw().(*observable.Object); !ok {
		return errors.New("shell: the bridge needs an object document")
	}
	s.bridge = bridge.NewServer(bridge.ServerConfig{
		Logger:  s.logger,
		Resolve: s.resolveNode,
	})
	if !s.obs.Settings().Deep {
		s.logger.Info("enabling deep observation for the view bridge")
		s.obs.Deep(true)
	}
	if err := s.obs.Set(ViewKey, &view{src: s.bridge}); err != nil {
		return fmt.Errorf("shell: store view: %w", err)
	}
	s.obs.Get(ViewKey)
	return nil
}

// Handler returns the bridge WebSocket handler, or nil without a bridge.
func (s *Shell) Handler() http.Handler {
	if s.bridge == nil {
		return nil
	}
	return s.bridge
}

// Close shuts down the bridge and cancels element bindings.
func (s *Shell) Close() error {
	var err error
	if s.bridge != nil {
		err = s.bridge.Close()
	}
	s.obs.Close()
	return err
}

// resolveNode maps a bridge node ID, a document path, to the raw target
// at that path. Unknown paths resolve to the ID itself.
func (s *Shell) resolveNode(id string) any {
	s.docMu.Lock()
	defer s.docMu.Unlock()

	p, err := s.target(id)
	if err != nil {
		return id
	}
	return p.Raw()
}

// Run starts the interactive command loop.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "observe> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	s.outMu.Lock()
	s.out = rl.Stdout()
	s.outMu.Unlock()

	s.Exec("help")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := rl.Readline()
		if err != nil {
			// EOF or interrupt
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			s.printf("Exiting...\n")
			cancel()
			return nil
		}

		if quit := s.Exec(line); quit {
			cancel()
			return nil
		}
	}
}

func (s *Shell) printf(format string, args ...any) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

// Exec runs one command line and reports whether the shell should exit.
func (s *Shell) Exec(line string) (quit bool) {
	input := strings.TrimSpace(line)
	if input == "" {
		return false
	}

	cmd, rest, _ := strings.Cut(input, " ")
	cmd = strings.ToLower(cmd)
	rest = strings.TrimSpace(rest)
	args := strings.Fields(rest)

	s.docMu.Lock()
	defer s.docMu.Unlock()

	switch cmd {
	case "help", "?":
		s.printHelp()

	case "show", "s":
		s.cmdShow(args)

	case "get", "g":
		s.cmdGet(args)

	case "set":
		s.cmdSet(rest)

	case "del", "delete":
		s.cmdDelete(args)

	case "push":
		s.cmdPush(rest)

	case "unshift":
		s.cmdUnshift(rest)

	case "pop":
		s.cmdPop(args)

	case "shift":
		s.cmdShift(args)

	case "splice":
		s.cmdSplice(rest)

	case "only", "watch":
		s.cmdOnly(args)

	case "deep":
		s.cmdToggle(args, "deep", s.obs.Deep)

	case "alter":
		s.cmdToggle(args, "alter", s.obs.Alter)

	case "isolate":
		s.cmdToggle(args, "isolate", s.obs.Isolate)

	case "settings":
		s.cmdSettings()

	case "sub":
		s.cmdSubscribe(args)

	case "unsub":
		s.cmdUnsubscribe(args)

	case "log":
		s.cmdLog(args)

	case "stats":
		s.cmdStats()

	case "quit", "exit", "q":
		s.printf("Exiting...\n")
		return true

	default:
		s.printf("Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (s *Shell) printHelp() {
	s.printf(`
Observe Shell Commands:
  Document:
    show [path]                 - Show the document (or the value at path)
    get <path>                  - Read a value
    set <path> <yaml>           - Write a value (YAML flow syntax)
    del <path>                  - Delete a key

  Sequences:
    push <path> <yaml>, ...     - Append values
    unshift <path> <yaml>, ...  - Prepend values
    pop <path>                  - Remove the last value
    shift <path>                - Remove the first value
    splice <path> <start> <n> [<yaml>, ...]
                                - Remove n values at start and insert values

  Observation:
    only <key>|-                - Watch a single top-level key (- clears)
    deep|alter|isolate on|off   - Toggle a setting
    settings                    - Show the current settings
    sub <name> [changing] [fail]
                                - Add a subscriber that prints notifications
    unsub <name>                - Remove a subscriber

  General:
    log [n]                     - Show the last n console lines
    stats                       - Show observation statistics
    help                        - Show this help
    quit                        - Exit

  Path Format:
    dot separated keys, sequence indexes as numbers: items.0.name
`)
}

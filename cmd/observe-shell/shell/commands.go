package shell

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gyptix/observable-go/pkg/observable"
)

// target returns the wrapper for the composite at path. An empty path or
// "." is the document root. Nested composites read while deep observation
// is off come back raw; they are wrapped in an observation of their own
// so writes to them stay unobserved.
func (s *Shell) target(path string) (*observable.Proxy, error) {
	p := s.obs.Proxy
	if path == "" || path == "." {
		return p, nil
	}
	for _, seg := range strings.Split(path, ".") {
		v, ok := p.Lookup(seg)
		if !ok {
			return nil, fmt.Errorf("%s: no value at %q", path, seg)
		}
		switch c := v.(type) {
		case *observable.Proxy:
			p = c
		case observable.Target:
			p = observable.Observe(c).Proxy
		default:
			return nil, fmt.Errorf("%s: %q is not an object or sequence", path, seg)
		}
	}
	return p, nil
}

// parent returns the wrapper holding the last key of path, and that key.
func (s *Shell) parent(path string) (*observable.Proxy, string, error) {
	if path == "" || path == "." {
		return nil, "", errors.New("path required")
	}
	dir, key := "", path
	if i := strings.LastIndex(path, "."); i >= 0 {
		dir, key = path[:i], path[i+1:]
	}
	p, err := s.target(dir)
	if err != nil {
		return nil, "", err
	}
	return p, key, nil
}

// parseValue decodes text as one YAML value. Empty text is undefined.
func parseValue(text string) (any, error) {
	var v any
	if err := yaml.Unmarshal([]byte(text), &v); err != nil {
		return nil, fmt.Errorf("invalid value %q: %w", text, err)
	}
	return observable.FromNative(v), nil
}

// parseValues decodes comma separated YAML values.
func parseValues(text string) ([]any, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	var vs []any
	if err := yaml.Unmarshal([]byte("["+text+"]"), &vs); err != nil {
		return nil, fmt.Errorf("invalid values %q: %w", text, err)
	}
	for i, v := range vs {
		vs[i] = observable.FromNative(v)
	}
	return vs, nil
}

func formatValue(v any) string {
	switch tv := v.(type) {
	case nil:
		return "undefined"
	case *observable.Proxy:
		return tv.String()
	case observable.Target:
		return tv.String()
	case string:
		return strconv.Quote(tv)
	default:
		return fmt.Sprint(tv)
	}
}

func formatValues(vs []any) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = formatValue(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (s *Shell) fail(err error) {
	s.printf("Error: %v\n", err)
}

func (s *Shell) cmdShow(args []string) {
	path := ""
	if len(args) > 0 {
		path = args[0]
	}
	p, err := s.target(path)
	if err != nil {
		s.fail(err)
		return
	}
	s.printf("%s\n", p.String())
}

func (s *Shell) cmdGet(args []string) {
	if len(args) < 1 {
		s.printf("Usage: get <path>\n")
		return
	}
	p, key, err := s.parent(args[0])
	if err != nil {
		s.fail(err)
		return
	}
	s.printf("%s = %s\n", args[0], formatValue(p.Get(key)))
}

func (s *Shell) cmdSet(rest string) {
	path, text, _ := strings.Cut(rest, " ")
	if path == "" {
		s.printf("Usage: set <path> <yaml>\n")
		return
	}
	v, err := parseValue(text)
	if err != nil {
		s.fail(err)
		return
	}
	p, key, err := s.parent(path)
	if err != nil {
		s.fail(err)
		return
	}
	if err := p.Set(key, v); err != nil {
		s.fail(err)
	}
}

func (s *Shell) cmdDelete(args []string) {
	if len(args) < 1 {
		s.printf("Usage: del <path>\n")
		return
	}
	p, key, err := s.parent(args[0])
	if err != nil {
		s.fail(err)
		return
	}
	if err := p.Delete(key); err != nil {
		s.fail(err)
	}
}

// sequenceArgs splits "<path> <values>" and decodes the values.
func (s *Shell) sequenceArgs(rest string) (*observable.Proxy, []any, error) {
	path, text, _ := strings.Cut(rest, " ")
	p, err := s.target(path)
	if err != nil {
		return nil, nil, err
	}
	vs, err := parseValues(text)
	if err != nil {
		return nil, nil, err
	}
	return p, vs, nil
}

func (s *Shell) cmdPush(rest string) {
	p, vs, err := s.sequenceArgs(rest)
	if err != nil {
		s.fail(err)
		return
	}
	n, err := p.Push(vs...)
	if err != nil {
		s.fail(err)
		return
	}
	s.printf("length %d\n", n)
}

func (s *Shell) cmdUnshift(rest string) {
	p, vs, err := s.sequenceArgs(rest)
	if err != nil {
		s.fail(err)
		return
	}
	n, err := p.Unshift(vs...)
	if err != nil {
		s.fail(err)
		return
	}
	s.printf("length %d\n", n)
}

func (s *Shell) cmdPop(args []string) {
	s.removeOne(args, (*observable.Proxy).Pop)
}

func (s *Shell) cmdShift(args []string) {
	s.removeOne(args, (*observable.Proxy).Shift)
}

func (s *Shell) removeOne(args []string, remove func(*observable.Proxy) (any, error)) {
	path := ""
	if len(args) > 0 {
		path = args[0]
	}
	p, err := s.target(path)
	if err != nil {
		s.fail(err)
		return
	}
	v, err := remove(p)
	if err != nil {
		s.fail(err)
		return
	}
	s.printf("removed %s\n", formatValue(v))
}

func (s *Shell) cmdSplice(rest string) {
	fields := strings.SplitN(rest, " ", 4)
	if len(fields) < 3 {
		s.printf("Usage: splice <path> <start> <n> [<yaml>, ...]\n")
		return
	}
	start, err := strconv.Atoi(fields[1])
	if err != nil {
		s.fail(fmt.Errorf("invalid start %q", fields[1]))
		return
	}
	count, err := strconv.Atoi(fields[2])
	if err != nil {
		s.fail(fmt.Errorf("invalid count %q", fields[2]))
		return
	}
	var vs []any
	if len(fields) == 4 {
		if vs, err = parseValues(fields[3]); err != nil {
			s.fail(err)
			return
		}
	}
	p, err := s.target(fields[0])
	if err != nil {
		s.fail(err)
		return
	}
	removed, err := p.Splice(start, count, vs...)
	if err != nil {
		s.fail(err)
		return
	}
	s.printf("removed %s\n", formatValues(removed))
}

func (s *Shell) cmdOnly(args []string) {
	if len(args) < 1 {
		s.printf("Usage: only <key>|-\n")
		return
	}
	if args[0] == "-" {
		s.obs.Only(nil)
		s.printf("watching all keys\n")
		return
	}
	s.obs.Only(args[0])
	s.printf("watching %s\n", args[0])
}

func (s *Shell) cmdToggle(args []string, name string, set func(bool) *observable.Observation) {
	if len(args) < 1 {
		s.printf("Usage: %s on|off\n", name)
		return
	}
	var on bool
	switch strings.ToLower(args[0]) {
	case "on", "true", "1":
		on = true
	case "off", "false", "0":
	default:
		s.printf("Usage: %s on|off\n", name)
		return
	}
	set(on)
	s.printf("%s %t\n", name, on)
}

func (s *Shell) cmdSettings() {
	st := s.obs.Settings()
	watch := "-"
	if st.HasWatch {
		watch = fmt.Sprint(st.Watch)
	}
	s.printf("watch:   %s\n", watch)
	s.printf("deep:    %t\n", st.Deep)
	s.printf("alter:   %t\n", st.Alter)
	s.printf("isolate: %t\n", st.Isolate)
}

func (s *Shell) cmdSubscribe(args []string) {
	if len(args) < 1 {
		s.printf("Usage: sub <name> [changing] [fail]\n")
		return
	}
	name := args[0]
	var changing, fail bool
	for _, opt := range args[1:] {
		switch opt {
		case "changing":
			changing = true
		case "fail":
			fail = true
		default:
			s.printf("Unknown option: %s\n", opt)
			return
		}
	}

	sub := &observable.Subscriber{
		Changed: s.notifier(name, observable.PhaseChanged, fail && !changing),
	}
	if changing {
		sub.Changing = s.notifier(name, observable.PhaseChanging, fail)
	}

	if old, ok := s.subs[name]; ok {
		s.obs.Off(old)
	}
	s.subs[name] = sub
	s.obs.On(sub)
	s.printf("subscribed %s\n", name)
}

// notifier returns a handler that reports each notification to the
// console and the shell output. With fail set it rejects every write.
func (s *Shell) notifier(name string, phase observable.Phase, fail bool) observable.Handler {
	return func(owner, key, old, new any) error {
		line := fmt.Sprintf("[%s] %s %v: %s -> %s", name, phase, key, formatValue(old), formatValue(new))
		if err := s.console.Append(line); err != nil {
			s.logger.Warn("console append failed", "error", err)
		}
		s.printf("%s\n", line)
		if fail {
			return fmt.Errorf("%s rejected %v", name, key)
		}
		return nil
	}
}

func (s *Shell) cmdUnsubscribe(args []string) {
	if len(args) < 1 {
		s.printf("Usage: unsub <name>\n")
		return
	}
	sub, ok := s.subs[args[0]]
	if !ok {
		s.printf("No subscriber named %s\n", args[0])
		return
	}
	delete(s.subs, args[0])
	s.obs.Off(sub)
	s.printf("unsubscribed %s\n", args[0])
}

func (s *Shell) cmdLog(args []string) {
	lines := s.console.Lines()
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			s.printf("Usage: log [n]\n")
			return
		}
		if n < len(lines) {
			lines = lines[len(lines)-n:]
		}
	}
	for _, line := range lines {
		s.printf("%s\n", line)
	}
}

func (s *Shell) cmdStats() {
	s.printf("observation:     %s\n", s.obs.ID())
	s.printf("subscribers:     %d\n", s.obs.Subscribers())
	s.printf("cached wrappers: %d\n", s.obs.CachedWrappers())
	s.printf("bindings:        %d\n", s.obs.Bindings())
	s.printf("console lines:   %d/%d\n", s.console.Len(), s.console.Capacity())
	if s.bridge != nil {
		st := s.bridge.Stats()
		s.printf("bridge:          %d connections, %d batches, %d rejected\n",
			st.Connections, st.Batches, st.Rejected)
	}
}

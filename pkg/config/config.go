// Package config loads observed documents and observation settings from
// YAML files.
//
// A file looks like:
//
//	observe:
//	  watch: title
//	  deep: true
//	  alter: true
//	log_level: debug
//	capture: session.olog
//	bridge:
//	  listen: 127.0.0.1:8765
//	  advertise: true
//	console:
//	  capacity: 128
//	document:
//	  title: Hello
//	  items: [a, b]
//
// The document is converted into observable targets with key order
// preserved. YAML anchors referenced through aliases become one shared
// target.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/gyptix/observable-go/pkg/observable"
)

// Config is the top-level configuration file.
type Config struct {
	Observe  ObserveConfig `yaml:"observe"`
	LogLevel string        `yaml:"log_level"`
	Capture  string        `yaml:"capture"`
	Bridge   BridgeConfig  `yaml:"bridge"`
	Console  ConsoleConfig `yaml:"console"`
	Document yaml.Node     `yaml:"document"`
}

// ObserveConfig holds the observation settings.
type ObserveConfig struct {
	// Watch restricts top-level notifications to one key. Integers name
	// sequence indexes.
	Watch   any  `yaml:"watch"`
	Deep    bool `yaml:"deep"`
	Alter   bool `yaml:"alter"`
	Isolate bool `yaml:"isolate"`
}

// BridgeConfig configures the WebSocket mutation bridge.
type BridgeConfig struct {
	Listen string `yaml:"listen"`
	Path   string `yaml:"path"`

	// Advertise announces the bridge over mDNS under Name.
	Advertise bool   `yaml:"advertise"`
	Name      string `yaml:"name"`
}

// ConsoleConfig configures the console log.
type ConsoleConfig struct {
	Capacity int `yaml:"capacity"`
}

// LoadError describes a configuration loading error.
type LoadError struct {
	// File is the path to the file that failed to load.
	File string

	// Line is the line number where the error occurred (0 if unknown).
	Line int

	// Message describes the error.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

func (e *LoadError) Error() string {
	prefix := e.File
	if e.Line > 0 {
		prefix += ":" + strconv.Itoa(e.Line)
	}
	msg := prefix + ": " + e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// Parse parses a configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, &LoadError{
			Message: "failed to parse YAML",
			Cause:   err,
		}
	}

	if c.Console.Capacity < 0 {
		return nil, &LoadError{
			Message: "console capacity must not be negative",
		}
	}
	if _, err := c.Level(); err != nil {
		return nil, &LoadError{
			Message: "invalid log_level",
			Cause:   err,
		}
	}
	if c.Document.Kind != 0 {
		doc := documentRoot(&c.Document)
		if doc.Kind != yaml.MappingNode && doc.Kind != yaml.SequenceNode && !isNull(doc) {
			return nil, &LoadError{
				Line:    doc.Line,
				Message: "document must be a mapping or a sequence",
			}
		}
	}

	return &c, nil
}

// Load loads a configuration from a file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{
			File:    path,
			Message: "failed to read file",
			Cause:   err,
		}
	}

	c, err := Parse(data)
	if err != nil {
		if le, ok := err.(*LoadError); ok {
			le.File = path
			return nil, le
		}
		return nil, &LoadError{
			File:    path,
			Message: err.Error(),
		}
	}
	return c, nil
}

// Level returns the configured log level. An empty level is info.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, err
	}
	return level, nil
}

// Target converts the document into a target. A missing or null document
// is an empty object.
func (c *Config) Target() (observable.Target, error) {
	if c.Document.Kind == 0 {
		return observable.NewObject(), nil
	}
	doc := documentRoot(&c.Document)
	if isNull(doc) {
		return observable.NewObject(), nil
	}

	v, err := convert(doc, make(map[*yaml.Node]any))
	if err != nil {
		return nil, err
	}
	t, ok := v.(observable.Target)
	if !ok {
		return nil, &LoadError{
			Line:    doc.Line,
			Message: "document must be a mapping or a sequence",
		}
	}
	return t, nil
}

// Observation converts the document and observes it with the configured
// settings.
func (c *Config) Observation(opts ...observable.Option) (*observable.Observation, error) {
	t, err := c.Target()
	if err != nil {
		return nil, err
	}
	return c.Observe.Apply(observable.Observe(t, opts...)), nil
}

// Apply sets the settings on obs and returns it.
func (o ObserveConfig) Apply(obs *observable.Observation) *observable.Observation {
	return obs.Only(o.Watch).Deep(o.Deep).Alter(o.Alter).Isolate(o.Isolate)
}

func documentRoot(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
		n = n.Content[0]
	}
	return n
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null"
}

// convert turns a node into a target or scalar. seen maps composite nodes
// to the targets built from them, so aliases share one target.
func convert(n *yaml.Node, seen map[*yaml.Node]any) (any, error) {
	if v, ok := seen[n]; ok {
		return v, nil
	}

	switch n.Kind {
	case yaml.DocumentNode:
		return convert(documentRoot(n), seen)

	case yaml.AliasNode:
		return convert(n.Alias, seen)

	case yaml.MappingNode:
		obj := observable.NewObject()
		seen[n] = obj
		for i := 0; i+1 < len(n.Content); i += 2 {
			keyNode, valueNode := n.Content[i], n.Content[i+1]
			var key string
			if err := keyNode.Decode(&key); err != nil {
				return nil, &LoadError{
					Line:    keyNode.Line,
					Message: "mapping key must be a scalar",
					Cause:   err,
				}
			}
			v, err := convert(valueNode, seen)
			if err != nil {
				return nil, err
			}
			obj.Set(key, v)
		}
		return obj, nil

	case yaml.SequenceNode:
		seq := observable.NewSequence()
		seen[n] = seq
		for i, item := range n.Content {
			v, err := convert(item, seen)
			if err != nil {
				return nil, err
			}
			seq.SetAt(i, v)
		}
		return seq, nil

	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, &LoadError{
				Line:    n.Line,
				Message: "invalid scalar",
				Cause:   err,
			}
		}
		return v, nil

	default:
		return nil, &LoadError{
			Line:    n.Line,
			Message: fmt.Sprintf("unsupported YAML node kind %d", n.Kind),
		}
	}
}

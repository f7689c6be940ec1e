// Package log provides named leveled loggers shared by the voxtrace packages.
// Verbosity is set globally with SetLevel and can be raised or lowered per
// module with SetModuleLevel or Configure.
package log

import (
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

type Level logging.Level

// The levels that can be passed to SetLevel and SetModuleLevel.
const (
	Debug Level = iota
	Info
	Notice
	Warning
	Error
)

var levelNames = [...]string{
	Debug:   "debug",
	Info:    "info",
	Notice:  "notice",
	Warning: "warning",
	Error:   "error",
}

func (l Level) String() string {
	if l < 0 || int(l) >= len(levelNames) {
		return "invalid"
	}
	return levelNames[l]
}

// ParseLevel returns the level named s, ignoring case.
func ParseLevel(s string) (Level, error) {
	for l, name := range levelNames {
		if strings.EqualFold(s, name) {
			return Level(l), nil
		}
	}
	return 0, errors.Errorf("unknown log level %q", s)
}

func (l Level) backend() logging.Level {
	switch l {
	case Debug:
		return logging.DEBUG
	case Info:
		return logging.INFO
	case Notice:
		return logging.NOTICE
	case Warning:
		return logging.WARNING
	}
	return logging.ERROR
}

var format = logging.MustStringFormatter(
	`%{color}[%{time:15:04:05.000}] [%{module}] [%{level}]%{color:reset} %{message}`,
)

var (
	mu             sync.Mutex
	leveledBackend logging.LeveledBackend
	level          = Notice
	// moduleLevels survive SetSink and SetLevel.
	moduleLevels = map[string]Level{}
	modules      = map[string]bool{}
)

// Logger is implemented by the named loggers returned by New.
type Logger interface {
	Debug(v ...interface{})
	Debugf(format string, v ...interface{})

	Notice(v ...interface{})
	Noticef(format string, v ...interface{})

	Info(v ...interface{})
	Infof(format string, v ...interface{})

	Warning(v ...interface{})
	Warningf(format string, v ...interface{})

	Error(v ...interface{})
	Errorf(format string, v ...interface{})
}

// New returns a logger tagged with the module name, e.g. "octree".
func New(name string) Logger {
	mu.Lock()
	modules[name] = true
	mu.Unlock()
	return logging.MustGetLogger(name)
}

// Modules returns the names passed to New, sorted.
func Modules() []string {
	mu.Lock()
	defer mu.Unlock()
	names := make([]string, 0, len(modules))
	for name := range modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetSink redirects all loggers to sink, keeping the configured levels.
func SetSink(sink io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	backend := logging.NewLogBackend(sink, "", 0)
	leveledBackend = logging.AddModuleLevel(logging.NewBackendFormatter(backend, format))
	leveledBackend.SetLevel(level.backend(), "")
	for module, l := range moduleLevels {
		leveledBackend.SetLevel(l.backend(), module)
	}
	logging.SetBackend(leveledBackend)
}

// SetLevel sets the verbosity of every module without a level of its own.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
	leveledBackend.SetLevel(l.backend(), "")
}

// SetModuleLevel sets the verbosity of one module, overriding SetLevel.
func SetModuleLevel(module string, l Level) {
	mu.Lock()
	defer mu.Unlock()
	moduleLevels[module] = l
	leveledBackend.SetLevel(l.backend(), module)
}

// Configure applies a comma separated list of module=level pairs, e.g.
// "octree=debug,bvh=warning". A bare level sets the global level.
func Configure(spec string) error {
	for _, item := range strings.Split(spec, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		module, name, ok := strings.Cut(item, "=")
		if !ok {
			name = module
		}
		l, err := ParseLevel(strings.TrimSpace(name))
		if err != nil {
			return err
		}
		if !ok {
			SetLevel(l)
			continue
		}
		SetModuleLevel(strings.TrimSpace(module), l)
	}
	return nil
}

func init() {
	SetSink(os.Stderr)
	SetLevel(Notice)
}

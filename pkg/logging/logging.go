// Package logging configures zerolog for the device and hands out
// per-subsystem loggers. Log lines are mirrored to connected control
// panels as device_log messages when a forwarder is installed.
package logging

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Device log states understood by the control panel.
const (
	StateStart   = "Start"
	StateSuccess = "Success"
	StateError   = "Error"
	StateWarning = "Warning"
	StateInfo    = "Info"
	StateDebug   = "Debug"
)

// Forwarder receives log lines mirrored to connected control panels.
// Implementations must not block; drop the line if the outbound queue is full.
type Forwarder func(message, state string)

var (
	mu      sync.RWMutex
	forward Forwarder

	// quiet writes locally only. base additionally mirrors to the forwarder.
	quiet zerolog.Logger
	base  zerolog.Logger
)

func init() {
	configure("info", "console")
}

// Setup configures the process-wide loggers. level is one of debug, info,
// warn, error. format is console or json.
func Setup(level, format string) {
	configure(level, format)
}

func configure(level, format string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var w = os.Stderr
	var logger zerolog.Logger
	if format == "json" {
		logger = zerolog.New(w)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly})
	}

	mu.Lock()
	quiet = logger.Level(lvl).With().Timestamp().Logger()
	base = quiet.Hook(mirrorHook{})
	mu.Unlock()
}

// Component returns a logger tagged with the given subsystem name.
func Component(name string) zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base.With().Str("component", name).Logger()
}

// SetForwarder installs f as the control panel mirror. Pass nil to remove it.
func SetForwarder(f Forwarder) {
	mu.Lock()
	forward = f
	mu.Unlock()
}

// Notify logs an operation progress line and mirrors it with an explicit
// state. Use for StateStart/StateSuccess, which have no zerolog level.
func Notify(component, state, message string) {
	mu.RLock()
	f := forward
	logger := quiet
	mu.RUnlock()

	if f != nil {
		f(message, state)
	}
	logger.Info().Str("component", component).Str("state", state).Msg(message)
}

// mirrorHook forwards each leveled log line to the installed Forwarder.
type mirrorHook struct{}

func (mirrorHook) Run(e *zerolog.Event, level zerolog.Level, message string) {
	if message == "" {
		return
	}
	state, ok := stateFor(level)
	if !ok {
		return
	}

	mu.RLock()
	f := forward
	mu.RUnlock()
	if f != nil {
		f(message, state)
	}
}

// stateFor maps a zerolog level to a device_log state.
func stateFor(level zerolog.Level) (string, bool) {
	switch level {
	case zerolog.DebugLevel:
		return StateDebug, true
	case zerolog.InfoLevel:
		return StateInfo, true
	case zerolog.WarnLevel:
		return StateWarning, true
	case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel:
		return StateError, true
	default:
		return "", false
	}
}

// Package wlog is the package-wide diagnostic logger. It follows the
// teacher's FSNOTIFY_DEBUG convention: only Error-level lines are written
// unless an environment variable asks for more, as single pre-formatted
// lines to stderr.
package wlog

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// Level is a logging severity, ordered least to most verbose.
type Level int

const (
	LevelError Level = iota
	LevelWarning
	LevelInfo
	LevelDebug
	LevelVerbose
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "ERROR"
	case LevelWarning:
		return "WARNING"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	case LevelVerbose:
		return "VERBOSE"
	default:
		return "UNKNOWN"
	}
}

// EnvVar is read once, on first use, to set the minimum emitted level.
const EnvVar = "DIRWATCHER_LOG"

var (
	once    sync.Once
	minimum = LevelError
)

func parseLevel(s string) (Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ERROR":
		return LevelError, true
	case "WARNING", "WARN":
		return LevelWarning, true
	case "INFO":
		return LevelInfo, true
	case "DEBUG":
		return LevelDebug, true
	case "VERBOSE", "TRACE":
		return LevelVerbose, true
	default:
		return LevelError, false
	}
}

func init() {
	// initMinimum is deferred to first log call via sync.Once so tests can
	// set the environment variable before any package under test logs.
}

func initMinimum() {
	once.Do(func() {
		if v, ok := parseLevel(os.Getenv(EnvVar)); ok {
			minimum = v
		}
	})
}

// SetMinimum overrides the minimum level directly, bypassing the
// environment variable. Intended for tests.
func SetMinimum(l Level) {
	once.Do(func() {})
	minimum = l
}

func log(level Level, format string, args ...interface{}) {
	initMinimum()
	if level > minimum {
		return
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(os.Stderr, "DIRWATCHER_%s: %s  %s\n",
		level, time.Now().Format("15:04:05.000000000"), msg)
}

func Errorf(format string, args ...interface{})   { log(LevelError, format, args...) }
func Warningf(format string, args ...interface{}) { log(LevelWarning, format, args...) }
func Infof(format string, args ...interface{})    { log(LevelInfo, format, args...) }
func Debugf(format string, args ...interface{})   { log(LevelDebug, format, args...) }
func Verbosef(format string, args ...interface{}) { log(LevelVerbose, format, args...) }

package report

import (
	"strings"
	"sync"
)

// Reporter is responsible for reporting errors, warnings, and other kinds of
// messages to the user while files are transpiled.  The reporter respects the
// set log level and is synchronized: its methods can be safely called from the
// goroutines transpiling different files.
type Reporter struct {
	// The mutex used to synchonize different reporting calls.
	m *sync.Mutex

	// The selected log level of the reporter.  This must be one of the
	// enumerated log levels below.
	logLevel int

	// The number of errors reported so far.
	errorCount int

	// The number of warnings reported so far.
	warningCount int
}

// Enumeration of the different possible log levels.
const (
	LogLevelSilent  = iota // Displays no output.
	LogLevelError          // Displays only errors to the user.
	LogLevelWarn           // Displays only warnings and errors to the user.
	LogLevelVerbose        // Displays all messages to the user (default).
)

// logLevelNames maps the CLI names of the log levels to their values.
var logLevelNames = map[string]int{
	"silent":  LogLevelSilent,
	"error":   LogLevelError,
	"warn":    LogLevelWarn,
	"verbose": LogLevelVerbose,
}

// ParseLogLevel converts a log level name into its enumerated value.  Unknown
// names fall back to the verbose level.
func ParseLogLevel(name string) int {
	if lvl, ok := logLevelNames[strings.ToLower(name)]; ok {
		return lvl
	}

	return LogLevelVerbose
}

// rep is the global reporter instance.
var rep *Reporter

// InitReporter initializes the global reporter to the given log level. If the
// reporter has already been initialized, only the log level is updated.
func InitReporter(logLevel int) {
	if rep == nil {
		rep = &Reporter{
			m:        &sync.Mutex{},
			logLevel: logLevel,
		}
		return
	}

	rep.m.Lock()
	rep.logLevel = logLevel
	rep.m.Unlock()
}

// ensure makes sure a reporter exists so that library callers which never
// initialized one still get sensible (verbose) behavior.
func ensure() {
	if rep == nil {
		InitReporter(LogLevelVerbose)
	}
}

// LogLevel returns the log level of the global reporter.
func LogLevel() int {
	ensure()
	return rep.logLevel
}

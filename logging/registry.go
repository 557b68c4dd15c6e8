package logging

import (
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// LoggerPatternConfig sets the level of every logger whose name matches Pattern. Patterns are
// dot separated logger names where a `*` section matches anything, e.g. "gridbot.*".
type LoggerPatternConfig struct {
	Pattern string `json:"pattern"`
	Level   string `json:"level"`
}

// e.g. "foo" or "*".
const validLoggerSectionName = `([a-zA-Z0-9]+([_-]*[a-zA-Z0-9]+)*|\*)`

var loggerPatternRegexp = regexp.MustCompile(`^` + validLoggerSectionName + `(\.` + validLoggerSectionName + `)*$`)

// Validate checks the pattern syntax and the level name.
func (lpc LoggerPatternConfig) Validate() error {
	if !loggerPatternRegexp.MatchString(lpc.Pattern) {
		return errors.Errorf("invalid logger pattern %q", lpc.Pattern)
	}
	if _, err := LevelFromString(lpc.Level); err != nil {
		return err
	}
	return nil
}

func buildRegexFromPattern(pattern string) string {
	var matcher strings.Builder
	matcher.WriteRune('^')
	for _, ch := range pattern {
		switch ch {
		case '*':
			matcher.WriteString(`.*`)
		case '.':
			matcher.WriteString(`\.`)
		default:
			matcher.WriteRune(ch)
		}
	}
	matcher.WriteRune('$')
	return matcher.String()
}

type registry struct {
	mu        sync.RWMutex
	loggers   map[string]Logger
	logConfig []LoggerPatternConfig
}

var globalRegistry = &registry{loggers: make(map[string]Logger)}

// register records the logger under its name, replacing any previous holder, and applies the
// configured patterns to it.
func (lr *registry) register(name string, logger Logger) {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	lr.loggers[name] = logger
	for _, lpc := range lr.logConfig {
		if level, ok := matchPattern(lpc, name); ok {
			logger.SetLevel(level)
		}
	}
}

func matchPattern(lpc LoggerPatternConfig, name string) (Level, bool) {
	r, err := regexp.Compile(buildRegexFromPattern(lpc.Pattern))
	if err != nil || !r.MatchString(name) {
		return INFO, false
	}
	level, err := LevelFromString(lpc.Level)
	if err != nil {
		return INFO, false
	}
	return level, true
}

// UpdateLogConfig installs new level patterns and re-levels every registered logger. Later
// patterns win over earlier ones. Loggers matching no pattern are left untouched.
func UpdateLogConfig(logConfig []LoggerPatternConfig) error {
	for _, lpc := range logConfig {
		if err := lpc.Validate(); err != nil {
			return err
		}
	}

	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()
	globalRegistry.logConfig = logConfig
	for name, logger := range globalRegistry.loggers {
		for _, lpc := range logConfig {
			if level, ok := matchPattern(lpc, name); ok {
				logger.SetLevel(level)
			}
		}
	}
	return nil
}

// LoggerNamed returns the registered logger with the given name, if any.
func LoggerNamed(name string) (Logger, bool) {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()
	logger, ok := globalRegistry.loggers[name]
	return logger, ok
}

// RegisteredLoggerNames returns the sorted names of all registered loggers.
func RegisteredLoggerNames() []string {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()
	names := make([]string, 0, len(globalRegistry.loggers))
	for name := range globalRegistry.loggers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

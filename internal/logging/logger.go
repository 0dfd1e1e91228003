// Package logging provides config-driven categorized file-based logging for musicnerd.
// Logs are written to .musicnerd/logs/ with separate files per category.
// The terminal belongs to the UI, so nothing is written to stdout/stderr; when
// debug mode is off every logger is a no-op.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot    Category = "boot"    // Startup and shutdown
	CategorySession Category = "session" // Answers, undo, restart
	CategoryEngine  Category = "engine"  // Rule evaluation and state extraction
	CategoryRules   Category = "rules"   // Rule loading, validation, hot reload
	CategoryAssets  Category = "assets"  // Image table and cover art
	CategoryUI      Category = "ui"      // Rendering and key handling
)

// Options mirrors config.LoggingConfig to avoid an import cycle.
type Options struct {
	DebugMode  bool
	Level      string
	JSONFormat bool
	Categories map[string]bool
}

// Logger is a category-scoped printf-style logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu       sync.RWMutex
	loggers  = make(map[Category]*Logger)
	files    []*os.File
	logsDir  string
	opts     Options
	shared   zapcore.Core
	levelVar = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Initialize sets up the logs directory under workspace.
// Should be called once at startup.
func Initialize(workspace string, o Options) error {
	if workspace == "" {
		return fmt.Errorf("workspace path required")
	}

	CloseAll()

	mu.Lock()
	opts = o
	levelVar.SetLevel(parseLevel(o.Level))
	if !o.DebugMode {
		logsDir = ""
		mu.Unlock()
		return nil
	}
	logsDir = filepath.Join(workspace, ".musicnerd", "logs")
	mu.Unlock()

	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	boot := Get(CategoryBoot)
	boot.Info("=== musicnerd logging initialized ===")
	boot.Info("Logs directory: %s", logsDir)
	boot.Info("Log level: %s", levelVar.Level())
	return nil
}

// SetCore routes every category into core regardless of debug mode.
// The returned function restores the previous routing.
func SetCore(core zapcore.Core) (restore func()) {
	mu.Lock()
	prev := shared
	shared = core
	loggers = make(map[Category]*Logger)
	mu.Unlock()

	return func() {
		mu.Lock()
		shared = prev
		loggers = make(map[Category]*Logger)
		mu.Unlock()
	}
}

func parseLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// IsCategoryEnabled returns whether a specific category writes anything.
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return categoryEnabledLocked(category)
}

func categoryEnabledLocked(category Category) bool {
	if shared != nil {
		return true
	}
	if !opts.DebugMode || logsDir == "" {
		return false
	}
	if opts.Categories == nil {
		return true
	}
	enabled, exists := opts.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if debug mode is disabled or the category is disabled.
func Get(category Category) *Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()

	if l, ok := loggers[category]; ok {
		return l
	}

	l := &Logger{category: category, sugar: zap.NewNop().Sugar()}
	if !categoryEnabledLocked(category) {
		return l
	}

	core := shared
	if core == nil {
		var err error
		core, err = fileCoreLocked(category)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[logging] Warning: %v\n", err)
			return l
		}
	}

	l.sugar = zap.New(core).Named(string(category)).Sugar()
	loggers[category] = l
	return l
}

func fileCoreLocked(category Category) (zapcore.Core, error) {
	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(logsDir, fmt.Sprintf("%s_%s.log", date, category))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("could not open log file %s: %w", logPath, err)
	}
	files = append(files, file)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if opts.JSONFormat {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}
	return zapcore.NewCore(enc, zapcore.AddSync(file), levelVar), nil
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// With returns a logger carrying structured key-value context.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// Zap exposes the underlying structured logger.
func (l *Logger) Zap() *zap.Logger {
	return l.sugar.Desugar()
}

// CloseAll flushes and closes all open log files (call at shutdown).
func CloseAll() {
	mu.Lock()
	defer mu.Unlock()

	for _, l := range loggers {
		_ = l.sugar.Sync()
	}
	for _, f := range files {
		_ = f.Close()
	}
	files = nil
	loggers = make(map[Category]*Logger)
}

// =============================================================================
// CONVENIENCE FUNCTIONS
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Info(format, args...)
}

// Session logs to the session category
func Session(format string, args ...interface{}) {
	Get(CategorySession).Info(format, args...)
}

// Engine logs to the engine category
func Engine(format string, args ...interface{}) {
	Get(CategoryEngine).Info(format, args...)
}

// EngineDebug logs debug to the engine category
func EngineDebug(format string, args ...interface{}) {
	Get(CategoryEngine).Debug(format, args...)
}

// Rules logs to the rules category
func Rules(format string, args ...interface{}) {
	Get(CategoryRules).Info(format, args...)
}

// Assets logs to the assets category
func Assets(format string, args ...interface{}) {
	Get(CategoryAssets).Info(format, args...)
}

// UI logs to the ui category
func UI(format string, args ...interface{}) {
	Get(CategoryUI).Info(format, args...)
}

// UIDebug logs debug to the ui category
func UIDebug(format string, args ...interface{}) {
	Get(CategoryUI).Debug(format, args...)
}

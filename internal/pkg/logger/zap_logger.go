package logger

import (
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type ILogger interface {
	Debug(module, message string, details map[string]interface{})
	Info(module, message string, details map[string]interface{})
	Warn(module, message string, details map[string]interface{})
	Error(module, message string, details map[string]interface{})
	Sync() error
	Recent(level string, limit int) []LogEntry
}

// LogEntry is the shape exposed to the status surface.
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

const recentRingSize = 256

type ZapLogger struct {
	logger *zap.Logger

	mu     sync.Mutex
	recent []LogEntry
	next   int
}

func NewZapLogger(logFilePath string, isProd bool) *ZapLogger {
	// Rotation (Lumberjack)
	rotator := &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    10, // Megabytes
		MaxBackups: 5,
		MaxAge:     30, // Days
		Compress:   true,
	}

	// JSON encoder with ISO-8601 timestamps
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.MessageKey = "message"
	encoderConfig.LevelKey = "level"
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	jsonEncoder := zapcore.NewJSONEncoder(encoderConfig)

	fileCore := zapcore.NewCore(
		jsonEncoder,
		zapcore.AddSync(rotator),
		zap.InfoLevel,
	)

	var consoleEncoder zapcore.Encoder
	if isProd {
		consoleEncoder = jsonEncoder
	} else {
		consoleEncoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	}

	consoleCore := zapcore.NewCore(
		consoleEncoder,
		zapcore.Lock(os.Stdout),
		zap.DebugLevel,
	)

	zl := &ZapLogger{
		recent: make([]LogEntry, 0, recentRingSize),
	}

	core := zapcore.NewTee(fileCore, consoleCore)
	zl.logger = zap.New(core,
		zap.AddCaller(),
		zap.AddCallerSkip(1), // point to the caller of the wrapper
		zap.Hooks(zl.capture),
	)

	return zl
}

// NewNopLogger returns a logger that discards everything. Intended for tests.
func NewNopLogger() *ZapLogger {
	return &ZapLogger{
		logger: zap.NewNop(),
		recent: make([]LogEntry, 0, recentRingSize),
	}
}

// capture keeps a small in-memory ring of entries for GET /api/status.
func (l *ZapLogger) capture(entry zapcore.Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := LogEntry{
		Timestamp: entry.Time.Format(time.RFC3339),
		Level:     entry.Level.CapitalString(),
		Message:   entry.Message,
	}
	if len(l.recent) < recentRingSize {
		l.recent = append(l.recent, e)
	} else {
		l.recent[l.next] = e
		l.next = (l.next + 1) % recentRingSize
	}
	return nil
}

func (l *ZapLogger) Debug(module, message string, details map[string]interface{}) {
	if details == nil {
		details = make(map[string]interface{})
	}
	l.logger.Debug(message, zap.String("module", module), zap.Any("details", details))
}

func (l *ZapLogger) Info(module, message string, details map[string]interface{}) {
	if details == nil {
		details = make(map[string]interface{})
	}
	l.logger.Info(message, zap.String("module", module), zap.Any("details", details))
}

func (l *ZapLogger) Warn(module, message string, details map[string]interface{}) {
	if details == nil {
		details = make(map[string]interface{})
	}
	l.logger.Warn(message, zap.String("module", module), zap.Any("details", details))
}

func (l *ZapLogger) Error(module, message string, details map[string]interface{}) {
	if details == nil {
		details = make(map[string]interface{})
	}
	l.logger.Error(message, zap.String("module", module), zap.Any("details", details))
}

func (l *ZapLogger) Sync() error {
	return l.logger.Sync()
}

// Recent returns up to limit entries, newest first, optionally filtered by level.
func (l *ZapLogger) Recent(level string, limit int) []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	ordered := make([]LogEntry, 0, len(l.recent))
	if len(l.recent) == recentRingSize {
		ordered = append(ordered, l.recent[l.next:]...)
		ordered = append(ordered, l.recent[:l.next]...)
	} else {
		ordered = append(ordered, l.recent...)
	}

	out := make([]LogEntry, 0, limit)
	for i := len(ordered) - 1; i >= 0 && len(out) < limit; i-- {
		if level != "" && ordered[i].Level != level {
			continue
		}
		out = append(out, ordered[i])
	}
	return out
}

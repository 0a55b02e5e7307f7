package trace

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/pdonahue-ventana/riscv-trace-decoder/riscv"
)

// Severity is a log message's severity level. It collapses the reference
// decoder's per-category debug_flags (TE_DEBUG_PC_TRANSITIONS,
// TE_DEBUG_BRANCH_PREDICTION, TE_DEBUG_CALL_STACK,
// TE_DEBUG_JUMP_TARGET_CACHE, TE_DEBUG_FOLLOW_PATH) down to one Debug level:
// this decoder's diagnostics are either "trace-stream debug noise" or a
// genuine Info/Warning/Error, not a fine-grained category a caller would
// want to filter independently.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "DEBUG"
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger is the logging contract Decoder accepts. Logf is the only method
// the decoder's own diagnostics call (always at SeverityDebug, restoring the
// reference implementation's debug_stream tracing); it is kept as a single
// severity-tagged method rather than the teacher's Log/Debug/Info/Warning/
// Error spread, since nothing in this package needs the convenience
// wrappers.
type Logger interface {
	Logf(severity Severity, format string, args ...interface{})
}

// StdLogger implements Logger on top of the standard library's log.Logger,
// one instance per severity so each can carry its own prefix, matching the
// teacher's split stdout/stderr-by-severity convention.
type StdLogger struct {
	debugLog   *log.Logger
	infoLog    *log.Logger
	warningLog *log.Logger
	errorLog   *log.Logger
	minLevel   Severity
}

// NewStdLogger creates a logger writing to stdout (Debug/Info/Warning) and
// stderr (Error), filtering out anything below minLevel.
func NewStdLogger(minLevel Severity) *StdLogger {
	return NewStdLoggerWithWriter(os.Stdout, os.Stderr, minLevel)
}

// NewStdLoggerWithWriter is NewStdLogger with explicit writers, used by
// rvtrclister to route -v debug output through the same stdout it prints
// decoded transitions to.
func NewStdLoggerWithWriter(stdout, stderr io.Writer, minLevel Severity) *StdLogger {
	return &StdLogger{
		debugLog:   log.New(stdout, "DEBUG: ", log.Ltime),
		infoLog:    log.New(stdout, "INFO: ", log.Ltime),
		warningLog: log.New(stdout, "WARNING: ", log.Ltime),
		errorLog:   log.New(stderr, "ERROR: ", log.Ltime),
		minLevel:   minLevel,
	}
}

// Logf logs a formatted message at severity, dropping it if severity is
// below the logger's minLevel.
func (l *StdLogger) Logf(severity Severity, format string, args ...interface{}) {
	if severity < l.minLevel {
		return
	}
	msg := fmt.Sprintf(format, args...)
	switch severity {
	case SeverityDebug:
		l.debugLog.Output(2, msg)
	case SeverityInfo:
		l.infoLog.Output(2, msg)
	case SeverityWarning:
		l.warningLog.Output(2, msg)
	case SeverityError:
		l.errorLog.Output(2, msg)
	}
}

// NoOpLogger discards everything. It is the Decoder's default when the
// caller supplies no Logger.
type NoOpLogger struct{}

// NewNoOpLogger returns a Logger that discards every message.
func NewNoOpLogger() *NoOpLogger { return &NoOpLogger{} }

// Logf implements Logger by doing nothing.
func (l *NoOpLogger) Logf(Severity, string, ...interface{}) {}

// logger is the narrow debug-logging surface stepengine/follower/packetproc
// need; it exists so those files don't have to deal with a nil Logger (a
// nil *logger simply means "don't log", mirroring the reference
// implementation's `if (decoder->debug_stream)` guards around every
// diagnostic fprintf) and so a PC can be folded into the message in one
// place instead of every call site hand-formatting "%#x: ...".
type logger interface {
	Debugf(format string, args ...interface{})
	DebugPC(pc riscv.Address, format string, args ...interface{})
}

type loggerAdapter struct{ l Logger }

func (a loggerAdapter) Debugf(format string, args ...interface{}) {
	a.l.Logf(SeverityDebug, format, args...)
}

// DebugPC logs a debug message annotated with the program counter it
// concerns, using the same "%#x: ..." shape trace.DecodeError's Error()
// uses, so a diagnostic stream and a fatal error describing the same PC
// read the same way.
func (a loggerAdapter) DebugPC(pc riscv.Address, format string, args ...interface{}) {
	a.l.Logf(SeverityDebug, "%#x: "+format, append([]interface{}{pc}, args...)...)
}

func wrapLogger(l Logger) logger {
	if l == nil {
		return nil
	}
	return loggerAdapter{l: l}
}

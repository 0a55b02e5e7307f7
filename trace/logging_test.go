package trace

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pdonahue-ventana/riscv-trace-decoder/riscv"
)

func TestSeverityString(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityDebug, "DEBUG"},
		{SeverityInfo, "INFO"},
		{SeverityWarning, "WARNING"},
		{SeverityError, "ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.severity.String(); got != tt.want {
				t.Errorf("Severity.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStdLoggerMinLevel(t *testing.T) {
	var stdout, stderr bytes.Buffer
	l := NewStdLoggerWithWriter(&stdout, &stderr, SeverityWarning)

	l.Logf(SeverityDebug, "debug message")
	l.Logf(SeverityInfo, "info message")
	if stdout.Len() != 0 {
		t.Errorf("Debug/Info should be filtered out below SeverityWarning, got: %s", stdout.String())
	}

	l.Logf(SeverityWarning, "warning message")
	if !strings.Contains(stdout.String(), "warning message") {
		t.Errorf("Warning should be logged, got: %s", stdout.String())
	}
}

func TestStdLoggerSeverityRouting(t *testing.T) {
	var stdout, stderr bytes.Buffer
	l := NewStdLoggerWithWriter(&stdout, &stderr, SeverityDebug)

	l.Logf(SeverityError, "boom: %d", 42)
	if !strings.Contains(stderr.String(), "boom: 42") {
		t.Errorf("Error severity should route to stderr, got stdout=%q stderr=%q", stdout.String(), stderr.String())
	}
	if stdout.Len() != 0 {
		t.Errorf("Error severity should not also appear on stdout, got: %s", stdout.String())
	}
}

func TestNoOpLoggerDiscardsEverything(t *testing.T) {
	l := NewNoOpLogger()
	l.Logf(SeverityError, "should go nowhere")
}

func TestLoggerAdapterDebugPC(t *testing.T) {
	var stdout, stderr bytes.Buffer
	l := wrapLogger(NewStdLoggerWithWriter(&stdout, &stderr, SeverityDebug))

	l.DebugPC(0x1000, "set_pc <- %#x: %s", riscv.SentinelAddress, "jal x1, +256")

	out := stdout.String()
	if !strings.Contains(out, "0x1000: set_pc") {
		t.Errorf("DebugPC should prefix the message with the PC, got: %s", out)
	}
}

func TestWrapLoggerNil(t *testing.T) {
	if wrapLogger(nil) != nil {
		t.Error("wrapLogger(nil) should return a nil logger")
	}
}

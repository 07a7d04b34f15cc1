package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func bufferLogger(buf *bytes.Buffer, component string) *Logger {
	return &Logger{
		Logger:    slog.New(slog.NewTextHandler(buf, nil)),
		component: component,
	}
}

func TestComponentAppearsOnce(t *testing.T) {
	var buf bytes.Buffer
	l := bufferLogger(&buf, "app")

	l.Info("hello")
	line := buf.String()
	if got := strings.Count(line, FieldComponent+"="); got != 1 {
		t.Errorf("component key appears %d times in %q, want 1", got, line)
	}
	if !strings.Contains(line, FieldComponent+"=app") {
		t.Errorf("line %q missing component=app", line)
	}
}

func TestWithComponentRetags(t *testing.T) {
	var buf bytes.Buffer
	l := bufferLogger(&buf, "app").WithComponent(ComponentHTTP)

	l.Warn("request")
	line := buf.String()
	if got := strings.Count(line, FieldComponent+"="); got != 1 {
		t.Errorf("component key appears %d times in %q, want 1", got, line)
	}
	if !strings.Contains(line, FieldComponent+"="+ComponentHTTP) {
		t.Errorf("line %q missing component=%s", line, ComponentHTTP)
	}
}

func TestWithKeepsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := bufferLogger(&buf, "app").With("k", "v")

	l.Error("boom")
	line := buf.String()
	if !strings.Contains(line, "k=v") {
		t.Errorf("line %q missing attached attribute", line)
	}
	if got := strings.Count(line, FieldComponent+"="); got != 1 {
		t.Errorf("component key appears %d times in %q, want 1", got, line)
	}
}

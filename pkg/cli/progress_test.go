package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestProgress_RendersBarAndCounts(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf)

	progress.Start(200)
	progress.Update(100)
	progress.Finish()

	output := buf.String()
	if !strings.Contains(output, "100/200 entries") {
		t.Errorf("missing midpoint count in output: %q", output)
	}
	if !strings.Contains(output, "200/200 entries (100%)") {
		t.Errorf("missing finished count in output: %q", output)
	}
}

func TestProgress_ZeroTotalRendersNothing(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf)

	progress.Start(0)
	progress.Update(0)
	progress.Finish()

	if got := buf.String(); got != "" {
		t.Errorf("zero-total run produced output: %q", got)
	}
}

func TestProgress_Error(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf)

	progress.Start(10)
	progress.Error(errors.New("store went away"))

	output := buf.String()
	if !strings.Contains(output, "error: store went away") {
		t.Errorf("missing error report in output: %q", output)
	}
}

func TestProgress_OvershootClamps(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf)

	progress.Start(10)
	progress.Update(25)

	if !strings.Contains(buf.String(), "(100%)") {
		t.Errorf("overshoot not clamped to 100%%: %q", buf.String())
	}
}

func TestProgress_ConcurrentUpdates(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf)

	progress.Start(1000)

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func(base int) {
			for j := 0; j < 100; j++ {
				progress.Update(int64(base*100 + j))
			}
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	progress.Finish()

	if buf.Len() == 0 {
		t.Error("expected progress output")
	}
}

func TestNewProgressReporter_NilWriter(t *testing.T) {
	progress := NewProgressReporter(nil)
	if progress == nil {
		t.Fatal("NewProgressReporter(nil) returned nil")
	}
}

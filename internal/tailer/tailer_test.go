package tailer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/avolkhov/logly/internal/config"
	"github.com/avolkhov/logly/internal/model"
)

type fakeWriter struct {
	events []*model.LogEvent
	fail   bool
}

func (w *fakeWriter) InsertLogEvents(events []*model.LogEvent) (int, error) {
	if w.fail {
		return 0, errors.New("db unavailable")
	}
	w.events = append(w.events, events...)
	return len(events), nil
}

func authLine(n int) string {
	return fmt.Sprintf("Jan 15 10:30:%02d web1 sshd[1234]: Failed password for root from 203.0.113.%d port 54321 ssh2\n", n, n)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func appendFile(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatal(err)
	}
}

func TestNewFileReadFromBeginning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.log")
	w := &fakeWriter{}
	tl := New([]Source{{Name: "auth", Path: path, Enabled: true}}, w, nil)

	// File appears after the tailer started tracking it.
	writeFile(t, path, authLine(1)+authLine(2))

	n, err := tl.TailAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 || len(w.events) != 2 {
		t.Fatalf("events = %d/%d, want 2", n, len(w.events))
	}
	if w.events[0].IP != "203.0.113.1" {
		t.Errorf("first event ip = %s", w.events[0].IP)
	}
}

func TestExistingFileStartsAtEOF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.log")
	writeFile(t, path, authLine(1)+authLine(2)+authLine(3))

	w := &fakeWriter{}
	tl := New([]Source{{Name: "auth", Path: path, Enabled: true}}, w, nil)

	n, err := tl.TailAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("pre-existing content re-ingested: %d events", n)
	}

	appendFile(t, path, authLine(4))
	n, err = tl.TailAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 || w.events[0].IP != "203.0.113.4" {
		t.Fatalf("appended line: got %d events, first %+v", n, w.events)
	}
}

func TestRotationAfterEOF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.log")
	writeFile(t, path, authLine(1)+authLine(2)+authLine(3)+authLine(4)+authLine(5))

	w := &fakeWriter{}
	tl := New([]Source{{Name: "auth", Path: path, Enabled: true}}, w, nil)
	if _, err := tl.TailAll(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Logrotate truncates; the new file is shorter than the cursor.
	writeFile(t, path, authLine(6)+authLine(7)+authLine(8))

	n, err := tl.TailAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("events after rotation = %d, want 3", n)
	}
	for i, want := range []string{"203.0.113.6", "203.0.113.7", "203.0.113.8"} {
		if w.events[i].IP != want {
			t.Errorf("event %d ip = %s, want %s", i, w.events[i].IP, want)
		}
	}
}

func TestRotationRoundTripNoDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.log")
	w := &fakeWriter{}
	tl := New([]Source{{Name: "auth", Path: path, Enabled: true}}, w, nil)

	writeFile(t, path, authLine(1)+authLine(2))
	if _, err := tl.TailAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	writeFile(t, path, authLine(3))
	if _, err := tl.TailAll(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(w.events) != 3 {
		t.Fatalf("events = %d, want every line exactly once (3)", len(w.events))
	}
	seen := map[string]int{}
	for _, e := range w.events {
		seen[e.IP]++
	}
	for ip, count := range seen {
		if count != 1 {
			t.Errorf("ip %s ingested %d times", ip, count)
		}
	}
}

func TestPartialLineWaitsForNewline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.log")
	w := &fakeWriter{}
	tl := New([]Source{{Name: "auth", Path: path, Enabled: true}}, w, nil)

	full := authLine(1)
	writeFile(t, path, full[:len(full)-20])
	n, err := tl.TailAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("half-written line parsed: %d events", n)
	}

	appendFile(t, path, full[len(full)-20:])
	n, err = tl.TailAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 || len(w.events) != 1 {
		t.Fatalf("completed line: %d events total %d, want exactly 1", n, len(w.events))
	}
}

func TestFailedWriteKeepsCursor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.log")
	w := &fakeWriter{fail: true}
	tl := New([]Source{{Name: "auth", Path: path, Enabled: true}}, w, nil)

	writeFile(t, path, authLine(1))
	if _, err := tl.TailAll(context.Background()); err == nil {
		t.Fatal("expected write failure to surface")
	}

	w.fail = false
	n, err := tl.TailAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("retry after failure yielded %d events, want 1", n)
	}
}

func TestUnmatchedLinesCounted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.log")
	w := &fakeWriter{}
	tl := New([]Source{{Name: "auth", Path: path, Enabled: true}}, w, nil)

	writeFile(t, path, "Jan 15 10:32:00 web1 sshd[1240]: Connection closed by 192.0.2.9\n"+authLine(1))
	n, err := tl.TailAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("events = %d, want 1", n)
	}
	if got := tl.Unmatched("auth"); got != 1 {
		t.Errorf("unmatched = %d, want 1", got)
	}
}

func TestMissingFileIsNotAnError(t *testing.T) {
	tl := New([]Source{{Name: "auth", Path: "/nonexistent/auth.log", Enabled: true}}, &fakeWriter{}, nil)
	if _, err := tl.TailAll(context.Background()); err != nil {
		t.Errorf("missing file should be skipped, got %v", err)
	}
}

func TestDisabledSourceSkipped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.log")
	writeFile(t, path, authLine(1))
	w := &fakeWriter{}
	tl := New([]Source{{Name: "auth", Path: path, Enabled: false}}, w, nil)
	writeFile(t, path, authLine(1)+authLine(2))

	n, err := tl.TailAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("disabled source produced %d events", n)
	}
}

func TestSourcesFromConfigOrdered(t *testing.T) {
	srcs := SourcesFromConfig(map[string]config.LogSource{
		"syslog":   {Path: "/var/log/syslog", Enabled: true},
		"auth":     {Path: "/var/log/auth.log", Enabled: true},
		"fail2ban": {Path: "/var/log/fail2ban.log", Enabled: false},
	})
	want := []string{"auth", "fail2ban", "syslog"}
	for i, name := range want {
		if srcs[i].Name != name {
			t.Fatalf("order = %v, want %v", srcs, want)
		}
	}
}

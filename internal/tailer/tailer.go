// Package tailer streams new lines from configured log files into the store.
// Cursors are byte offsets held in memory only; a restart resumes at
// end-of-file, trading the downtime gap for never double-ingesting.
package tailer

import (
	"bufio"
	"context"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/avolkhov/logly/internal/config"
	"github.com/avolkhov/logly/internal/logging"
	"github.com/avolkhov/logly/internal/model"
)

// Source names one file to follow.
type Source struct {
	Name    string
	Path    string
	Enabled bool
}

// EventWriter is the slice of the store the tailer needs.
type EventWriter interface {
	InsertLogEvents(events []*model.LogEvent) (int, error)
}

// Tailer follows a set of log files, parsing new lines into events. Not safe
// for concurrent use; the scheduler runs it from a single task.
type Tailer struct {
	sources []Source
	writer  EventWriter
	log     *zap.SugaredLogger

	cursors   map[string]int64 // byte offset per path
	unmatched map[string]int64 // dropped line count per source

	now func() time.Time
}

// New builds a tailer over the enabled sources. Files that already exist
// start at end-of-file; files that appear later are read from the beginning.
func New(sources []Source, writer EventWriter, log *zap.SugaredLogger) *Tailer {
	if log == nil {
		log = logging.Discard()
	}
	t := &Tailer{
		sources:   sources,
		writer:    writer,
		log:       log,
		cursors:   make(map[string]int64),
		unmatched: make(map[string]int64),
		now:       time.Now,
	}
	for _, src := range sources {
		if !src.Enabled {
			continue
		}
		if info, err := os.Stat(src.Path); err == nil {
			t.cursors[src.Path] = info.Size()
		}
	}
	return t
}

// SourcesFromConfig converts the config source map into a stable,
// name-ordered list.
func SourcesFromConfig(sources map[string]config.LogSource) []Source {
	out := make([]Source, 0, len(sources))
	for name, s := range sources {
		out = append(out, Source{Name: name, Path: s.Path, Enabled: s.Enabled})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// TailAll processes every enabled source once and returns the total number of
// events written. Per-source failures are collected, not fatal.
func (t *Tailer) TailAll(ctx context.Context) (int, error) {
	var total int
	var errs *multierror.Error
	for _, src := range t.sources {
		if !src.Enabled {
			continue
		}
		if err := ctx.Err(); err != nil {
			return total, multierror.Append(errs, err).ErrorOrNil()
		}
		n, err := t.tailSource(src)
		total += n
		if err != nil {
			t.log.Warnw("tail failed", "source", src.Name, "path", src.Path, "err", err)
			errs = multierror.Append(errs, err)
		}
	}
	return total, errs.ErrorOrNil()
}

// Unmatched returns how many lines a source's parser has dropped since start.
func (t *Tailer) Unmatched(source string) int64 { return t.unmatched[source] }

// tailSource reads whole new lines from one file, parses them and writes the
// batch. The cursor advances only after the batch insert succeeds, so a write
// failure re-reads the same lines next tick.
func (t *Tailer) tailSource(src Source) (int, error) {
	info, err := os.Stat(src.Path)
	if err != nil {
		if os.IsNotExist(err) {
			// Not an error: the file may not exist until its service logs.
			return 0, nil
		}
		return 0, err
	}

	cursor := t.cursors[src.Path]
	if info.Size() < cursor {
		t.log.Infow("rotation detected", "source", src.Name, "path", src.Path,
			"size", info.Size(), "cursor", cursor)
		cursor = 0
	}
	if info.Size() == cursor {
		return 0, nil
	}

	f, err := os.Open(src.Path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if _, err := f.Seek(cursor, io.SeekStart); err != nil {
		return 0, err
	}

	events, consumed, dropped := t.parseNewLines(src, f)
	t.unmatched[src.Name] += dropped

	if len(events) > 0 {
		if _, err := t.writer.InsertLogEvents(events); err != nil {
			return 0, err
		}
	}
	t.cursors[src.Path] = cursor + consumed
	return len(events), nil
}

// parseNewLines consumes complete lines from r. A trailing fragment without a
// newline is left for the next tick so a half-written line is never parsed.
func (t *Tailer) parseNewLines(src Source, r io.Reader) (events []*model.LogEvent, consumed int64, dropped int64) {
	parse := ParserFor(src.Name)
	now := t.now()
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			t.log.Warnw("read failed mid-file", "source", src.Name, "err", err)
			break
		}
		complete := strings.HasSuffix(line, "\n")
		if !complete {
			// err == io.EOF here; the fragment stays unconsumed.
			break
		}
		consumed += int64(len(line))
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			continue
		}
		e := parse(trimmed, now)
		if e == nil {
			dropped++
			continue
		}
		e.Source = src.Name
		events = append(events, e)
		if err == io.EOF {
			break
		}
	}
	return events, consumed, dropped
}

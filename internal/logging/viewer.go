package logging

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// LogEntry is one parsed JSON record from a facet log file.
type LogEntry struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Msg     string         `json:"msg"`
	Source  string         `json:"source"`
	Attrs   map[string]any `json:"-"`
	Raw     string         `json:"-"`
	IsValid bool           `json:"-"` // false for lines that are not JSON records
}

// ViewerConfig filters and styles viewer output.
type ViewerConfig struct {
	Level      string         // drop records below this level
	Pattern    *regexp.Regexp // drop lines the pattern does not match
	NoColor    bool
	ShowSource bool // prefix each record with its [source] label
}

// Viewer tails, follows, and formats facet log files for `facet logs`.
type Viewer struct {
	config ViewerConfig
	out    io.Writer
}

// NewViewer returns a viewer printing to out.
func NewViewer(cfg ViewerConfig, out io.Writer) *Viewer {
	return &Viewer{config: cfg, out: out}
}

// lastLines reads path and keeps only the trailing n lines, so a
// multi-megabyte log never has to sit in memory whole.
func lastLines(path string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = f.Close() }()

	ring := make([]string, 0, n)
	next := 0
	full := false

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1<<20), 1<<20) // records can carry long attrs
	for sc.Scan() {
		if len(ring) < n {
			ring = append(ring, sc.Text())
			continue
		}
		ring[next] = sc.Text()
		next = (next + 1) % n
		full = true
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}

	if !full {
		return ring, nil
	}
	return append(ring[next:], ring[:next]...), nil
}

// Tail returns the last n matching records of one log file.
func (v *Viewer) Tail(path string, n int) ([]LogEntry, error) {
	lines, err := lastLines(path, n)
	if err != nil {
		return nil, err
	}
	source := sourceFromPath(path)

	var entries []LogEntry
	for _, line := range lines {
		entry := v.parseLine(line, source)
		if v.admits(entry) {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// TailMultiple merges the last n records of several log files into one
// timeline ordered by timestamp. Files that cannot be read are
// skipped; `facet logs --source all` should show whatever exists.
func (v *Viewer) TailMultiple(paths []string, n int) ([]LogEntry, error) {
	var merged []LogEntry
	for _, path := range paths {
		entries, err := v.Tail(path, n)
		if err != nil {
			continue
		}
		merged = append(merged, entries...)
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Time.Before(merged[j].Time)
	})
	if len(merged) > n {
		merged = merged[len(merged)-n:]
	}
	return merged, nil
}

// Follow streams new records of one log file into entries until ctx
// is canceled. Only records written after the call are delivered.
func (v *Viewer) Follow(ctx context.Context, path string, entries chan<- LogEntry) error {
	return v.followFile(ctx, path, entries)
}

// FollowMultiple follows several log files at once, interleaving their
// records as they arrive.
func (v *Viewer) FollowMultiple(ctx context.Context, paths []string, entries chan<- LogEntry) error {
	for _, path := range paths {
		go func(p string) { _ = v.followFile(ctx, p, entries) }(path)
	}
	<-ctx.Done()
	return nil
}

func (v *Viewer) followFile(ctx context.Context, path string, entries chan<- LogEntry) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek log file: %w", err)
	}
	source := sourceFromPath(path)

	reader := bufio.NewReader(f)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				break // caught up, wait for the next tick
			}
			line = strings.TrimSuffix(line, "\n")
			if line == "" {
				continue
			}
			entry := v.parseLine(line, source)
			if !v.admits(entry) {
				continue
			}
			select {
			case entries <- entry:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// Print formats entries to the viewer's output.
func (v *Viewer) Print(entries []LogEntry) {
	for _, entry := range entries {
		fmt.Fprintln(v.out, v.FormatEntry(entry))
	}
}

// FormatEntry renders one record as a single line. Attributes print
// in key order so repeated runs of `facet logs` line up.
func (v *Viewer) FormatEntry(entry LogEntry) string {
	if !entry.IsValid {
		return entry.Raw
	}

	var b strings.Builder
	b.WriteString(entry.Time.Format("15:04:05.000"))
	b.WriteByte(' ')
	b.WriteString(v.paint(levelColor(entry.Level), levelLabel(entry.Level)))
	b.WriteByte(' ')
	if v.config.ShowSource && entry.Source != "" {
		b.WriteString(v.paint(sourceColor(entry.Source), "["+entry.Source+"]"))
		b.WriteByte(' ')
	}
	b.WriteString(entry.Msg)

	keys := make([]string, 0, len(entry.Attrs))
	for k := range entry.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, entry.Attrs[k])
	}
	return b.String()
}

// parseLine decodes one line, tagging records that carry no source
// field with the file they came from. Non-JSON lines survive as raw
// passthrough entries.
func (v *Viewer) parseLine(line, fileSource string) LogEntry {
	entry := LogEntry{Raw: line}

	var data map[string]any
	if err := json.Unmarshal([]byte(line), &data); err != nil {
		return entry
	}
	entry.IsValid = true

	if t, ok := data["time"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			entry.Time = parsed
		}
	}
	entry.Level, _ = data["level"].(string)
	entry.Msg, _ = data["msg"].(string)
	entry.Source, _ = data["source"].(string)
	if entry.Source == "" {
		entry.Source = fileSource
	}

	entry.Attrs = make(map[string]any)
	for k, val := range data {
		switch k {
		case "time", "level", "msg", "source":
		default:
			entry.Attrs[k] = val
		}
	}
	return entry
}

// admits applies the level and pattern filters.
func (v *Viewer) admits(entry LogEntry) bool {
	if v.config.Level != "" && ParseLevel(entry.Level) < ParseLevel(v.config.Level) {
		return false
	}
	if v.config.Pattern != nil && !v.config.Pattern.MatchString(entry.Raw) {
		return false
	}
	return true
}

// sourceFromPath maps a log file name onto its source label.
func sourceFromPath(path string) string {
	base := filepath.Base(path)
	switch {
	case strings.HasPrefix(base, "daemon"):
		return string(LogSourceDaemon)
	case strings.HasPrefix(base, "engine"):
		return string(LogSourceEngine)
	default:
		return "unknown"
	}
}

const colorReset = "\033[0m"

func levelLabel(level string) string {
	label := strings.ToUpper(level)
	if len(label) > 5 {
		label = label[:5]
	}
	return fmt.Sprintf("%-5s", label)
}

func levelColor(level string) string {
	switch strings.ToLower(level) {
	case "debug":
		return "\033[90m" // gray
	case "info":
		return "\033[32m" // green
	case "warn", "warning":
		return "\033[33m" // yellow
	case "error":
		return "\033[31m" // red
	default:
		return ""
	}
}

func sourceColor(source string) string {
	switch source {
	case string(LogSourceEngine):
		return "\033[36m" // cyan
	case string(LogSourceDaemon):
		return "\033[35m" // magenta
	default:
		return "\033[90m"
	}
}

func (v *Viewer) paint(color, s string) string {
	if v.config.NoColor || color == "" {
		return s
	}
	return color + s + colorReset
}

package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// IndexInfo is one registered index in a status report.
type IndexInfo struct {
	ID         string `json:"id"`
	Version    int    `json:"version"`
	Rebuilding bool   `json:"rebuilding"`
}

// StatusInfo carries project index health for the status command.
type StatusInfo struct {
	ProjectName string    `json:"project_name"`
	TotalFiles  int       `json:"total_files"`
	LastIndexed time.Time `json:"last_indexed"`

	StoreSize int64 `json:"store_size"`

	Indexes []IndexInfo `json:"indexes"`

	// DaemonStatus is "running" or "stopped"; WatcherMode is the
	// active watch strategy when the daemon runs.
	DaemonStatus string `json:"daemon_status"`
	WatcherMode  string `json:"watcher_mode,omitempty"`
	PendingFiles int    `json:"pending_files"`
	OverlayDocs  int    `json:"overlay_docs"`
}

// StatusRenderer displays index status.
type StatusRenderer struct {
	out     io.Writer
	styles  Styles
	noColor bool
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:     out,
		styles:  GetStyles(noColor),
		noColor: noColor,
	}
}

// Render writes a human-readable status report.
func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Index Status: "+info.ProjectName))

	_, _ = fmt.Fprintf(r.out, "  Files:        %d\n", info.TotalFiles)
	if !info.LastIndexed.IsZero() {
		_, _ = fmt.Fprintf(r.out, "  Last indexed: %s\n", formatTime(info.LastIndexed))
	}
	_, _ = fmt.Fprintf(r.out, "  Store size:   %s\n", FormatBytes(info.StoreSize))
	_, _ = fmt.Fprintln(r.out)

	if len(info.Indexes) > 0 {
		_, _ = fmt.Fprintln(r.out, "  Indexes:")
		for _, idx := range info.Indexes {
			state := r.styles.Success.Render("ok")
			if idx.Rebuilding {
				state = r.styles.Warning.Render("rebuilding")
			}
			_, _ = fmt.Fprintf(r.out, "    %-16s v%-3d %s\n", idx.ID, idx.Version, state)
		}
		_, _ = fmt.Fprintln(r.out)
	}

	_, _ = fmt.Fprintf(r.out, "  Daemon: %s\n", r.renderStatus(info.DaemonStatus))
	if info.DaemonStatus == "running" {
		if info.WatcherMode != "" {
			_, _ = fmt.Fprintf(r.out, "    Watcher: %s\n", info.WatcherMode)
		}
		_, _ = fmt.Fprintf(r.out, "    Pending files: %d\n", info.PendingFiles)
		if info.OverlayDocs > 0 {
			_, _ = fmt.Fprintf(r.out, "    Overlay docs:  %d\n", info.OverlayDocs)
		}
	}

	return nil
}

// RenderJSON writes the status as indented JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

func (r *StatusRenderer) renderStatus(status string) string {
	switch status {
	case "ready", "running":
		return r.styles.Success.Render(status)
	case "offline", "stopped":
		return r.styles.Warning.Render(status)
	case "error":
		return r.styles.Error.Render(status)
	default:
		return status
	}
}

// formatTime renders a timestamp relative to now.
func formatTime(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("2006-01-02 15:04")
	}
}

// FormatBytes renders a byte count for humans.
func FormatBytes(bytes int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)

	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(gb))
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

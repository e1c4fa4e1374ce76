package ui

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainRenderer_UpdateProgress_WithTotal(t *testing.T) {
	var buf bytes.Buffer
	r := NewPlainRenderer(NewConfig(&buf))

	r.UpdateProgress(ProgressEvent{
		Stage:       StageIndexing,
		Current:     3,
		Total:       10,
		CurrentFile: "pkg/a.go",
	})

	assert.Equal(t, "[INDEX] 3/10 - pkg/a.go\n", buf.String())
}

func TestPlainRenderer_UpdateProgress_MessageOnly(t *testing.T) {
	var buf bytes.Buffer
	r := NewPlainRenderer(NewConfig(&buf))

	r.UpdateProgress(ProgressEvent{Stage: StageScanning, Message: "walking tree"})

	assert.Equal(t, "[SCAN] walking tree\n", buf.String())
}

func TestPlainRenderer_UpdateProgress_NothingToSayPrintsNothing(t *testing.T) {
	var buf bytes.Buffer
	r := NewPlainRenderer(NewConfig(&buf))

	r.UpdateProgress(ProgressEvent{Stage: StageScanning})

	assert.Empty(t, buf.String())
}

func TestPlainRenderer_AddError(t *testing.T) {
	var buf bytes.Buffer
	r := NewPlainRenderer(NewConfig(&buf))

	r.AddError(ErrorEvent{File: "bad.go", Err: errors.New("unreadable")})
	r.AddError(ErrorEvent{Err: errors.New("store slow"), IsWarn: true})

	out := buf.String()
	assert.Contains(t, out, "ERROR: bad.go: unreadable")
	assert.Contains(t, out, "WARN: store slow")
}

func TestPlainRenderer_Complete_Summary(t *testing.T) {
	var buf bytes.Buffer
	r := NewPlainRenderer(NewConfig(&buf))

	r.Complete(CompletionStats{
		Files:    42,
		Indexes:  3,
		Duration: 1500 * time.Millisecond,
	})

	assert.Contains(t, buf.String(), "Complete: 42 files across 3 indexes in 1.5s")
}

func TestPlainRenderer_Complete_CountsErrorsAndWarnings(t *testing.T) {
	var buf bytes.Buffer
	r := NewPlainRenderer(NewConfig(&buf))

	r.Complete(CompletionStats{
		Files:    10,
		Indexes:  2,
		Duration: time.Second,
		Errors:   2,
		Warnings: 1,
	})

	assert.Contains(t, buf.String(), "(2 errors, 1 warnings)")
}

func TestPlainRenderer_Complete_StageBreakdown(t *testing.T) {
	var buf bytes.Buffer
	r := NewPlainRenderer(NewConfig(&buf))

	r.Complete(CompletionStats{
		Files:    100,
		Indexes:  2,
		Duration: 3 * time.Second,
		Stages: StageTimings{
			Scan:  500 * time.Millisecond,
			Index: 2 * time.Second,
			Flush: 500 * time.Millisecond,
		},
	})

	out := buf.String()
	assert.Contains(t, out, "Stage Breakdown:")
	assert.Contains(t, out, "Scan:  500ms")
	assert.Contains(t, out, "100 files @ 50.0/sec")
	assert.Contains(t, out, "Flush: 500ms")
}

func TestPlainRenderer_StartAndStopAreNoops(t *testing.T) {
	r := NewPlainRenderer(NewConfig(&bytes.Buffer{}))

	require.NoError(t, r.Start(context.Background()))
	require.NoError(t, r.Stop())
}

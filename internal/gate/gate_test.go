package gate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	facerrors "github.com/facetdb/facet/internal/errors"
	"github.com/facetdb/facet/internal/vfs"
)

type fakePending map[vfs.FileID]bool

func (p fakePending) IsScheduled(id vfs.FileID) bool { return p[id] }

func TestWithMode_SameModeNests(t *testing.T) {
	ctx, err := WithMode(context.Background(), ModeRawData)
	require.NoError(t, err)

	// Re-declaring the same mode is a no-op
	again, err := WithMode(ctx, ModeRawData)
	require.NoError(t, err)
	assert.Equal(t, ModeRawData, ModeFrom(again))
}

func TestWithMode_ConflictingModeIsContractViolation(t *testing.T) {
	ctx, err := WithMode(context.Background(), ModeRawData)
	require.NoError(t, err)

	_, err = WithMode(ctx, ModeReliableOnly)

	require.Error(t, err)
	assert.True(t, facerrors.IsFatal(err))
	assert.Equal(t, facerrors.ErrCodeContractViolation, facerrors.GetCode(err))
}

func TestGate_CheckReadDuringTransition(t *testing.T) {
	g := New(fakePending{})
	g.EnterTransitional()
	defer g.ExitTransitional()

	// Without a declared mode the read is refused, retryably
	err := g.CheckRead(context.Background())
	require.Error(t, err)
	assert.True(t, facerrors.IsRetryable(err))

	// With a declared mode the read is admitted
	ctx, err := WithMode(context.Background(), ModeRawData)
	require.NoError(t, err)
	assert.NoError(t, g.CheckRead(ctx))
}

func TestGate_CheckReadOutsideTransition(t *testing.T) {
	g := New(fakePending{})

	assert.NoError(t, g.CheckRead(context.Background()))
}

func TestGate_TransitionalWindowsNest(t *testing.T) {
	g := New(fakePending{})

	g.EnterTransitional()
	g.EnterTransitional()
	g.ExitTransitional()
	assert.True(t, g.InTransition())

	g.ExitTransitional()
	assert.False(t, g.InTransition())
}

func TestGate_FileVisible(t *testing.T) {
	g := New(fakePending{7: true})

	raw, err := WithMode(context.Background(), ModeRawData)
	require.NoError(t, err)
	reliable, err := WithMode(context.Background(), ModeReliableOnly)
	require.NoError(t, err)

	// Raw mode sees everything, pending or not
	assert.True(t, g.FileVisible(raw, 7))
	assert.True(t, g.FileVisible(raw, 8))

	// Reliable-only hides files still awaiting reindexing
	assert.False(t, g.FileVisible(reliable, 7))
	assert.True(t, g.FileVisible(reliable, 8))
}

func TestRunWithMode_PropagatesBodyError(t *testing.T) {
	sentinel := facerrors.NotReadyError("nope")

	err := RunWithMode(context.Background(), ModeRawData, func(ctx context.Context) error {
		assert.Equal(t, ModeRawData, ModeFrom(ctx))
		return sentinel
	})

	assert.Equal(t, sentinel, err)
}

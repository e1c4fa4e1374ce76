package extension

import (
	"context"

	"github.com/facetdb/facet/internal/vfs"
)

// Def is a declarative Extension built from plain fields, for index
// definitions that do not need their own type. The zero value is not
// usable; ID, Version, and ExtractFunc are required.
type Def struct {
	Name        ID
	Ver         int
	Caps        Capability
	Filter      Filter
	ExtractFunc func(ctx context.Context, in Input) (Mapping, error)
}

var _ Extension = (*Def)(nil)

func (d *Def) ID() ID                   { return d.Name }
func (d *Def) Version() int             { return d.Ver }
func (d *Def) Capabilities() Capability { return d.Caps }

func (d *Def) Accepts(ref vfs.FileRef) bool {
	if d.Filter == nil {
		return true
	}
	return d.Filter(ref)
}

func (d *Def) Extract(ctx context.Context, in Input) (Mapping, error) {
	return d.ExtractFunc(ctx, in)
}

package ports

import (
	"context"

	"metaboqc/domain/compound"
)

// CompoundCatalogue looks up reference compounds by m/z, retention time and
// ionisation.
type CompoundCatalogue interface {
	Lookup(ctx context.Context, q compound.Query) ([]compound.Match, error)
	Import(ctx context.Context, compounds []compound.Compound) (int, error)
	Count(ctx context.Context) (int, error)
}

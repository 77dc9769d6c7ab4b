package dfw

import (
	"context"

	"github.com/Sergeydigl3/dfwctl/internal/nsx"
)

// Session is the transport the engine drives. *nsx.Client implements it; the
// surrounding CLI owns its lifecycle.
type Session interface {
	Read(ctx context.Context, res nsx.Resource, params nsx.Params) (*nsx.Response, error)
	Create(ctx context.Context, res nsx.Resource, params nsx.Params, body []byte, tag string) (*nsx.Response, error)
	Update(ctx context.Context, res nsx.Resource, params nsx.Params, body []byte, tag string) (*nsx.Response, error)
	Delete(ctx context.Context, res nsx.Resource, params nsx.Params, tag string) error
}

var _ Session = (*nsx.Client)(nil)

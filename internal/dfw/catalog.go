package dfw

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/Sergeydigl3/dfwctl/internal/nsx"
)

// CatalogEntry is a named object of the manager's inventory.
type CatalogEntry struct {
	ID   string
	Name string
}

// Catalog resolves human-readable names of services, logical switches and edges
// to manager object ids.
type Catalog struct {
	session Session
	logger  *slog.Logger
}

// NewCatalog creates a catalog reading from session.
func NewCatalog(session Session, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Catalog{session: session, logger: logger}
}

// listing describes where a catalog keeps its entries in the response document.
type listing struct {
	kind     string
	resource nsx.Resource
	params   nsx.Params
	path     []string
}

var (
	servicesListing = listing{
		kind:     "service",
		resource: nsx.Services,
		path:     []string{"list", "application"},
	}
	logicalSwitchesListing = listing{
		kind:     "logical switch",
		resource: nsx.LogicalSwitches,
		params:   nsx.Params{"startindex": "0", "pagesize": "1024"},
		path:     []string{"virtualWires", "dataPage", "virtualWire"},
	}
	edgesListing = listing{
		kind:     "edge",
		resource: nsx.Edges,
		params:   nsx.Params{"startIndex": "0", "pageSize": "1024"},
		path:     []string{"pagedEdgeList", "edgePage", "edgeSummary"},
	}
)

func (c *Catalog) list(ctx context.Context, l listing) ([]CatalogEntry, error) {
	resp, err := c.session.Read(ctx, l.resource, l.params)
	if err != nil {
		return nil, upstream("list "+l.kind+"s", "", err)
	}

	recs := []Record{resp.Body}
	for i, key := range l.path {
		var next []Record
		for _, rec := range recs {
			children, err := Records(rec[key])
			if err != nil {
				return nil, &Error{Op: "list " + l.kind + "s", Kind: ErrUpstream, Err: errors.Wrapf(err, "element %q", key)}
			}
			next = append(next, children...)
		}
		recs = next
		if len(recs) == 0 {
			c.logger.Debug("empty catalog listing", slog.String("kind", l.kind), slog.Int("depth", i))
			return nil, nil
		}
	}

	entries := make([]CatalogEntry, 0, len(recs))
	for _, rec := range recs {
		entries = append(entries, CatalogEntry{ID: text(rec, "objectId"), Name: text(rec, "name")})
	}
	return entries, nil
}

func (c *Catalog) idByName(ctx context.Context, l listing, name string) (string, error) {
	entries, err := c.list(ctx, l)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.Name == name {
			return e.ID, nil
		}
	}
	return "", newError("resolve "+l.kind, name, ErrNotFound, "")
}

func (c *Catalog) exists(ctx context.Context, l listing, id string) (bool, error) {
	entries, err := c.list(ctx, l)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.ID == id {
			return true, nil
		}
	}
	return false, nil
}

// ServiceID resolves a service name of the global scope.
func (c *Catalog) ServiceID(ctx context.Context, name string) (string, error) {
	return c.idByName(ctx, servicesListing, name)
}

// LogicalSwitchID resolves a logical switch name.
func (c *Catalog) LogicalSwitchID(ctx context.Context, name string) (string, error) {
	return c.idByName(ctx, logicalSwitchesListing, name)
}

// LogicalSwitchExists reports whether a logical switch with the id exists.
func (c *Catalog) LogicalSwitchExists(ctx context.Context, id string) (bool, error) {
	return c.exists(ctx, logicalSwitchesListing, id)
}

// EdgeID resolves an edge name.
func (c *Catalog) EdgeID(ctx context.Context, name string) (string, error) {
	return c.idByName(ctx, edgesListing, name)
}

// EdgeExists reports whether an edge with the id exists.
func (c *Catalog) EdgeExists(ctx context.Context, id string) (bool, error) {
	return c.exists(ctx, edgesListing, id)
}

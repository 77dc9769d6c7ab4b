package dfw

import (
	"context"
	"net"
	"strings"
)

// EndpointSpec describes the source or destination of a new rule. An empty
// value (or "any") with the address type means "any".
type EndpointSpec struct {
	Type     string
	Value    string
	Name     string
	Excluded bool
}

// ServiceSpec describes the service of a new rule: either a catalog name or a
// protocol with optional ports. Both empty (or Name "any") means any service.
type ServiceSpec struct {
	Name            string
	ProtocolName    string
	SourcePort      string
	DestinationPort string
}

// ApplyToSpec describes the applied-to scope of a new rule.
type ApplyToSpec struct {
	Type string
	ID   string
	Name string
}

// RuleSpec holds the caller's choices for a new rule. Zero fields take the
// template defaults.
type RuleSpec struct {
	SectionID   string
	SectionName string

	Name        string
	Action      string
	Direction   string
	PacketType  string
	Disabled    bool
	Logged      bool
	Notes       string
	Tag         string
	Source      EndpointSpec
	Destination EndpointSpec
	Service     ServiceSpec
	ApplyTo     ApplyToSpec
}

// defaultRule is the template every created rule starts from.
func defaultRule() Rule {
	return Rule{
		Action:     ActionAllow,
		Direction:  DirectionInOut,
		PacketType: PacketAny,
		AppliedTo: []ApplyTarget{{
			Type:  TypeDistributedFirewall,
			Value: TypeDistributedFirewall,
			Name:  TypeDistributedFirewall,
		}},
	}
}

// buildRule applies spec over the template, validating enumerations and
// resolving names through the catalog.
func buildRule(ctx context.Context, catalog *Catalog, spec RuleSpec) (Rule, error) {
	r := defaultRule()
	r.Name = spec.Name
	r.Disabled = spec.Disabled
	r.Logged = spec.Logged
	r.Notes = spec.Notes
	r.Tag = spec.Tag

	var err error
	if spec.Action != "" {
		if r.Action, err = ParseAction(spec.Action); err != nil {
			return Rule{}, err
		}
	}
	if spec.Direction != "" {
		if r.Direction, err = ParseDirection(spec.Direction); err != nil {
			return Rule{}, err
		}
	}
	if spec.PacketType != "" {
		if r.PacketType, err = ParsePacketType(spec.PacketType); err != nil {
			return Rule{}, err
		}
	}

	if r.AppliedTo, err = buildApplyTo(ctx, catalog, spec.ApplyTo); err != nil {
		return Rule{}, err
	}
	if r.Sources, err = buildEndpoints(ctx, catalog, "source", spec.Source); err != nil {
		return Rule{}, err
	}
	if r.Destinations, err = buildEndpoints(ctx, catalog, "destination", spec.Destination); err != nil {
		return Rule{}, err
	}

	svc := spec.Service
	switch {
	case svc.Name == "any" || (svc.Name == "" && svc.ProtocolName == ""):
		r.Services = nil
	case svc.Name != "":
		id, err := catalog.ServiceID(ctx, svc.Name)
		if err != nil {
			return Rule{}, err
		}
		r.Services = []Service{{Name: svc.Name, Value: id, Type: TypeApplication}}
	default:
		r.Services = []Service{{
			ProtocolName:    strings.ToUpper(svc.ProtocolName),
			SourcePort:      svc.SourcePort,
			DestinationPort: svc.DestinationPort,
		}}
	}

	return r, nil
}

func buildApplyTo(ctx context.Context, catalog *Catalog, spec ApplyToSpec) ([]ApplyTarget, error) {
	const op = "create rule"
	typ := spec.Type
	if typ == "" {
		typ = TypeDistributedFirewall
	}

	switch typ {
	case TypeDistributedFirewall:
		return defaultRule().AppliedTo, nil
	case TypeEdge, TypeVirtualWire:
	default:
		return nil, newError(op, "applyto", ErrInvalidArgument,
			"type %q must be %s, %s or %s", typ, TypeEdge, TypeVirtualWire, TypeDistributedFirewall)
	}

	if spec.Name == "" && spec.ID == "" {
		return nil, newError(op, "applyto", ErrInvalidArgument, "type %s requires a name or an id", typ)
	}

	target := ApplyTarget{Type: typ, Name: spec.Name}
	if spec.Name != "" {
		var id string
		var err error
		if typ == TypeEdge {
			id, err = catalog.EdgeID(ctx, spec.Name)
		} else {
			id, err = catalog.LogicalSwitchID(ctx, spec.Name)
		}
		if err != nil {
			return nil, err
		}
		target.Value = id
		return []ApplyTarget{target}, nil
	}

	var ok bool
	var err error
	if typ == TypeEdge {
		ok, err = catalog.EdgeExists(ctx, spec.ID)
	} else {
		ok, err = catalog.LogicalSwitchExists(ctx, spec.ID)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, newError(op, spec.ID, ErrNotFound, "no %s with this id", typ)
	}
	target.Value = spec.ID
	return []ApplyTarget{target}, nil
}

func buildEndpoints(ctx context.Context, catalog *Catalog, clause string, spec EndpointSpec) (*EndpointSet, error) {
	const op = "create rule"
	typ := spec.Type
	if typ == "" {
		typ = TypeIPv4Address
	}

	switch typ {
	case TypeIPv4Address:
		if spec.Value == "" || spec.Value == "any" {
			return nil, nil
		}
		if !validNetwork(spec.Value) {
			return nil, newError(op, clause, ErrInvalidArgument, "value %q must be an address or subnet x.x.x.x/y", spec.Value)
		}
		return &EndpointSet{Excluded: spec.Excluded, Entries: []Endpoint{{Type: typ, Value: spec.Value}}}, nil

	case TypeVirtualWire:
		e := Endpoint{Type: typ, Name: spec.Name}
		if spec.Name != "" {
			id, err := catalog.LogicalSwitchID(ctx, spec.Name)
			if err != nil {
				return nil, err
			}
			e.Value = id
		} else {
			ok, err := catalog.LogicalSwitchExists(ctx, spec.Value)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, newError(op, clause, ErrNotFound, "no logical switch with id %q", spec.Value)
			}
			e.Value = spec.Value
		}
		return &EndpointSet{Excluded: spec.Excluded, Entries: []Endpoint{e}}, nil
	}

	return nil, newError(op, clause, ErrInvalidArgument, "type %q must be %s or %s", typ, TypeVirtualWire, TypeIPv4Address)
}

// validNetwork accepts a single IPv4 address or an IPv4 CIDR.
func validNetwork(v string) bool {
	if ip, _, err := net.ParseCIDR(v); err == nil {
		return ip.To4() != nil
	}
	ip := net.ParseIP(v)
	return ip != nil && ip.To4() != nil
}

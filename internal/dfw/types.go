// Package dfw implements the distributed firewall section and rule engine:
// normalization of the manager's responses, read-only indexes over sections and
// rules, clause editing, and optimistic read-modify-write cycles.
package dfw

import (
	"strings"

	"github.com/Sergeydigl3/dfwctl/internal/nsx"
)

// SectionType is the rule class a section belongs to.
type SectionType string

// Section types, in the manager's global evaluation order.
const (
	LayerTwo           SectionType = "LAYER2"
	LayerThree         SectionType = "LAYER3"
	LayerThreeRedirect SectionType = "L3REDIRECT"
)

// SectionTypes lists every section type in display and evaluation order.
var SectionTypes = []SectionType{LayerTwo, LayerThree, LayerThreeRedirect}

// ParseSectionType accepts the short CLI names (L2, L3, L3R) and the manager's names.
func ParseSectionType(s string) (SectionType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "L2", "LAYER2":
		return LayerTwo, nil
	case "L3", "LAYER3":
		return LayerThree, nil
	case "L3R", "L3REDIRECT", "LAYER3REDIRECT":
		return LayerThreeRedirect, nil
	}
	return "", newError("parse section type", s, ErrInvalidArgument, "allowed values are L2, L3, L3R")
}

// Short returns the CLI name of the type.
func (t SectionType) Short() string {
	switch t {
	case LayerTwo:
		return "L2"
	case LayerThree:
		return "L3"
	case LayerThreeRedirect:
		return "L3R"
	}
	return string(t)
}

// DefaultSectionName is the name of the undeletable section of this type.
func (t SectionType) DefaultSectionName() string {
	switch t {
	case LayerTwo:
		return "Default Section Layer2"
	case LayerThree:
		return "Default Section Layer3"
	}
	return "Default Section"
}

func (t SectionType) containerKey() string {
	switch t {
	case LayerTwo:
		return "layer2Sections"
	case LayerThree:
		return "layer3Sections"
	}
	return "layer3RedirectSections"
}

type sectionResources struct {
	sections nsx.Resource
	section  nsx.Resource
	rules    nsx.Resource
	rule     nsx.Resource
}

func (t SectionType) resources() sectionResources {
	switch t {
	case LayerTwo:
		return sectionResources{nsx.L2Sections, nsx.L2Section, nsx.L2Rules, nsx.L2Rule}
	case LayerThree:
		return sectionResources{nsx.L3Sections, nsx.L3Section, nsx.L3Rules, nsx.L3Rule}
	}
	return sectionResources{nsx.L3RedirectSections, nsx.L3RedirectSection, nsx.L3RedirectRules, nsx.L3RedirectRule}
}

// DefaultRuleName is the reserved name of the last rule of every default section.
const DefaultRuleName = "Default Rule"

// Action is what a rule does with matching traffic.
type Action string

const (
	ActionAllow  Action = "allow"
	ActionReject Action = "reject"
	ActionDeny   Action = "deny"
)

// ParseAction validates an action; "block" is accepted as deny.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "allow":
		return ActionAllow, nil
	case "reject":
		return ActionReject, nil
	case "deny", "block":
		return ActionDeny, nil
	}
	return "", newError("parse action", s, ErrInvalidArgument, "must be allow, reject or deny")
}

// Direction is the traffic direction a rule matches.
type Direction string

const (
	DirectionIn    Direction = "in"
	DirectionOut   Direction = "out"
	DirectionInOut Direction = "inout"
)

func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(s))); d {
	case DirectionIn, DirectionOut, DirectionInOut:
		return d, nil
	}
	return "", newError("parse direction", s, ErrInvalidArgument, "must be in, out or inout")
}

// PacketType is the IP family a rule matches.
type PacketType string

const (
	PacketIPv4 PacketType = "ipv4"
	PacketIPv6 PacketType = "ipv6"
	PacketAny  PacketType = "any"
)

func ParsePacketType(s string) (PacketType, error) {
	switch p := PacketType(strings.ToLower(strings.TrimSpace(s))); p {
	case PacketIPv4, PacketIPv6, PacketAny:
		return p, nil
	}
	return "", newError("parse packet type", s, ErrInvalidArgument, "must be ipv4, ipv6 or any")
}

// ClauseKind selects the rule clause an edit applies to.
type ClauseKind string

const (
	ClauseSource      ClauseKind = "source"
	ClauseDestination ClauseKind = "destination"
	ClauseService     ClauseKind = "service"
	ClauseApplyTo     ClauseKind = "applyto"
)

// element returns the container and entry element names of the clause.
func (k ClauseKind) element() (container, item string) {
	switch k {
	case ClauseSource:
		return "sources", "source"
	case ClauseDestination:
		return "destinations", "destination"
	case ClauseService:
		return "services", "service"
	case ClauseApplyTo:
		return "appliedToList", "appliedTo"
	}
	return "", ""
}

func ParseClauseKind(s string) (ClauseKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "source", "src":
		return ClauseSource, nil
	case "destination", "dst":
		return ClauseDestination, nil
	case "service", "srv":
		return ClauseService, nil
	case "applyto", "apply-to", "appliedto":
		return ClauseApplyTo, nil
	}
	return "", newError("parse clause kind", s, ErrInvalidArgument, "must be source, destination, service or applyto")
}

// Endpoint and apply-to object types.
const (
	TypeIPv4Address         = "Ipv4Address"
	TypeIPv6Address         = "Ipv6Address"
	TypeVirtualWire         = "VirtualWire"
	TypeEdge                = "Edge"
	TypeApplication         = "Application"
	TypeDistributedFirewall = "DISTRIBUTED_FIREWALL"
)

// addressLike reports whether entries of this type are matched by value.
func addressLike(typ string) bool {
	return typ == TypeIPv4Address || typ == TypeIPv6Address
}

// Endpoint is one source or destination entry.
type Endpoint struct {
	Type  string `json:"type" yaml:"type"`
	Value string `json:"value" yaml:"value"`
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
}

// EndpointSet is a present sources or destinations container. A nil set means "any".
type EndpointSet struct {
	Excluded bool       `json:"excluded" yaml:"excluded"`
	Entries  []Endpoint `json:"entries" yaml:"entries"`
}

func (s *EndpointSet) clone() *EndpointSet {
	if s == nil {
		return nil
	}
	return &EndpointSet{Excluded: s.Excluded, Entries: append([]Endpoint(nil), s.Entries...)}
}

// Service is either a reference to a catalog service (Name/Value) or a
// protocol with optional ports.
type Service struct {
	Name            string `json:"name,omitempty" yaml:"name,omitempty"`
	Value           string `json:"value,omitempty" yaml:"value,omitempty"`
	Type            string `json:"type,omitempty" yaml:"type,omitempty"`
	ProtocolName    string `json:"protocolName,omitempty" yaml:"protocolName,omitempty"`
	Protocol        string `json:"protocol,omitempty" yaml:"protocol,omitempty"`
	SourcePort      string `json:"sourcePort,omitempty" yaml:"sourcePort,omitempty"`
	DestinationPort string `json:"destinationPort,omitempty" yaml:"destinationPort,omitempty"`
}

// ApplyTarget is one entry of a rule's applied-to list.
type ApplyTarget struct {
	Type  string `json:"type" yaml:"type"`
	Value string `json:"value" yaml:"value"`
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
}

// IsDistributedFirewall reports whether the target is the whole-firewall sentinel.
func (a ApplyTarget) IsDistributedFirewall() bool {
	return a.Type == TypeDistributedFirewall || a.Value == TypeDistributedFirewall
}

// Rule is one firewall rule. Rules are values: edits return modified copies.
type Rule struct {
	ID           string        `json:"id" yaml:"id"`
	Name         string        `json:"name" yaml:"name"`
	SectionID    string        `json:"sectionId" yaml:"sectionId"`
	Action       Action        `json:"action" yaml:"action"`
	Direction    Direction     `json:"direction" yaml:"direction"`
	PacketType   PacketType    `json:"packetType" yaml:"packetType"`
	Disabled     bool          `json:"disabled" yaml:"disabled"`
	Logged       bool          `json:"logged" yaml:"logged"`
	Sources      *EndpointSet  `json:"sources,omitempty" yaml:"sources,omitempty"`
	Destinations *EndpointSet  `json:"destinations,omitempty" yaml:"destinations,omitempty"`
	Services     []Service     `json:"services,omitempty" yaml:"services,omitempty"`
	AppliedTo    []ApplyTarget `json:"appliedTo" yaml:"appliedTo"`
	Notes        string        `json:"notes,omitempty" yaml:"notes,omitempty"`
	Tag          string        `json:"tag,omitempty" yaml:"tag,omitempty"`
}

// Clone returns a deep copy of the rule.
func (r Rule) Clone() Rule {
	out := r
	out.Sources = r.Sources.clone()
	out.Destinations = r.Destinations.clone()
	if r.Services != nil {
		out.Services = append([]Service(nil), r.Services...)
	}
	if r.AppliedTo != nil {
		out.AppliedTo = append([]ApplyTarget(nil), r.AppliedTo...)
	}
	return out
}

// IsDefault reports whether the rule is a reserved default rule.
func (r Rule) IsDefault() bool {
	return r.Name == DefaultRuleName
}

// Section is an ordered container of rules of one type.
type Section struct {
	ID         string      `json:"id" yaml:"id"`
	Name       string      `json:"name" yaml:"name"`
	Type       SectionType `json:"type" yaml:"type"`
	VersionTag string      `json:"versionTag,omitempty" yaml:"versionTag,omitempty"`
	Rules      []Rule      `json:"rules,omitempty" yaml:"rules,omitempty"`
}

const emptyName = "<empty name>"

// DisplayName returns the name, or a placeholder for unnamed sections.
func (s Section) DisplayName() string {
	if s.Name == "" {
		return emptyName
	}
	return s.Name
}

// IsDefault reports whether the section is the default section of its type.
func (s Section) IsDefault() bool {
	return s.Name == s.Type.DefaultSectionName()
}

// SectionGroup holds the sections of one type in manager order.
type SectionGroup struct {
	Type     SectionType `json:"type" yaml:"type"`
	Sections []Section   `json:"sections" yaml:"sections"`
}

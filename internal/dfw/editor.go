package dfw

import (
	"strings"
)

const anyPort = "any"

// ServiceCriterion identifies services to remove: a catalog service name, or a
// protocol with source and destination ports.
type ServiceCriterion struct {
	Protocol        string
	SourcePort      string
	DestinationPort string
}

// ParseServiceCriterion parses "protocol:sourcePort:destinationPort". Missing or
// empty segments default to "any", so "TCP::8080" and "TCP:any:8080" are equal.
func ParseServiceCriterion(s string) ServiceCriterion {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 3)
	for len(parts) < 3 {
		parts = append(parts, "")
	}
	for i := 1; i < 3; i++ {
		if parts[i] == "" {
			parts[i] = anyPort
		}
	}
	return ServiceCriterion{
		Protocol:        parts[0],
		SourcePort:      parts[1],
		DestinationPort: parts[2],
	}
}

func (c ServiceCriterion) String() string {
	return c.Protocol + ":" + c.SourcePort + ":" + c.DestinationPort
}

// Matches reports whether svc is selected: its name equals the first segment, or
// its protocol and ports equal the criterion with absent ports read as "any".
func (c ServiceCriterion) Matches(svc Service) bool {
	if svc.Name != "" && svc.Name == c.Protocol {
		return true
	}
	if svc.ProtocolName == "" || svc.ProtocolName != c.Protocol {
		return false
	}
	return portOrAny(svc.SourcePort) == c.SourcePort &&
		portOrAny(svc.DestinationPort) == c.DestinationPort
}

func portOrAny(p string) string {
	if p == "" {
		return anyPort
	}
	return p
}

// endpointMatches selects address entries by value and any entry by name.
func endpointMatches(e Endpoint, criterion string) bool {
	if addressLike(e.Type) && e.Value == criterion {
		return true
	}
	return e.Name != "" && e.Name == criterion
}

// applyTargetMatches selects applied-to entries by name.
func applyTargetMatches(a ApplyTarget, criterion string) bool {
	return a.Name != "" && a.Name == criterion
}

// RemoveEndpoints removes every source or destination entry matching criterion.
// An absent container is "any" and is returned unchanged. A container left
// without entries is dropped.
func RemoveEndpoints(r Rule, kind ClauseKind, criterion string) (Rule, int, error) {
	out := r.Clone()

	var set **EndpointSet
	switch kind {
	case ClauseSource:
		set = &out.Sources
	case ClauseDestination:
		set = &out.Destinations
	default:
		return r, 0, newError("remove endpoint", r.ID, ErrInvalidArgument, "clause %q is not an endpoint clause", kind)
	}
	if *set == nil {
		return r, 0, nil
	}

	kept := make([]Endpoint, 0, len((*set).Entries))
	for _, e := range (*set).Entries {
		if !endpointMatches(e, criterion) {
			kept = append(kept, e)
		}
	}
	removed := len((*set).Entries) - len(kept)
	if removed == 0 {
		return r, 0, nil
	}

	if len(kept) == 0 {
		*set = nil
	} else {
		(*set).Entries = kept
	}
	return out, removed, nil
}

// RemoveServices removes every service matching c, dropping the container when
// it ends up empty.
func RemoveServices(r Rule, c ServiceCriterion) (Rule, int) {
	if r.Services == nil {
		return r, 0
	}

	var kept []Service
	for _, s := range r.Services {
		if !c.Matches(s) {
			kept = append(kept, s)
		}
	}
	removed := len(r.Services) - len(kept)
	if removed == 0 {
		return r, 0
	}

	out := r.Clone()
	out.Services = kept
	return out, removed
}

// RemoveApplyTargets removes every applied-to entry named criterion. The
// distributed firewall target and the last remaining entry cannot be removed.
func RemoveApplyTargets(r Rule, criterion string) (Rule, int, error) {
	var kept []ApplyTarget
	for _, a := range r.AppliedTo {
		if applyTargetMatches(a, criterion) {
			if a.IsDistributedFirewall() {
				return r, 0, newError("remove apply-to", r.ID, ErrProtectedObject,
					"the %s target can only be removed by deleting the rule", TypeDistributedFirewall)
			}
			continue
		}
		kept = append(kept, a)
	}

	removed := len(r.AppliedTo) - len(kept)
	if removed == 0 {
		return r, 0, nil
	}
	if len(kept) == 0 {
		return r, 0, newError("remove apply-to", r.ID, ErrProtectedObject, "cannot remove sole apply-to target %q", criterion)
	}

	out := r.Clone()
	out.AppliedTo = kept
	return out, removed, nil
}

// RemoveClause dispatches to the editor of the given clause kind.
func RemoveClause(r Rule, kind ClauseKind, criterion string) (Rule, int, error) {
	switch kind {
	case ClauseSource, ClauseDestination:
		return RemoveEndpoints(r, kind, criterion)
	case ClauseService:
		out, n := RemoveServices(r, ParseServiceCriterion(criterion))
		return out, n, nil
	case ClauseApplyTo:
		return RemoveApplyTargets(r, criterion)
	}
	return r, 0, newError("remove clause", r.ID, ErrInvalidArgument, "unknown clause kind %q", kind)
}

// clauseSelection reports, for each entry of the clause in document order,
// whether criterion selects it.
func clauseSelection(r Rule, kind ClauseKind, criterion string) []bool {
	var selected []bool
	switch kind {
	case ClauseSource, ClauseDestination:
		set := r.Sources
		if kind == ClauseDestination {
			set = r.Destinations
		}
		if set != nil {
			for _, e := range set.Entries {
				selected = append(selected, endpointMatches(e, criterion))
			}
		}
	case ClauseService:
		c := ParseServiceCriterion(criterion)
		for _, s := range r.Services {
			selected = append(selected, c.Matches(s))
		}
	case ClauseApplyTo:
		for _, a := range r.AppliedTo {
			selected = append(selected, applyTargetMatches(a, criterion))
		}
	}
	return selected
}

// MoveAbove returns a copy of the section with rule ruleID placed directly above
// baseID. The default rule stays where it is.
func MoveAbove(s Section, ruleID, baseID string) (Section, error) {
	if ruleID == baseID {
		return s, newError("move rule", ruleID, ErrInvalidArgument, "a rule cannot be moved above itself")
	}

	from, to := -1, -1
	for i, r := range s.Rules {
		switch r.ID {
		case ruleID:
			from = i
		case baseID:
			to = i
		}
	}
	if from < 0 {
		return s, newError("move rule", ruleID, ErrNotFound, "rule is not in section %s", s.ID)
	}
	if to < 0 {
		return s, newError("move rule", ruleID, ErrNotFound, "base rule %s is not in section %s", baseID, s.ID)
	}
	if s.Rules[from].IsDefault() {
		return s, newError("move rule", ruleID, ErrProtectedObject, "the default rule cannot be moved")
	}

	moving := s.Rules[from]
	rules := make([]Rule, 0, len(s.Rules))
	for i, r := range s.Rules {
		if i == from {
			continue
		}
		if i == to {
			rules = append(rules, moving)
		}
		rules = append(rules, r)
	}

	out := s
	out.Rules = rules
	return out, nil
}

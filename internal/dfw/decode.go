package dfw

import (
	"github.com/pkg/errors"
)

// sectionFromRecord decodes a <section> element. typ is used when the element
// carries no type attribute.
func sectionFromRecord(rec Record, typ SectionType) (Section, error) {
	s := Section{
		ID:   attr(rec, "id"),
		Name: attr(rec, "name"),
		Type: typ,
	}
	if raw := attr(rec, "type"); raw != "" {
		t, err := ParseSectionType(raw)
		if err != nil {
			return Section{}, errors.Errorf("section %s: unknown type %q", s.ID, raw)
		}
		s.Type = t
	}

	rules, err := Records(rec["rule"])
	if err != nil {
		return Section{}, errors.Wrapf(err, "section %s", s.ID)
	}
	for _, r := range rules {
		rule, err := ruleFromRecord(r)
		if err != nil {
			return Section{}, errors.Wrapf(err, "section %s", s.ID)
		}
		if rule.SectionID == "" {
			rule.SectionID = s.ID
		}
		s.Rules = append(s.Rules, rule)
	}

	return s, nil
}

// ruleFromRecord decodes a <rule> element.
func ruleFromRecord(rec Record) (Rule, error) {
	r := Rule{
		ID:         attr(rec, "id"),
		Name:       text(rec, "name"),
		SectionID:  text(rec, "sectionId"),
		Action:     Action(text(rec, "action")),
		Direction:  Direction(text(rec, "direction")),
		PacketType: PacketType(text(rec, "packetType")),
		Disabled:   boolAttr(rec, "disabled"),
		Logged:     boolAttr(rec, "logged"),
		Notes:      text(rec, "notes"),
		Tag:        text(rec, "tag"),
	}
	if r.Direction == "" {
		r.Direction = DirectionInOut
	}
	if r.PacketType == "" {
		r.PacketType = PacketAny
	}

	var err error
	if r.Sources, err = endpointSetFromRecord(rec, "sources", "source"); err != nil {
		return Rule{}, errors.Wrapf(err, "rule %s", r.ID)
	}
	if r.Destinations, err = endpointSetFromRecord(rec, "destinations", "destination"); err != nil {
		return Rule{}, errors.Wrapf(err, "rule %s", r.ID)
	}

	services, err := ChildRecords(rec, "services", "service")
	if err != nil {
		return Rule{}, errors.Wrapf(err, "rule %s", r.ID)
	}
	for _, s := range services {
		r.Services = append(r.Services, Service{
			Name:            text(s, "name"),
			Value:           text(s, "value"),
			Type:            text(s, "type"),
			ProtocolName:    text(s, "protocolName"),
			Protocol:        text(s, "protocol"),
			SourcePort:      text(s, "sourcePort"),
			DestinationPort: text(s, "destinationPort"),
		})
	}

	targets, err := ChildRecords(rec, "appliedToList", "appliedTo")
	if err != nil {
		return Rule{}, errors.Wrapf(err, "rule %s", r.ID)
	}
	for _, a := range targets {
		r.AppliedTo = append(r.AppliedTo, ApplyTarget{
			Type:  text(a, "type"),
			Value: text(a, "value"),
			Name:  text(a, "name"),
		})
	}

	return r, nil
}

// endpointSetFromRecord decodes a sources/destinations container. An absent or
// empty container reads as nil, i.e. "any".
func endpointSetFromRecord(rec Record, container, item string) (*EndpointSet, error) {
	parent, err := child(rec, container)
	if err != nil || parent == nil {
		return nil, err
	}
	entries, err := Records(parent[item])
	if err != nil {
		return nil, errors.Wrapf(err, "element %q", container)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	set := &EndpointSet{Excluded: boolAttr(parent, "excluded")}
	for _, e := range entries {
		set.Entries = append(set.Entries, Endpoint{
			Type:  text(e, "type"),
			Value: text(e, "value"),
			Name:  text(e, "name"),
		})
	}
	return set, nil
}

// configGroups decodes a <firewallConfiguration> body into one group per type.
func configGroups(body Record) ([]SectionGroup, error) {
	cfg, err := child(body, "firewallConfiguration")
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, errors.New("response has no firewallConfiguration element")
	}

	groups := make([]SectionGroup, 0, len(SectionTypes))
	for _, typ := range SectionTypes {
		recs, err := ChildRecords(cfg, typ.containerKey(), "section")
		if err != nil {
			return nil, errors.Wrapf(err, "%s sections", typ)
		}
		group := SectionGroup{Type: typ}
		for _, rec := range recs {
			s, err := sectionFromRecord(rec, typ)
			if err != nil {
				return nil, err
			}
			group.Sections = append(group.Sections, s)
		}
		groups = append(groups, group)
	}
	return groups, nil
}

package dfw

import (
	"context"
	"log/slog"

	"github.com/clbanning/mxj/v2"
	"github.com/pkg/errors"

	"github.com/Sergeydigl3/dfwctl/internal/nsx"
)

// Snapshot is one read of the whole firewall configuration.
type Snapshot struct {
	Groups []SectionGroup

	// Raw is the decoded configuration document, for verbose display.
	Raw mxj.Map
}

// Group returns the group of the given type.
func (s *Snapshot) Group(typ SectionType) SectionGroup {
	for _, g := range s.Groups {
		if g.Type == typ {
			return g
		}
	}
	return SectionGroup{Type: typ}
}

// Rules flattens the rules of all sections, L2 first, then L3, then L3R,
// preserving the order inside each section.
func (s *Snapshot) Rules() []Rule {
	var out []Rule
	for _, typ := range SectionTypes {
		for _, sec := range s.Group(typ).Sections {
			out = append(out, sec.Rules...)
		}
	}
	return out
}

// SectionByID returns the section with the given id.
func (s *Snapshot) SectionByID(id string) (Section, bool) {
	for _, g := range s.Groups {
		for _, sec := range g.Sections {
			if sec.ID == id {
				return sec, true
			}
		}
	}
	return Section{}, false
}

// RuleByID returns the rule with the given id and the type of its section.
func (s *Snapshot) RuleByID(id string) (Rule, SectionType, bool) {
	for _, g := range s.Groups {
		for _, sec := range g.Sections {
			for _, r := range sec.Rules {
				if r.ID == id {
					return r, g.Type, true
				}
			}
		}
	}
	return Rule{}, "", false
}

// Index answers read-only queries over sections and rules. Every call reads the
// manager again; nothing is cached.
type Index struct {
	session Session
	logger  *slog.Logger
}

// NewIndex creates an index over session.
func NewIndex(session Session, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Index{session: session, logger: logger}
}

// Snapshot reads and normalizes the firewall configuration.
func (ix *Index) Snapshot(ctx context.Context) (*Snapshot, error) {
	resp, err := ix.session.Read(ctx, nsx.FirewallConfig, nil)
	if err != nil {
		return nil, upstream("read firewall configuration", "", err)
	}

	groups, err := configGroups(resp.Body)
	if err != nil {
		return nil, &Error{Op: "read firewall configuration", Kind: ErrUpstream, Err: err}
	}

	ix.logger.Debug("firewall configuration read",
		slog.Int("l2_sections", len(groups[0].Sections)),
		slog.Int("l3_sections", len(groups[1].Sections)),
		slog.Int("l3r_sections", len(groups[2].Sections)),
	)

	return &Snapshot{Groups: groups, Raw: resp.Body}, nil
}

// ListSections returns one group per section type in L2, L3, L3R order. Types
// without sections are returned as empty groups.
func (ix *Index) ListSections(ctx context.Context) ([]SectionGroup, error) {
	snap, err := ix.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Groups, nil
}

// ListRules returns every rule across all sections in global evaluation order.
func (ix *Index) ListRules(ctx context.Context) ([]Rule, error) {
	snap, err := ix.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Rules(), nil
}

// FindSectionByName returns the first section named name, in L2, L3, L3R order.
func (ix *Index) FindSectionByName(ctx context.Context, name string) (Section, error) {
	refs, err := ix.SectionsByName(ctx, name)
	if err != nil {
		return Section{}, err
	}
	if len(refs) == 0 {
		return Section{}, newError("find section", name, ErrNotFound, "")
	}
	return refs[0], nil
}

// SectionsByName returns every section named name. Names are not unique.
func (ix *Index) SectionsByName(ctx context.Context, name string) ([]Section, error) {
	snap, err := ix.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	var out []Section
	for _, typ := range SectionTypes {
		for _, sec := range snap.Group(typ).Sections {
			if sec.Name == name {
				out = append(out, sec)
			}
		}
	}
	return out, nil
}

// FindSectionByID returns the section with the given id and its type.
func (ix *Index) FindSectionByID(ctx context.Context, id string) (SectionType, Section, error) {
	snap, err := ix.Snapshot(ctx)
	if err != nil {
		return "", Section{}, err
	}
	sec, ok := snap.SectionByID(id)
	if !ok {
		return "", Section{}, newError("find section", id, ErrNotFound, "")
	}
	return sec.Type, sec, nil
}

// FindRuleByID returns the rule with the given id.
func (ix *Index) FindRuleByID(ctx context.Context, id string) (Rule, error) {
	snap, err := ix.Snapshot(ctx)
	if err != nil {
		return Rule{}, err
	}
	r, _, ok := snap.RuleByID(id)
	if !ok {
		return Rule{}, newError("find rule", id, ErrNotFound, "")
	}
	return r, nil
}

// FindRulesByName returns the ids of all rules named name in the section.
func (ix *Index) FindRulesByName(ctx context.Context, sectionID, name string) ([]string, error) {
	snap, err := ix.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	sec, ok := snap.SectionByID(sectionID)
	if !ok {
		return nil, newError("find rules", name, ErrNotFound, "section %s does not exist", sectionID)
	}

	var ids []string
	for _, r := range sec.Rules {
		if r.Name == name {
			ids = append(ids, r.ID)
		}
	}
	return ids, nil
}

// ReadSection reads one section with its rules and current version tag.
func (ix *Index) ReadSection(ctx context.Context, id string) (Section, error) {
	typ, _, err := ix.FindSectionByID(ctx, id)
	if err != nil {
		return Section{}, err
	}
	return ix.readSection(ctx, typ, id)
}

func (ix *Index) readSection(ctx context.Context, typ SectionType, id string) (Section, error) {
	sec, _, err := ix.fetchSection(ctx, typ, id)
	return sec, err
}

// fetchSection reads a section and also returns the response it was decoded
// from, for writes that edit the manager's document.
func (ix *Index) fetchSection(ctx context.Context, typ SectionType, id string) (Section, *nsx.Response, error) {
	resp, err := ix.session.Read(ctx, typ.resources().section, nsx.Params{"sectionId": id})
	if err != nil {
		return Section{}, nil, upstream("read section", id, err)
	}

	rec, err := child(resp.Body, "section")
	if err == nil && rec == nil {
		err = errors.New("response has no section element")
	}
	if err != nil {
		return Section{}, nil, &Error{Op: "read section", Object: id, Kind: ErrUpstream, Err: err}
	}

	sec, err := sectionFromRecord(rec, typ)
	if err != nil {
		return Section{}, nil, &Error{Op: "read section", Object: id, Kind: ErrUpstream, Err: err}
	}
	sec.VersionTag = resp.ETag
	return sec, resp, nil
}

// ReadRule reads one rule and the version tag the manager returned with it.
func (ix *Index) ReadRule(ctx context.Context, typ SectionType, sectionID, ruleID string) (Rule, string, error) {
	r, resp, err := ix.fetchRule(ctx, typ, sectionID, ruleID)
	if err != nil {
		return Rule{}, "", err
	}
	return r, resp.ETag, nil
}

func (ix *Index) fetchRule(ctx context.Context, typ SectionType, sectionID, ruleID string) (Rule, *nsx.Response, error) {
	resp, err := ix.session.Read(ctx, typ.resources().rule, nsx.Params{"sectionId": sectionID, "ruleId": ruleID})
	if err != nil {
		return Rule{}, nil, upstream("read rule", ruleID, err)
	}

	rec, err := child(resp.Body, "rule")
	if err == nil && rec == nil {
		err = errors.New("response has no rule element")
	}
	if err != nil {
		return Rule{}, nil, &Error{Op: "read rule", Object: ruleID, Kind: ErrUpstream, Err: err}
	}

	r, err := ruleFromRecord(rec)
	if err != nil {
		return Rule{}, nil, &Error{Op: "read rule", Object: ruleID, Kind: ErrUpstream, Err: err}
	}
	if r.SectionID == "" {
		r.SectionID = sectionID
	}
	return r, resp, nil
}

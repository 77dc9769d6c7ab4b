package dfw

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/Sergeydigl3/dfwctl/internal/nsx"
)

// Coordinator runs every mutation as one read-modify-write cycle: read the
// current record and its version tag, transform it, submit it with If-Match.
// A stale tag surfaces as ErrConcurrentModification; retrying is the caller's
// decision.
type Coordinator struct {
	session Session
	index   *Index
	catalog *Catalog
	logger  *slog.Logger
}

// NewCoordinator creates a coordinator over session.
func NewCoordinator(session Session, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Coordinator{
		session: session,
		index:   NewIndex(session, logger),
		catalog: NewCatalog(session, logger),
		logger:  logger,
	}
}

// Index returns the read side used by the coordinator.
func (c *Coordinator) Index() *Index {
	return c.index
}

// SectionResult is the outcome of CreateSection.
type SectionResult struct {
	Section Section `json:"section" yaml:"section"`

	// Existed is set when a section of the same type and name was already
	// present and nothing was created.
	Existed bool `json:"existed" yaml:"existed"`
}

// CreateSection creates an empty section of the given type on top of the
// existing ones.
func (c *Coordinator) CreateSection(ctx context.Context, name string, typ SectionType) (SectionResult, error) {
	const op = "create section"
	if name == "" {
		return SectionResult{}, newError(op, "", ErrInvalidArgument, "name is required")
	}

	snap, err := c.index.Snapshot(ctx)
	if err != nil {
		return SectionResult{}, err
	}
	for _, sec := range snap.Group(typ).Sections {
		if sec.Name == name {
			c.logger.Info("section already exists",
				slog.String("name", name),
				slog.String("id", sec.ID),
				slog.String("type", string(typ)),
			)
			return SectionResult{Section: sec, Existed: true}, nil
		}
	}

	body, err := encodeSection(Section{Name: name})
	if err != nil {
		return SectionResult{}, &Error{Op: op, Object: name, Kind: ErrInvalidArgument, Err: err}
	}

	resp, err := c.session.Create(ctx, typ.resources().sections, nil, body, "")
	if err != nil {
		return SectionResult{}, upstream(op, name, err)
	}

	sec := Section{ID: resp.ObjectID, Name: name, Type: typ}
	if rec, err := child(resp.Body, "section"); err == nil && rec != nil {
		if decoded, err := sectionFromRecord(rec, typ); err == nil {
			sec = decoded
		}
	}
	sec.VersionTag = resp.ETag

	c.logger.Info("section created",
		slog.String("name", sec.Name),
		slog.String("id", sec.ID),
		slog.String("type", string(sec.Type)),
	)
	return SectionResult{Section: sec}, nil
}

// DeleteSection deletes a section. Default sections are refused before any
// request is sent.
func (c *Coordinator) DeleteSection(ctx context.Context, id string) (Section, error) {
	const op = "delete section"

	typ, sec, err := c.index.FindSectionByID(ctx, id)
	if err != nil {
		return Section{}, err
	}
	if sec.IsDefault() {
		return sec, newError(op, id, ErrProtectedObject, "%q is the default %s section", sec.Name, typ)
	}

	current, err := c.index.readSection(ctx, typ, id)
	if err != nil {
		return sec, err
	}

	if err := c.session.Delete(ctx, typ.resources().section, nsx.Params{"sectionId": id}, current.VersionTag); err != nil {
		return sec, upstream(op, id, err)
	}

	c.logger.Info("section deleted", slog.String("id", id), slog.String("name", sec.Name), slog.String("type", string(typ)))
	return current, nil
}

// CreateRule creates a rule at the top of a LAYER3 section.
func (c *Coordinator) CreateRule(ctx context.Context, spec RuleSpec) (Rule, error) {
	const op = "create rule"

	snap, err := c.index.Snapshot(ctx)
	if err != nil {
		return Rule{}, err
	}

	var sec Section
	var ok bool
	switch {
	case spec.SectionName != "":
		for _, typ := range SectionTypes {
			for _, s := range snap.Group(typ).Sections {
				if !ok && s.Name == spec.SectionName {
					sec, ok = s, true
				}
			}
		}
		if !ok {
			return Rule{}, newError(op, spec.Name, ErrNotFound, "section %q does not exist", spec.SectionName)
		}
	case spec.SectionID != "":
		if sec, ok = snap.SectionByID(spec.SectionID); !ok {
			return Rule{}, newError(op, spec.Name, ErrNotFound, "section %s does not exist", spec.SectionID)
		}
	default:
		return Rule{}, newError(op, spec.Name, ErrInvalidArgument, "a section id or name is required")
	}
	if sec.Type != LayerThree {
		return Rule{}, newError(op, spec.Name, ErrInvalidArgument, "section %s is not a %s section", sec.ID, LayerThree)
	}

	rule, err := buildRule(ctx, c.catalog, spec)
	if err != nil {
		return Rule{}, err
	}
	rule.SectionID = sec.ID

	body, err := encodeRule(rule)
	if err != nil {
		return Rule{}, &Error{Op: op, Object: spec.Name, Kind: ErrInvalidArgument, Err: err}
	}

	current, err := c.index.readSection(ctx, sec.Type, sec.ID)
	if err != nil {
		return Rule{}, err
	}

	resp, err := c.session.Create(ctx, sec.Type.resources().rules, nsx.Params{"sectionId": sec.ID}, body, current.VersionTag)
	if err != nil {
		return Rule{}, upstream(op, spec.Name, err)
	}

	created := rule
	created.ID = resp.ObjectID
	if rec, err := child(resp.Body, "rule"); err == nil && rec != nil {
		if decoded, err := ruleFromRecord(rec); err == nil {
			created = decoded
		}
	}
	if created.ID == "" {
		return Rule{}, &Error{Op: op, Object: spec.Name, Kind: ErrUpstream, Err: errors.New("manager returned no rule id")}
	}
	if created.SectionID == "" {
		created.SectionID = sec.ID
	}

	c.logger.Info("rule created",
		slog.String("id", created.ID),
		slog.String("name", created.Name),
		slog.String("section_id", sec.ID),
	)
	return created, nil
}

// DeleteRule deletes a rule. Default rules are refused before any request is sent.
func (c *Coordinator) DeleteRule(ctx context.Context, id string) (Rule, error) {
	const op = "delete rule"

	snap, err := c.index.Snapshot(ctx)
	if err != nil {
		return Rule{}, err
	}
	rule, typ, ok := snap.RuleByID(id)
	if !ok {
		return Rule{}, newError(op, id, ErrNotFound, "")
	}
	if rule.IsDefault() {
		return rule, newError(op, id, ErrProtectedObject, "%q cannot be deleted", rule.Name)
	}

	current, err := c.index.readSection(ctx, typ, rule.SectionID)
	if err != nil {
		return rule, err
	}

	params := nsx.Params{"sectionId": rule.SectionID, "ruleId": id}
	if err := c.session.Delete(ctx, typ.resources().rule, params, current.VersionTag); err != nil {
		return rule, upstream(op, id, err)
	}

	c.logger.Info("rule deleted", slog.String("id", id), slog.String("name", rule.Name), slog.String("section_id", rule.SectionID))
	return rule, nil
}

// ClauseResult is the outcome of DeleteClause.
type ClauseResult struct {
	// Rule is the rule as read back after the edit.
	Rule Rule `json:"rule" yaml:"rule"`

	// Removed is the number of clause entries removed; zero means no write was made.
	Removed int `json:"removed" yaml:"removed"`
}

// DeleteClause removes the clause entries of kind matching criterion from a rule
// and returns the rule as read back from the manager. Only the matching entries
// are taken out of the document the manager returned; everything else is sent
// back as read.
func (c *Coordinator) DeleteClause(ctx context.Context, ruleID string, kind ClauseKind, criterion string) (ClauseResult, error) {
	op := "delete rule " + string(kind)
	if criterion == "" {
		return ClauseResult{}, newError(op, ruleID, ErrInvalidArgument, "a %s identifier is required", kind)
	}

	snap, err := c.index.Snapshot(ctx)
	if err != nil {
		return ClauseResult{}, err
	}
	found, typ, ok := snap.RuleByID(ruleID)
	if !ok {
		return ClauseResult{}, newError(op, ruleID, ErrNotFound, "")
	}
	if found.IsDefault() {
		return ClauseResult{Rule: found}, newError(op, ruleID, ErrProtectedObject, "%q cannot be modified", found.Name)
	}

	current, resp, err := c.index.fetchRule(ctx, typ, found.SectionID, ruleID)
	if err != nil {
		return ClauseResult{}, err
	}

	edited, removed, err := RemoveClause(current, kind, criterion)
	if err != nil {
		return ClauseResult{Rule: current}, err
	}
	if removed == 0 {
		c.logger.Info("no matching clause",
			slog.String("rule_id", ruleID),
			slog.String("clause", string(kind)),
			slog.String("criterion", criterion),
		)
		return ClauseResult{Rule: current}, nil
	}

	body, err := removeRuleEntries(resp.Raw, kind, clauseSelection(current, kind, criterion))
	if err != nil {
		return ClauseResult{Rule: current}, &Error{Op: op, Object: ruleID, Kind: ErrUpstream, Err: err}
	}

	params := nsx.Params{"sectionId": found.SectionID, "ruleId": ruleID}
	if _, err := c.session.Update(ctx, typ.resources().rule, params, body, resp.ETag); err != nil {
		return ClauseResult{Rule: current}, upstream(op, ruleID, err)
	}

	c.logger.Info("rule clause removed",
		slog.String("rule_id", ruleID),
		slog.String("clause", string(kind)),
		slog.String("criterion", criterion),
		slog.Int("removed", removed),
	)

	confirmed, _, err := c.index.ReadRule(ctx, typ, found.SectionID, ruleID)
	if err != nil {
		return ClauseResult{Rule: edited, Removed: removed}, err
	}
	return ClauseResult{Rule: confirmed, Removed: removed}, nil
}

// MoveRuleAbove moves a rule directly above another rule of the same section.
func (c *Coordinator) MoveRuleAbove(ctx context.Context, ruleID, baseID string) (Section, error) {
	const op = "move rule"

	snap, err := c.index.Snapshot(ctx)
	if err != nil {
		return Section{}, err
	}
	rule, typ, ok := snap.RuleByID(ruleID)
	if !ok {
		return Section{}, newError(op, ruleID, ErrNotFound, "")
	}
	base, _, ok := snap.RuleByID(baseID)
	if !ok {
		return Section{}, newError(op, ruleID, ErrNotFound, "base rule %s does not exist", baseID)
	}
	if rule.SectionID != base.SectionID {
		return Section{}, newError(op, ruleID, ErrInvalidArgument,
			"rule is in section %s, base rule %s is in section %s", rule.SectionID, baseID, base.SectionID)
	}

	current, resp, err := c.index.fetchSection(ctx, typ, rule.SectionID)
	if err != nil {
		return Section{}, err
	}

	moved, err := MoveAbove(current, ruleID, baseID)
	if err != nil {
		return current, err
	}

	ids := make([]string, 0, len(moved.Rules))
	for _, r := range moved.Rules {
		ids = append(ids, r.ID)
	}
	body, err := reorderSectionRules(resp.Raw, ids)
	if err != nil {
		return current, &Error{Op: op, Object: ruleID, Kind: ErrUpstream, Err: err}
	}

	params := nsx.Params{"sectionId": current.ID}
	if _, err := c.session.Update(ctx, typ.resources().section, params, body, current.VersionTag); err != nil {
		return current, upstream(op, ruleID, err)
	}

	c.logger.Info("rule moved",
		slog.String("rule_id", ruleID),
		slog.String("above", baseID),
		slog.String("section_id", current.ID),
	)

	return c.index.readSection(ctx, typ, current.ID)
}

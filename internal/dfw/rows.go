package dfw

import (
	"strings"
)

// Table is a titled grid of display cells.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

var (
	SectionHeaders       = []string{"Name", "ID", "Type"}
	SectionDetailHeaders = []string{"Name", "ID", "Type", "Etag"}
	RuleHeaders          = []string{
		"ID", "Name", "Source", "Destination", "Service",
		"Action", "Direction", "Packet Type", "Applied-To", "ID (Section)",
	}
)

const placeholderCell = "---"

// SectionTables renders one table per section type. A type without sections
// gets a single placeholder row.
func SectionTables(groups []SectionGroup) []Table {
	tables := make([]Table, 0, len(groups))
	for _, g := range groups {
		t := Table{Title: g.Type.Short() + " Sections", Headers: SectionHeaders}
		for _, s := range g.Sections {
			t.Rows = append(t.Rows, s.Row())
		}
		if len(t.Rows) == 0 {
			t.Rows = [][]string{{placeholderCell, placeholderCell, placeholderCell}}
		}
		tables = append(tables, t)
	}
	return tables
}

// SectionDetail renders one section with its version tag.
func SectionDetail(s Section) Table {
	return Table{
		Title:   "Section " + s.ID,
		Headers: SectionDetailHeaders,
		Rows:    [][]string{append(s.Row(), s.VersionTag)},
	}
}

var ruleTitles = map[SectionType]string{
	LayerTwo:           "Ethernet Rules",
	LayerThree:         "Layer 3 Rules",
	LayerThreeRedirect: "Redirect Rules",
}

// RuleTables renders the rules of every section type, one table per type.
func RuleTables(groups []SectionGroup) []Table {
	tables := make([]Table, 0, len(groups))
	for _, g := range groups {
		var rules []Rule
		for _, s := range g.Sections {
			rules = append(rules, s.Rules...)
		}
		tables = append(tables, RuleTable(ruleTitles[g.Type], rules))
	}
	return tables
}

// RuleTable renders rules in the given order.
func RuleTable(title string, rules []Rule) Table {
	t := Table{Title: title, Headers: RuleHeaders}
	for _, r := range rules {
		t.Rows = append(t.Rows, r.Row())
	}
	return t
}

// Row returns the section as display cells.
func (s Section) Row() []string {
	return []string{s.DisplayName(), s.ID, s.Type.Short()}
}

// Row returns the rule as display cells. Absent clauses read "any".
func (r Rule) Row() []string {
	applied := make([]string, 0, len(r.AppliedTo))
	for _, a := range r.AppliedTo {
		applied = append(applied, a.Name)
	}

	return []string{
		r.ID,
		r.Name,
		r.Sources.cell(),
		r.Destinations.cell(),
		servicesCell(r.Services),
		string(r.Action),
		string(r.Direction),
		string(r.PacketType),
		strings.Join(applied, "\n"),
		r.SectionID,
	}
}

func (s *EndpointSet) cell() string {
	if s == nil {
		return "any"
	}
	lines := make([]string, 0, len(s.Entries))
	for _, e := range s.Entries {
		v := e.Value
		if !addressLike(e.Type) && e.Name != "" {
			v = e.Name
		}
		lines = append(lines, v)
	}
	out := strings.Join(lines, "\n")
	if s.Excluded {
		return "NOT " + out
	}
	return out
}

func servicesCell(services []Service) string {
	if services == nil {
		return "any"
	}
	lines := make([]string, 0, len(services))
	for _, s := range services {
		if s.Name != "" {
			lines = append(lines, s.Name)
			continue
		}
		lines = append(lines, s.ProtocolName+":"+portOrAny(s.SourcePort)+":"+portOrAny(s.DestinationPort))
	}
	return strings.Join(lines, "\n")
}

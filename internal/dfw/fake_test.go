package dfw

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/clbanning/mxj/v2"

	"github.com/Sergeydigl3/dfwctl/internal/nsx"
)

// fakeManager is an in-memory manager that versions every section and rejects
// writes carrying a stale tag, the way the real manager answers with 412.
type fakeManager struct {
	mu sync.Mutex

	groups   map[SectionType][]*fakeSection
	nextID   int
	services []CatalogEntry
	switches []CatalogEntry
	edges    []CatalogEntry

	writes []string
}

type fakeSection struct {
	sec     Section
	version int
}

func newFakeManager() *fakeManager {
	return &fakeManager{
		groups: map[SectionType][]*fakeSection{},
		nextID: 2000,
	}
}

// withDefaults seeds the three default sections, each with its default rule.
func (m *fakeManager) withDefaults() *fakeManager {
	ids := map[SectionType][2]string{
		LayerTwo:           {"1001", "1002"},
		LayerThree:         {"1003", "1001"},
		LayerThreeRedirect: {"1002", "1003"},
	}
	for _, typ := range SectionTypes {
		id := ids[typ]
		m.addSection(Section{
			ID:   id[0],
			Name: typ.DefaultSectionName(),
			Type: typ,
			Rules: []Rule{{
				ID:         id[1],
				Name:       DefaultRuleName,
				Action:     ActionAllow,
				Direction:  DirectionInOut,
				PacketType: PacketAny,
				AppliedTo:  defaultRule().AppliedTo,
			}},
		})
	}
	return m
}

// addSection appends a section at the bottom of its group.
func (m *fakeManager) addSection(s Section) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range s.Rules {
		s.Rules[i].SectionID = s.ID
	}
	m.groups[s.Type] = append(m.groups[s.Type], &fakeSection{sec: s, version: 1})
}

// bump simulates a write by another client.
func (m *fakeManager) bump(sectionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, fs := m.find(sectionID); fs != nil {
		fs.version++
	}
}

func (m *fakeManager) section(id string) Section {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, fs := m.find(id)
	if fs == nil {
		return Section{}
	}
	return fs.sec
}

func (m *fakeManager) find(id string) (SectionType, *fakeSection) {
	for typ, secs := range m.groups {
		for _, fs := range secs {
			if fs.sec.ID == id {
				return typ, fs
			}
		}
	}
	return "", nil
}

// resourceType maps a section resource to its type and role.
func resourceType(res nsx.Resource) (SectionType, string) {
	for _, typ := range SectionTypes {
		r := typ.resources()
		switch res {
		case r.sections:
			return typ, "sections"
		case r.section:
			return typ, "section"
		case r.rules:
			return typ, "rules"
		case r.rule:
			return typ, "rule"
		}
	}
	return "", ""
}

func notFound(method string, res nsx.Resource) error {
	return &nsx.StatusError{Method: method, Path: string(res), Code: http.StatusNotFound}
}

func stale(method string, res nsx.Resource) error {
	return &nsx.StatusError{Method: method, Path: string(res), Code: http.StatusPreconditionFailed, Body: "stale version"}
}

func decodeXML(b []byte) (mxj.Map, error) {
	return mxj.NewMapXml(b)
}

func (m *fakeManager) Read(_ context.Context, res nsx.Resource, params nsx.Params) (*nsx.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch res {
	case nsx.FirewallConfig:
		return m.readConfig()
	case nsx.Services:
		return catalogResponse(m.services, "list", "application")
	case nsx.LogicalSwitches:
		return catalogResponse(m.switches, "virtualWires", "dataPage", "virtualWire")
	case nsx.Edges:
		return catalogResponse(m.edges, "pagedEdgeList", "edgePage", "edgeSummary")
	}

	_, role := resourceType(res)
	_, fs := m.find(params["sectionId"])
	if fs == nil {
		return nil, notFound(http.MethodGet, res)
	}
	etag := strconv.Itoa(fs.version)

	switch role {
	case "section":
		b, err := encodeSection(fs.sec)
		if err != nil {
			return nil, err
		}
		body, err := decodeXML(b)
		if err != nil {
			return nil, err
		}
		return &nsx.Response{Status: http.StatusOK, ETag: etag, Body: body, Raw: b}, nil
	case "rule":
		for _, r := range fs.sec.Rules {
			if r.ID == params["ruleId"] {
				b, err := encodeRule(r)
				if err != nil {
					return nil, err
				}
				body, err := decodeXML(b)
				if err != nil {
					return nil, err
				}
				return &nsx.Response{Status: http.StatusOK, ETag: etag, Body: body, Raw: b}, nil
			}
		}
	}
	return nil, notFound(http.MethodGet, res)
}

func (m *fakeManager) readConfig() (*nsx.Response, error) {
	var b strings.Builder
	b.WriteString(`<firewallConfiguration timestamp="1">`)
	for _, typ := range SectionTypes {
		fmt.Fprintf(&b, "<%s>", typ.containerKey())
		for _, fs := range m.groups[typ] {
			x, err := encodeSection(fs.sec)
			if err != nil {
				return nil, err
			}
			b.Write(x)
		}
		fmt.Fprintf(&b, "</%s>", typ.containerKey())
	}
	b.WriteString(`</firewallConfiguration>`)

	body, err := decodeXML([]byte(b.String()))
	if err != nil {
		return nil, err
	}
	return &nsx.Response{Status: http.StatusOK, Body: body, Raw: []byte(b.String())}, nil
}

func catalogResponse(entries []CatalogEntry, path ...string) (*nsx.Response, error) {
	var b strings.Builder
	for _, p := range path[:len(path)-1] {
		fmt.Fprintf(&b, "<%s>", p)
	}
	item := path[len(path)-1]
	for _, e := range entries {
		fmt.Fprintf(&b, "<%s><objectId>%s</objectId><name>%s</name></%s>", item, e.ID, e.Name, item)
	}
	for i := len(path) - 2; i >= 0; i-- {
		fmt.Fprintf(&b, "</%s>", path[i])
	}
	body, err := decodeXML([]byte(b.String()))
	if err != nil {
		return nil, err
	}
	return &nsx.Response{Status: http.StatusOK, Body: body}, nil
}

func (m *fakeManager) Create(_ context.Context, res nsx.Resource, params nsx.Params, body []byte, tag string) (*nsx.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, "POST "+string(res))

	typ, role := resourceType(res)
	doc, err := decodeXML(body)
	if err != nil {
		return nil, err
	}

	switch role {
	case "sections":
		rec, err := child(doc, "section")
		if err != nil {
			return nil, err
		}
		sec, err := sectionFromRecord(rec, typ)
		if err != nil {
			return nil, err
		}
		m.nextID++
		sec.ID = strconv.Itoa(m.nextID)
		fs := &fakeSection{sec: sec, version: 1}
		m.groups[typ] = append([]*fakeSection{fs}, m.groups[typ]...)

		out, err := encodeSection(sec)
		if err != nil {
			return nil, err
		}
		outBody, err := decodeXML(out)
		if err != nil {
			return nil, err
		}
		return &nsx.Response{
			Status:   http.StatusCreated,
			ETag:     "1",
			Location: string(res) + "/" + sec.ID,
			ObjectID: sec.ID,
			Body:     outBody,
		}, nil

	case "rules":
		_, fs := m.find(params["sectionId"])
		if fs == nil {
			return nil, notFound(http.MethodPost, res)
		}
		if tag != strconv.Itoa(fs.version) {
			return nil, stale(http.MethodPost, res)
		}
		rec, err := child(doc, "rule")
		if err != nil {
			return nil, err
		}
		r, err := ruleFromRecord(rec)
		if err != nil {
			return nil, err
		}
		m.nextID++
		r.ID = strconv.Itoa(m.nextID)
		r.SectionID = fs.sec.ID
		fs.sec.Rules = append([]Rule{r}, fs.sec.Rules...)
		fs.version++

		out, err := encodeRule(r)
		if err != nil {
			return nil, err
		}
		outBody, err := decodeXML(out)
		if err != nil {
			return nil, err
		}
		return &nsx.Response{
			Status:   http.StatusCreated,
			ETag:     strconv.Itoa(fs.version),
			Location: string(res) + "/" + r.ID,
			ObjectID: r.ID,
			Body:     outBody,
		}, nil
	}
	return nil, notFound(http.MethodPost, res)
}

func (m *fakeManager) Update(_ context.Context, res nsx.Resource, params nsx.Params, body []byte, tag string) (*nsx.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, "PUT "+string(res))

	typ, role := resourceType(res)
	_, fs := m.find(params["sectionId"])
	if fs == nil {
		return nil, notFound(http.MethodPut, res)
	}
	if tag != strconv.Itoa(fs.version) {
		return nil, stale(http.MethodPut, res)
	}
	doc, err := decodeXML(body)
	if err != nil {
		return nil, err
	}

	switch role {
	case "section":
		rec, err := child(doc, "section")
		if err != nil {
			return nil, err
		}
		sec, err := sectionFromRecord(rec, typ)
		if err != nil {
			return nil, err
		}
		fs.sec.Rules = sec.Rules
	case "rule":
		rec, err := child(doc, "rule")
		if err != nil {
			return nil, err
		}
		r, err := ruleFromRecord(rec)
		if err != nil {
			return nil, err
		}
		replaced := false
		for i := range fs.sec.Rules {
			if fs.sec.Rules[i].ID == params["ruleId"] {
				fs.sec.Rules[i] = r
				replaced = true
			}
		}
		if !replaced {
			return nil, notFound(http.MethodPut, res)
		}
	default:
		return nil, notFound(http.MethodPut, res)
	}

	fs.version++
	return &nsx.Response{Status: http.StatusOK, ETag: strconv.Itoa(fs.version)}, nil
}

func (m *fakeManager) Delete(_ context.Context, res nsx.Resource, params nsx.Params, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, "DELETE "+string(res))

	typ, role := resourceType(res)
	_, fs := m.find(params["sectionId"])
	if fs == nil {
		return notFound(http.MethodDelete, res)
	}
	if tag != strconv.Itoa(fs.version) {
		return stale(http.MethodDelete, res)
	}

	switch role {
	case "section":
		secs := m.groups[typ][:0]
		for _, s := range m.groups[typ] {
			if s != fs {
				secs = append(secs, s)
			}
		}
		m.groups[typ] = secs
		return nil
	case "rule":
		var kept []Rule
		for _, r := range fs.sec.Rules {
			if r.ID != params["ruleId"] {
				kept = append(kept, r)
			}
		}
		if len(kept) == len(fs.sec.Rules) {
			return notFound(http.MethodDelete, res)
		}
		fs.sec.Rules = kept
		fs.version++
		return nil
	}
	return notFound(http.MethodDelete, res)
}

var _ Session = (*fakeManager)(nil)

package dfw

import (
	"bytes"
	"sort"

	"github.com/clbanning/mxj/v2"
	"github.com/pkg/errors"
)

func init() {
	mxj.XMLEscapeChars(true)
}

// Keys of the order-preserving tree.
const (
	seqKey  = "#seq"
	attrKey = "#attr"
	textKey = "#text"
)

// document is one record as the manager returned it, kept in an
// order-preserving tree. Edits are applied to this tree so that elements and
// values the typed model does not carry are sent back unchanged.
type document struct {
	tree mxj.MapSeq
	root string
}

func parseDocument(raw []byte, root string) (*document, error) {
	raw = bytes.TrimSpace(raw)
	if bytes.HasPrefix(raw, []byte("<?")) {
		if i := bytes.Index(raw, []byte("?>")); i >= 0 {
			raw = raw[i+2:]
		}
	}

	tree, err := mxj.NewMapFormattedXmlSeq(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s document", root)
	}
	if _, ok := tree[root].(map[string]interface{}); !ok {
		return nil, errors.Errorf("document has no %s element", root)
	}
	return &document{tree: tree, root: root}, nil
}

func (d *document) node() map[string]interface{} {
	return d.tree[d.root].(map[string]interface{})
}

func (d *document) encode() ([]byte, error) {
	b, err := d.tree.Xml()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode %s document", d.root)
	}
	return b, nil
}

// removeClause drops the selected entries of a clause. A container left
// without entries is removed, which reads as "any".
func (d *document) removeClause(kind ClauseKind, selected []bool) error {
	container, item := kind.element()
	if container == "" {
		return errors.Errorf("unknown clause kind %q", kind)
	}

	rule := d.node()
	parent, ok := rule[container].(map[string]interface{})
	if !ok {
		if len(selected) > 0 {
			return errors.Errorf("document has no %s element", container)
		}
		return nil
	}

	entries := seqNodes(parent, item)
	if len(entries) != len(selected) {
		return errors.Errorf("%s: document has %d entries, rule has %d", container, len(entries), len(selected))
	}

	kept := make([]interface{}, 0, len(entries))
	for i, e := range entries {
		if !selected[i] {
			kept = append(kept, e)
		}
	}
	switch {
	case len(kept) == len(entries):
	case len(kept) == 0:
		delete(rule, container)
	default:
		parent[item] = kept
	}
	return nil
}

// reorderRules puts the section's rules in the order of ids. The positions
// the rules take among the section's other children are unchanged.
func (d *document) reorderRules(ids []string) error {
	sec := d.node()
	nodes := seqNodes(sec, "rule")

	byID := make(map[string]map[string]interface{}, len(nodes))
	seqs := make([]int, 0, len(nodes))
	for _, n := range nodes {
		byID[seqAttr(n, "id")] = n
		seqs = append(seqs, seqOf(n))
	}
	if len(byID) != len(ids) || len(nodes) != len(ids) {
		return errors.Errorf("document has %d rules, section has %d", len(nodes), len(ids))
	}
	sort.Ints(seqs)

	ordered := make([]interface{}, 0, len(ids))
	for i, id := range ids {
		n, ok := byID[id]
		if !ok {
			return errors.Errorf("rule %s is not in the document", id)
		}
		n[seqKey] = seqs[i]
		ordered = append(ordered, n)
	}
	sec["rule"] = ordered
	return nil
}

// seqNodes returns the child elements named key in document order.
func seqNodes(parent map[string]interface{}, key string) []map[string]interface{} {
	switch v := parent[key].(type) {
	case map[string]interface{}:
		return []map[string]interface{}{v}
	case []interface{}:
		out := make([]map[string]interface{}, 0, len(v))
		for _, item := range v {
			if n, ok := item.(map[string]interface{}); ok {
				out = append(out, n)
			}
		}
		return out
	}
	return nil
}

func seqOf(n map[string]interface{}) int {
	switch v := n[seqKey].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func seqAttr(n map[string]interface{}, name string) string {
	attrs, _ := n[attrKey].(map[string]interface{})
	a, _ := attrs[name].(map[string]interface{})
	s, _ := a[textKey].(string)
	return s
}

// removeRuleEntries rewrites a rule document without the entries of kind that
// selected marks.
func removeRuleEntries(raw []byte, kind ClauseKind, selected []bool) ([]byte, error) {
	doc, err := parseDocument(raw, "rule")
	if err != nil {
		return nil, err
	}
	if err := doc.removeClause(kind, selected); err != nil {
		return nil, err
	}
	return doc.encode()
}

// reorderSectionRules rewrites a section document with its rules in the order of ids.
func reorderSectionRules(raw []byte, ids []string) ([]byte, error) {
	doc, err := parseDocument(raw, "section")
	if err != nil {
		return nil, err
	}
	if err := doc.reorderRules(ids); err != nil {
		return nil, err
	}
	return doc.encode()
}

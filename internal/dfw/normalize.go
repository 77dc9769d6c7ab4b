package dfw

import (
	"strings"

	"github.com/clbanning/mxj/v2"
	"github.com/pkg/errors"
)

// Record is one decoded XML element: child elements by name, attributes under
// "-name", element text next to attributes under "#text".
type Record = map[string]interface{}

// Records normalizes a fragment that the manager encodes as absent (nil or empty
// element), a single record, or a list of records into one ordered slice.
// Any other shape is a malformed fragment.
func Records(fragment interface{}) ([]Record, error) {
	switch v := fragment.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		return nil, errors.Errorf("malformed fragment: unexpected text %q", v)
	case map[string]interface{}:
		return []Record{v}, nil
	case mxj.Map:
		return []Record{v}, nil
	case []map[string]interface{}:
		out := make([]Record, len(v))
		copy(out, v)
		return out, nil
	case []interface{}:
		out := make([]Record, 0, len(v))
		for i, item := range v {
			switch rec := item.(type) {
			case map[string]interface{}:
				out = append(out, rec)
			case mxj.Map:
				out = append(out, rec)
			default:
				return nil, errors.Errorf("malformed fragment: item %d is %T, not a record", i, item)
			}
		}
		return out, nil
	default:
		return nil, errors.Errorf("malformed fragment: unexpected %T", fragment)
	}
}

// ChildRecords normalizes rec[container][item], e.g. the "source" entries of a
// rule's "sources" element. A missing or empty container yields no records.
func ChildRecords(rec Record, container, item string) ([]Record, error) {
	parent, err := child(rec, container)
	if err != nil || parent == nil {
		return nil, err
	}
	return Records(parent[item])
}

// child returns rec[key] as a record, nil when absent or empty.
func child(rec Record, key string) (Record, error) {
	recs, err := Records(rec[key])
	if err != nil {
		return nil, errors.Wrapf(err, "element %q", key)
	}
	switch len(recs) {
	case 0:
		return nil, nil
	case 1:
		return recs[0], nil
	default:
		return nil, errors.Errorf("element %q: expected one record, got %d", key, len(recs))
	}
}

// text returns the text content of rec[key].
func text(rec Record, key string) string {
	switch v := rec[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]interface{}:
		if s, ok := v["#text"].(string); ok {
			return strings.TrimSpace(s)
		}
	case nil:
		return ""
	default:
		if s, ok := v.(interface{ String() string }); ok {
			return s.String()
		}
	}
	return ""
}

// attr returns the value of the XML attribute name on rec.
func attr(rec Record, name string) string {
	return text(rec, "-"+name)
}

func boolAttr(rec Record, name string) bool {
	return strings.EqualFold(attr(rec, name), "true")
}

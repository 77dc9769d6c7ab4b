package dfw

import (
	"encoding/xml"

	"github.com/pkg/errors"
)

// XML bodies for new sections and rules. Edits of existing records go through
// document instead. Containers are pointers so that a nil container is left
// out of the document instead of being sent as an empty element.

type ruleXML struct {
	XMLName      xml.Name         `xml:"rule"`
	ID           string           `xml:"id,attr,omitempty"`
	Disabled     bool             `xml:"disabled,attr"`
	Logged       bool             `xml:"logged,attr"`
	Name         string           `xml:"name"`
	Action       string           `xml:"action"`
	AppliedTo    *appliedToXML    `xml:"appliedToList,omitempty"`
	SectionID    string           `xml:"sectionId,omitempty"`
	Sources      *sourcesXML      `xml:"sources,omitempty"`
	Destinations *destinationsXML `xml:"destinations,omitempty"`
	Services     *servicesXML     `xml:"services,omitempty"`
	Direction    string           `xml:"direction"`
	PacketType   string           `xml:"packetType"`
	Notes        string           `xml:"notes,omitempty"`
	Tag          string           `xml:"tag,omitempty"`
}

type endpointXML struct {
	Name    string `xml:"name,omitempty"`
	Value   string `xml:"value"`
	Type    string `xml:"type"`
	IsValid bool   `xml:"isValid"`
}

type sourcesXML struct {
	Excluded bool          `xml:"excluded,attr"`
	Entries  []endpointXML `xml:"source"`
}

type destinationsXML struct {
	Excluded bool          `xml:"excluded,attr"`
	Entries  []endpointXML `xml:"destination"`
}

type serviceXML struct {
	Name            string `xml:"name,omitempty"`
	Value           string `xml:"value,omitempty"`
	Type            string `xml:"type,omitempty"`
	IsValid         bool   `xml:"isValid"`
	SourcePort      string `xml:"sourcePort,omitempty"`
	DestinationPort string `xml:"destinationPort,omitempty"`
	Protocol        string `xml:"protocol,omitempty"`
	ProtocolName    string `xml:"protocolName,omitempty"`
}

type servicesXML struct {
	Entries []serviceXML `xml:"service"`
}

type applyTargetXML struct {
	Name    string `xml:"name,omitempty"`
	Value   string `xml:"value"`
	Type    string `xml:"type"`
	IsValid bool   `xml:"isValid"`
}

type appliedToXML struct {
	Entries []applyTargetXML `xml:"appliedTo"`
}

type sectionXML struct {
	XMLName xml.Name  `xml:"section"`
	ID      string    `xml:"id,attr,omitempty"`
	Name    string    `xml:"name,attr"`
	Type    string    `xml:"type,attr,omitempty"`
	Rules   []ruleXML `xml:"rule"`
}

func endpointsXML(set *EndpointSet) (bool, []endpointXML) {
	if set == nil || len(set.Entries) == 0 {
		return false, nil
	}
	out := make([]endpointXML, 0, len(set.Entries))
	for _, e := range set.Entries {
		out = append(out, endpointXML{Name: e.Name, Value: e.Value, Type: e.Type, IsValid: true})
	}
	return true, out
}

func toRuleXML(r Rule) ruleXML {
	x := ruleXML{
		ID:         r.ID,
		Disabled:   r.Disabled,
		Logged:     r.Logged,
		Name:       r.Name,
		Action:     string(r.Action),
		SectionID:  r.SectionID,
		Direction:  string(r.Direction),
		PacketType: string(r.PacketType),
		Notes:      r.Notes,
		Tag:        r.Tag,
	}

	if ok, entries := endpointsXML(r.Sources); ok {
		x.Sources = &sourcesXML{Excluded: r.Sources.Excluded, Entries: entries}
	}
	if ok, entries := endpointsXML(r.Destinations); ok {
		x.Destinations = &destinationsXML{Excluded: r.Destinations.Excluded, Entries: entries}
	}

	if len(r.Services) > 0 {
		x.Services = &servicesXML{}
		for _, s := range r.Services {
			x.Services.Entries = append(x.Services.Entries, serviceXML{
				Name:            s.Name,
				Value:           s.Value,
				Type:            s.Type,
				IsValid:         true,
				SourcePort:      s.SourcePort,
				DestinationPort: s.DestinationPort,
				Protocol:        s.Protocol,
				ProtocolName:    s.ProtocolName,
			})
		}
	}

	if len(r.AppliedTo) > 0 {
		x.AppliedTo = &appliedToXML{}
		for _, a := range r.AppliedTo {
			x.AppliedTo.Entries = append(x.AppliedTo.Entries, applyTargetXML{
				Name: a.Name, Value: a.Value, Type: a.Type, IsValid: true,
			})
		}
	}

	return x
}

// encodeRule renders a rule as the manager's request body.
func encodeRule(r Rule) ([]byte, error) {
	b, err := xml.Marshal(toRuleXML(r))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode rule %s", r.ID)
	}
	return b, nil
}

// encodeSection renders a section with its rules in order.
func encodeSection(s Section) ([]byte, error) {
	x := sectionXML{ID: s.ID, Name: s.Name, Type: string(s.Type)}
	for _, r := range s.Rules {
		x.Rules = append(x.Rules, toRuleXML(r))
	}
	b, err := xml.Marshal(x)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode section %s", s.Name)
	}
	return b, nil
}

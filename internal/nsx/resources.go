package nsx

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// Resource names a REST resource of the manager API. Names follow the manager's
// published RAML so they read the same as the vendor documentation.
type Resource string

// Distributed firewall and catalog resources.
const (
	FirewallConfig Resource = "dfwConfig"

	L2Sections Resource = "dfwL2Sections"
	L2Section  Resource = "dfwL2SectionId"
	L2Rules    Resource = "dfwL2Rules"
	L2Rule     Resource = "dfwL2Rule"

	L3Sections Resource = "dfwL3Sections"
	L3Section  Resource = "dfwL3SectionId"
	L3Rules    Resource = "dfwL3Rules"
	L3Rule     Resource = "dfwL3Rule"

	L3RedirectSections Resource = "dfwL3RedirectSections"
	L3RedirectSection  Resource = "dfwL3RedirectSectionId"
	L3RedirectRules    Resource = "dfwL3RedirectRules"
	L3RedirectRule     Resource = "dfwL3RedirectRule"

	Services        Resource = "servicesScope"
	LogicalSwitches Resource = "logicalSwitchesGlobal"
	Edges           Resource = "nsxEdges"
)

const dfwConfigPath = "/api/4.0/firewall/{contextId}/config"

var resourcePaths = map[Resource]string{
	FirewallConfig: dfwConfigPath,

	L2Sections: dfwConfigPath + "/layer2sections",
	L2Section:  dfwConfigPath + "/layer2sections/{sectionId}",
	L2Rules:    dfwConfigPath + "/layer2sections/{sectionId}/rules",
	L2Rule:     dfwConfigPath + "/layer2sections/{sectionId}/rules/{ruleId}",

	L3Sections: dfwConfigPath + "/layer3sections",
	L3Section:  dfwConfigPath + "/layer3sections/{sectionId}",
	L3Rules:    dfwConfigPath + "/layer3sections/{sectionId}/rules",
	L3Rule:     dfwConfigPath + "/layer3sections/{sectionId}/rules/{ruleId}",

	L3RedirectSections: dfwConfigPath + "/layer3redirectsections",
	L3RedirectSection:  dfwConfigPath + "/layer3redirectsections/{sectionId}",
	L3RedirectRules:    dfwConfigPath + "/layer3redirectsections/{sectionId}/rules",
	L3RedirectRule:     dfwConfigPath + "/layer3redirectsections/{sectionId}/rules/{ruleId}",

	Services:        "/api/2.0/services/application/scope/{scopeId}",
	LogicalSwitches: "/api/2.0/vdn/virtualwires",
	Edges:           "/api/4.0/edges",
}

// Params holds the URI parameters substituted into a resource path.
type Params map[string]string

var placeholderRe = regexp.MustCompile(`\{([A-Za-z]+)\}`)

// Path expands the resource template with params. Parameters that are not
// placeholders of the template are appended as query parameters.
func (r Resource) Path(params Params) (string, error) {
	tmpl, ok := resourcePaths[r]
	if !ok {
		return "", errors.Errorf("unknown resource %q", r)
	}

	used := make(map[string]bool)
	var missing []string
	path := placeholderRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := params[name]
		if !ok || v == "" {
			missing = append(missing, name)
			return m
		}
		used[name] = true
		return url.PathEscape(v)
	})
	if len(missing) > 0 {
		return "", errors.Errorf("resource %s: missing parameters: %s", r, strings.Join(missing, ", "))
	}

	query := url.Values{}
	for k, v := range params {
		if !used[k] && !strings.Contains(tmpl, "{"+k+"}") {
			query.Set(k, v)
		}
	}
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	return path, nil
}

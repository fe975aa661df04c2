package dump

import (
	"bytes"
	"strconv"

	"gopkg.in/yaml.v3"
)

// StructureYAML renders routes as a YAML list of "route" (or
// "routeTemplate") entries, each step keyed by its type.
func StructureYAML(routes []Route) (string, error) {
	doc := seq()
	for _, r := range routes {
		body := mapping()
		if r.TemplateID != "" {
			addScalar(body, "templateId", r.TemplateID)
			if len(r.TemplateParameters) > 0 {
				params := seq()
				for _, p := range r.TemplateParameters {
					params.Content = append(params.Content, scalar(p))
				}
				add(body, "parameters", params)
			}
		}
		if r.ID != "" {
			addScalar(body, "id", r.ID)
		}
		if r.Description != "" {
			addScalar(body, "description", r.Description)
		}
		if len(r.Properties) > 0 {
			props := seq()
			for _, p := range r.Properties {
				prop := mapping()
				addScalar(prop, "key", p.Key)
				addScalar(prop, "value", p.Value)
				props.Content = append(props.Content, prop)
			}
			add(body, "routeProperty", props)
		}
		from := mapping()
		addScalar(from, "uri", r.From)
		if len(r.Steps) > 0 {
			add(from, "steps", yamlSteps(r.Steps))
		}
		add(body, "from", from)
		if len(r.OnException) > 0 {
			onException := mapping()
			add(onException, "steps", yamlSteps(r.OnException))
			add(body, "onException", onException)
		}

		root := "route"
		if r.TemplateID != "" {
			root = "routeTemplate"
		}
		item := mapping()
		add(item, root, body)
		doc.Content = append(doc.Content, item)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{doc}}); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func yamlSteps(steps []Step) *yaml.Node {
	list := seq()
	for _, s := range steps {
		body := mapping()
		addScalar(body, "id", s.ID)
		for _, k := range sortedKeys(s.Attributes) {
			addScalar(body, k, s.Attributes[k])
		}
		if s.Disabled {
			addScalar(body, "disabled", "true")
		}
		if s.Line > 0 {
			add(body, "lineNumber", &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(s.Line)})
			addScalar(body, "location", s.Origin)
		}
		if len(s.Steps) > 0 {
			add(body, "steps", yamlSteps(s.Steps))
		}
		item := mapping()
		add(item, s.Type, body)
		list.Content = append(list.Content, item)
	}
	return list
}

func seq() *yaml.Node     { return &yaml.Node{Kind: yaml.SequenceNode} }
func mapping() *yaml.Node { return &yaml.Node{Kind: yaml.MappingNode} }

func scalar(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

func add(m *yaml.Node, key string, value *yaml.Node) {
	m.Content = append(m.Content, scalar(key), value)
}

func addScalar(m *yaml.Node, key, value string) {
	add(m, key, scalar(value))
}

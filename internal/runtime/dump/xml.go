package dump

import (
	"bytes"
	"encoding/xml"
	"strconv"
)

const routesNamespace = "http://camel.apache.org/schema/spring"

// StructureXML renders routes as a <routes> document with one element per
// step, named after the step type.
func StructureXML(routes []Route) (string, error) {
	return encodeXML(func(enc *xml.Encoder) error {
		root := xml.StartElement{Name: xml.Name{Local: "routes"}, Attr: []xml.Attr{attr("xmlns", routesNamespace)}}
		if err := enc.EncodeToken(root); err != nil {
			return err
		}
		for _, r := range routes {
			if err := encodeRoute(enc, r); err != nil {
				return err
			}
		}
		return enc.EncodeToken(root.End())
	})
}

// TemplatesXML renders route templates as a <routeTemplates> document.
func TemplatesXML(templates []Route) (string, error) {
	return encodeXML(func(enc *xml.Encoder) error {
		root := xml.StartElement{Name: xml.Name{Local: "routeTemplates"}, Attr: []xml.Attr{attr("xmlns", routesNamespace)}}
		if err := enc.EncodeToken(root); err != nil {
			return err
		}
		for _, t := range templates {
			start := xml.StartElement{Name: xml.Name{Local: "routeTemplate"}, Attr: []xml.Attr{attr("id", t.TemplateID)}}
			if err := enc.EncodeToken(start); err != nil {
				return err
			}
			for _, p := range t.TemplateParameters {
				if err := emptyElement(enc, "templateParameter", attr("name", p)); err != nil {
					return err
				}
			}
			if err := encodeRoute(enc, t); err != nil {
				return err
			}
			if err := enc.EncodeToken(start.End()); err != nil {
				return err
			}
		}
		return enc.EncodeToken(root.End())
	})
}

func encodeRoute(enc *xml.Encoder, r Route) error {
	start := xml.StartElement{Name: xml.Name{Local: "route"}}
	if r.ID != "" {
		start.Attr = append(start.Attr, attr("id", r.ID))
	}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if r.Description != "" {
		if err := enc.EncodeElement(r.Description, xml.StartElement{Name: xml.Name{Local: "description"}}); err != nil {
			return err
		}
	}
	for _, p := range r.Properties {
		if err := emptyElement(enc, "routeProperty", attr("key", p.Key), attr("value", p.Value)); err != nil {
			return err
		}
	}
	if err := emptyElement(enc, "from", attr("uri", r.From)); err != nil {
		return err
	}
	if len(r.OnException) > 0 {
		block := xml.StartElement{Name: xml.Name{Local: "onException"}}
		if err := enc.EncodeToken(block); err != nil {
			return err
		}
		if err := encodeSteps(enc, r.OnException); err != nil {
			return err
		}
		if err := enc.EncodeToken(block.End()); err != nil {
			return err
		}
	}
	if err := encodeSteps(enc, r.Steps); err != nil {
		return err
	}
	return enc.EncodeToken(start.End())
}

func encodeSteps(enc *xml.Encoder, steps []Step) error {
	for _, s := range steps {
		start := xml.StartElement{Name: xml.Name{Local: s.Type}, Attr: []xml.Attr{attr("id", s.ID)}}
		if s.CustomID {
			start.Attr = append(start.Attr, attr("customId", "true"))
		}
		for _, k := range sortedKeys(s.Attributes) {
			start.Attr = append(start.Attr, attr(k, s.Attributes[k]))
		}
		if s.Disabled {
			start.Attr = append(start.Attr, attr("disabled", "true"))
		}
		if s.Line > 0 {
			start.Attr = append(start.Attr, attr("sourceLineNumber", strconv.Itoa(s.Line)), attr("sourceLocation", s.Origin))
		}
		if err := enc.EncodeToken(start); err != nil {
			return err
		}
		if err := encodeSteps(enc, s.Steps); err != nil {
			return err
		}
		if err := enc.EncodeToken(start.End()); err != nil {
			return err
		}
	}
	return nil
}

func emptyElement(enc *xml.Encoder, name string, attrs ...xml.Attr) error {
	start := xml.StartElement{Name: xml.Name{Local: name}, Attr: attrs}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	return enc.EncodeToken(start.End())
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

func encodeXML(write func(*xml.Encoder) error) (string, error) {
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "    ")
	if err := write(enc); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

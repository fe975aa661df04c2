package dump

import (
	"encoding/xml"

	"github.com/drblury/flowmgmt/internal/runtime/engine"
	"github.com/drblury/flowmgmt/internal/runtime/metadata"
)

type messagesDoc struct {
	XMLName  xml.Name     `xml:"messages"`
	Messages []messageDoc `xml:"message"`
}

type messageDoc struct {
	ExchangeID string      `xml:"exchangeId,attr"`
	Headers    *headersDoc `xml:"headers"`
	Body       *bodyDoc    `xml:"body"`
}

type headersDoc struct {
	Headers []headerDoc `xml:"header"`
}

type headerDoc struct {
	Key   string `xml:"key,attr"`
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

type bodyDoc struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

// MessagesXML renders browsed exchanges with their headers sorted by key and,
// when includeBody is set, their bodies.
func MessagesXML(exchanges []*engine.Exchange, includeBody bool) (string, error) {
	doc := messagesDoc{Messages: make([]messageDoc, 0, len(exchanges))}
	for _, ex := range exchanges {
		m := messageDoc{ExchangeID: ex.ID}
		if headers := metadata.Sorted(ex.Message.Metadata); len(headers) > 0 {
			m.Headers = &headersDoc{}
			for _, h := range headers {
				m.Headers.Headers = append(m.Headers.Headers, headerDoc{Key: h.Key, Type: "string", Value: h.Value})
			}
		}
		if includeBody {
			m.Body = &bodyDoc{Type: "string", Value: ex.Body()}
		}
		doc.Messages = append(doc.Messages, m)
	}
	return marshal(doc)
}

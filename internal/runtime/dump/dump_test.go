package dump

import (
	"context"
	"encoding/xml"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/drblury/flowmgmt/internal/runtime/engine"
	flowerrors "github.com/drblury/flowmgmt/internal/runtime/errors"
	"github.com/drblury/flowmgmt/internal/runtime/naming"
	"github.com/drblury/flowmgmt/internal/runtime/stats"
)

type mapLookup map[string]*stats.Statistics

func (m mapLookup) Stats(kind naming.Kind, local string) *stats.Statistics {
	return m[kind.String()+"/"+local]
}

func newContext(t *testing.T, opts ...engine.Option) *engine.Context {
	t.Helper()
	c := engine.NewContext(opts...)
	c.InterceptFrom(engine.Log("incoming ${body}").WithID("intercept"))
	require.NoError(t, c.AddRoutes(context.Background(),
		engine.From("direct:start").RouteID("foo").Describe("demo route").Property("team", "core").
			OnException(true, 0, 0, engine.To("mock:errors")).
			Steps(
				engine.To("mock:a"),
				engine.Choice(
					engine.When(func(ex *engine.Exchange) bool { return ex.Body() == "b" }, engine.To("mock:b").WithID("toB")),
					engine.Otherwise(engine.Log("other").Disable()),
				),
			),
		engine.From("direct:{{name}}").AsTemplate("greet", "name").Steps(engine.To("mock:{{name}}")),
	))
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { _ = c.Stop(context.Background()) })
	return c
}

func TestStructureKeepsPipelineOrder(t *testing.T) {
	c := newContext(t)
	routes, err := Structure(c, "foo")
	require.NoError(t, err)
	require.Len(t, routes, 1)

	r := routes[0]
	assert.Equal(t, "demo route", r.Description)
	assert.Equal(t, "direct://start", r.From)
	require.Len(t, r.Steps, 3)
	assert.Equal(t, "intercept-foo", r.Steps[0].ID)
	assert.Equal(t, engine.NodeTo, r.Steps[1].Type)
	choice := r.Steps[2]
	assert.Equal(t, engine.NodeChoice, choice.Type)
	require.Len(t, choice.Steps, 2)
	assert.Equal(t, engine.NodeWhen, choice.Steps[0].Type)
	assert.Equal(t, "toB", choice.Steps[0].Steps[0].ID)
	assert.True(t, choice.Steps[1].Steps[0].Disabled)
	require.Len(t, r.OnException, 1)
	assert.Zero(t, r.Steps[1].Line, "locations are off by default")

	_, err = Structure(c, "missing")
	require.ErrorIs(t, err, flowerrors.ErrRouteNotFound)

	all, err := Structure(c, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStructureIncludesSourceLocations(t *testing.T) {
	c := newContext(t, engine.WithSourceLocations(true))
	routes, err := Structure(c, "foo")
	require.NoError(t, err)
	assert.Equal(t, "dump_test.go", routes[0].Steps[1].Origin)
	assert.Positive(t, routes[0].Steps[1].Line)
}

func TestStructureYAML(t *testing.T) {
	c := newContext(t)
	routes, err := Structure(c, "foo")
	require.NoError(t, err)

	out, err := StructureYAML(routes)
	require.NoError(t, err)

	var doc []map[string]map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	require.Len(t, doc, 1)
	route := doc[0]["route"]
	assert.Equal(t, "foo", route["id"])
	assert.Equal(t, "demo route", route["description"])
	from := route["from"].(map[string]any)
	assert.Equal(t, "direct://start", from["uri"])
	steps := from["steps"].([]any)
	require.Len(t, steps, 3)
	to := steps[1].(map[string]any)["to"].(map[string]any)
	assert.Equal(t, "mock://a", to["uri"])
	assert.Contains(t, out, "onException:")
}

func TestStructureXML(t *testing.T) {
	c := newContext(t)
	routes, err := Structure(c, "")
	require.NoError(t, err)

	out, err := StructureXML(routes)
	require.NoError(t, err)

	var doc struct {
		Routes []struct {
			ID   string `xml:"id,attr"`
			From struct {
				URI string `xml:"uri,attr"`
			} `xml:"from"`
			To []struct {
				ID  string `xml:"id,attr"`
				URI string `xml:"uri,attr"`
			} `xml:"to"`
			Choice struct {
				When struct {
					To struct {
						ID       string `xml:"id,attr"`
						CustomID string `xml:"customId,attr"`
					} `xml:"to"`
				} `xml:"when"`
			} `xml:"choice"`
		} `xml:"route"`
	}
	require.NoError(t, xml.Unmarshal([]byte(out), &doc))
	require.Len(t, doc.Routes, 1)
	assert.Equal(t, "foo", doc.Routes[0].ID)
	assert.Equal(t, "direct://start", doc.Routes[0].From.URI)
	require.Len(t, doc.Routes[0].To, 1)
	assert.Equal(t, "mock://a", doc.Routes[0].To[0].URI)
	assert.Equal(t, "toB", doc.Routes[0].Choice.When.To.ID)
	assert.Equal(t, "true", doc.Routes[0].Choice.When.To.CustomID)
	assert.True(t, strings.HasPrefix(out, `<routes xmlns="`))
}

func TestTemplatesXML(t *testing.T) {
	c := newContext(t)
	out, err := TemplatesXML(TemplateStructures(c))
	require.NoError(t, err)

	var doc struct {
		Templates []struct {
			ID     string `xml:"id,attr"`
			Params []struct {
				Name string `xml:"name,attr"`
			} `xml:"templateParameter"`
			Route struct {
				From struct {
					URI string `xml:"uri,attr"`
				} `xml:"from"`
			} `xml:"route"`
		} `xml:"routeTemplate"`
	}
	require.NoError(t, xml.Unmarshal([]byte(out), &doc))
	require.Len(t, doc.Templates, 1)
	assert.Equal(t, "greet", doc.Templates[0].ID)
	assert.Equal(t, "name", doc.Templates[0].Params[0].Name)
	assert.Equal(t, "direct:{{name}}", doc.Templates[0].Route.From.URI)
}

func TestContextStatsXML(t *testing.T) {
	c := newContext(t)
	routeStats, toStats := stats.New(), stats.New()
	lookup := mapLookup{"routes/foo": routeStats, "processors/to1": toStats}
	c.Route("foo").SetObserver(routeStats)
	c.Route("foo").Processor("to1").SetObserver(toStats)

	require.NoError(t, c.SendBody(context.Background(), "direct:start", "x"))

	out, err := ContextStatsXML(c, "camel-1", lookup, true, false)
	require.NoError(t, err)

	var doc struct {
		XMLName xml.Name `xml:"contextStat"`
		ID      string   `xml:"id,attr"`
		Routes  []struct {
			ID         string `xml:"id,attr"`
			Total      int    `xml:"exchangesTotal,attr"`
			Processors []struct {
				ID    string `xml:"id,attr"`
				Index int    `xml:"index,attr"`
				Total int    `xml:"exchangesTotal,attr"`
			} `xml:"processorStats>processorStat"`
		} `xml:"routeStats>routeStat"`
	}
	require.NoError(t, xml.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "camel-1", doc.ID)
	require.Len(t, doc.Routes, 1)
	assert.Equal(t, 1, doc.Routes[0].Total)

	var ids []string
	for i, p := range doc.Routes[0].Processors {
		ids = append(ids, p.ID)
		assert.Equal(t, i, p.Index)
	}
	assert.Equal(t, []string{"intercept-foo", "to1", "choice1", "toB", "log1"}, ids)
	assert.Equal(t, 1, doc.Routes[0].Processors[1].Total)
	assert.NotContains(t, out, "minProcessingTime")

	full, err := RouteStatsXML(c.Route("foo"), lookup, false, true)
	require.NoError(t, err)
	assert.Contains(t, full, "minProcessingTime")
	assert.NotContains(t, full, "processorStat")
}

func TestMessagesXML(t *testing.T) {
	ex := engine.NewExchange(context.Background(), "<payload>")
	ex.SetHeader("b", "2")
	ex.SetHeader("a", "1")

	out, err := MessagesXML([]*engine.Exchange{ex}, true)
	require.NoError(t, err)

	var doc struct {
		Messages []struct {
			ExchangeID string `xml:"exchangeId,attr"`
			Headers    []struct {
				Key   string `xml:"key,attr"`
				Value string `xml:",chardata"`
			} `xml:"headers>header"`
			Body string `xml:"body"`
		} `xml:"message"`
	}
	require.NoError(t, xml.Unmarshal([]byte(out), &doc))
	require.Len(t, doc.Messages, 1)
	assert.Equal(t, ex.ID, doc.Messages[0].ExchangeID)
	assert.Equal(t, "<payload>", doc.Messages[0].Body)
	require.Len(t, doc.Messages[0].Headers, 2)
	assert.Equal(t, "a", doc.Messages[0].Headers[0].Key)

	noBody, err := MessagesXML([]*engine.Exchange{ex}, false)
	require.NoError(t, err)
	assert.NotContains(t, noBody, "<body")
}

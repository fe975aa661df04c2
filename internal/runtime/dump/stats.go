package dump

import (
	"encoding/xml"
	"time"

	"github.com/drblury/flowmgmt/internal/runtime/engine"
	"github.com/drblury/flowmgmt/internal/runtime/naming"
	"github.com/drblury/flowmgmt/internal/runtime/stats"
)

// StatsLookup finds the statistics attached to a managed object. It returns
// nil for objects that are not measured; those render as zeros.
type StatsLookup interface {
	Stats(kind naming.Kind, local string) *stats.Statistics
}

type statAttrs struct {
	ID                 string `xml:"id,attr"`
	Index              *int   `xml:"index,attr,omitempty"`
	State              string `xml:"state,attr,omitempty"`
	ExchangesTotal     uint64 `xml:"exchangesTotal,attr"`
	ExchangesCompleted uint64 `xml:"exchangesCompleted,attr"`
	ExchangesFailed    uint64 `xml:"exchangesFailed,attr"`
	FailuresHandled    uint64 `xml:"failuresHandled,attr"`
	Redeliveries       uint64 `xml:"redeliveries,attr"`
	ExchangesInflight  int    `xml:"exchangesInflight,attr"`

	// Filled only for full statistics.
	MinProcessingTime        *int64 `xml:"minProcessingTime,attr,omitempty"`
	MaxProcessingTime        *int64 `xml:"maxProcessingTime,attr,omitempty"`
	MeanProcessingTime       *int64 `xml:"meanProcessingTime,attr,omitempty"`
	LastProcessingTime       *int64 `xml:"lastProcessingTime,attr,omitempty"`
	TotalProcessingTime      *int64 `xml:"totalProcessingTime,attr,omitempty"`
	FirstExchangeTimestamp   string `xml:"firstExchangeTimestamp,attr,omitempty"`
	LastExchangeTimestamp    string `xml:"lastExchangeTimestamp,attr,omitempty"`
	ResetTimestamp           string `xml:"resetTimestamp,attr,omitempty"`
	OldestInflightExchangeID string `xml:"oldestInflightExchangeId,attr,omitempty"`
	OldestInflightDuration   *int64 `xml:"oldestInflightDuration,attr,omitempty"`
}

type contextStat struct {
	XMLName xml.Name `xml:"contextStat"`
	statAttrs
	Routes *routeStats `xml:"routeStats"`
}

type routeStats struct {
	Routes []routeStat `xml:"routeStat"`
}

type routeStat struct {
	XMLName xml.Name `xml:"routeStat"`
	statAttrs
	Processors *processorStats `xml:"processorStats"`
}

type processorStats struct {
	Processors []processorStat `xml:"processorStat"`
}

type processorStat struct {
	XMLName xml.Name `xml:"processorStat"`
	statAttrs
	Disabled bool `xml:"disabled,attr,omitempty"`
}

// ContextStatsXML renders a <contextStat> with one <routeStat> per route and,
// with includeProcessors, one <processorStat> per counted step.
func ContextStatsXML(c *engine.Context, contextID string, lookup StatsLookup, includeProcessors, fullStats bool) (string, error) {
	doc := contextStat{statAttrs: attrsFor(contextID, c.Status().String(), lookup.Stats(naming.KindContext, contextID), fullStats)}
	doc.Routes = &routeStats{}
	for _, r := range c.Routes() {
		doc.Routes.Routes = append(doc.Routes.Routes, buildRouteStat(r, lookup, includeProcessors, fullStats))
	}
	return marshal(doc)
}

// RouteStatsXML renders a single <routeStat>.
func RouteStatsXML(r *engine.Route, lookup StatsLookup, includeProcessors, fullStats bool) (string, error) {
	return marshal(buildRouteStat(r, lookup, includeProcessors, fullStats))
}

// ProcessorStatsXML renders a single <processorStat>.
func ProcessorStatsXML(n *engine.Node, lookup StatsLookup, fullStats bool) (string, error) {
	return marshal(buildProcessorStat(n, lookup, fullStats))
}

func buildRouteStat(r *engine.Route, lookup StatsLookup, includeProcessors, fullStats bool) routeStat {
	out := routeStat{statAttrs: attrsFor(r.ID(), r.Status().String(), lookup.Stats(naming.KindRoute, r.ID()), fullStats)}
	if includeProcessors {
		out.Processors = &processorStats{}
		for _, n := range r.Processors() {
			out.Processors.Processors = append(out.Processors.Processors, buildProcessorStat(n, lookup, fullStats))
		}
	}
	return out
}

func buildProcessorStat(n *engine.Node, lookup StatsLookup, fullStats bool) processorStat {
	state := ""
	if r := n.Route(); r != nil {
		state = r.Status().String()
	}
	out := processorStat{
		statAttrs: attrsFor(n.ID(), state, lookup.Stats(naming.KindProcessor, n.ID()), fullStats),
		Disabled:  n.Disabled(),
	}
	index := n.Index()
	out.Index = &index
	return out
}

func attrsFor(id, state string, s *stats.Statistics, fullStats bool) statAttrs {
	out := statAttrs{ID: id, State: state}
	if s == nil {
		return out
	}
	snap := s.Snapshot()
	out.ExchangesTotal = snap.ExchangesTotal
	out.ExchangesCompleted = snap.ExchangesCompleted
	out.ExchangesFailed = snap.ExchangesFailed
	out.FailuresHandled = snap.FailuresHandled
	out.Redeliveries = snap.Redeliveries
	out.ExchangesInflight = snap.ExchangesInflight
	if !fullStats {
		return out
	}
	out.MinProcessingTime = millis(snap.Processing.Min)
	out.MaxProcessingTime = millis(snap.Processing.Max)
	out.MeanProcessingTime = millis(snap.Processing.Mean)
	out.LastProcessingTime = millis(snap.Processing.Last)
	out.TotalProcessingTime = millis(snap.Processing.Total)
	out.FirstExchangeTimestamp = timestamp(snap.FirstExchangeAt)
	out.LastExchangeTimestamp = timestamp(snap.LastExchangeAt)
	out.ResetTimestamp = timestamp(snap.ResetAt)
	if snap.OldestInflight != nil {
		out.OldestInflightExchangeID = snap.OldestInflight.ExchangeID
		out.OldestInflightDuration = millis(snap.OldestInflight.Duration)
	}
	return out
}

func millis(d time.Duration) *int64 {
	ms := d.Milliseconds()
	return &ms
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func marshal(v any) (string, error) {
	out, err := xml.MarshalIndent(v, "", "    ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

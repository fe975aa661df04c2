// Package api is the HTTP binding of the management registry: name queries,
// attribute reads and control operations.
package api

import (
	"errors"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	flowerrors "github.com/drblury/flowmgmt/internal/runtime/errors"
	"github.com/drblury/flowmgmt/internal/runtime/jsoncodec"
	"github.com/drblury/flowmgmt/internal/runtime/logging"
	"github.com/drblury/flowmgmt/internal/runtime/metrics"
	"github.com/drblury/flowmgmt/internal/runtime/naming"
	"github.com/drblury/flowmgmt/internal/runtime/registry"
)

const (
	tracerName          = "github.com/drblury/flowmgmt/api"
	contentTypeJSON     = "application/json"
	contentTypeProtobuf = "application/x-protobuf"
)

// Source resolves names. *agent.Agent satisfies it.
type Source interface {
	QueryString(pattern string) ([]naming.Name, error)
	Lookup(name naming.Name) (*registry.Record, bool)
}

type Server struct {
	source  Source
	logger  logging.ServiceLogger
	tracer  trace.Tracer
	ops     *metrics.Operations
	metrics http.Handler
	origins []string
}

type Option func(*Server)

func WithLogger(l logging.ServiceLogger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Server) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithOperationMetrics counts every invoked operation.
func WithOperationMetrics(ops *metrics.Operations) Option {
	return func(s *Server) { s.ops = ops }
}

// WithMetricsHandler serves h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithCORSOrigins enables CORS for the given origins. "*" allows any origin.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.origins = slices.Clone(origins) }
}

func New(source Source, opts ...Option) *Server {
	s := &Server{
		source: source,
		logger: logging.NewNopServiceLogger(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns the routes without CORS handling.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter().SkipClean(true).UseEncodedPath()
	r.HandleFunc("/api/mbeans", s.handleQuery).Methods(http.MethodGet)
	r.HandleFunc("/api/mbeans/{name}", s.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/api/mbeans/{name}/attributes/{attr}", s.handleAttribute).Methods(http.MethodGet)
	r.HandleFunc("/api/mbeans/{name}/operations/{op}", s.handleInvoke).Methods(http.MethodPost)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}
	return r
}

// Handler returns the router wrapped in CORS handling when origins are configured.
func (s *Server) Handler() http.Handler {
	r := s.Router()
	if len(s.origins) == 0 {
		return r
	}
	return cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Accept"},
	}).Handler(r)
}

type queryResponse struct {
	Names []string `json:"names"`
}

type mbeanDocument struct {
	Name       string         `json:"name"`
	Kind       string         `json:"kind"`
	Attributes map[string]any `json:"attributes"`
	Operations []string       `json:"operations,omitempty"`
}

type attributeResponse struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

type operationResponse struct {
	Result any `json:"result"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	names, err := s.source.QueryString(r.URL.Query().Get("pattern"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := queryResponse{Names: make([]string, 0, len(names))}
	for _, n := range names {
		out.Names = append(out.Names, n.String())
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.record(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	doc := mbeanDocument{
		Name:       rec.Name.String(),
		Kind:       rec.Kind.String(),
		Attributes: make(map[string]any),
	}
	for _, attr := range rec.Handle.AttributeNames() {
		v, err := rec.Handle.Attribute(attr)
		if err != nil {
			// The object may have changed between listing and reading.
			continue
		}
		doc.Attributes[attr] = v
	}
	if lister, ok := rec.Handle.(interface{ Operations() []string }); ok {
		doc.Operations = lister.Operations()
	}

	if wantsProtobuf(r) {
		s.writeProtobuf(w, doc)
		return
	}
	s.writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleAttribute(w http.ResponseWriter, r *http.Request) {
	rec, err := s.record(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	attr, err := url.PathUnescape(mux.Vars(r)["attr"])
	if err != nil {
		s.writeError(w, errors.Join(flowerrors.ErrInvalidArgument, err))
		return
	}
	v, err := rec.Handle.Attribute(attr)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, attributeResponse{Name: attr, Value: v})
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	rec, err := s.record(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	op := mux.Vars(r)["op"]
	args, err := jsoncodec.DecodeArgs(r.Body)
	if err != nil {
		s.writeError(w, errors.Join(flowerrors.ErrInvalidArgument, err))
		return
	}

	ctx, span := s.tracer.Start(r.Context(), "mgmt."+op, trace.WithAttributes(
		attribute.String("mgmt.name", rec.Name.String()),
		attribute.String("mgmt.kind", rec.Kind.String()),
		attribute.Int("mgmt.args", len(args)),
	))
	start := time.Now()
	result, err := rec.Handle.Invoke(ctx, op, args...)
	s.ops.Observe(rec.Kind.String(), op, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()

	if err != nil {
		s.logger.Error("Management operation failed", err, logging.LogFields{
			"name":      rec.Name.String(),
			"operation": op,
		})
		s.writeError(w, err)
		return
	}
	s.logger.Debug("Management operation invoked", logging.LogFields{
		"name":      rec.Name.String(),
		"operation": op,
	})
	s.writeJSON(w, http.StatusOK, operationResponse{Result: result})
}

func (s *Server) record(r *http.Request) (*registry.Record, error) {
	raw, err := url.PathUnescape(mux.Vars(r)["name"])
	if err != nil {
		return nil, errors.Join(flowerrors.ErrInvalidArgument, err)
	}
	name, err := naming.Parse(raw)
	if err != nil {
		return nil, errors.Join(flowerrors.ErrInvalidArgument, err)
	}
	rec, ok := s.source.Lookup(name)
	if !ok {
		return nil, flowerrors.ErrNotFound
	}
	return rec, nil
}

func wantsProtobuf(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), contentTypeProtobuf)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, flowerrors.ErrNotFound),
		errors.Is(err, flowerrors.ErrUnknownAttribute),
		errors.Is(err, flowerrors.ErrUnknownOperation),
		errors.Is(err, flowerrors.ErrRouteNotFound):
		return http.StatusNotFound
	case errors.Is(err, flowerrors.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, flowerrors.ErrContextNotStarted),
		errors.Is(err, flowerrors.ErrNoConsumers):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := jsoncodec.Encode(w, v); err != nil {
		s.logger.Error("Failed to encode response", err, nil)
	}
}

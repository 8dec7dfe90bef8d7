// Package http exposes the emissions factor and product token operations as
// named procedures under /rpc/{procedure}, plus health checks.
//
// Queries accept GET with ?input=<json> or POST with a JSON body. Mutations
// accept POST only. Successful calls answer {"result": ...}; failures answer
// {"error": {"code", "message", "operation", "requestId"}}.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/archon-research/emissions-api/internal/domain/entity"
	"github.com/archon-research/emissions-api/internal/ports/inbound"
)

// DefaultMaxBodyBytes bounds POST bodies.
const DefaultMaxBodyBytes = 1 << 20

type procedure struct {
	mutation bool
	call     func(ctx context.Context, input json.RawMessage) (any, error)
}

// query binds a typed handler as a read-only procedure.
func query[T any](fn func(context.Context, T) (any, error)) procedure {
	return procedure{call: bind(fn)}
}

// mutation binds a typed handler as a POST-only procedure.
func mutation[T any](fn func(context.Context, T) (any, error)) procedure {
	return procedure{mutation: true, call: bind(fn)}
}

func bind[T any](fn func(context.Context, T) (any, error)) func(context.Context, json.RawMessage) (any, error) {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var in T
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, entity.NewValidationError("input", "malformed JSON: %v", err)
		}
		return fn(ctx, in)
	}
}

// HandlerConfig holds configuration for the RPC handler.
type HandlerConfig struct {
	// MaxBodyBytes bounds POST bodies. Default: DefaultMaxBodyBytes.
	MaxBodyBytes int64

	// Logger is the structured logger for the handler.
	Logger *slog.Logger
}

// Handler dispatches RPC procedures to the application services.
type Handler struct {
	factors      inbound.EmissionsFactorService
	tokens       inbound.ProductTokenService
	procedures   map[string]procedure
	maxBodyBytes int64
	logger       *slog.Logger
}

// NewHandler creates the RPC handler.
func NewHandler(config HandlerConfig, factors inbound.EmissionsFactorService, tokens inbound.ProductTokenService) (*Handler, error) {
	if factors == nil {
		return nil, fmt.Errorf("emissions factor service cannot be nil")
	}
	if tokens == nil {
		return nil, fmt.Errorf("product token service cannot be nil")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultMaxBodyBytes
	}

	h := &Handler{
		factors:      factors,
		tokens:       tokens,
		maxBodyBytes: config.MaxBodyBytes,
		logger:       config.Logger.With("component", "rpc-handler"),
	}
	h.procedures = map[string]procedure{
		"emissionsFactors.getLevel1s":                 query(h.getLevel1s),
		"emissionsFactors.getLevel2s":                 query(h.getLevel2s),
		"emissionsFactors.getLevel3s":                 query(h.getLevel3s),
		"emissionsFactors.getLevel4s":                 query(h.getLevel4s),
		"emissionsFactors.getElectricityCountries":    query(h.getElectricityCountries),
		"emissionsFactors.getElectricityUSAStates":    query(h.getElectricityUSAStates),
		"emissionsFactors.getElectricityUSAUtilities": query(h.getElectricityUSAUtilities),
		"emissionsFactors.get":                        query(h.get),
		"emissionsFactors.lookup":                     query(h.lookup),
		"productToken.count":                          query(h.count),
		"productToken.list":                           query(h.list),
		"productToken.insert":                         mutation(h.insert),
	}
	return h, nil
}

// Procedures returns the registered procedure names in sorted order.
func (h *Handler) Procedures() []string {
	names := make([]string, 0, len(h.procedures))
	for name := range h.procedures {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterRoutes mounts the RPC endpoint on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.HandleFunc("/rpc/{procedure}", h.ServeRPC)
}

// ServeRPC resolves the procedure, reads its input and writes the envelope.
func (h *Handler) ServeRPC(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "procedure")
	p, ok := h.procedures[name]
	if !ok {
		respondError(w, r, h.logger, http.StatusNotFound, CodeNotFound, fmt.Sprintf("no procedure named %q", name), name)
		return
	}

	var input []byte
	switch {
	case r.Method == http.MethodGet && !p.mutation:
		input = []byte(r.URL.Query().Get("input"))
	case r.Method == http.MethodPost:
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				respondError(w, r, h.logger, http.StatusRequestEntityTooLarge, CodePayloadTooLarge,
					fmt.Sprintf("body exceeds %d bytes", tooLarge.Limit), name)
				return
			}
			respondError(w, r, h.logger, http.StatusBadRequest, CodeBadRequest, "failed to read body", name)
			return
		}
		input = body
	default:
		allowed := "GET, POST"
		if p.mutation {
			allowed = http.MethodPost
		}
		w.Header().Set("Allow", allowed)
		respondError(w, r, h.logger, http.StatusMethodNotAllowed, CodeMethodNotSupported,
			fmt.Sprintf("%s is not supported by %s", r.Method, name), name)
		return
	}

	if len(bytes.TrimSpace(input)) == 0 {
		input = []byte("{}")
	}

	result, err := p.call(r.Context(), input)
	if err != nil {
		respondServiceError(w, r, h.logger, name, err)
		return
	}
	respondResult(w, h.logger, result)
}

func (h *Handler) getLevel1s(ctx context.Context, in levelInput) (any, error) {
	values, err := h.factors.LevelOneValues(ctx, in.Scope)
	if err != nil {
		return nil, err
	}
	return map[string][]string{"emissionsFactors": values}, nil
}

func (h *Handler) getLevel2s(ctx context.Context, in levelInput) (any, error) {
	values, err := h.factors.LevelTwoValues(ctx, in.Scope, in.Level1)
	if err != nil {
		return nil, err
	}
	return map[string][]string{"emissionsFactors": values}, nil
}

func (h *Handler) getLevel3s(ctx context.Context, in levelInput) (any, error) {
	values, err := h.factors.LevelThreeValues(ctx, in.Scope, in.Level1, in.Level2)
	if err != nil {
		return nil, err
	}
	return map[string][]string{"emissionsFactors": values}, nil
}

func (h *Handler) getLevel4s(ctx context.Context, in levelInput) (any, error) {
	values, err := h.factors.LevelFourValues(ctx, in.Scope, in.Level1, in.Level2, in.Level3)
	if err != nil {
		return nil, err
	}
	return map[string][]string{"emissionsFactors": values}, nil
}

func (h *Handler) getElectricityCountries(ctx context.Context, in countriesInput) (any, error) {
	q, err := in.toQuery()
	if err != nil {
		return nil, err
	}
	countries, err := h.factors.ElectricityCountries(ctx, q)
	if err != nil {
		return nil, err
	}
	return map[string][]string{"countries": countries}, nil
}

func (h *Handler) getElectricityUSAStates(ctx context.Context, _ struct{}) (any, error) {
	states, err := h.factors.ElectricityUSAStates(ctx)
	if err != nil {
		return nil, err
	}
	return map[string][]string{"states": states}, nil
}

func (h *Handler) getElectricityUSAUtilities(ctx context.Context, in utilitiesInput) (any, error) {
	q, err := in.toQuery()
	if err != nil {
		return nil, err
	}
	utilities, err := h.factors.ElectricityUSAUtilities(ctx, q)
	if err != nil {
		return nil, err
	}
	return map[string][]utilityDTO{"utilities": toUtilityDTOs(utilities)}, nil
}

func (h *Handler) get(ctx context.Context, in getInput) (any, error) {
	factor, err := h.factors.Get(ctx, in.UUID)
	if err != nil {
		return nil, err
	}
	return map[string]emissionsFactorDTO{"emissionsFactor": toFactorDTO(factor)}, nil
}

func (h *Handler) lookup(ctx context.Context, in lookupInput) (any, error) {
	criteria, err := in.toCriteria("")
	if err != nil {
		return nil, err
	}
	var fallback *entity.LookupCriteria
	if in.Fallback != nil {
		fb, err := in.Fallback.toCriteria("fallback.")
		if err != nil {
			return nil, err
		}
		fallback = &fb
	}

	factors, err := h.factors.Lookup(ctx, criteria, fallback)
	if err != nil {
		return nil, err
	}
	return map[string][]emissionsFactorDTO{"emissionsFactors": toFactorDTOs(factors)}, nil
}

func (h *Handler) count(ctx context.Context, in countInput) (any, error) {
	bundles, err := parseBundles(in.Bundles)
	if err != nil {
		return nil, err
	}
	count, err := h.tokens.Count(ctx, bundles)
	if err != nil {
		return nil, err
	}
	return map[string]int64{"count": count}, nil
}

type listResult struct {
	Count    int64             `json:"count"`
	Products []productTokenDTO `json:"products"`
}

func (h *Handler) list(ctx context.Context, in listInput) (any, error) {
	bundles, err := parseBundles(in.Bundles)
	if err != nil {
		return nil, err
	}
	offset, limit := in.page()

	page, err := h.tokens.List(ctx, bundles, offset, limit)
	if err != nil {
		return nil, err
	}
	products := make([]productTokenDTO, 0, len(page.Products))
	for _, p := range page.Products {
		products = append(products, toProductTokenDTO(p))
	}
	return listResult{Count: page.Count, Products: products}, nil
}

func (h *Handler) insert(ctx context.Context, in insertInput) (any, error) {
	input, err := in.toInput()
	if err != nil {
		return nil, err
	}
	token, err := h.tokens.Insert(ctx, input)
	if err != nil {
		return nil, err
	}
	return map[string]productTokenDTO{"product": toProductTokenDTO(token)}, nil
}

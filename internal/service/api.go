package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"pricewatch-backend/internal/components/assert"
	"pricewatch-backend/internal/components/db"
	"pricewatch-backend/internal/components/telemetry"
	"pricewatch-backend/internal/pipeline"
	"pricewatch-backend/internal/pricing"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	report_api_start_parser = "api.start-parser"
	report_api_prices       = "api.prices"
)

const detailPriceNotFound = "Price not found"

// PriceService is the set of direct operations on stored prices.
type PriceService interface {
	Get(ctx context.Context, id int64) (db.Price, error)
	List(ctx context.Context, offset, limit int64) ([]db.Price, error)
	Create(ctx context.Context, price db.Price) (db.Price, error)
	Update(ctx context.Context, id int64, price db.Price) (db.Price, error)
	Delete(ctx context.Context, id int64) error
}

// Triggerer starts a pipeline run in the background.
type Triggerer interface {
	Trigger(ctx context.Context) (string, error)
}

// API is the HTTP surface of the service.
type API struct {
	prices    PriceService
	runner    Triggerer
	websocket http.Handler
	metrics   *telemetry.Metrics
	tel       telemetry.API
}

func NewAPI(
	prices PriceService,
	runner Triggerer,
	websocket http.Handler,
	metrics *telemetry.Metrics,
	tel telemetry.API,
) API {
	assert.NotNil(prices)
	assert.NotNil(runner)
	assert.NotNil(websocket)
	assert.NotNil(metrics)
	assert.NotNil(tel)
	return API{
		prices:    prices,
		runner:    runner,
		websocket: websocket,
		metrics:   metrics,
		tel:       telemetry.NewScopedAPI("service", tel),
	}
}

// Routes builds the router serving every endpoint.
func (a API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/start_parser/", a.startParser)

	r.Route("/prices", func(r chi.Router) {
		r.Get("/", a.listPrices)
		r.Post("/create", a.createPrice)
		r.Get("/{id}", a.getPrice)
		r.Put("/{id}", a.updatePrice)
		r.Delete("/{id}", a.deletePrice)
	})

	r.Handle("/ws", a.websocket)
	r.Handle("/metrics", a.metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return r
}

type startParserResponse struct {
	Message string `json:"message"`
	RunID   string `json:"run_id"`
}

func (a API) startParser(w http.ResponseWriter, r *http.Request) {
	id, err := a.runner.Trigger(r.Context())
	if errors.Is(err, pipeline.ErrRunInProgress) {
		WriteJSONError(w, http.StatusConflict, "Parser is already running.")
		return
	}
	if err != nil {
		a.tel.ReportBroken(report_api_start_parser, err)
		WriteJSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	WriteJSON(w, http.StatusAccepted, startParserResponse{
		Message: "Parser started in background.",
		RunID:   id,
	})
}

type priceJSON struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Cost int64  `json:"cost"`
}

func toPriceJSON(p db.Price) priceJSON {
	return priceJSON{ID: p.ID, Name: p.Name, Cost: p.Cost}
}

// priceBody is a request body, pointers tell missing fields apart from zero values.
type priceBody struct {
	ID   *int64  `json:"id"`
	Name *string `json:"name"`
	Cost *int64  `json:"cost"`
}

func decodePriceBody(r *http.Request, requireID bool) (db.Price, error) {
	var body priceBody
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	err := decoder.Decode(&body)
	if err != nil {
		return db.Price{}, errors.New("invalid json body: " + err.Error())
	}
	if requireID && body.ID == nil {
		return db.Price{}, errors.New("field required: id")
	}
	if body.Name == nil {
		return db.Price{}, errors.New("field required: name")
	}
	if body.Cost == nil {
		return db.Price{}, errors.New("field required: cost")
	}

	price := db.Price{Name: *body.Name, Cost: *body.Cost}
	if body.ID != nil {
		price.ID = *body.ID
	}
	return price, nil
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		WriteJSONError(w, http.StatusUnprocessableEntity, "invalid price id")
		return 0, false
	}
	return id, true
}

func parseQueryInt(r *http.Request, key string, fallback int64) (int64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value < 0 {
		return 0, errors.New("invalid query parameter: " + key)
	}
	return value, nil
}

func (a API) writePriceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pricing.ErrNotFound):
		WriteJSONError(w, http.StatusNotFound, detailPriceNotFound)
	case errors.Is(err, pricing.ErrAlreadyExists):
		WriteJSONError(w, http.StatusConflict, "Price already exists")
	default:
		a.tel.ReportBroken(report_api_prices, err)
		WriteJSONError(w, http.StatusInternalServerError, "internal error")
	}
}

func (a API) listPrices(w http.ResponseWriter, r *http.Request) {
	offset, err := parseQueryInt(r, "offset", 0)
	if err != nil {
		WriteJSONError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	limit, err := parseQueryInt(r, "limit", pricing.DefaultListLimit)
	if err != nil {
		WriteJSONError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	prices, err := a.prices.List(r.Context(), offset, limit)
	if err != nil {
		a.writePriceError(w, err)
		return
	}
	out := make([]priceJSON, len(prices))
	for i, p := range prices {
		out[i] = toPriceJSON(p)
	}
	WriteJSON(w, http.StatusOK, out)
}

func (a API) getPrice(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	price, err := a.prices.Get(r.Context(), id)
	if err != nil {
		a.writePriceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toPriceJSON(price))
}

func (a API) createPrice(w http.ResponseWriter, r *http.Request) {
	price, err := decodePriceBody(r, true)
	if err != nil {
		WriteJSONError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	created, err := a.prices.Create(r.Context(), price)
	if err != nil {
		a.writePriceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toPriceJSON(created))
}

func (a API) updatePrice(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	price, err := decodePriceBody(r, false)
	if err != nil {
		WriteJSONError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	updated, err := a.prices.Update(r.Context(), id, price)
	if err != nil {
		a.writePriceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toPriceJSON(updated))
}

func (a API) deletePrice(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	err := a.prices.Delete(r.Context(), id)
	if err != nil {
		a.writePriceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

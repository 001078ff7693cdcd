package reports

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stockledger/stockledger/internal/ledger"
	"github.com/stockledger/stockledger/internal/platform/httpx"
)

// Handler exposes the reporting projections over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler wires the report handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers report routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/current-stock", h.currentStock)
	r.Get("/low-stock", h.lowStock)
	r.Get("/daily-in-out", h.inOut(BucketDay))
	r.Get("/weekly-in-out", h.inOut(BucketWeek))
	r.Get("/monthly-in-out", h.inOut(BucketMonth))
	r.Get("/top-moving", h.topMoving)
	r.Get("/recent", h.recent)
	r.Get("/txns", h.txnDetails)
}

func (h *Handler) currentStock(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.CurrentStock(r.Context(), queryInt64(r, "warehouse_id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]interface{}{"data": rows})
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.LowStock(r.Context(), queryInt64(r, "warehouse_id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]interface{}{"data": rows})
}

func (h *Handler) inOut(bucket Bucket) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, to, err := parseRange(r)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Range", err.Error())
			return
		}
		rows, err := h.service.InOut(r.Context(), bucket, InOutFilter{From: from, To: to})
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]interface{}{"data": rows})
	}
}

func (h *Handler) topMoving(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.TopMoving(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]interface{}{"data": rows})
}

func (h *Handler) recent(w http.ResponseWriter, r *http.Request) {
	movementType := ledger.MovementType(r.URL.Query().Get("type"))
	limit := int(queryInt64(r, "limit"))
	rows, err := h.service.RecentByType(r.Context(), movementType, limit)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]interface{}{"data": rows})
}

func (h *Handler) txnDetails(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Range", err.Error())
		return
	}
	filter := TxnFilter{
		From:        from,
		To:          to,
		Type:        ledger.MovementType(r.URL.Query().Get("type")),
		ProductID:   queryInt64(r, "product_id"),
		WarehouseID: queryInt64(r, "warehouse_id"),
	}
	if filter.Type != "" && !filter.Type.Valid() {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Type", "type must be IN, OUT or ADJUST")
		return
	}
	rows, err := h.service.TxnDetails(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]interface{}{"data": rows})
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidBucket), errors.Is(err, ErrInvalidType):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
	default:
		h.logger.Error("reports request failed", "path", r.URL.Path, "error", err)
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "unexpected error")
	}
}

func queryInt64(r *http.Request, name string) int64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseRange(r *http.Request) (time.Time, time.Time, error) {
	var from, to time.Time
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return from, to, errors.New("from must use YYYY-MM-DD")
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return from, to, errors.New("to must use YYYY-MM-DD")
		}
		to = parsed.Add(24*time.Hour - time.Nanosecond)
	}
	return from, to, nil
}

package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/stockledger/stockledger/internal/platform/httpx"
	"github.com/stockledger/stockledger/internal/shared"
)

// MovementRecorder counts movement postings for observability. Implementations
// must be safe for concurrent use.
type MovementRecorder interface {
	RecordMovement(movementType, outcome string)
}

// Handler wires HTTP endpoints for the ledger module.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validate  *validator.Validate
	movements MovementRecorder
}

// NewHandler constructs the ledger handler. The recorder may be nil.
func NewHandler(logger *slog.Logger, service *Service, movements MovementRecorder) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), movements: movements}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/in", h.handleReceive)
	r.Post("/out", h.handleIssue)
	r.Post("/adjust", h.handleAdjust)
	r.Get("/transactions", h.handleList)
	r.Get("/balance", h.handleBalance)
}

type receiveRequest struct {
	ProductID   int64  `json:"product_id" validate:"required,gt=0"`
	WarehouseID int64  `json:"warehouse_id" validate:"required,gt=0"`
	Quantity    int64  `json:"quantity" validate:"required,gt=0"`
	SupplierID  int64  `json:"supplier_id" validate:"omitempty,gt=0"`
	Reason      string `json:"reason" validate:"omitempty,max=255"`
	RefDocument string `json:"ref_document" validate:"omitempty,max=100"`
}

type issueRequest struct {
	ProductID   int64  `json:"product_id" validate:"required,gt=0"`
	WarehouseID int64  `json:"warehouse_id" validate:"required,gt=0"`
	Quantity    int64  `json:"quantity" validate:"required,gt=0"`
	Reason      string `json:"reason" validate:"omitempty,max=255"`
	RefDocument string `json:"ref_document" validate:"omitempty,max=100"`
}

type adjustRequest struct {
	ProductID   int64  `json:"product_id" validate:"required,gt=0"`
	WarehouseID int64  `json:"warehouse_id" validate:"required,gt=0"`
	SignedDelta int64  `json:"signed_delta" validate:"required"`
	Reason      string `json:"reason" validate:"omitempty,max=255"`
	RefDocument string `json:"ref_document" validate:"omitempty,max=100"`
}

type entryResponse struct {
	ID          int64  `json:"id"`
	TxnCode     string `json:"txn_code"`
	ProductID   int64  `json:"product_id"`
	WarehouseID int64  `json:"warehouse_id"`
	SupplierID  int64  `json:"supplier_id,omitempty"`
	Quantity    int64  `json:"quantity"`
	TxnType     string `json:"txn_type"`
	Reason      string `json:"reason,omitempty"`
	RefDocument string `json:"ref_document,omitempty"`
	StockBefore int64  `json:"stock_before"`
	StockAfter  int64  `json:"stock_after"`
	CreatedBy   int64  `json:"created_by"`
	CreatedAt   string `json:"created_at"`
}

func toEntryResponse(e Entry) entryResponse {
	return entryResponse{
		ID:          e.ID,
		TxnCode:     e.Code,
		ProductID:   e.ProductID,
		WarehouseID: e.WarehouseID,
		SupplierID:  e.SupplierID,
		Quantity:    e.Quantity,
		TxnType:     string(e.Type),
		Reason:      e.Reason,
		RefDocument: e.RefDocument,
		StockBefore: e.StockBefore,
		StockAfter:  e.StockAfter,
		CreatedBy:   e.CreatedBy,
		CreatedAt:   e.CreatedAt.Format(time.RFC3339),
	}
}

func (h *Handler) handleReceive(w http.ResponseWriter, r *http.Request) {
	var req receiveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entry, err := h.service.Receive(r.Context(), ReceiveInput{
		ProductID:      req.ProductID,
		WarehouseID:    req.WarehouseID,
		Quantity:       req.Quantity,
		SupplierID:     req.SupplierID,
		Reason:         req.Reason,
		RefDocument:    req.RefDocument,
		ActorID:        actorID(r),
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	h.recordMovement(MovementReceipt, err)
	if err != nil {
		h.respondError(w, r, "post receipt", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toEntryResponse(entry))
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entry, err := h.service.Issue(r.Context(), IssueInput{
		ProductID:      req.ProductID,
		WarehouseID:    req.WarehouseID,
		Quantity:       req.Quantity,
		Reason:         req.Reason,
		RefDocument:    req.RefDocument,
		ActorID:        actorID(r),
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	h.recordMovement(MovementIssue, err)
	if err != nil {
		h.respondError(w, r, "post issue", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toEntryResponse(entry))
}

func (h *Handler) handleAdjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entry, err := h.service.Adjust(r.Context(), AdjustInput{
		ProductID:      req.ProductID,
		WarehouseID:    req.WarehouseID,
		Delta:          req.SignedDelta,
		Reason:         req.Reason,
		RefDocument:    req.RefDocument,
		ActorID:        actorID(r),
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	h.recordMovement(MovementAdjust, err)
	if err != nil {
		h.respondError(w, r, "post adjustment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toEntryResponse(entry))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseEntryFilter(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entries, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, "list transactions", err)
		return
	}
	items := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, toEntryResponse(e))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	productID, err1 := strconv.ParseInt(r.URL.Query().Get("product_id"), 10, 64)
	warehouseID, err2 := strconv.ParseInt(r.URL.Query().Get("warehouse_id"), 10, 64)
	if err1 != nil || err2 != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "product_id and warehouse_id required")
		return
	}
	balance, err := h.service.GetBalance(r.Context(), productID, warehouseID)
	if err != nil {
		h.respondError(w, r, "get balance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"product_id":   balance.ProductID,
		"warehouse_id": balance.WarehouseID,
		"quantity":     balance.Quantity,
	})
}

func (h *Handler) recordMovement(movementType MovementType, err error) {
	if h.movements == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "rejected"
	}
	h.movements.RecordMovement(string(movementType), outcome)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrActorRequired), errors.Is(err, ErrActorUnknown):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrProductNotFound), errors.Is(err, ErrWarehouseNotFound), errors.Is(err, ErrSupplierNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInsufficientStock):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Insufficient Stock", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict), errors.Is(err, ErrDuplicateCode), errors.Is(err, ErrTxConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err), slog.String("path", r.URL.Path))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func parseEntryFilter(r *http.Request) (EntryFilter, error) {
	filter := EntryFilter{}
	q := r.URL.Query()
	if v := q.Get("product_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return EntryFilter{}, errors.New("invalid product_id")
		}
		filter.ProductID = id
	}
	if v := q.Get("warehouse_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return EntryFilter{}, errors.New("invalid warehouse_id")
		}
		filter.WarehouseID = id
	}
	if v := q.Get("type"); v != "" {
		filter.Type = MovementType(v)
		if !filter.Type.Valid() {
			return EntryFilter{}, errors.New("invalid type, expected IN, OUT or ADJUST")
		}
	}
	if v := q.Get("from"); v != "" {
		from, err := time.Parse("2006-01-02", v)
		if err != nil {
			return EntryFilter{}, errors.New("invalid from date, expected YYYY-MM-DD")
		}
		filter.From = from
	}
	if v := q.Get("to"); v != "" {
		to, err := time.Parse("2006-01-02", v)
		if err != nil {
			return EntryFilter{}, errors.New("invalid to date, expected YYYY-MM-DD")
		}
		filter.To = to.Add(24*time.Hour - time.Nanosecond)
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return EntryFilter{}, errors.New("invalid limit")
		}
		filter.Limit = limit
	}
	return filter, nil
}

// actorID reads the authenticated user id the auth proxy attaches upstream.
func actorID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
	return id
}

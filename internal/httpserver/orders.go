package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"storefront/internal/domain"
	ordersvc "storefront/internal/service/order"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"
)

// createOrderRequest accepts either items or the legacy parallel arrays.
type createOrderRequest struct {
	UserID          int64                `json:"userId"`
	ProductIDs      []int64              `json:"productIds"`
	Size            []string             `json:"size"`
	Color           []string             `json:"color"`
	Items           []ordersvc.LineInput `json:"items"`
	Total           *decimal.Decimal     `json:"total"`
	SubmissionToken string               `json:"submissionToken"`
}

type orderItemResponse struct {
	Position  int    `json:"position"`
	ProductID int64  `json:"productId"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	UnitPrice string `json:"unitPrice"`
}

type orderResponse struct {
	ID              int64               `json:"id"`
	UserID          int64               `json:"userId"`
	ProductIDs      []int64             `json:"productIds"`
	Size            []string            `json:"size"`
	Color           []string            `json:"color"`
	Items           []orderItemResponse `json:"items"`
	Total           string              `json:"total"`
	Status          string              `json:"status"`
	SubmissionToken string              `json:"submissionToken,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type statusRequest struct {
	Status string `json:"status"`
}

func toOrderResponse(o domain.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemResponse{
			Position:  it.Position,
			ProductID: it.ProductID,
			Size:      it.Size,
			Color:     it.Color,
			UnitPrice: it.UnitPrice.StringFixed(2),
		})
	}
	return orderResponse{
		ID:              o.ID,
		UserID:          o.UserID,
		ProductIDs:      o.ProductIDs(),
		Size:            o.Sizes(),
		Color:           o.Colors(),
		Items:           items,
		Total:           o.Total.StringFixed(2),
		Status:          string(o.Status),
		SubmissionToken: o.SubmissionToken,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func (h *handlers) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", "invalid JSON payload")
		return
	}

	legacy := len(req.Items) == 0
	in := ordersvc.SubmitInput{
		UserID:          req.UserID,
		Total:           req.Total,
		SubmissionToken: req.SubmissionToken,
	}
	if in.SubmissionToken == "" {
		in.SubmissionToken = c.GetHeader(idempotencyHeader)
	}
	switch {
	case !legacy && len(req.ProductIDs) > 0:
		badRequest(c, "items", "send either items or productIds, not both")
		return
	case legacy:
		cart, err := domain.CartFromParallel(req.ProductIDs, req.Size, req.Color)
		if err != nil {
			writeError(c, h.logger, err)
			return
		}
		for _, l := range cart.Lines {
			in.Lines = append(in.Lines, ordersvc.LineInput{ProductID: l.ProductID, Size: l.Size, Color: l.Color})
		}
	default:
		in.Lines = req.Items
	}

	res, err := h.orders.Submit(c.Request.Context(), in)
	if err != nil {
		if legacy {
			err = legacyFieldError(err)
		}
		writeError(c, h.logger, err)
		return
	}
	if res.Replayed {
		c.Header(replayedHeader, "true")
		c.JSON(http.StatusOK, toOrderResponse(*res.Order))
		return
	}
	c.JSON(http.StatusCreated, toOrderResponse(*res.Order))
}

func (h *handlers) getOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	o, err := h.orders.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(*o))
}

func (h *handlers) listOrders(c *gin.Context) {
	in := ordersvc.ListInput{Status: c.Query("status")}
	var ok bool
	if in.UserID, ok = queryInt64(c, "userId"); !ok {
		return
	}
	h.writeOrderList(c, in)
}

func (h *handlers) listUserOrders(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	h.writeOrderList(c, ordersvc.ListInput{Status: c.Query("status"), UserID: userID})
}

func (h *handlers) writeOrderList(c *gin.Context, in ordersvc.ListInput) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset")
	if !ok {
		return
	}
	in.Limit, in.Offset = limit, offset

	page, err := h.orders.List(c.Request.Context(), in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	resp := orderListResponse{
		Orders: make([]orderResponse, 0, len(page.Orders)),
		Total:  page.Total,
		Limit:  page.Limit,
		Offset: page.Offset,
	}
	for _, o := range page.Orders {
		resp.Orders = append(resp.Orders, toOrderResponse(o))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) updateOrderStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", "invalid JSON payload")
		return
	}
	o, err := h.orders.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(*o))
}

// legacyFieldError renames line paths to the parallel-array names the client sent.
func legacyFieldError(err error) error {
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	field := verr.Field
	switch {
	case field == "lines":
		field = "productIds"
	case strings.HasPrefix(field, "lines["):
		end := strings.Index(field, "]")
		if end < 0 {
			return err
		}
		idx := field[len("lines["):end]
		name := strings.TrimPrefix(field[end+1:], ".")
		if name == "productId" {
			name = "productIds"
		}
		field = fmt.Sprintf("%s[%s]", name, idx)
	default:
		return err
	}
	return &domain.ValidationError{Field: field, Reason: verr.Reason, Err: verr.Err}
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, name, "must be a positive integer")
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		badRequest(c, name, "must be a non-negative integer")
		return 0, false
	}
	return v, true
}

func queryInt64(c *gin.Context, name string) (int64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		badRequest(c, name, "must be a positive integer")
		return 0, false
	}
	return v, true
}

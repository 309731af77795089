package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"rental_manager/internal/rental"
	"rental_manager/internal/repository"
	"rental_manager/internal/services"
)

type OrderHandler struct {
	orderService  services.OrderService
	returnService services.ReturnService
	logger        zerolog.Logger
}

func NewOrderHandler(orderService services.OrderService, returnService services.ReturnService, logger zerolog.Logger) *OrderHandler {
	return &OrderHandler{
		orderService:  orderService,
		returnService: returnService,
		logger:        logger,
	}
}

type itemRequest struct {
	ItemName    string          `json:"item_name"`
	Description string          `json:"description"`
	PhotoURL    string          `json:"photo_url"`
	Quantity    int             `json:"quantity"`
	PricePerDay decimal.Decimal `json:"price_per_day"`
}

func (r itemRequest) input() services.ItemInput {
	return services.ItemInput{
		ItemName:    r.ItemName,
		Description: r.Description,
		PhotoURL:    r.PhotoURL,
		Quantity:    r.Quantity,
		PricePerDay: r.PricePerDay,
	}
}

type gstRequest struct {
	Enabled  bool            `json:"enabled"`
	Rate     decimal.Decimal `json:"rate"`
	Included bool            `json:"included"`
}

type createOrderRequest struct {
	BranchID        uint            `json:"branch_id"`
	CustomerID      uint            `json:"customer_id"`
	CreatedBy       uint            `json:"created_by"`
	StartDate       time.Time       `json:"start_date"`
	EndDate         time.Time       `json:"end_date"`
	RentalDays      int             `json:"rental_days"`
	SecurityDeposit decimal.Decimal `json:"security_deposit"`
	GST             *gstRequest     `json:"gst"`
	Notes           string          `json:"notes"`
	Items           []itemRequest   `json:"items"`
}

func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	input := services.CreateOrderInput{
		BranchID:        req.BranchID,
		CustomerID:      req.CustomerID,
		CreatedBy:       req.CreatedBy,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		RentalDays:      req.RentalDays,
		SecurityDeposit: req.SecurityDeposit,
		Notes:           req.Notes,
	}
	if req.GST != nil {
		input.GST = &rental.GSTConfig{Enabled: req.GST.Enabled, Rate: req.GST.Rate, Included: req.GST.Included}
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, item.input())
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), input)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	order, err := h.orderService.GetOrderByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	var filter repository.OrderFilter
	var ok bool
	if filter.BranchID, ok = parseUintQuery(c, "branch_id"); !ok {
		return
	}
	if filter.CustomerID, ok = parseUintQuery(c, "customer_id"); !ok {
		return
	}
	filter.Status = c.Query("status")
	if filter.From, ok = parseTimeQuery(c, "from"); !ok {
		return
	}
	if filter.To, ok = parseTimeQuery(c, "to"); !ok {
		return
	}
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	filter.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	orders, err := h.orderService.ListOrders(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "count": len(orders)})
}

func (h *OrderHandler) GetOrderSummary(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	summary, err := h.orderService.GetOrderItemsSummary(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Order item endpoints
func (h *OrderHandler) ListItems(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	items, err := h.orderService.ListOrderItems(c.Request.Context(), id, c.Query("return_status"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *OrderHandler) AddItem(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	order, err := h.orderService.AddItemToOrder(c.Request.Context(), id, req.input())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *OrderHandler) UpdateItem(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	itemID, ok := parseIDParam(c, "item_id")
	if !ok {
		return
	}
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	order, err := h.orderService.UpdateOrderItem(c.Request.Context(), id, itemID, req.input())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) DeleteItem(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	itemID, ok := parseIDParam(c, "item_id")
	if !ok {
		return
	}
	order, err := h.orderService.DeleteOrderItem(c.Request.Context(), id, itemID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) CancelOrder(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		StaffID uint   `json:"staff_id"`
		Reason  string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	order, err := h.orderService.CancelOrder(c.Request.Context(), id, req.StaffID, req.Reason)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) RefreshStatus(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	order, err := h.orderService.RefreshStatus(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": order.ID, "status": order.Status})
}

// Return endpoints
func (h *OrderHandler) ProcessReturn(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		ProcessedBy      uint                       `json:"processed_by"`
		ActualReturnDate time.Time                  `json:"actual_return_date"`
		Items            []services.ReturnItemInput `json:"items"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	result, err := h.returnService.ProcessReturn(c.Request.Context(), services.ProcessReturnInput{
		OrderID:          id,
		ProcessedBy:      req.ProcessedBy,
		ActualReturnDate: req.ActualReturnDate,
		Items:            req.Items,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *OrderHandler) ListReturns(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	events, err := h.returnService.ListReturnEvents(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"returns": events})
}

func (h *OrderHandler) GetReturn(c *gin.Context) {
	event, err := h.returnService.GetReturnEvent(c.Request.Context(), c.Param("reference"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

// parseTimeQuery accepts RFC 3339 timestamps or plain dates.
func parseTimeQuery(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, true
		}
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name, "field": name})
	return nil, false
}

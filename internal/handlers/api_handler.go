package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"rental_manager/internal/models"
	"rental_manager/internal/services"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type APIHandler struct {
	branchService   services.BranchService
	customerService services.CustomerService
	staffService    services.StaffService
	checks          map[string]HealthCheck
	logger          zerolog.Logger
}

func NewAPIHandler(
	branchService services.BranchService,
	customerService services.CustomerService,
	staffService services.StaffService,
	checks map[string]HealthCheck,
	logger zerolog.Logger,
) *APIHandler {
	return &APIHandler{
		branchService:   branchService,
		customerService: customerService,
		staffService:    staffService,
		checks:          checks,
		logger:          logger,
	}
}

// Health endpoint
func (h *APIHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			results[name] = err.Error()
			continue
		}
		results[name] = "ok"
	}
	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{"status": state, "checks": results})
}

// Branch endpoints
type branchRequest struct {
	Name              string           `json:"name"`
	Address           string           `json:"address"`
	Phone             string           `json:"phone"`
	GSTEnabled        bool             `json:"gst_enabled"`
	GSTRate           decimal.Decimal  `json:"gst_rate"`
	GSTIncluded       bool             `json:"gst_included"`
	LateFeeMultiplier *decimal.Decimal `json:"late_fee_multiplier"`
}

func (h *APIHandler) CreateBranch(c *gin.Context) {
	var req branchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	branch := &models.Branch{
		Name:              req.Name,
		Address:           req.Address,
		Phone:             req.Phone,
		GSTEnabled:        req.GSTEnabled,
		GSTRate:           req.GSTRate,
		GSTIncluded:       req.GSTIncluded,
		LateFeeMultiplier: req.LateFeeMultiplier,
	}
	if err := h.branchService.CreateBranch(c.Request.Context(), branch); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, branch)
}

func (h *APIHandler) GetBranch(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	branch, err := h.branchService.GetBranch(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, branch)
}

func (h *APIHandler) ListBranches(c *gin.Context) {
	branches, err := h.branchService.ListBranches(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"branches": branches})
}

func (h *APIHandler) UpdateBranchGST(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req branchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	branch, err := h.branchService.UpdateGSTSettings(c.Request.Context(), id, services.GSTSettings{
		Enabled:           req.GSTEnabled,
		Rate:              req.GSTRate,
		Included:          req.GSTIncluded,
		LateFeeMultiplier: req.LateFeeMultiplier,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, branch)
}

// Customer endpoints
func (h *APIHandler) CreateCustomer(c *gin.Context) {
	var req struct {
		BranchID uint   `json:"branch_id"`
		Name     string `json:"name"`
		Phone    string `json:"phone"`
		Email    string `json:"email"`
		Address  string `json:"address"`
		IDProof  string `json:"id_proof"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	customer := &models.Customer{
		BranchID: req.BranchID,
		Name:     req.Name,
		Phone:    req.Phone,
		Email:    req.Email,
		Address:  req.Address,
		IDProof:  req.IDProof,
	}
	if err := h.customerService.CreateCustomer(c.Request.Context(), customer); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, customer)
}

func (h *APIHandler) GetCustomer(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	customer, err := h.customerService.GetCustomer(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (h *APIHandler) ListCustomers(c *gin.Context) {
	branchID, ok := parseUintQuery(c, "branch_id")
	if !ok {
		return
	}
	if branchID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "branch_id is required", "field": "branch_id"})
		return
	}
	customers, err := h.customerService.ListCustomers(c.Request.Context(), branchID, c.Query("q"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"customers": customers})
}

// Staff endpoints
func (h *APIHandler) CreateStaff(c *gin.Context) {
	var req struct {
		Name        string `json:"name"`
		Email       string `json:"email"`
		PhoneNumber string `json:"phone_number"`
		Role        string `json:"role"`
		BranchID    *uint  `json:"branch_id"`
		Pin         string `json:"pin"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	staff := &models.Staff{
		Name:        req.Name,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		Role:        req.Role,
		BranchID:    req.BranchID,
	}
	if err := h.staffService.CreateStaff(c.Request.Context(), staff, req.Pin); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, staff)
}

func (h *APIHandler) GetStaff(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	staff, err := h.staffService.GetStaffByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, staff)
}

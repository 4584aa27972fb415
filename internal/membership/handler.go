package membership

import (
	"net/http"
	"strconv"

	"fittrack/internal/api"
	"fittrack/internal/auth"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// ListPlans godoc
// @Summary      List active plans of a gym
// @Tags         memberships
// @Produce      json
// @Security     BearerAuth
// @Param        gymID path int true "Gym ID"
// @Success      200 {array} Plan
// @Failure      404 {object} api.ErrorResponse
// @Router       /gyms/{gymID}/plans [get]
func (h *Handler) ListPlans(c *gin.Context) {
	gymID, ok := api.IDParam(c, "gymID")
	if !ok {
		return
	}

	plans, err := h.service.ListPlans(c.Request.Context(), gymID)
	if err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, plans)
}

// CreatePlan godoc
// @Summary      Create a membership plan
// @Tags         memberships
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        gymID path int true "Gym ID"
// @Param        request body CreatePlanRequest true "Plan payload"
// @Success      201 {object} Plan
// @Failure      400 {object} api.ErrorResponse
// @Failure      403 {object} api.ErrorResponse
// @Router       /gyms/{gymID}/plans [post]
func (h *Handler) CreatePlan(c *gin.Context) {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		api.Unauthorized(c)
		return
	}
	gymID, ok := api.IDParam(c, "gymID")
	if !ok {
		return
	}

	var req CreatePlanRequest
	if !api.BindJSON(c, &req) {
		return
	}

	p, err := h.service.CreatePlan(c.Request.Context(), caller, gymID, req)
	if err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// DeactivatePlan godoc
// @Summary      Stop selling a plan
// @Tags         memberships
// @Produce      json
// @Security     BearerAuth
// @Param        planID path int true "Plan ID"
// @Success      200 {object} api.MessageResponse
// @Failure      403 {object} api.ErrorResponse
// @Failure      404 {object} api.ErrorResponse
// @Router       /plans/{planID}/deactivate [post]
func (h *Handler) DeactivatePlan(c *gin.Context) {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		api.Unauthorized(c)
		return
	}
	planID, ok := api.IDParam(c, "planID")
	if !ok {
		return
	}

	if err := h.service.DeactivatePlan(c.Request.Context(), caller, planID); err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.MessageResponse{Message: "plan deactivated"})
}

// Subscribe godoc
// @Summary      Buy a membership
// @Description  Charges the wallet and starts a membership on the plan.
// @Tags         memberships
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        planID path int true "Plan ID"
// @Param        request body SubscribeRequest false "Options"
// @Success      201 {object} SubscribeResponse
// @Failure      400 {object} api.ErrorResponse
// @Failure      402 {object} api.ErrorResponse
// @Failure      404 {object} api.ErrorResponse
// @Router       /plans/{planID}/subscribe [post]
func (h *Handler) Subscribe(c *gin.Context) {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		api.Unauthorized(c)
		return
	}
	planID, ok := api.IDParam(c, "planID")
	if !ok {
		return
	}

	var req SubscribeRequest
	if c.Request.ContentLength > 0 && !api.BindJSON(c, &req) {
		return
	}

	resp, err := h.service.Subscribe(c.Request.Context(), caller, planID, req)
	if err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// CancelMembership godoc
// @Summary      Cancel a membership
// @Description  Ends the membership now and turns off auto-renew.
// @Tags         memberships
// @Produce      json
// @Security     BearerAuth
// @Param        membershipID path int true "Membership ID"
// @Success      200 {object} Membership
// @Failure      400 {object} api.ErrorResponse
// @Failure      404 {object} api.ErrorResponse
// @Router       /memberships/{membershipID}/cancel [post]
func (h *Handler) CancelMembership(c *gin.Context) {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		api.Unauthorized(c)
		return
	}
	membershipID, ok := api.IDParam(c, "membershipID")
	if !ok {
		return
	}

	m, err := h.service.CancelMembership(c.Request.Context(), caller, membershipID)
	if err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// ListMine godoc
// @Summary      My memberships
// @Tags         memberships
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} View
// @Router       /memberships [get]
func (h *Handler) ListMine(c *gin.Context) {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		api.Unauthorized(c)
		return
	}

	views, err := h.service.ListMine(c.Request.Context(), caller)
	if err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// GetActive godoc
// @Summary      Active membership at a gym
// @Tags         memberships
// @Produce      json
// @Security     BearerAuth
// @Param        gym_id query int true "Gym ID"
// @Success      200 {object} ActiveMembership
// @Failure      400 {object} api.ErrorResponse
// @Failure      404 {object} api.ErrorResponse
// @Router       /memberships/active [get]
func (h *Handler) GetActive(c *gin.Context) {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		api.Unauthorized(c)
		return
	}

	gymID, err := strconv.Atoi(c.Query("gym_id"))
	if err != nil || gymID <= 0 {
		api.BadRequest(c, "gym_id query parameter is required")
		return
	}

	m, err := h.service.ResolveActive(c.Request.Context(), caller, gymID)
	if err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

package gym

import (
	"net/http"

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

// CreateGym godoc
// @Summary      Create a gym
// @Description  Owners and admins create a gym they own.
// @Tags         gyms
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body CreateGymRequest true "Gym payload"
// @Success      201 {object} Gym
// @Failure      400 {object} api.ErrorResponse
// @Failure      403 {object} api.ErrorResponse
// @Router       /gyms [post]
func (h *Handler) CreateGym(c *gin.Context) {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		api.Unauthorized(c)
		return
	}

	var req CreateGymRequest
	if !api.BindJSON(c, &req) {
		return
	}

	g, err := h.service.CreateGym(c.Request.Context(), caller, req)
	if err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, g)
}

// ListGyms godoc
// @Summary      List gyms
// @Tags         gyms
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} Gym
// @Router       /gyms [get]
func (h *Handler) ListGyms(c *gin.Context) {
	gyms, err := h.service.ListGyms(c.Request.Context())
	if err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gyms)
}

// GetGym godoc
// @Summary      Get a gym
// @Tags         gyms
// @Produce      json
// @Security     BearerAuth
// @Param        gymID path int true "Gym ID"
// @Success      200 {object} Gym
// @Failure      404 {object} api.ErrorResponse
// @Router       /gyms/{gymID} [get]
func (h *Handler) GetGym(c *gin.Context) {
	gymID, ok := api.IDParam(c, "gymID")
	if !ok {
		return
	}

	g, err := h.service.GetGym(c.Request.Context(), gymID)
	if err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

// CreateClass godoc
// @Summary      Create a class
// @Tags         classes
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        gymID path int true "Gym ID"
// @Param        request body CreateClassRequest true "Class payload"
// @Success      201 {object} GymClass
// @Failure      400 {object} api.ErrorResponse
// @Failure      403 {object} api.ErrorResponse
// @Failure      404 {object} api.ErrorResponse
// @Router       /gyms/{gymID}/classes [post]
func (h *Handler) CreateClass(c *gin.Context) {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		api.Unauthorized(c)
		return
	}
	gymID, ok := api.IDParam(c, "gymID")
	if !ok {
		return
	}

	var req CreateClassRequest
	if !api.BindJSON(c, &req) {
		return
	}

	class, err := h.service.CreateClass(c.Request.Context(), caller, gymID, req)
	if err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, class)
}

// ListClasses godoc
// @Summary      List active classes of a gym
// @Tags         classes
// @Produce      json
// @Security     BearerAuth
// @Param        gymID path int true "Gym ID"
// @Success      200 {array} GymClass
// @Failure      404 {object} api.ErrorResponse
// @Router       /gyms/{gymID}/classes [get]
func (h *Handler) ListClasses(c *gin.Context) {
	gymID, ok := api.IDParam(c, "gymID")
	if !ok {
		return
	}

	classes, err := h.service.ListClasses(c.Request.Context(), gymID)
	if err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, classes)
}

// CreateSchedule godoc
// @Summary      Schedule a class
// @Tags         schedules
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        classID path int true "Class ID"
// @Param        request body CreateScheduleRequest true "Schedule payload"
// @Success      201 {object} ClassSchedule
// @Failure      400 {object} api.ErrorResponse
// @Failure      403 {object} api.ErrorResponse
// @Failure      404 {object} api.ErrorResponse
// @Router       /classes/{classID}/schedules [post]
func (h *Handler) CreateSchedule(c *gin.Context) {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		api.Unauthorized(c)
		return
	}
	classID, ok := api.IDParam(c, "classID")
	if !ok {
		return
	}

	var req CreateScheduleRequest
	if !api.BindJSON(c, &req) {
		return
	}

	sch, err := h.service.CreateSchedule(c.Request.Context(), caller, classID, req)
	if err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sch)
}

// ListSchedules godoc
// @Summary      List schedules of a gym with availability
// @Tags         schedules
// @Produce      json
// @Security     BearerAuth
// @Param        gymID path int true "Gym ID"
// @Param        include_past query bool false "Include schedules that already started"
// @Success      200 {array} ScheduleWithAvailability
// @Failure      404 {object} api.ErrorResponse
// @Router       /gyms/{gymID}/schedules [get]
func (h *Handler) ListSchedules(c *gin.Context) {
	gymID, ok := api.IDParam(c, "gymID")
	if !ok {
		return
	}

	schedules, err := h.service.ListSchedules(c.Request.Context(), gymID, c.Query("include_past") == "true")
	if err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, schedules)
}

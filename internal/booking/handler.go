package booking

import (
	"net/http"
	"time"

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

// CreateBooking godoc
// @Summary      Book a class
// @Description  Reserves a seat on the schedule, consuming weekly quota when a membership applies.
// @Tags         bookings
// @Produce      json
// @Security     BearerAuth
// @Param        scheduleID path int true "Schedule ID"
// @Success      201 {object} Booking
// @Failure      400 {object} api.ErrorResponse
// @Failure      403 {object} api.ErrorResponse
// @Failure      404 {object} api.ErrorResponse
// @Failure      500 {object} api.ErrorResponse
// @Router       /schedules/{scheduleID}/book [post]
func (h *Handler) CreateBooking(c *gin.Context) {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		api.Unauthorized(c)
		return
	}
	scheduleID, ok := api.IDParam(c, "scheduleID")
	if !ok {
		return
	}

	b, err := h.service.CreateBooking(c.Request.Context(), caller, scheduleID)
	if err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

// CancelBooking godoc
// @Summary      Cancel a booking
// @Description  Releases the seat. Weekly quota is not refunded.
// @Tags         bookings
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        bookingID path int true "Booking ID"
// @Param        request body CancelRequest false "Reason"
// @Success      200 {object} Booking
// @Failure      400 {object} api.ErrorResponse
// @Failure      404 {object} api.ErrorResponse
// @Router       /bookings/{bookingID}/cancel [post]
func (h *Handler) CancelBooking(c *gin.Context) {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		api.Unauthorized(c)
		return
	}
	bookingID, ok := api.IDParam(c, "bookingID")
	if !ok {
		return
	}

	var req CancelRequest
	if c.Request.ContentLength > 0 && !api.BindJSON(c, &req) {
		return
	}

	b, err := h.service.CancelBooking(c.Request.Context(), caller, bookingID, req.Reason)
	if err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// MarkAttended godoc
// @Summary      Mark a booking attended
// @Tags         bookings
// @Produce      json
// @Security     BearerAuth
// @Param        bookingID path int true "Booking ID"
// @Success      200 {object} Booking
// @Failure      400 {object} api.ErrorResponse
// @Failure      404 {object} api.ErrorResponse
// @Router       /bookings/{bookingID}/attend [post]
func (h *Handler) MarkAttended(c *gin.Context) {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		api.Unauthorized(c)
		return
	}
	bookingID, ok := api.IDParam(c, "bookingID")
	if !ok {
		return
	}

	b, err := h.service.MarkAttended(c.Request.Context(), caller, bookingID)
	if err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// CancelSchedule godoc
// @Summary      Cancel a class schedule
// @Description  Cancels the schedule and every confirmed booking on it.
// @Tags         bookings
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        scheduleID path int true "Schedule ID"
// @Param        request body CancelScheduleRequest true "Reason"
// @Success      200 {object} CancelScheduleResult
// @Failure      400 {object} api.ErrorResponse
// @Failure      403 {object} api.ErrorResponse
// @Failure      404 {object} api.ErrorResponse
// @Router       /schedules/{scheduleID}/cancel [post]
func (h *Handler) CancelSchedule(c *gin.Context) {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		api.Unauthorized(c)
		return
	}
	scheduleID, ok := api.IDParam(c, "scheduleID")
	if !ok {
		return
	}

	var req CancelScheduleRequest
	if !api.BindJSON(c, &req) {
		return
	}

	res, err := h.service.CancelSchedule(c.Request.Context(), caller, scheduleID, req.Reason)
	if err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ListMine godoc
// @Summary      My bookings
// @Tags         bookings
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} Details
// @Router       /bookings [get]
func (h *Handler) ListMine(c *gin.Context) {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		api.Unauthorized(c)
		return
	}

	rows, err := h.service.ListMine(c.Request.Context(), caller)
	if err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// ListBySchedule godoc
// @Summary      Bookings of a schedule
// @Tags         bookings
// @Produce      json
// @Security     BearerAuth
// @Param        scheduleID path int true "Schedule ID"
// @Success      200 {array} Details
// @Failure      403 {object} api.ErrorResponse
// @Failure      404 {object} api.ErrorResponse
// @Router       /schedules/{scheduleID}/bookings [get]
func (h *Handler) ListBySchedule(c *gin.Context) {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		api.Unauthorized(c)
		return
	}
	scheduleID, ok := api.IDParam(c, "scheduleID")
	if !ok {
		return
	}

	rows, err := h.service.ListBySchedule(c.Request.Context(), caller, scheduleID)
	if err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// ListByGym godoc
// @Summary      Bookings of a gym
// @Tags         bookings
// @Produce      json
// @Security     BearerAuth
// @Param        gymID path int true "Gym ID"
// @Success      200 {array} Details
// @Failure      403 {object} api.ErrorResponse
// @Failure      404 {object} api.ErrorResponse
// @Router       /gyms/{gymID}/bookings [get]
func (h *Handler) ListByGym(c *gin.Context) {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		api.Unauthorized(c)
		return
	}
	gymID, ok := api.IDParam(c, "gymID")
	if !ok {
		return
	}

	rows, err := h.service.ListByGym(c.Request.Context(), caller, gymID)
	if err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

const statsDayLayout = "2006-01-02"

// Stats godoc
// @Summary      Daily booking stats of a gym
// @Description  Defaults to the last 30 days.
// @Tags         bookings
// @Produce      json
// @Security     BearerAuth
// @Param        gymID path int true "Gym ID"
// @Param        from query string false "First day (YYYY-MM-DD)"
// @Param        to query string false "Last day (YYYY-MM-DD)"
// @Success      200 {array} DailyStats
// @Failure      400 {object} api.ErrorResponse
// @Failure      403 {object} api.ErrorResponse
// @Failure      404 {object} api.ErrorResponse
// @Router       /gyms/{gymID}/bookings/stats [get]
func (h *Handler) Stats(c *gin.Context) {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		api.Unauthorized(c)
		return
	}
	gymID, ok := api.IDParam(c, "gymID")
	if !ok {
		return
	}

	var q StatsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		api.BadRequest(c, "invalid query: "+err.Error())
		return
	}
	if errs := api.ValidateStruct(&q); len(errs) > 0 {
		api.RespondWithValidationErrors(c, errs)
		return
	}

	to := time.Now().UTC()
	if q.To != "" {
		to, _ = time.Parse(statsDayLayout, q.To)
	}
	from := to.AddDate(0, 0, -29)
	if q.From != "" {
		from, _ = time.Parse(statsDayLayout, q.From)
	}

	stats, err := h.service.Stats(c.Request.Context(), caller, gymID, from, to)
	if err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

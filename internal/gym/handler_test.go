package gym

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"fittrack/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newGymRouter(repo Repository, caller auth.Caller) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(NewService(repo))

	r := gin.New()
	r.Use(func(c *gin.Context) {
		auth.SetCaller(c, caller)
		c.Next()
	})
	r.POST("/gyms", h.CreateGym)
	r.GET("/gyms/:gymID", h.GetGym)
	r.POST("/gyms/:gymID/classes", h.CreateClass)
	r.POST("/classes/:classID/schedules", h.CreateSchedule)
	return r
}

func postJSON(r http.Handler, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(body)
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_CreateGymValidation(t *testing.T) {
	r := newGymRouter(new(MockRepository), ownerCaller)

	w := postJSON(r, "/gyms", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Name is required")
}

func TestHandler_GetGymNotFound(t *testing.T) {
	repo := new(MockRepository)
	repo.On("GetGymByID", mock.Anything, 42).Return(nil, ErrRecordNotFound)
	r := newGymRouter(repo, ownerCaller)

	req := httptest.NewRequest(http.MethodGet, "/gyms/42", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "gym_not_found")
}

func TestHandler_InvalidID(t *testing.T) {
	r := newGymRouter(new(MockRepository), ownerCaller)

	req := httptest.NewRequest(http.MethodGet, "/gyms/abc", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_CreateClassForbidden(t *testing.T) {
	repo := new(MockRepository)
	repo.On("GetGymByID", mock.Anything, 3).Return(&Gym{ID: 3, OwnerID: 10}, nil)
	r := newGymRouter(repo, otherOwner)

	w := postJSON(r, "/gyms/3/classes", CreateClassRequest{Name: "Spin"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "not_gym_owner")
}

func TestHandler_CreateScheduleBadRange(t *testing.T) {
	r := newGymRouter(new(MockRepository), ownerCaller)

	w := postJSON(r, "/classes/4/schedules", map[string]string{
		"start_time": "2026-03-02T10:00:00Z",
		"end_time":   "2026-03-02T09:00:00Z",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_schedule")
}

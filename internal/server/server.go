package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"fittrack/internal/auth"
	"fittrack/internal/booking"
	"fittrack/internal/config"
	"fittrack/internal/email"
	"fittrack/internal/gym"
	"fittrack/internal/logger"
	"fittrack/internal/membership"
	"fittrack/internal/user"
	"fittrack/internal/wallet"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	User       *user.Handler
	Gym        *gym.Handler
	Membership *membership.Handler
	Booking    *booking.Handler
	Wallet     *wallet.Handler
}

type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	limiter    *RateLimiter

	// ctx bounds background work started by Start.
	ctx  context.Context
	stop context.CancelFunc
}

// New builds the router. mail may be nil, which drops the test email route.
func New(cfg *config.Config, h Handlers, checks map[string]HealthCheck, mail *email.Service) *Server {
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	limiter := NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, 3*time.Minute)

	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), RequestLogger(), Metrics(), CORS(), limiter.Middleware())

	router.GET("/health", Health(checks))
	router.GET("/metrics", MetricsHandler())
	setupSwagger(router)

	public := router.Group("/auth")
	{
		public.POST("/register", h.User.Register)
		public.POST("/login", h.User.Login)
		public.POST("/refresh", h.User.RefreshToken)
	}

	authenticated := auth.AuthMiddleware(cfg.JWTSecret)
	manager := auth.RequireRole(auth.RoleOwner, auth.RoleAdmin)

	protected := router.Group("/")
	protected.Use(authenticated)
	{
		protected.GET("/me", h.User.GetMe)

		protected.GET("/gyms", h.Gym.ListGyms)
		protected.GET("/gyms/:gymID", h.Gym.GetGym)
		protected.GET("/gyms/:gymID/classes", h.Gym.ListClasses)
		protected.GET("/gyms/:gymID/schedules", h.Gym.ListSchedules)
		protected.GET("/gyms/:gymID/plans", h.Membership.ListPlans)

		protected.POST("/schedules/:scheduleID/book", h.Booking.CreateBooking)
		protected.POST("/bookings/:bookingID/cancel", h.Booking.CancelBooking)
		protected.POST("/bookings/:bookingID/attend", h.Booking.MarkAttended)
		protected.GET("/bookings", h.Booking.ListMine)

		protected.POST("/plans/:planID/subscribe", h.Membership.Subscribe)
		protected.POST("/memberships/:membershipID/cancel", h.Membership.CancelMembership)
		protected.GET("/memberships", h.Membership.ListMine)
		protected.GET("/memberships/active", h.Membership.GetActive)

		protected.GET("/wallet", h.Wallet.GetBalance)
		protected.POST("/wallet/topup", h.Wallet.TopUp)
		protected.GET("/wallet/transactions", h.Wallet.ListTransactions)
	}

	managed := router.Group("/")
	managed.Use(authenticated, manager)
	{
		managed.POST("/gyms", h.Gym.CreateGym)
		managed.POST("/gyms/:gymID/classes", h.Gym.CreateClass)
		managed.POST("/classes/:classID/schedules", h.Gym.CreateSchedule)
		managed.POST("/gyms/:gymID/plans", h.Membership.CreatePlan)
		managed.POST("/plans/:planID/deactivate", h.Membership.DeactivatePlan)
		managed.POST("/schedules/:scheduleID/cancel", h.Booking.CancelSchedule)
		managed.GET("/schedules/:scheduleID/bookings", h.Booking.ListBySchedule)
		managed.GET("/gyms/:gymID/bookings", h.Booking.ListByGym)
		managed.GET("/gyms/:gymID/bookings/stats", h.Booking.Stats)
	}

	if mail != nil {
		admin := router.Group("/admin")
		admin.Use(authenticated, auth.RequireRole(auth.RoleAdmin))
		admin.POST("/test-email", TestEmail(mail))
	}

	ctx, stop := context.WithCancel(context.Background())
	return &Server{
		router:  router,
		limiter: limiter,
		ctx:     ctx,
		stop:    stop,
		httpServer: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	go s.limiter.Run(s.ctx)

	logger.Info("server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.stop()
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.stop()
	return s.httpServer.Shutdown(ctx)
}

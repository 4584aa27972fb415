package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fittrack_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fittrack_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fittrack_bookings_total",
			Help: "Total number of confirmed bookings",
		},
		[]string{"membership"},
	)

	BookingRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fittrack_booking_rejections_total",
			Help: "Booking attempts rejected by a business rule",
		},
		[]string{"reason"},
	)

	BookingCancellationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fittrack_booking_cancellations_total",
			Help: "Total number of booking cancellations",
		},
	)

	AttendanceTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fittrack_attendance_total",
			Help: "Total number of bookings marked attended",
		},
	)

	ScheduleCancellationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fittrack_schedule_cancellations_total",
			Help: "Total number of cancelled class schedules",
		},
	)

	EmailsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fittrack_emails_sent_total",
			Help: "Total number of emails sent",
		},
		[]string{"type", "status"},
	)

	EmailQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fittrack_email_queue_length",
			Help: "Current length of email queue",
		},
	)

	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fittrack_events_published_total",
			Help: "Booking events handed to the broker",
		},
		[]string{"type", "status"},
	)

	WalletTopUpsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fittrack_wallet_topups_total",
			Help: "Total number of wallet top-ups",
		},
	)

	MembershipsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fittrack_memberships_created_total",
			Help: "Total number of memberships created",
		},
		[]string{"kind"},
	)

	MembershipsExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fittrack_memberships_expired_total",
			Help: "Memberships flipped to expired by the sweeper",
		},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordBooking counts a confirmed booking; withMembership tells whether a quota was consumed.
func RecordBooking(withMembership bool) {
	label := "none"
	if withMembership {
		label = "membership"
	}
	BookingsTotal.WithLabelValues(label).Inc()
}

func RecordBookingRejection(reason string) {
	BookingRejectionsTotal.WithLabelValues(reason).Inc()
}

func RecordBookingCancellation() {
	BookingCancellationsTotal.Inc()
}

func RecordAttendance() {
	AttendanceTotal.Inc()
}

func RecordScheduleCancellation() {
	ScheduleCancellationsTotal.Inc()
}

func RecordEmail(emailType, status string) {
	EmailsSentTotal.WithLabelValues(emailType, status).Inc()
}

func RecordEventPublished(eventType, status string) {
	EventsPublishedTotal.WithLabelValues(eventType, status).Inc()
}

func RecordWalletTopUp() {
	WalletTopUpsTotal.Inc()
}

func RecordMembershipCreated(kind string) {
	MembershipsCreatedTotal.WithLabelValues(kind).Inc()
}

func RecordMembershipExpired() {
	MembershipsExpiredTotal.Inc()
}

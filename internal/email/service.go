// Package email queues outgoing mail in Redis and delivers it over SMTP.
package email

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/smtp"
	"time"

	"fittrack/internal/logger"
	"fittrack/internal/metrics"

	"github.com/redis/go-redis/v9"
)

const (
	queueKey       = "emails"
	failedQueueKey = "emails:failed"
	maxTries       = 3
	pollTimeout    = 2 * time.Second
)

type Job struct {
	To      string    `json:"to"`
	Name    string    `json:"name"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	Kind    string    `json:"kind"`
	Tries   int       `json:"tries"`
	Created time.Time `json:"created"`
}

type Config struct {
	From     string
	FromName string
	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
}

// SendFunc delivers one job. The default speaks SMTP.
type SendFunc func(cfg Config, job Job) error

type Service struct {
	redis      *redis.Client
	cfg        Config
	send       SendFunc
	retryDelay time.Duration
}

func New(rdb *redis.Client, cfg Config) *Service {
	return &Service{redis: rdb, cfg: cfg, send: sendSMTP, retryDelay: 5 * time.Second}
}

// Enqueue pushes a job for the worker.
func (s *Service) Enqueue(ctx context.Context, job Job) error {
	if job.Created.IsZero() {
		job.Created = time.Now()
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal email job: %w", err)
	}
	if err := s.redis.LPush(ctx, queueKey, string(data)).Err(); err != nil {
		logger.Error("email enqueue failed", "to", job.To, "error", err)
		return fmt.Errorf("queue email: %w", err)
	}
	logger.Debug("email queued", "to", job.To, "kind", job.Kind)
	return nil
}

// Start runs the delivery worker until ctx is done.
func (s *Service) Start(ctx context.Context) {
	logger.Info("email worker started")
	for {
		select {
		case <-ctx.Done():
			logger.Info("email worker stopped")
			return
		default:
			s.processNext(ctx)
		}
	}
}

func (s *Service) processNext(ctx context.Context) {
	result, err := s.redis.BRPop(ctx, pollTimeout, queueKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			logger.Warn("email queue poll failed", "error", err)
			time.Sleep(pollTimeout)
		}
		return
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		logger.Error("bad email job", "error", err)
		return
	}
	s.deliver(ctx, job)
}

func (s *Service) deliver(ctx context.Context, job Job) {
	job.Tries++
	if err := s.send(s.cfg, job); err != nil {
		logger.Error("email send failed", "to", job.To, "attempt", job.Tries, "error", err)

		if job.Tries < maxTries {
			time.Sleep(s.retryDelay)
			data, _ := json.Marshal(job)
			s.redis.LPush(context.WithoutCancel(ctx), queueKey, string(data))
			return
		}
		metrics.RecordEmail(job.Kind, "failed")
		s.saveFailed(ctx, job, err)
		return
	}

	metrics.RecordEmail(job.Kind, "success")
	logger.Info("email sent", "to", job.To, "kind", job.Kind)
}

func (s *Service) saveFailed(ctx context.Context, job Job, cause error) {
	failed := map[string]interface{}{
		"job":   job,
		"error": cause.Error(),
		"time":  time.Now(),
	}
	data, _ := json.Marshal(failed)
	s.redis.LPush(context.WithoutCancel(ctx), failedQueueKey, string(data))
	logger.Error("email moved to failed queue", "to", job.To)
}

func (s *Service) QueueLength(ctx context.Context) int64 {
	length, err := s.redis.LLen(ctx, queueKey).Result()
	if err != nil {
		return 0
	}
	metrics.EmailQueueLength.Set(float64(length))
	return length
}

func sendSMTP(cfg Config, job Job) error {
	message := fmt.Sprintf("From: %s <%s>\r\n", cfg.FromName, cfg.From)
	message += fmt.Sprintf("To: %s\r\n", job.To)
	message += fmt.Sprintf("Subject: %s\r\n", job.Subject)
	message += "\r\n" + job.Body

	var auth smtp.Auth
	if cfg.SMTPUser != "" && cfg.SMTPPass != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPHost)
	}
	return smtp.SendMail(cfg.SMTPHost+":"+cfg.SMTPPort, auth, cfg.From, []string{job.To}, []byte(message))
}

package email

import (
	"context"
	"fmt"

	"fittrack/internal/events"
)

const timeLayout = "Jan 2, 2006 at 3:04 PM"

type Recipient struct {
	Email string
	Name  string
}

// RecipientLookup resolves who a booking event should be mailed to.
type RecipientLookup interface {
	Recipient(ctx context.Context, userID int) (Recipient, error)
}

// Notifier turns booking events into queued emails.
type Notifier struct {
	mail  *Service
	users RecipientLookup
}

func NewNotifier(mail *Service, users RecipientLookup) *Notifier {
	return &Notifier{mail: mail, users: users}
}

func (n *Notifier) HandleBookingEvent(ctx context.Context, ev events.BookingEvent) error {
	to, err := n.users.Recipient(ctx, ev.UserID)
	if err != nil {
		return fmt.Errorf("lookup recipient %d: %w", ev.UserID, err)
	}

	job, ok := compose(ev, to)
	if !ok {
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
	return n.mail.Enqueue(ctx, job)
}

func compose(ev events.BookingEvent, to Recipient) (Job, bool) {
	when := ev.StartTime.Format(timeLayout)
	job := Job{To: to.Email, Name: to.Name, Kind: string(ev.Type)}

	switch ev.Type {
	case events.BookingConfirmed:
		job.Subject = "Booking Confirmed - " + ev.ClassName
		job.Body = fmt.Sprintf("Hi %s,\n\nYour spot in %s at %s is confirmed.\nTime: %s\n\nSee you at the gym!\n\n- FitTrack Team",
			to.Name, ev.ClassName, ev.GymName, when)
	case events.BookingCancelled:
		job.Subject = "Booking Cancelled - " + ev.ClassName
		reason := ev.Reason
		if reason == "" {
			reason = "not given"
		}
		job.Body = fmt.Sprintf("Hi %s,\n\nYour booking for %s at %s on %s was cancelled.\nReason: %s\n\n- FitTrack Team",
			to.Name, ev.ClassName, ev.GymName, when, reason)
	case events.BookingAttended:
		job.Subject = "Thanks for training with us"
		job.Body = fmt.Sprintf("Hi %s,\n\nYour attendance at %s on %s has been recorded.\n\n- FitTrack Team",
			to.Name, ev.ClassName, when)
	default:
		return Job{}, false
	}
	return job, true
}

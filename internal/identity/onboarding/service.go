package onboarding

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"meetdir/internal/directory"
	"meetdir/internal/identity"
	"meetdir/internal/identity/metrics"
	"meetdir/pkg/fielderr"
	"meetdir/pkg/platform/audit"
)

// Service drives invite persistence with the ambient concerns attached:
// structured logging, metrics, and the audit trail. The state machine itself
// lives on Invite; the service only wraps its transitions.
type Service struct {
	conn    *directory.Conn
	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   audit.Publisher
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets a logger for transition outcomes.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithAudit sets the audit sink.
func WithAudit(p audit.Publisher) Option {
	return func(s *Service) { s.audit = p }
}

func NewService(conn *directory.Conn, opts ...Option) *Service {
	s := &Service{conn: conn}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInvite starts a draft on the service's session.
func (s *Service) NewInvite() *Invite {
	return New(s.conn)
}

// FindInvite rehydrates a pending invite by token.
func (s *Service) FindInvite(ctx context.Context, token string) (*Invite, error) {
	return Find(ctx, s.conn, token)
}

// Pending lists every invite still awaiting promotion and tracks the backlog
// gauge as a side effect.
func (s *Service) Pending(ctx context.Context) ([]*Invite, error) {
	invites, err := All(ctx, s.conn)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.SetPendingInvites(len(invites))
	}
	return invites, nil
}

// Save persists the invite and records the outcome.
func (s *Service) Save(ctx context.Context, inv *Invite, acks fielderr.Acks) error {
	start := time.Now()
	if err := inv.Save(ctx, acks); err != nil {
		if s.logger != nil && !errors.Is(err, ErrNotReady) {
			s.logger.ErrorContext(ctx, "invite save failed",
				"invitee", inv.Name(), "error", err)
		}
		return err
	}
	if s.metrics != nil {
		s.metrics.IncrementInviteSaved()
		s.metrics.ObserveSave(start)
	}
	s.emit(ctx, audit.Event{
		Action: audit.ActionInviteSaved,
		DN:     inv.DN(),
		Actor:  inv.Requester.DN,
		Detail: map[string]string{"primary_group": inv.PrimaryGroup},
	})
	if s.logger != nil {
		s.logger.InfoContext(ctx, "invite saved", "token", inv.Token, "invitee", inv.Name())
	}
	return nil
}

// Promote runs the three-step promotion and records the outcome. A failing
// step is counted by name: those failures leave the directory in an
// intermediate state and need an operator's eye.
func (s *Service) Promote(ctx context.Context, inv *Invite, acks fielderr.Acks) (*identity.User, error) {
	start := time.Now()
	pendingDN := inv.DN()

	user, err := inv.Promote(ctx, acks)
	if err != nil {
		var pe *PromoteError
		if errors.As(err, &pe) {
			if s.metrics != nil {
				s.metrics.IncrementPromotionFailure(string(pe.Step))
			}
			s.emit(ctx, audit.Event{
				Action: audit.ActionPromotionFailed,
				DN:     pe.DN,
				Detail: map[string]string{"step": string(pe.Step), "pending_dn": pendingDN},
			})
			if s.logger != nil {
				s.logger.ErrorContext(ctx, "promotion failed mid-sequence",
					"step", pe.Step, "dn", pe.DN, "pending_dn", pendingDN, "error", pe.Err)
			}
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementUserPromoted()
		s.metrics.ObservePromote(start)
	}
	s.emit(ctx, audit.Event{
		Action: audit.ActionUserPromoted,
		DN:     user.DN,
		Actor:  requesterDN(inv),
		Detail: map[string]string{"username": user.Username, "primary_group": inv.PrimaryGroup},
	})
	if s.logger != nil {
		s.logger.InfoContext(ctx, "user promoted", "username", user.Username)
	}
	return user, nil
}

// emit publishes fail-open: the directory write already happened and the
// pending record or change log is the durable evidence, so a dead sink only
// gets logged.
func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	event.Timestamp = time.Now()
	if err := s.audit.Publish(ctx, event); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "audit publish failed", "action", event.Action, "error", err)
	}
}

func requesterDN(inv *Invite) string {
	if inv.Requester == nil {
		return ""
	}
	return inv.Requester.DN
}

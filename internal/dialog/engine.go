package dialog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Ananth-NQI/pbx-ivr-backend/internal/config"
	"github.com/Ananth-NQI/pbx-ivr-backend/internal/ivr"
	"github.com/Ananth-NQI/pbx-ivr-backend/internal/metrics"
	"github.com/Ananth-NQI/pbx-ivr-backend/internal/models"
	"github.com/Ananth-NQI/pbx-ivr-backend/internal/session"
	"github.com/Ananth-NQI/pbx-ivr-backend/internal/storage"
)

const notifyTimeout = 30 * time.Second

// Callback results reported to metrics
const (
	resultPrompt      = "prompt"
	resultStale       = "stale"
	resultAdvanced    = "advanced"
	resultRetry       = "retry"
	resultRestarted   = "restarted"
	resultCompleted   = "completed"
	resultTransferred = "transferred"
	resultLocked      = "locked"
	resultFailed      = "failed"
)

// Repository is the customer storage the dialogue needs.
type Repository interface {
	GetCustomerByPhone(ctx context.Context, phone string) (*models.Customer, error)
	VerifyPassword(ctx context.Context, phone, password string) (bool, error)
	CreateCustomer(ctx context.Context, reg *models.CustomerRegistration) (*models.Customer, error)
	FindOrCreateContact(ctx context.Context, customerID uint, name string) (*models.Contact, error)
	CreateReceipt(ctx context.Context, receipt *models.Receipt) (*models.Receipt, error)
	CreateChild(ctx context.Context, child *models.Child) (*models.Child, error)
	SaveCall(ctx context.Context, call *models.Call) error
}

// Notifier tells a customer a receipt was issued.
type Notifier interface {
	NotifyReceipt(ctx context.Context, phone string, contact *models.Contact, receipt *models.Receipt) error
}

// Config tunes the dialogue.
type Config struct {
	MaxAttempts int
	Extensions  config.Extensions
}

// Engine drives every flow. It holds no call state itself; sessions live in
// the injected store.
type Engine struct {
	sessions session.Store
	repo     Repository
	notifier Notifier
	cfg      Config
	flows    map[string]*Flow
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithNotifier sends receipt notifications through n.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		e.notifier = n
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates a dialogue engine with the login, registration, receipt
// and child flows.
func NewEngine(sessions session.Store, repo Repository, cfg Config, opts ...Option) *Engine {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 4
	}

	e := &Engine{
		sessions: sessions,
		repo:     repo,
		cfg:      cfg,
		now:      time.Now,
		flows: map[string]*Flow{
			FlowLogin:        loginFlow,
			FlowRegistration: registrationFlow,
			FlowReceipt:      receiptFlow,
			FlowChild:        childFlow,
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Handle processes one callback and returns the next IVR action. Dialogue
// failures come back as descriptors; an error means the request itself could
// not be served.
func (e *Engine) Handle(ctx context.Context, flowName string, cb Callback) (ivr.Descriptor, error) {
	flow, ok := e.flows[flowName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFlow, flowName)
	}
	if cb.CallID == "" || cb.Phone == "" {
		return nil, ErrMissingCaller
	}

	start := time.Now()
	defer func() {
		metrics.CallbackDuration.WithLabelValues(flow.Name).Observe(time.Since(start).Seconds())
	}()

	var (
		resp   ivr.Descriptor
		result string
	)
	err := e.sessions.Transition(ctx, cb.CallID, flow.Name, flow.Initial(), func(s *session.Session) error {
		t := &turn{ctx: ctx, e: e, flow: flow, sess: s, cb: cb}
		resp, result = e.advance(t)
		return nil
	})
	if err != nil {
		metrics.CallbacksTotal.WithLabelValues(flow.Name, "error").Inc()
		return nil, fmt.Errorf("session %s: %w", cb.CallID, err)
	}

	metrics.CallbacksTotal.WithLabelValues(flow.Name, result).Inc()
	return resp, nil
}

// advance applies the transition rule for the session's expected step.
func (e *Engine) advance(t *turn) (ivr.Descriptor, string) {
	s := t.sess
	if s.Locked {
		// a flow switch does not clear a lockout
		return e.lockout(t, s.Step, false)
	}
	if s.Flow != t.flow.Name {
		// the PBX keeps the call id across extension changes
		log.Printf("🔀 [%s] switching flow %s -> %s", s.CallID, s.Flow, t.flow.Name)
		s.Restart(t.flow.Name, t.flow.Initial())
	}
	if s.Phone == "" {
		s.Phone = t.cb.Phone
	}

	step, ok := t.flow.Step(s.Step)
	if !ok {
		log.Printf("⚠️  [%s] unknown step %q in flow %s, restarting", s.CallID, s.Step, t.flow.Name)
		s.Restart(t.flow.Name, t.flow.Initial())
		step, _ = t.flow.Step(s.Step)
	}

	if s.Attempts[step.Name] >= e.cfg.MaxAttempts {
		return e.lockout(t, step.Name, false)
	}

	if t.flow.NeedsCustomer && s.CustomerID == 0 {
		customer, err := e.repo.GetCustomerByPhone(t.ctx, s.Phone)
		if errors.Is(err, storage.ErrNotFound) {
			return e.fail(t, &NotFoundError{Phone: s.Phone})
		}
		if err != nil {
			return e.fail(t, &PersistenceError{Op: "lookup customer", Err: err})
		}
		s.CustomerID = customer.ID
	}

	if t.cb.Key == "" {
		return step.Prompt(t), resultPrompt
	}
	if t.cb.Key != step.Name {
		log.Printf("↩️  [%s] stale answer %q while expecting %q", s.CallID, t.cb.Key, step.Name)
		return step.Prompt(t), resultStale
	}

	value, err := step.Validate(t, strings.TrimSpace(t.cb.Value))
	if err != nil {
		var verr *ValidationError
		if !errors.As(err, &verr) {
			return e.fail(t, err)
		}

		s.Attempts[step.Name]++
		log.Printf("❌ [%s] %s rejected (%d/%d): %s", s.CallID, step.Name, s.Attempts[step.Name], e.cfg.MaxAttempts, verr.Message)
		if s.Attempts[step.Name] >= e.cfg.MaxAttempts {
			return e.lockout(t, step.Name, true)
		}
		return retryPrompt(step.Prompt(t), verr.Message), resultRetry
	}

	if !step.Sensitive {
		s.Fields[step.Name] = value
	}
	delete(s.Attempts, step.Name)

	if step.Complete != nil {
		resp, result, err := step.Complete(t, value)
		if err != nil {
			return e.fail(t, err)
		}
		return resp, result
	}

	next := t.flow.After(step.Name)
	if next == nil {
		// a last step without Complete just ends the flow
		e.record(t, models.CallOutcomeCompleted)
		s.End()
		return ivr.Terminal{Name: t.flow.Name + "_done", Message: msgDone}, resultCompleted
	}

	s.Step = next.Name
	return next.Prompt(t), resultAdvanced
}

// lockout answers every callback once a step ran out of attempts. The
// session is kept and marked locked, so retried callbacks on any flow stay
// locked until it expires.
func (e *Engine) lockout(t *turn, step string, first bool) (ivr.Descriptor, string) {
	if first {
		t.sess.Locked = true
		err := &AttemptsExceededError{Step: step, Attempts: t.sess.Attempts[step]}
		log.Printf("🔒 [%s] %v", t.sess.CallID, err)
		e.record(t, models.CallOutcomeLocked)
	}
	return ivr.Terminal{Name: "error_" + step, Message: msgLocked}, resultLocked
}

// fail turns a dialogue error into the caller-facing response and ends the session.
func (e *Engine) fail(t *turn, err error) (ivr.Descriptor, string) {
	s := t.sess
	defer s.End()

	var (
		notFound    *NotFoundError
		duplicate   *DuplicateError
		persistence *PersistenceError
	)
	switch {
	case errors.As(err, &notFound):
		log.Printf("👤 [%s] %v, routing to registration", s.CallID, err)
		e.record(t, models.CallOutcomeTransferred)
		return ivr.Terminal{Name: "no_customer_" + t.flow.Name, Message: msgNotRegistered, Destination: e.cfg.Extensions.Register}, resultTransferred

	case errors.As(err, &duplicate):
		log.Printf("⚠️  [%s] %v", s.CallID, err)

	case errors.As(err, &persistence):
		metrics.RepositoryFailures.WithLabelValues(persistence.Op).Inc()
		log.Printf("❌ [%s] repository failure in %s: %v", s.CallID, t.flow.Name, err)

	default:
		log.Printf("❌ [%s] unexpected failure in %s: %v", s.CallID, t.flow.Name, err)
	}

	e.record(t, models.CallOutcomeFailed)
	return ivr.Terminal{Name: "error_" + t.flow.Name, Message: failureMessage(t.flow.Name), Destination: t.flow.FailTo(e)}, resultFailed
}

// record upserts the call record. Failures are logged only.
func (e *Engine) record(t *turn, outcome string) {
	s := t.sess

	data, err := json.Marshal(s.Fields)
	if err != nil {
		data = []byte("{}")
	}

	ended := e.now()
	call := &models.Call{
		CallID:    s.CallID,
		Phone:     s.Phone,
		Flow:      t.flow.Name,
		Outcome:   outcome,
		Data:      string(data),
		StartedAt: s.CreatedAt,
		EndedAt:   &ended,
	}
	if s.CustomerID != 0 {
		id := s.CustomerID
		call.CustomerID = &id
	}

	if err := e.repo.SaveCall(t.ctx, call); err != nil {
		metrics.RepositoryFailures.WithLabelValues("save call").Inc()
		log.Printf("⚠️  [%s] failed to save call record: %v", s.CallID, err)
	}
}

// notifyReceipt sends the receipt notification without holding up the call.
func (e *Engine) notifyReceipt(phone string, contact *models.Contact, receipt *models.Receipt) {
	if e.notifier == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		if err := e.notifier.NotifyReceipt(ctx, phone, contact, receipt); err != nil {
			metrics.NotificationsSent.WithLabelValues("failed").Inc()
			log.Printf("⚠️  Failed to send receipt %s notification to %s: %v", receipt.ReceiptNo, phone, err)
			return
		}
		metrics.NotificationsSent.WithLabelValues("sent").Inc()
	}()
}

func retryPrompt(p ivr.Prompt, message string) ivr.Prompt {
	p.Text = message + ". " + p.Text
	return p
}

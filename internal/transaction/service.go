package transaction

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	errors "github.com/frahmantamala/credit-marketplace/internal"
	"github.com/frahmantamala/credit-marketplace/internal/core/database"
	paymentgatewaytypes "github.com/frahmantamala/credit-marketplace/internal/core/datamodel/paymentgateway"
	txDatamodel "github.com/frahmantamala/credit-marketplace/internal/core/datamodel/transaction"
	"github.com/frahmantamala/credit-marketplace/internal/core/events"
	"github.com/frahmantamala/credit-marketplace/internal/ledger"
	"github.com/frahmantamala/credit-marketplace/internal/metrics"
)

type Config struct {
	Currency        string
	MinorUnitFactor int64
	LedgerTimeout   time.Duration
}

// Deps are the collaborators of the lifecycle service.
type Deps struct {
	Repo       RepositoryAPI
	Gateway    OrderGateway
	Ledger     ledger.Ledger
	Credits    CreditLedger
	Plans      PlanCatalog
	Transactor database.Transactor
	Events     events.Publisher
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	Config     Config
}

// Service drives a purchase from form submission to credited balance.
type Service struct {
	repo       RepositoryAPI
	gateway    OrderGateway
	ledger     ledger.Ledger
	credits    CreditLedger
	plans      PlanCatalog
	transactor database.Transactor
	events     events.Publisher
	metrics    *metrics.Metrics
	logger     *slog.Logger
	cfg        Config
	now        func() time.Time
}

func NewService(d Deps) *Service {
	cfg := d.Config
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	if cfg.MinorUnitFactor <= 0 {
		cfg.MinorUnitFactor = 100
	}
	if cfg.LedgerTimeout <= 0 {
		cfg.LedgerTimeout = 5 * time.Second
	}
	l := d.Ledger
	if l == nil {
		l = ledger.Nop{}
	}
	m := d.Metrics
	if m == nil {
		m = metrics.NewNop()
	}
	return &Service{
		repo:       d.Repo,
		gateway:    d.Gateway,
		ledger:     l,
		credits:    d.Credits,
		plans:      d.Plans,
		transactor: d.Transactor,
		events:     d.Events,
		metrics:    m,
		logger:     d.Logger,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Submit records a pending purchase priced from the catalog.
func (s *Service) Submit(ctx context.Context, userID int64, dto SubmitFormDTO) (*txDatamodel.Transaction, error) {
	if userID <= 0 {
		return nil, errors.NewValidationFieldError("userId", "userId is required", errors.ErrCodeValidationFailed)
	}

	dto.Normalize()
	if appErr := dto.Validate(); appErr != nil {
		s.logger.Warn("submit validation failed", "user_id", userID, "error", appErr.GetDetailedMessage())
		return nil, appErr
	}

	p, err := s.plans.Lookup(dto.PlanID)
	if err != nil {
		s.logger.Warn("submit rejected: unknown plan", "user_id", userID, "plan_id", dto.PlanID)
		return nil, err
	}

	t := &txDatamodel.Transaction{
		ID:             uuid.NewString(),
		UserID:         userID,
		PlanID:         p.ID,
		Amount:         p.Amount,
		Credits:        p.Credits,
		PaymentMethod:  dto.PaymentMethod,
		EMIDuration:    int(dto.EMIDuration),
		EMIAmount:      EMIInstallment(p.Amount, int(dto.EMIDuration)),
		BillingDetails: datatypes.NewJSONType(dto.BillingDetails),
		PaymentStatus:  txDatamodel.StatusPending,
	}

	if err := s.repo.Create(ctx, t); err != nil {
		return nil, errors.NewInternalError("failed to save transaction", err)
	}

	s.metrics.TransactionsSubmitted.WithLabelValues(t.PlanID, t.PaymentMethod).Inc()
	s.logger.Info("transaction submitted",
		"transaction_id", t.ID,
		"user_id", userID,
		"plan_id", t.PlanID,
		"amount", t.Amount,
		"credits", t.Credits,
		"payment_method", t.PaymentMethod)
	s.publish(ctx, events.NewTransactionSubmittedEvent(t.ID, userID, t.PlanID, t.Amount, t.Credits, t.PaymentMethod))

	return t, nil
}

// CreateOrder opens a provider order for the caller's pending transaction.
// Calling it again while pending replaces the stored order id.
func (s *Service) CreateOrder(ctx context.Context, userID int64, dto CreateOrderDTO) (*paymentgatewaytypes.Order, error) {
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	t, err := s.ownTransaction(ctx, userID, strings.TrimSpace(dto.TransactionID))
	if err != nil {
		return nil, err
	}

	if planID := strings.TrimSpace(dto.PlanID); planID != "" && planID != t.PlanID {
		return nil, errors.NewValidationFieldError("planId", "planId does not match the submitted transaction", errors.ErrCodePlanMismatch)
	}
	if !t.IsPending() {
		return nil, errors.ErrTransactionNotPending
	}

	order, err := s.gateway.CreateOrder(ctx, &paymentgatewaytypes.OrderRequest{
		AmountMinor: t.Amount * s.cfg.MinorUnitFactor,
		Currency:    s.cfg.Currency,
		Receipt:     t.ID,
		Notes: map[string]string{
			"transaction_id": t.ID,
			"plan_id":        t.PlanID,
		},
	})
	if err != nil {
		s.logger.Error("order creation failed", "transaction_id", t.ID, "error", err)
		return nil, errors.ErrGatewayUnavailable.WithCause(err)
	}

	if err := s.repo.AttachOrder(ctx, t.ID, order.ID, s.cfg.Currency); err != nil {
		if stderrors.Is(err, errors.ErrTransactionNotPending) {
			return nil, err
		}
		return nil, errors.NewInternalError("failed to attach order", err)
	}

	if prev := t.ExternalOrderID(); prev != "" && prev != order.ID {
		s.logger.Info("order replaced", "transaction_id", t.ID, "previous_order_id", prev, "order_id", order.ID)
	}

	s.metrics.OrdersCreated.WithLabelValues(t.PlanID).Inc()
	s.logger.Info("order created",
		"transaction_id", t.ID,
		"order_id", order.ID,
		"user_id", userID,
		"amount_minor", order.Amount,
		"currency", s.cfg.Currency)
	s.publish(ctx, events.NewOrderCreatedEvent(t.ID, userID, order.ID, order.Amount, s.cfg.Currency))

	return order, nil
}

// Verify settles a paid order exactly once. Duplicate and concurrent calls
// after the first report already_processed and change nothing.
func (s *Service) Verify(ctx context.Context, orderID string) (*VerifyResult, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, errors.NewValidationFieldError("externalOrderId", "externalOrderId is required", errors.ErrCodeValidationFailed)
	}

	order, err := s.gateway.FetchOrder(ctx, orderID)
	if err != nil {
		s.metrics.Verifications.WithLabelValues("gateway_error").Inc()
		s.logger.Error("order status fetch failed", "order_id", orderID, "error", err)
		return nil, errors.ErrGatewayUnavailable.WithCause(err)
	}

	if !order.IsPaid() {
		s.metrics.Verifications.WithLabelValues(VerifyStatusFailed).Inc()
		s.logger.Info("payment not completed", "order_id", orderID, "provider_status", order.Status)
		return &VerifyResult{Status: VerifyStatusFailed, ProviderStatus: string(order.Status)}, nil
	}

	var completed *txDatamodel.Transaction
	completedAt := s.now()

	err = s.transactor.WithinTransaction(ctx, func(txCtx context.Context) error {
		transitioned, err := s.repo.CompleteByOrderID(txCtx, orderID, completedAt)
		if err != nil {
			return fmt.Errorf("complete transaction: %w", err)
		}
		if !transitioned {
			transitioned, err = s.completeReplacedOrder(txCtx, orderID, order, completedAt)
			if err != nil {
				return err
			}
		}
		if !transitioned {
			return nil
		}

		t, err := s.repo.GetByOrderID(txCtx, orderID)
		if err != nil {
			return fmt.Errorf("reload transaction: %w", err)
		}
		if err := s.credits.AddCredits(txCtx, t.UserID, t.Credits); err != nil {
			return fmt.Errorf("add credits: %w", err)
		}
		completed = t
		return nil
	})
	if err != nil {
		s.metrics.Verifications.WithLabelValues("error").Inc()
		s.logger.Error("payment settlement failed", "order_id", orderID, "error", err)
		if appErr, ok := errors.IsAppError(err); ok {
			return nil, appErr
		}
		return nil, errors.NewInternalError("failed to settle payment", err)
	}

	if completed == nil {
		s.metrics.Verifications.WithLabelValues(VerifyStatusAlreadyProcessed).Inc()
		s.logger.Info("payment already processed", "order_id", orderID)
		result := &VerifyResult{Status: VerifyStatusAlreadyProcessed, ProviderStatus: string(order.Status)}
		if t, err := s.repo.GetByOrderID(ctx, orderID); err == nil {
			result.TransactionID = t.ID
		} else {
			s.logger.Warn("paid order has no transaction", "order_id", orderID)
		}
		return result, nil
	}

	completed.PaymentStatus = txDatamodel.StatusCompleted
	completed.CompletedAt = &completedAt

	s.metrics.Verifications.WithLabelValues(VerifyStatusCompleted).Inc()
	s.metrics.CreditsGranted.WithLabelValues(completed.PlanID).Add(float64(completed.Credits))
	s.logger.Info("payment verified", "transaction_id", completed.ID, "order_id", orderID, "user_id", completed.UserID)
	s.logger.Info("credits granted", "transaction_id", completed.ID, "user_id", completed.UserID, "credits", completed.Credits)
	s.publish(ctx, events.NewPaymentCompletedEvent(completed.ID, completed.UserID, orderID, completed.PlanID, completed.Amount, completed.Credits))

	s.syncLedger(ctx, completed)

	return &VerifyResult{
		Status:         VerifyStatusCompleted,
		TransactionID:  completed.ID,
		Credits:        completed.Credits,
		ProviderStatus: string(order.Status),
	}, nil
}

// completeReplacedOrder settles a paid order whose transaction has since been
// given a newer order. The receipt carries the transaction id.
func (s *Service) completeReplacedOrder(ctx context.Context, orderID string, order *paymentgatewaytypes.Order, completedAt time.Time) (bool, error) {
	if order.Receipt == "" {
		return false, nil
	}

	t, err := s.repo.GetByID(ctx, order.Receipt)
	if err != nil {
		if stderrors.Is(err, errors.ErrTransactionNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load receipt transaction: %w", err)
	}
	if !t.IsPending() {
		return false, nil
	}
	if want := t.Amount * s.cfg.MinorUnitFactor; order.Amount != want {
		s.logger.Warn("paid order amount does not match transaction",
			"transaction_id", t.ID, "order_id", orderID, "order_amount", order.Amount, "expected_amount", want)
		return false, nil
	}

	ok, err := s.repo.CompleteWithOrder(ctx, t.ID, orderID, completedAt)
	if err != nil {
		return false, fmt.Errorf("complete replaced order: %w", err)
	}
	if ok {
		s.logger.Info("replaced order settled", "transaction_id", t.ID, "order_id", orderID, "current_order_id", t.ExternalOrderID())
	}
	return ok, nil
}

// Get returns one of the caller's transactions.
func (s *Service) Get(ctx context.Context, userID int64, transactionID string) (*txDatamodel.Transaction, error) {
	return s.ownTransaction(ctx, userID, strings.TrimSpace(transactionID))
}

// ResyncLedger retries the spreadsheet append for completed transactions
// that never got a row reference.
func (s *Service) ResyncLedger(ctx context.Context, olderThan time.Duration, limit int) (synced, failed int, err error) {
	if !s.ledgerEnabled() {
		return 0, 0, nil
	}
	if limit <= 0 {
		limit = 50
	}
	pending, err := s.repo.ListUnsynced(ctx, s.now().Add(-olderThan), limit)
	if err != nil {
		return 0, 0, fmt.Errorf("list unsynced transactions: %w", err)
	}

	for _, t := range pending {
		if ctx.Err() != nil {
			return synced, failed, ctx.Err()
		}
		if s.syncLedger(ctx, t) {
			synced++
		} else {
			failed++
		}
	}

	if len(pending) > 0 {
		s.logger.Info("ledger resync finished", "synced", synced, "failed", failed)
	}
	return synced, failed, nil
}

// syncLedger never returns an error: the payment and credit are already
// committed when it runs.
func (s *Service) syncLedger(ctx context.Context, t *txDatamodel.Transaction) bool {
	if !s.ledgerEnabled() {
		s.metrics.LedgerSyncs.WithLabelValues("skipped").Inc()
		return false
	}

	ledgerCtx, cancel := errors.WithTimeout(ctx, s.cfg.LedgerTimeout)
	defer cancel()

	rowRef, err := s.ledger.AppendRow(ledgerCtx, ledger.Row(t))
	if err != nil {
		s.metrics.LedgerSyncs.WithLabelValues("failure").Inc()
		s.logger.Error("ledger sync failed", "transaction_id", t.ID, "order_id", t.ExternalOrderID(), "error", err)
		s.publish(ctx, events.NewLedgerSyncFailedEvent(t.ID, t.UserID, err.Error()))
		return false
	}

	if rowRef != "" {
		if err := s.repo.SetLedgerRowRef(ctx, t.ID, rowRef); err != nil {
			s.logger.Error("ledger row reference not saved", "transaction_id", t.ID, "row_ref", rowRef, "error", err)
		} else {
			t.LedgerRowRef = rowRef
		}
	}

	s.metrics.LedgerSyncs.WithLabelValues("success").Inc()
	s.logger.Info("ledger synced", "transaction_id", t.ID, "row_ref", rowRef)
	return true
}

func (s *Service) ledgerEnabled() bool {
	_, disabled := s.ledger.(ledger.Nop)
	return !disabled
}

func (s *Service) ownTransaction(ctx context.Context, userID int64, id string) (*txDatamodel.Transaction, error) {
	if id == "" {
		return nil, errors.ErrTransactionNotFound
	}
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, errors.ErrTransactionNotFound) {
			return nil, errors.ErrTransactionNotFound
		}
		return nil, errors.NewInternalError("failed to load transaction", err)
	}
	if t.UserID != userID {
		s.logger.Warn("transaction belongs to another user", "transaction_id", id, "user_id", userID)
		return nil, errors.ErrTransactionNotFound
	}
	return t, nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed", "event_type", event.EventType(), "error", err)
	}
}

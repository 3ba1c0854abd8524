package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/DanielPopoola/etterlatte-settlement/internal/core/domain"
	"github.com/DanielPopoola/etterlatte-settlement/internal/core/ports"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const orderColumns = `id, case_id, decision_id, attempt, case_type, beneficiary_id, attestant, saksbehandler,
	first_for_case, status, reconciliation_key, correlation_key, receipt_severity, receipt_detail, receipt_raw,
	created_at, updated_at, sent_at, acknowledged_at`

type OrderStore struct {
	db     *DB
	q      Executor
	logger *slog.Logger
}

func NewOrderStore(db *DB, logger *slog.Logger) *OrderStore {
	return &OrderStore{
		db:     db,
		q:      db.Pool,
		logger: logger,
	}
}

var _ ports.PaymentOrderStore = (*OrderStore)(nil)

// UpsertIfAbsent inserts the request and its lines unless the decision already
// has that attempt stored. A concurrent insert of the same attempt blocks on the
// unique key and then returns the winner's record.
func (s *OrderStore) UpsertIfAbsent(ctx context.Context, req *domain.PaymentRequest) (*domain.PaymentRequest, bool, error) {
	var (
		stored  *domain.PaymentRequest
		created bool
	)

	err := s.withTx(ctx, writeTx, func(tx *OrderStore) error {
		inserted, err := tx.insertRequest(ctx, req, true)
		if err != nil {
			return err
		}
		if !inserted {
			existing, err := tx.findOne(ctx, `WHERE decision_id = $1 AND attempt = $2`, req.DecisionID, req.Attempt)
			if err != nil {
				return err
			}
			stored = existing
			return nil
		}
		stored = req
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

// RecordDispatch moves the request from NEW to SENT and stores the dispatched order.
func (s *OrderStore) RecordDispatch(ctx context.Context, id uuid.UUID, order *domain.PaymentOrder) error {
	return s.withTx(ctx, writeTx, func(tx *OrderStore) error {
		current, err := tx.lockStatus(ctx, id)
		if err != nil {
			return err
		}
		if current != domain.StatusNew {
			return domain.NewStateError("record dispatch", id.String(), current, domain.StatusNew)
		}
		if err := current.CanTransitionTo(domain.StatusSent); err != nil {
			return err
		}

		var sentAt time.Time
		err = tx.q.QueryRow(ctx, `
			UPDATE payment_order
			SET status = $1, reconciliation_key = $2, correlation_key = $3, cross_reference = $4,
				payload = $5, sent_at = NOW(), updated_at = NOW()
			WHERE id = $6
			RETURNING sent_at`,
			domain.StatusSent,
			order.ReconciliationKey,
			order.CorrelationKey,
			order.CrossReference,
			order.Payload,
			id,
		).Scan(&sentAt)
		if err != nil {
			return fmt.Errorf("failed to mark payment order sent: %w", err)
		}

		if err := tx.recordTransition(ctx, id, &current, domain.StatusSent, ""); err != nil {
			return err
		}

		if order.Request != nil {
			key := order.ReconciliationKey
			corr := order.CorrelationKey
			order.Request.Status = domain.StatusSent
			order.Request.SentAt = &sentAt
			order.Request.UpdatedAt = sentAt
			order.Request.ReconciliationKey = &key
			order.Request.CorrelationKey = &corr
		}
		return nil
	})
}

// RecordAcknowledgement maps the receipt's severity to a terminal status and
// stores it. A redelivered receipt that maps to the status already stored is a
// no-op reported with changed=false.
func (s *OrderStore) RecordAcknowledgement(ctx context.Context, id uuid.UUID, receipt domain.AcknowledgementReceipt) (domain.Status, bool, error) {
	target, known := domain.StatusForSeverity(receipt.Severity)
	if !known {
		s.logger.Warn("unknown kvittering severity, treating as failed",
			"request_id", id,
			"severity", receipt.Severity,
			"detail", receipt.Detail,
		)
	}

	var changed bool
	err := s.withTx(ctx, writeTx, func(tx *OrderStore) error {
		current, err := tx.lockStatus(ctx, id)
		if err != nil {
			return err
		}

		if current.IsTerminal() && current == target {
			return nil
		}
		if current == domain.StatusNew {
			return fmt.Errorf("%w: request %s", domain.ErrAcknowledgedBeforeSent, id)
		}
		if current != domain.StatusSent {
			return domain.NewStateError("record acknowledgement", id.String(), current, domain.StatusSent)
		}
		if err := current.CanTransitionTo(target); err != nil {
			return err
		}

		_, err = tx.q.Exec(ctx, `
			UPDATE payment_order
			SET status = $1, receipt_severity = $2, receipt_detail = $3, receipt_raw = $4,
				acknowledged_at = NOW(), updated_at = NOW()
			WHERE id = $5`,
			target,
			receipt.Severity,
			receipt.Detail,
			receipt.Raw,
			id,
		)
		if err != nil {
			return fmt.Errorf("failed to record acknowledgement: %w", err)
		}

		if err := tx.recordTransition(ctx, id, &current, target, receipt.Detail); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return target, changed, nil
}

// ListOrdersInWindow reads every dispatched request whose reconciliation key
// falls in [From, To) from one repeatable-read snapshot, ordered by key. The key
// is the nokkelAvstemming the ledger files the order under, so the window and
// the orders reported in it share one clock.
func (s *OrderStore) ListOrdersInWindow(ctx context.Context, period domain.ReconciliationPeriod) ([]*domain.PaymentRequest, error) {
	var orders []*domain.PaymentRequest

	err := s.withTx(ctx, snapshotTx, func(tx *OrderStore) error {
		found, err := tx.findMany(ctx,
			`WHERE reconciliation_key >= $1 AND reconciliation_key < $2 ORDER BY reconciliation_key, id`,
			period.From, period.To,
		)
		if err != nil {
			return err
		}
		orders = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *OrderStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.PaymentRequest, error) {
	return s.findOne(ctx, `WHERE id = $1`, id)
}

func (s *OrderStore) FindLatestByDecision(ctx context.Context, decisionID int64) (*domain.PaymentRequest, error) {
	req, err := s.findOne(ctx, `WHERE decision_id = $1 ORDER BY attempt DESC LIMIT 1`, decisionID)
	if err != nil && domain.IsErrorCode(err, domain.ErrCodeOrderNotFound) {
		return nil, domain.NewOrderNotFoundError("for decision " + strconv.FormatInt(decisionID, 10))
	}
	return req, err
}

// FindByCorrelationKey returns the one attempt stored under key. The key is
// written on insert, so a kvittering that overtakes the SENT commit still finds
// its attempt.
func (s *OrderStore) FindByCorrelationKey(ctx context.Context, key string) (*domain.PaymentRequest, error) {
	req, err := s.findOne(ctx, `WHERE correlation_key = $1`, key)
	if err != nil && domain.IsErrorCode(err, domain.ErrCodeOrderNotFound) {
		return nil, domain.NewUnknownCorrelationKeyError(key)
	}
	return req, err
}

func (s *OrderStore) HasAcceptedOrderForCase(ctx context.Context, caseID int64) (bool, error) {
	var exists bool
	err := s.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM payment_order
			WHERE case_id = $1 AND status IN ('ACCEPTED', 'ACCEPTED_WITH_WARNING')
		)`, caseID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check accepted orders for case: %w", err)
	}
	return exists, nil
}

// LoadLedgerSnapshot runs the three konsistens reads in one repeatable-read
// transaction, so a request cannot be counted as accepted by one read and as
// superseded or stuck by another.
func (s *OrderStore) LoadLedgerSnapshot(ctx context.Context, stuckCutoff time.Time) (*domain.LedgerSnapshot, error) {
	var snap domain.LedgerSnapshot

	err := s.withTx(ctx, snapshotTx, func(tx *OrderStore) error {
		var err error
		if snap.AcceptedLatest, err = tx.findMany(ctx, `
			WHERE id IN (
				SELECT DISTINCT ON (case_id) id FROM payment_order
				WHERE status IN ('ACCEPTED', 'ACCEPTED_WITH_WARNING')
				ORDER BY case_id, created_at DESC, attempt DESC
			)
			ORDER BY case_id`); err != nil {
			return fmt.Errorf("list accepted requests: %w", err)
		}
		if snap.Latest, err = tx.findMany(ctx, `
			WHERE id IN (
				SELECT DISTINCT ON (case_id) id FROM payment_order
				ORDER BY case_id, created_at DESC, attempt DESC
			)
			ORDER BY case_id`); err != nil {
			return fmt.Errorf("list latest requests: %w", err)
		}
		if snap.Stuck, err = tx.findMany(ctx, `
			WHERE (status = 'SENT' AND sent_at < $1) OR (status = 'NEW' AND created_at < $1)
			ORDER BY created_at, id`, stuckCutoff); err != nil {
			return fmt.Errorf("list stuck requests: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *OrderStore) ListUndispatched(ctx context.Context, cutoff time.Time, limit int) ([]*domain.PaymentRequest, error) {
	return s.findMany(ctx, `
		WHERE status = 'NEW' AND created_at < $1
		ORDER BY created_at, id
		LIMIT $2`, cutoff, limit)
}

// Replay stores the next attempt for decisionID. The latest attempt must be
// terminal; it is locked so concurrent replays cannot both succeed.
func (s *OrderStore) Replay(ctx context.Context, decisionID int64) (*domain.PaymentRequest, error) {
	var next *domain.PaymentRequest

	err := s.withTx(ctx, writeTx, func(tx *OrderStore) error {
		latest, err := tx.findOne(ctx, `WHERE decision_id = $1 ORDER BY attempt DESC LIMIT 1 FOR UPDATE`, decisionID)
		if err != nil {
			if domain.IsErrorCode(err, domain.ErrCodeOrderNotFound) {
				return domain.NewOrderNotFoundError("for decision " + strconv.FormatInt(decisionID, 10))
			}
			return err
		}
		if !latest.Status.IsTerminal() {
			return domain.NewReplayNotAllowedError(decisionID, latest.Status)
		}

		next = latest.NextAttempt()
		inserted, err := tx.insertRequest(ctx, next, true)
		if err != nil {
			return err
		}
		if !inserted {
			return domain.NewReplayNotAllowedError(decisionID, domain.StatusNew)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

// withTx runs fn against a copy of the store bound to one transaction.
func (s *OrderStore) withTx(ctx context.Context, opts pgx.TxOptions, fn func(*OrderStore) error) error {
	return s.db.WithTx(ctx, opts, func(tx Executor) error {
		return fn(&OrderStore{db: s.db, q: tx, logger: s.logger})
	})
}

func (s *OrderStore) insertRequest(ctx context.Context, req *domain.PaymentRequest, skipConflict bool) (bool, error) {
	query := `INSERT INTO payment_order (
				id, case_id, decision_id, attempt, case_type, beneficiary_id, attestant, saksbehandler,
				first_for_case, status, correlation_key, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	if skipConflict {
		query += ` ON CONFLICT (decision_id, attempt) DO NOTHING`
	}

	tag, err := s.q.Exec(ctx, query,
		req.ID,
		req.CaseID,
		req.DecisionID,
		req.Attempt,
		req.CaseType,
		req.BeneficiaryID,
		req.Attestant,
		req.Saksbehandler,
		req.FirstForCase,
		req.Status,
		domain.CorrelationKey(req.ID),
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert payment order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	for i, line := range req.Lines {
		_, err := s.q.Exec(ctx, `
			INSERT INTO payment_line (order_id, id, position, period_from, period_to, amount, kind, classification_code)
			VALUES ($1, $2, $3, $4, $5, $6::text::numeric, $7, $8)`,
			req.ID,
			line.ID,
			i,
			line.PeriodFrom.FirstDay(),
			periodToArg(line.PeriodTo),
			amountArg(line.Amount),
			line.Kind,
			line.ClassificationCode,
		)
		if err != nil {
			return false, fmt.Errorf("failed to insert payment line %d: %w", line.ID, err)
		}
	}

	if err := s.recordTransition(ctx, req.ID, nil, req.Status, ""); err != nil {
		return false, err
	}
	return true, nil
}

func (s *OrderStore) lockStatus(ctx context.Context, id uuid.UUID) (domain.Status, error) {
	var status domain.Status
	err := s.q.QueryRow(ctx, `SELECT status FROM payment_order WHERE id = $1 FOR UPDATE`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.NewOrderNotFoundError(id.String())
		}
		return "", fmt.Errorf("failed to lock payment order: %w", err)
	}
	return status, nil
}

func (s *OrderStore) recordTransition(ctx context.Context, id uuid.UUID, from *domain.Status, to domain.Status, detail string) error {
	var detailArg *string
	if detail != "" {
		detailArg = &detail
	}
	_, err := s.q.Exec(ctx, `
		INSERT INTO payment_order_status_history (order_id, from_status, to_status, detail)
		VALUES ($1, $2, $3, $4)`,
		id, from, to, detailArg,
	)
	if err != nil {
		return fmt.Errorf("failed to record status history: %w", err)
	}
	return nil
}

func (s *OrderStore) findOne(ctx context.Context, where string, args ...any) (*domain.PaymentRequest, error) {
	row := s.q.QueryRow(ctx, `SELECT `+orderColumns+` FROM payment_order `+where, args...)
	req, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	lines, err := s.loadLines(ctx, []uuid.UUID{req.ID})
	if err != nil {
		return nil, err
	}
	req.Lines = lines[req.ID]
	return req, nil
}

func (s *OrderStore) findMany(ctx context.Context, where string, args ...any) ([]*domain.PaymentRequest, error) {
	rows, err := s.q.Query(ctx, `SELECT `+orderColumns+` FROM payment_order `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query payment orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.PaymentRequest, error) {
		return scanOrder(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan payment orders: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]uuid.UUID, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	lines, err := s.loadLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, o := range orders {
		o.Lines = lines[o.ID]
	}
	return orders, nil
}

func (s *OrderStore) loadLines(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]domain.PaymentLine, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}

	rows, err := s.q.Query(ctx, `
		SELECT order_id, id, period_from, period_to, amount::text, kind, classification_code
		FROM payment_line
		WHERE order_id = ANY($1::text[]::uuid[])
		ORDER BY order_id, position`, keys)
	if err != nil {
		return nil, fmt.Errorf("query payment lines: %w", err)
	}
	defer rows.Close()

	result := make(map[uuid.UUID][]domain.PaymentLine, len(ids))
	for rows.Next() {
		var (
			orderID uuid.UUID
			line    domain.PaymentLine
			from    time.Time
			to      *time.Time
			amount  *string
		)
		if err := rows.Scan(&orderID, &line.ID, &from, &to, &amount, &line.Kind, &line.ClassificationCode); err != nil {
			return nil, fmt.Errorf("failed to scan payment line: %w", err)
		}
		line.PeriodFrom = domain.YearMonthOf(from)
		if to != nil {
			m := domain.YearMonthOf(*to)
			line.PeriodTo = &m
		}
		if amount != nil {
			d, err := decimal.NewFromString(*amount)
			if err != nil {
				return nil, fmt.Errorf("parse amount of line %d: %w", line.ID, err)
			}
			line.Amount = decimal.NewNullDecimal(d)
		}
		result[orderID] = append(result[orderID], line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment lines: %w", err)
	}
	return result, nil
}

func scanOrder(row pgx.Row) (*domain.PaymentRequest, error) {
	var (
		r        domain.PaymentRequest
		severity *string
		detail   *string
		raw      []byte
	)
	err := row.Scan(
		&r.ID,
		&r.CaseID,
		&r.DecisionID,
		&r.Attempt,
		&r.CaseType,
		&r.BeneficiaryID,
		&r.Attestant,
		&r.Saksbehandler,
		&r.FirstForCase,
		&r.Status,
		&r.ReconciliationKey,
		&r.CorrelationKey,
		&severity,
		&detail,
		&raw,
		&r.CreatedAt,
		&r.UpdatedAt,
		&r.SentAt,
		&r.AcknowledgedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewOrderNotFoundError(r.ID.String())
		}
		return nil, fmt.Errorf("failed to scan payment order: %w", err)
	}

	if severity != nil {
		r.Receipt = &domain.AcknowledgementReceipt{
			Severity: *severity,
			Raw:      raw,
		}
		if detail != nil {
			r.Receipt.Detail = *detail
		}
		if r.CorrelationKey != nil {
			r.Receipt.CorrelationKey = *r.CorrelationKey
		}
	}
	return &r, nil
}

func periodToArg(m *domain.YearMonth) *time.Time {
	if m == nil {
		return nil
	}
	d := m.FirstDay()
	return &d
}

func amountArg(a decimal.NullDecimal) *string {
	if !a.Valid {
		return nil
	}
	s := a.Decimal.String()
	return &s
}

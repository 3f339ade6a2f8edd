package postgres

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/resellerdesk/resellerdesk/internal/domain/payment"
	ierr "github.com/resellerdesk/resellerdesk/internal/errors"
	"github.com/resellerdesk/resellerdesk/internal/logger"
	"github.com/resellerdesk/resellerdesk/internal/postgres"
	"github.com/resellerdesk/resellerdesk/internal/types"
)

const uniqueViolation = "23505"

type paymentRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewPaymentRepository(db *postgres.DB, logger *logger.Logger) payment.Repository {
	return &paymentRepository{
		db:     db,
		logger: logger,
	}
}

func (r *paymentRepository) Create(ctx context.Context, rec *payment.PaymentRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO payment_records (
			id, tenant_id, client_id, external_payment_id, period, plan_label,
			price_amount, price_currency, approval_status, fulfillment_status,
			created_at, updated_at
		) VALUES (
			:id, :tenant_id, :client_id, :external_payment_id, :period, :plan_label,
			:price_amount, :price_currency, :approval_status, :fulfillment_status,
			:created_at, :updated_at
		)`

	r.logger.Debugw("creating payment record",
		"payment_record_id", rec.ID,
		"tenant_id", rec.TenantID,
		"external_payment_id", rec.ExternalPaymentID,
	)

	if _, err := r.db.NamedExecContext(ctx, query, rec); err != nil {
		var pqErr *pq.Error
		if ierr.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ierr.WithError(err).
				WithHint("A payment with this id already exists").
				WithReportableDetails(map[string]any{
					"external_payment_id": rec.ExternalPaymentID,
				}).
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create payment record").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *paymentRepository) Get(ctx context.Context, tenantID, id string) (*payment.PaymentRecord, error) {
	query := `
		SELECT * FROM payment_records
		WHERE id = :id
		AND tenant_id = :tenant_id`

	return r.getOne(ctx, query, map[string]interface{}{
		"id":        id,
		"tenant_id": tenantID,
	})
}

func (r *paymentRepository) GetByExternalID(ctx context.Context, tenantID, externalPaymentID string) (*payment.PaymentRecord, error) {
	query := `
		SELECT * FROM payment_records
		WHERE external_payment_id = :external_payment_id
		AND tenant_id = :tenant_id`

	return r.getOne(ctx, query, map[string]interface{}{
		"external_payment_id": externalPaymentID,
		"tenant_id":           tenantID,
	})
}

func (r *paymentRepository) getOne(ctx context.Context, query string, params map[string]interface{}) (*payment.PaymentRecord, error) {
	rows, err := r.db.NamedQueryContext(ctx, query, params)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to load payment record").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to load payment record").
				Mark(ierr.ErrDatabase)
		}
		return nil, ierr.NewError("payment record not found").
			WithHint("Payment not found").
			Mark(ierr.ErrNotFound)
	}

	var rec payment.PaymentRecord
	if err := rows.StructScan(&rec); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to load payment record").
			Mark(ierr.ErrDatabase)
	}
	return &rec, nil
}

func (r *paymentRepository) UpdateApprovalStatus(ctx context.Context, rec *payment.PaymentRecord, status types.ApprovalStatus) (bool, error) {
	if err := status.Validate(); err != nil {
		return false, err
	}

	query := `
		UPDATE payment_records
		SET approval_status = :status, updated_at = :now
		WHERE id = :id
		AND tenant_id = :tenant_id
		AND approval_status <> 'approved'
		AND approval_status <> :status`

	now := time.Now().UTC()
	affected, err := r.execConditional(ctx, query, map[string]interface{}{
		"id":        rec.ID,
		"tenant_id": rec.TenantID,
		"status":    status,
		"now":       now,
	})
	if err != nil {
		return false, err
	}
	if !affected {
		return false, nil
	}

	r.logger.Debugw("approval status updated",
		"payment_record_id", rec.ID,
		"from", rec.ApprovalStatus,
		"to", status,
	)
	rec.ApprovalStatus = status
	rec.UpdatedAt = now
	return true, nil
}

func (r *paymentRepository) TryAcquireFulfillment(ctx context.Context, rec *payment.PaymentRecord, now time.Time) (bool, error) {
	query := `
		UPDATE payment_records
		SET fulfillment_status = 'processing', fulfillment_started_at = :now, updated_at = :now
		WHERE id = :id
		AND tenant_id = :tenant_id
		AND approval_status = 'approved'
		AND fulfillment_status IN ('none', 'pending')`

	acquired, err := r.execConditional(ctx, query, map[string]interface{}{
		"id":        rec.ID,
		"tenant_id": rec.TenantID,
		"now":       now,
	})
	if err != nil || !acquired {
		return false, err
	}

	rec.FulfillmentStatus = types.FulfillmentStatusProcessing
	rec.FulfillmentStartedAt = &now
	rec.UpdatedAt = now
	return true, nil
}

func (r *paymentRepository) MarkFulfilled(ctx context.Context, rec *payment.PaymentRecord, newDueDate, now time.Time) error {
	query := `
		UPDATE payment_records
		SET fulfillment_status = 'done', fulfillment_error = NULL, new_due_date = :new_due_date,
			fulfilled_at = :now, updated_at = :now
		WHERE id = :id
		AND tenant_id = :tenant_id
		AND fulfillment_status = 'processing'`

	updated, err := r.execConditional(ctx, query, map[string]interface{}{
		"id":           rec.ID,
		"tenant_id":    rec.TenantID,
		"new_due_date": newDueDate,
		"now":          now,
	})
	if err != nil {
		return err
	}
	if !updated {
		return notProcessingError(rec)
	}

	rec.FulfillmentStatus = types.FulfillmentStatusDone
	rec.FulfillmentError = nil
	rec.NewDueDate = &newDueDate
	rec.FulfilledAt = &now
	rec.UpdatedAt = now
	return nil
}

func (r *paymentRepository) MarkFulfillmentFailed(ctx context.Context, rec *payment.PaymentRecord, safeMessage string, now time.Time) error {
	query := `
		UPDATE payment_records
		SET fulfillment_status = 'error', fulfillment_error = :fulfillment_error, updated_at = :now
		WHERE id = :id
		AND tenant_id = :tenant_id
		AND fulfillment_status = 'processing'`

	updated, err := r.execConditional(ctx, query, map[string]interface{}{
		"id":                rec.ID,
		"tenant_id":         rec.TenantID,
		"fulfillment_error": safeMessage,
		"now":               now,
	})
	if err != nil {
		return err
	}
	if !updated {
		return notProcessingError(rec)
	}

	rec.FulfillmentStatus = types.FulfillmentStatusError
	rec.FulfillmentError = &safeMessage
	rec.UpdatedAt = now
	return nil
}

func (r *paymentRepository) ResetFulfillment(ctx context.Context, rec *payment.PaymentRecord, now time.Time) (bool, error) {
	query := `
		UPDATE payment_records
		SET fulfillment_status = 'pending', fulfillment_error = NULL,
			fulfillment_started_at = NULL, updated_at = :now
		WHERE id = :id
		AND tenant_id = :tenant_id
		AND fulfillment_status = 'error'`

	reset, err := r.execConditional(ctx, query, map[string]interface{}{
		"id":        rec.ID,
		"tenant_id": rec.TenantID,
		"now":       now,
	})
	if err != nil || !reset {
		return false, err
	}

	rec.FulfillmentStatus = types.FulfillmentStatusPending
	rec.FulfillmentError = nil
	rec.FulfillmentStartedAt = nil
	rec.UpdatedAt = now
	return true, nil
}

func (r *paymentRepository) ResetStaleProcessing(ctx context.Context, cutoff, now time.Time) ([]*payment.PaymentRecord, error) {
	query := `
		UPDATE payment_records
		SET fulfillment_status = 'pending', fulfillment_started_at = NULL, updated_at = :now
		WHERE fulfillment_status = 'processing'
		AND fulfillment_started_at < :cutoff
		RETURNING *`

	rows, err := r.db.NamedQueryContext(ctx, query, map[string]interface{}{
		"cutoff": cutoff,
		"now":    now,
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to reset stale fulfillments").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	var records []*payment.PaymentRecord
	for rows.Next() {
		var rec payment.PaymentRecord
		if err := rows.StructScan(&rec); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to reset stale fulfillments").
				Mark(ierr.ErrDatabase)
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to reset stale fulfillments").
			Mark(ierr.ErrDatabase)
	}
	return records, nil
}

// execConditional runs a guarded update and reports whether the guard held
func (r *paymentRepository) execConditional(ctx context.Context, query string, params map[string]interface{}) (bool, error) {
	result, err := r.db.NamedExecContext(ctx, query, params)
	if err != nil {
		return false, ierr.WithError(err).
			WithHint("Failed to update payment record").
			Mark(ierr.ErrDatabase)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, ierr.WithError(err).
			WithHint("Failed to update payment record").
			Mark(ierr.ErrDatabase)
	}
	return rows > 0, nil
}

func notProcessingError(rec *payment.PaymentRecord) error {
	return ierr.NewError("payment record is not processing").
		WithHint("Payment is not being fulfilled").
		WithReportableDetails(map[string]any{
			"payment_record_id": rec.ID,
		}).
		Mark(ierr.ErrInvalidOperation)
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	domainbooking "staybook/internal/domain/booking"
	domainpayment "staybook/internal/domain/payment"
	"staybook/internal/domain/shared/money"
)

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const selectPayment = `SELECT id, booking_id, reference, transaction_id, checkout_url, amount, currency,
	status, created_at, updated_at FROM payments`

func scanPayment(s scanner) (*domainpayment.Payment, error) {
	var (
		id, bookingID, reference, txID, checkout, currency, status string
		amount                                                     int64
		createdAt, updatedAt                                       time.Time
	)
	if err := s.Scan(&id, &bookingID, &reference, &txID, &checkout, &amount, &currency,
		&status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	return &domainpayment.Payment{
		ID:            domainpayment.PaymentID(id),
		BookingID:     domainbooking.BookingID(bookingID),
		Reference:     reference,
		TransactionID: txID,
		CheckoutURL:   checkout,
		Amount:        money.Money{Amount: amount, Currency: currency},
		Status:        domainpayment.Status(status),
		CreatedAt:     createdAt.UTC(),
		UpdatedAt:     updatedAt.UTC(),
	}, nil
}

func (r *PaymentRepository) ByID(ctx context.Context, id domainpayment.PaymentID) (*domainpayment.Payment, error) {
	return r.findOne(ctx, ` WHERE id = $1`, string(id))
}

func (r *PaymentRepository) ByReference(ctx context.Context, reference string) (*domainpayment.Payment, error) {
	return r.findOne(ctx, ` WHERE reference = $1`, reference)
}

func (r *PaymentRepository) FindPending(ctx context.Context, bookingID domainbooking.BookingID) (*domainpayment.Payment, error) {
	return r.findOne(ctx, ` WHERE booking_id = $1 AND status = $2`, string(bookingID), string(domainpayment.StatusPending))
}

func (r *PaymentRepository) ListByBooking(ctx context.Context, bookingID domainbooking.BookingID) ([]*domainpayment.Payment, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, selectPayment+` WHERE booking_id = $1 ORDER BY created_at DESC`, string(bookingID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domainpayment.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PaymentRepository) Insert(ctx context.Context, p *domainpayment.Payment) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `
INSERT INTO payments (id, booking_id, reference, transaction_id, checkout_url, amount, currency,
	status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		string(p.ID), string(p.BookingID), p.Reference, p.TransactionID, p.CheckoutURL,
		p.Amount.Amount, p.Amount.Currency, string(p.Status), p.CreatedAt.UTC(), p.UpdatedAt.UTC())
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err, pendingPaymentIndex):
		return domainpayment.ErrPendingExists
	case isUniqueViolation(err, ""):
		return fmt.Errorf("postgres: payment %s already exists: %w", p.Reference, err)
	}
	return mapErr(err)
}

func (r *PaymentRepository) UpdateStatus(ctx context.Context, id domainpayment.PaymentID, expected, next domainpayment.Status, transactionID string, at time.Time) (bool, error) {
	res, err := conn(ctx, r.db).ExecContext(ctx, `
UPDATE payments SET status = $1, updated_at = $2,
	transaction_id = CASE WHEN $3 = '' THEN transaction_id ELSE $3 END
WHERE id = $4 AND status = $5`,
		string(next), at.UTC(), transactionID, string(id), string(expected))
	if err != nil {
		return false, mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *PaymentRepository) findOne(ctx context.Context, where string, args ...any) (*domainpayment.Payment, error) {
	p, err := scanPayment(conn(ctx, r.db).QueryRowContext(ctx, selectPayment+where, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domainpayment.ErrPaymentNotFound
	}
	return p, err
}

var _ domainpayment.Repository = (*PaymentRepository)(nil)

package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

// PostgresPaymentRepository implements PaymentRepository using PostgreSQL.
type PostgresPaymentRepository struct {
	db     *sql.DB
	logger *logging.LoggerV2
}

func NewPostgresPaymentRepository(db *sql.DB, logger *logging.LoggerV2) *PostgresPaymentRepository {
	return &PostgresPaymentRepository{
		db:     db,
		logger: logger,
	}
}

const paymentColumns = `
	id, gateway_payment_id, order_id, amount, status, method, card_brand,
	authorization_code, transaction_id, proof_of_sale, return_code, return_message,
	created_at, updated_at
`

// Create inserts a payment. A duplicate gateway ID or a second blocking
// payment on the same order is reported as errors.ErrInvalidState.
func (r *PostgresPaymentRepository) Create(ctx context.Context, p *models.Payment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (`+paymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		p.ID,
		p.GatewayPaymentID,
		p.OrderID,
		p.Amount,
		p.Status,
		p.Method,
		p.CardBrand,
		p.AuthorizationCode,
		p.TransactionID,
		p.ProofOfSale,
		p.ReturnCode,
		p.ReturnMessage,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return errors.New(errors.ErrInvalidState, "order already has an active payment")
	}
	if err != nil {
		r.logger.Error("Failed to create payment", logging.Fields{
			"order_id":   p.OrderID,
			"payment_id": p.GatewayPaymentID,
			"error":      err.Error(),
		})
		return err
	}

	r.logger.Info("Payment recorded", logging.Fields{
		"order_id":   p.OrderID,
		"payment_id": p.GatewayPaymentID,
		"status":     p.Status,
	})
	return nil
}

func (r *PostgresPaymentRepository) GetByGatewayID(ctx context.Context, gatewayID string) (*models.Payment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE gateway_payment_id = $1`, gatewayID)
	p, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrNotFound, "payment not found")
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateStatus overwrites the status. Concurrent writers converge on the gateway state.
func (r *PostgresPaymentRepository) UpdateStatus(ctx context.Context, gatewayID string, status models.PaymentStatus) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE payments SET status = $2, updated_at = $3 WHERE gateway_payment_id = $1
	`, gatewayID, status, time.Now().UTC())
	if isUniqueViolation(err) {
		return errors.New(errors.ErrInvalidState, "order already has an active payment")
	}
	if err != nil {
		r.logger.Error("Failed to update payment status", logging.Fields{
			"payment_id": gatewayID,
			"error":      err.Error(),
		})
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return errors.New(errors.ErrNotFound, "payment not found")
	}
	return nil
}

func (r *PostgresPaymentRepository) ListByOrderID(ctx context.Context, orderID string) ([]*models.Payment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+paymentColumns+` FROM payments WHERE order_id = $1 ORDER BY created_at
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]*models.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *PostgresPaymentRepository) HasActionable(ctx context.Context, orderID string) (bool, error) {
	statuses := make([]string, 0, len(models.BlockingPaymentStatuses))
	for _, s := range models.BlockingPaymentStatuses {
		statuses = append(statuses, string(s))
	}

	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM payments WHERE order_id = $1 AND status = ANY($2))
	`, orderID, pq.Array(statuses)).Scan(&exists)
	return exists, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPayment(row rowScanner) (*models.Payment, error) {
	var p models.Payment
	err := row.Scan(
		&p.ID,
		&p.GatewayPaymentID,
		&p.OrderID,
		&p.Amount,
		&p.Status,
		&p.Method,
		&p.CardBrand,
		&p.AuthorizationCode,
		&p.TransactionID,
		&p.ProofOfSale,
		&p.ReturnCode,
		&p.ReturnMessage,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

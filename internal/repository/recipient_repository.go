package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/mwangaza7/message-scheduler-backend/internal/models"
)

// uniqueViolation is the PostgreSQL error code for unique constraint
// violations.
const uniqueViolation = "23505"

// RecipientRepository defines the interface for recipient data access
type RecipientRepository interface {
	Create(ctx context.Context, recipient *models.Recipient) error
	GetByID(ctx context.Context, id int64) (*models.Recipient, error)
	List(ctx context.Context, skip, limit int) ([]*models.Recipient, int64, error)
	Delete(ctx context.Context, id int64) error
}

// recipientRepository implements RecipientRepository using PostgreSQL
type recipientRepository struct {
	db *sql.DB
}

// NewRecipientRepository creates a new recipient repository
func NewRecipientRepository(db *sql.DB) RecipientRepository {
	return &recipientRepository{db: db}
}

// Create inserts a new recipient. The phone number is unique.
func (r *recipientRepository) Create(ctx context.Context, recipient *models.Recipient) error {
	query := `
		INSERT INTO recipients (name, phone_number)
		VALUES ($1, $2)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, recipient.Name, recipient.PhoneNumber).
		Scan(&recipient.ID, &recipient.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrAlreadyExistsWithMsg(
				fmt.Sprintf("recipient with phone number %s already exists", recipient.PhoneNumber))
		}
		return fmt.Errorf("failed to create recipient: %w", err)
	}

	return nil
}

// GetByID retrieves a recipient by ID
func (r *recipientRepository) GetByID(ctx context.Context, id int64) (*models.Recipient, error) {
	query := `SELECT id, name, phone_number, created_at FROM recipients WHERE id = $1`

	recipient := &models.Recipient{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&recipient.ID,
		&recipient.Name,
		&recipient.PhoneNumber,
		&recipient.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, models.ErrNotFoundWithMsg(fmt.Sprintf("recipient with ID %d not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recipient: %w", err)
	}

	return recipient, nil
}

// List retrieves recipients with a skip/limit window
func (r *recipientRepository) List(ctx context.Context, skip, limit int) ([]*models.Recipient, int64, error) {
	models.ClampListWindow(&skip, &limit)

	var totalCount int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recipients`).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count recipients: %w", err)
	}

	query := `
		SELECT id, name, phone_number, created_at
		FROM recipients
		ORDER BY id ASC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, limit, skip)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list recipients: %w", err)
	}
	defer rows.Close()

	recipients := []*models.Recipient{}
	for rows.Next() {
		recipient := &models.Recipient{}
		err := rows.Scan(&recipient.ID, &recipient.Name, &recipient.PhoneNumber, &recipient.CreatedAt)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan recipient: %w", err)
		}
		recipients = append(recipients, recipient)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating recipients: %w", err)
	}

	return recipients, totalCount, nil
}

// Delete removes a recipient and its group memberships
func (r *recipientRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM recipients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete recipient: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return models.ErrNotFoundWithMsg(fmt.Sprintf("recipient with ID %d not found", id))
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}

package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mwangaza7/message-scheduler-backend/internal/models"
)

// GroupRepository defines the interface for recipient group data
// access. GetRecipients resolves the group's current membership, which
// is what the delivery worker uses at dispatch time.
type GroupRepository interface {
	Create(ctx context.Context, group *models.RecipientGroup, recipientIDs []int64) error
	GetByID(ctx context.Context, id int64) (*models.RecipientGroup, error)
	GetWithRecipients(ctx context.Context, id int64) (*models.GroupWithRecipients, error)
	GetRecipients(ctx context.Context, id int64) ([]*models.Recipient, error)
	List(ctx context.Context, skip, limit int) ([]*models.GroupWithRecipients, int64, error)
	ReplaceMembers(ctx context.Context, id int64, recipientIDs []int64) error
	Delete(ctx context.Context, id int64) error
}

// groupRepository implements GroupRepository using PostgreSQL
type groupRepository struct {
	db *sql.DB
}

// NewGroupRepository creates a new group repository
func NewGroupRepository(db *sql.DB) GroupRepository {
	return &groupRepository{db: db}
}

// Create inserts a new group and its initial members in one transaction
func (r *groupRepository) Create(ctx context.Context, group *models.RecipientGroup, recipientIDs []int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // Rollback is safe to call even after Commit
	}()

	query := `
		INSERT INTO recipient_groups (name, description)
		VALUES ($1, $2)
		RETURNING id, created_at`

	err = tx.QueryRowContext(ctx, query, group.Name, group.Description).
		Scan(&group.ID, &group.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrAlreadyExistsWithMsg(
				fmt.Sprintf("group with name %q already exists", group.Name))
		}
		return fmt.Errorf("failed to create group: %w", err)
	}

	if err := insertMembers(ctx, tx, group.ID, recipientIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetByID retrieves a group by ID
func (r *groupRepository) GetByID(ctx context.Context, id int64) (*models.RecipientGroup, error) {
	query := `SELECT id, name, description, created_at FROM recipient_groups WHERE id = $1`

	group := &models.RecipientGroup{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&group.ID,
		&group.Name,
		&group.Description,
		&group.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, models.ErrNotFoundWithMsg(fmt.Sprintf("recipient group with ID %d not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	return group, nil
}

// GetWithRecipients retrieves a group together with its current members
func (r *groupRepository) GetWithRecipients(ctx context.Context, id int64) (*models.GroupWithRecipients, error) {
	group, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	recipients, err := r.GetRecipients(ctx, id)
	if err != nil {
		return nil, err
	}

	return &models.GroupWithRecipients{
		RecipientGroup: *group,
		Recipients:     recipients,
	}, nil
}

// GetRecipients resolves the group's current membership in listed order
func (r *groupRepository) GetRecipients(ctx context.Context, id int64) ([]*models.Recipient, error) {
	query := `
		SELECT r.id, r.name, r.phone_number, r.created_at
		FROM recipients r
		JOIN recipient_group_members m ON m.recipient_id = r.id
		WHERE m.group_id = $1
		ORDER BY r.id ASC`

	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get group recipients: %w", err)
	}
	defer rows.Close()

	recipients := []*models.Recipient{}
	for rows.Next() {
		recipient := &models.Recipient{}
		err := rows.Scan(&recipient.ID, &recipient.Name, &recipient.PhoneNumber, &recipient.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recipient: %w", err)
		}
		recipients = append(recipients, recipient)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating group recipients: %w", err)
	}

	return recipients, nil
}

// List retrieves groups with their members using a skip/limit window
func (r *groupRepository) List(ctx context.Context, skip, limit int) ([]*models.GroupWithRecipients, int64, error) {
	models.ClampListWindow(&skip, &limit)

	var totalCount int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recipient_groups`).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count groups: %w", err)
	}

	query := `
		SELECT id, name, description, created_at
		FROM recipient_groups
		ORDER BY id ASC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, limit, skip)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	groups := []*models.GroupWithRecipients{}
	for rows.Next() {
		group := &models.GroupWithRecipients{}
		err := rows.Scan(&group.ID, &group.Name, &group.Description, &group.CreatedAt)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, group)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating groups: %w", err)
	}

	for _, group := range groups {
		recipients, err := r.GetRecipients(ctx, group.ID)
		if err != nil {
			return nil, 0, err
		}
		group.Recipients = recipients
	}

	return groups, totalCount, nil
}

// ReplaceMembers replaces the group's membership with the given set
func (r *groupRepository) ReplaceMembers(ctx context.Context, id int64, recipientIDs []int64) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM recipient_group_members WHERE group_id = $1`, id); err != nil {
		return fmt.Errorf("failed to clear group members: %w", err)
	}

	if err := insertMembers(ctx, tx, id, recipientIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Delete removes a group and its memberships
func (r *groupRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM recipient_groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return models.ErrNotFoundWithMsg(fmt.Sprintf("recipient group with ID %d not found", id))
	}

	return nil
}

func insertMembers(ctx context.Context, tx *sql.Tx, groupID int64, recipientIDs []int64) error {
	if len(recipientIDs) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO recipient_group_members (recipient_id, group_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`)
	if err != nil {
		return fmt.Errorf("failed to prepare member insert: %w", err)
	}
	defer stmt.Close()

	for _, recipientID := range recipientIDs {
		if _, err := stmt.ExecContext(ctx, recipientID, groupID); err != nil {
			return fmt.Errorf("failed to add recipient %d to group: %w", recipientID, err)
		}
	}

	return nil
}

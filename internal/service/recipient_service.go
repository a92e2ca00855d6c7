package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mwangaza7/message-scheduler-backend/internal/models"
	"github.com/mwangaza7/message-scheduler-backend/internal/repository"
)

// RecipientService handles recipient and group CRUD
type RecipientService interface {
	CreateRecipient(ctx context.Context, req *CreateRecipientRequest) (*models.Recipient, error)
	GetRecipient(ctx context.Context, id int64) (*models.Recipient, error)
	ListRecipients(ctx context.Context, skip, limit int) (*models.ListResult[*models.Recipient], error)
	DeleteRecipient(ctx context.Context, id int64) error

	CreateGroup(ctx context.Context, req *CreateGroupRequest) (*models.GroupWithRecipients, error)
	GetGroup(ctx context.Context, id int64) (*models.GroupWithRecipients, error)
	ListGroups(ctx context.Context, skip, limit int) (*models.ListResult[*models.GroupWithRecipients], error)
	ReplaceGroupMembers(ctx context.Context, id int64, recipientIDs []int64) (*models.GroupWithRecipients, error)
	DeleteGroup(ctx context.Context, id int64) error
}

type recipientService struct {
	recipientRepo repository.RecipientRepository
	groupRepo     repository.GroupRepository
	logger        *slog.Logger
}

// NewRecipientService creates a new recipient service
func NewRecipientService(
	recipientRepo repository.RecipientRepository,
	groupRepo repository.GroupRepository,
	logger *slog.Logger,
) RecipientService {
	return &recipientService{
		recipientRepo: recipientRepo,
		groupRepo:     groupRepo,
		logger:        logger,
	}
}

// CreateRecipient creates a recipient and adds it to the given groups
func (s *recipientService) CreateRecipient(ctx context.Context, req *CreateRecipientRequest) (*models.Recipient, error) {
	recipient := &models.Recipient{
		Name:        req.Name,
		PhoneNumber: req.PhoneNumber,
	}
	if err := recipient.Validate(); err != nil {
		return nil, err
	}

	if err := s.recipientRepo.Create(ctx, recipient); err != nil {
		return nil, err
	}

	for _, groupID := range req.GroupIDs {
		group, err := s.groupRepo.GetWithRecipients(ctx, groupID)
		if err != nil {
			s.logger.Warn("group not found while creating recipient, skipping",
				slog.Int64("group_id", groupID),
			)
			continue
		}
		memberIDs := make([]int64, 0, len(group.Recipients)+1)
		for _, member := range group.Recipients {
			memberIDs = append(memberIDs, member.ID)
		}
		memberIDs = append(memberIDs, recipient.ID)
		if err := s.groupRepo.ReplaceMembers(ctx, groupID, memberIDs); err != nil {
			return nil, fmt.Errorf("failed to add recipient to group %d: %w", groupID, err)
		}
	}

	s.logger.Info("recipient created", slog.Int64("recipient_id", recipient.ID))
	return recipient, nil
}

// GetRecipient retrieves a recipient
func (s *recipientService) GetRecipient(ctx context.Context, id int64) (*models.Recipient, error) {
	return s.recipientRepo.GetByID(ctx, id)
}

// ListRecipients retrieves recipients
func (s *recipientService) ListRecipients(ctx context.Context, skip, limit int) (*models.ListResult[*models.Recipient], error) {
	recipients, totalCount, err := s.recipientRepo.List(ctx, skip, limit)
	if err != nil {
		return nil, err
	}

	models.ClampListWindow(&skip, &limit)

	return &models.ListResult[*models.Recipient]{
		Data:  recipients,
		Skip:  skip,
		Limit: limit,
		Total: totalCount,
	}, nil
}

// DeleteRecipient removes a recipient
func (s *recipientService) DeleteRecipient(ctx context.Context, id int64) error {
	return s.recipientRepo.Delete(ctx, id)
}

// CreateGroup creates a group with its initial members
func (s *recipientService) CreateGroup(ctx context.Context, req *CreateGroupRequest) (*models.GroupWithRecipients, error) {
	group := &models.RecipientGroup{
		Name:        req.Name,
		Description: req.Description,
	}
	if err := group.Validate(); err != nil {
		return nil, err
	}

	if err := s.groupRepo.Create(ctx, group, req.RecipientIDs); err != nil {
		return nil, err
	}

	s.logger.Info("recipient group created", slog.Int64("group_id", group.ID))
	return s.groupRepo.GetWithRecipients(ctx, group.ID)
}

// GetGroup retrieves a group with its members
func (s *recipientService) GetGroup(ctx context.Context, id int64) (*models.GroupWithRecipients, error) {
	return s.groupRepo.GetWithRecipients(ctx, id)
}

// ListGroups retrieves groups with members
func (s *recipientService) ListGroups(ctx context.Context, skip, limit int) (*models.ListResult[*models.GroupWithRecipients], error) {
	groups, totalCount, err := s.groupRepo.List(ctx, skip, limit)
	if err != nil {
		return nil, err
	}

	models.ClampListWindow(&skip, &limit)

	return &models.ListResult[*models.GroupWithRecipients]{
		Data:  groups,
		Skip:  skip,
		Limit: limit,
		Total: totalCount,
	}, nil
}

// ReplaceGroupMembers replaces a group's membership. Sends scheduled
// against the group pick up the new membership at dispatch time.
func (s *recipientService) ReplaceGroupMembers(ctx context.Context, id int64, recipientIDs []int64) (*models.GroupWithRecipients, error) {
	if err := s.groupRepo.ReplaceMembers(ctx, id, recipientIDs); err != nil {
		return nil, err
	}
	return s.groupRepo.GetWithRecipients(ctx, id)
}

// DeleteGroup removes a group
func (s *recipientService) DeleteGroup(ctx context.Context, id int64) error {
	return s.groupRepo.Delete(ctx, id)
}

package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mwangaza7/message-scheduler-backend/internal/models"
	"github.com/mwangaza7/message-scheduler-backend/internal/repository"
)

// MessageService handles message payload CRUD
type MessageService interface {
	Create(ctx context.Context, req *CreateMessageRequest) (*models.Message, error)
	GetByID(ctx context.Context, id int64) (*models.Message, error)
	List(ctx context.Context, skip, limit int) (*models.ListResult[*models.Message], error)
	Update(ctx context.Context, id int64, req *CreateMessageRequest) (*models.Message, error)
	Delete(ctx context.Context, id int64) error
}

type messageService struct {
	messageRepo repository.MessageRepository
	logger      *slog.Logger
}

// NewMessageService creates a new message service
func NewMessageService(messageRepo repository.MessageRepository, logger *slog.Logger) MessageService {
	return &messageService{
		messageRepo: messageRepo,
		logger:      logger,
	}
}

// Create creates a new message
func (s *messageService) Create(ctx context.Context, req *CreateMessageRequest) (*models.Message, error) {
	message := &models.Message{
		Title:   req.Title,
		Content: req.Content,
	}
	if err := message.Validate(); err != nil {
		return nil, err
	}

	if err := s.messageRepo.Create(ctx, message); err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	s.logger.Info("message created", slog.Int64("message_id", message.ID))
	return message, nil
}

// GetByID retrieves a message
func (s *messageService) GetByID(ctx context.Context, id int64) (*models.Message, error) {
	return s.messageRepo.GetByID(ctx, id)
}

// List retrieves messages
func (s *messageService) List(ctx context.Context, skip, limit int) (*models.ListResult[*models.Message], error) {
	messages, totalCount, err := s.messageRepo.List(ctx, skip, limit)
	if err != nil {
		return nil, err
	}

	models.ClampListWindow(&skip, &limit)

	return &models.ListResult[*models.Message]{
		Data:  messages,
		Skip:  skip,
		Limit: limit,
		Total: totalCount,
	}, nil
}

// Update replaces a message's title and content
func (s *messageService) Update(ctx context.Context, id int64, req *CreateMessageRequest) (*models.Message, error) {
	message := &models.Message{
		ID:      id,
		Title:   req.Title,
		Content: req.Content,
	}
	if err := message.Validate(); err != nil {
		return nil, err
	}

	if err := s.messageRepo.Update(ctx, message); err != nil {
		return nil, err
	}

	return s.messageRepo.GetByID(ctx, id)
}

// Delete removes a message
func (s *messageService) Delete(ctx context.Context, id int64) error {
	return s.messageRepo.Delete(ctx, id)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/rhmaster-billing/internal/cache"
	"github.com/magabrotheeeer/rhmaster-billing/internal/lib/sl"
	"github.com/magabrotheeeer/rhmaster-billing/internal/models"
	"github.com/magabrotheeeer/rhmaster-billing/internal/storage/repository"
)

// ClientRepository методы хранилища для клиентов ментора.
type ClientRepository interface {
	GetSubscription(ctx context.Context, mentorID string) (*models.Subscription, error)
	CreateClientWithinLimit(ctx context.Context, c models.Client, maxClients int) (*models.Client, error)
	ListClients(ctx context.Context, mentorID string) ([]models.Client, error)
}

// ClientService добавляет клиентов в пределах лимита тарифа.
type ClientService struct {
	repo  ClientRepository
	cache Cache
	log   *slog.Logger
}

// NewClientService создает новый экземпляр ClientService.
func NewClientService(repo ClientRepository, cache Cache, log *slog.Logger) *ClientService {
	return &ClientService{repo: repo, cache: cache, log: log}
}

// CreateClient добавляет клиента. Без действующей или пробной подписки и при
// исчерпанном лимите возвращает ErrClientLimitReached.
func (s *ClientService) CreateClient(ctx context.Context, mentorID string, req models.CreateClientRequest) (*models.Client, error) {
	const op = "services.subscription.CreateClient"

	sub, err := s.repo.GetSubscription(ctx, mentorID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, ErrSubscriptionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	limit := sub.MaxClients
	if sub.Status != models.StatusActive && sub.Status != models.StatusTrial {
		limit = 0
	}

	client, err := s.repo.CreateClientWithinLimit(ctx, models.Client{
		MentorID: mentorID,
		Name:     req.Name,
		Email:    req.Email,
	}, limit)
	if errors.Is(err, repository.ErrLimitReached) {
		return nil, fmt.Errorf("%s: %w", op, ErrClientLimitReached)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.cache.Invalidate(ctx, cache.SubscriptionKey(mentorID)); err != nil {
		s.log.Warn("failed to invalidate subscription cache", sl.Mentor(mentorID), sl.Err(err))
	}
	return client, nil
}

// ListClients возвращает клиентов ментора.
func (s *ClientService) ListClients(ctx context.Context, mentorID string) ([]models.Client, error) {
	const op = "services.subscription.ListClients"
	clients, err := s.repo.ListClients(ctx, mentorID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return clients, nil
}

// Package services содержит логику бизнес-уровня для регистрации и входа менторов.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/magabrotheeeer/rhmaster-billing/internal/config"
	"github.com/magabrotheeeer/rhmaster-billing/internal/lib/jwt"
	"github.com/magabrotheeeer/rhmaster-billing/internal/lib/password"
	"github.com/magabrotheeeer/rhmaster-billing/internal/lib/plans"
	"github.com/magabrotheeeer/rhmaster-billing/internal/models"
	"github.com/magabrotheeeer/rhmaster-billing/internal/storage/repository"
)

// Ошибки аутентификации.
var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// MentorRepository описывает контракт для работы с менторами в базе данных.
type MentorRepository interface {
	// CreateMentorWithTrial сохраняет ментора с пробной подпиской и возвращает его ID.
	CreateMentorWithTrial(ctx context.Context, mentor models.Mentor, trial models.Subscription) (string, error)

	// GetMentorByEmail возвращает ментора по email или repository.ErrNotFound.
	GetMentorByEmail(ctx context.Context, email string) (*models.Mentor, error)
}

// AuthService отвечает за регистрацию и выдачу JWT.
type AuthService struct {
	mentors  MentorRepository
	jwtMaker jwt.Maker
	billing  config.Billing
	now      func() time.Time
}

// NewAuthService создает новый экземпляр AuthService.
func NewAuthService(mentors MentorRepository, jwtMaker jwt.Maker, billing config.Billing) *AuthService {
	return &AuthService{
		mentors:  mentors,
		jwtMaker: jwtMaker,
		billing:  billing,
		now:      time.Now,
	}
}

// Register создает ментора с пробным периодом и сразу выдает токен.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	const op = "services.auth.Register"

	hashed, err := password.GetHash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	plan, err := plans.ByID(models.PlanID(s.billing.TrialPlan))
	if err != nil {
		plan = plans.Basic
	}
	days := s.billing.TrialDays
	if days <= 0 {
		days = 7
	}

	now := s.now().UTC()
	trialEnd := now.AddDate(0, 0, days)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	mentorID, err := s.mentors.CreateMentorWithTrial(ctx, models.Mentor{
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hashed,
		TrialEndDate: &trialEnd,
	}, models.Subscription{
		Plan:         plan.ID,
		Status:       models.StatusTrial,
		BillingCycle: models.CycleMonthly,
		MaxClients:   plan.MaxClients,
		StartDate:    now,
		TrialEndDate: &trialEnd,
	})
	if errors.Is(err, repository.ErrAlreadyExists) {
		return nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	token, err := s.jwtMaker.GenerateToken(mentorID, email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &models.AuthResponse{Token: token, MentorID: mentorID}, nil
}

// Login проверяет пароль ментора и генерирует JWT.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	const op = "services.auth.Login"

	mentor, err := s.mentors.GetMentorByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := password.CompareHash(mentor.PasswordHash, req.Password); err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	token, err := s.jwtMaker.GenerateToken(mentor.ID, mentor.Email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &models.AuthResponse{Token: token, MentorID: mentor.ID}, nil
}

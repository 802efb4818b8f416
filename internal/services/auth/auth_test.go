package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/rhmaster-billing/internal/config"
	customjwt "github.com/magabrotheeeer/rhmaster-billing/internal/lib/jwt"
	"github.com/magabrotheeeer/rhmaster-billing/internal/lib/password"
	"github.com/magabrotheeeer/rhmaster-billing/internal/models"
	services "github.com/magabrotheeeer/rhmaster-billing/internal/services/auth"
	"github.com/magabrotheeeer/rhmaster-billing/internal/storage/repository"
)

// Мок для MentorRepository
type MentorRepoMock struct {
	mock.Mock
}

func (m *MentorRepoMock) CreateMentorWithTrial(ctx context.Context, mentor models.Mentor, trial models.Subscription) (string, error) {
	args := m.Called(ctx, mentor, trial)
	return args.String(0), args.Error(1)
}

func (m *MentorRepoMock) GetMentorByEmail(ctx context.Context, email string) (*models.Mentor, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Mentor), args.Error(1)
}

// Мок для jwt.Maker
type JwtMakerMock struct {
	mock.Mock
}

func (m *JwtMakerMock) GenerateToken(mentorID, email string) (string, error) {
	args := m.Called(mentorID, email)
	return args.String(0), args.Error(1)
}

func (m *JwtMakerMock) ParseToken(token string) (*customjwt.Claims, error) {
	args := m.Called(token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customjwt.Claims), args.Error(1)
}

var billing = config.Billing{TrialDays: 7, TrialPlan: "basic"}

func TestAuthService_Register(t *testing.T) {
	req := models.RegisterRequest{Email: " Anna@Example.com ", Name: "Anna", Password: "password123"}

	tests := []struct {
		name       string
		setupMocks func(r *MentorRepoMock, j *JwtMakerMock)
		wantToken  string
		wantErr    error
	}{
		{
			name: "успешная регистрация с пробным периодом",
			setupMocks: func(r *MentorRepoMock, j *JwtMakerMock) {
				r.On("CreateMentorWithTrial", mock.Anything,
					mock.MatchedBy(func(m models.Mentor) bool {
						return m.Email == "anna@example.com" && m.Name == "Anna" && m.PasswordHash != "password123" &&
							m.TrialEndDate != nil && time.Until(*m.TrialEndDate) > 6*24*time.Hour
					}),
					mock.MatchedBy(func(s models.Subscription) bool {
						return s.Status == models.StatusTrial && s.Plan == models.PlanBasic && s.MaxClients == 10
					}),
				).Return("mentor-uuid", nil).Once()
				j.On("GenerateToken", "mentor-uuid", "anna@example.com").Return("token-1", nil).Once()
			},
			wantToken: "token-1",
		},
		{
			name: "email занят",
			setupMocks: func(r *MentorRepoMock, _ *JwtMakerMock) {
				r.On("CreateMentorWithTrial", mock.Anything, mock.Anything, mock.Anything).
					Return("", repository.ErrAlreadyExists).Once()
			},
			wantErr: services.ErrEmailTaken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MentorRepoMock)
			maker := new(JwtMakerMock)
			tt.setupMocks(repo, maker)

			svc := services.NewAuthService(repo, maker, billing)
			resp, err := svc.Register(context.Background(), req)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantToken, resp.Token)
				assert.Equal(t, "mentor-uuid", resp.MentorID)
			}
			repo.AssertExpectations(t)
			maker.AssertExpectations(t)
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	hash, err := password.GetHash("password123")
	require.NoError(t, err)
	mentor := &models.Mentor{ID: "mentor-uuid", Email: "anna@example.com", PasswordHash: hash}

	tests := []struct {
		name       string
		password   string
		setupMocks func(r *MentorRepoMock, j *JwtMakerMock)
		wantErr    error
		anyErr     bool
	}{
		{
			name:     "успешный вход",
			password: "password123",
			setupMocks: func(r *MentorRepoMock, j *JwtMakerMock) {
				r.On("GetMentorByEmail", mock.Anything, "anna@example.com").Return(mentor, nil).Once()
				j.On("GenerateToken", "mentor-uuid", "anna@example.com").Return("token-2", nil).Once()
			},
		},
		{
			name:     "неверный пароль",
			password: "wrong",
			setupMocks: func(r *MentorRepoMock, _ *JwtMakerMock) {
				r.On("GetMentorByEmail", mock.Anything, "anna@example.com").Return(mentor, nil).Once()
			},
			wantErr: services.ErrInvalidCredentials,
		},
		{
			name:     "ментор не найден",
			password: "password123",
			setupMocks: func(r *MentorRepoMock, _ *JwtMakerMock) {
				r.On("GetMentorByEmail", mock.Anything, "anna@example.com").Return(nil, repository.ErrNotFound).Once()
			},
			wantErr: services.ErrInvalidCredentials,
		},
		{
			name:     "ошибка БД",
			password: "password123",
			setupMocks: func(r *MentorRepoMock, _ *JwtMakerMock) {
				r.On("GetMentorByEmail", mock.Anything, "anna@example.com").Return(nil, errors.New("db down")).Once()
			},
			anyErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MentorRepoMock)
			maker := new(JwtMakerMock)
			tt.setupMocks(repo, maker)

			svc := services.NewAuthService(repo, maker, billing)
			resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "anna@example.com", Password: tt.password})

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.anyErr:
				assert.Error(t, err)
				assert.NotErrorIs(t, err, services.ErrInvalidCredentials)
			default:
				require.NoError(t, err)
				assert.Equal(t, "token-2", resp.Token)
			}
			repo.AssertExpectations(t)
			maker.AssertExpectations(t)
		})
	}
}

package current

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/rhmaster-billing/internal/http/middlewarectx"
	"github.com/magabrotheeeer/rhmaster-billing/internal/models"
	services "github.com/magabrotheeeer/rhmaster-billing/internal/services/subscription"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Current(ctx context.Context, mentorID string) (*models.Subscription, error) {
	args := m.Called(ctx, mentorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestCurrentHandler(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		mentorID       string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:     "подписка найдена",
			mentorID: "m-1",
			setupMock: func(m *MockService) {
				m.On("Current", mock.Anything, "m-1").Return(&models.Subscription{
					ID: 1, MentorID: "m-1", Plan: models.PlanPro, Status: models.StatusActive,
					MaxClients: 50, ClientCount: 3, StartDate: start, AutoRenew: true,
					ProviderSubscriptionID: "sub_secret",
				}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"plan":"pro"`,
		},
		{
			name:     "подписки нет",
			mentorID: "m-1",
			setupMock: func(m *MockService) {
				m.On("Current", mock.Anything, "m-1").
					Return(nil, errors.Join(errors.New("op"), services.ErrSubscriptionNotFound)).Once()
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `{"message":"subscription not found"}`,
		},
		{
			name:     "ошибка сервиса",
			mentorID: "m-1",
			setupMock: func(m *MockService) {
				m.On("Current", mock.Anything, "m-1").Return(nil, errors.New("db down")).Once()
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"message":"could not load subscription"}`,
		},
		{
			name:           "нет ментора в контексте",
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"message":"unauthorized"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			req := httptest.NewRequest(http.MethodGet, "/api/subscription/current-subscription", nil)
			ctx := context.WithValue(req.Context(), middleware.RequestIDKey, "req-id")
			ctx = context.WithValue(ctx, middlewarectx.MentorID, tt.mentorID)
			req = req.WithContext(ctx)
			w := httptest.NewRecorder()

			New(newNoopLogger(), svc).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			assert.NotContains(t, w.Body.String(), "sub_secret")
			svc.AssertExpectations(t)
		})
	}
}

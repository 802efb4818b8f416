package create

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	stripe "github.com/stripe/stripe-go/v82"

	"github.com/magabrotheeeer/rhmaster-billing/internal/http/middlewarectx"
	"github.com/magabrotheeeer/rhmaster-billing/internal/models"
	services "github.com/magabrotheeeer/rhmaster-billing/internal/services/subscription"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Create(ctx context.Context, mentorID string, req models.ChangePlanRequest, idempotencyKey string) (models.ChangePlanResult, error) {
	args := m.Called(ctx, mentorID, req, idempotencyKey)
	return args.Get(0).(models.ChangePlanResult), args.Error(1)
}

func TestCreateHandler(t *testing.T) {
	proAnnual := models.ChangePlanRequest{PlanID: models.PlanPro, BillingCycle: models.CycleAnnual}

	tests := []struct {
		name           string
		body           string
		idemKey        string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:    "нужна оплата",
			body:    `{"planId":"pro","billingCycle":"annual"}`,
			idemKey: "key-1",
			setupMock: func(m *MockService) {
				m.On("Create", mock.Anything, "m-1", proAnnual, "key-1").
					Return(models.ChangePlanResult{ClientSecret: "pi_1_secret_2"}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"clientSecret":"pi_1_secret_2"}`,
		},
		{
			name: "оплата не потребовалась",
			body: `{"planId":"basic"}`,
			setupMock: func(m *MockService) {
				m.On("Create", mock.Anything, "m-1", models.ChangePlanRequest{PlanID: models.PlanBasic}, "").
					Return(models.ChangePlanResult{Success: true}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"success":true}`,
		},
		{
			name:           "некорректный JSON",
			body:           `not a json`,
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"message":"failed to decode request"}`,
		},
		{
			name:           "неизвестный тариф",
			body:           `{"planId":"gold"}`,
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"message":"field PlanID must be one of [basic pro enterprise]"}`,
		},
		{
			name: "подписка уже есть",
			body: `{"planId":"pro","billingCycle":"annual"}`,
			setupMock: func(m *MockService) {
				m.On("Create", mock.Anything, "m-1", proAnnual, "").
					Return(models.ChangePlanResult{}, fmt.Errorf("op: %w", services.ErrAlreadySubscribed)).Once()
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `{"message":"subscription already exists"}`,
		},
		{
			name: "Stripe отклонил карту",
			body: `{"planId":"pro","billingCycle":"annual"}`,
			setupMock: func(m *MockService) {
				m.On("Create", mock.Anything, "m-1", proAnnual, "").
					Return(models.ChangePlanResult{}, fmt.Errorf("op: %w: %w", services.ErrProvider, &stripe.Error{Msg: "Your card was declined."})).Once()
			},
			expectedStatus: http.StatusPaymentRequired,
			expectedBody:   `{"message":"Your card was declined."}`,
		},
		{
			name: "ошибка сервиса",
			body: `{"planId":"pro","billingCycle":"annual"}`,
			setupMock: func(m *MockService) {
				m.On("Create", mock.Anything, "m-1", proAnnual, "").
					Return(models.ChangePlanResult{}, errors.New("db down")).Once()
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"message":"could not create subscription"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			req := httptest.NewRequest(http.MethodPost, "/api/subscription/create-subscription", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			if tt.idemKey != "" {
				req.Header.Set(IdempotencyHeader, tt.idemKey)
			}
			ctx := context.WithValue(req.Context(), middleware.RequestIDKey, "req-id")
			ctx = context.WithValue(ctx, middlewarectx.MentorID, "m-1")
			w := httptest.NewRecorder()

			New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc).ServeHTTP(w, req.WithContext(ctx))

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
			svc.AssertExpectations(t)
		})
	}
}

package login

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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/rhmaster-billing/internal/models"
	services "github.com/magabrotheeeer/rhmaster-billing/internal/services/auth"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AuthResponse), args.Error(1)
}

func TestLoginHandler(t *testing.T) {
	creds := models.LoginRequest{Email: "anna@example.com", Password: "password123"}
	body := `{"email":"anna@example.com","password":"password123"}`

	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "успешный вход",
			body: body,
			setupMock: func(m *MockService) {
				m.On("Login", mock.Anything, creds).Return(&models.AuthResponse{Token: "jwt", MentorID: "m-1"}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"token":"jwt","mentorId":"m-1"}`,
		},
		{
			name:           "некорректный JSON",
			body:           `{`,
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"message":"invalid request body"}`,
		},
		{
			name: "неверные учетные данные",
			body: body,
			setupMock: func(m *MockService) {
				m.On("Login", mock.Anything, creds).Return(nil, fmt.Errorf("op: %w", services.ErrInvalidCredentials)).Once()
			},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"message":"invalid credentials"}`,
		},
		{
			name: "ошибка сервиса",
			body: body,
			setupMock: func(m *MockService) {
				m.On("Login", mock.Anything, creds).Return(nil, errors.New("db down")).Once()
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"message":"could not log in"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()
			New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
			svc.AssertExpectations(t)
		})
	}
}

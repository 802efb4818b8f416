package reactivate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/rhmaster-billing/internal/http/middlewarectx"
	"github.com/magabrotheeeer/rhmaster-billing/internal/models"
	services "github.com/magabrotheeeer/rhmaster-billing/internal/services/subscription"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Reactivate(ctx context.Context, mentorID string) (models.MessageResponse, error) {
	args := m.Called(ctx, mentorID)
	return args.Get(0).(models.MessageResponse), args.Error(1)
}

func TestReactivateHandler(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedBody   string
	}{
		{"подписка возобновлена", nil, http.StatusOK, `{"message":"Subscription reactivated"}`},
		{"отмена не запланирована", fmt.Errorf("op: %w", services.ErrNotReactivatable), http.StatusBadRequest, `{"message":"subscription is not scheduled for cancellation"}`},
		{"подписки нет", fmt.Errorf("op: %w", services.ErrSubscriptionNotFound), http.StatusNotFound, `{"message":"subscription not found"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			resp := models.MessageResponse{}
			if tt.err == nil {
				resp.Message = "Subscription reactivated"
			}
			svc.On("Reactivate", mock.Anything, "m-1").Return(resp, tt.err).Once()

			req := httptest.NewRequest(http.MethodPost, "/api/subscription/reactivate-subscription", nil)
			req = req.WithContext(context.WithValue(req.Context(), middlewarectx.MentorID, "m-1"))
			w := httptest.NewRecorder()

			New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
			svc.AssertExpectations(t)
		})
	}
}

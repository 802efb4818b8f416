package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/rhmaster-billing/internal/migrations"
	"github.com/magabrotheeeer/rhmaster-billing/internal/models"
)

// setupTestDatabase поднимает PostgreSQL в контейнере и применяет миграции.
func setupTestDatabase(t *testing.T) *Storage {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err, "failed to start container")
	t.Cleanup(func() { _ = pgContainer.Terminate(ctx) })

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	storage, err := New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close() })

	root, err := filepath.Abs("../../..")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, filepath.Join(root, "migrations")))

	return storage
}

// TestDataFactory создает тестовые данные.
type TestDataFactory struct {
	storage *Storage
}

// NewTestDataFactory создает фабрику тестовых данных.
func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreateTrialMentor создает ментора с пробной подпиской, которая заканчивается в trialEnd.
func (f *TestDataFactory) CreateTrialMentor(t *testing.T, email string, trialEnd time.Time) string {
	t.Helper()
	id, err := f.storage.CreateMentorWithTrial(context.Background(),
		models.Mentor{Email: email, Name: "Coach " + email, PasswordHash: "hash", TrialEndDate: &trialEnd},
		models.Subscription{
			Plan:         models.PlanBasic,
			Status:       models.StatusTrial,
			MaxClients:   10,
			StartDate:    trialEnd.AddDate(0, 0, -7),
			TrialEndDate: &trialEnd,
		})
	require.NoError(t, err)
	return id
}

// CreateClients добавляет n клиентов ментору.
func (f *TestDataFactory) CreateClients(t *testing.T, mentorID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := f.storage.DB.Exec(`INSERT INTO clients (mentor_id, name) VALUES ($1, $2)`, mentorID, "client")
		require.NoError(t, err)
	}
}

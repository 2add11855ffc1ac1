//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"cvintake/internal/notify/models"
	"cvintake/internal/notify/store"
	"cvintake/pkg/testutil/containers"
)

type PostgresPersisterSuite struct {
	suite.Suite
	postgres  *containers.PostgresContainer
	persister *store.PostgresPersister
}

func TestPostgresPersisterSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresPersisterSuite))
}

func (s *PostgresPersisterSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.persister = store.NewPostgres(s.postgres.DB)
	s.Require().NoError(s.persister.EnsureSchema(context.Background()))
}

func (s *PostgresPersisterSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "notifications"))
}

func (s *PostgresPersisterSuite) TestSaveAndLoadRoundTrip() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	in := []models.Notification{
		{
			ID:              "webhook_1_aaaaaaaaa",
			Title:           "CV Analysis: Jane Doe",
			Message:         "CV processing completed for Jane Doe",
			Type:            models.TypeCVAnalysis,
			Priority:        models.PriorityMedium,
			Timestamp:       now,
			Candidate:       "Jane Doe",
			CanHide:         true,
			OriginalMessage: "done",
		},
		{
			ID:        "notification_2_bbbbbbbbb",
			Title:     "Upload Failed",
			Message:   "webhook unreachable",
			Type:      models.TypeError,
			Priority:  models.PriorityHigh,
			Timestamp: now.Add(-time.Hour),
			Read:      true,
		},
	}
	s.Require().NoError(s.persister.SaveAll(ctx, in))

	out, err := s.persister.Load(ctx, now.Add(-24*time.Hour))
	s.Require().NoError(err)
	s.Require().Len(out, 2)

	s.Run("ordered most recent first", func() {
		s.Equal("webhook_1_aaaaaaaaa", out[0].ID)
		s.Equal("notification_2_bbbbbbbbb", out[1].ID)
	})

	s.Run("fields survive the round trip", func() {
		got := out[0]
		s.Equal("CV Analysis: Jane Doe", got.Title)
		s.Equal(models.TypeCVAnalysis, got.Type)
		s.Equal(models.PriorityMedium, got.Priority)
		s.Equal("Jane Doe", got.Candidate)
		s.True(got.CanHide)
		s.Equal("done", got.OriginalMessage)
		s.True(got.Persistent)
		s.True(out[1].Read)
	})
}

func (s *PostgresPersisterSuite) TestSaveReplacesPreviousSet() {
	ctx := context.Background()
	now := time.Now().UTC()

	s.Require().NoError(s.persister.SaveAll(ctx, []models.Notification{
		{ID: "a", Title: "a", Message: "a", Type: models.TypeInfo, Priority: models.PriorityLow, Timestamp: now},
		{ID: "b", Title: "b", Message: "b", Type: models.TypeInfo, Priority: models.PriorityLow, Timestamp: now},
	}))

	// Saving a smaller set drops entries removed in memory.
	s.Require().NoError(s.persister.SaveAll(ctx, []models.Notification{
		{ID: "b", Title: "b", Message: "b", Type: models.TypeInfo, Priority: models.PriorityLow, Timestamp: now},
	}))

	out, err := s.persister.Load(ctx, now.Add(-time.Hour))
	s.Require().NoError(err)
	s.Require().Len(out, 1)
	s.Equal("b", out[0].ID)
}

func (s *PostgresPersisterSuite) TestLoadAppliesRetentionCutoff() {
	ctx := context.Background()
	now := time.Now().UTC()

	s.Require().NoError(s.persister.SaveAll(ctx, []models.Notification{
		{ID: "fresh", Title: "f", Message: "f", Type: models.TypeInfo, Priority: models.PriorityLow, Timestamp: now},
		{ID: "stale", Title: "s", Message: "s", Type: models.TypeInfo, Priority: models.PriorityLow, Timestamp: now.Add(-8 * 24 * time.Hour)},
	}))

	out, err := s.persister.Load(ctx, now.Add(-7*24*time.Hour))
	s.Require().NoError(err)
	s.Require().Len(out, 1)
	s.Equal("fresh", out[0].ID)
}

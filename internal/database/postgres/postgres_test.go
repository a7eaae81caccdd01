//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/lost-found/internal/config"
	"github.com/kozaktomas/lost-found/internal/database"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dbURL := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	cfg := &config.DatabaseConfig{
		URL:          dbURL,
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := NewPool(cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	if _, err := pool.Migrate(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return pool, cleanup
}

func unitDescriptor(dim, hot int) []float32 {
	d := make([]float32, dim)
	d[hot] = 1
	return d
}

func TestMigrateIsIdempotent(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	applied, err := pool.Migrate(ctx)
	if err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("expected no pending migrations, got %v", applied)
	}

	versions, err := pool.MigrationsApplied(ctx)
	if err != nil {
		t.Fatalf("MigrationsApplied failed: %v", err)
	}
	if len(versions) == 0 || versions[0] != "001_init.sql" {
		t.Errorf("unexpected applied versions %v", versions)
	}
}

func TestReportRepositories(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	lost := NewLostRepository(pool)
	found := NewFoundRepository(pool)

	t.Run("CreateAndGetLost", func(t *testing.T) {
		report := &database.LostReport{
			PersonName: "Jiří Novák",
			Age:        34,
			DateLost:   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
			Contact:    database.Contact{Phone: "+420123456789"},
			Descriptor: unitDescriptor(128, 0),
		}
		if err := lost.CreateLost(ctx, report); err != nil {
			t.Fatalf("CreateLost failed: %v", err)
		}
		if report.ID == "" || report.CreatedAt.IsZero() {
			t.Fatal("expected ID and CreatedAt to be assigned")
		}

		got, err := lost.GetLost(ctx, report.ID)
		if err != nil {
			t.Fatalf("GetLost failed: %v", err)
		}
		if got == nil {
			t.Fatal("expected report, got nil")
		}
		if got.Status != database.StatusPending {
			t.Errorf("expected pending status, got %s", got.Status)
		}
		if len(got.Descriptor) != 128 || got.Descriptor[0] != 1 {
			t.Errorf("descriptor not round-tripped: len=%d", len(got.Descriptor))
		}
	})

	t.Run("GetMissingReturnsNil", func(t *testing.T) {
		got, err := lost.GetLost(ctx, "00000000-0000-0000-0000-000000000000")
		if err != nil || got != nil {
			t.Errorf("expected nil, nil; got %v, %v", got, err)
		}
		got, err = lost.GetLost(ctx, "not-a-uuid")
		if err != nil || got != nil {
			t.Errorf("expected nil, nil for malformed id; got %v, %v", got, err)
		}
	})

	t.Run("ListLostByNormalizedName", func(t *testing.T) {
		reports, total, err := lost.ListLost(ctx, database.ReportFilter{Name: "jiri"})
		if err != nil {
			t.Fatalf("ListLost failed: %v", err)
		}
		if total != 1 || len(reports) != 1 {
			t.Errorf("expected 1 report, got total=%d len=%d", total, len(reports))
		}
	})

	t.Run("EligibilityFollowsStatus", func(t *testing.T) {
		noFace := &database.LostReport{PersonName: "No Face", Status: database.StatusApproved}
		if err := lost.CreateLost(ctx, noFace); err != nil {
			t.Fatalf("CreateLost failed: %v", err)
		}

		eligible, err := lost.ListEligibleLost(ctx)
		if err != nil {
			t.Fatalf("ListEligibleLost failed: %v", err)
		}
		if len(eligible) != 0 {
			t.Errorf("expected no eligible reports before approval, got %d", len(eligible))
		}

		reports, _, _ := lost.ListLost(ctx, database.ReportFilter{Name: "novak"})
		if _, err := lost.SetLostStatus(ctx, reports[0].ID, database.StatusApproved); err != nil {
			t.Fatalf("SetLostStatus failed: %v", err)
		}

		eligible, err = lost.ListEligibleLost(ctx)
		if err != nil {
			t.Fatalf("ListEligibleLost failed: %v", err)
		}
		if len(eligible) != 1 {
			t.Errorf("expected 1 eligible report, got %d", len(eligible))
		}
	})

	t.Run("SetStatusValidation", func(t *testing.T) {
		_, err := lost.SetLostStatus(ctx, "00000000-0000-0000-0000-000000000000", database.StatusApproved)
		if !errors.Is(err, database.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		_, err = lost.SetLostStatus(ctx, "00000000-0000-0000-0000-000000000000", database.StatusMatched)
		if !errors.Is(err, database.ErrInvalidStatus) {
			t.Errorf("expected ErrInvalidStatus, got %v", err)
		}
	})

	t.Run("NearestLostFallbackAndIndex", func(t *testing.T) {
		query := unitDescriptor(128, 0)

		reports, scores, err := lost.NearestLost(ctx, query, 5)
		if err != nil {
			t.Fatalf("NearestLost (pgvector) failed: %v", err)
		}
		if len(reports) != 1 || scores[0] < 0.999 {
			t.Errorf("expected one exact hit, got %d reports, scores %v", len(reports), scores)
		}

		if err := lost.EnableIndex(ctx, 128, filepath.Join(t.TempDir(), "lost.hnsw")); err != nil {
			t.Fatalf("EnableIndex failed: %v", err)
		}
		if lost.IndexCount() != 1 {
			t.Errorf("expected 1 indexed descriptor, got %d", lost.IndexCount())
		}

		reports, scores, err = lost.NearestLost(ctx, query, 5)
		if err != nil {
			t.Fatalf("NearestLost (HNSW) failed: %v", err)
		}
		if len(reports) != 1 || scores[0] < 0.999 {
			t.Errorf("expected one exact hit from index, got %d reports, scores %v", len(reports), scores)
		}
	})

	t.Run("UpdateLostResyncsIndex", func(t *testing.T) {
		reports, _, err := lost.ListLost(ctx, database.ReportFilter{Name: "novak"})
		if err != nil || len(reports) != 1 {
			t.Fatalf("expected the approved report, got %d (%v)", len(reports), err)
		}
		report := reports[0]
		report.PersonName = "Jiří Svoboda"
		report.Descriptor = unitDescriptor(128, 7)
		report.Status = database.StatusRejected // ignored by UpdateLost

		updated, err := lost.UpdateLost(ctx, &report)
		if err != nil {
			t.Fatalf("UpdateLost failed: %v", err)
		}
		if updated.Status != database.StatusApproved {
			t.Errorf("expected status to stay approved, got %s", updated.Status)
		}
		if !updated.UpdatedAt.After(updated.CreatedAt) {
			t.Errorf("expected updated_at to move forward")
		}

		byName, _, err := lost.ListLost(ctx, database.ReportFilter{Name: "svoboda"})
		if err != nil || len(byName) != 1 {
			t.Errorf("expected search by new name to find the report, got %d (%v)", len(byName), err)
		}

		hits, scores, err := lost.NearestLost(ctx, unitDescriptor(128, 7), 5)
		if err != nil {
			t.Fatalf("NearestLost failed: %v", err)
		}
		if len(hits) != 1 || hits[0].ID != report.ID || scores[0] < 0.999 {
			t.Errorf("expected the index to serve the new descriptor, got %d hits, scores %v", len(hits), scores)
		}

		missing := database.LostReport{ID: "00000000-0000-0000-0000-000000000000", PersonName: "x"}
		if _, err := lost.UpdateLost(ctx, &missing); !errors.Is(err, database.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("UpdateFound", func(t *testing.T) {
		report := &database.FoundReport{FoundLocation: "Park", Status: database.StatusRejected}
		if err := found.CreateFound(ctx, report); err != nil {
			t.Fatalf("CreateFound failed: %v", err)
		}

		report.FoundLocation = "City park"
		report.EstimatedAge = 60
		report.Descriptor = unitDescriptor(128, 3)
		updated, err := found.UpdateFound(ctx, report)
		if err != nil {
			t.Fatalf("UpdateFound failed: %v", err)
		}
		if updated.FoundLocation != "City park" || updated.EstimatedAge != 60 || len(updated.Descriptor) != 128 {
			t.Errorf("unexpected updated report %+v", updated)
		}
		if updated.Status != database.StatusRejected {
			t.Errorf("expected status to stay rejected, got %s", updated.Status)
		}

		if _, err := found.UpdateFound(ctx, &database.FoundReport{ID: "not-a-uuid"}); !errors.Is(err, database.ErrNotFound) {
			t.Errorf("expected ErrNotFound for malformed id, got %v", err)
		}
	})

	t.Run("CreateAndListFound", func(t *testing.T) {
		report := &database.FoundReport{
			FoundLocation: "Main station",
			Status:        database.StatusApproved,
			Descriptor:    unitDescriptor(128, 0),
		}
		if err := found.CreateFound(ctx, report); err != nil {
			t.Fatalf("CreateFound failed: %v", err)
		}

		eligible, err := found.ListEligibleFound(ctx)
		if err != nil {
			t.Fatalf("ListEligibleFound failed: %v", err)
		}
		if len(eligible) != 1 {
			t.Errorf("expected 1 eligible found report, got %d", len(eligible))
		}

		_, total, err := found.ListFound(ctx, database.ReportFilter{Status: database.StatusPending})
		if err != nil {
			t.Fatalf("ListFound failed: %v", err)
		}
		if total != 0 {
			t.Errorf("expected no pending found reports, got %d", total)
		}
	})
}

func TestMatchRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	lostRepo := NewLostRepository(pool)
	foundRepo := NewFoundRepository(pool)
	matches := NewMatchRepository(pool)
	stats := NewStatsRepository(pool)

	lost := &database.LostReport{PersonName: "Anna", Status: database.StatusApproved}
	found := &database.FoundReport{Status: database.StatusApproved}
	if err := lostRepo.CreateLost(ctx, lost); err != nil {
		t.Fatalf("CreateLost failed: %v", err)
	}
	if err := foundRepo.CreateFound(ctx, found); err != nil {
		t.Fatalf("CreateFound failed: %v", err)
	}

	t.Run("DuplicatePairRejected", func(t *testing.T) {
		first := &database.MatchRecord{LostID: lost.ID, FoundID: found.ID, Score: 0.9}
		if err := matches.CreateMatch(ctx, first); err != nil {
			t.Fatalf("CreateMatch failed: %v", err)
		}
		if first.Status != database.MatchPending {
			t.Errorf("expected pending status, got %s", first.Status)
		}

		second := &database.MatchRecord{LostID: lost.ID, FoundID: found.ID, Score: 0.95}
		err := matches.CreateMatch(ctx, second)
		if !errors.Is(err, database.ErrDuplicateMatch) {
			t.Errorf("expected ErrDuplicateMatch, got %v", err)
		}

		exists, err := matches.MatchExists(ctx, lost.ID, found.ID)
		if err != nil || !exists {
			t.Errorf("expected pair to exist, got %v, %v", exists, err)
		}
	})

	t.Run("ConcurrentCreatesYieldOneRecord", func(t *testing.T) {
		other := &database.FoundReport{Status: database.StatusApproved}
		if err := foundRepo.CreateFound(ctx, other); err != nil {
			t.Fatalf("CreateFound failed: %v", err)
		}

		var wg sync.WaitGroup
		errs := make(chan error, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- matches.CreateMatch(ctx, &database.MatchRecord{LostID: lost.ID, FoundID: other.ID, Score: 0.8})
			}()
		}
		wg.Wait()
		close(errs)

		created := 0
		for err := range errs {
			switch {
			case err == nil:
				created++
			case errors.Is(err, database.ErrDuplicateMatch):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}
		if created != 1 {
			t.Errorf("expected exactly one successful insert, got %d", created)
		}
	})

	t.Run("ListOrderedByScore", func(t *testing.T) {
		list, total, err := matches.ListMatches(ctx, database.MatchFilter{})
		if err != nil {
			t.Fatalf("ListMatches failed: %v", err)
		}
		if total != 2 || len(list) != 2 {
			t.Fatalf("expected 2 matches, got total=%d len=%d", total, len(list))
		}
		if list[0].Score < list[1].Score {
			t.Errorf("matches not ordered by score: %v, %v", list[0].Score, list[1].Score)
		}
	})

	t.Run("ConfirmAndResolve", func(t *testing.T) {
		list, _, _ := matches.ListMatches(ctx, database.MatchFilter{Limit: 1})
		m, err := matches.UpdateMatchStatus(ctx, list[0].ID, database.MatchConfirmed, "same person")
		if err != nil {
			t.Fatalf("UpdateMatchStatus failed: %v", err)
		}
		if m.ConfirmedAt == nil {
			t.Error("expected confirmed_at to be set")
		}
		if m.Notes != "same person" {
			t.Errorf("expected notes to be stored, got %q", m.Notes)
		}

		if err := matches.ResolvePair(ctx, m.LostID, m.FoundID); err != nil {
			t.Fatalf("ResolvePair failed: %v", err)
		}
		l, _ := lostRepo.GetLost(ctx, m.LostID)
		f, _ := foundRepo.GetFound(ctx, m.FoundID)
		if l.Status != database.StatusFound || f.Status != database.StatusMatched {
			t.Errorf("unexpected statuses lost=%s found=%s", l.Status, f.Status)
		}

		s, err := stats.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats failed: %v", err)
		}
		if s.Matches != 2 || s.ConfirmedMatches != 1 {
			t.Errorf("unexpected stats %+v", s)
		}
	})

	t.Run("DeleteLostCascades", func(t *testing.T) {
		if err := lostRepo.DeleteLost(ctx, lost.ID); err != nil {
			t.Fatalf("DeleteLost failed: %v", err)
		}
		_, total, err := matches.ListMatches(ctx, database.MatchFilter{})
		if err != nil {
			t.Fatalf("ListMatches failed: %v", err)
		}
		if total != 0 {
			t.Errorf("expected matches to be removed, got %d", total)
		}
	})
}

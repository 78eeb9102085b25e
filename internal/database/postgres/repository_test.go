package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/pulselabs/linkpulse/internal/database"
	"github.com/pulselabs/linkpulse/internal/models"
	"github.com/stretchr/testify/assert"
)

var (
	errUnknown      = errors.New("unknown error")
	errAffectedRows = errors.New("affected rows error")
)

var linkColumns = []string{"id", "code", "destination", "owner", "password_hash", "expires_at", "click_count", "created_at", "updated_at"}

var visitColumns = []string{"visited_at", "source_ip", "country", "city", "operating_system", "device_class", "browser"}

func setupLinkRepository(t testing.TB) (*LinkRepository, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}

	db := sqlx.NewDb(mockDB, "sqlmock")
	repo := NewLinkRepository(db)

	t.Cleanup(func() {
		mockDB.Close()
		db.Close()
	})

	return repo, mock
}

func TestLinkRepository_Create(t *testing.T) {
	t.Run("code exists", func(t *testing.T) {
		repo, mock := setupLinkRepository(t)

		mock.ExpectQuery(`INSERT INTO links`).
			WithArgs("abc123", "https://example.com", models.AnonymousOwner, nil, nil).
			WillReturnError(&pgconn.PgError{Code: uniqueViolationErrCode})

		link, err := repo.Create(context.TODO(), &models.Link{
			Code:        "abc123",
			Destination: "https://example.com",
			Owner:       models.AnonymousOwner,
		})

		assert.Error(t, err)
		assert.ErrorIs(t, err, database.ErrCodeExists)
		assert.Nil(t, link)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown error", func(t *testing.T) {
		repo, mock := setupLinkRepository(t)

		mock.ExpectQuery(`INSERT INTO links`).
			WithArgs("abc123", "https://example.com", models.AnonymousOwner, nil, nil).
			WillReturnError(errUnknown)

		link, err := repo.Create(context.TODO(), &models.Link{
			Code:        "abc123",
			Destination: "https://example.com",
			Owner:       models.AnonymousOwner,
		})

		assert.Error(t, err)
		assert.ErrorIs(t, err, errUnknown)
		assert.Nil(t, link)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success", func(t *testing.T) {
		repo, mock := setupLinkRepository(t)

		rows := sqlmock.NewRows(linkColumns).
			AddRow(1, "abc123", "https://example.com", "user1", "hash", nil, 0, time.Time{}, time.Time{})

		mock.ExpectQuery(`INSERT INTO links`).
			WithArgs("abc123", "https://example.com", "user1", "hash", nil).
			WillReturnRows(rows)

		wantLink := models.Link{
			ID:           1,
			Code:         "abc123",
			Destination:  "https://example.com",
			Owner:        "user1",
			PasswordHash: "hash",
		}

		link, err := repo.Create(context.TODO(), &models.Link{
			Code:         "abc123",
			Destination:  "https://example.com",
			Owner:        "user1",
			PasswordHash: "hash",
		})

		assert.NoError(t, err)
		assert.NotNil(t, link)
		assert.Equal(t, wantLink, *link)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLinkRepository_GetByCode(t *testing.T) {
	t.Run("link not found", func(t *testing.T) {
		repo, mock := setupLinkRepository(t)

		mock.ExpectQuery(`SELECT \* FROM links`).
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		link, err := repo.GetByCode(context.TODO(), "missing")

		assert.Error(t, err)
		assert.ErrorIs(t, err, database.ErrLinkNotFound)
		assert.Nil(t, link)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("link expired", func(t *testing.T) {
		repo, mock := setupLinkRepository(t)

		expiresAt := time.Now().Add(-time.Hour)
		rows := sqlmock.NewRows(linkColumns).
			AddRow(1, "abc123", "https://example.com", models.AnonymousOwner, nil, expiresAt, 0, time.Time{}, time.Time{})

		mock.ExpectQuery(`SELECT \* FROM links`).
			WithArgs("abc123").
			WillReturnRows(rows)

		link, err := repo.GetByCode(context.TODO(), "abc123")

		assert.Error(t, err)
		assert.ErrorIs(t, err, database.ErrLinkExpired)
		assert.Nil(t, link)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success", func(t *testing.T) {
		repo, mock := setupLinkRepository(t)

		expiresAt := time.Now().Add(time.Hour).Truncate(time.Second)
		rows := sqlmock.NewRows(linkColumns).
			AddRow(1, "abc123", "https://example.com", models.AnonymousOwner, nil, expiresAt, 3, time.Time{}, time.Time{})

		mock.ExpectQuery(`SELECT \* FROM links`).
			WithArgs("abc123").
			WillReturnRows(rows)

		link, err := repo.GetByCode(context.TODO(), "abc123")

		assert.NoError(t, err)
		assert.NotNil(t, link)
		assert.Equal(t, "abc123", link.Code)
		assert.Equal(t, int64(3), link.ClickCount)
		assert.NotNil(t, link.ExpiresAt)
		assert.Equal(t, expiresAt, *link.ExpiresAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLinkRepository_GetStats(t *testing.T) {
	t.Run("link not found", func(t *testing.T) {
		repo, mock := setupLinkRepository(t)

		mock.ExpectQuery(`SELECT \* FROM links`).
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		link, err := repo.GetStats(context.TODO(), "missing")

		assert.Error(t, err)
		assert.ErrorIs(t, err, database.ErrLinkNotFound)
		assert.Nil(t, link)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("expired link is still returned", func(t *testing.T) {
		repo, mock := setupLinkRepository(t)

		expiresAt := time.Now().Add(-time.Hour)
		rows := sqlmock.NewRows(linkColumns).
			AddRow(1, "abc123", "https://example.com", models.AnonymousOwner, nil, expiresAt, 7, time.Time{}, time.Time{})

		mock.ExpectQuery(`SELECT \* FROM links`).
			WithArgs("abc123").
			WillReturnRows(rows)

		link, err := repo.GetStats(context.TODO(), "abc123")

		assert.NoError(t, err)
		assert.NotNil(t, link)
		assert.Equal(t, int64(7), link.ClickCount)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLinkRepository_GetByOwner(t *testing.T) {
	t.Run("unknown error", func(t *testing.T) {
		repo, mock := setupLinkRepository(t)

		mock.ExpectQuery(`SELECT \* FROM links`).
			WithArgs("user1").
			WillReturnError(errUnknown)

		links, err := repo.GetByOwner(context.TODO(), "user1")

		assert.Error(t, err)
		assert.ErrorIs(t, err, errUnknown)
		assert.Nil(t, links)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no links", func(t *testing.T) {
		repo, mock := setupLinkRepository(t)

		mock.ExpectQuery(`SELECT \* FROM links`).
			WithArgs("user1").
			WillReturnRows(sqlmock.NewRows(linkColumns))

		links, err := repo.GetByOwner(context.TODO(), "user1")

		assert.NoError(t, err)
		assert.Empty(t, links)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success", func(t *testing.T) {
		repo, mock := setupLinkRepository(t)

		rows := sqlmock.NewRows(linkColumns).
			AddRow(2, "newer", "https://example.com/2", "user1", nil, nil, 0, time.Time{}, time.Time{}).
			AddRow(1, "older", "https://example.com/1", "user1", nil, nil, 0, time.Time{}, time.Time{})

		mock.ExpectQuery(`SELECT \* FROM links`).
			WithArgs("user1").
			WillReturnRows(rows)

		links, err := repo.GetByOwner(context.TODO(), "user1")

		assert.NoError(t, err)
		assert.Len(t, links, 2)
		assert.Equal(t, "newer", links[0].Code)
		assert.Equal(t, "older", links[1].Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLinkRepository_CodeExists(t *testing.T) {
	t.Run("unknown error", func(t *testing.T) {
		repo, mock := setupLinkRepository(t)

		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs("abc123").
			WillReturnError(errUnknown)

		exists, err := repo.CodeExists(context.TODO(), "abc123")

		assert.Error(t, err)
		assert.ErrorIs(t, err, errUnknown)
		assert.False(t, exists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("exists", func(t *testing.T) {
		repo, mock := setupLinkRepository(t)

		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs("abc123").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		exists, err := repo.CodeExists(context.TODO(), "abc123")

		assert.NoError(t, err)
		assert.True(t, exists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLinkRepository_AppendVisit(t *testing.T) {
	ev := models.VisitEvent{
		Timestamp:       time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		SourceIP:        "203.0.113.7",
		Country:         "US",
		City:            "New York",
		OperatingSystem: "Windows",
		DeviceClass:     models.DeviceDesktop,
		Browser:         "Chrome",
	}

	t.Run("link not found", func(t *testing.T) {
		repo, mock := setupLinkRepository(t)

		mock.ExpectExec(`INSERT INTO link_visits`).
			WithArgs("missing", ev.Timestamp, ev.SourceIP, ev.Country, ev.City, ev.OperatingSystem, ev.DeviceClass, ev.Browser).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.AppendVisit(context.TODO(), "missing", ev)

		assert.Error(t, err)
		assert.ErrorIs(t, err, database.ErrLinkNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("affected rows error", func(t *testing.T) {
		repo, mock := setupLinkRepository(t)

		mock.ExpectExec(`INSERT INTO link_visits`).
			WithArgs("abc123", ev.Timestamp, ev.SourceIP, ev.Country, ev.City, ev.OperatingSystem, ev.DeviceClass, ev.Browser).
			WillReturnResult(sqlmock.NewErrorResult(errAffectedRows))

		err := repo.AppendVisit(context.TODO(), "abc123", ev)

		assert.Error(t, err)
		assert.ErrorIs(t, err, errAffectedRows)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success", func(t *testing.T) {
		repo, mock := setupLinkRepository(t)

		mock.ExpectExec(`INSERT INTO link_visits`).
			WithArgs("abc123", ev.Timestamp, ev.SourceIP, ev.Country, ev.City, ev.OperatingSystem, ev.DeviceClass, ev.Browser).
			WillReturnResult(sqlmock.NewResult(1, 1))

		err := repo.AppendVisit(context.TODO(), "abc123", ev)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLinkRepository_IncrementClicks(t *testing.T) {
	t.Run("link not found", func(t *testing.T) {
		repo, mock := setupLinkRepository(t)

		mock.ExpectExec(`UPDATE links`).
			WithArgs("missing").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.IncrementClicks(context.TODO(), "missing")

		assert.Error(t, err)
		assert.ErrorIs(t, err, database.ErrLinkNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success", func(t *testing.T) {
		repo, mock := setupLinkRepository(t)

		mock.ExpectExec(`UPDATE links`).
			WithArgs("abc123").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.IncrementClicks(context.TODO(), "abc123")

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLinkRepository_GetVisits(t *testing.T) {
	t.Run("unknown error", func(t *testing.T) {
		repo, mock := setupLinkRepository(t)

		mock.ExpectQuery(`SELECT (.+) FROM link_visits`).
			WithArgs("abc123").
			WillReturnError(errUnknown)

		events, err := repo.GetVisits(context.TODO(), "abc123")

		assert.Error(t, err)
		assert.ErrorIs(t, err, errUnknown)
		assert.Nil(t, events)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty history", func(t *testing.T) {
		repo, mock := setupLinkRepository(t)

		mock.ExpectQuery(`SELECT (.+) FROM link_visits`).
			WithArgs("abc123").
			WillReturnRows(sqlmock.NewRows(visitColumns))

		events, err := repo.GetVisits(context.TODO(), "abc123")

		assert.NoError(t, err)
		assert.Empty(t, events)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success", func(t *testing.T) {
		repo, mock := setupLinkRepository(t)

		ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
		rows := sqlmock.NewRows(visitColumns).
			AddRow(ts, "203.0.113.7", "US", "New York", "Windows", models.DeviceDesktop, "Chrome").
			AddRow(ts.Add(time.Minute), "198.51.100.3", "FR", "Paris", "iOS", models.DeviceMobile, "Safari")

		mock.ExpectQuery(`SELECT (.+) FROM link_visits`).
			WithArgs("abc123").
			WillReturnRows(rows)

		events, err := repo.GetVisits(context.TODO(), "abc123")

		assert.NoError(t, err)
		assert.Len(t, events, 2)
		assert.Equal(t, "US", events[0].Country)
		assert.Equal(t, models.DeviceMobile, events[1].DeviceClass)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

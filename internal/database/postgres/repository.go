package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pulselabs/linkpulse/internal/database"
	"github.com/pulselabs/linkpulse/internal/models"
)

type linkRecord struct {
	ID           int64          `db:"id"`
	Code         string         `db:"code"`
	Destination  string         `db:"destination"`
	Owner        string         `db:"owner"`
	PasswordHash sql.NullString `db:"password_hash"`
	ExpiresAt    sql.NullTime   `db:"expires_at"`
	ClickCount   int64          `db:"click_count"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (r *linkRecord) ToLink() *models.Link {
	link := &models.Link{
		ID:           r.ID,
		Code:         r.Code,
		Destination:  r.Destination,
		Owner:        r.Owner,
		PasswordHash: r.PasswordHash.String,
		ClickCount:   r.ClickCount,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}

	if r.ExpiresAt.Valid {
		expiresAt := r.ExpiresAt.Time
		link.ExpiresAt = &expiresAt
	}

	return link
}

type visitRecord struct {
	VisitedAt       time.Time `db:"visited_at"`
	SourceIP        string    `db:"source_ip"`
	Country         string    `db:"country"`
	City            string    `db:"city"`
	OperatingSystem string    `db:"operating_system"`
	DeviceClass     string    `db:"device_class"`
	Browser         string    `db:"browser"`
}

func (r *visitRecord) ToVisitEvent() models.VisitEvent {
	return models.VisitEvent{
		Timestamp:       r.VisitedAt,
		SourceIP:        r.SourceIP,
		Country:         r.Country,
		City:            r.City,
		OperatingSystem: r.OperatingSystem,
		DeviceClass:     r.DeviceClass,
		Browser:         r.Browser,
	}
}

type LinkRepository struct {
	db *sqlx.DB
}

func NewLinkRepository(db *sqlx.DB) *LinkRepository {
	return &LinkRepository{
		db: db,
	}
}

func (r *LinkRepository) Create(ctx context.Context, link *models.Link) (*models.Link, error) {
	const op = "database.postgres.LinkRepository.Create"

	rec := new(linkRecord)
	query := `INSERT INTO links(code, destination, owner, password_hash, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *`

	passwordHash := sql.NullString{String: link.PasswordHash, Valid: link.PasswordHash != ""}

	var expiresAt sql.NullTime
	if link.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *link.ExpiresAt, Valid: true}
	}

	err := r.db.GetContext(ctx, rec, query, link.Code, link.Destination, link.Owner, passwordHash, expiresAt)
	if err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrCodeExists)
		}

		return nil, fmt.Errorf("%s: failed to create link record: %w", op, err)
	}

	return rec.ToLink(), nil
}

// GetByCode retrieves a link for resolution. It never returns an expired
// link: once the expiry has passed the caller gets ErrLinkExpired.
func (r *LinkRepository) GetByCode(ctx context.Context, code string) (*models.Link, error) {
	const op = "database.postgres.LinkRepository.GetByCode"

	rec := new(linkRecord)
	query := `SELECT * FROM links WHERE code = $1`

	err := r.db.GetContext(ctx, rec, query, code)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, database.ErrLinkNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get link record: %w", op, err)
	}

	link := rec.ToLink()
	if link.Expired(time.Now()) {
		return nil, fmt.Errorf("%s: %w", op, database.ErrLinkExpired)
	}

	return link, nil
}

// GetStats retrieves a link regardless of its expiry. Analytics stay
// readable after a link has gone inert.
func (r *LinkRepository) GetStats(ctx context.Context, code string) (*models.Link, error) {
	const op = "database.postgres.LinkRepository.GetStats"

	rec := new(linkRecord)
	query := `SELECT * FROM links WHERE code = $1`

	err := r.db.GetContext(ctx, rec, query, code)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, database.ErrLinkNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get link record: %w", op, err)
	}

	return rec.ToLink(), nil
}

func (r *LinkRepository) GetByOwner(ctx context.Context, owner string) ([]*models.Link, error) {
	const op = "database.postgres.LinkRepository.GetByOwner"

	var recs []linkRecord
	query := `SELECT * FROM links WHERE owner = $1 ORDER BY created_at DESC, id DESC`

	err := r.db.SelectContext(ctx, &recs, query, owner)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get link records: %w", op, err)
	}

	links := make([]*models.Link, 0, len(recs))
	for i := range recs {
		links = append(links, recs[i].ToLink())
	}

	return links, nil
}

func (r *LinkRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	const op = "database.postgres.LinkRepository.CodeExists"

	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM links WHERE code = $1)`

	err := r.db.GetContext(ctx, &exists, query, code)
	if err != nil {
		return false, fmt.Errorf("%s: failed to check code existence: %w", op, err)
	}

	return exists, nil
}

// AppendVisit inserts one visit row. Rows are append-only: a concurrent
// append for the same code never overwrites a sibling event.
func (r *LinkRepository) AppendVisit(ctx context.Context, code string, ev models.VisitEvent) error {
	const op = "database.postgres.LinkRepository.AppendVisit"

	query := `INSERT INTO link_visits(link_id, visited_at, source_ip, country, city, operating_system, device_class, browser)
		SELECT id, $2, $3, $4, $5, $6, $7, $8 FROM links WHERE code = $1`

	res, err := r.db.ExecContext(ctx, query, code,
		ev.Timestamp, ev.SourceIP, ev.Country, ev.City, ev.OperatingSystem, ev.DeviceClass, ev.Browser)
	if err != nil {
		return fmt.Errorf("%s: failed to append visit record: %w", op, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: failed to get affected rows: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, database.ErrLinkNotFound)
	}

	return nil
}

// IncrementClicks bumps the click counter atomically in the database, so
// concurrent resolutions of the same code are never lost to a write race.
func (r *LinkRepository) IncrementClicks(ctx context.Context, code string) error {
	const op = "database.postgres.LinkRepository.IncrementClicks"

	query := `UPDATE links
		SET click_count = click_count + 1, updated_at = now()
		WHERE code = $1`

	res, err := r.db.ExecContext(ctx, query, code)
	if err != nil {
		return fmt.Errorf("%s: failed to increment click count: %w", op, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: failed to get affected rows: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, database.ErrLinkNotFound)
	}

	return nil
}

// GetVisits returns the link's visit history in insertion order.
func (r *LinkRepository) GetVisits(ctx context.Context, code string) ([]models.VisitEvent, error) {
	const op = "database.postgres.LinkRepository.GetVisits"

	var recs []visitRecord
	query := `SELECT v.visited_at, v.source_ip, v.country, v.city, v.operating_system, v.device_class, v.browser
		FROM link_visits v
		JOIN links l ON l.id = v.link_id
		WHERE l.code = $1
		ORDER BY v.id`

	err := r.db.SelectContext(ctx, &recs, query, code)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get visit records: %w", op, err)
	}

	events := make([]models.VisitEvent, 0, len(recs))
	for i := range recs {
		events = append(events, recs[i].ToVisitEvent())
	}

	return events, nil
}

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"safemap/apperrors"
	"safemap/models"

	"github.com/apex/log"
	"github.com/google/uuid"
)

const reportColumns = `seq, id, type, description, latitude, longitude,
	author_id, author_display_name, image_url, created_at, updated_at`

// ReportStore owns the canonical copy of all report entities. Timestamps
// are assigned by the database clock, never by the client.
type ReportStore struct {
	db *sql.DB
}

// NewReportStore creates a report store on top of an open connection.
func NewReportStore(db *sql.DB) *ReportStore {
	return &ReportStore{db: db}
}

// Connect opens the MySQL connection pool used by the service.
func Connect(user, password, host, port, name string) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&multiStatements=true",
		user, password, host, port, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("%w: pinging database: %v", apperrors.ErrServiceUnavailable, err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	log.Infof("Database connected to %s:%s/%s", host, port, name)
	return db, nil
}

// CreateReport persists a new report for the given author and returns it
// with the store-assigned id, sequence and timestamps. The author display
// name is denormalized here on purpose: it is a snapshot at write time.
func (s *ReportStore) CreateReport(ctx context.Context, authorID, authorDisplayName string, in models.ReportInput) (models.Report, error) {
	if strings.TrimSpace(in.Description) == "" {
		return models.Report{}, apperrors.NewValidation("description", "must not be empty")
	}
	if !in.Type.Valid() {
		return models.Report{}, apperrors.NewValidation("type", "must be 'safe' or 'unsafe'")
	}
	if in.Latitude < -90 || in.Latitude > 90 || in.Longitude < -180 || in.Longitude > 180 {
		return models.Report{}, apperrors.NewValidation("location", "coordinates out of range")
	}

	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (id, type, description, latitude, longitude, author_id, author_display_name)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, string(in.Type), in.Description, in.Latitude, in.Longitude, authorID, authorDisplayName)
	if err != nil {
		return models.Report{}, fmt.Errorf("%w: inserting report: %v", apperrors.ErrServiceUnavailable, err)
	}

	// Read the row back so the caller sees the server-assigned timestamps.
	report, err := s.GetReport(ctx, id)
	if err != nil {
		return models.Report{}, fmt.Errorf("reading back created report: %w", err)
	}
	return report, nil
}

// GetReport returns a single report by its opaque id.
func (s *ReportStore) GetReport(ctx context.Context, id string) (models.Report, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE id = ?`, id)
	report, err := scanReport(row)
	if err == sql.ErrNoRows {
		return models.Report{}, fmt.Errorf("report %s: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return models.Report{}, fmt.Errorf("querying report: %w", err)
	}
	return report, nil
}

// ListAllReports returns every report ordered by creation time descending.
// The ordering is a hard contract: the live feed and the marker projection
// both rely on it.
func (s *ReportStore) ListAllReports(ctx context.Context) ([]models.Report, error) {
	return s.listReports(ctx,
		`SELECT `+reportColumns+` FROM reports ORDER BY created_at DESC, seq DESC`)
}

// ListReportsByAuthor returns the author's reports, newest first.
func (s *ReportStore) ListReportsByAuthor(ctx context.Context, authorID string) ([]models.Report, error) {
	return s.listReports(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE author_id = ? ORDER BY created_at DESC, seq DESC`,
		authorID)
}

func (s *ReportStore) listReports(ctx context.Context, query string, args ...interface{}) ([]models.Report, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: querying reports: %v", apperrors.ErrServiceUnavailable, err)
	}
	defer rows.Close()

	var reports []models.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning report: %w", err)
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reports: %w", err)
	}
	return reports, nil
}

// DeleteReport removes a report owned by the caller. Deleting a report
// that no longer exists is benign; deleting someone else's report is an
// authorization error with no effect.
func (s *ReportStore) DeleteReport(ctx context.Context, id, callerID string) error {
	var authorID string
	err := s.db.QueryRowContext(ctx,
		`SELECT author_id FROM reports WHERE id = ?`, id).Scan(&authorID)
	if err == sql.ErrNoRows {
		// Already gone; treat as success at the application layer.
		return nil
	}
	if err != nil {
		return fmt.Errorf("querying report author: %w", err)
	}
	if authorID != callerID {
		return fmt.Errorf("report %s is not owned by caller: %w", id, apperrors.ErrUnauthorized)
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting report: %w", err)
	}
	return nil
}

// SetReportImage records the uploaded image URL on a report. Only the
// author may attach an image.
func (s *ReportStore) SetReportImage(ctx context.Context, id, callerID, url string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reports SET image_url = ? WHERE id = ? AND author_id = ?`, url, id, callerID)
	if err != nil {
		return fmt.Errorf("updating report image: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("report %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

// ChangeToken returns a cheap (count, max seq) pair that changes whenever
// a report is inserted or deleted. The live feed polls this instead of
// re-reading the whole table every tick.
func (s *ReportStore) ChangeToken(ctx context.Context) (int, int64, error) {
	var count int
	var maxSeq int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(MAX(seq), 0) FROM reports`).Scan(&count, &maxSeq)
	if err != nil {
		return 0, 0, fmt.Errorf("querying change token: %w", err)
	}
	return count, maxSeq, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReport(row rowScanner) (models.Report, error) {
	var r models.Report
	var typ string
	err := row.Scan(&r.Seq, &r.ID, &typ, &r.Description, &r.Latitude, &r.Longitude,
		&r.AuthorID, &r.AuthorDisplayName, &r.ImageURL, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return models.Report{}, err
	}
	r.Type = models.ReportType(typ)
	return r, nil
}

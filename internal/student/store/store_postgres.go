package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"rollcall/internal/student/models"
	"rollcall/internal/student/store/migrations"
	"rollcall/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

const profileColumns = `uid, name, email, department, year, roll_number, is_resident, block,
	room_number, gender, last_login_time, created_at, last_updated`

// columnFor maps mutable profile fields to their column names.
var columnFor = map[string]string{
	models.FieldRollNumber: "roll_number",
	models.FieldIsResident: "is_resident",
	models.FieldBlock:      "block",
	models.FieldRoomNumber: "room_number",
	models.FieldGender:     "gender",
}

// mutableOrder fixes the SET clause order so generated SQL is stable.
var mutableOrder = []string{
	models.FieldRollNumber,
	models.FieldIsResident,
	models.FieldBlock,
	models.FieldRoomNumber,
	models.FieldGender,
}

// PostgresStore persists profiles in the students table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres wraps an open database handle.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres opens a pgx-backed database/sql handle and verifies it.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate applies the embedded goose migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*models.Profile, error) {
	var (
		p                                   models.Profile
		roll, resident, block, room, gender sql.NullString
		createdAt, lastUpdated              sql.NullTime
	)
	err := row.Scan(&p.UID, &p.Name, &p.Email, &p.Department, &p.Year,
		&roll, &resident, &block, &room, &gender,
		&p.LastLoginTime, &createdAt, &lastUpdated)
	if err != nil {
		return nil, err
	}
	p.RollNumber = nullableString(roll)
	p.IsResident = nullableString(resident)
	p.Block = nullableString(block)
	p.RoomNumber = nullableString(room)
	p.Gender = nullableString(gender)
	p.LastLoginTime = p.LastLoginTime.UTC()
	p.CreatedAt = nullableTime(createdAt)
	p.LastUpdated = nullableTime(lastUpdated)
	return &p, nil
}

func nullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullableTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}

func (s *PostgresStore) FindByUID(ctx context.Context, uid string) (*models.Profile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM students WHERE uid = $1`, uid)
	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find profile by uid: %w", err)
	}
	return p, nil
}

// CreateIfAbsent inserts p. The primary key makes this atomic: a second
// insert for the same uid fails with a unique violation, reported as
// sentinel.ErrConflict.
func (s *PostgresStore) CreateIfAbsent(ctx context.Context, p *models.Profile) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO students (`+profileColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		p.UID, p.Name, p.Email, p.Department, p.Year,
		p.RollNumber, p.IsResident, p.Block, p.RoomNumber, p.Gender,
		p.LastLoginTime, p.CreatedAt, p.LastUpdated,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) TouchLastLogin(ctx context.Context, uid string, at time.Time) (*models.Profile, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE students SET last_login_time = $2 WHERE uid = $1 RETURNING `+profileColumns, uid, at)
	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("touch last login: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ApplyUpdate(ctx context.Context, uid string, update models.ProfileUpdate, at time.Time) (*models.Profile, error) {
	query, args := buildUpdate(uid, update, at)
	p, err := scanProfile(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("apply profile update: %w", err)
	}
	return p, nil
}

// buildUpdate renders a partial UPDATE touching only the supplied fields
// plus last_updated.
func buildUpdate(uid string, update models.ProfileUpdate, at time.Time) (string, []any) {
	fields := update.Fields()
	sets := make([]string, 0, len(fields)+1)
	args := make([]any, 0, len(fields)+2)
	args = append(args, uid)
	for _, name := range mutableOrder {
		v, ok := fields[name]
		if !ok {
			continue
		}
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", columnFor[name], len(args)))
	}
	args = append(args, at)
	sets = append(sets, fmt.Sprintf("last_updated = $%d", len(args)))

	return `UPDATE students SET ` + strings.Join(sets, ", ") +
		` WHERE uid = $1 RETURNING ` + profileColumns, args
}

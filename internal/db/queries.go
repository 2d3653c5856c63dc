package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/codr1/themekit/internal/models"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db      DBTX
	dialect Dialect
	now     func() time.Time
}

func NewQueries(db DBTX, dialect Dialect) *Queries {
	return &Queries{
		db:      db,
		dialect: dialect,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Queries are written with `?` placeholders and rebound for postgres.
const selectThemeColumns = `
SELECT id, scope_key, name, colors, CAST(radius AS DOUBLE PRECISION) AS radius,
       shadows, fonts, logo, created_at, updated_at
FROM themes`

const getThemeByKey = selectThemeColumns + `
WHERE scope_key = ?`

const insertTheme = `
INSERT INTO themes (scope_key, name, colors, radius, shadows, fonts, logo, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id`

const updateTheme = `
UPDATE themes
SET name = ?, colors = ?, radius = ?, shadows = ?, fonts = ?, logo = ?, updated_at = ?
WHERE scope_key = ?`

const listThemeKeys = `
SELECT scope_key FROM themes ORDER BY scope_key`

func (q *Queries) rebind(query string) string {
	if q.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// FindTheme returns the theme stored under key, or nil when there is none.
func (q *Queries) FindTheme(ctx context.Context, key string) (*models.Theme, error) {
	row := q.db.QueryRowContext(ctx, q.rebind(getThemeByKey), key)
	theme, err := scanTheme(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return theme, nil
}

// InsertTheme stores a new theme under theme.Key and stamps both timestamps.
func (q *Queries) InsertTheme(ctx context.Context, theme models.Theme) (*models.Theme, error) {
	params, err := encodeTheme(theme)
	if err != nil {
		return nil, err
	}
	now := q.now()

	var id int64
	err = q.db.QueryRowContext(ctx, q.rebind(insertTheme),
		theme.Key,
		theme.Name,
		params.colors,
		theme.Radius,
		params.shadows,
		params.fonts,
		params.logo,
		now,
		now,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert theme %q: %w", theme.Key, err)
	}

	out := theme.Clone()
	out.ID = id
	out.CreatedAt = now
	out.UpdatedAt = now
	return &out, nil
}

// UpdateTheme overwrites every mutable column of the row for theme.Key.
// It returns sql.ErrNoRows when no such row exists.
func (q *Queries) UpdateTheme(ctx context.Context, theme models.Theme) error {
	params, err := encodeTheme(theme)
	if err != nil {
		return err
	}

	result, err := q.db.ExecContext(ctx, q.rebind(updateTheme),
		theme.Name,
		params.colors,
		theme.Radius,
		params.shadows,
		params.fonts,
		params.logo,
		q.now(),
		theme.Key,
	)
	if err != nil {
		return fmt.Errorf("update theme %q: %w", theme.Key, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update theme %q: %w", theme.Key, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListThemeKeys returns every stored identity key in ascending order.
func (q *Queries) ListThemeKeys(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listThemeKeys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

type encodedTheme struct {
	colors  string
	shadows string
	fonts   string
	logo    sql.NullString
}

func encodeTheme(theme models.Theme) (encodedTheme, error) {
	colors, err := json.Marshal(theme.Colors)
	if err != nil {
		return encodedTheme{}, fmt.Errorf("encode colors: %w", err)
	}
	shadows, err := json.Marshal(theme.Shadows)
	if err != nil {
		return encodedTheme{}, fmt.Errorf("encode shadows: %w", err)
	}
	fonts, err := json.Marshal(theme.Fonts)
	if err != nil {
		return encodedTheme{}, fmt.Errorf("encode fonts: %w", err)
	}
	out := encodedTheme{
		colors:  string(colors),
		shadows: string(shadows),
		fonts:   string(fonts),
	}
	if theme.Logo != nil {
		out.logo = sql.NullString{String: *theme.Logo, Valid: true}
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTheme(row rowScanner) (*models.Theme, error) {
	var (
		theme   models.Theme
		colors  []byte
		shadows []byte
		fonts   []byte
		logo    sql.NullString
	)
	if err := row.Scan(
		&theme.ID,
		&theme.Key,
		&theme.Name,
		&colors,
		&theme.Radius,
		&shadows,
		&fonts,
		&logo,
		&theme.CreatedAt,
		&theme.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(colors, &theme.Colors); err != nil {
		return nil, fmt.Errorf("decode colors for %q: %w", theme.Key, err)
	}
	if err := json.Unmarshal(shadows, &theme.Shadows); err != nil {
		return nil, fmt.Errorf("decode shadows for %q: %w", theme.Key, err)
	}
	if err := json.Unmarshal(fonts, &theme.Fonts); err != nil {
		return nil, fmt.Errorf("decode fonts for %q: %w", theme.Key, err)
	}
	if logo.Valid {
		theme.Logo = &logo.String
	}
	return &theme, nil
}

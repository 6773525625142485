package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS resumes (
	id UUID PRIMARY KEY,
	source TEXT NOT NULL,
	source_id TEXT NOT NULL,
	fio TEXT NOT NULL DEFAULT '',
	city TEXT NOT NULL DEFAULT '',
	experience_years DOUBLE PRECISION NOT NULL DEFAULT 0,
	position TEXT NOT NULL DEFAULT '',
	skills TEXT[] NOT NULL DEFAULT '{}',
	salary_expect BIGINT,
	published_at TIMESTAMPTZ,
	json_raw JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (source, source_id)
);

CREATE TABLE IF NOT EXISTS duplicates (
	id UUID PRIMARY KEY,
	orig UUID NOT NULL REFERENCES resumes(id) ON DELETE CASCADE,
	dup UUID NOT NULL REFERENCES resumes(id) ON DELETE CASCADE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (orig, dup)
);
`

const resumeColumns = `id, source, source_id, fio, city, experience_years, position,
	skills, salary_expect, published_at, json_raw, created_at, updated_at`

// Postgres is the production Store implementation over a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

// ConnectPostgres establishes a connection pool, verifies it and ensures the
// schema exists.
func ConnectPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (p *Postgres) Create(ctx context.Context, data ResumeCreate) (*Resume, error) {
	row := p.pool.QueryRow(ctx,
		`INSERT INTO resumes (id, source, source_id, fio, city, experience_years, position,
			skills, salary_expect, published_at, json_raw)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING `+resumeColumns,
		uuid.New(), data.Source, data.SourceID, data.FIO, data.City, data.ExperienceYears,
		data.Position, data.Skills, data.SalaryExpect, data.PublishedAt, data.JSONRaw,
	)

	resume, err := scanResume(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("create resume: %w", err)
	}

	return resume, nil
}

func (p *Postgres) Get(ctx context.Context, id uuid.UUID) (*Resume, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+resumeColumns+` FROM resumes WHERE id = $1`, id)

	resume, err := scanResume(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get resume: %w", err)
	}

	return resume, nil
}

func (p *Postgres) GetBySource(ctx context.Context, source, sourceID string) (*Resume, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+resumeColumns+` FROM resumes WHERE source = $1 AND source_id = $2`,
		source, sourceID)

	resume, err := scanResume(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get resume by source: %w", err)
	}

	return resume, nil
}

func (p *Postgres) List(ctx context.Context, filter ListFilter) ([]*Resume, error) {
	query := `SELECT ` + resumeColumns + ` FROM resumes`

	var where []string
	var args []any
	arg := 1

	if q := strings.TrimSpace(filter.Query); q != "" {
		where = append(where, fmt.Sprintf(
			`(position ILIKE $%d OR fio ILIKE $%d
				OR EXISTS (SELECT 1 FROM unnest(skills) AS s WHERE lower(s) = lower($%d)))`,
			arg, arg, arg+1))
		args = append(args, "%"+q+"%", q)
		arg += 2
	}
	if city := strings.TrimSpace(filter.City); city != "" {
		where = append(where, fmt.Sprintf("city ILIKE $%d", arg))
		args = append(args, "%"+city+"%")
		arg++
	}
	if filter.ExpMin != nil {
		where = append(where, fmt.Sprintf("experience_years >= $%d", arg))
		args = append(args, *filter.ExpMin)
		arg++
	}
	if filter.ExpMax != nil {
		where = append(where, fmt.Sprintf("experience_years <= $%d", arg))
		args = append(args, *filter.ExpMax)
		arg++
	}

	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	query += " ORDER BY created_at, id"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", arg)
		args = append(args, filter.Limit)
		arg++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", arg)
		args = append(args, filter.Offset)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list resumes: %w", err)
	}
	defer rows.Close()

	return collectResumes(rows)
}

func (p *Postgres) Update(ctx context.Context, id uuid.UUID, data ResumeUpdate) (*Resume, error) {
	set := []string{"updated_at = now()"}
	var args []any
	arg := 1

	add := func(column string, value any) {
		set = append(set, fmt.Sprintf("%s = $%d", column, arg))
		args = append(args, value)
		arg++
	}

	if data.FIO != nil {
		add("fio", *data.FIO)
	}
	if data.City != nil {
		add("city", *data.City)
	}
	if data.ExperienceYears != nil {
		add("experience_years", *data.ExperienceYears)
	}
	if data.Position != nil {
		add("position", *data.Position)
	}
	if data.Skills != nil {
		add("skills", *data.Skills)
	}
	if data.SalaryExpect != nil {
		add("salary_expect", *data.SalaryExpect)
	}

	args = append(args, id)
	row := p.pool.QueryRow(ctx,
		fmt.Sprintf(`UPDATE resumes SET %s WHERE id = $%d RETURNING %s`,
			strings.Join(set, ", "), arg, resumeColumns),
		args...)

	resume, err := scanResume(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update resume: %w", err)
	}

	return resume, nil
}

func (p *Postgres) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM resumes WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete resume: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (p *Postgres) Count(ctx context.Context) (int, error) {
	var count int
	if err := p.pool.QueryRow(ctx, `SELECT count(*) FROM resumes`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count resumes: %w", err)
	}

	return count, nil
}

func (p *Postgres) FindDuplicateCandidates(ctx context.Context, id uuid.UUID) ([]*Resume, error) {
	current, err := p.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := p.pool.Query(ctx,
		`SELECT `+resumeColumns+` FROM resumes
		 WHERE fio = $1 AND position = $2 AND id <> $3
		 ORDER BY created_at, id`,
		current.FIO, current.Position, current.ID)
	if err != nil {
		return nil, fmt.Errorf("find duplicate candidates: %w", err)
	}
	defer rows.Close()

	return collectResumes(rows)
}

func (p *Postgres) MarkDuplicate(ctx context.Context, origID, dupID uuid.UUID) (*Duplicate, error) {
	if origID == dupID {
		return nil, ErrSelfDuplicate
	}

	orig, dup := canonicalPair(origID, dupID)

	link := &Duplicate{}
	err := p.pool.QueryRow(ctx,
		`INSERT INTO duplicates (id, orig, dup)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (orig, dup) DO UPDATE SET orig = EXCLUDED.orig
		 RETURNING id, orig, dup, created_at`,
		uuid.New(), orig, dup,
	).Scan(&link.ID, &link.Orig, &link.Dup, &link.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("mark duplicate: %w", err)
	}

	return link, nil
}

func (p *Postgres) DuplicatesFor(ctx context.Context, id uuid.UUID) ([]*Duplicate, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, orig, dup, created_at FROM duplicates
		 WHERE orig = $1 OR dup = $1
		 ORDER BY created_at, id`, id)
	if err != nil {
		return nil, fmt.Errorf("get duplicates: %w", err)
	}
	defer rows.Close()

	var links []*Duplicate
	for rows.Next() {
		link := &Duplicate{}
		if err := rows.Scan(&link.ID, &link.Orig, &link.Dup, &link.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan duplicate: %w", err)
		}
		links = append(links, link)
	}

	return links, rows.Err()
}

func scanResume(row pgx.Row) (*Resume, error) {
	resume := &Resume{}
	err := row.Scan(
		&resume.ID, &resume.Source, &resume.SourceID, &resume.FIO, &resume.City,
		&resume.ExperienceYears, &resume.Position, &resume.Skills, &resume.SalaryExpect,
		&resume.PublishedAt, &resume.JSONRaw, &resume.CreatedAt, &resume.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return resume, nil
}

func collectResumes(rows pgx.Rows) ([]*Resume, error) {
	var resumes []*Resume
	for rows.Next() {
		resume, err := scanResume(rows)
		if err != nil {
			return nil, fmt.Errorf("scan resume: %w", err)
		}
		resumes = append(resumes, resume)
	}

	return resumes, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/syllabus/core/degree"
)

type degreeRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Slug      string    `db:"slug"`
	CreatedAt time.Time `db:"created_at"`
}

func (r degreeRow) toDegree() degree.Degree {
	return degree.Degree{ID: r.ID, Name: r.Name, Slug: r.Slug, CreatedAt: r.CreatedAt.UTC()}
}

type degreeRepository struct {
	db *sqlx.DB
}

var _ degree.Repository = (*degreeRepository)(nil) // interface compliance check

func NewDegreeRepository(db *sqlx.DB) degree.Repository {
	return &degreeRepository{db: db}
}

func (repo *degreeRepository) CreateDegree(ctx context.Context, d degree.Degree) (degree.Degree, error) {
	d.ID = uuid.New().String()
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO degree (id, name, slug, created_at) VALUES (:id, :name, :slug, :created_at)`,
		degreeRow{ID: d.ID, Name: d.Name, Slug: d.Slug, CreatedAt: d.CreatedAt.UTC()},
	)
	if isUniqueViolation(err) {
		return degree.Degree{}, degree.ErrSlugExists
	}
	if err != nil {
		return degree.Degree{}, trapErr(err, degree.ErrNotFound, "inserting degree")
	}
	return d, nil
}

func (repo *degreeRepository) GetDegreeByID(ctx context.Context, id string) (degree.Degree, error) {
	if _, err := uuid.Parse(id); err != nil {
		return degree.Degree{}, degree.ErrNotFound
	}
	var row degreeRow
	if err := repo.db.GetContext(ctx, &row, `SELECT id, name, slug, created_at FROM degree WHERE id = $1`, id); err != nil {
		return degree.Degree{}, trapErr(err, degree.ErrNotFound, "selecting degree")
	}
	return row.toDegree(), nil
}

func (repo *degreeRepository) GetDegreeBySlug(ctx context.Context, slug string) (degree.Degree, error) {
	var row degreeRow
	if err := repo.db.GetContext(ctx, &row, `SELECT id, name, slug, created_at FROM degree WHERE slug = $1`, slug); err != nil {
		return degree.Degree{}, trapErr(err, degree.ErrNotFound, "selecting degree")
	}
	return row.toDegree(), nil
}

func (repo *degreeRepository) QueryDegrees(ctx context.Context) ([]degree.Degree, error) {
	var rows []degreeRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT id, name, slug, created_at FROM degree ORDER BY name`); err != nil {
		return nil, trapErr(err, degree.ErrNotFound, "selecting degrees")
	}
	degrees := make([]degree.Degree, 0, len(rows))
	for _, r := range rows {
		degrees = append(degrees, r.toDegree())
	}
	return degrees, nil
}

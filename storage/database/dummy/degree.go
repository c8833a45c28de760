package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/syllabus/core"
	"github.com/trezcool/syllabus/core/degree"
)

type degreeRepository struct {
	db *degreeTable
}

var _ degree.Repository = (*degreeRepository)(nil) // interface compliance check

func NewDegreeRepository(db *DB) degree.Repository {
	return &degreeRepository{db: db.degree}
}

func (repo *degreeRepository) CreateDegree(ctx context.Context, d degree.Degree) (degree.Degree, error) {
	if err := checkCtx(ctx, core.ErrRepositoryUnavailable); err != nil {
		return degree.Degree{}, err
	}
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, other := range repo.db.table {
		if other.Slug == d.Slug {
			return degree.Degree{}, degree.ErrSlugExists
		}
	}
	d.ID = uuid.New().String()
	repo.db.table[d.ID] = &d
	return d, nil
}

func (repo *degreeRepository) GetDegreeByID(ctx context.Context, id string) (degree.Degree, error) {
	if err := checkCtx(ctx, core.ErrRepositoryUnavailable); err != nil {
		return degree.Degree{}, err
	}
	repo.db.RLock()
	defer repo.db.RUnlock()

	if d, ok := repo.db.table[id]; ok {
		return *d, nil
	}
	return degree.Degree{}, degree.ErrNotFound
}

func (repo *degreeRepository) GetDegreeBySlug(ctx context.Context, slug string) (degree.Degree, error) {
	if err := checkCtx(ctx, core.ErrRepositoryUnavailable); err != nil {
		return degree.Degree{}, err
	}
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, d := range repo.db.table {
		if d.Slug == slug {
			return *d, nil
		}
	}
	return degree.Degree{}, degree.ErrNotFound
}

func (repo *degreeRepository) QueryDegrees(ctx context.Context) ([]degree.Degree, error) {
	if err := checkCtx(ctx, core.ErrRepositoryUnavailable); err != nil {
		return nil, err
	}
	repo.db.RLock()
	defer repo.db.RUnlock()

	degrees := make([]degree.Degree, 0, len(repo.db.table))
	for _, d := range repo.db.table {
		degrees = append(degrees, *d)
	}
	sort.Slice(degrees, func(i, j int) bool { return degrees[i].Name < degrees[j].Name })
	return degrees, nil
}

package degree

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/syllabus/core"
)

var (
	ErrNotFound   = errors.New("degree not found")
	ErrSlugExists = errors.New("a degree with this name already exists")
)

type (
	Repository interface {
		// CreateDegree assigns the id of `d`. It fails with ErrSlugExists when the slug is taken.
		CreateDegree(ctx context.Context, d Degree) (Degree, error)
		GetDegreeByID(ctx context.Context, id string) (Degree, error)
		GetDegreeBySlug(ctx context.Context, slug string) (Degree, error)
		QueryDegrees(ctx context.Context) ([]Degree, error)
	}

	Service struct {
		repo     Repository
		validate *validator.Validate
	}
)

func NewService(repo Repository, validate *validator.Validate) *Service {
	return &Service{repo: repo, validate: validate}
}

func (svc *Service) Create(ctx context.Context, nd NewDegree) (Degree, error) {
	if err := nd.Validate(svc.validate); err != nil {
		return Degree{}, err
	}
	d := Degree{
		Name:      nd.Name,
		Slug:      core.Slugify(nd.Name),
		CreatedAt: time.Now().UTC(),
	}
	d, err := svc.repo.CreateDegree(ctx, d)
	if errors.Cause(err) == ErrSlugExists {
		return Degree{}, core.NewValidationError(ErrSlugExists, core.FieldError{Field: "name", Error: ErrSlugExists.Error()})
	}
	return d, errors.Wrap(err, "creating degree")
}

func (svc *Service) Query(ctx context.Context) ([]Degree, error) {
	return svc.repo.QueryDegrees(ctx)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Degree, error) {
	return svc.repo.GetDegreeByID(ctx, core.CleanString(id))
}

// GetBySlug resolves a degree from its slug, or from any name slugifying to it.
func (svc *Service) GetBySlug(ctx context.Context, slug string) (Degree, error) {
	return svc.repo.GetDegreeBySlug(ctx, core.Slugify(slug))
}

// GroupExists reports whether `id` is the id of a degree. It makes Service a task.GroupResolver.
func (svc *Service) GroupExists(ctx context.Context, id string) (bool, error) {
	_, err := svc.repo.GetDegreeByID(ctx, id)
	switch errors.Cause(err) {
	case nil:
		return true, nil
	case ErrNotFound:
		return false, nil
	default:
		return false, err
	}
}

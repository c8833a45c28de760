package degree

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/syllabus/core"
)

// Degree is the group that scopes a set of tasks.
type Degree struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// NewDegree contains information needed to create a new Degree.
type NewDegree struct {
	Name string `json:"name" validate:"required,max=100"`
}

func (nd *NewDegree) Validate(validate *validator.Validate) error {
	nd.Name = core.CleanString(nd.Name)
	if err := validate.Struct(nd); err != nil {
		return err
	}
	if core.Slugify(nd.Name) == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "name", Error: "name must contain a letter or a digit"})
	}
	return nil
}

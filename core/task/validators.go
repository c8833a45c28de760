package task

import (
	"fmt"
	"math"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/syllabus/core"
)

var (
	startTimeTag  = "starttime"
	startTimeText = "invalid start time, expected RFC3339 or YYYY-MM-DDTHH:MM[:SS]"

	durationHoursTag  = "durationhours"
	durationHoursText = fmt.Sprintf("duration must be greater than 0 and at most %d hours", MaxDurationHours)
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(startTimeTag, startTimeValidation)
	core.RegisterMessage(validate, translator, startTimeTag, startTimeText)
	_ = validate.RegisterValidation(durationHoursTag, durationHoursValidation)
	core.RegisterMessage(validate, translator, durationHoursTag, durationHoursText)
}

// startTimeValidation accepts the empty string, which clears the start time of an updated task.
func startTimeValidation(fl validator.FieldLevel) bool {
	s := strings.TrimSpace(fl.Field().String())
	if s == "" {
		return true
	}
	_, err := ParseStartTime(s)
	return err == nil
}

// durationHoursValidation rejects NaN and infinities along with out of range values.
func durationHoursValidation(fl validator.FieldLevel) bool {
	h := fl.Field().Float()
	return !math.IsNaN(h) && h > 0 && h <= MaxDurationHours
}

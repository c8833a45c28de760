package core

import (
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

const requiredText = "this field is required"

// NewTranslator returns the english ut.Translator used for validation messages.
func NewTranslator() ut.Translator {
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	return translator
}

// InitValidators sets up `validate` for the API payloads and the YAML import files:
// errors name fields by their JSON key, or their YAML key when there is none.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)
	validate.RegisterTagNameFunc(fieldName)
	RegisterMessage(validate, translator, "required", requiredText)
}

func fieldName(fld reflect.StructField) string {
	for _, key := range []string{"json", "yaml"} {
		name := strings.SplitN(fld.Tag.Get(key), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return ""
}

// RegisterMessage sets the message reported for `tag`, replacing the default one if any.
func RegisterMessage(validate *validator.Validate, translator ut.Translator, tag, text string) {
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

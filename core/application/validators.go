package application

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/arkofgod/ark/core"
	"github.com/arkofgod/ark/core/user"
)

var (
	trackTag  = "track"
	trackText = "invalid track"

	statusTag  = "appstatus"
	statusText = "invalid status"
)

// InitValidators registers the application validators. user.InitValidators must be called too.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(trackTag, func(fl validator.FieldLevel) bool {
		return Track(fl.Field().String()).IsValid()
	})
	core.RegisterCustomTranslation(validate, translator, trackTag, trackText)

	_ = validate.RegisterValidation(statusTag, func(fl validator.FieldLevel) bool {
		return Status(fl.Field().String()).IsValid()
	})
	core.RegisterCustomTranslation(validate, translator, statusTag, statusText)

	validate.RegisterStructValidation(func(sl validator.StructLevel) {
		na := sl.Current().Interface().(NewApplication)
		user.ValidatePassword(sl, na.Password, na.Name, na.Username, na.Email)
	}, NewApplication{})
}

// Validate cleans & validates na.
func (na *NewApplication) Validate(validate *validator.Validate) error {
	na.Clean()
	return validate.Struct(na)
}

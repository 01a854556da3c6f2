package core

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	// custom validation tags & texts
	alphaNumUnderTag   = "alphanum_"
	alphaNumUnderText  = "only alphanumeric characters and underscores are allowed"
	alphaNumUnderRegex = regexp.MustCompile(`^[\w\s]+$`)

	courseTag    = "course"
	courseText   = "unknown course; expected one of: " + strings.Join(Courses, ", ")
	branchTag    = "branch"
	branchText   = "unknown branch; expected one of: " + strings.Join(Branches, ", ")
	semesterTag  = "semester"
	semesterText = "unknown semester; expected one of: " + strings.Join(Semesters, ", ")

	otpTypeTag  = "otptype"
	otpTypeText = "type must be either signup or reset"
	OTPTypes    = []string{"signup", "reset", "password-reset", "password_reset"}

	requiredTag     = "required"
	requiredWithTag = "required_with"
	requiredText    = "{0} is required"
)

// NewTranslator returns the english validation messages translator.
func NewTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// InitValidators instantiates the validator for use.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// register custom validators
	_ = validate.RegisterValidation(alphaNumUnderTag, alphaNumUnderValidation)
	RegisterCustomTranslation(validate, translator, alphaNumUnderTag, alphaNumUnderText)

	_ = validate.RegisterValidation(courseTag, oneOfValidation(Courses))
	RegisterCustomTranslation(validate, translator, courseTag, courseText)
	_ = validate.RegisterValidation(branchTag, oneOfValidation(Branches))
	RegisterCustomTranslation(validate, translator, branchTag, branchText)
	_ = validate.RegisterValidation(semesterTag, oneOfValidation(Semesters))
	RegisterCustomTranslation(validate, translator, semesterTag, semesterText)
	_ = validate.RegisterValidation(otpTypeTag, oneOfValidation(OTPTypes))
	RegisterCustomTranslation(validate, translator, otpTypeTag, otpTypeText)

	RegisterCustomTranslation(validate, translator, requiredTag, requiredText, true)
	RegisterCustomTranslation(validate, translator, requiredWithTag, requiredText, true)
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// Custom Global Validators

// alphaNumUnderValidation only allows alphanumeric characters and underscores.
func alphaNumUnderValidation(fl validator.FieldLevel) bool {
	return alphaNumUnderRegex.MatchString(fl.Field().String())
}

// oneOfValidation only allows values of the given closed set.
func oneOfValidation(set []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return contains(set, fl.Field().String())
	}
}

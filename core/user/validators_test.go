package user

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/learnsmart/core"
)

func TestValidatePassword(t *testing.T) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	LoadCommonPasswords(nil)

	tests := []struct {
		name    string
		pwd     string
		wantTag string
	}{
		{"too short", "Ab1!", pwdMinLenTag},
		{"whitespace", "Abcd 123!", pwdNoSpaceTag},
		{"numeric", "1234567890", pwdNotAllNumTag},
		{"no special", "Abcdefg123", pwdComplexityTag},
		{"no upper", "abcdefg123!", pwdComplexityTag},
		{"like email", "Johnsmith1!", pwdAttrSimTag},
		{"valid", "Str0ng-Pass!", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			nu := NewUser{Email: "johnsmith@example.com", Password: tc.pwd, PasswordConfirm: tc.pwd}
			err := nu.Validate(validate)
			if tc.wantTag == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, []string{"password:" + tc.wantTag}, failedTags(err))
		})
	}
}

func TestNewUser_Validate(t *testing.T) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)

	nu := NewUser{Email: "  JDoe@Example.COM ", Password: "Str0ng-Pass!", PasswordConfirm: "other"}
	err := nu.Validate(validate)
	assert.Equal(t, "jdoe@example.com", nu.Email)
	assert.Equal(t, []string{"password_confirm:eqfield"}, failedTags(err))
}

func failedTags(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	tags := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		tags = append(tags, fe.Field()+":"+fe.Tag())
	}
	return tags
}

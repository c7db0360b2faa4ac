package user

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/darasa/core"
)

var (
	allRolesTag  = "allroles"
	allRolesText = "invalid roles"

	// password policy
	pwdMinLen     = 8
	pwdMinLenTag  = "pwdminlen"
	pwdMinLenText = fmt.Sprintf("password must contain at least %d characters", pwdMinLen)

	pwdNotAllNumTag  = "pwdnotallnum"
	pwdNotAllNumText = "password cannot be entirely numeric"

	pwdMaxSim      = .7
	pwdAttrSimTag  = "pwdtoosim"
	pwdAttrSimText = "password cannot be similar to user attributes"
)

// InitValidators registers this package's custom validations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(allRolesTag, allRolesValidation)
	core.RegisterCustomTranslation(validate, translator, allRolesTag, allRolesText)

	validate.RegisterStructValidation(newUserStructValidation, NewUser{})
	core.RegisterCustomTranslation(validate, translator, pwdMinLenTag, pwdMinLenText)
	core.RegisterCustomTranslation(validate, translator, pwdNotAllNumTag, pwdNotAllNumText)
	core.RegisterCustomTranslation(validate, translator, pwdAttrSimTag, pwdAttrSimText)
}

// allRolesValidation checks that provided user roles are all in AllRoles.
func allRolesValidation(fl validator.FieldLevel) bool {
	roles, ok := fl.Field().Interface().([]string)
	if !ok {
		return false
	}
	sorted := append([]string(nil), AllRoles...)
	sort.Strings(sorted)
	for _, role := range roles {
		idx := sort.SearchStrings(sorted, role)
		if idx >= len(sorted) || sorted[idx] != role {
			return false
		}
	}
	return true
}

func newUserStructValidation(sl validator.StructLevel) {
	if nu, ok := sl.Current().Interface().(NewUser); ok {
		validatePassword(nu.Password, sl, nu.Name, nu.Username, nu.Email)
	}
}

func validatePassword(pwd string, sl validator.StructLevel, usrAttrs ...string) {
	if len(pwd) < pwdMinLen {
		sl.ReportError(pwd, "password", "Password", pwdMinLenTag, "")
	}
	if isAllNumeric(pwd) {
		sl.ReportError(pwd, "password", "Password", pwdNotAllNumTag, "")
	}
	if isTooSimilar(pwd, usrAttrs) {
		sl.ReportError(pwd, "password", "Password", pwdAttrSimTag, "")
	}
}

func isAllNumeric(pwd string) bool {
	for _, r := range pwd {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(pwd) > 0
}

// isTooSimilar checks the password against each user attribute; a quick
// similarity ratio above pwdMaxSim rejects it.
func isTooSimilar(pwd string, usrAttrs []string) bool {
	pass := strings.ToLower(pwd)
	for _, attr := range usrAttrs {
		attr = strings.ToLower(strings.TrimSpace(attr))
		if attr == "" {
			continue
		}
		ratio := difflib.NewMatcher(strings.Split(pass, ""), strings.Split(attr, "")).QuickRatio()
		if ratio >= pwdMaxSim {
			return true
		}
	}
	return false
}

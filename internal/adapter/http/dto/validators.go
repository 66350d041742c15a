package dto

import (
	"html"
	"reflect"
	"regexp"
	"strings"

	"purposepay/internal/core/domain"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	voucherCodeRe  = regexp.MustCompile(`^` + regexp.QuoteMeta(domain.VoucherCodePrefix) + `[A-Z0-9]{11}$`)
	codeFragmentRe = regexp.MustCompile(`^[A-Z0-9-]{1,14}$`)
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("category", validateCategory)
		_ = v.RegisterValidation("voucher_code", validateVoucherCode)
		_ = v.RegisterValidation("code_fragment", validateCodeFragment)
	}
}

// validateCategory accepts any casing of a known category.
func validateCategory(fl validator.FieldLevel) bool {
	_, ok := domain.ParseCategory(fl.Field().String())
	return ok
}

// validateVoucherCode accepts PP- followed by 11 upper-case alphanumerics.
// Surrounding whitespace and lower case are tolerated; NormalizeCode fixes both.
func validateVoucherCode(fl validator.FieldLevel) bool {
	return voucherCodeRe.MatchString(NormalizeCode(fl.Field().String()))
}

// validateCodeFragment accepts up to 14 characters of a voucher code, for
// searches. Any casing is tolerated.
func validateCodeFragment(fl validator.FieldLevel) bool {
	return codeFragmentRe.MatchString(NormalizeCode(fl.Field().String()))
}

// NormalizeCode trims and upper-cases a voucher code as typed by a vendor.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// SanitizeStruct trims whitespace and HTML-escapes every exported string
// field (including *string) of a struct pointer.
func SanitizeStruct(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	sanitizeFields(rv.Elem())
}

func sanitizeFields(rv reflect.Value) {
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanSet() {
			continue
		}
		switch f.Kind() {
		case reflect.String:
			f.SetString(sanitize(f.String()))
		case reflect.Ptr:
			if f.IsNil() {
				continue
			}
			if elem := f.Elem(); elem.Kind() == reflect.String {
				elem.SetString(sanitize(elem.String()))
			}
		}
	}
}

func sanitize(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}

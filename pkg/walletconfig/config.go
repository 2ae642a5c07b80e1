// Package walletconfig implements the holder core's small validated
// configuration surface and the shared struct validator used across
// packages that need to check request/response shapes.
package walletconfig

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Config is the caller-supplied configuration the holder core needs: its
// own client identity and the default locale for display filtering.
type Config struct {
	ClientID          string `json:"client_id" validate:"required"`
	RedirectURI       string `json:"redirect_uri" validate:"required,url"`
	DefaultLocale     string `json:"default_locale" validate:"omitempty"`
	SessionTTLSeconds int    `json:"session_ttl_seconds" validate:"omitempty,min=1"`
}

// NewValidator builds a struct validator that reports JSON field names in
// its errors rather than Go field names.
func NewValidator() (*validator.Validate, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return validate, nil
}

// CheckSimple validates s against its validate struct tags.
func CheckSimple(s any) error {
	validate, err := NewValidator()
	if err != nil {
		return err
	}
	return validate.Struct(s)
}

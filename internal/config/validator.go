// internal/config/validator.go
//
// Thin wrapper around go-playground/validator.
//
// Context
// -------
// `internal/config/loader.go` calls `validateStruct` immediately after it
// unmarshals the merged Koanf tree into a `Config` instance.  Any tag
// mismatch or validation error aborts startup, ensuring the binary never
// runs with partial, malformed, or missing configuration.
//
// Field rules live in struct tags.  Rules that span sections are
// registered here as struct-level validations:
//
//   • registry.mode "table" requires database.dsn.
//   • state.store "table" requires database.dsn.
//   • database.dsn with a %s verb requires database.password.
//
// Notes
// -----
//   • Oxford commas, two spaces after periods.

package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

//
// validator instance (package-level singleton)
//

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	val.RegisterStructValidation(crossSection, Config{})
	return val
}

func crossSection(sl validator.StructLevel) {
	c := sl.Current().Interface().(Config)
	if c.Registry.Mode == RegistryTable && c.Database.DSN == "" {
		sl.ReportError(c.Database.DSN, "Database.DSN", "DSN", "required_for_table", "")
	}
	if c.State.Store == StateTable && c.Database.DSN == "" {
		sl.ReportError(c.Database.DSN, "Database.DSN", "DSN", "required_for_state_table", "")
	}
	if strings.Contains(c.Database.DSN, "%s") && c.Database.Password == "" {
		sl.ReportError(c.Database.Password, "Database.Password", "Password", "required_with_dsn_verb", "")
	}
}

//
// public API
//

// validateStruct returns the validation errors, or nil on success.
func validateStruct(c *Config) error {
	return v.Struct(c)
}

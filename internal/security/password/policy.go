package password

import (
	"fmt"
	"strings"
	"unicode"
)

// Policy define los requisitos mínimos de un password nuevo. Se aplica al
// crear cuentas; la verificación de login no la consulta.
type Policy struct {
	MinLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireDigit  bool
	RequireSymbol bool
}

// PolicyError lista las reglas que no se cumplieron.
type PolicyError struct{ Reasons []string }

func (e *PolicyError) Error() string {
	return fmt.Sprintf("password policy: %s", strings.Join(e.Reasons, ","))
}

// Validate devuelve ok=false y las razones (too_short, missing_upper, ...).
func (p Policy) Validate(s string) (ok bool, reasons []string) {
	if len([]rune(s)) < p.MinLength {
		reasons = append(reasons, "too_short")
	}
	var hasU, hasL, hasD, hasS bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			hasU = true
		case unicode.IsLower(r):
			hasL = true
		case unicode.IsDigit(r):
			hasD = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasS = true
		}
	}
	if p.RequireUpper && !hasU {
		reasons = append(reasons, "missing_upper")
	}
	if p.RequireLower && !hasL {
		reasons = append(reasons, "missing_lower")
	}
	if p.RequireDigit && !hasD {
		reasons = append(reasons, "missing_digit")
	}
	if p.RequireSymbol && !hasS {
		reasons = append(reasons, "missing_symbol")
	}
	return len(reasons) == 0, reasons
}

// Check es Validate en forma de error.
func (p Policy) Check(s string) error {
	if ok, reasons := p.Validate(s); !ok {
		return &PolicyError{Reasons: reasons}
	}
	return nil
}

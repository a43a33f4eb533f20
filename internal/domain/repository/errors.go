package repository

import "errors"

// Errores de la account store. Los drivers (memoria, Postgres) los envuelven
// con %w; el controller de cuentas los traduce a 404/409/400.
var (
	ErrNotFound     = errors.New("account not found")
	ErrConflict     = errors.New("account already exists")
	ErrInvalidInput = errors.New("invalid account input")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }

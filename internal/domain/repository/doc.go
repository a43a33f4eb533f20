// Package repository define el modelo de cuentas y sus contratos de
// almacenamiento, independientes del backend (PostgreSQL o memoria).
//
// Las implementaciones concretas viven en internal/accounts.
//
// Convenciones:
//   - Context siempre es el primer parámetro
//   - Errores de dominio están en errors.go
package repository

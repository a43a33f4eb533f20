package logger

import (
	"go.uber.org/zap"
)

// =================================================================================
// CAMPOS ESTÁNDAR - HTTP
// =================================================================================

func RequestID(v string) zap.Field { return zap.String("request_id", v) }
func Method(v string) zap.Field    { return zap.String("method", v) }
func Path(v string) zap.Field      { return zap.String("path", v) }
func Status(v int) zap.Field       { return zap.Int("status", v) }
func DurationMs(v int64) zap.Field { return zap.Int64("duration_ms", v) }
func Bytes(v int) zap.Field        { return zap.Int("bytes", v) }
func ClientIP(v string) zap.Field  { return zap.String("client_ip", v) }

// =================================================================================
// CAMPOS ESTÁNDAR - AUTH
// =================================================================================

// TenantClass crea un campo para la clase de tenant (ADMIN, USER).
func TenantClass(v string) zap.Field { return zap.String("tenant_class", v) }

// Username crea un campo para el username crudo (sin namespace).
func Username(v string) zap.Field { return zap.String("username", v) }

// TokenID crea un campo para el jti. Nunca loguear el token completo.
func TokenID(v string) zap.Field { return zap.String("jti", v) }

// Upstream crea un campo para el servicio remoto involucrado.
func Upstream(v string) zap.Field { return zap.String("upstream", v) }

// Decision crea un campo para el resultado del filtro de borde.
func Decision(v string) zap.Field { return zap.String("decision", v) }

// =================================================================================
// CAMPOS ESTÁNDAR - SISTEMA
// =================================================================================

func Component(v string) zap.Field { return zap.String("component", v) }
func Op(v string) zap.Field        { return zap.String("op", v) }
func Layer(v string) zap.Field     { return zap.String("layer", v) }
func Err(err error) zap.Field      { return zap.Error(err) }

func String(key, v string) zap.Field    { return zap.String(key, v) }
func Bool(key string, v bool) zap.Field { return zap.Bool(key, v) }
func Any(key string, v any) zap.Field   { return zap.Any(key, v) }

// Package health contiene el service para health checks.
package health

import (
	"context"
	"time"

	dto "github.com/dropDatabas3/bizgate/internal/http/dto/health"
	"github.com/dropDatabas3/bizgate/internal/observability/logger"
)

const checkTimeout = 2 * time.Second

// HealthService define las operaciones de health check.
type HealthService interface {
	Check(ctx context.Context) dto.HealthResponse
}

// Check es un chequeo de un componente. Si un Critical falla el servicio
// queda "unavailable"; si falla uno no crítico, "degraded".
type Check struct {
	Name     string
	Critical bool
	Fn       func(ctx context.Context) error
}

// Deps contiene las dependencias inyectables para el health service.
type Deps struct {
	Service string
	Version string
	Checks  []Check
	Now     func() time.Time
}

type healthService struct {
	deps Deps
}

// NewHealthService crea un nuevo service de health check.
func NewHealthService(deps Deps) HealthService {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &healthService{deps: deps}
}

func (s *healthService) Check(ctx context.Context) dto.HealthResponse {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("health"),
		logger.Op("Check"),
	)

	resp := dto.HealthResponse{
		Status:     "ready",
		Service:    s.deps.Service,
		Version:    s.deps.Version,
		Components: make(map[string]dto.HealthStatus, len(s.deps.Checks)),
		Timestamp:  s.deps.Now().UTC(),
	}

	degraded, unavailable := false, false
	for _, c := range s.deps.Checks {
		cctx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := c.Fn(cctx)
		cancel()
		if err == nil {
			resp.Components[c.Name] = dto.HealthStatus{Status: "ok"}
			continue
		}
		resp.Components[c.Name] = dto.HealthStatus{Status: "error", Message: err.Error()}
		log.Warn("health check failed", logger.String("check", c.Name), logger.Err(err))
		if c.Critical {
			unavailable = true
		} else {
			degraded = true
		}
	}

	switch {
	case unavailable:
		resp.Status = "unavailable"
	case degraded:
		resp.Status = "degraded"
	}
	return resp
}

package app

import (
	"context"
	"fmt"
	"time"
)

type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components"`
}

type HealthService struct {
	app *App
}

func NewHealthService(app *App) *HealthService {
	return &HealthService{app: app}
}

func (s *HealthService) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:     "up",
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]string),
	}

	if s.app.Parser != nil {
		status.Components["parser"] = "ok"
	} else {
		status.Status = "degraded"
		status.Components["parser"] = "missing"
	}

	status.Components["cache"] = fmt.Sprintf("ok (%d documents)", s.app.cache.Len())

	if s.app.Store != nil {
		if _, err := s.app.Store.Runs(1); err != nil {
			status.Status = "degraded"
			status.Components["index"] = "error: " + err.Error()
		} else {
			status.Components["index"] = "ok"
		}
	} else if s.app.Config.DB.Enabled {
		status.Status = "degraded"
		status.Components["index"] = "missing but enabled in config"
	}

	if err := ctx.Err(); err != nil {
		status.Status = "degraded"
	}
	return status
}

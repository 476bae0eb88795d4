package health

import (
	"log/slog"
)

type RunTracker interface {
	Active() []string
	Draining() bool
}

type StoreProbe interface {
	Healthy() bool
}

type Checker struct {
	runs   RunTracker
	store  StoreProbe
	logger *slog.Logger
}

type Status struct {
	Healthy    bool   `json:"healthy"`
	Status     string `json:"status"`
	ActiveRuns int    `json:"active_runs"`
	IsDraining bool   `json:"is_draining"`
	StorageOK  bool   `json:"storage_ok"`
}

func NewHealthChecker(runs RunTracker, store StoreProbe, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}

	return &Checker{
		runs:   runs,
		store:  store,
		logger: logger.With("component", "health-checker"),
	}
}

func (hc *Checker) GetHealth() *Status {
	status := &Status{
		Healthy:   true,
		Status:    "ok",
		StorageOK: true,
	}

	if hc.store != nil && !hc.store.Healthy() {
		status.Healthy = false
		status.StorageOK = false
		status.Status = "storage_unavailable"
		hc.logger.Warn("storage reported unhealthy")
	}

	if hc.runs != nil {
		status.ActiveRuns = len(hc.runs.Active())
		if hc.runs.Draining() {
			status.IsDraining = true
			if status.Healthy {
				status.Status = "draining"
			}
		}
	}

	return status
}

func (hc *Checker) IsReady() bool {
	health := hc.GetHealth()
	return health.Healthy && !health.IsDraining
}

package handlers

import (
	"net/http"

	"github.com/mkrutov/logfetch/internal/database"
)

func HealthCheck(w http.ResponseWriter, r *http.Request) {
	dbStatus := "disconnected"
	if database.DB != nil {
		sqlDB, err := database.DB.DB()
		if err == nil {
			if err := sqlDB.Ping(); err == nil {
				dbStatus = "connected"
			}
		}
	}

	registryStatus := "not loaded"
	projects := 0
	if Reg != nil {
		registryStatus = "loaded"
		projects = len(Reg.Projects())
	}

	status := "healthy"
	if dbStatus != "connected" || Reg == nil {
		status = "unhealthy"
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   status,
		"database": dbStatus,
		"registry": registryStatus,
		"projects": projects,
	})
}

package handlers

import (
	"net/http"
	"strconv"

	"github.com/mkrutov/logfetch/internal/database"
)

func GetActivity(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}

	if Auditor == nil {
		writeError(w, http.StatusServiceUnavailable, "Activity log not initialized")
		return
	}

	records, err := Auditor.Recent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read activity log")
		return
	}
	if records == nil {
		records = []database.DownloadRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"activity": records})
}

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func ListProjects(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"projects": Reg.Projects()})
}

func ListModules(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	modules, err := Reg.Modules(project)
	if err != nil {
		writeError(w, http.StatusNotFound, "Project not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"modules": modules})
}

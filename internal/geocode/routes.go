package geocode

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func SetupRoutes() http.Handler {
	r := chi.NewRouter()

	r.Post("/jobs", StartJobHandler)
	r.Get("/jobs", ListJobsHandler)
	r.Get("/jobs/{id}", GetJobHandler)
	r.Delete("/jobs/{id}", CancelJobHandler)

	return r
}

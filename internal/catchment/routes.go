package catchment

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func SetupRoutes() http.Handler {
	r := chi.NewRouter()

	r.Post("/map-data", MapData)
	r.Post("/installations", CreateInstallation)
	r.Get("/installations", ListInstallations)
	r.Post("/installations/{id}/link", LinkConsumers)

	return r
}

package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/dbourene/consumerseek/internal/catchment"
	"github.com/dbourene/consumerseek/internal/db"
	"github.com/dbourene/consumerseek/internal/enedis"
	"github.com/dbourene/consumerseek/internal/geocode"
	"github.com/dbourene/consumerseek/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
)

func RootHandler(w http.ResponseWriter, r *http.Request) {
	response := "Server is up!"
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, response)
}

func main() {
	_ = godotenv.Load(".env.local")
	db.Connect()

	port := os.Getenv("PORT")
	if port == "" {
		port = "5050"
	}

	catchment.Init()
	geocode.Init(os.Getenv("GEOCODE_CONFIG"))

	r := chi.NewRouter()
	r.Use(middleware.CORSMiddleware)
	r.Get("/", RootHandler)

	r.Mount("/catchment", catchment.SetupRoutes())
	r.Mount("/geocode", geocode.SetupRoutes())

	consumers := chi.NewRouter()
	consumers.Post("/load", enedis.LoadConsumers)
	consumers.Put("/{id}/address", geocode.UpdateConsumerAddress)
	r.Mount("/consumers", consumers)

	fmt.Printf("Server listening on port :%s...\n", port)

	http.ListenAndServe("0.0.0.0:"+port, r)
}

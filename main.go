package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"grid-tools/internal/api"
	"grid-tools/internal/config"
	"grid-tools/internal/grid"
	"grid-tools/internal/schema"
	"grid-tools/internal/store"
)

func main() {
	// Configure logging format to include timestamps
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	// .env is optional; environment variables win either way.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Could not load .env file: %v", err)
	}

	cfg := config.LoadConfig()

	// 1. Load the per-collection field schemas. An invalid schema file is
	// a configuration error and aborts startup.
	schemas, err := schema.LoadFile(cfg.SchemaFile)
	if err != nil {
		log.Fatalf("Fatal error loading schema file: %v", err)
	}
	log.Printf("Loaded schemas for %d collections from %s", len(schemas), cfg.SchemaFile)

	// 2. Initialize the in-memory document store
	manager := store.NewManager(cfg.NumShards)

	// 3. Create an instance of the API handlers, injecting the store
	apiHandlers := api.NewHandlers(manager, schemas, grid.Options{
		DefaultSortField: cfg.DefaultSortField,
		UseTextIndex:     cfg.UseTextIndex,
		Debug:            cfg.Debug,
	})

	// 4. Create a new ServeMux for routing, allowing for middleware
	mux := http.NewServeMux()

	// 5. Register HTTP routes with a logging middleware. Mutating routes
	// additionally require the write token when one is configured.
	guard := func(h http.HandlerFunc) http.Handler {
		return api.LogRequest(api.RequireWriteToken(cfg.WriteTokenHash, h))
	}
	mux.Handle("/tables/", api.LogRequest(http.HandlerFunc(apiHandlers.TableHandler)))
	mux.Handle("/editor/", guard(apiHandlers.EditorHandler))
	mux.Handle("/collections", api.LogRequest(http.HandlerFunc(apiHandlers.ListCollectionsHandler)))
	mux.Handle("/collections/", guard(collectionsRouter(apiHandlers)))

	// 6. Configure the HTTP server with timeouts and the router
	server := &http.Server{
		Addr:         cfg.Port,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// 7. Start the HTTP server in a goroutine to not block main thread
	go func() {
		log.Printf("Server listening on http://localhost%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not start server: %v", err)
		}
	}()

	// 8. Block until a termination signal is received, then drain.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Termination signal received. Attempting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	} else {
		log.Println("HTTP server gracefully stopped.")
	}
}

// collectionsRouter dispatches /collections/{name}/{action} to the
// matching admin handler.
func collectionsRouter(h *api.Handlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/collections/")
		parts := strings.SplitN(rest, "/", 2)
		action := ""
		if len(parts) == 2 {
			action = parts[1]
		}
		switch action {
		case "documents":
			h.SeedDocumentsHandler(w, r)
		case "indexes":
			h.CreateIndexHandler(w, r)
		case "text-index":
			h.TextIndexHandler(w, r)
		default:
			api.SendJSONResponse(w, false, "Unknown collection action", nil, http.StatusNotFound)
		}
	}
}

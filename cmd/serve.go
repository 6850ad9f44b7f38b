package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pricing-cli/internal/model"
	"github.com/sells-group/pricing-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard API server",
	Long: `Serves the pricing API for dashboard use:

  GET  /health            liveness check
  POST /api/analyze       queue an analysis (runs asynchronously)
  GET  /api/runs          list runs, filterable by status and product
  GET  /api/runs/{id}     full run detail including the stored result`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		r := chi.NewRouter()
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/api/analyze", func(w http.ResponseWriter, req *http.Request) {
			var body model.AnalysisRequest
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
				return
			}
			if body.ProductRef == "" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "product_ref is required"})
				return
			}

			// Analysis runs in the background; results land in the run store.
			go func() {
				result, runErr := env.Pipeline.Run(ctx, body)
				if runErr != nil {
					zap.L().Error("api: analysis failed",
						zap.String("product_ref", body.ProductRef),
						zap.Error(runErr),
					)
					return
				}
				zap.L().Info("api: analysis complete",
					zap.String("product_ref", body.ProductRef),
					zap.String("run_id", result.RunID),
				)
			}()

			writeJSON(w, http.StatusAccepted, map[string]string{
				"status":      "accepted",
				"product_ref": body.ProductRef,
			})
		})

		r.Get("/api/runs", func(w http.ResponseWriter, req *http.Request) {
			q := req.URL.Query()
			filter := store.RunFilter{
				Status:     model.RunStatus(q.Get("status")),
				ProductRef: q.Get("product"),
			}
			if raw := q.Get("limit"); raw != "" {
				if n, convErr := strconv.Atoi(raw); convErr == nil {
					filter.Limit = n
				}
			}

			runs, listErr := env.Store.ListRuns(req.Context(), filter)
			if listErr != nil {
				zap.L().Error("api: list runs", zap.Error(listErr))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list runs failed"})
				return
			}
			writeJSON(w, http.StatusOK, runs)
		})

		r.Get("/api/runs/{id}", func(w http.ResponseWriter, req *http.Request) {
			run, getErr := env.Store.GetRun(req.Context(), chi.URLParam(req, "id"))
			if getErr != nil {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
				return
			}
			writeJSON(w, http.StatusOK, run)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

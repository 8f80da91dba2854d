package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/deal-intake/internal/model"
	"github.com/sells-group/deal-intake/internal/pipeline"
	"github.com/sells-group/deal-intake/internal/validate"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the intake HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env, cfg.Server.IntakeRPS),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

// intakeRequest is the POST /deals/{dealID}/intake body.
type intakeRequest struct {
	Documents []struct {
		ID   string `json:"id"`
		Text string `json:"text"`
		Type string `json:"type,omitempty"`
	} `json:"documents"`
	Force bool `json:"force,omitempty"`
}

// newRouter builds the intake API. rps limits intake submissions; read
// endpoints are not limited.
func newRouter(env *appEnv, rps float64) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/deals", func(w http.ResponseWriter, req *http.Request) {
		deals, err := env.Store.ListDeals(req.Context(), 100, 0)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, deals)
	})

	r.Get("/deals/{dealID}", func(w http.ResponseWriter, req *http.Request) {
		deal, err := env.Store.GetDeal(req.Context(), chi.URLParam(req, "dealID"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if deal == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "deal not found"})
			return
		}
		writeJSON(w, http.StatusOK, deal)
	})

	r.Get("/deals/{dealID}/records", func(w http.ResponseWriter, req *http.Request) {
		records, err := env.Store.ListProcessingRecords(req.Context(), chi.URLParam(req, "dealID"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, records)
	})

	limiter := rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
	r.With(rateLimit(limiter)).Post("/deals/{dealID}/intake", func(w http.ResponseWriter, req *http.Request) {
		dealID := chi.URLParam(req, "dealID")

		var body intakeRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if len(body.Documents) == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "documents are required"})
			return
		}

		docs := make([]model.Document, 0, len(body.Documents))
		for _, d := range body.Documents {
			if d.ID == "" || d.Text == "" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id and text are required"})
				return
			}
			doc := model.NewDocument(dealID, d.ID, d.Text)
			if d.Type != "" {
				dt, ok := model.ParseDocType(d.Type)
				if !ok {
					writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown document type: " + d.Type})
					return
				}
				doc.DeclaredType = dt
			}
			docs = append(docs, doc)
		}

		result, err := env.Pipeline.ProcessBatch(req.Context(), dealID, docs, pipeline.Options{Force: body.Force})
		if err != nil {
			var vErr *validate.Error
			if errors.As(err, &vErr) {
				writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
					"error":      "envelope rejected",
					"violations": vErr.Violations,
				})
				return
			}
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	})

	return r
}

// rateLimit applies a shared token-bucket limiter to a route.
func rateLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !limiter.Allow() {
				writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	zap.L().Error("request failed", zap.Error(err))
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

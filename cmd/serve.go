package main

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/sales-intel/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chat widget API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.RealIP)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Widget-Auth"},
			MaxAge:         300,
		}))

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Route("/api/v1", func(r chi.Router) {
			r.Use(widgetAuth(cfg.Server.WidgetToken))

			r.Post("/extract", handleExtract(env))
			r.Post("/qualify", handleQualify(env))
			r.Post("/analyze", handleAnalyze(env))
			r.Get("/leads/top", handleTopLeads(env))
			r.Get("/leads/{visitorID}", handleLatestLead(env))
			r.Post("/sessions/complete", handleCompleteSession(env))
			r.Post("/otp/send", handleOTPSend(env))
			r.Post("/otp/verify", handleOTPVerify(env))
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
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// widgetAuth requires the shared widget token on every request. An empty
// configured token leaves the API open (local development).
func widgetAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token != "" {
				got := r.Header.Get("X-Widget-Auth")
				if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
					writeError(w, http.StatusUnauthorized, "invalid widget token")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func handleExtract(env *engineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			VisitorID string `json:"visitor_id"`
			SessionID string `json:"session_id"`
			UserID    string `json:"user_id"`
			Message   string `json:"message"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.VisitorID == "" || req.SessionID == "" || req.Message == "" {
			writeError(w, http.StatusBadRequest, "visitor_id, session_id and message are required")
			return
		}

		result, err := env.Engine.ProcessMessage(r.Context(), req.VisitorID, req.SessionID, req.UserID, req.Message)
		if err != nil {
			zap.L().Error("extract failed", zap.String("visitor_id", req.VisitorID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "extraction failed")
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func handleQualify(env *engineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			VisitorID string `json:"visitor_id"`
			SessionID string `json:"session_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.VisitorID == "" || req.SessionID == "" {
			writeError(w, http.StatusBadRequest, "visitor_id and session_id are required")
			return
		}

		result, err := env.Engine.Qualify(r.Context(), req.VisitorID, req.SessionID)
		if err != nil {
			if errors.Is(err, store.ErrSessionNotFound) {
				writeError(w, http.StatusNotFound, "session not found")
				return
			}
			zap.L().Error("qualify failed", zap.String("visitor_id", req.VisitorID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "qualification failed")
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func handleAnalyze(env *engineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			VisitorID string `json:"visitor_id"`
			SessionID string `json:"session_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		analysis, score, err := env.Engine.Analyze(r.Context(), req.VisitorID, req.SessionID)
		if err != nil {
			if errors.Is(err, store.ErrSessionNotFound) {
				writeError(w, http.StatusNotFound, "session not found")
				return
			}
			zap.L().Error("analyze failed", zap.String("visitor_id", req.VisitorID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "analysis failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"analysis": analysis,
			"score":    score,
		})
	}
}

func handleTopLeads(env *engineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 10
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 || n > 100 {
				writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
				return
			}
			limit = n
		}

		leads, err := env.Store.TopLeads(r.Context(), limit)
		if err != nil {
			zap.L().Error("top leads query failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "lead query failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"leads": leads, "count": len(leads)})
	}
}

func handleLatestLead(env *engineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		visitorID := chi.URLParam(r, "visitorID")

		lead, err := env.Store.LatestLead(r.Context(), visitorID)
		if err != nil {
			zap.L().Error("lead lookup failed", zap.String("visitor_id", visitorID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "lead query failed")
			return
		}
		if lead == nil {
			writeError(w, http.StatusNotFound, "no lead for visitor")
			return
		}
		writeJSON(w, http.StatusOK, lead)
	}
}

func handleCompleteSession(env *engineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			VisitorID string `json:"visitor_id"`
			SessionID string `json:"session_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.VisitorID == "" || req.SessionID == "" {
			writeError(w, http.StatusBadRequest, "visitor_id and session_id are required")
			return
		}

		if err := env.Sessions.MarkCompleted(r.Context(), req.VisitorID, req.SessionID); err != nil {
			if errors.Is(err, store.ErrSessionNotFound) {
				writeError(w, http.StatusNotFound, "session not found")
				return
			}
			zap.L().Error("complete session failed", zap.String("visitor_id", req.VisitorID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "could not complete session")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
	}
}

func handleOTPSend(env *engineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			VisitorID string `json:"visitor_id"`
			Phone     string `json:"phone"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.VisitorID == "" || req.Phone == "" {
			writeError(w, http.StatusBadRequest, "visitor_id and phone are required")
			return
		}

		code, err := env.OTP.Issue(req.VisitorID, req.Phone)
		if err != nil {
			zap.L().Error("otp issue failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "could not issue code")
			return
		}

		// SMS delivery is the widget backend's job; the code is logged for
		// development setups without one.
		zap.L().Debug("otp issued",
			zap.String("visitor_id", req.VisitorID),
			zap.String("code", code),
		)
		writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
	}
}

func handleOTPVerify(env *engineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			VisitorID string `json:"visitor_id"`
			Phone     string `json:"phone"`
			Code      string `json:"code"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		writeJSON(w, http.StatusOK, map[string]bool{
			"verified": env.OTP.Verify(req.VisitorID, req.Phone, req.Code),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

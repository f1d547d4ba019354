/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. requestLog: Request-scoped slog logger carrying the request ID
  5. CORS:       Cross-origin requests for a frontend

ROUTE GROUPS:
  /api/employees/*        Employees, carryover history, payroll per employee
  /api/holidays           Statutory holidays
  /api/holiday-profiles/* Vacation and custom-day profiles
  /api/recurring-shifts/* Rules, preview, generation, cutover
  /api/shifts/*           Shifts, lifecycle, per-shift compliance
  /api/compliance/*       Compliance sweeps
  /api/payroll/*          Calculation and status workflow
  /api/policy             Active policy
  /api/scenarios/*        Demo scenarios

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/warp/shift-engine/logging"
)

// DefaultAllowedOrigins are used when no CORS origins are configured.
var DefaultAllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = DefaultAllowedOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(requestLog(h.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Employee routes
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.SaveEmployee)
			r.Get("/{id}", h.GetEmployee)
			r.Get("/{id}/carryover", h.GetCarryover)
			r.Get("/{id}/payroll", h.ListEmployeePayroll)
		})

		// Calendar routes
		r.Get("/holidays", h.ListHolidays)
		r.Route("/holiday-profiles", func(r chi.Router) {
			r.Get("/", h.ListProfiles)
			r.Post("/", h.SaveProfile)
			r.Get("/{id}", h.GetProfile)
		})

		// Recurring shift routes
		r.Route("/recurring-shifts", func(r chi.Router) {
			r.Get("/", h.ListRules)
			r.Post("/", h.CreateRule)
			r.Post("/preview", h.PreviewRule)
			r.Get("/{id}", h.GetRule)
			r.Post("/{id}/generate", h.GenerateRule)
			r.Post("/{id}/update-from", h.UpdateRuleFrom)
			r.Delete("/{id}", h.DeactivateRule)
		})

		// Shift routes
		r.Route("/shifts", func(r chi.Router) {
			r.Get("/", h.ListShifts)
			r.Post("/", h.SaveShift)
			r.Get("/{id}", h.GetShift)
			r.Post("/{id}/status", h.UpdateShiftStatus)
			r.Post("/{id}/compliance", h.EvaluateShift)
		})

		// Compliance routes
		r.Post("/compliance/sweep", h.SweepCompliance)

		// Payroll routes
		r.Route("/payroll", func(r chi.Router) {
			r.Post("/calculate", h.CalculatePayroll)
			r.Post("/calculate-all", h.CalculateAllPayroll)
			r.Get("/{id}", h.GetPayrollEntry)
			r.Post("/{id}/approve", h.ApprovePayroll)
			r.Post("/{id}/pay", h.PayPayroll)
			r.Post("/{id}/reset", h.ResetPayroll)
		})

		r.Get("/policy", h.GetPolicy)

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}

// requestLog attaches a logger annotated with the chi request ID to the
// request context, where the services pick it up.
func requestLog(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := base
			if logger == nil {
				logger = slog.Default()
			}
			logger = logger.With("request_id", middleware.GetReqID(r.Context()))
			next.ServeHTTP(w, r.WithContext(logging.ContextWithLogger(r.Context(), logger)))
		})
	}
}

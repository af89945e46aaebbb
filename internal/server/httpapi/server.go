// Package httpapi is the REST adapter. It turns requests into service calls
// and service errors into the JSON error envelope.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/taskcamp/internal/logging"
	"github.com/dmitrijs2005/taskcamp/internal/server/access"
	"github.com/dmitrijs2005/taskcamp/internal/server/auth"
	"github.com/dmitrijs2005/taskcamp/internal/server/metrics"
	"github.com/dmitrijs2005/taskcamp/internal/server/models"
	"github.com/dmitrijs2005/taskcamp/internal/server/repositories/memberships"
	"github.com/dmitrijs2005/taskcamp/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const shutdownTimeout = 5 * time.Second

// Deps are the collaborators the HTTP server needs.
type Deps struct {
	Users          *services.UserService
	Projects       *services.ProjectService
	Issuer         *auth.TokenIssuer
	Gate           *access.Gate
	Memberships    memberships.Repository
	Metrics        *metrics.Metrics
	Logger         logging.Logger
	Cookies        CookieConfig
	RequestTimeout time.Duration
}

type Server struct {
	address     string
	users       *services.UserService
	projects    *services.ProjectService
	issuer      *auth.TokenIssuer
	gate        *access.Gate
	memberships memberships.Repository
	metrics     *metrics.Metrics
	logger      logging.Logger
	cookies     CookieConfig
	timeout     time.Duration
}

func NewServer(address string, d Deps) *Server {
	return &Server{
		address:     address,
		users:       d.Users,
		projects:    d.Projects,
		issuer:      d.Issuer,
		gate:        d.Gate,
		memberships: d.Memberships,
		metrics:     d.Metrics,
		logger:      d.Logger.With("module", "http_server"),
		cookies:     d.Cookies,
		timeout:     d.RequestTimeout,
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	if s.timeout > 0 {
		r.Use(middleware.Timeout(s.timeout))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeOK(w, http.StatusOK, map[string]string{"status": "ok"}, "healthy")
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	read := []models.Role{models.RoleAdmin, models.RoleProjectAdmin, models.RoleMember}
	admin := []models.Role{models.RoleAdmin}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.Post("/register", s.register)
			r.Post("/login", s.login)
			r.Get("/verify-email/{token}", s.verifyEmail)
			r.Post("/refresh-token", s.refreshToken)
			r.Post("/forgot-password", s.forgotPassword)
			r.Post("/reset-password/{token}", s.resetPassword)

			r.Group(func(r chi.Router) {
				r.Use(s.Authenticate)
				r.Post("/logout", s.logout)
				r.Get("/current-user", s.currentUser)
				r.Post("/resend-email-verification", s.resendEmailVerification)
				r.Post("/change-password", s.changePassword)
			})
		})

		r.Route("/projects", func(r chi.Router) {
			r.Use(s.Authenticate)
			r.Get("/", s.listProjects)
			r.Post("/", s.createProject)

			r.Route("/{projectID}", func(r chi.Router) {
				r.With(s.Authorize(read...)).Get("/", s.getProject)
				r.With(s.Authorize(admin...)).Put("/", s.updateProject)
				r.With(s.Authorize(admin...)).Delete("/", s.deleteProject)

				r.With(s.Authorize(read...)).Get("/members", s.listMembers)
				r.With(s.Authorize(admin...)).Post("/members", s.addMember)
				r.With(s.Authorize(admin...)).Put("/members/{userID}", s.updateMemberRole)
				r.With(s.Authorize(admin...)).Delete("/members/{userID}", s.removeMember)
			})
		})
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

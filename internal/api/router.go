package api

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/example/coursepay/internal/api/middleware"
	"github.com/example/coursepay/internal/auth"
)

// RouterConfig wires the handler groups and the JWT service into one mux.
type RouterConfig struct {
	Handlers     *Handlers
	AuthHandlers *AuthHandlers
	JWTService   *auth.JWTService
	Log          *logrus.Entry
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	requireAuth := middleware.RequireAuth(cfg.JWTService)

	// Auth
	mux.HandleFunc("/api/auth/register", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			cfg.AuthHandlers.Register(w, r)
		default:
			respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})

	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			cfg.AuthHandlers.Login(w, r)
		default:
			respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})

	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			cfg.AuthHandlers.Refresh(w, r)
		default:
			respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})

	// Catalog
	mux.HandleFunc("/api/courses", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			cfg.Handlers.ListCourses(w, r)
		default:
			respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})

	mux.HandleFunc("/api/courses/", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			cfg.Handlers.GetCourse(w, r)
		default:
			respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})

	// Payments
	mux.Handle("/api/payments/orders", requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			cfg.Handlers.CreateOrder(w, r)
		default:
			respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})))

	mux.Handle("/api/payments/orders/", requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			cfg.Handlers.GetOrder(w, r)
		default:
			respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})))

	mux.Handle("/api/payments/razorpay/verify", requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			cfg.Handlers.VerifyPayment(w, r)
		default:
			respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})))

	// Enrollments
	mux.Handle("/api/enrollments", requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			cfg.Handlers.ListEnrollments(w, r)
		default:
			respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})))

	return withLogging(cfg.Log, mux)
}

func withLogging(log *logrus.Entry, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Debug("request")
		next.ServeHTTP(w, r)
	})
}

package router

import "net/http"

// DefaultRoutes is the conventional /api/v1 table mapping each LMS resource
// to its domain service. Target paths drop the /api/v1 prefix because the
// services mount their handlers at the root.
func DefaultRoutes() []Route {
	return []Route{
		// user service
		{Method: http.MethodGet, Pattern: "/api/v1/users", Service: "user", Target: "/users"},
		{Method: http.MethodPost, Pattern: "/api/v1/users", Service: "user", Target: "/users"},
		{Method: http.MethodGet, Pattern: "/api/v1/users/{id}", Service: "user", Target: "/users/{id}"},
		{Method: http.MethodPut, Pattern: "/api/v1/users/{id}", Service: "user", Target: "/users/{id}"},
		{Method: http.MethodDelete, Pattern: "/api/v1/users/{id}", Service: "user", Target: "/users/{id}"},
		{Method: http.MethodGet, Pattern: "/api/v1/users/{id}/roles", Service: "user", Target: "/users/{id}/roles"},

		// auth service (credential checks; token lifecycle stays on the gateway)
		{Method: http.MethodPost, Pattern: "/api/v1/auth/login", Service: "auth", Target: "/login"},
		{Method: http.MethodPost, Pattern: "/api/v1/auth/register", Service: "auth", Target: "/register"},

		// competency service
		{Method: http.MethodGet, Pattern: "/api/v1/competencies", Service: "competency", Target: "/competencies"},
		{Method: http.MethodPost, Pattern: "/api/v1/competencies", Service: "competency", Target: "/competencies"},
		{Method: http.MethodGet, Pattern: "/api/v1/competencies/{id}", Service: "competency", Target: "/competencies/{id}"},
		{Method: http.MethodPut, Pattern: "/api/v1/competencies/{id}", Service: "competency", Target: "/competencies/{id}"},
		{Method: http.MethodDelete, Pattern: "/api/v1/competencies/{id}", Service: "competency", Target: "/competencies/{id}"},
		{Method: http.MethodGet, Pattern: "/api/v1/competencies/{id}/levels", Service: "competency", Target: "/competencies/{id}/levels"},

		// learning service (courses and their modules)
		{Method: http.MethodGet, Pattern: "/api/v1/courses", Service: "learning", Target: "/courses"},
		{Method: http.MethodPost, Pattern: "/api/v1/courses", Service: "learning", Target: "/courses"},
		{Method: http.MethodGet, Pattern: "/api/v1/courses/{id}", Service: "learning", Target: "/courses/{id}"},
		{Method: http.MethodPut, Pattern: "/api/v1/courses/{id}", Service: "learning", Target: "/courses/{id}"},
		{Method: http.MethodDelete, Pattern: "/api/v1/courses/{id}", Service: "learning", Target: "/courses/{id}"},
		{Method: http.MethodGet, Pattern: "/api/v1/courses/{id}/modules", Service: "learning", Target: "/courses/{id}/modules"},
		{Method: http.MethodPost, Pattern: "/api/v1/courses/{id}/modules", Service: "learning", Target: "/courses/{id}/modules"},
		{Method: http.MethodPost, Pattern: "/api/v1/courses/{id}/enroll", Service: "learning", Target: "/courses/{id}/enroll"},

		// program service
		{Method: http.MethodGet, Pattern: "/api/v1/programs", Service: "program", Target: "/programs"},
		{Method: http.MethodPost, Pattern: "/api/v1/programs", Service: "program", Target: "/programs"},
		{Method: http.MethodGet, Pattern: "/api/v1/programs/{id}", Service: "program", Target: "/programs/{id}"},
		{Method: http.MethodPut, Pattern: "/api/v1/programs/{id}", Service: "program", Target: "/programs/{id}"},
		{Method: http.MethodDelete, Pattern: "/api/v1/programs/{id}", Service: "program", Target: "/programs/{id}"},

		// notification service
		{Method: http.MethodGet, Pattern: "/api/v1/notifications", Service: "notification", Target: "/notifications"},
		{Method: http.MethodPost, Pattern: "/api/v1/notifications", Service: "notification", Target: "/notifications"},
		{Method: http.MethodPost, Pattern: "/api/v1/notifications/{id}/read", Service: "notification", Target: "/notifications/{id}/read"},
	}
}

// WithDefaults registers the default route table on an existing router.
func WithDefaults(r *Router) error {
	for _, route := range DefaultRoutes() {
		if err := r.Register(route); err != nil {
			return err
		}
	}
	return nil
}

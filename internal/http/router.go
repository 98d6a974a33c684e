package httpserver

import "net/http"

// Routes groups HTTP handlers.
type Routes struct {
	Origins http.HandlerFunc
	Dates   http.HandlerFunc
	Route   http.HandlerFunc
	Latest  http.HandlerFunc
	Export  http.HandlerFunc
	Live    http.HandlerFunc
	Health  http.HandlerFunc
}

// NewRouter registers service endpoints. Health stays outside auth so a
// balancer can always probe it; everything else goes through the optional
// auth middleware.
func NewRouter(routes Routes, auth func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()
	guard := func(h http.HandlerFunc) http.Handler {
		if auth == nil {
			return h
		}
		return auth(h)
	}

	if routes.Origins != nil {
		mux.Handle("/origins", method(http.MethodGet, guard(routes.Origins)))
	}
	if routes.Dates != nil {
		mux.Handle("/dates", method(http.MethodGet, guard(routes.Dates)))
	}
	if routes.Route != nil {
		mux.Handle("/route", method(http.MethodGet, guard(routes.Route)))
	}
	if routes.Latest != nil {
		mux.Handle("/latest", method(http.MethodGet, guard(routes.Latest)))
	}
	if routes.Export != nil {
		mux.Handle("/export.csv", method(http.MethodGet, guard(routes.Export)))
	}
	if routes.Live != nil {
		mux.Handle("/live", method(http.MethodGet, guard(routes.Live)))
	}
	if routes.Health != nil {
		mux.Handle("/health", method(http.MethodGet, routes.Health))
	}
	return mux
}

func method(expected string, handler http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != expected {
			w.Header().Set("Allow", expected)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler.ServeHTTP(w, r)
	}
}

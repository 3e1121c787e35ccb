package internal

import (
	"log"
	"net/http"
	"time"

	"scheduling-api/internal/auth"
)

// RequestLogger logs method, route pattern, status and latency
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, code: http.StatusOK}

		next.ServeHTTP(rw, r)

		log.Printf("%s %s %d %s", r.Method, routePattern(r), rw.code, time.Since(start).Round(time.Microsecond))
	})
}

// companyScope rejects requests whose identity carries no company
func companyScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.CompanyFromContext(r.Context()) == "" {
			auth.SendErrorResponse(w, "company scope required", "MISSING_COMPANY", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

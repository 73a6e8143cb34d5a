package server

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

// AdapterTestHandler runs the gRPC connectivity test against the company's
// configured endpoint and keeps the result for the precondition checks
func (s *Server) AdapterTestHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b := browserFromContext(r.Context())
		sess, _ := sessionFromContext(r.Context())

		back := safeNext(r.FormValue("next"))
		if back == "" {
			back = RouteDashboard
		}
		back = s.url(back)

		endpoint := sess.User.GRPCEndpoint()
		if endpoint == "" {
			redirectWithError(w, r, back, "Please configure your gRPC endpoint before you test the connection")
			return
		}

		result := s.tester.Test(r.Context(), endpoint)
		if err := b.Adapter.Save(r.Context(), result); err != nil {
			log.Err(err).Msg("Failed to store adapter test result")
		}

		if !result.Passed {
			redirectWithError(w, r, back, "Connection test failed: "+result.Message)
			return
		}
		redirectWithNotice(w, r, back, "Connection test passed.")
	}
}

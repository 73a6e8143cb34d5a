package server

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

func (s *Server) initRoutes() {
	guest := s.HTMLMiddleWare(s.RedirectAuthorized())
	public := s.HTMLMiddleWare()
	submit := s.HTMLMiddleWare(s.BusyMiddleware)
	protected := s.HTMLMiddleWare(s.RequireApproval())
	protectedSubmit := s.HTMLMiddleWare(s.RequireApproval(), s.BusyMiddleware)

	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
	s.RegisterRouteHandler("GET "+RouteHome, ChainMiddleware(s.IndexHandler(), public...))

	// LOGIN
	s.RegisterRouteHandler("GET "+RouteLogin, ChainMiddleware(s.LoginPageHandler(), guest...))
	s.RegisterRouteHandler("POST "+RouteLogin, ChainMiddleware(s.LoginSubmissionHandler(), submit...))
	s.RegisterRouteHandler("POST "+RouteLogout, ChainMiddleware(s.LogoutHandler(), submit...))

	// REGISTRATION
	s.RegisterRouteHandler("GET "+RouteRegister, ChainMiddleware(s.RegisterGetHandler(), guest...))
	s.RegisterRouteHandler("POST "+RouteRegister, ChainMiddleware(s.RegisterPostHandler(), submit...))
	s.RegisterRouteHandler("GET "+RouteVerifyEmail, ChainMiddleware(s.VerifyEmailGetHandler(), public...))
	s.RegisterRouteHandler("POST "+RouteVerifyEmail, ChainMiddleware(s.VerifyEmailPostHandler(), submit...))
	s.RegisterRouteHandler("POST "+RouteResendVerification, ChainMiddleware(s.ResendVerificationHandler(), submit...))

	// PASSWORD RESET
	s.RegisterRouteHandler("GET "+RouteForgotPassword, ChainMiddleware(s.ForgotPasswordGetHandler(), guest...))
	s.RegisterRouteHandler("POST "+RouteForgotPassword, ChainMiddleware(s.ForgotPasswordPostHandler(), submit...))
	s.RegisterRouteHandler("GET "+RouteResetVerify, ChainMiddleware(s.ResetVerifyGetHandler(), public...))
	s.RegisterRouteHandler("POST "+RouteResetVerify, ChainMiddleware(s.ResetVerifyPostHandler(), submit...))
	s.RegisterRouteHandler("GET "+RouteResetPassword, ChainMiddleware(s.ResetPasswordGetHandler(), public...))
	s.RegisterRouteHandler("POST "+RouteResetPassword, ChainMiddleware(s.ResetPasswordPostHandler(), submit...))

	// PENDING APPROVAL
	s.RegisterRouteHandler("POST "+RoutePendingCheck, ChainMiddleware(s.PendingCheckHandler(), submit...))
	s.RegisterRouteHandler("POST "+RoutePendingLeave, ChainMiddleware(s.PendingLeaveHandler(), submit...))

	// AUTHENTICATED AREA
	s.RegisterRouteHandler("GET "+RouteDashboard, ChainMiddleware(s.DashboardHandler(), protected...))
	s.RegisterRouteHandler("GET "+RouteAgreements, ChainMiddleware(s.AgreementsListHandler(), protected...))
	s.RegisterRouteHandler("GET "+RouteAgreementNew, ChainMiddleware(s.AgreementNewHandler(), protected...))
	s.RegisterRouteHandler("POST "+RouteAgreements, ChainMiddleware(s.AgreementCreateHandler(), protectedSubmit...))
	s.RegisterRouteHandler("GET "+RouteAgreementDetail, ChainMiddleware(s.AgreementDetailHandler(), protected...))
	s.RegisterRouteHandler("POST "+RouteAgreementOffer, ChainMiddleware(s.AgreementOfferHandler(), protectedSubmit...))
	s.RegisterRouteHandler("POST "+RouteAdapterTest, ChainMiddleware(s.AdapterTestHandler(), protectedSubmit...))

	s.RegisterRouteHandler("GET "+RouteStatic, ChainMiddleware(s.serveFileHandler(), s.StaticMiddleware()...))
}

func (s *Server) serveFileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filePath := r.PathValue("file")
		if filePath == "" {
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
		err := StreamFile(w, r, filePath)
		if err != nil {
			logError(r.Method, r.URL.Path, err.Error())
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
	}
}

func logError(method, path, error string) {
	errorString := Red + error + ResetColor
	log.Warn().Msgf("[%s] %s %s", colourMethod(method), path, errorString)
}

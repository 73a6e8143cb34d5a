package server

// Route path constants
// All portal routes are defined here to ensure consistency and prevent typos.
// Paths are relative to the configured base path.
const (
	RouteHome = "/"

	// Auth Routes - Login & Logout
	RouteLogin  = "/login"
	RouteLogout = "/logout"

	// Auth Routes - Registration & Email Verification
	RouteRegister           = "/register"
	RouteVerifyEmail        = "/verify-email"
	RouteResendVerification = "/verify-email/resend"

	// Auth Routes - Password Reset
	RouteForgotPassword = "/forgot-password"
	RouteResetVerify    = "/reset-password/verify"
	RouteResetPassword  = "/reset-password"

	// Pending approval actions
	RoutePendingCheck = "/pending/check"
	RoutePendingLeave = "/pending/leave"

	// Authenticated area
	RouteDashboard       = "/dashboard"
	RouteAgreements      = "/agreements"
	RouteAgreementNew    = "/agreements/new"
	RouteAgreementDetail = "/agreements/{id}"
	RouteAgreementOffer  = "/agreements/{id}/offer"
	RouteAdapterTest     = "/adapter/test"

	// Operational
	RouteHealth = "/healthz"

	// Static Asset Routes (patterns)
	RouteStatic = "/static/{file}"
)

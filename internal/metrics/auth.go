package metrics

import "github.com/prometheus/client_golang/prometheus"

// Auth groups the counters of the OTP and session flows. A nil *Auth is
// valid and records nothing.
type Auth struct {
	otpRequests        *prometheus.CounterVec
	otpVerifications   *prometheus.CounterVec
	otpDispatches      *prometheus.CounterVec
	sessionValidations *prometheus.CounterVec
	tokensIssued       *prometheus.CounterVec
}

// NewAuth registers the auth counters on reg.
func NewAuth(reg prometheus.Registerer) *Auth {
	a := &Auth{
		otpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_otp_requests_total",
			Help: "OTP issuance requests by identity outcome.",
		}, []string{"result"}),
		otpVerifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_otp_verifications_total",
			Help: "OTP verification attempts by result.",
		}, []string{"result"}),
		otpDispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_otp_dispatches_total",
			Help: "OTP deliveries handed to the sender, by channel and result.",
		}, []string{"channel", "result"}),
		sessionValidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_session_validations_total",
			Help: "Bearer session validations by terminal state.",
		}, []string{"state"}),
		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_tokens_issued_total",
			Help: "Session tokens issued by login method.",
		}, []string{"method"}),
	}
	reg.MustRegister(a.otpRequests, a.otpVerifications, a.otpDispatches, a.sessionValidations, a.tokensIssued)
	return a
}

// OTPRequested records an issuance; result is "new", "existing" or "error".
func (a *Auth) OTPRequested(result string) {
	if a == nil {
		return
	}
	a.otpRequests.WithLabelValues(result).Inc()
}

// OTPVerified records a verification; result is "success", "invalid" or "error".
func (a *Auth) OTPVerified(result string) {
	if a == nil {
		return
	}
	a.otpVerifications.WithLabelValues(result).Inc()
}

// OTPDispatched records a delivery attempt.
func (a *Auth) OTPDispatched(channel string, err error) {
	if a == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	a.otpDispatches.WithLabelValues(channel, result).Inc()
}

// SessionValidated records the terminal state of a session validation.
func (a *Auth) SessionValidated(state string) {
	if a == nil {
		return
	}
	a.sessionValidations.WithLabelValues(state).Inc()
}

// TokenIssued records a minted session token.
func (a *Auth) TokenIssued(method string) {
	if a == nil {
		return
	}
	a.tokensIssued.WithLabelValues(method).Inc()
}

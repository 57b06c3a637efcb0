package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/phoneauth/internal/config"
	"github.com/example/phoneauth/internal/handlers"
	"github.com/example/phoneauth/internal/metrics"
	"github.com/example/phoneauth/internal/models"
	"github.com/example/phoneauth/internal/repository"
	"github.com/example/phoneauth/internal/services"
	"github.com/example/phoneauth/internal/session"
	"github.com/example/phoneauth/internal/testutil"
	"github.com/example/phoneauth/internal/utils"
)

const testPhone = "+919000000001"

type server struct {
	app  *fiber.App
	repo *repository.GormIdentityRepository
	auth *services.AuthService
	cfg  *config.Config
}

func newServer(t *testing.T) *server {
	t.Helper()
	cfg := &config.Config{
		AppEnv:             "test",
		JWTSecret:          []byte("routes-secret"),
		TokenExpires:       time.Hour,
		OTPTTL:             10 * time.Minute,
		OTPDispatch:        "log",
		OTPDispatchTimeout: time.Second,
	}
	db := testutil.NewDB(t)
	repo := repository.NewIdentityRepository(db)
	reg, authMetrics := metrics.NewRegistry()

	auth := services.NewAuthService(cfg, services.AuthDeps{
		Identities: repo,
		Sender:     services.NewLogSender(false),
		Metrics:    authMetrics,
	})
	t.Cleanup(auth.Wait)
	validator := session.NewValidator(repo, cfg.JWTSecret, session.WithRecorder(authMetrics.SessionValidated))

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler})
	Register(app, Deps{DB: db, Auth: auth, Validator: validator, Registry: reg})

	return &server{app: app, repo: repo, auth: auth, cfg: cfg}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Errors  json.RawMessage `json:"errors"`
}

func (s *server) do(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &env))
	}
	return resp.StatusCode, env
}

type verifyData struct {
	UserID     uuid.UUID `json:"userId"`
	AuthID     uuid.UUID `json:"authId"`
	UserStatus string    `json:"userStatus"`
	Onboarded  bool      `json:"onboarded"`
	Token      string    `json:"token"`
}

func (s *server) signIn(t *testing.T) verifyData {
	t.Helper()
	status, env := s.do(t, fiber.MethodPost, "/api/v1/auth/generate_otp", "", map[string]string{"phoneNumber": testPhone})
	require.Equal(t, fiber.StatusOK, status)
	require.True(t, env.Success)

	status, env = s.do(t, fiber.MethodPost, "/api/v1/auth/verify_otp", "", map[string]string{"phoneNumber": testPhone, "otp": "1234"})
	require.Equal(t, fiber.StatusOK, status)

	var data verifyData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data
}

func TestOTPFlowOverHTTP(t *testing.T) {
	s := newServer(t)

	status, env := s.do(t, fiber.MethodPost, "/api/v1/auth/generate_otp", "", map[string]string{"phoneNumber": testPhone})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "otp sent successfully", env.Message)
	var issued struct {
		UserID uuid.UUID `json:"userId"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &issued))

	status, env = s.do(t, fiber.MethodPost, "/api/v1/auth/verify_otp", "", map[string]string{"phoneNumber": testPhone, "otp": "1234"})
	require.Equal(t, fiber.StatusOK, status)
	var verified verifyData
	require.NoError(t, json.Unmarshal(env.Data, &verified))
	assert.Equal(t, issued.UserID, verified.UserID)
	assert.Equal(t, "new", verified.UserStatus)
	assert.False(t, verified.Onboarded)

	status, env = s.do(t, fiber.MethodPost, "/api/v1/auth/verify_otp", "", map[string]string{"phoneNumber": testPhone, "otp": "1234"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.False(t, env.Success)
	assert.Equal(t, "Invalid or expired OTP", env.Message)

	status, env = s.do(t, fiber.MethodGet, "/api/v1/auth/me", verified.Token, nil)
	require.Equal(t, fiber.StatusOK, status)
	var me session.Principal
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, verified.UserID, me.UserID)
	assert.Equal(t, verified.AuthID, me.IdentityID)
	assert.Equal(t, models.TypeUser, me.Type)
}

func TestGenerateOTP_RejectsInvalidPhone(t *testing.T) {
	s := newServer(t)

	for _, phone := range []string{"", "12345", "+915000000001", "+14155550100"} {
		status, env := s.do(t, fiber.MethodPost, "/api/v1/auth/generate_otp", "", map[string]string{"phoneNumber": phone})
		assert.Equal(t, fiber.StatusBadRequest, status, phone)
		assert.False(t, env.Success)
		assert.Contains(t, string(env.Errors), "phoneNumber")
	}

	status, _ := s.do(t, fiber.MethodPost, "/api/v1/auth/verify_otp", "", map[string]string{"phoneNumber": testPhone})
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestScenarioB_InactiveIdentityIsRejected(t *testing.T) {
	s := newServer(t)
	signedIn := s.signIn(t)

	require.NoError(t, s.repo.UpdateStatus(context.Background(), signedIn.AuthID, models.StatusInactive))

	status, env := s.do(t, fiber.MethodGet, "/api/v1/auth/me", signedIn.Token, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Contains(t, env.Message, "deactivated")

	require.NoError(t, s.repo.UpdateStatus(context.Background(), signedIn.AuthID, models.StatusSuspended))
	status, env = s.do(t, fiber.MethodGet, "/api/v1/auth/me", signedIn.Token, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Contains(t, env.Message, "restricted")
}

func TestScenarioC_TamperedSignature(t *testing.T) {
	s := newServer(t)
	signedIn := s.signIn(t)

	parts := strings.Split(signedIn.Token, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	status, env := s.do(t, fiber.MethodGet, "/api/v1/auth/me", tampered, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "Invalid or expired token", env.Message)
	assert.NotContains(t, strings.ToLower(env.Message), "signature")
}

func TestScenarioD_MalformedSession(t *testing.T) {
	s := newServer(t)

	token, err := utils.GenerateToken(s.cfg.JWTSecret, uuid.NewString()+":"+uuid.NewString(), time.Hour)
	require.NoError(t, err)

	status, env := s.do(t, fiber.MethodGet, "/api/v1/auth/me", token, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "Invalid session format", env.Message)
}

func TestMissingToken(t *testing.T) {
	s := newServer(t)

	status, env := s.do(t, fiber.MethodGet, "/api/v1/auth/me", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "Unauthorized access", env.Message)
}

func TestVerifyStatusAndOnboarding(t *testing.T) {
	s := newServer(t)
	signedIn := s.signIn(t)

	status, env := s.do(t, fiber.MethodGet, "/api/v1/auth/verify-status/"+signedIn.UserID.String(), signedIn.Token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"status":"active"}`, string(env.Data))

	status, _ = s.do(t, fiber.MethodGet, "/api/v1/auth/verify-status/not-a-uuid", signedIn.Token, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = s.do(t, fiber.MethodGet, "/api/v1/auth/verify-status/"+uuid.NewString(), signedIn.Token, nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = s.do(t, fiber.MethodPost, "/api/v1/auth/identities/"+uuid.NewString()+"/onboarded", signedIn.Token, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = s.do(t, fiber.MethodPost, "/api/v1/auth/identities/"+signedIn.AuthID.String()+"/onboarded", signedIn.Token, nil)
	require.Equal(t, fiber.StatusOK, status)

	again := s.signIn(t)
	assert.Equal(t, "existing", again.UserStatus)
	assert.True(t, again.Onboarded)
}

func TestAdminLoginAndStatusManagement(t *testing.T) {
	s := newServer(t)
	user := s.signIn(t)

	hash, err := utils.HashPassword("hunter22")
	require.NoError(t, err)
	require.NoError(t, s.repo.Create(context.Background(), &models.Identity{
		UserID:       uuid.New(),
		Email:        testutil.Ptr("admin@example.com"),
		Provider:     models.ProviderEmail,
		Type:         models.TypeAdmin,
		PasswordHash: &hash,
	}))

	status, env := s.do(t, fiber.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "admin@example.com", "password": "nope"})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "Invalid credentials", env.Message)

	status, env = s.do(t, fiber.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "Admin@Example.com", "password": "hunter22"})
	require.Equal(t, fiber.StatusOK, status)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &login))
	require.NotEmpty(t, login.Token)

	path := "/api/v1/auth/identities/" + user.AuthID.String() + "/status"

	status, _ = s.do(t, fiber.MethodPatch, path, user.Token, map[string]string{"status": "inactive"})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = s.do(t, fiber.MethodPatch, path, login.Token, map[string]string{"status": "banana"})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = s.do(t, fiber.MethodPatch, path, login.Token, map[string]string{"status": "inactive"})
	require.Equal(t, fiber.StatusOK, status)

	status, env = s.do(t, fiber.MethodGet, "/api/v1/auth/me", user.Token, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Contains(t, env.Message, "deactivated")
}

func TestHealthAndMetrics(t *testing.T) {
	s := newServer(t)
	s.signIn(t)

	resp, err := s.app.Test(httptest.NewRequest(fiber.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = s.app.Test(httptest.NewRequest(fiber.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `auth_otp_verifications_total{result="success"} 1`)
	assert.Contains(t, string(body), "auth_tokens_issued_total")
}

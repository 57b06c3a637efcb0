package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TOKEN_SECRET", "secret")
	t.Setenv("APP_ENV", "")
	t.Setenv("KAF_BROKERS", "")

	cfg := Load()

	assert.Equal(t, "4001", cfg.AppPort)
	assert.Equal(t, []byte("secret"), cfg.JWTSecret)
	assert.Equal(t, 7*24*time.Hour, cfg.TokenExpires)
	assert.Equal(t, 10*time.Minute, cfg.OTPTTL)
	assert.False(t, cfg.OTPEnforceExpiry)
	assert.Equal(t, "log", cfg.OTPDispatch)
	assert.False(t, cfg.KafkaEnabled())
	assert.True(t, cfg.MetricsEnabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("TOKEN_SECRET", "s3")
	t.Setenv("APP_ENV", "Development")
	t.Setenv("JWT_TTL_HOURS", "2")
	t.Setenv("OTP_TTL_MINUTES", "5")
	t.Setenv("OTP_ENFORCE_EXPIRY", "true")
	t.Setenv("KAF_BROKERS", "k1:9092, k2:9092 ,")
	t.Setenv("OTP_DISPATCH", "KAFKA")

	cfg := Load()

	assert.True(t, cfg.IsNonProduction())
	assert.Equal(t, 2*time.Hour, cfg.TokenExpires)
	assert.Equal(t, 5*time.Minute, cfg.OTPTTL)
	assert.True(t, cfg.OTPEnforceExpiry)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "kafka", cfg.OTPDispatch)
}

func TestIsNonProduction(t *testing.T) {
	cases := map[string]bool{
		"production":  false,
		"staging":     false,
		"":            false,
		"development": true,
		"test":        true,
		"local":       true,
	}
	for env, want := range cases {
		cfg := &Config{AppEnv: env}
		assert.Equal(t, want, cfg.IsNonProduction(), "APP_ENV=%q", env)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{OTPDispatch: "log", TokenExpires: time.Hour}
	}

	require.NoError(t, base().Validate())

	cfg := base()
	cfg.OTPDispatch = "carrier-pigeon"
	var cerr *Error
	require.ErrorAs(t, cfg.Validate(), &cerr)
	assert.Equal(t, "OTP_DISPATCH", cerr.Key)

	cfg = base()
	cfg.OTPDispatch = "msg91"
	assert.Error(t, cfg.Validate())
	cfg.MSG91AuthKey = "key"
	cfg.MSG91TemplateID = "tpl"
	assert.NoError(t, cfg.Validate())

	cfg = base()
	cfg.OTPDispatch = "kafka"
	assert.Error(t, cfg.Validate())
	cfg.KafkaBrokers = []string{"localhost:9092"}
	assert.NoError(t, cfg.Validate())

	cfg = base()
	cfg.TokenExpires = 0
	assert.Error(t, cfg.Validate())
}

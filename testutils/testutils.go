package testutils

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"slackhooks/config"
	"slackhooks/core"
	"slackhooks/services/signature"
)

const TestSigningSecret = "test_signing_secret"

// LoadTestConfig loads database settings for repository tests from .env.test
func LoadTestConfig() (*config.StoreConfig, error) {
	_ = godotenv.Load("../.env.test") // From a package directory
	_ = godotenv.Load(".env.test")    // From root directory
	_ = godotenv.Load()               // Default .env file

	databaseURL := os.Getenv("DB_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("DB_URL is not set")
	}

	databaseSchema := os.Getenv("DB_SCHEMA")
	if databaseSchema == "" {
		return nil, fmt.Errorf("DB_SCHEMA is not set")
	}

	return &config.StoreConfig{
		InstallationBackend: config.BackendPostgres,
		StateBackend:        config.BackendPostgres,
		DatabaseURL:         databaseURL,
		DatabaseSchema:      databaseSchema,
	}, nil
}

// NewTeamID returns a unique Slack-looking team id
func NewTeamID() string {
	return "T" + strings.ToUpper(strings.TrimPrefix(core.NewID("t"), "t_"))
}

// SignHeaders sets valid Slack signature headers for body signed at now
func SignHeaders(h http.Header, secret, body string, now time.Time) {
	timestamp := strconv.FormatInt(now.Unix(), 10)
	h.Set(signature.HeaderTimestamp, timestamp)
	h.Set(signature.HeaderSignature, signature.NewVerifier(secret).Sign([]byte(body), timestamp))
}

// NewSignedRequest builds an httptest request carrying a valid Slack signature
func NewSignedRequest(method, target, contentType, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	SignHeaders(req.Header, TestSigningSecret, body, time.Now())
	return req
}

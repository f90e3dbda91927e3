package testutil

import (
	"os"
	"testing"
)

const (
	// TestDatabaseURL names the Postgres DSN used by integration tests.
	TestDatabaseURL = "TEST_DATABASE_URL"
	// TestEbayClientID and TestEbayClientSecret hold sandbox credentials for live tests.
	TestEbayClientID     = "TEST_EBAY_CLIENT_ID"
	TestEbayClientSecret = "TEST_EBAY_CLIENT_SECRET"

	// Default test values when environment variables are not set
	DefaultTestClientID     = "test-client-id"
	DefaultTestClientSecret = "test-client-secret"
)

// GetTestValue returns an environment variable or a default
func GetTestValue(envVar, defaultValue string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return defaultValue
}

// GetTestEbayCredentials returns the client id and secret for token tests
func GetTestEbayCredentials() (string, string) {
	return GetTestValue(TestEbayClientID, DefaultTestClientID),
		GetTestValue(TestEbayClientSecret, DefaultTestClientSecret)
}

// DatabaseURL returns the integration database DSN, skipping the test when
// none is configured or when running with -short.
func DatabaseURL(t testing.TB) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}
	dsn := os.Getenv(TestDatabaseURL)
	if dsn == "" {
		t.Skipf("%s not set", TestDatabaseURL)
	}
	return dsn
}

// GetTestBaseURL returns a test base URL for the given service
func GetTestBaseURL(service string) string {
	switch service {
	case "ebay":
		return "https://api.ebay.test"
	case "ebay-auth":
		return "https://auth.ebay.test/identity/v1/oauth2/token"
	default:
		return "https://api.test.local"
	}
}

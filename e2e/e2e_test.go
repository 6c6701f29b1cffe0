package e2e

import (
	"os"
	"testing"

	"github.com/cucumber/godog"
	"github.com/cucumber/godog/colors"
)

// TestFeatures runs the feature files against a live server. Start the server
// with TOKEN_VERIFIER=hmac, the same TOKEN_HMAC_SIGNING_KEY exported here, and
// ROLLCALL_TRUSTED_PROXIES=127.0.0.1/32,::1/128 so the per-scenario
// X-Forwarded-For address keys the rate limiter. Point ROLLCALL_E2E_URL at it.
func TestFeatures(t *testing.T) {
	if os.Getenv("ROLLCALL_E2E_URL") == "" {
		t.Skip("ROLLCALL_E2E_URL not set")
	}
	if os.Getenv("TOKEN_HMAC_SIGNING_KEY") == "" {
		t.Skip("TOKEN_HMAC_SIGNING_KEY not set")
	}

	tags := os.Getenv("GODOG_TAGS")
	suite := godog.TestSuite{
		Name: "rollcall",
		ScenarioInitializer: func(sc *godog.ScenarioContext) {
			RegisterSteps(sc, NewTestContext())
		},
		Options: &godog.Options{
			Format:   "pretty",
			Output:   colors.Colored(os.Stdout),
			Paths:    []string{"features"},
			Tags:     tags,
			Strict:   true,
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("feature tests failed")
	}
}

package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/cucumber/godog"

	"rollcall/e2e/steps/auth"
	"rollcall/e2e/steps/profile"
	"rollcall/e2e/steps/ratelimit"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.Reset()
		return ctx, nil
	})

	registerCommonSteps(ctx, tc)
	auth.RegisterSteps(ctx, tc)
	profile.RegisterSteps(ctx, tc)
	ratelimit.RegisterSteps(ctx, tc)
}

func registerCommonSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	ctx.Step(`^the server is running$`, func() error {
		if err := tc.GET("/healthz", nil); err != nil {
			return err
		}
		if tc.GetLastResponseStatus() != 200 {
			return fmt.Errorf("healthz returned %d: %s", tc.GetLastResponseStatus(), tc.GetLastResponseBody())
		}
		return nil
	})
	ctx.Step(`^the response status should be (\d+)$`, func(expected int) error {
		if got := tc.GetLastResponseStatus(); got != expected {
			return fmt.Errorf("expected status %d, got %d: %s", expected, got, tc.GetLastResponseBody())
		}
		return nil
	})
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, func(field, expected string) error {
		v, err := tc.GetResponseField(field)
		if err != nil {
			return err
		}
		if got := fmt.Sprint(v); got != expected {
			return fmt.Errorf("field %q: expected %q, got %q", field, expected, got)
		}
		return nil
	})
	ctx.Step(`^the response field "([^"]*)" should be null$`, func(field string) error {
		v, err := tc.GetResponseField(field)
		if err != nil {
			return err
		}
		if v != nil {
			return fmt.Errorf("field %q: expected null, got %v", field, v)
		}
		return nil
	})
	ctx.Step(`^the response errors should include "([^"]*)"$`, func(expected string) error {
		var body struct {
			Errors []string `json:"errors"`
		}
		if err := json.Unmarshal(tc.GetLastResponseBody(), &body); err != nil {
			return err
		}
		for _, e := range body.Errors {
			if e == expected {
				return nil
			}
		}
		return fmt.Errorf("errors %q do not include %q", body.Errors, expected)
	})
	ctx.Step(`^the response header "([^"]*)" should be set$`, func(name string) error {
		if tc.GetLastResponseHeader(name) == "" {
			return fmt.Errorf("header %s missing", name)
		}
		return nil
	})
	ctx.Step(`^the response header "([^"]*)" should be (\d+)$`, func(name string, expected int) error {
		got, err := strconv.Atoi(tc.GetLastResponseHeader(name))
		if err != nil {
			return fmt.Errorf("header %s: %w", name, err)
		}
		if got != expected {
			return fmt.Errorf("header %s: expected %d, got %d", name, expected, got)
		}
		return nil
	})
}

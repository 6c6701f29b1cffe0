package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	IssueToken(uid, email string, expiresIn time.Duration) (string, error)
	UID() string
	SetClientIP(ip string)
	GetLastResponseStatus() int
}

// RegisterSteps registers rate-limiting step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &ratelimitSteps{tc: tc}

	ctx.Step(`^I am signing in from IP "([^"]*)"$`, steps.signingInFromIP)
	ctx.Step(`^the student signs in (\d+) times as "([^"]*)"$`, steps.signInNTimes)
	ctx.Step(`^the (\d+)(?:st|nd|rd|th) attempt should return (\d+)$`, steps.nthAttemptShouldReturn)
}

type ratelimitSteps struct {
	tc       TestContext
	statuses []int
}

func (s *ratelimitSteps) signingInFromIP(ctx context.Context, ip string) error {
	s.tc.SetClientIP(ip)
	return nil
}

func (s *ratelimitSteps) signInNTimes(ctx context.Context, times int, email string) error {
	token, err := s.tc.IssueToken(s.tc.UID(), email, time.Hour)
	if err != nil {
		return err
	}
	s.statuses = s.statuses[:0]
	for range times {
		if err := s.tc.POST("/auth/verify", map[string]interface{}{"token": token}); err != nil {
			return err
		}
		s.statuses = append(s.statuses, s.tc.GetLastResponseStatus())
	}
	return nil
}

func (s *ratelimitSteps) nthAttemptShouldReturn(ctx context.Context, n, expectedStatus int) error {
	if n < 1 || n > len(s.statuses) {
		return fmt.Errorf("attempt %d not made; %d attempts recorded", n, len(s.statuses))
	}
	if got := s.statuses[n-1]; got != expectedStatus {
		return fmt.Errorf("attempt %d: expected %d, got %d", n, expectedStatus, got)
	}
	return nil
}

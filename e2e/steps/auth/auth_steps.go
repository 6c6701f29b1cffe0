package auth

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	IssueToken(uid, email string, expiresIn time.Duration) (string, error)
	UID() string
	SetUID(uid string)
	SetToken(token string)
}

// RegisterSteps registers sign-in step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &authSteps{tc: tc}

	ctx.Step(`^a new student with email "([^"]*)"$`, steps.newStudent)
	ctx.Step(`^the student signs in$`, steps.signIn)
	ctx.Step(`^the student signs in at "([^"]*)"$`, steps.signInAt)
	ctx.Step(`^the student signs in with an expired token$`, steps.signInExpired)
	ctx.Step(`^I sign in with token "([^"]*)"$`, steps.signInWithRawToken)
	ctx.Step(`^I sign in without a token$`, steps.signInWithoutToken)
	ctx.Step(`^the student has signed in$`, steps.signIn)
}

type authSteps struct {
	tc    TestContext
	email string
}

func (s *authSteps) newStudent(ctx context.Context, email string) error {
	s.tc.SetUID(fmt.Sprintf("e2e-%d-%d", time.Now().UnixNano(), rand.IntN(1_000_000)))
	s.email = email
	return nil
}

func (s *authSteps) signIn(ctx context.Context) error {
	return s.signInAt(ctx, "/auth/verify")
}

func (s *authSteps) signInAt(ctx context.Context, path string) error {
	token, err := s.tc.IssueToken(s.tc.UID(), s.email, time.Hour)
	if err != nil {
		return err
	}
	s.tc.SetToken(token)
	return s.tc.POST(path, map[string]interface{}{"token": token})
}

func (s *authSteps) signInExpired(ctx context.Context) error {
	token, err := s.tc.IssueToken(s.tc.UID(), s.email, -time.Minute)
	if err != nil {
		return err
	}
	return s.tc.POST("/auth/verify", map[string]interface{}{"token": token})
}

func (s *authSteps) signInWithRawToken(ctx context.Context, token string) error {
	return s.tc.POST("/auth/verify", map[string]interface{}{"token": token})
}

func (s *authSteps) signInWithoutToken(ctx context.Context) error {
	return s.tc.POST("/auth/verify", map[string]interface{}{})
}

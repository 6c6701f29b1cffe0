package profile

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string, headers map[string]string) error
	PUT(path string, body interface{}, headers map[string]string) error
	UID() string
	Token() string
}

// RegisterSteps registers profile step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &profileSteps{tc: tc}

	ctx.Step(`^I fetch the student's profile$`, steps.fetchOwnProfile)
	ctx.Step(`^I fetch the profile "([^"]*)"$`, steps.fetchProfile)
	ctx.Step(`^I update the student's profile with:$`, steps.updateOwnProfile)
}

type profileSteps struct {
	tc TestContext
}

// authHeaders sends the student's own token; servers without the owner
// guard ignore it.
func (s *profileSteps) authHeaders() map[string]string {
	if s.tc.Token() == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + s.tc.Token()}
}

func (s *profileSteps) fetchOwnProfile(ctx context.Context) error {
	return s.tc.GET("/profile/"+s.tc.UID(), s.authHeaders())
}

func (s *profileSteps) fetchProfile(ctx context.Context, uid string) error {
	return s.tc.GET("/profile/"+uid, nil)
}

func (s *profileSteps) updateOwnProfile(ctx context.Context, doc *godog.DocString) error {
	var body map[string]interface{}
	if err := json.Unmarshal([]byte(doc.Content), &body); err != nil {
		return fmt.Errorf("update body must be a JSON object: %w", err)
	}
	return s.tc.PUT("/profile/"+s.tc.UID(), body, s.authHeaders())
}

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TestContext holds per-scenario state: the server under test, the last
// response, and the identity the scenario signs in as.
type TestContext struct {
	BaseURL string
	Client  *http.Client

	signingKey []byte
	issuer     string
	audience   string

	// clientIP is sent as X-Forwarded-For so each scenario gets its own
	// rate limit budget.
	clientIP string

	uid   string
	token string

	lastStatus  int
	lastBody    []byte
	lastHeaders http.Header
}

// NewTestContext reads the target from ROLLCALL_E2E_URL and the HMAC token
// settings the server was started with.
func NewTestContext() *TestContext {
	return &TestContext{
		BaseURL:    strings.TrimSuffix(envOr("ROLLCALL_E2E_URL", "http://localhost:5000"), "/"),
		Client:     &http.Client{Timeout: 10 * time.Second},
		signingKey: []byte(os.Getenv("TOKEN_HMAC_SIGNING_KEY")),
		issuer:     envOr("TOKEN_HMAC_ISSUER", "rollcall-dev"),
		audience:   envOr("TOKEN_HMAC_AUDIENCE", "rollcall"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Reset clears state between scenarios and picks a fresh client address.
func (tc *TestContext) Reset() {
	tc.uid = ""
	tc.token = ""
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.lastHeaders = nil
	tc.clientIP = fmt.Sprintf("198.18.%d.%d", rand.IntN(256), 1+rand.IntN(254))
}

// IssueToken mints an HS256 ID token the server's HMAC verifier accepts.
func (tc *TestContext) IssueToken(uid, email string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   uid,
		"email": email,
		"iss":   tc.issuer,
		"iat":   now.Unix(),
		"exp":   now.Add(expiresIn).Unix(),
	}
	if tc.audience != "" {
		claims["aud"] = tc.audience
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tc.signingKey)
}

func (tc *TestContext) UID() string       { return tc.uid }
func (tc *TestContext) SetUID(uid string) { tc.uid = uid }
func (tc *TestContext) Token() string     { return tc.token }
func (tc *TestContext) SetToken(t string) { tc.token = t }
func (tc *TestContext) ClientIP() string  { return tc.clientIP }

func (tc *TestContext) SetClientIP(ip string) { tc.clientIP = ip }

func (tc *TestContext) POST(path string, body interface{}) error {
	return tc.do(http.MethodPost, path, body, nil)
}

func (tc *TestContext) PUT(path string, body interface{}, headers map[string]string) error {
	return tc.do(http.MethodPut, path, body, headers)
}

func (tc *TestContext) GET(path string, headers map[string]string) error {
	return tc.do(http.MethodGet, path, nil, headers)
}

func (tc *TestContext) do(method, path string, body interface{}, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, tc.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tc.clientIP != "" {
		req.Header.Set("X-Forwarded-For", tc.clientIP)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := tc.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	tc.lastStatus = resp.StatusCode
	tc.lastHeaders = resp.Header
	tc.lastBody, err = io.ReadAll(resp.Body)
	return err
}

func (tc *TestContext) GetLastResponseStatus() int  { return tc.lastStatus }
func (tc *TestContext) GetLastResponseBody() []byte { return tc.lastBody }
func (tc *TestContext) GetLastResponseHeader(k string) string {
	if tc.lastHeaders == nil {
		return ""
	}
	return tc.lastHeaders.Get(k)
}

// GetResponseField resolves a dotted path such as "student.year" in the last
// JSON response. A present null yields (nil, nil).
func (tc *TestContext) GetResponseField(field string) (interface{}, error) {
	var doc interface{}
	if err := json.Unmarshal(tc.lastBody, &doc); err != nil {
		return nil, fmt.Errorf("response is not JSON: %w", err)
	}
	cur := doc
	for _, part := range strings.Split(field, ".") {
		obj, ok := cur.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("field %q: %q is not an object", field, part)
		}
		next, ok := obj[part]
		if !ok {
			return nil, fmt.Errorf("field %q not found in response: %s", field, tc.lastBody)
		}
		cur = next
	}
	return cur, nil
}

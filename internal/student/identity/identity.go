// Package identity derives a student's identity from an institutional email
// address of the form <name><year><department>@<domain>, for example
// mahaveer.k2023it@sece.ac.in.
package identity

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/email"
)

// DefaultDomain is the institutional email domain accepted by Parse.
const DefaultDomain = "sece.ac.in"

const (
	minYear          = 2000
	maxYearsAhead    = 10
	minDepartmentLen = 2
	maxDepartmentLen = 10
)

// Error kinds. Parse wraps them in *dErrors.Error, so callers can match with
// errors.Is or branch on the domain error code.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidDomain     = errors.New("invalid domain")
	ErrInvalidFormat     = errors.New("invalid format")
	ErrInvalidYear       = errors.New("invalid year")
	ErrInvalidDepartment = errors.New("invalid department")
)

// name segment, 4-digit year, ASCII department letters; whole local part.
// Matched against the lower-cased address, so no case folding: (?i) would let
// [a-z] accept U+017F and U+212A.
var localPartPattern = regexp.MustCompile(`^(.+?)(\d{4})([a-z]+)$`)

// Identity is the normalized identity carried by an institutional address.
type Identity struct {
	Name       string `json:"name"`
	Year       string `json:"year"`
	Department string `json:"department"`
	Email      string `json:"email"`
}

// Parser validates addresses against one institutional domain.
type Parser struct {
	domain string
}

// NewParser returns a Parser for domain; an empty domain means DefaultDomain.
func NewParser(domain string) *Parser {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		domain = DefaultDomain
	}
	return &Parser{domain: domain}
}

// Domain returns the institutional domain this parser accepts.
func (p *Parser) Domain() string {
	return p.domain
}

// Parse extracts the identity from address. now bounds the enrollment year to
// [2000, now.Year()+10].
func (p *Parser) Parse(address string, now time.Time) (Identity, error) {
	if address == "" {
		return Identity{}, dErrors.Wrap(ErrInvalidInput, dErrors.CodeBadRequest,
			"Email is required and must be a string")
	}

	normalized := strings.ToLower(address)
	local, domain, ok := email.Split(normalized)
	if !ok || domain != p.domain {
		return Identity{}, dErrors.Wrap(ErrInvalidDomain, dErrors.CodeForbidden,
			fmt.Sprintf("Invalid email domain. Only @%s emails are allowed.", p.domain))
	}

	match := localPartPattern.FindStringSubmatch(local)
	if match == nil {
		return Identity{}, dErrors.Wrap(ErrInvalidFormat, dErrors.CodeBadRequest,
			fmt.Sprintf("Invalid email format. Expected format: name.year+department@%s", p.domain))
	}
	nameSegment, year, department := match[1], match[2], match[3]

	maxYear := now.Year() + maxYearsAhead
	yearNum, err := strconv.Atoi(year)
	if err != nil || yearNum < minYear || yearNum > maxYear {
		return Identity{}, dErrors.Wrap(ErrInvalidYear, dErrors.CodeBadRequest,
			fmt.Sprintf("Invalid year in email. Year should be between %d and %d", minYear, maxYear))
	}

	if len(department) < minDepartmentLen || len(department) > maxDepartmentLen {
		return Identity{}, dErrors.Wrap(ErrInvalidDepartment, dErrors.CodeBadRequest,
			"Invalid department code in email")
	}

	return Identity{
		Name:       email.DisplayName(nameSegment),
		Year:       year,
		Department: strings.ToUpper(department),
		Email:      normalized,
	}, nil
}

var defaultParser = NewParser(DefaultDomain)

// Parse parses address against DefaultDomain.
func Parse(address string, now time.Time) (Identity, error) {
	return defaultParser.Parse(address, now)
}

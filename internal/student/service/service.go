package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"rollcall/internal/idtoken"
	"rollcall/internal/platform/metrics"
	"rollcall/internal/student/identity"
	"rollcall/internal/student/models"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/email"
	audit "rollcall/pkg/platform/audit"
	"rollcall/pkg/platform/sentinel"
	"rollcall/pkg/requestcontext"
)

type Store interface {
	FindByUID(ctx context.Context, uid string) (*models.Profile, error)
	CreateIfAbsent(ctx context.Context, p *models.Profile) error
	TouchLastLogin(ctx context.Context, uid string, at time.Time) (*models.Profile, error)
	ApplyUpdate(ctx context.Context, uid string, update models.ProfileUpdate, at time.Time) (*models.Profile, error)
}

type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*idtoken.Claims, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// LoginResult carries the stored profile and whether this login created it.
type LoginResult struct {
	Profile *models.Profile
	Created bool
}

// Service signs students in and manages their profiles.
type Service struct {
	store          Store
	verifier       TokenVerifier
	parser         *identity.Parser
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithParser sets the identity parser, and with it the institutional domain.
func WithParser(p *identity.Parser) Option {
	return func(s *Service) {
		s.parser = p
	}
}

// New constructs a Service. The request time is read from the context via
// requestcontext.Now.
func New(store Store, verifier TokenVerifier, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("profile store is required")
	}
	if verifier == nil {
		return nil, errors.New("token verifier is required")
	}
	s := &Service{
		store:    store,
		verifier: verifier,
		parser:   identity.NewParser(identity.DefaultDomain),
		logger:   slog.Default(),
		tracer:   otel.Tracer("rollcall/student"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Login verifies an ID token and signs the student in, creating the profile
// on first sign-in. Concurrent first logins for one uid produce exactly one
// record; the others are treated as returning logins.
func (s *Service) Login(ctx context.Context, token string) (result *LoginResult, err error) {
	ctx, span := s.tracer.Start(ctx, "student.Login")
	defer func() { endSpan(span, err) }()

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "Firebase ID token is required")
	}

	claims, err := s.verifier.Verify(ctx, token)
	if err != nil {
		reason := "invalid"
		if errors.Is(err, idtoken.ErrTokenExpired) {
			reason = "expired"
		}
		s.metrics.IncrementTokenFailure(reason)
		s.rejectLogin(ctx, "", "", "token_"+reason)
		if _, ok := dErrors.As(err); ok {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "Invalid token. Please sign in again.")
	}
	span.SetAttributes(attribute.String("student.uid", claims.UID))

	domain := s.parser.Domain()
	if !email.HasDomain(claims.Email, domain) {
		s.rejectLogin(ctx, claims.UID, claims.Email, "foreign_domain")
		return nil, dErrors.New(dErrors.CodeForbidden,
			fmt.Sprintf("Access denied. Only @%s email addresses are allowed.", domain))
	}

	now := requestcontext.Now(ctx).UTC()
	id, err := s.parser.Parse(claims.Email, now)
	if err != nil {
		s.rejectLogin(ctx, claims.UID, claims.Email, "unparseable_email")
		return nil, err
	}

	validation := models.ValidateLoginData(models.LoginData{
		UID:        claims.UID,
		Name:       id.Name,
		Email:      id.Email,
		Department: id.Department,
		Year:       id.Year,
	})
	if !validation.IsValid {
		s.rejectLogin(ctx, claims.UID, claims.Email, "invalid_student_data")
		return nil, dErrors.NewValidation("Invalid student data", validation.Errors)
	}

	profile := models.NewProfile(claims.UID, id, now)
	err = s.store.CreateIfAbsent(ctx, profile)
	switch {
	case err == nil:
		s.metrics.IncrementLogin(metrics.LoginCreated)
		s.emit(ctx, audit.EventStudentRegistered, profile.UID, profile.Email, "created", "")
		s.logger.InfoContext(ctx, "student registered",
			"uid", profile.UID,
			"department", profile.Department,
			"year", profile.Year,
			"request_id", requestcontext.RequestID(ctx),
		)
		return &LoginResult{Profile: profile, Created: true}, nil
	case errors.Is(err, sentinel.ErrConflict):
	default:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "Authentication failed")
	}

	existing, err := s.store.TouchLastLogin(ctx, claims.UID, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "Authentication failed")
	}
	s.metrics.IncrementLogin(metrics.LoginReturning)
	s.emit(ctx, audit.EventStudentSignedIn, existing.UID, existing.Email, "returning", "")
	return &LoginResult{Profile: existing, Created: false}, nil
}

// GetProfile returns the stored profile for uid.
func (s *Service) GetProfile(ctx context.Context, uid string) (profile *models.Profile, err error) {
	ctx, span := s.tracer.Start(ctx, "student.GetProfile")
	defer func() { endSpan(span, err) }()

	uid = strings.TrimSpace(uid)
	if uid == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "Student UID is required")
	}

	profile, err = s.store.FindByUID(ctx, uid)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "Student not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "Error fetching profile")
	}
	s.emit(ctx, audit.EventProfileViewed, profile.UID, profile.Email, "", "")
	return profile, nil
}

// UpdateProfile validates fields, decoded from a JSON object, and applies the
// sanitized changes. Identity fields can never be changed.
func (s *Service) UpdateProfile(ctx context.Context, uid string, fields map[string]any) (profile *models.Profile, err error) {
	ctx, span := s.tracer.Start(ctx, "student.UpdateProfile")
	defer func() { endSpan(span, err) }()

	uid = strings.TrimSpace(uid)
	if uid == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "Student UID is required")
	}

	result := models.ValidateProfileUpdate(fields)
	if !result.IsValid {
		s.metrics.IncrementProfileUpdate("rejected")
		s.emit(ctx, audit.EventProfileUpdateRejected, uid, "", "denied", strings.Join(result.Errors, "; "))
		return nil, dErrors.NewValidation("Invalid update data", result.Errors)
	}

	profile, err = s.store.ApplyUpdate(ctx, uid, result.Sanitized, requestcontext.Now(ctx).UTC())
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "Student not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "Error updating profile")
	}

	s.metrics.IncrementProfileUpdate("applied")
	s.emit(ctx, audit.EventProfileUpdated, profile.UID, profile.Email, "applied", changedFields(result.Sanitized))
	s.logger.InfoContext(ctx, "profile updated",
		"uid", profile.UID,
		"request_id", requestcontext.RequestID(ctx),
	)
	return profile, nil
}

func (s *Service) rejectLogin(ctx context.Context, uid, address, reason string) {
	s.metrics.IncrementLogin(metrics.LoginRejected)
	s.emit(ctx, audit.EventSignInRejected, uid, address, "denied", reason)
	s.logger.WarnContext(ctx, "sign-in rejected",
		"uid", uid,
		"reason", reason,
		"request_id", requestcontext.RequestID(ctx),
	)
}

// emit is best effort: a failing audit sink never fails the request.
func (s *Service) emit(ctx context.Context, action audit.AuditEvent, uid, address, decision, reason string) {
	if s.auditPublisher == nil {
		return
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		UserID:   uid,
		Email:    address,
		Action:   string(action),
		Decision: decision,
		Reason:   reason,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit event",
			"action", string(action),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

func changedFields(u models.ProfileUpdate) string {
	fields := u.Fields()
	names := make([]string, 0, len(fields))
	for _, name := range []string{
		models.FieldRollNumber, models.FieldIsResident, models.FieldBlock,
		models.FieldRoomNumber, models.FieldGender,
	} {
		if _, ok := fields[name]; ok {
			names = append(names, name)
		}
	}
	return strings.Join(names, ",")
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,TokenVerifier,AuditPublisher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"rollcall/internal/idtoken"
	"rollcall/internal/platform/metrics"
	"rollcall/internal/student/identity"
	"rollcall/internal/student/models"
	"rollcall/internal/student/service/mocks"
	dErrors "rollcall/pkg/domain-errors"
	audit "rollcall/pkg/platform/audit"
	"rollcall/pkg/platform/sentinel"
	"rollcall/pkg/requestcontext"
)

// =============================================================================
// Student Service Test Suite
// =============================================================================
// The service owns the sign-in decision tree and the profile update rules;
// stores, token verification and auditing are mocked so each branch can be
// driven directly.

type StudentServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	store     *mocks.MockStore
	verifier  *mocks.MockTokenVerifier
	publisher *mocks.MockAuditPublisher
	metrics   *metrics.Metrics
	service   *Service
	now       time.Time
	ctx       context.Context
}

func TestStudentServiceSuite(t *testing.T) {
	suite.Run(t, new(StudentServiceSuite))
}

func (s *StudentServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockStore(s.ctrl)
	s.verifier = mocks.NewMockTokenVerifier(s.ctrl)
	s.publisher = mocks.NewMockAuditPublisher(s.ctrl)
	s.metrics = metrics.NewWithRegistry(prometheus.NewRegistry())
	s.now = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	var err error
	s.service, err = New(s.store, s.verifier,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAuditPublisher(s.publisher),
		WithMetrics(s.metrics),
	)
	s.Require().NoError(err)
}

func (s *StudentServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *StudentServiceSuite) expectAudit(action audit.AuditEvent) *gomock.Call {
	return s.publisher.EXPECT().Emit(gomock.Any(), gomock.Cond(func(e audit.Event) bool {
		return e.Action == string(action)
	})).Return(nil)
}

func (s *StudentServiceSuite) claims() *idtoken.Claims {
	return &idtoken.Claims{UID: "uid-1", Email: "Mahaveer.K2023IT@sece.ac.in"}
}

func (s *StudentServiceSuite) storedProfile() *models.Profile {
	return models.NewProfile("uid-1", identity.Identity{
		Name:       "Mahaveer K",
		Year:       "2023",
		Department: "IT",
		Email:      "mahaveer.k2023it@sece.ac.in",
	}, s.now.Add(-48*time.Hour))
}

func (s *StudentServiceSuite) assertCode(err error, code dErrors.Code, msg string) {
	s.Require().Error(err)
	de, ok := dErrors.As(err)
	s.Require().True(ok, "expected domain error, got %v", err)
	s.Equal(code, de.Code)
	if msg != "" {
		s.Equal(msg, de.Message)
	}
}

// =============================================================================
// Constructor
// =============================================================================

func (s *StudentServiceSuite) TestNew() {
	s.Run("nil store returns error", func() {
		_, err := New(nil, s.verifier)
		s.ErrorContains(err, "profile store is required")
	})

	s.Run("nil verifier returns error", func() {
		_, err := New(s.store, nil)
		s.ErrorContains(err, "token verifier is required")
	})

	s.Run("options are applied", func() {
		parser := identity.NewParser("example.edu")
		svc, err := New(s.store, s.verifier, WithParser(parser), WithAuditPublisher(s.publisher))
		s.Require().NoError(err)
		s.Equal(parser, svc.parser)
		s.Equal(s.publisher, svc.auditPublisher)
	})
}

// =============================================================================
// Login
// =============================================================================

func (s *StudentServiceSuite) TestLogin_MissingToken() {
	_, err := s.service.Login(s.ctx, "   ")
	s.assertCode(err, dErrors.CodeBadRequest, "Firebase ID token is required")
}

func (s *StudentServiceSuite) TestLogin_TokenFailures() {
	s.Run("expired token keeps the verifier's message", func() {
		expiredErr := dErrors.Wrap(errors.Join(idtoken.ErrTokenExpired, errors.New("exp")),
			dErrors.CodeUnauthorized, "Token expired. Please sign in again.")
		s.verifier.EXPECT().Verify(gomock.Any(), "tok").Return(nil, expiredErr)
		s.expectAudit(audit.EventSignInRejected)

		_, err := s.service.Login(s.ctx, "tok")
		s.assertCode(err, dErrors.CodeUnauthorized, "Token expired. Please sign in again.")
		s.ErrorIs(err, idtoken.ErrTokenExpired)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.TokenFailures.WithLabelValues("expired")))
	})

	s.Run("plain verifier error becomes invalid token", func() {
		s.verifier.EXPECT().Verify(gomock.Any(), "tok").Return(nil, errors.New("jwks unreachable"))
		s.expectAudit(audit.EventSignInRejected)

		_, err := s.service.Login(s.ctx, "tok")
		s.assertCode(err, dErrors.CodeUnauthorized, "Invalid token. Please sign in again.")
		s.Equal(1.0, testutil.ToFloat64(s.metrics.TokenFailures.WithLabelValues("invalid")))
	})
}

func (s *StudentServiceSuite) TestLogin_ForeignDomainIsForbidden() {
	s.verifier.EXPECT().Verify(gomock.Any(), "tok").
		Return(&idtoken.Claims{UID: "uid-1", Email: "someone@gmail.com"}, nil)
	s.expectAudit(audit.EventSignInRejected)

	_, err := s.service.Login(s.ctx, "tok")
	s.assertCode(err, dErrors.CodeForbidden, "Access denied. Only @sece.ac.in email addresses are allowed.")
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Logins.WithLabelValues(metrics.LoginRejected)))
}

func (s *StudentServiceSuite) TestLogin_UnparseableEmail() {
	s.verifier.EXPECT().Verify(gomock.Any(), "tok").
		Return(&idtoken.Claims{UID: "uid-1", Email: "principal@sece.ac.in"}, nil)
	s.expectAudit(audit.EventSignInRejected)

	_, err := s.service.Login(s.ctx, "tok")
	s.assertCode(err, dErrors.CodeBadRequest, "Invalid email format. Expected format: name.year+department@sece.ac.in")
	s.ErrorIs(err, identity.ErrInvalidFormat)
}

func (s *StudentServiceSuite) TestLogin_InvalidLoginData() {
	s.verifier.EXPECT().Verify(gomock.Any(), "tok").
		Return(&idtoken.Claims{UID: "", Email: "mahaveer.k2023it@sece.ac.in"}, nil)
	s.expectAudit(audit.EventSignInRejected)

	_, err := s.service.Login(s.ctx, "tok")
	s.assertCode(err, dErrors.CodeValidation, "Invalid student data")
	de, _ := dErrors.As(err)
	s.Equal([]string{"Valid UID is required"}, de.Details)
}

func (s *StudentServiceSuite) TestLogin_FirstSignInCreatesProfile() {
	s.verifier.EXPECT().Verify(gomock.Any(), "tok").Return(s.claims(), nil)
	s.store.EXPECT().CreateIfAbsent(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p *models.Profile) error {
			s.Equal("uid-1", p.UID)
			s.Equal("Mahaveer K", p.Name)
			s.Equal("mahaveer.k2023it@sece.ac.in", p.Email)
			s.Equal("IT", p.Department)
			s.Equal("2023", p.Year)
			s.Equal(s.now, p.LastLoginTime)
			s.Require().NotNil(p.CreatedAt)
			s.Equal(s.now, *p.CreatedAt)
			s.Nil(p.RollNumber)
			return nil
		})
	s.expectAudit(audit.EventStudentRegistered)

	result, err := s.service.Login(s.ctx, "tok")
	s.Require().NoError(err)
	s.True(result.Created)
	s.Equal("Mahaveer K", result.Profile.Name)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Logins.WithLabelValues(metrics.LoginCreated)))
}

func (s *StudentServiceSuite) TestLogin_ReturningStudentTouchesLastLogin() {
	existing := s.storedProfile()
	existing.RollNumber = models.StringPtr("23IT042")
	touched := existing.Clone()
	touched.LastLoginTime = s.now

	s.verifier.EXPECT().Verify(gomock.Any(), "tok").Return(s.claims(), nil)
	s.store.EXPECT().CreateIfAbsent(gomock.Any(), gomock.Any()).Return(sentinel.ErrConflict)
	s.store.EXPECT().TouchLastLogin(gomock.Any(), "uid-1", s.now).Return(touched, nil)
	s.expectAudit(audit.EventStudentSignedIn)

	result, err := s.service.Login(s.ctx, "tok")
	s.Require().NoError(err)
	s.False(result.Created)
	s.Equal("23IT042", *result.Profile.RollNumber)
	s.Equal(s.now, result.Profile.LastLoginTime)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Logins.WithLabelValues(metrics.LoginReturning)))
}

func (s *StudentServiceSuite) TestLogin_StoreFailures() {
	s.Run("create failure is internal", func() {
		s.verifier.EXPECT().Verify(gomock.Any(), "tok").Return(s.claims(), nil)
		s.store.EXPECT().CreateIfAbsent(gomock.Any(), gomock.Any()).Return(errors.New("db down"))

		_, err := s.service.Login(s.ctx, "tok")
		s.assertCode(err, dErrors.CodeInternal, "Authentication failed")
	})

	s.Run("touch failure is internal", func() {
		s.verifier.EXPECT().Verify(gomock.Any(), "tok").Return(s.claims(), nil)
		s.store.EXPECT().CreateIfAbsent(gomock.Any(), gomock.Any()).Return(sentinel.ErrConflict)
		s.store.EXPECT().TouchLastLogin(gomock.Any(), "uid-1", s.now).Return(nil, errors.New("db down"))

		_, err := s.service.Login(s.ctx, "tok")
		s.assertCode(err, dErrors.CodeInternal, "Authentication failed")
	})
}

func (s *StudentServiceSuite) TestLogin_AuditFailureDoesNotFailSignIn() {
	s.verifier.EXPECT().Verify(gomock.Any(), "tok").Return(s.claims(), nil)
	s.store.EXPECT().CreateIfAbsent(gomock.Any(), gomock.Any()).Return(nil)
	s.publisher.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))

	result, err := s.service.Login(s.ctx, "tok")
	s.Require().NoError(err)
	s.True(result.Created)
}

// =============================================================================
// GetProfile
// =============================================================================

func (s *StudentServiceSuite) TestGetProfile() {
	s.Run("empty uid", func() {
		_, err := s.service.GetProfile(s.ctx, "")
		s.assertCode(err, dErrors.CodeBadRequest, "Student UID is required")
	})

	s.Run("missing student", func() {
		s.store.EXPECT().FindByUID(gomock.Any(), "ghost").Return(nil, sentinel.ErrNotFound)
		_, err := s.service.GetProfile(s.ctx, "ghost")
		s.assertCode(err, dErrors.CodeNotFound, "Student not found")
	})

	s.Run("store failure", func() {
		s.store.EXPECT().FindByUID(gomock.Any(), "uid-1").Return(nil, errors.New("timeout"))
		_, err := s.service.GetProfile(s.ctx, "uid-1")
		s.assertCode(err, dErrors.CodeInternal, "Error fetching profile")
	})

	s.Run("found", func() {
		s.store.EXPECT().FindByUID(gomock.Any(), "uid-1").Return(s.storedProfile(), nil)
		s.expectAudit(audit.EventProfileViewed)
		p, err := s.service.GetProfile(s.ctx, "uid-1")
		s.Require().NoError(err)
		s.Equal("Mahaveer K", p.Name)
	})
}

// =============================================================================
// UpdateProfile
// =============================================================================

func (s *StudentServiceSuite) TestUpdateProfile_EmptyUID() {
	_, err := s.service.UpdateProfile(s.ctx, " ", map[string]any{"gender": "Male"})
	s.assertCode(err, dErrors.CodeBadRequest, "Student UID is required")
}

func (s *StudentServiceSuite) TestUpdateProfile_InvalidFieldsNeverReachStore() {
	s.expectAudit(audit.EventProfileUpdateRejected)

	_, err := s.service.UpdateProfile(s.ctx, "uid-1", map[string]any{
		"email":  "x@sece.ac.in",
		"gender": "Unknown",
	})
	s.assertCode(err, dErrors.CodeValidation, "Invalid update data")
	de, _ := dErrors.As(err)
	s.Equal([]string{
		"Field 'email' cannot be updated",
		`Gender must be "Male", "Female", or "Other"`,
	}, de.Details)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.ProfileUpdates.WithLabelValues("rejected")))
}

func (s *StudentServiceSuite) TestUpdateProfile_AppliesSanitizedUpdate() {
	updated := s.storedProfile()
	updated.IsResident = models.StringPtr(models.ResidentNo)

	want := models.ProfileUpdate{
		IsResident: models.Some(models.ResidentNo),
		Block:      models.Null(),
		RoomNumber: models.Null(),
	}
	s.store.EXPECT().ApplyUpdate(gomock.Any(), "uid-1", want, s.now).Return(updated, nil)
	s.expectAudit(audit.EventProfileUpdated)

	p, err := s.service.UpdateProfile(s.ctx, "uid-1", map[string]any{
		"isResident": "No",
		"block":      "A",
		"roomNumber": "101",
	})
	s.Require().NoError(err)
	s.Equal(models.ResidentNo, *p.IsResident)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.ProfileUpdates.WithLabelValues("applied")))
}

func (s *StudentServiceSuite) TestUpdateProfile_StoreErrors() {
	s.Run("missing student", func() {
		s.store.EXPECT().ApplyUpdate(gomock.Any(), "ghost", gomock.Any(), s.now).Return(nil, sentinel.ErrNotFound)
		_, err := s.service.UpdateProfile(s.ctx, "ghost", map[string]any{"gender": "Other"})
		s.assertCode(err, dErrors.CodeNotFound, "Student not found")
	})

	s.Run("store failure", func() {
		s.store.EXPECT().ApplyUpdate(gomock.Any(), "uid-1", gomock.Any(), s.now).Return(nil, errors.New("boom"))
		_, err := s.service.UpdateProfile(s.ctx, "uid-1", map[string]any{"gender": "Other"})
		s.assertCode(err, dErrors.CodeInternal, "Error updating profile")
	})
}

func TestChangedFields(t *testing.T) {
	got := changedFields(models.ProfileUpdate{
		Gender:     models.Some(models.GenderOther),
		RollNumber: models.Some("R1"),
	})
	if got != "rollNumber,gender" {
		t.Fatalf("changedFields = %q", got)
	}
}

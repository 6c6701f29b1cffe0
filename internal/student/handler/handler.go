package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"rollcall/internal/platform/middleware"
	"rollcall/internal/student/models"
	"rollcall/internal/student/service"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/httputil"
	"rollcall/pkg/platform/middleware/auth"
	"rollcall/pkg/requestcontext"
)

const maxBodyBytes = 1 << 20

// Service is the student use-case surface the handler drives.
type Service interface {
	Login(ctx context.Context, token string) (*service.LoginResult, error)
	GetProfile(ctx context.Context, uid string) (*models.Profile, error)
	UpdateProfile(ctx context.Context, uid string, fields map[string]any) (*models.Profile, error)
}

// Handler exposes sign-in and profile endpoints.
type Handler struct {
	students    Service
	logger      *slog.Logger
	development bool
	ownerGuard  func(http.Handler) http.Handler
	signInGuard func(http.Handler) http.Handler
}

type Option func(h *Handler)

// WithDevelopmentErrors includes internal error details in 500 responses.
func WithDevelopmentErrors(enabled bool) Option {
	return func(h *Handler) {
		h.development = enabled
	}
}

// WithOwnerVerifier requires a bearer token owned by the profile's student on
// the profile routes.
func WithOwnerVerifier(verifier auth.TokenVerifier) Option {
	return func(h *Handler) {
		if verifier != nil {
			h.ownerGuard = auth.RequireOwner(verifier, "uid", h.logger)
		}
	}
}

// WithSignInLimit runs mw in front of the sign-in route only, typically a
// per-client rate limit.
func WithSignInLimit(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.signInGuard = mw
	}
}

func New(students Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{students: students, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the routes at the root and again under /api/auth, where
// sign-in is POST /api/auth/verify.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) { h.routes(r, "/auth/verify") })
	r.Route("/api/auth", func(r chi.Router) { h.routes(r, "/verify") })
}

func (h *Handler) routes(r chi.Router, verifyPath string) {
	r.Use(middleware.ContentTypeJSON)
	r.Group(func(r chi.Router) {
		if h.signInGuard != nil {
			r.Use(h.signInGuard)
		}
		r.Post(verifyPath, h.handleVerify)
	})
	r.Group(func(r chi.Router) {
		if h.ownerGuard != nil {
			r.Use(h.ownerGuard)
		}
		r.Get("/profile/{uid}", h.handleGetProfile)
		r.Put("/profile/{uid}", h.handleUpdateProfile)
	})
}

type verifyRequest struct {
	Token string `json:"token"`
}

// StudentResponse is the success envelope of every student endpoint.
type StudentResponse struct {
	Message string          `json:"message"`
	Student *models.Profile `json:"student"`
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	var req verifyRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.logger.WarnContext(ctx, "invalid verify request",
			"request_id", requestID,
			"error", err.Error(),
		)
		h.writeError(ctx, w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.students.Login(ctx, req.Token)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	status, message := http.StatusOK, "Authentication successful"
	if result.Created {
		status, message = http.StatusCreated, "New student registered successfully"
	}
	httputil.WriteJSON(w, status, StudentResponse{Message: message, Student: result.Profile})
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	profile, err := h.students.GetProfile(ctx, chi.URLParam(r, "uid"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, StudentResponse{Message: "Profile retrieved successfully", Student: profile})
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	var fields map[string]any
	if err := decodeBody(w, r, &fields); err != nil {
		h.logger.WarnContext(ctx, "invalid profile update request",
			"request_id", requestID,
			"error", err.Error(),
		)
		h.writeError(ctx, w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if fields == nil {
		fields = map[string]any{}
	}

	profile, err := h.students.UpdateProfile(ctx, chi.URLParam(r, "uid"), fields)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, StudentResponse{Message: "Profile updated successfully", Student: profile})
}

// decodeBody reads one JSON value into dst. An empty body leaves dst zero.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if de, ok := dErrors.As(err); ok {
		status = httputil.ToHTTPStatus(de.Code)
	}
	requestID := requestcontext.RequestID(ctx)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "request failed",
			"request_id", requestID,
			"error", err.Error(),
		)
	} else {
		h.logger.WarnContext(ctx, "request rejected",
			"request_id", requestID,
			"status", status,
			"error", err.Error(),
		)
	}

	if h.development {
		httputil.WriteErrorVerbose(w, err)
		return
	}
	httputil.WriteError(w, err)
}

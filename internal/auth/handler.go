package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/redmonkez12/credentials-api/internal/httputil"
	"github.com/redmonkez12/credentials-api/internal/logging"
)

const (
	msgUserExists         = "User already exists"
	msgAttendantExists    = "Attendant already exists"
	msgInvalidCredentials = "Invalid Credentials"
	msgForbidden          = "Only account owners can add attendants"
	msgInvalidBody        = "Invalid request body"
)

// Handler contains HTTP handlers for the credential endpoints
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register handles account registration
// @Summary      Register an account
// @Description  Create an account and receive a token for it. A welcome email is sent in the background.
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        request body RegisterRequest true "Account details"
// @Success      200 {object} AuthToken
// @Failure      400 {object} httputil.MessageResponse "Validation error or account already exists"
// @Failure      500 {object} httputil.MessageResponse "Server error"
// @Router       /api/users [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req RegisterRequest
	if !decode(w, r, &req, logger) {
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	token, err := h.service.Register(r.Context(), req.input())
	if err != nil {
		if errors.Is(err, ErrDuplicateAccount) {
			logger.Warn("registration failed: account already exists")
			httputil.RespondMessage(w, msgUserExists, http.StatusBadRequest)
			return
		}
		serverError(w, logger, "registration failed", err)
		return
	}

	logger.Info("account registered successfully")
	httputil.RespondJSON(w, token, http.StatusOK)
}

// Login handles account authentication
// @Summary      Authenticate an account
// @Description  Exchange email and password for a token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Credentials"
// @Success      200 {object} AuthToken
// @Failure      400 {object} httputil.MessageResponse "Validation error or invalid credentials"
// @Failure      500 {object} httputil.MessageResponse "Server error"
// @Router       /api/auth [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req LoginRequest
	if !decode(w, r, &req, logger) {
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	token, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			logger.Warn("login failed: invalid credentials")
			httputil.RespondMessage(w, msgInvalidCredentials, http.StatusBadRequest)
			return
		}
		serverError(w, logger, "login failed", err)
		return
	}

	logger.Info("account logged in successfully")
	httputil.RespondJSON(w, token, http.StatusOK)
}

// LoginAttendant handles attendant authentication
// @Summary      Authenticate an attendant
// @Description  Exchange an attendant's email and password for a token scoped to the owning account
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Credentials"
// @Success      200 {object} AuthToken
// @Failure      400 {object} httputil.MessageResponse "Validation error or invalid credentials"
// @Failure      500 {object} httputil.MessageResponse "Server error"
// @Router       /api/auth/attendant [post]
func (h *Handler) LoginAttendant(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req LoginRequest
	if !decode(w, r, &req, logger) {
		return
	}

	logger = logger.WithFields(map[string]any{"email_attendant": req.Email})

	token, err := h.service.LoginAttendant(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			logger.Warn("attendant login failed: invalid credentials")
			httputil.RespondMessage(w, msgInvalidCredentials, http.StatusBadRequest)
			return
		}
		serverError(w, logger, "attendant login failed", err)
		return
	}

	logger.Info("attendant logged in successfully")
	httputil.RespondJSON(w, token, http.StatusOK)
}

// Me resolves the token's principal
// @Summary      Resolve the current principal
// @Description  Returns the account, or the attendant for attendant tokens. Returns null if the attendant no longer exists.
// @Tags         auth
// @Produce      json
// @Security     TokenAuth
// @Success      200 {object} account.Account
// @Failure      401 {object} httputil.MessageResponse "Missing or invalid token"
// @Failure      500 {object} httputil.MessageResponse "Server error"
// @Router       /api/auth [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	claims, ok := GetClaimsFromContext(r.Context())
	if !ok {
		httputil.RespondMessage(w, msgNoToken, http.StatusUnauthorized)
		return
	}

	logger = logger.WithFields(map[string]any{"account_id": claims.AccountID, "role": claims.Role})

	principal, err := h.service.Resolve(r.Context(), claims)
	if err != nil {
		serverError(w, logger, "identity resolution failed", err)
		return
	}

	httputil.RespondJSON(w, principal, http.StatusOK)
}

// AddAttendant creates an attendant under the caller's account
// @Summary      Add an attendant
// @Description  Create an attendant that can sign in on behalf of the caller's account
// @Tags         attendants
// @Accept       json
// @Produce      json
// @Security     TokenAuth
// @Param        request body AttendantRequest true "Attendant details"
// @Success      201 {object} account.Attendant
// @Failure      400 {object} httputil.MessageResponse "Validation error or attendant already exists"
// @Failure      401 {object} httputil.MessageResponse "Missing or invalid token"
// @Failure      403 {object} httputil.MessageResponse "Caller is not an account owner"
// @Failure      500 {object} httputil.MessageResponse "Server error"
// @Router       /api/attendants [post]
func (h *Handler) AddAttendant(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	claims, ok := GetClaimsFromContext(r.Context())
	if !ok {
		httputil.RespondMessage(w, msgNoToken, http.StatusUnauthorized)
		return
	}

	var req AttendantRequest
	if !decode(w, r, &req, logger) {
		return
	}

	logger = logger.WithFields(map[string]any{"account_id": claims.AccountID, "email_attendant": req.Email})

	att, err := h.service.AddAttendant(r.Context(), claims.Claims, req.input())
	if err != nil {
		switch {
		case errors.Is(err, ErrDuplicateAttendant):
			logger.Warn("attendant creation failed: attendant already exists")
			httputil.RespondMessage(w, msgAttendantExists, http.StatusBadRequest)
		case errors.Is(err, ErrForbiddenRole):
			logger.Warn("attendant creation failed: caller is not an account owner")
			httputil.RespondMessage(w, msgForbidden, http.StatusForbidden)
		default:
			serverError(w, logger, "attendant creation failed", err)
		}
		return
	}

	logger.Info("attendant created successfully", "attendant_id", att.ID)
	httputil.RespondJSON(w, att, http.StatusCreated)
}

type validatable interface {
	Validate() error
}

// decode reads and validates a JSON body, writing the 400 itself on failure
func decode(w http.ResponseWriter, r *http.Request, dst validatable, logger *logging.Logger) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		logger.Warn("invalid request body", "error", err.Error())
		httputil.RespondMessage(w, msgInvalidBody, http.StatusBadRequest)
		return false
	}

	if err := dst.Validate(); err != nil {
		fields := FieldErrors(err)
		if fields == nil {
			logger.Error("request validation errored", "error", err.Error())
			httputil.RespondServerError(w)
			return false
		}
		logger.Warn("request validation failed", "fields", len(fields))
		httputil.RespondValidation(w, fields)
		return false
	}

	return true
}

func serverError(w http.ResponseWriter, logger *logging.Logger, msg string, err error) {
	logger.Error(msg+": internal error", "error", err.Error(), "storage", IsStorageError(err))
	httputil.RespondServerError(w)
}

package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/video-rental/internal/config"
	"github.com/iliyamo/video-rental/internal/middleware"
	"github.com/iliyamo/video-rental/internal/model"
	"github.com/iliyamo/video-rental/internal/repository"
	"github.com/iliyamo/video-rental/internal/utils"
)

// AuthHandler bundles dependencies for the staff auth endpoints.
type AuthHandler struct {
	Cfg   config.Config
	Users *repository.UserRepo
	Log   *slog.Logger
}

func NewAuthHandler(cfg config.Config, users *repository.UserRepo, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: users, Log: orDefault(logger)}
}

// ----- DTOs -----

type registerReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"omitempty,oneof=CLERK MANAGER"` // only CLERK can be self-assigned
}
type setRoleReq struct {
	Role string `json:"role" validate:"required,oneof=CLERK MANAGER"`
}
type loginReq struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}
type authResp struct {
	User   userPart  `json:"user"`
	Access tokenPart `json:"access"`
}

// Register creates a clerk account and returns an access token for it.
// Manager rights are granted by an existing manager through SetRole.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, errors.New("invalid body"))
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Role = strings.ToUpper(strings.TrimSpace(req.Role))
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err)
	}
	if req.Role == model.RoleManager {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "manager role is granted by a manager"})
	}
	req.Role = model.RoleClerk

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	uid, err := h.Users.Create(ctx, req.Email, req.Password, req.Role, h.Cfg.BcryptCost)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, uid, req.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, authResp{
		User:   userPart{ID: uid, Email: req.Email, Role: req.Role},
		Access: tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Login verifies the credentials and issues a fresh access token. Unknown
// emails and wrong passwords get the same 401.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bindAndValidate(c, &req); err != nil {
		return badRequest(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, authResp{
		User:   userPart{ID: u.ID, Email: u.Email, Role: u.Role},
		Access: tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Me returns the staff account behind the bearer token.
func (h *AuthHandler) Me(c echo.Context) error {
	uid, ok := c.Get(middleware.ContextUserID).(uint64)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}
	u, err := h.Users.GetByID(c.Request().Context(), uid)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unknown user"})
	}
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, userPart{ID: u.ID, Email: u.Email, Role: u.Role})
}

// SetRole changes another staff member's role. Managers cannot demote
// themselves, so a deployment never loses its last manager this way.
func (h *AuthHandler) SetRole(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return invalidID(c, "user")
	}
	var req setRoleReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, errors.New("invalid body"))
	}
	req.Role = strings.ToUpper(strings.TrimSpace(req.Role))
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err)
	}
	if self, _ := c.Get(middleware.ContextUserID).(uint64); self == id && req.Role != model.RoleManager {
		return c.JSON(http.StatusConflict, echo.Map{"error": "managers cannot demote themselves"})
	}

	ctx := c.Request().Context()
	if err := h.Users.SetRole(ctx, id, req.Role); err != nil {
		return respondError(c, h.Log, err)
	}
	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	h.Log.InfoContext(ctx, "staff role changed", "user_id", id, "role", u.Role)
	return c.JSON(http.StatusOK, userPart{ID: u.ID, Email: u.Email, Role: u.Role})
}

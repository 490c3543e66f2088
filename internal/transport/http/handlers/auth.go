package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/busline/backoffice-iam/internal/transport/http/middleware"
	"github.com/busline/backoffice-iam/internal/usecase"
)

// Authenticator verifies console credentials.
type Authenticator interface {
	LoginAdmin(ctx context.Context, username, password, ip, userAgent string) (*usecase.LoginResult, error)
	LoginVendorUser(ctx context.Context, email, password, ip, userAgent string) (*usecase.LoginResult, error)
}

// AuthHandler exposes the login endpoints of both principal kinds.
type AuthHandler struct {
	auth Authenticator
	now  func() time.Time
}

// NewAuthHandler constructs an auth handler.
func NewAuthHandler(auth Authenticator) *AuthHandler {
	return &AuthHandler{auth: auth, now: time.Now}
}

// RegisterRoutes binds login routes to the provided router group.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, guards ...gin.HandlerFunc) {
	if r == nil {
		return
	}

	r.POST("/admin/login", chain(guards, h.LoginAdmin)...)
	r.POST("/vendor/login", chain(guards, h.LoginVendorUser)...)
}

func chain(guards []gin.HandlerFunc, handler gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(guards)+1)
	out = append(out, guards...)
	return append(out, handler)
}

// LoginAdmin godoc
// @Summary Admin console login
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body AdminLoginRequest true "Credentials"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 429 {object} middleware.RateLimitResponse
// @Router /api/v1/auth/admin/login [post]
func (h *AuthHandler) LoginAdmin(c *gin.Context) {
	var req AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "username and password are required"))
		return
	}

	reqCtx := middleware.GetRequestContext(c)
	result, err := h.auth.LoginAdmin(c.Request.Context(), req.Username, req.Password, reqCtx.IP, reqCtx.UserAgent)
	h.respond(c, result, err, "admin")
}

// LoginVendorUser godoc
// @Summary Vendor sub-user login
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body VendorLoginRequest true "Credentials"
// @Success 200 {object} LoginResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/auth/vendor/login [post]
func (h *AuthHandler) LoginVendorUser(c *gin.Context) {
	var req VendorLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "email and password are required"))
		return
	}

	reqCtx := middleware.GetRequestContext(c)
	result, err := h.auth.LoginVendorUser(c.Request.Context(), req.Email, req.Password, reqCtx.IP, reqCtx.UserAgent)
	h.respond(c, result, err, "vendor_user")
}

func (h *AuthHandler) respond(c *gin.Context, result *usecase.LoginResult, err error, kind string) {
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid credentials"},
		}, http.StatusInternalServerError, "login failed")
		return
	}

	middleware.SetAuditActor(c, result.Principal.ID)
	middleware.SetAudit(c, middleware.AuditRecord{
		Action:       "auth.login",
		ResourceType: "session",
		ResourceID:   result.Session.Claims.SessionID,
		Detail:       map[string]any{"principal_kind": kind},
	})

	c.JSON(http.StatusOK, LoginResponse{
		Principal:    newPrincipalPayload(result.Principal),
		TokenPayload: newTokenPayload(result.Session, h.now()),
	})
}

// File: internal/user/handler.go
package user

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"profile_hub_backend/internal/common"
)

// Handler translates verified principals and request bodies into profile
// service calls and maps results to responses.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new user handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes sets up the account and public profile routes. authMW guards
// everything except the username check and the public profile lookup, which
// get the public rate limiter instead.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, authMW, publicMW gin.HandlerFunc) {
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/check-username", publicMW, h.checkUsername)

		authenticated := authGroup.Group("")
		authenticated.Use(authMW)
		{
			authenticated.POST("/login", h.login)
			authenticated.POST("/register", h.register)
			authenticated.GET("/user", h.getUser)
			authenticated.PUT("/update", h.update)
			authenticated.DELETE("/delete", h.deleteAccount)
		}
	}

	profileGroup := router.Group("/profile", publicMW)
	{
		profileGroup.GET("/get/:username", h.publicProfile)
	}
}

func (h *Handler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindingError(c, "login", err)
		return
	}

	uid := common.GetFirebaseUIDFromContext(c)
	if uid == "" {
		common.RespondWithError(c, common.ErrUnauthorized.WithDetails("Invalid token"))
		return
	}
	email := common.GetUserEmailFromContext(c)

	profile, err := h.service.Login(c.Request.Context(), uid, email, req.Provider, req.DisplayName)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": profile})
}

func (h *Handler) register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindingError(c, "register", err)
		return
	}

	uid := common.GetFirebaseUIDFromContext(c)
	email := common.GetUserEmailFromContext(c)
	if uid == "" || email == "" {
		common.RespondWithError(c, common.ErrUnauthorized.WithDetails("Invalid token"))
		return
	}

	profile, err := h.service.Register(c.Request.Context(), uid, email, req.Username, req.PhotoURL)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": profile})
}

func (h *Handler) getUser(c *gin.Context) {
	uid := common.GetFirebaseUIDFromContext(c)
	if uid == "" {
		common.RespondWithError(c, common.ErrUnauthorized.WithDetails("Invalid token"))
		return
	}

	profile, err := h.service.GetByUID(c.Request.Context(), uid)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": profile})
}

func (h *Handler) update(c *gin.Context) {
	var attrs map[string]interface{}
	if err := c.ShouldBindJSON(&attrs); err != nil {
		h.respondBindingError(c, "update", err)
		return
	}

	uid := common.GetFirebaseUIDFromContext(c)
	if uid == "" {
		common.RespondWithError(c, common.ErrUnauthorized.WithDetails("Invalid token"))
		return
	}

	profile, err := h.service.Update(c.Request.Context(), uid, attrs)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": profile})
}

func (h *Handler) deleteAccount(c *gin.Context) {
	uid := common.GetFirebaseUIDFromContext(c)
	if uid == "" {
		common.RespondWithError(c, common.ErrUnauthorized.WithDetails("Invalid token"))
		return
	}

	if err := h.service.DeleteAccount(c.Request.Context(), uid); err != nil {
		common.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Account deleted successfully"})
}

func (h *Handler) checkUsername(c *gin.Context) {
	var req CheckUsernameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("Username is required"))
		return
	}

	taken, err := h.service.UsernameExists(c.Request.Context(), req.Username)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	if taken {
		c.JSON(http.StatusOK, gin.H{"available": false, "message": "Username is already taken"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"available": true, "message": "Username is available"})
}

func (h *Handler) publicProfile(c *gin.Context) {
	username := c.Param("username")

	profile, err := h.service.PublicProfile(c.Request.Context(), username)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"userinfo": profile})
}

func (h *Handler) respondBindingError(c *gin.Context, op string, err error) {
	h.logger.Warn("Invalid request body", zap.String("operation", op), zap.Error(err))
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		common.RespondWithError(c, common.NewValidationAPIError(common.FormatValidationErrors(ve)))
		return
	}
	common.RespondWithError(c, common.ErrBadRequest.WithDetails(err.Error()))
}

package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"docqa-go/internal/middleware"
	"docqa-go/internal/model"
	"docqa-go/internal/service"
	"docqa-go/pkg/log"
)

// UserHandler 负责处理所有与用户相关的 API 请求。
type UserHandler struct {
	userService service.UserService
}

// NewUserHandler 创建一个新的 UserHandler 实例。
func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// RegisterRequest 定义了用户注册 API 的请求体结构。
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register 处理用户注册请求。
func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Register: Invalid request payload, error: %v", err)
		badRequest(c, "Invalid request payload: username, email and password are required")
		return
	}

	user, err := h.userService.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		respondError(c, "Register", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":   "User created successfully!",
		"user_data": user,
	})
}

// LoginRequest 定义了用户登录 API 的请求体结构。
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 处理用户登录请求。
func (h *UserHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Login: Invalid request payload, error: %v", err)
		badRequest(c, "Invalid request payload: email and password are required")
		return
	}

	user, accessToken, err := h.userService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, "Login", err)
		return
	}

	log.Infof("User '%s' logged in successfully", user.Username)
	c.JSON(http.StatusOK, gin.H{
		"message":      "login successfull",
		"user_data":    user,
		"access_token": accessToken,
		"token_type":   "bearer",
	})
}

// GetProfile 获取当前登录用户的信息。
// 用户信息已经由 AuthMiddleware 注入到上下文中。
func (h *UserHandler) GetProfile(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Welcome, %s!", user.Email),
		"user_data": gin.H{
			"username": user.Username,
		},
	})
}

// Logout 将当前 token 加入黑名单。
func (h *UserHandler) Logout(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.userService.Logout(c.Request.Context(), c.GetString(middleware.ContextTokenKey)); err != nil {
		respondError(c, "Logout", err)
		return
	}

	log.Infof("User '%s' logged out successfully", user.Username)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// ListUsers 返回所有用户（不含密码）。
func (h *UserHandler) ListUsers(c *gin.Context) {
	users, err := h.userService.ListUsers(c.Request.Context())
	if err != nil {
		respondError(c, "ListUsers", err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func currentUser(c *gin.Context) (*model.User, bool) {
	value, exists := c.Get(middleware.ContextUserKey)
	user, ok := value.(*model.User)
	if !exists || !ok || user == nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "Could not load the current user",
		})
		return nil, false
	}
	return user, true
}

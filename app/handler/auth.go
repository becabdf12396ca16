package handler

import (
	"net/http"
	"time"

	"auto-tube/app/auth"
	"auto-tube/app/config"
	"auto-tube/app/database"
	"auto-tube/app/model"
	"auto-tube/app/utils"

	"github.com/gin-gonic/gin"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	config     *config.Config
	jwtService *auth.JWTService
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		config:     cfg,
		jwtService: auth.NewJWTService(cfg),
	}
}

// 创建成功响应
func (h *AuthHandler) success(c *gin.Context, data any, message string) {
	c.JSON(http.StatusOK, ApiResponse{
		Code:    0,
		Message: message,
		Data:    data,
	})
}

// 创建错误响应
func (h *AuthHandler) error(c *gin.Context, statusCode int, errorCode int, message string) {
	c.JSON(statusCode, ApiResponse{
		Code:    errorCode,
		Message: message,
		Data:    nil,
	})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 用户登录
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.error(c, http.StatusBadRequest, 400, err.Error())
		return
	}

	var user model.User
	if err := database.DB.Where("username = ? AND is_active = ?", req.Username, true).
		First(&user).Error; err != nil {
		h.error(c, http.StatusUnauthorized, 401, "用户名或密码错误")
		return
	}
	if !utils.VerifyPassword(req.Password, user.Password) {
		h.error(c, http.StatusUnauthorized, 401, "用户名或密码错误")
		return
	}

	token, err := h.jwtService.GenerateToken(user.ID, user.Username)
	if err != nil {
		h.error(c, http.StatusInternalServerError, 500, "生成令牌失败")
		return
	}

	now := time.Now()
	user.LastLogin = &now
	database.DB.Save(&user)

	h.success(c, gin.H{"token": token, "username": user.Username}, "登录成功")
}

type refreshRequest struct {
	Token string `json:"token" binding:"required"`
}

// RefreshToken 刷新令牌
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.error(c, http.StatusBadRequest, 400, err.Error())
		return
	}

	token, err := h.jwtService.RefreshToken(req.Token)
	if err != nil {
		h.error(c, http.StatusUnauthorized, 401, "令牌无效或已过期")
		return
	}
	h.success(c, gin.H{"token": token}, "刷新成功")
}

// Me 返回当前登录用户信息
func (h *AuthHandler) Me(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		h.error(c, http.StatusUnauthorized, 401, "用户未认证")
		return
	}

	var user model.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		h.error(c, http.StatusNotFound, 404, "用户不存在")
		return
	}
	h.success(c, user, "ok")
}

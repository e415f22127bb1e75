package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Success 200
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: http.StatusOK, Message: "success", Data: data})
}

// Created 201
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Code: http.StatusCreated, Message: "created", Data: data})
}

// Fail 带错误码的失败响应
func Fail(c *gin.Context, status int, errCode, message string, data interface{}) {
	c.AbortWithStatusJSON(status, Response{Code: status, Message: message, Error: errCode, Data: data})
}

// BadRequest 400
func BadRequest(c *gin.Context, message string) {
	Fail(c, http.StatusBadRequest, "validation_error", message, nil)
}

// Unauthorized 401
func Unauthorized(c *gin.Context, message string) {
	Fail(c, http.StatusUnauthorized, "unauthorized", message, nil)
}

// Forbidden 403
func Forbidden(c *gin.Context, message string) {
	Fail(c, http.StatusForbidden, "forbidden", message, nil)
}

// NotFound 404
func NotFound(c *gin.Context, message string) {
	Fail(c, http.StatusNotFound, "not_found", message, nil)
}

// Conflict 409
func Conflict(c *gin.Context, errCode, message string, data interface{}) {
	Fail(c, http.StatusConflict, errCode, message, data)
}

// TooManyRequests 429
func TooManyRequests(c *gin.Context) {
	Fail(c, http.StatusTooManyRequests, "rate_limited", "too many requests", nil)
}

// InternalError 500，错误详情只写日志不返回给客户端
func InternalError(c *gin.Context, err error) {
	if err != nil {
		_ = c.Error(err)
	}
	Fail(c, http.StatusInternalServerError, "internal_error", "internal server error", nil)
}

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/smerrill2/social-learning-app-sub001/internal/apperr"
	"github.com/smerrill2/social-learning-app-sub001/internal/logger"
	"github.com/smerrill2/social-learning-app-sub001/internal/metrics"
)

const (
	UserIDHeader = "X-User-ID"
	userIDKey    = "user_id"
)

// RequestLogger 记录每个请求；5xx 为 error，4xx 为 warn
func RequestLogger(log *logger.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)
		m.RecordHTTP(c.Request.Method, route, strconv.Itoa(status), elapsed.Seconds())

		kv := []interface{}{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
		}
		if id, ok := c.Get(userIDKey); ok {
			kv = append(kv, "user_id", id)
		}
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("request failed", kv...)
		case status >= http.StatusBadRequest:
			log.Warn("request rejected", kv...)
		default:
			log.Info("request", kv...)
		}
	}
}

// RequireUser 从 X-User-ID 读取用户身份，认证由上游负责
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.GetHeader(UserIDHeader))
		if err != nil || id == uuid.Nil {
			respondError(c, nil, apperr.ErrUnauthorized)
			c.Abort()
			return
		}
		c.Set(userIDKey, id)
		c.Next()
	}
}

func userID(c *gin.Context) uuid.UUID {
	return c.MustGet(userIDKey).(uuid.UUID)
}

type errorBody struct {
	Message string              `json:"message"`
	Code    string              `json:"code"`
	Fields  []apperr.FieldError `json:"fields,omitempty"`
}

// respondError 统一错误信封；5xx 不向客户端暴露内部错误
func respondError(c *gin.Context, log *logger.Logger, err error) {
	status, code := apperr.Status(err)
	body := errorBody{Message: err.Error(), Code: code}

	var verr *apperr.ValidationError
	if errors.As(err, &verr) {
		body.Fields = verr.Fields
	}
	if status >= http.StatusInternalServerError {
		if log != nil {
			log.Error("handler error", "path", c.Request.URL.Path, "error", err)
		}
		if status == http.StatusInternalServerError {
			body.Message = "internal server error"
		}
	}
	c.JSON(status, gin.H{"error": body})
}

// bindError 请求体解析失败统一按校验错误返回
func bindError(err error) error {
	return apperr.NewValidation([]apperr.FieldError{{Field: "body", Message: err.Error()}})
}

// queryInt 缺省时返回 def，格式错误时返回校验错误
func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.NewValidation([]apperr.FieldError{{Field: name, Message: "must be an integer"}})
	}
	return v, nil
}

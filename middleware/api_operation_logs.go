package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ghostbadfame/CRM-Chase-local/models"
	"github.com/ghostbadfame/CRM-Chase-local/repository"
	"github.com/ghostbadfame/CRM-Chase-local/utils"

	"github.com/gin-gonic/gin"
)

var loggedMethods = map[string]bool{
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodDelete: true,
	http.MethodPatch:  true,
}

var excludedPaths = map[string]bool{
	"/api/auth/validate": true,
	"/api/health":        true,
	"/api/db-status":     true,
	"/api/auth/login":    true,
}

// OperationLoggerMiddleware records every mutating request in the audit log.
// Mount it after AuthMiddleware so the operator is known.
func OperationLoggerMiddleware(store repository.OperationLogStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !shouldLogOperation(c) {
			c.Next()
			return
		}

		startTime := time.Now()

		blw := &bodyLogWriter{
			body:           bytes.NewBufferString(""),
			ResponseWriter: c.Writer,
		}
		c.Writer = blw

		var requestBody interface{}
		if c.Request.Body != nil {
			raw, err := io.ReadAll(c.Request.Body)
			if err != nil {
				utils.Logger.Error().Err(err).Msg("read request body failed")
			} else {
				c.Request.Body = io.NopCloser(bytes.NewBuffer(raw))
				requestBody = decodeBody(raw, c.Request.Header.Get("Content-Type"))
			}
		}

		operatorID, operatorName, operatorRole := extractUserInfo(c)

		c.Next()

		var errorMessage string
		if len(c.Errors) > 0 {
			errorMessage = c.Errors.String()
		}

		operationLog := models.OperationLog{
			RequestID:     c.GetString(utils.RequestIDKey),
			Method:        c.Request.Method,
			Path:          c.Request.URL.Path,
			OperatorID:    operatorID,
			OperatorName:  operatorName,
			OperatorRole:  operatorRole,
			RequestBody:   sanitizeData(requestBody),
			RequestHeader: sanitizeHeaders(c.Request.Header),
			ResponseData:  sanitizeData(decodeBody(blw.body.Bytes(), c.Writer.Header().Get("Content-Type"))),
			StatusCode:    c.Writer.Status(),
			Success:       c.Writer.Status() < http.StatusBadRequest,
			ErrorMessage:  errorMessage,
			OperationTime: startTime,
			ResponseTime:  time.Since(startTime).Milliseconds(),
			IPAddress:     c.ClientIP(),
			UserAgent:     c.Request.UserAgent(),
		}

		// The request context may already be cancelled once the response is written.
		ctx := context.Background()
		if err := store.InsertOperationLog(ctx, &operationLog); err != nil {
			utils.Logger.Error().Err(err).Msg("save operation log failed")

			minimalLog := operationLog
			minimalLog.RequestBody = nil
			minimalLog.RequestHeader = nil
			minimalLog.ResponseData = nil
			minimalLog.ErrorMessage = fmt.Sprintf("detailed log not saved: %v", err)
			if saveErr := store.InsertOperationLog(ctx, &minimalLog); saveErr != nil {
				utils.Logger.Error().Err(saveErr).Msg("save minimal operation log failed")
			}
		}
	}
}

func shouldLogOperation(c *gin.Context) bool {
	if excludedPaths[c.Request.URL.Path] {
		return false
	}
	return loggedMethods[c.Request.Method]
}

func decodeBody(raw []byte, contentType string) interface{} {
	if len(raw) == 0 {
		return nil
	}
	if strings.Contains(contentType, "application/json") {
		var v interface{}
		if err := json.Unmarshal(raw, &v); err == nil {
			return v
		}
	}
	return string(raw)
}

func extractUserInfo(c *gin.Context) (id, name, role string) {
	user, err := utils.GetUser(c)
	if err != nil {
		return "anonymous", "anonymous", "UNKNOWN"
	}
	return user.ID, user.Username, string(user.Role)
}

// sanitizeData masks credential-like keys at any depth.
func sanitizeData(data interface{}) interface{} {
	switch v := data.(type) {
	case map[string]interface{}:
		sanitized := make(map[string]interface{}, len(v))
		for k, val := range v {
			switch strings.ToLower(k) {
			case "password", "token", "authorization", "secret", "key":
				sanitized[k] = "******"
			default:
				sanitized[k] = sanitizeData(val)
			}
		}
		return sanitized
	case []interface{}:
		sanitized := make([]interface{}, len(v))
		for i, val := range v {
			sanitized[i] = sanitizeData(val)
		}
		return sanitized
	}
	return data
}

func sanitizeHeaders(headers http.Header) map[string]interface{} {
	sanitized := make(map[string]interface{}, len(headers))
	for k, v := range headers {
		switch strings.ToLower(k) {
		case "authorization":
			if len(v) > 0 {
				auth := v[0]
				if len(auth) > 15 {
					auth = auth[:15] + "..."
				}
				sanitized[k] = auth
			}
		case "cookie", "x-api-key":
			sanitized[k] = "******"
		default:
			sanitized[k] = v
		}
	}
	return sanitized
}

package rest

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gpus/backend/internal/interfaces/middleware"
	"github.com/gpus/backend/pkg/auth"
	"github.com/gpus/backend/pkg/constants"
	"github.com/gpus/backend/pkg/errors"
)

// GetIdentity extracts the authenticated identity from gin.Context
func GetIdentity(c *gin.Context) auth.Identity {
	identity, _ := middleware.GetIdentity(c)
	return identity
}

// RespondAppError sends a standardised JSON error response using pkg/errors
func RespondAppError(c *gin.Context, err error) {
	code := errors.GetHTTPStatus(err)
	resp := errors.ToResponse(err)

	if code >= http.StatusInternalServerError {
		log.Printf("❌ ERROR [%d] %s %s: %v", code, c.Request.Method, c.Request.URL.Path, err)
		_ = c.Error(err)
	}

	body := gin.H{
		constants.ResponseError:   resp.Message,
		constants.ResponseMessage: resp.Message,
		constants.ResponseCode:    resp.Code,
		constants.ResponseData:    nil,
	}
	if resp.Details != nil {
		body["details"] = resp.Details
	}
	c.JSON(code, body)
}

// BindJSON binds JSON and returns true if successful. If failed, it sends bad request error.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		RespondAppError(c, errors.NewValidationError("body", err.Error()))
		return false
	}
	return true
}

// HandleGetEnvelope executes a read action and returns the result wrapped in a JSON key
// Response: { [key]: result }
func HandleGetEnvelope(c *gin.Context, key string, action func() (interface{}, error)) {
	result, err := action()
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{key: result})
}

// HandleCreateEnvelope binds req, executes a create action and returns the created object
// Response: { message: successMsg, data: obj }
func HandleCreateEnvelope(c *gin.Context, successMsg string, req interface{}, action func() (interface{}, error)) {
	if req != nil && !BindJSON(c, req) {
		return
	}
	result, err := action()
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		constants.ResponseMessage: successMsg,
		constants.ResponseData:    result,
	})
}

// HandleUpdateEnvelope binds req, executes an update action and returns the result
// Response: { message: successMsg, data: result }
func HandleUpdateEnvelope(c *gin.Context, successMsg string, req interface{}, action func() (interface{}, error)) {
	if req != nil && !BindJSON(c, req) {
		return
	}
	result, err := action()
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		constants.ResponseMessage: successMsg,
		constants.ResponseData:    result,
	})
}

// HandleDeleteEnvelope executes a delete action and returns a success message
// Response: { message: successMsg }
func HandleDeleteEnvelope(c *gin.Context, successMsg string, action func() error) {
	if err := action(); err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{constants.ResponseMessage: successMsg})
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func queryBool(c *gin.Context, key string) *bool {
	raw := c.Query(key)
	if raw == "" {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &b
}

// queryList accepts repeated keys and comma separated values
func queryList(c *gin.Context, key string) []string {
	var out []string
	for _, raw := range c.QueryArray(key) {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

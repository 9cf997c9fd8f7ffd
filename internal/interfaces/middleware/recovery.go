package middleware

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gpus/backend/internal/infrastructure/monitoring"
	apperrors "github.com/gpus/backend/pkg/errors"
)

// Recovery converts panics into a 500 response and reports them
func Recovery(reporter *monitoring.Reporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if recovered := recover(); recovered != nil {
				log.Printf("❌ PANIC %s %s: %v", c.Request.Method, c.Request.URL.Path, recovered)
				reporter.Critical(recovered, personOf(c), requestExtras(c))
				Abort(c, apperrors.NewInternalError("Erro interno do servidor", fmt.Errorf("%v", recovered)))
			}
		}()
		c.Next()
	}
}

// ReportErrors forwards errors attached to 5xx responses
func ReportErrors(reporter *monitoring.Reporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if c.Writer.Status() < http.StatusInternalServerError || len(c.Errors) == 0 {
			return
		}
		for _, ginErr := range c.Errors {
			reporter.Error(ginErr.Err, personOf(c), requestExtras(c))
		}
	}
}

func personOf(c *gin.Context) *monitoring.Person {
	identity, ok := GetIdentity(c)
	if !ok {
		return nil
	}
	return &monitoring.Person{ID: identity.Subject, Name: identity.Name}
}

func requestExtras(c *gin.Context) map[string]interface{} {
	return map[string]interface{}{
		"method": c.Request.Method,
		"path":   c.FullPath(),
	}
}

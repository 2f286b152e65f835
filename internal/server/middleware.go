package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"cotracker/internal/database"
	"cotracker/internal/models"
)

const (
	requestIDHeader = "X-Request-ID"

	loggerKey = "cotracker_logger"
	actorKey  = "cotracker_actor"
)

// IdentityStore looks up users for authentication
type IdentityStore interface {
	GetByUsername(username string) (*models.Pilot, error)
}

// RequestID tags each request with an id, echoed in the response header, and
// stores a logger carrying it for the handlers
func RequestID(logger *slog.Logger, metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)

		reqLogger := logger.With("request_id", id)
		c.Set(loggerKey, reqLogger)

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		reqLogger.Debug("Request handled",
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
}

// BasicAuth authenticates the request against the users table and stores the
// signed in user for the handlers
func BasicAuth(identities IdentityStore, realm string) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := requestLogger(c)

		username, password, ok := c.Request.BasicAuth()
		if ok {
			pilot, err := identities.GetByUsername(username)
			switch {
			case err == nil:
				if bcrypt.CompareHashAndPassword([]byte(pilot.PasswordHash), []byte(password)) == nil {
					c.Set(actorKey, pilot)
					c.Set(loggerKey, logger.With("actor", pilot.Username))
					c.Next()
					return
				}
			case !errors.Is(err, database.ErrNotFound):
				logger.Error("Failed to look up user", "username", username, "error", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
				return
			}
			logger.Warn("Authentication failed", "username", username)
		}

		c.Header("WWW-Authenticate", `Basic realm="`+realm+`"`)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
	}
}

func requestLogger(c *gin.Context) *slog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if logger, ok := v.(*slog.Logger); ok {
			return logger
		}
	}
	return slog.Default()
}

func actor(c *gin.Context) *models.Pilot {
	if v, ok := c.Get(actorKey); ok {
		if pilot, ok := v.(*models.Pilot); ok {
			return pilot
		}
	}
	return nil
}

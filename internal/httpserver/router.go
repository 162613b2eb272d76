package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	graphql "github.com/graph-gophers/graphql-go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"shopsync/internal/identity"
)

// Executor runs a single GraphQL query or mutation.
type Executor interface {
	Exec(ctx context.Context, query, operationName string, variables map[string]interface{}) *graphql.Response
}

// Gateway serves WebSocket GraphQL sessions.
type Gateway interface {
	http.Handler
	Shutdown()
}

type TokenIssuer interface {
	Issue(subject string) (string, error)
	TTLSeconds() int
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type CatalogStatus interface {
	Len() int
}

// Deps are the collaborators the router serves. Gateway, Issuer and DB are
// optional.
type Deps struct {
	Schema         Executor
	Gateway        Gateway
	Extractor      *identity.Extractor
	Issuer         TokenIssuer
	Catalog        CatalogStatus
	DB             Pinger
	AllowedOrigins []string
	RateLimit      rate.Limit
	RateBurst      int
}

// buildRouter wires routes for the API.
func buildRouter(logger *zap.Logger, deps Deps) (*gin.Engine, error) {
	if deps.Schema == nil {
		return nil, errors.New("httpserver: graphql schema is required")
	}
	if deps.Extractor == nil {
		deps.Extractor = identity.NewExtractor(logger)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(requestIDMiddleware(), requestLogger(logger), gin.Recovery())

	if len(deps.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     deps.AllowedOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", requestIDHeader},
			ExposeHeaders:    []string{"Content-Length", requestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(deps))

	api := router.Group("/graphql", identityMiddleware(deps.Extractor))
	if deps.RateLimit > 0 {
		api.Use(rateLimitMiddleware(newRateLimiter(deps.RateLimit, deps.RateBurst)))
	}
	api.POST("", graphqlHandler(deps.Schema, logger))
	api.GET("", graphqlGetHandler(deps.Schema, deps.Gateway, logger))

	if deps.Issuer != nil {
		router.POST("/dev/token", devTokenHandler(deps.Issuer))
	}

	return router, nil
}

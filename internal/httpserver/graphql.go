package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type graphqlRequest struct {
	Query         string                 `json:"query" binding:"required"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

// graphqlHandler executes POSTed operations. Resolver errors are returned in
// the response body with status 200.
func graphqlHandler(schema Executor, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req graphqlRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": []gin.H{{"message": "invalid graphql request: " + err.Error()}}})
			return
		}
		resp := schema.Exec(c.Request.Context(), req.Query, req.OperationName, req.Variables)
		if len(resp.Errors) > 0 {
			logger.Debug("graphql errors",
				zap.String("operation", req.OperationName),
				zap.Int("errors", len(resp.Errors)),
				zap.String("request_id", c.GetString(requestIDKey)),
			)
		}
		c.JSON(http.StatusOK, resp)
	}
}

// graphqlGetHandler upgrades WebSocket requests to the gateway and otherwise
// runs the query from the URL.
func graphqlGetHandler(schema Executor, gateway Gateway, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if websocket.IsWebSocketUpgrade(c.Request) {
			if gateway == nil {
				c.JSON(http.StatusNotImplemented, gin.H{"error": "subscriptions are not enabled"})
				return
			}
			gateway.ServeHTTP(c.Writer, c.Request)
			return
		}

		query := c.Query("query")
		if query == "" {
			c.JSON(http.StatusBadRequest, gin.H{"errors": []gin.H{{"message": "query parameter is required"}}})
			return
		}
		var vars map[string]interface{}
		if raw := c.Query("variables"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &vars); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"errors": []gin.H{{"message": "variables must be a JSON object"}}})
				return
			}
		}
		resp := schema.Exec(c.Request.Context(), query, c.Query("operationName"), vars)
		if len(resp.Errors) > 0 {
			logger.Debug("graphql errors", zap.Int("errors", len(resp.Errors)), zap.String("request_id", c.GetString(requestIDKey)))
		}
		c.JSON(http.StatusOK, resp)
	}
}

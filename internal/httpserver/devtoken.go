package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type devTokenRequest struct {
	Sub string `json:"sub" binding:"required"`
}

type devTokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in,omitempty"`
}

// devTokenHandler mints a bearer token for any subject. It is only mounted
// when development tokens are enabled.
func devTokenHandler(issuer TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req devTokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "sub is required"})
			return
		}
		token, err := issuer.Issue(req.Sub)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue token"})
			return
		}
		c.JSON(http.StatusOK, devTokenResponse{Token: token, ExpiresIn: issuer.TTLSeconds()})
	}
}

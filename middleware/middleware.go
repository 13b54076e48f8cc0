package middleware

import (
	"crypto/subtle"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

var (
	// Ethereum address regex: 0x followed by 40 hex characters
	ethAddressRegex = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
)

// BasicAuth returns a middleware that implements HTTP Basic Authentication
func BasicAuth() gin.HandlerFunc {
	username := os.Getenv("AUTH_USERNAME")
	password := os.Getenv("AUTH_PASSWORD")

	return func(c *gin.Context) {
		// Skip auth if credentials not configured
		if username == "" || password == "" {
			c.Next()
			return
		}

		user, pass, hasAuth := c.Request.BasicAuth()
		if !hasAuth {
			c.Header("WWW-Authenticate", `Basic realm="Zoracle Copy Trader"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
			})
			return
		}

		// Use constant-time comparison to prevent timing attacks
		usernameMatch := subtle.ConstantTimeCompare([]byte(user), []byte(username)) == 1
		passwordMatch := subtle.ConstantTimeCompare([]byte(pass), []byte(password)) == 1

		if !usernameMatch || !passwordMatch {
			c.Header("WWW-Authenticate", `Basic realm="Zoracle Copy Trader"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid credentials",
			})
			return
		}

		c.Next()
	}
}

// ValidateQueryParams validates common query parameters
func ValidateQueryParams() gin.HandlerFunc {
	return func(c *gin.Context) {
		if limitStr := c.Query("limit"); limitStr != "" {
			limit, err := strconv.Atoi(limitStr)
			if err != nil || limit < 1 || limit > 500 {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
					"error": "Invalid limit parameter. Must be a positive integer between 1 and 500",
				})
				return
			}
		}

		c.Next()
	}
}

// IsValidEthAddress checks if a string is a valid Ethereum address
func IsValidEthAddress(addr string) bool {
	return ethAddressRegex.MatchString(strings.ToLower(strings.TrimSpace(addr)))
}

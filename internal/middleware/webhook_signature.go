package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/flowsync/flowsync-api/pkg/logger"
)

// Webflow signs deliveries with HMAC-SHA256 over "<timestamp>:<body>".
const (
	WebflowTimestampHeader = "x-webflow-timestamp"
	WebflowSignatureHeader = "x-webflow-signature"
)

// SignWebflowPayload returns the hex signature Webflow sends for body.
func SignWebflowPayload(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte(":"))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// WebflowSignatureMiddleware rejects deliveries whose signature does not
// match or whose timestamp (unix milliseconds) is further than maxSkew from
// now. The body is restored for the handler.
func WebflowSignatureMiddleware(secret string, maxSkew time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		reject := func(reason string) {
			logger.Warn("Rejected webhook delivery",
				zap.String("reason", reason),
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()),
			)
			_ = c.Error(fmt.Errorf("webhook rejected: %s", reason)) //nolint:errcheck
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		}

		if secret == "" {
			reject("secret not configured")
			return
		}

		timestamp := c.GetHeader(WebflowTimestampHeader)
		signature := c.GetHeader(WebflowSignatureHeader)
		if timestamp == "" || signature == "" {
			reject("missing signature headers")
			return
		}

		ms, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			reject("malformed timestamp")
			return
		}
		skew := time.Since(time.UnixMilli(ms))
		if skew < 0 {
			skew = -skew
		}
		if maxSkew > 0 && skew > maxSkew {
			reject("timestamp outside allowed window")
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			_ = c.Error(err) //nolint:errcheck
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		expected := SignWebflowPayload(secret, timestamp, body)
		if !hmac.Equal([]byte(expected), []byte(signature)) {
			reject("signature mismatch")
			return
		}

		c.Next()
	}
}

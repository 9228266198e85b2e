package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// ContextKeyIsBot is the gin context key set by BotFilter.
const ContextKeyIsBot = "is_bot"

// botPatterns are known bot User-Agent substrings (lowercase). The generic
// "bot", "crawl" and "spider" tokens match what the in-page agent checks.
var botPatterns = []string{
	"bot", "crawl", "spider", "slurp",
	"facebookexternalhit", "embedly", "quora link preview",
	"outbrain", "pinterest", "headlesschrome", "lighthouse",
}

// BotFilter sets c.Set("is_bot", true) for known bot or empty user agents.
// Handlers OR the flag into what the client reported.
func BotFilter() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsBotUserAgent(c.Request.UserAgent()) {
			c.Set(ContextKeyIsBot, true)
		}
		c.Next()
	}
}

// IsBotUserAgent reports whether ua looks automated. An empty UA counts.
func IsBotUserAgent(ua string) bool {
	if ua == "" {
		return true
	}
	ua = strings.ToLower(ua)
	for _, pattern := range botPatterns {
		if strings.Contains(ua, pattern) {
			return true
		}
	}
	return false
}

// IsBot reads the flag set by BotFilter.
func IsBot(c *gin.Context) bool {
	return c.GetBool(ContextKeyIsBot)
}

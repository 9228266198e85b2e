package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jonesrussell/north-cloud/spectre/internal/middleware"
)

func botRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.BotFilter())
	r.POST("/track", func(c *gin.Context) {
		if middleware.IsBot(c) {
			c.String(http.StatusOK, "bot")
			return
		}
		c.String(http.StatusOK, "human")
	})
	return r
}

func TestBotFilter(t *testing.T) {
	tests := []struct {
		name string
		ua   string
		want string
	}{
		{"normal browser", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)", "human"},
		{"googlebot", "Googlebot/2.1 (+http://www.google.com/bot.html)", "bot"},
		{"crawler", "SomeCrawler/1.0", "bot"},
		{"missing UA", "", "bot"},
	}

	r := botRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/track", http.NoBody)
			if tt.ua != "" {
				req.Header.Set("User-Agent", tt.ua)
			}
			r.ServeHTTP(w, req)

			if w.Body.String() != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, w.Body.String())
			}
		})
	}
}

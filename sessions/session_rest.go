package sessions

import (
	"docflow/bizerror"
	"docflow/session"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const PathSession = "/v1/session"

// RegisterSessionHandler exposes the caller's session. Logout skips the auth
// filter so an expired token can still be cleared.
func RegisterSessionHandler(r *gin.Engine, authFilter gin.HandlerFunc) {
	r.GET(PathSession, authFilter, DetailSession)
	r.DELETE(PathSession, Logout)
}

// DetailSession returns the session and extends its token for another full period.
func DetailSession(c *gin.Context) {
	sec := session.ExtractSessionFromGinContext(c)
	if sec.Token == "" {
		panic(bizerror.ErrUnauthenticated)
	}

	now := time.Now()
	if now.Sub(sec.SigningTime) >= session.TokenExpiration {
		session.TokenCache.Delete(sec.Token)
		panic(bizerror.ErrUnauthenticated)
	}
	refreshed := sec.Clone()
	refreshed.Context = nil
	refreshed.SigningTime = now
	session.TokenCache.Set(sec.Token, &refreshed, session.TokenExpiration)
	c.SetCookie(session.KeySecToken, sec.Token, int(session.TokenExpiration/time.Second), "/", "", false, true)
	c.JSON(http.StatusOK, &refreshed)
}

func Logout(c *gin.Context) {
	token, _ := c.Cookie(session.KeySecToken) // ErrNoCookie
	if token != "" {
		session.TokenCache.Delete(token)
	}
	c.SetCookie(session.KeySecToken, "", -1, "/", "", false, true)
	c.AbortWithStatus(http.StatusNoContent)
}

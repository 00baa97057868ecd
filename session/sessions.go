package session

import (
	"docflow/authority"
	"docflow/bizerror"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

const TokenExpiration = 24 * time.Hour

var TokenCache = cache.New(TokenExpiration, 1*time.Minute)

const KeySecCtx = "SecCtx"
const KeySecToken = "sec_token"

const (
	HeaderRemoteUser   = "X-Remote-User"
	HeaderRemoteGroups = "X-Remote-Groups"
)

type AuthOptions struct {
	// TrustRemoteUser accepts the identity asserted by the intranet SSO proxy.
	TrustRemoteUser bool
	AdminUsers      []string
}

func ExtractSessionFromGinContext(ctx *gin.Context) *Session {
	value, found := ctx.Get(KeySecCtx)
	if !found {
		return &Session{Context: ctx.Request.Context()}
	}
	s0, ok := value.(*Session)
	if !ok || s0.Token == "" {
		return &Session{Context: ctx.Request.Context()}
	}
	s := s0.Clone()
	s.Context = ctx.Request.Context() // trace context
	return &s
}

func SimpleAuthFilter(opts AuthOptions) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if s := sessionFromToken(ctx); s != nil {
			InjectSessionIntoGinContext(ctx, s)
			ctx.Next()
			return
		}

		remoteUser := strings.TrimSpace(ctx.GetHeader(HeaderRemoteUser))
		if !opts.TrustRemoteUser || remoteUser == "" {
			panic(bizerror.ErrUnauthenticated)
		}

		s := &Session{Identity: Identity{Name: remoteUser, Nickname: remoteUser}, Perms: remotePerms(ctx, remoteUser, opts)}
		token := IssueToken(s)
		ctx.SetCookie(KeySecToken, token, int(TokenExpiration.Seconds()), "/", "", false, true)
		InjectSessionIntoGinContext(ctx, s)
		ctx.Next()
	}
}

// IssueToken stores s in the token cache under a new token.
func IssueToken(s *Session) string {
	token := uuid.New().String()
	s.Token = token
	s.SigningTime = time.Now()
	TokenCache.Set(token, s, cache.DefaultExpiration)
	return token
}

func InjectSessionIntoGinContext(ctx *gin.Context, secCtx *Session) {
	if secCtx != nil && secCtx.Token != "" {
		ctx.Set(KeySecCtx, secCtx)
	}
}

func sessionFromToken(ctx *gin.Context) *Session {
	token, err := ctx.Cookie(KeySecToken)
	if err != nil || token == "" {
		return nil
	}
	value, found := TokenCache.Get(token)
	if !found {
		return nil
	}
	s, ok := value.(*Session)
	if !ok {
		return nil
	}
	return s
}

func remotePerms(ctx *gin.Context, user string, opts AuthOptions) authority.Permissions {
	perms := authority.Permissions{}
	for _, group := range strings.Split(ctx.GetHeader(HeaderRemoteGroups), ",") {
		if group = strings.TrimSpace(group); group != "" {
			perms = append(perms, group)
		}
	}
	for _, admin := range opts.AdminUsers {
		if strings.EqualFold(strings.TrimSpace(admin), user) && !perms.HasRole(authority.RoleWorkflowAdmin) {
			perms = append(perms, authority.RoleWorkflowAdmin)
		}
	}
	return perms
}

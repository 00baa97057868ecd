package session

import (
	"context"
	"docflow/authority"
	"strings"
	"time"
)

// Session is the per-call context handed to every domain operation.
type Session struct {
	Context  context.Context       `json:"-"`
	Token    string                `json:"token"`
	Identity Identity              `json:"identity"`
	Perms    authority.Permissions `json:"perms"`

	SigningTime time.Time `json:"-"`
}

type Identity struct {
	Name     string `json:"name"`
	Nickname string `json:"nickname"`
}

const SystemIdentityName = "system"

func (s Session) Clone() Session {
	perms := make(authority.Permissions, len(s.Perms))
	copy(perms, s.Perms)
	s.Perms = perms
	return s
}

// NormalizedName is the caller identity as it is persisted: trimmed, lower case.
func (s *Session) NormalizedName() string {
	return strings.ToLower(strings.TrimSpace(s.Identity.Name))
}

func (s *Session) Ctx() context.Context {
	if s.Context == nil {
		return context.Background()
	}
	return s.Context
}

func NewSession(ctx context.Context, name string, perms ...string) *Session {
	return &Session{Context: ctx, Identity: Identity{Name: name, Nickname: name}, Perms: perms, SigningTime: time.Now()}
}

// SystemSession is used by scheduled jobs acting without a human caller.
func SystemSession(ctx context.Context) *Session {
	return NewSession(ctx, SystemIdentityName, authority.RoleSystem)
}

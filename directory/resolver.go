package directory

import (
	"context"
	"docflow/common"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// EmailResolver maps a user name to a mail address.
type EmailResolver interface {
	ResolveEmail(ctx context.Context, userOrEmail string) string
}

// Lookup queries a user directory; it returns "" when the user is unknown.
type Lookup interface {
	Lookup(ctx context.Context, user string) (string, error)
}

type Resolver struct {
	lookup Lookup
	cache  *cache.Cache
}

func NewResolver(lookup Lookup, ttl time.Duration) *Resolver {
	return &Resolver{lookup: lookup, cache: cache.New(ttl, 2*ttl)}
}

// ResolveEmail echoes addresses, consults the directory for user names and
// falls back to echoing the input when resolution fails.
func (r *Resolver) ResolveEmail(ctx context.Context, userOrEmail string) string {
	userOrEmail = strings.TrimSpace(userOrEmail)
	if userOrEmail == "" {
		return ""
	}
	if strings.Contains(userOrEmail, "@") || r.lookup == nil {
		return userOrEmail
	}
	key := strings.ToLower(userOrEmail)
	if v, found := r.cache.Get(key); found {
		return v.(string)
	}

	email, err := r.lookup.Lookup(ctx, userOrEmail)
	if err != nil {
		logrus.Warnf("resolve email of %s failed: %v", userOrEmail, err)
		return userOrEmail
	}
	if email == "" {
		return userOrEmail
	}
	r.cache.SetDefault(key, email)
	return email
}

// DomainLookup derives addresses as user@domain.
type DomainLookup string

func (d DomainLookup) Lookup(ctx context.Context, user string) (string, error) {
	if d == "" {
		return "", nil
	}
	return user + "@" + strings.TrimPrefix(string(d), "@"), nil
}

// HTTPLookup asks a directory service: GET {URL}?user=<name> → {"email": "..."}.
type HTTPLookup struct {
	URL string
}

type lookupResponse struct {
	Email string `json:"email"`
}

func (h *HTTPLookup) Lookup(ctx context.Context, user string) (string, error) {
	if h.URL == "" {
		return "", errors.New("directory url is not configured")
	}
	body, err := common.HttpInvokeJson(ctx, http.MethodGet, h.URL+"?user="+url.QueryEscape(user), nil, "")
	if err != nil {
		var invokeErr *common.ErrHttpInvoke
		if errors.As(err, &invokeErr) && invokeErr.StatusCode == http.StatusNotFound {
			return "", nil
		}
		return "", err
	}
	resp := lookupResponse{}
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Email), nil
}

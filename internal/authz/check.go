// Package authz guards conversation-scoped routes with OpenFGA checks. A
// conversation is the object "conversation:<id>"; its owner may shop in it
// (can_shop) and pay from it (can_pay).
package authz

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

const (
	RelationOwner = "owner"
	RelationShop  = "can_shop"
	RelationPay   = "can_pay"

	Anonymous = "user:anonymous"
)

// ConversationObject names the OpenFGA object for a conversation id.
func ConversationObject(id string) string {
	return "conversation:" + id
}

// PrincipalFromRequest extracts the effective principal.
// Order of precedence:
// - act_as cookie (if set)
// - X-Principal header
// - X-User header
// - anonymous
func PrincipalFromRequest(r *http.Request) string {
	if c, err := r.Cookie("act_as"); err == nil && c.Value != "" {
		return normalize(c.Value)
	}
	if v := r.Header.Get("X-Principal"); v != "" {
		return normalize(v)
	}
	if v := r.Header.Get("X-User"); v != "" {
		return normalize(v)
	}
	return Anonymous
}

func normalize(p string) string {
	p = strings.TrimSpace(p)
	if !strings.Contains(p, ":") {
		return "user:" + p
	}
	return p
}

// Can checks authorization using the provided client and request context.
// Errors deny.
func Can(ctx context.Context, c Client, logger *zap.Logger, r *http.Request, object, relation string) (bool, error) {
	principal := PrincipalFromRequest(r)
	allowed, err := c.Check(ctx, principal, object, relation)
	if err != nil {
		if logger != nil {
			logger.Warn("authz check error",
				zap.String("user", principal),
				zap.String("object", object),
				zap.String("relation", relation),
				zap.Error(err))
		}
		return false, err
	}
	return allowed, nil
}

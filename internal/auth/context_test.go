package auth

import (
	"context"
	"testing"
)

func TestClaimsContext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if ClaimsFromContext(ctx) != nil {
		t.Error("empty context should carry no claims")
	}
	if UserIDFromContext(ctx) != 0 {
		t.Error("empty context should report user 0")
	}

	claims := &Claims{Data: testIdentity}
	ctx = ContextWithClaims(ctx, claims)

	if got := ClaimsFromContext(ctx); got != claims {
		t.Errorf("ClaimsFromContext() = %v, want %v", got, claims)
	}
	if got := UserIDFromContext(ctx); got != testIdentity.UserID {
		t.Errorf("UserIDFromContext() = %d, want %d", got, testIdentity.UserID)
	}
}

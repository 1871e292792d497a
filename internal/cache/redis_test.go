package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := New(ctx, "not a url", time.Minute)
	assert.ErrorContains(t, err, "parse redis url")

	// Nothing listens on port 1.
	_, err = New(ctx, "redis://127.0.0.1:1/0", time.Minute)
	assert.ErrorContains(t, err, "ping redis")
}

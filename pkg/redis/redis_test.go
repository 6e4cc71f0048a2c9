package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestOptions(t *testing.T) {
	o := &redis.Options{PoolSize: 10}

	for _, opt := range []Option{WithPassword("secret"), WithDB(2), WithPoolSize(0), WithPoolSize(4)} {
		opt(o)
	}

	assert.Equal(t, "secret", o.Password)
	assert.Equal(t, 2, o.DB)
	assert.Equal(t, 4, o.PoolSize)
}

func TestNew_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := New(ctx, "127.0.0.1:1")

	assert.Error(t, err)
	assert.Nil(t, client)
}

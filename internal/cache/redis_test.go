package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect_AcceptsURLAndAddress(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	for _, addr := range []string{mr.Addr(), "redis://" + mr.Addr() + "/0"} {
		c, err := Connect(ctx, addr)
		require.NoError(t, err, addr)
		require.NoError(t, c.Set(ctx, "k", "v", 0).Err())
		_ = c.Close()
	}
}

func TestConnect_Failures(t *testing.T) {
	_, err := Connect(context.Background(), "")
	assert.Error(t, err)

	_, err = Connect(context.Background(), "redis://%zz")
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err = Connect(context.Background(), addr)
	assert.Error(t, err)
}

func TestInitRedis_LeavesClientNilWhenUnreachable(t *testing.T) {
	prev := client
	t.Cleanup(func() { SetClient(prev) })

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	InitRedis(addr)
	assert.NotNil(t, GetClient())

	mr.Close()
	InitRedis(addr)
	assert.Nil(t, GetClient())
}

package cubectx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerbose(t *testing.T) {
	ctx := context.Background()
	assert.False(t, IsVerbose(ctx))
	assert.True(t, IsVerbose(SetVerbose(ctx, true)))
}

func TestDevice(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, -1, Device(ctx))
	assert.Equal(t, 2, Device(SetDevice(ctx, 2)))
}

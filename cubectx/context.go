// Package cubectx carries per invocation flags through a context.
package cubectx

import "context"

type ctxIndex int

const (
	ctxIndexVerbose ctxIndex = iota
	ctxIndexDevice
)

func IsVerbose(ctx context.Context) bool {
	val := ctx.Value(ctxIndexVerbose)
	if val == nil {
		return false
	}
	return val.(bool)
}

func SetVerbose(ctx context.Context, value bool) context.Context {
	return context.WithValue(ctx, ctxIndexVerbose, value)
}

// Device returns the index of the USB adapter selected for this call, or -1
// when none was chosen.
func Device(ctx context.Context) int {
	val := ctx.Value(ctxIndexDevice)
	if val == nil {
		return -1
	}
	return val.(int)
}

func SetDevice(ctx context.Context, index int) context.Context {
	return context.WithValue(ctx, ctxIndexDevice, index)
}

package gesture

import "context"

// DetectBehaviorFunc returns the direction a mock sensor decodes.
type DetectBehaviorFunc func(ctx context.Context) (Direction, error)

// AvailableBehaviorFunc reports whether a mock sensor holds gesture data.
type AvailableBehaviorFunc func(ctx context.Context) (bool, error)

// MockGestureSensor stands in for an APDS9960 without hardware.
//
//	sensor := NewMockGestureSensor(func(ctx context.Context) (bool, error) {
//		return true, nil
//	}, func(ctx context.Context) (Direction, error) {
//		return Up, nil
//	})
type MockGestureSensor struct {
	available AvailableBehaviorFunc
	detect    DetectBehaviorFunc
	ready     func(ctx context.Context) (bool, error)
	Inits     int
}

func NewMockGestureSensor(available AvailableBehaviorFunc, detect DetectBehaviorFunc) *MockGestureSensor {
	return &MockGestureSensor{
		available: available,
		detect:    detect,
		ready: func(ctx context.Context) (bool, error) {
			return true, nil
		},
	}
}

// WithReady replaces the id check, which succeeds by default.
func (m *MockGestureSensor) WithReady(ready func(ctx context.Context) (bool, error)) *MockGestureSensor {
	m.ready = ready
	return m
}

func (m *MockGestureSensor) Init(ctx context.Context) error {
	m.Inits++
	return nil
}

func (m *MockGestureSensor) IsReady(ctx context.Context) (bool, error) {
	return m.ready(ctx)
}

func (m *MockGestureSensor) DataAvailable(ctx context.Context) (bool, error) {
	return m.available(ctx)
}

func (m *MockGestureSensor) Detect(ctx context.Context) (Direction, error) {
	return m.detect(ctx)
}

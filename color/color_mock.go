package color

import "context"

// ColorBehaviorFunc returns the sample a mock sensor reports.
type ColorBehaviorFunc func(ctx context.Context) (Sample, error)

// MockColorSensor stands in for a TCS34725 without hardware. Samples coming from the
// behavior function are classified the same way the real sensor does it.
//
//	sensor := NewMockColorSensor(func(ctx context.Context) (Sample, error) {
//		return Sample{Clear: 700, Red: 500, Green: 100, Blue: 100}, nil
//	})
type MockColorSensor struct {
	behavior ColorBehaviorFunc
	Inits    int
}

func NewMockColorSensor(behavior ColorBehaviorFunc) *MockColorSensor {
	return &MockColorSensor{behavior: behavior}
}

func (m *MockColorSensor) Init(ctx context.Context) error {
	m.Inits++
	return nil
}

func (m *MockColorSensor) ReadChannels(ctx context.Context) (Sample, error) {
	return m.behavior(ctx)
}

func (m *MockColorSensor) ReadColor(ctx context.Context) (Predominant, Sample, error) {
	s, err := m.behavior(ctx)
	if err != nil {
		return Unknown, Sample{}, err
	}
	return Classify(s), s, nil
}

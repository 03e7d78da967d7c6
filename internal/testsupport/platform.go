package testsupport

import (
	"context"
	"sync"

	"zeus/internal/platform"
)

// FakePlatform is an in-memory platform.Client for tests. Behavior is
// programmed per pass index; unprogrammed passes succeed with no segments.
type FakePlatform struct {
	mu sync.Mutex

	PassFunc  func(spec platform.PassSpec) (platform.PassOutcome, error)
	ScaleErr  error
	Pool      platform.PoolStatus
	PoolErr   error
	scaleLog  []int
	passSpecs []platform.PassSpec
}

var _ platform.Client = (*FakePlatform)(nil)

func (f *FakePlatform) RunPass(ctx context.Context, spec platform.PassSpec) (platform.PassOutcome, error) {
	if err := ctx.Err(); err != nil {
		return platform.PassOutcome{}, err
	}
	f.mu.Lock()
	f.passSpecs = append(f.passSpecs, spec)
	fn := f.PassFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(spec)
	}
	return platform.PassOutcome{Succeeded: true}, nil
}

func (f *FakePlatform) Scale(ctx context.Context, nodes int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ScaleErr != nil {
		return f.ScaleErr
	}
	f.scaleLog = append(f.scaleLog, nodes)
	f.Pool.NodeCount = nodes
	return nil
}

func (f *FakePlatform) PoolStatus(ctx context.Context) (platform.PoolStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Pool, f.PoolErr
}

// ScaleCalls returns every node count requested via Scale, in order.
func (f *FakePlatform) ScaleCalls() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, len(f.scaleLog))
	copy(out, f.scaleLog)
	return out
}

// PassSpecs returns every pass spec dispatched via RunPass, in dispatch order.
func (f *FakePlatform) PassSpecs() []platform.PassSpec {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]platform.PassSpec, len(f.passSpecs))
	copy(out, f.passSpecs)
	return out
}

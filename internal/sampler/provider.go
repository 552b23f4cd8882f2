// ABOUTME: Location provider contract and a replay provider for recorded tracks
// ABOUTME: Replay feeds stored fixes through the same callbacks a device would use

package sampler

import (
	"errors"
	"sync"
	"time"

	"github.com/harper/courserun/internal/models"
)

// Provider errors. Permission denial is fatal for a start attempt; the other
// two are transient and watching continues.
var (
	ErrPermissionDenied    = errors.New("location permission denied")
	ErrPositionUnavailable = errors.New("position unavailable")
	ErrTimeout             = errors.New("position request timed out")
)

// WatchID identifies an active subscription.
type WatchID int

// WatchOptions are passed through to the provider.
type WatchOptions struct {
	HighAccuracy bool
	Timeout      time.Duration
	MaximumAge   time.Duration
}

// DefaultWatchOptions requests high accuracy with a 10s timeout and 5s cache.
func DefaultWatchOptions() WatchOptions {
	return WatchOptions{
		HighAccuracy: true,
		Timeout:      10 * time.Second,
		MaximumAge:   5 * time.Second,
	}
}

// LocationProvider is the device position source.
// ClearWatch must not wait for an in-flight onFix callback to return, since
// a callback may itself end the run.
type LocationProvider interface {
	WatchPosition(onFix func(models.RawPosition), onError func(error), opts WatchOptions) (WatchID, error)
	ClearWatch(id WatchID)
}

// ReplayProvider replays a fixed list of positions on a goroutine.
type ReplayProvider struct {
	fixes    []models.RawPosition
	interval time.Duration

	mu     sync.Mutex
	nextID WatchID
	stops  map[WatchID]chan struct{}
	wg     sync.WaitGroup
}

var _ LocationProvider = (*ReplayProvider)(nil)

// NewReplayProvider creates a provider emitting fixes in order, interval apart.
// A zero interval replays as fast as the consumer accepts them.
func NewReplayProvider(fixes []models.RawPosition, interval time.Duration) *ReplayProvider {
	return &ReplayProvider{
		fixes:    fixes,
		interval: interval,
		stops:    make(map[WatchID]chan struct{}),
	}
}

// WatchPosition starts replaying on a new goroutine.
func (p *ReplayProvider) WatchPosition(onFix func(models.RawPosition), onError func(error), opts WatchOptions) (WatchID, error) {
	p.mu.Lock()
	p.nextID++
	id := p.nextID
	stop := make(chan struct{})
	p.stops[id] = stop
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for i, fix := range p.fixes {
			if i > 0 && p.interval > 0 {
				timer := time.NewTimer(p.interval)
				select {
				case <-stop:
					timer.Stop()
					return
				case <-timer.C:
				}
			}
			select {
			case <-stop:
				return
			default:
			}
			onFix(fix)
		}
	}()

	return id, nil
}

// ClearWatch stops the replay for id. It does not block.
func (p *ReplayProvider) ClearWatch(id WatchID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if stop, ok := p.stops[id]; ok {
		close(stop)
		delete(p.stops, id)
	}
}

// Wait blocks until every replay goroutine has exited.
func (p *ReplayProvider) Wait() {
	p.wg.Wait()
}

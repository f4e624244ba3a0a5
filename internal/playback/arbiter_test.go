package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeHandle struct {
	name   string
	player *fakePlayer
	once   sync.Once
	done   chan struct{}
	err    error
}

func (h *fakeHandle) Stop() error {
	h.once.Do(func() {
		h.player.event("stop " + h.name)
		h.player.release()
		close(h.done)
	})
	return nil
}

// finish simulates the clip reaching its end.
func (h *fakeHandle) finish() {
	h.once.Do(func() {
		h.player.release()
		close(h.done)
	})
}

// fail simulates the player dying mid-stream, e.g. a remote 403.
func (h *fakeHandle) fail(err error) {
	h.once.Do(func() {
		h.err = err
		h.player.release()
		close(h.done)
	})
}

func (h *fakeHandle) Done() <-chan struct{} { return h.done }

func (h *fakeHandle) Err() error { return h.err }

type fakePlayer struct {
	mu         sync.Mutex
	events     []string
	audible    int
	maxAudible int
	urlErr     map[string]error
	dataErr    error
	handles    []*fakeHandle
}

func (p *fakePlayer) event(e string) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

func (p *fakePlayer) release() {
	p.mu.Lock()
	p.audible--
	p.mu.Unlock()
}

func (p *fakePlayer) begin(name string) *fakeHandle {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, "start "+name)
	p.audible++
	if p.audible > p.maxAudible {
		p.maxAudible = p.audible
	}
	h := &fakeHandle{name: name, player: p, done: make(chan struct{})}
	p.handles = append(p.handles, h)
	return h
}

func (p *fakePlayer) PlayURL(ctx context.Context, location string) (Handle, error) {
	if err := p.urlErr[location]; err != nil {
		p.event("fail " + location)
		return nil, err
	}
	return p.begin(location), nil
}

func (p *fakePlayer) PlayData(ctx context.Context, data []byte) (Handle, error) {
	if p.dataErr != nil {
		return nil, p.dataErr
	}
	return p.begin("data:" + string(data)), nil
}

func (p *fakePlayer) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

type fakeFetcher struct {
	mu    sync.Mutex
	data  map[string][]byte
	calls int
	// block, when set, holds each fetch until it is closed or ctx ends.
	block chan struct{}
}

func (f *fakeFetcher) FetchAudio(ctx context.Context, location string) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if d, ok := f.data[location]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("404 %s", location)
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (p *fakePlayer) handle(i int) *fakeHandle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handles[i]
}

func newTestArbiter(p *fakePlayer, f *fakeFetcher) *Arbiter {
	if f == nil {
		f = &fakeFetcher{}
	}
	return NewArbiter(p, f, zap.NewNop())
}

func TestPlaySameClipToggles(t *testing.T) {
	p := &fakePlayer{}
	a := newTestArbiter(p, nil)
	ctx := context.Background()

	playing, err := a.Play(ctx, 1, "/a.mp3")
	require.NoError(t, err)
	assert.True(t, playing)
	id, ok := a.Active()
	assert.True(t, ok)
	assert.Equal(t, 1, id)

	playing, err = a.Play(ctx, 1, "/a.mp3")
	require.NoError(t, err)
	assert.False(t, playing)
	_, ok = a.Active()
	assert.False(t, ok)

	assert.Equal(t, []string{"start /a.mp3", "stop /a.mp3"}, p.Events())
}

func TestPlayOtherClipStopsFirst(t *testing.T) {
	p := &fakePlayer{}
	a := newTestArbiter(p, nil)
	ctx := context.Background()

	_, err := a.Play(ctx, 1, "/a.mp3")
	require.NoError(t, err)
	_, err = a.Play(ctx, 2, "/b.mp3")
	require.NoError(t, err)
	_, err = a.Play(ctx, 3, "/c.mp3")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"start /a.mp3",
		"stop /a.mp3",
		"start /b.mp3",
		"stop /b.mp3",
		"start /c.mp3",
	}, p.Events())
	assert.Equal(t, 1, p.maxAudible)

	id, _ := a.Active()
	assert.Equal(t, 3, id)
}

func TestConcurrentPlayNeverOverlaps(t *testing.T) {
	p := &fakePlayer{}
	a := newTestArbiter(p, nil)

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			a.Play(context.Background(), id%4+1, fmt.Sprintf("/%d.mp3", id%4+1))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, p.maxAudible)
}

func TestFallbackFetchesBlob(t *testing.T) {
	p := &fakePlayer{urlErr: map[string]error{"https://cdn/x.mp3": errors.New("cross-origin")}}
	f := &fakeFetcher{data: map[string][]byte{"https://cdn/x.mp3": []byte("x")}}
	a := newTestArbiter(p, f)

	playing, err := a.Play(context.Background(), 7, "https://cdn/x.mp3")
	require.NoError(t, err)
	assert.True(t, playing)
	assert.Equal(t, 1, f.calls)
	assert.Equal(t, []string{"fail https://cdn/x.mp3", "start data:x"}, p.Events())
}

func TestFallbackReusesFetchedClip(t *testing.T) {
	p := &fakePlayer{urlErr: map[string]error{"/x.mp3": errors.New("blocked")}}
	f := &fakeFetcher{data: map[string][]byte{"/x.mp3": []byte("x")}}
	a := newTestArbiter(p, f)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		playing, err := a.Play(ctx, 1, "/x.mp3")
		require.NoError(t, err)
		assert.True(t, playing)
		a.Stop()
	}
	assert.Equal(t, 1, f.calls)

	a.ForgetFetched()
	_, err := a.Play(ctx, 1, "/x.mp3")
	require.NoError(t, err)
	assert.Equal(t, 2, f.calls)
}

func TestFallbackFailureClearsActive(t *testing.T) {
	p := &fakePlayer{urlErr: map[string]error{"/bad.mp3": errors.New("decode error")}}
	a := newTestArbiter(p, &fakeFetcher{})
	ctx := context.Background()

	_, err := a.Play(ctx, 1, "/good.mp3")
	require.NoError(t, err)

	playing, err := a.Play(ctx, 2, "/bad.mp3")
	require.ErrorIs(t, err, ErrPlaybackFailed)
	assert.False(t, playing)
	_, ok := a.Active()
	assert.False(t, ok)

	// Other clips remain playable.
	playing, err = a.Play(ctx, 1, "/good.mp3")
	require.NoError(t, err)
	assert.True(t, playing)
}

func TestFallbackPlayDataFailure(t *testing.T) {
	p := &fakePlayer{
		urlErr:  map[string]error{"/x.mp3": errors.New("blocked")},
		dataErr: errors.New("unsupported format"),
	}
	f := &fakeFetcher{data: map[string][]byte{"/x.mp3": []byte("x")}}
	a := newTestArbiter(p, f)

	_, err := a.Play(context.Background(), 1, "/x.mp3")
	assert.ErrorIs(t, err, ErrPlaybackFailed)
}

func TestNaturalEndClearsActive(t *testing.T) {
	p := &fakePlayer{}
	a := newTestArbiter(p, nil)

	_, err := a.Play(context.Background(), 5, "/a.mp3")
	require.NoError(t, err)
	p.handles[0].finish()

	assert.Eventually(t, func() bool {
		_, ok := a.Active()
		return !ok
	}, time.Second, 5*time.Millisecond)

	// Playing it again starts it rather than toggling off.
	playing, err := a.Play(context.Background(), 5, "/a.mp3")
	require.NoError(t, err)
	assert.True(t, playing)
}

func TestStopIsIdempotent(t *testing.T) {
	p := &fakePlayer{}
	a := newTestArbiter(p, nil)
	a.Stop()

	_, err := a.Play(context.Background(), 1, "/a.mp3")
	require.NoError(t, err)
	a.Stop()
	a.Stop()

	_, ok := a.Active()
	assert.False(t, ok)
	assert.Equal(t, []string{"start /a.mp3", "stop /a.mp3"}, p.Events())
}

func TestLateDirectFailureFallsBack(t *testing.T) {
	p := &fakePlayer{}
	f := &fakeFetcher{data: map[string][]byte{"https://cdn/x.mp3": []byte("x")}}
	a := newTestArbiter(p, f)

	playing, err := a.Play(context.Background(), 4, "https://cdn/x.mp3")
	require.NoError(t, err)
	require.True(t, playing)

	// The stream dies after the player was already reported as started.
	p.handle(0).fail(errors.New("HTTP 403"))

	assert.Eventually(t, func() bool {
		return f.Calls() == 1 && len(p.Events()) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"start https://cdn/x.mp3", "start data:x"}, p.Events())
	id, ok := a.Active()
	assert.True(t, ok)
	assert.Equal(t, 4, id)
	assert.Equal(t, 1, p.maxAudible)
}

func TestLateFailureWithoutFallbackIsReported(t *testing.T) {
	p := &fakePlayer{}
	a := newTestArbiter(p, &fakeFetcher{})

	_, err := a.Play(context.Background(), 2, "/gone.mp3")
	require.NoError(t, err)
	p.handle(0).fail(errors.New("connection reset"))

	select {
	case err := <-a.Errors():
		assert.ErrorIs(t, err, ErrPlaybackFailed)
		assert.Contains(t, err.Error(), "clip 2")
	case <-time.After(time.Second):
		t.Fatal("no playback error reported")
	}
	_, ok := a.Active()
	assert.False(t, ok)
}

func TestFallbackPlaybackFailureIsReported(t *testing.T) {
	p := &fakePlayer{urlErr: map[string]error{"/x.mp3": errors.New("blocked")}}
	f := &fakeFetcher{data: map[string][]byte{"/x.mp3": []byte("x")}}
	a := newTestArbiter(p, f)

	_, err := a.Play(context.Background(), 1, "/x.mp3")
	require.NoError(t, err)
	p.handle(0).fail(errors.New("invalid data found"))

	select {
	case err := <-a.Errors():
		assert.ErrorIs(t, err, ErrPlaybackFailed)
	case <-time.After(time.Second):
		t.Fatal("no playback error reported")
	}
	// The fallback is not retried.
	assert.Equal(t, 1, f.Calls())
}

func TestStoppedClipReportsNothing(t *testing.T) {
	p := &fakePlayer{}
	a := newTestArbiter(p, nil)

	_, err := a.Play(context.Background(), 1, "/a.mp3")
	require.NoError(t, err)
	a.Stop()

	select {
	case err := <-a.Errors():
		t.Fatalf("unexpected error %v", err)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestActiveDoesNotWaitForFetch(t *testing.T) {
	p := &fakePlayer{urlErr: map[string]error{"/slow.mp3": errors.New("blocked")}}
	f := &fakeFetcher{
		data:  map[string][]byte{"/slow.mp3": []byte("s")},
		block: make(chan struct{}),
	}
	a := newTestArbiter(p, f)

	result := make(chan bool, 1)
	go func() {
		playing, _ := a.Play(context.Background(), 3, "/slow.mp3")
		result <- playing
	}()
	require.Eventually(t, func() bool { return f.Calls() == 1 }, time.Second, time.Millisecond)

	begin := time.Now()
	id, ok := a.Active()
	assert.Less(t, time.Since(begin), 50*time.Millisecond)
	assert.True(t, ok)
	assert.Equal(t, 3, id)

	close(f.block)
	assert.True(t, <-result)
	assert.Equal(t, []string{"fail /slow.mp3", "start data:s"}, p.Events())
}

func TestStopCancelsPendingFetch(t *testing.T) {
	p := &fakePlayer{urlErr: map[string]error{"/slow.mp3": errors.New("blocked")}}
	f := &fakeFetcher{
		data:  map[string][]byte{"/slow.mp3": []byte("s")},
		block: make(chan struct{}),
	}
	a := newTestArbiter(p, f)

	result := make(chan bool, 1)
	go func() {
		playing, _ := a.Play(context.Background(), 3, "/slow.mp3")
		result <- playing
	}()
	require.Eventually(t, func() bool { return f.Calls() == 1 }, time.Second, time.Millisecond)

	begin := time.Now()
	a.Stop()
	assert.Less(t, time.Since(begin), 50*time.Millisecond)

	select {
	case playing := <-result:
		assert.False(t, playing)
	case <-time.After(time.Second):
		t.Fatal("Play did not return after Stop")
	}
	_, ok := a.Active()
	assert.False(t, ok)
	assert.Equal(t, 0, p.audible)
}

func TestCommandPlayerLateFailureUsesFetchedCopy(t *testing.T) {
	// The script receives the target as $0: URLs fail after the startup
	// grace, stdin data plays.
	script := `if [ "$0" = "-" ]; then cat >/dev/null; sleep 0.2; else sleep 0.6; exit 1; fi`
	p := CommandPlayer{Command: []string{"sh", "-c", script}}
	f := &fakeFetcher{data: map[string][]byte{"/r1.mp3": []byte("audio")}}
	a := NewArbiter(p, f, zap.NewNop())

	playing, err := a.Play(context.Background(), 1, "/r1.mp3")
	require.NoError(t, err)
	require.True(t, playing)

	assert.Eventually(t, func() bool { return f.Calls() == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		_, ok := a.Active()
		return !ok
	}, 3*time.Second, 10*time.Millisecond)
	select {
	case err := <-a.Errors():
		t.Fatalf("fetched copy should have played, got %v", err)
	default:
	}
}

package future

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inlineExecutor struct{ calls int }

func (e *inlineExecutor) Submit(fn func()) {
	e.calls++
	fn()
}

func TestPromise_TrySuccessCompletesOnce(t *testing.T) {
	p := New[int](nil)

	assert.True(t, p.TrySuccess(42))
	assert.False(t, p.TrySuccess(7))
	assert.False(t, p.TryFailure(errors.New("too late")))

	v, err := p.Value()
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, Success, p.State())
}

func TestPromise_TryFailure(t *testing.T) {
	p := New[string](nil)
	cause := errors.New("boom")
	assert.True(t, p.TryFailure(cause))

	v, err := p.Value()
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "", v)
	assert.Equal(t, Failure, p.State())
}

func TestPromise_Cancel(t *testing.T) {
	p := New[int](nil)
	assert.True(t, p.Cancel())
	assert.Equal(t, Cancelled, p.State())

	_, err := p.Value()
	assert.ErrorIs(t, err, ErrCancelled)
}

// TestPromise_AddListener_PreCompletionUsesExecutor exercises the
// documented executor-affinity rule: a listener registered before
// completion is dispatched through the Promise's executor rather than
// called directly by the completing goroutine.
func TestPromise_AddListener_PreCompletionUsesExecutor(t *testing.T) {
	exec := &inlineExecutor{}
	p := New[int](exec)

	var observed int
	p.AddListener(func(f Future[int]) {
		v, _ := f.Value()
		observed = v
	})

	assert.Equal(t, 0, exec.calls)
	p.TrySuccess(9)
	assert.Equal(t, 1, exec.calls)
	assert.Equal(t, 9, observed)
}

// TestPromise_AddListener_PostCompletionRunsSynchronously exercises the
// other half of the documented affinity rule: a listener added after
// completion runs immediately on the caller's goroutine, bypassing the
// executor entirely.
func TestPromise_AddListener_PostCompletionRunsSynchronously(t *testing.T) {
	exec := &inlineExecutor{}
	p := New[int](exec)
	p.TrySuccess(5)

	var observed int
	p.AddListener(func(f Future[int]) {
		v, _ := f.Value()
		observed = v
	})

	assert.Equal(t, 0, exec.calls)
	assert.Equal(t, 5, observed)
}

func TestPromise_ListenersFireInRegistrationOrder(t *testing.T) {
	p := New[int](nil)
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		p.AddListener(func(Future[int]) { order = append(order, i) })
	}
	p.TrySuccess(1)
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestCompletedAndFailed(t *testing.T) {
	f := Completed[int](3)
	v, err := f.Value()
	require.NoError(t, err)
	assert.Equal(t, 3, v)
	assert.True(t, f.IsDone())

	cause := errors.New("x")
	ff := Failed[int](cause)
	_, err = ff.Value()
	assert.ErrorIs(t, err, cause)
}

func TestPromise_ValueBeforeCompletion(t *testing.T) {
	p := New[int](nil)
	_, err := p.Value()
	assert.ErrorIs(t, err, ErrPending)
}

func TestPromise_AwaitBlocksUntilSettled(t *testing.T) {
	p := New[int](nil)
	go func() { p.TrySuccess(11) }()
	v, err := p.Await().Value()
	require.NoError(t, err)
	assert.Equal(t, 11, v)
}

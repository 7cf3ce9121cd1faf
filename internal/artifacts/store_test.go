package artifacts

import (
	"sync"
	"testing"

	"designlens/internal/domain/attachment"
	lens_errors "designlens/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func processingURL(t *testing.T, raw string) attachment.Attachment {
	t.Helper()
	a, err := attachment.NewURL(raw, "example.com").Transition(attachment.StatusProcessing)
	require.NoError(t, err)
	return a
}

func TestStore_AddListPreservesOrder(t *testing.T) {
	s := NewStore()
	first := processingURL(t, "https://a.example.com")
	second := processingURL(t, "https://b.example.com")

	require.NoError(t, s.Add(first))
	require.NoError(t, s.Add(second))
	assert.ErrorIs(t, s.Add(first), lens_errors.ErrAlreadyExists)

	items := s.List()
	require.Len(t, items, 2)
	assert.Equal(t, first.ID, items[0].ID)
	assert.Equal(t, second.ID, items[1].ID)
}

func TestStore_ListIsASnapshot(t *testing.T) {
	s := NewStore()
	a := processingURL(t, "https://example.com")
	require.NoError(t, s.Add(a))

	before := s.List()
	_, err := s.UpdateByID(a.ID, func(cur attachment.Attachment) (attachment.Attachment, error) {
		cur = cur.WithCaptures(map[attachment.Viewport]attachment.CaptureResult{
			attachment.ViewportDesktop: {Succeeded: true, ImageReference: "d.png"},
			attachment.ViewportMobile:  {Succeeded: true, ImageReference: "m.png"},
		})
		return cur.MarkUploaded(cur.URL.Normalized)
	})
	require.NoError(t, err)

	assert.Equal(t, attachment.StatusProcessing, before[0].Status)
	assert.False(t, before[0].URL.Captures[attachment.ViewportDesktop].Succeeded)

	before[0].URL.Captures[attachment.ViewportMobile] = attachment.CaptureResult{Error: "tampered"}
	after, ok := s.Get(a.ID)
	require.True(t, ok)
	assert.Equal(t, attachment.StatusUploaded, after.Status)
	assert.Equal(t, "m.png", after.URL.Captures[attachment.ViewportMobile].ImageReference)
}

func TestStore_UpdateRemovedIDIsNoop(t *testing.T) {
	s := NewStore()
	keep := processingURL(t, "https://keep.example.com")
	gone := processingURL(t, "https://gone.example.com")
	require.NoError(t, s.Add(keep))
	require.NoError(t, s.Add(gone))

	require.True(t, s.RemoveByID(gone.ID))
	before := s.List()

	found, err := s.UpdateByID(gone.ID, func(cur attachment.Attachment) (attachment.Attachment, error) {
		return cur.MarkUploaded("late")
	})
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, before, s.List())
	assert.False(t, s.RemoveByID(gone.ID))
}

func TestStore_RejectsStatusRegression(t *testing.T) {
	s := NewStore()
	a := processingURL(t, "https://example.com")
	require.NoError(t, s.Add(a))

	_, err := s.UpdateByID(a.ID, func(cur attachment.Attachment) (attachment.Attachment, error) {
		return cur.MarkUploaded(cur.URL.Normalized)
	})
	require.NoError(t, err)

	_, err = s.UpdateByID(a.ID, func(cur attachment.Attachment) (attachment.Attachment, error) {
		cur.Status = attachment.StatusPending
		return cur, nil
	})
	assert.ErrorIs(t, err, lens_errors.ErrInvalidTransition)

	_, err = s.UpdateByID(a.ID, func(cur attachment.Attachment) (attachment.Attachment, error) {
		return cur.MarkFailed("nope")
	})
	assert.ErrorIs(t, err, lens_errors.ErrInvalidTransition)

	got, _ := s.Get(a.ID)
	assert.Equal(t, attachment.StatusUploaded, got.Status)
}

func TestStore_RejectsIDChange(t *testing.T) {
	s := NewStore()
	a := processingURL(t, "https://example.com")
	require.NoError(t, s.Add(a))

	_, err := s.UpdateByID(a.ID, func(cur attachment.Attachment) (attachment.Attachment, error) {
		cur.ID = "other"
		return cur, nil
	})
	assert.ErrorIs(t, err, lens_errors.ErrInvalidTransition)
	_, ok := s.Get(a.ID)
	assert.True(t, ok)
}

func TestStore_AddUnless(t *testing.T) {
	s := NewStore()
	a := processingURL(t, "https://example.com")
	sameURL := func(existing attachment.Attachment) bool {
		return existing.SourceHandle() == "https://example.com"
	}
	assert.True(t, s.AddUnless(a, sameURL))
	assert.False(t, s.AddUnless(processingURL(t, "https://example.com"), sameURL))
	assert.Equal(t, 1, s.Len())
}

func TestStore_RemoveIDsAndObserver(t *testing.T) {
	s := NewStore()
	var mu sync.Mutex
	var sizes []int
	s.OnChange(func(items []attachment.Attachment) {
		mu.Lock()
		sizes = append(sizes, len(items))
		mu.Unlock()
	})

	ids := make([]string, 0, 3)
	for _, u := range []string{"https://a.io", "https://b.io", "https://c.io"} {
		a := processingURL(t, u)
		ids = append(ids, a.ID)
		require.NoError(t, s.Add(a))
	}
	assert.Equal(t, 2, s.RemoveIDs(ids[0], ids[2], "missing"))
	s.Clear()
	s.Clear()

	assert.Equal(t, 0, s.Len())
	assert.NotNil(t, s.List())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3, 1, 0}, sizes)
}

func TestStore_ConcurrentUpdates(t *testing.T) {
	s := NewStore()
	a := processingURL(t, "https://example.com")
	require.NoError(t, s.Add(a))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.UpdateByID(a.ID, func(cur attachment.Attachment) (attachment.Attachment, error) {
				return cur.WithCaptures(attachment.PendingCaptures()), nil
			})
			_ = s.List()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, s.Len())
}

package override

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/phobologic/autofold/internal/model"
)

var (
	docA = model.FileURI("/a.ts").ID()
	docB = model.FileURI("/b.ts").ID()
)

func TestRecordTransition(t *testing.T) {
	t.Parallel()
	tr := NewTracker()

	assert.True(t, tr.RecordTransition(docA, 3, true))
	assert.True(t, tr.IsOverridden(docA, 3))
	assert.False(t, tr.RecordTransition(docA, 3, true), "repeat is a no-op")

	assert.True(t, tr.RecordTransition(docA, 3, false))
	assert.False(t, tr.IsOverridden(docA, 3))
	assert.False(t, tr.RecordTransition(docA, 3, false), "repeat is a no-op")
}

func TestFoldedWithoutOverrideIsNoop(t *testing.T) {
	t.Parallel()
	tr := NewTracker()

	assert.False(t, tr.RecordTransition(docA, 7, false))
	assert.Equal(t, 0, tr.Len(docA))
}

func TestDocumentsAreIndependent(t *testing.T) {
	t.Parallel()
	tr := NewTracker()

	tr.RecordTransition(docA, 1, true)
	tr.RecordTransition(docB, 2, true)

	assert.True(t, tr.IsOverridden(docA, 1))
	assert.False(t, tr.IsOverridden(docA, 2))
	assert.True(t, tr.IsOverridden(docB, 2))

	tr.Clear(docA)
	assert.Nil(t, tr.Lines(docA))
	assert.Equal(t, []int{2}, tr.Lines(docB))
}

func TestRemove(t *testing.T) {
	t.Parallel()
	tr := NewTracker()

	assert.False(t, tr.Remove(docA, 1))
	tr.RecordTransition(docA, 1, true)
	tr.RecordTransition(docA, 5, true)
	assert.True(t, tr.Remove(docA, 1))
	assert.False(t, tr.Remove(docA, 1))
	assert.Equal(t, []int{5}, tr.Lines(docA))
}

func TestConcurrentAccess(t *testing.T) {
	t.Parallel()
	tr := NewTracker()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(line int) {
			defer wg.Done()
			tr.RecordTransition(docA, line, true)
			tr.IsOverridden(docA, line)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, tr.Len(docA))
}

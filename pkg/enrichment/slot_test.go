package enrichment

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func set(gen uint64, ids ...int) ResultSet {
	rs := ResultSet{Generation: gen, Limit: len(ids)}
	for _, id := range ids {
		rs.Entities = append(rs.Entities, DisplayEntity{ID: id, Name: "n", PrimaryCategory: DefaultCategory})
	}
	return rs
}

func TestSlot_InitiallyEmpty(t *testing.T) {
	s := NewSlot()
	cur := s.Current()
	assert.Equal(t, uint64(0), cur.Generation)
	assert.NotNil(t, cur.Entities)
	assert.Empty(t, cur.Entities)
	assert.True(t, cur.PublishedAt.IsZero())
}

func TestSlot_SubscribeDeliversCurrent(t *testing.T) {
	s := NewSlot()
	require.True(t, s.publish(set(3, 1, 2)))

	rec := &recorder{}
	s.Subscribe(rec.listen)

	events := rec.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, EventPublished, events[0].Kind)
	assert.Equal(t, uint64(3), events[0].Generation)
	assert.Equal(t, []int{1, 2}, events[0].Results.IDs())
}

func TestSlot_PublishRejectsOlderGeneration(t *testing.T) {
	s := NewSlot()
	rec := &recorder{}
	s.Subscribe(rec.listen)

	assert.True(t, s.publish(set(2, 20)))
	assert.False(t, s.publish(set(1, 10)), "older generation must be discarded")
	assert.False(t, s.publish(set(2, 30)), "same generation must be discarded")

	assert.Equal(t, []int{20}, s.Current().IDs())
	assert.Len(t, rec.snapshot(), 2)
}

func TestSlot_Unsubscribe(t *testing.T) {
	s := NewSlot()
	rec := &recorder{}
	id := s.Subscribe(rec.listen)
	assert.Equal(t, 1, s.Subscribers())

	s.Unsubscribe(id)
	s.Unsubscribe(id) // idempotent
	s.Unsubscribe(Subscription(999))
	assert.Equal(t, 0, s.Subscribers())

	s.publish(set(1, 1))
	assert.Len(t, rec.snapshot(), 1, "only the initial delivery")
}

func TestSlot_ListenerMayUnsubscribeItself(t *testing.T) {
	s := NewSlot()
	var id Subscription
	calls := 0
	id = s.Subscribe(func(ev Event) {
		calls++
		if ev.Generation == 1 {
			s.Unsubscribe(id)
		}
	})

	s.publish(set(1, 1))
	s.publish(set(2, 2))
	assert.Equal(t, 2, calls)
}

func TestSlot_ListenersCannotMutatePublishedSet(t *testing.T) {
	s := NewSlot()
	rs := set(1, 1)
	rs.Entities[0].ImageURL = strPtr("http://x/1.png")

	s.Subscribe(func(ev Event) {
		if len(ev.Results.Entities) > 0 {
			ev.Results.Entities[0].Name = "mutated"
			*ev.Results.Entities[0].ImageURL = "http://evil"
		}
	})
	s.publish(rs)

	cur := s.Current()
	assert.Equal(t, "n", cur.Entities[0].Name)
	assert.Equal(t, "http://x/1.png", *cur.Entities[0].ImageURL)

	rs.Entities[0].Name = "changed after publish"
	assert.Equal(t, "n", s.Current().Entities[0].Name)
}

func TestSlot_FailKeepsCurrent(t *testing.T) {
	s := NewSlot()
	s.publish(set(1, 5))

	rec := &recorder{}
	s.Subscribe(rec.listen)
	s.fail(2, assert.AnError)

	ev := rec.last()
	assert.Equal(t, EventFailed, ev.Kind)
	assert.Equal(t, uint64(2), ev.Generation)
	assert.ErrorIs(t, ev.Err, assert.AnError)
	assert.Equal(t, []int{5}, ev.Results.IDs())
	assert.Equal(t, uint64(1), s.Current().Generation)
}

func TestSlot_ConcurrentReadersSeeWholeSets(t *testing.T) {
	s := NewSlot()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				cur := s.Current()
				// Every published set holds Generation copies of the id Generation.
				for _, id := range cur.IDs() {
					if uint64(id) != cur.Generation {
						t.Errorf("mixed set: generation %d contains id %d", cur.Generation, id)
						return
					}
				}
			}
		}()
	}

	for gen := uint64(1); gen <= 200; gen++ {
		ids := make([]int, gen%10+1)
		for i := range ids {
			ids[i] = int(gen)
		}
		s.publish(set(gen, ids...))
	}
	close(stop)
	wg.Wait()

	assert.Equal(t, uint64(200), s.Current().Generation)
}

func TestSlot_EventsDeliveredInGenerationOrder(t *testing.T) {
	s := NewSlot()
	rec := &recorder{}
	s.Subscribe(rec.listen)

	var wg sync.WaitGroup
	for gen := uint64(1); gen <= 50; gen++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.publish(set(gen, int(gen)))
		}()
	}
	wg.Wait()

	var last uint64
	for _, ev := range rec.snapshot() {
		assert.GreaterOrEqual(t, ev.Generation, last)
		last = ev.Generation
	}
	assert.Equal(t, uint64(50), s.Current().Generation)
}

package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"canvas-studio-backend/internal/canvas/generation"
	"canvas-studio-backend/internal/canvas/persistence"
	"canvas-studio-backend/internal/faults"
	"canvas-studio-backend/internal/libraries"
	"canvas-studio-backend/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type documents struct {
	mu    sync.Mutex
	data  map[string][]byte
	saves int
	err   error
}

func (d *documents) LoadShapes(_ context.Context, id string) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	return d.data[id], nil
}

func (d *documents) SaveShapes(_ context.Context, id string, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.data[id] = data
	d.saves++
	return nil
}

type cache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func (c *cache) Get(id string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[id]
	return v, ok, nil
}

func (c *cache) Put(id string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = data
	return nil
}

func (c *cache) Delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	return nil
}

type event struct {
	projectID string
	msgType   libraries.WebSocketMessageType
	data      interface{}
}

type recorder struct {
	mu     sync.Mutex
	events []event
}

func (r *recorder) Publish(projectID string, msgType libraries.WebSocketMessageType, data interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{projectID, msgType, data})
}

func (r *recorder) ofType(t libraries.WebSocketMessageType) []event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []event
	for _, e := range r.events {
		if e.msgType == t {
			out = append(out, e)
		}
	}
	return out
}

type idleProvider struct{}

func (idleProvider) Submit(context.Context, models.JobRequest) (string, error) {
	return "job-1", nil
}

func (idleProvider) Status(_ context.Context, id string) (models.JobRecord, error) {
	return models.JobRecord{JobID: id, Status: models.JobProcessing}, nil
}

type fixture struct {
	docs  *documents
	cache *cache
	hub   *recorder
	m     *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		docs:  &documents{data: map[string][]byte{}},
		cache: &cache{entries: map[string][]byte{}},
		hub:   &recorder{},
	}
	f.m = NewManager(Deps{
		Documents: func(uuid.UUID) persistence.DocumentStore { return f.docs },
		Cache:     f.cache,
		Provider:  idleProvider{},
		Hub:       f.hub,
		Generation: generation.Config{
			PollInterval:    time.Hour,
			MaxPollAttempts: 1,
		},
		Sync: persistence.Config{Debounce: time.Hour},
	})
	t.Cleanup(func() { f.m.CloseAll(context.Background()) })
	return f
}

func TestOpenLoadsAndPublishes(t *testing.T) {
	f := newFixture(t)
	data, err := models.MarshalShapes([]models.Shape{models.NewShape("a", models.ShapeSticky, models.Point{}, 100, 100)})
	require.NoError(t, err)
	f.docs.data["p1"] = data
	user := uuid.New()

	s, err := f.m.Open(context.Background(), user, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, s.Store.IDs())

	again, err := f.m.Open(context.Background(), user, "p1")
	require.NoError(t, err)
	assert.Same(t, s, again)
	assert.Equal(t, 1, f.m.Len())

	require.NoError(t, s.Store.AddShape(models.NewShape("b", models.ShapeText, models.Point{}, 100, 40)))
	events := f.hub.ofType(libraries.WebSocketMessageTypeShapes)
	require.NotEmpty(t, events)
	last := events[len(events)-1].data.(ShapesEvent)
	assert.Equal(t, "p1", last.ProjectID)
	assert.Len(t, last.Shapes, 2)
	assert.Equal(t, s.Store.Version(), last.Version)
	assert.NotEmpty(t, f.hub.ofType(libraries.WebSocketMessageTypeSaveStatus))
}

func TestSessionsAreScopedToTheirUser(t *testing.T) {
	f := newFixture(t)
	owner, other := uuid.New(), uuid.New()
	_, err := f.m.Open(context.Background(), owner, "p1")
	require.NoError(t, err)

	_, err = f.m.Open(context.Background(), other, "p1")
	assert.ErrorIs(t, err, faults.ErrNotFound)
	_, err = f.m.Get(other, "p1")
	assert.ErrorIs(t, err, faults.ErrNotFound)
	assert.ErrorIs(t, f.m.Close(context.Background(), other, "p1"), faults.ErrNotFound)
}

func TestOpenFailureLeavesNoSession(t *testing.T) {
	f := newFixture(t)
	f.docs.err = fmt.Errorf("project p1: %w", faults.ErrNotFound)

	_, err := f.m.Open(context.Background(), uuid.New(), "p1")

	assert.ErrorIs(t, err, faults.ErrNotFound)
	assert.Zero(t, f.m.Len())
	events := f.hub.ofType(libraries.WebSocketMessageTypeErrorNotice)
	require.Len(t, events, 1)
	assert.Equal(t, "p1", events[0].projectID)
}

func TestCloseFlushesPendingEdits(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	s, err := f.m.Open(context.Background(), user, "p1")
	require.NoError(t, err)
	require.NoError(t, s.Store.AddShape(models.NewShape("a", models.ShapeSticky, models.Point{}, 100, 100)))
	_, cached, _ := f.cache.Get("p1")
	assert.True(t, cached)

	require.NoError(t, f.m.Close(context.Background(), user, "p1"))

	assert.Equal(t, 1, f.docs.saves)
	_, cached, _ = f.cache.Get("p1")
	assert.False(t, cached)
	_, err = f.m.Get(user, "p1")
	assert.ErrorIs(t, err, faults.ErrNotFound)
}

func TestReactivateReloadsRemote(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	s, err := f.m.Open(context.Background(), user, "p1")
	require.NoError(t, err)

	data, err := models.MarshalShapes([]models.Shape{models.NewShape("x", models.ShapeImage, models.Point{}, 64, 64)})
	require.NoError(t, err)
	f.docs.mu.Lock()
	f.docs.data["p1"] = data
	f.docs.mu.Unlock()

	_, err = f.m.Reactivate(context.Background(), user, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, s.Store.IDs())
}

func TestDiscardDropsWithoutSaving(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	s, err := f.m.Open(context.Background(), user, "p1")
	require.NoError(t, err)
	require.NoError(t, s.Store.AddShape(models.NewShape("a", models.ShapeSticky, models.Point{}, 100, 100)))

	f.m.Discard("p1")

	assert.Zero(t, f.docs.saves)
	assert.Zero(t, f.m.Len())
	_, cached, _ := f.cache.Get("p1")
	assert.False(t, cached)
}

func TestClearedNoticeReachesOpenProjects(t *testing.T) {
	f := newFixture(t)
	_, err := f.m.Open(context.Background(), uuid.New(), "p1")
	require.NoError(t, err)

	f.m.Slot().Report("generation", "p1", "s1", faults.Provider("nsfw"))
	f.m.Slot().Clear()

	events := f.hub.ofType(libraries.WebSocketMessageTypeErrorNotice)
	require.Len(t, events, 2)
	assert.Equal(t, "p1", events[1].projectID)
	assert.Nil(t, events[1].data)
}

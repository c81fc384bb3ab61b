package store

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"canvas-studio-backend/internal/faults"
	"canvas-studio-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("gen-%d", n)
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(WithIDGenerator(sequentialIDs()))
}

func image(id string, x, y float64) models.Shape {
	return models.NewShape(id, models.ShapeImage, models.Point{X: x, Y: y}, 50, 50)
}

func addAll(t *testing.T, s *Store, shapes ...models.Shape) {
	t.Helper()
	for _, sh := range shapes {
		require.NoError(t, s.AddShape(sh))
	}
}

func TestAddShapeRejectsDuplicateID(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddShape(image("a", 0, 0)))

	err := s.AddShape(image("a", 10, 10))
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.ErrorIs(t, err, faults.ErrValidation)
	assert.Equal(t, []string{"a"}, s.IDs())
	assert.Equal(t, uint64(1), s.Version())
}

func TestAddShapeRejectsMissingType(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddShape(image("a", 0, 0)))

	err := s.AddShape(models.Shape{ID: "x", Width: 10, Height: 10})
	assert.ErrorIs(t, err, ErrInvalidType)
	assert.ErrorIs(t, err, faults.ErrValidation)
	assert.ErrorIs(t, s.AddShape(models.Shape{ID: "y", Type: "hexagon"}), ErrInvalidType)
	assert.Equal(t, []string{"a"}, s.IDs())
	assert.Equal(t, uint64(1), s.Version())

	// the document still decodes after the rejected calls
	data, err := models.MarshalShapes(s.Snapshot().Shapes)
	require.NoError(t, err)
	shapes, err := models.UnmarshalShapes(data)
	require.NoError(t, err)
	assert.Len(t, shapes, 1)
}

func TestAddShapeAppendsOnTopAndNormalizes(t *testing.T) {
	s := newTestStore(t)
	bad := image("b", 0, 0)
	bad.Width, bad.Height = -3, 0
	bad.GroupID = "missing"
	bad.Controls = models.Controls{models.ControlDepth: {Show: true, Strength: 4}}
	addAll(t, s, image("a", 0, 0), bad)

	assert.Equal(t, []string{"a", "b"}, s.IDs())
	got, ok := s.Get("b")
	require.True(t, ok)
	assert.Equal(t, models.MinDimension, got.Width)
	assert.Equal(t, models.MinDimension, got.Height)
	assert.Empty(t, got.GroupID)
	assert.Equal(t, models.MaxStrength, got.Controls[models.ControlDepth].Strength)
}

func TestIDSetMatchesNetEffect(t *testing.T) {
	s := newTestStore(t)
	rng := rand.New(rand.NewSource(7))
	want := map[string]bool{}
	for i := 0; i < 200; i++ {
		id := fmt.Sprintf("s%d", rng.Intn(40))
		if want[id] {
			s.DeleteShape(id)
			delete(want, id)
			continue
		}
		require.NoError(t, s.AddShape(image(id, float64(i), 0)))
		want[id] = true
	}

	got := s.IDs()
	sort.Strings(got)
	var expected []string
	for id := range want {
		expected = append(expected, id)
	}
	sort.Strings(expected)
	assert.Equal(t, expected, got)
}

func TestUpdateShapeMergesAndIgnoresMissing(t *testing.T) {
	s := newTestStore(t)
	addAll(t, s, image("a", 0, 0), image("b", 0, 0))
	before := s.Version()

	s.UpdateShape("a", models.ShapePatch{
		ImageURL:   models.Ptr("https://x/y.png"),
		Width:      models.Ptr(-10.0),
		AppendLogs: []string{"step1"},
	})
	s.UpdateShape("missing", models.ShapePatch{Color: models.Ptr("red")})

	got, _ := s.Get("a")
	assert.Equal(t, "https://x/y.png", got.ImageURL)
	assert.Equal(t, models.MinDimension, got.Width)
	assert.Equal(t, []string{"step1"}, got.Logs)
	assert.Equal(t, []string{"a", "b"}, s.IDs())
	assert.Equal(t, before+1, s.Version())
}

func TestUpdateShapesEmitsOneVersion(t *testing.T) {
	s := newTestStore(t)
	addAll(t, s, image("a", 0, 0), image("b", 0, 0), image("c", 0, 0))

	var seen []Snapshot
	unsubscribe := s.Subscribe(func(snap Snapshot) { seen = append(seen, snap) })
	defer unsubscribe()

	s.UpdateShapes([]Update{
		{ID: "a", Patch: models.ShapePatch{Color: models.Ptr("red")}},
		{ID: "b", Patch: models.ShapePatch{Color: models.Ptr("green")}},
		{ID: "nope", Patch: models.ShapePatch{Color: models.Ptr("blue")}},
	})

	require.Len(t, seen, 1)
	assert.Equal(t, "red", seen[0].Shapes[0].Color)
	assert.Equal(t, "green", seen[0].Shapes[1].Color)
}

func TestActiveFlagsAreExclusive(t *testing.T) {
	s := newTestStore(t)
	p1 := models.NewShape("p1", models.ShapeSticky, models.Point{}, 100, 100)
	p2 := models.NewShape("p2", models.ShapeSticky, models.Point{}, 100, 100)
	d1 := models.NewShape("d1", models.ShapeDiffusionSettings, models.Point{}, 100, 100)
	d2 := models.NewShape("d2", models.ShapeDiffusionSettings, models.Point{}, 100, 100)
	p1.IsTextPrompt = true
	d1.UseSettings = true
	addAll(t, s, p1, p2, d1, d2)

	s.UpdateShape("p2", models.ShapePatch{IsTextPrompt: models.Ptr(true)})
	s.UpdateShape("d2", models.ShapePatch{UseSettings: models.Ptr(true)})
	// not a sticky, so the flag does not stick
	s.UpdateShape("d1", models.ShapePatch{IsTextPrompt: models.Ptr(true)})

	snap := s.Snapshot()
	var prompts, settings []string
	for _, sh := range snap.Shapes {
		if sh.IsTextPrompt {
			prompts = append(prompts, sh.ID)
		}
		if sh.UseSettings {
			settings = append(settings, sh.ID)
		}
	}
	assert.Equal(t, []string{"p2"}, prompts)
	assert.Equal(t, []string{"d2"}, settings)
}

func TestStackingMoves(t *testing.T) {
	s := newTestStore(t)
	addAll(t, s, image("a", 0, 0), image("b", 0, 0), image("c", 0, 0), image("d", 0, 0))

	s.SendForward("b")
	assert.Equal(t, []string{"a", "c", "b", "d"}, s.IDs())
	s.SendBackward("b")
	assert.Equal(t, []string{"a", "b", "c", "d"}, s.IDs())
	s.SendToFront("a")
	assert.Equal(t, []string{"b", "c", "d", "a"}, s.IDs())
	s.SendToBack("d")
	assert.Equal(t, []string{"d", "b", "c", "a"}, s.IDs())

	v := s.Version()
	s.SendToFront("a")
	s.SendForward("a")
	s.SendToBack("d")
	s.SendBackward("d")
	s.SendForward("missing")
	assert.Equal(t, v, s.Version(), "moves at an extreme are no-ops")
}

func TestFrontThenBackReachesExtremes(t *testing.T) {
	s := newTestStore(t)
	addAll(t, s, image("a", 0, 0), image("b", 0, 0), image("c", 0, 0))

	s.SendToFront("b")
	ids := s.IDs()
	assert.Equal(t, "b", ids[len(ids)-1])
	s.SendToBack("b")
	ids = s.IDs()
	assert.Equal(t, "b", ids[0])
	assert.ElementsMatch(t, []string{"a", "b", "c"}, ids)

	single := newTestStore(t)
	addAll(t, single, image("only", 0, 0))
	single.SendToFront("only")
	single.SendToBack("only")
	assert.Equal(t, []string{"only"}, single.IDs())
}

func TestCreateGroupThenUngroupRestoresMembers(t *testing.T) {
	s := newTestStore(t)
	a := image("a", 10, 20)
	a.Rotation = 15
	b := models.NewShape("b", models.ShapeSticky, models.Point{X: 200, Y: 40}, 80, 120)
	addAll(t, s, a, b, image("c", 500, 500))
	original := s.Snapshot().Shapes

	groupID, ok := s.CreateGroup([]string{"a", "b"})
	require.True(t, ok)

	g, ok := s.Get(groupID)
	require.True(t, ok)
	assert.Equal(t, models.ShapeGroup, g.Type)
	assert.Equal(t, models.Point{X: 10, Y: 20}, g.Position)
	assert.Equal(t, 270.0, g.Width)
	assert.Equal(t, 140.0, g.Height)
	assert.Equal(t, []string{groupID, "a", "b", "c"}, s.IDs())
	for _, id := range []string{"a", "b"} {
		m, _ := s.Get(id)
		assert.Equal(t, groupID, m.GroupID)
	}

	s.Ungroup(groupID)
	assert.False(t, s.Has(groupID))
	assert.Equal(t, original, s.Snapshot().Shapes)
}

func TestCreateGroupNeedsTwoEligible(t *testing.T) {
	s := newTestStore(t)
	addAll(t, s, image("a", 0, 0), image("b", 0, 0), image("c", 0, 0))
	groupID, ok := s.CreateGroup([]string{"a", "b"})
	require.True(t, ok)
	v := s.Version()

	_, ok = s.CreateGroup([]string{"a", "c"}) // a is already grouped
	assert.False(t, ok)
	_, ok = s.CreateGroup([]string{"c", "c", "zzz"})
	assert.False(t, ok)
	_, ok = s.CreateGroup([]string{groupID, "c"})
	assert.False(t, ok)
	assert.Equal(t, v, s.Version())
}

func TestDeleteGroupClearsMembers(t *testing.T) {
	s := newTestStore(t)
	addAll(t, s, image("a", 0, 0), image("b", 100, 100))
	groupID, _ := s.CreateGroup([]string{"a", "b"})

	s.DeleteShape(groupID)

	assert.Equal(t, []string{"a", "b"}, s.IDs())
	for _, id := range []string{"a", "b"} {
		m, _ := s.Get(id)
		assert.Empty(t, m.GroupID)
	}
}

func TestDeletingLastMemberRemovesGroup(t *testing.T) {
	s := newTestStore(t)
	addAll(t, s, image("a", 0, 0), image("b", 100, 100), image("c", 300, 300))
	groupID, _ := s.CreateGroup([]string{"a", "b"})

	s.DeleteShape("a")
	g, ok := s.Get(groupID)
	require.True(t, ok)
	assert.Equal(t, models.Point{X: 100, Y: 100}, g.Position)

	s.DeleteShape("b")
	assert.False(t, s.Has(groupID))
	assert.Equal(t, []string{"c"}, s.IDs())
}

func TestMembershipEditsRecomputeBounds(t *testing.T) {
	s := newTestStore(t)
	addAll(t, s, image("a", 0, 0), image("b", 100, 0), image("c", 300, 300))
	groupID, _ := s.CreateGroup([]string{"a", "b"})

	s.AddToGroup([]string{"c"}, groupID)
	g, _ := s.Get(groupID)
	assert.Equal(t, 350.0, g.Width)
	assert.Equal(t, 350.0, g.Height)

	s.RemoveFromGroup([]string{"a"})
	g, _ = s.Get(groupID)
	assert.Equal(t, models.Point{X: 100, Y: 0}, g.Position)
	assert.Equal(t, 250.0, g.Width)

	s.RemoveFromGroup([]string{"b", "c"})
	assert.False(t, s.Has(groupID), "empty group is removed")
}

func TestMovingGroupMovesMembers(t *testing.T) {
	s := newTestStore(t)
	addAll(t, s, image("a", 0, 0), image("b", 100, 0))
	groupID, _ := s.CreateGroup([]string{"a", "b"})

	s.UpdateShape(groupID, models.ShapePatch{Position: &models.Point{X: 10, Y: 5}})

	a, _ := s.Get("a")
	b, _ := s.Get("b")
	assert.Equal(t, models.Point{X: 10, Y: 5}, a.Position)
	assert.Equal(t, models.Point{X: 110, Y: 5}, b.Position)
}

func TestDuplicatePlacesCloneAboveOriginal(t *testing.T) {
	s := newTestStore(t)
	addAll(t, s, image("S0", 0, 0), image("S1", 100, 100), image("S2", 0, 0))

	created := s.Duplicate([]string{"S1"})

	require.Len(t, created, 1)
	assert.NotEqual(t, "S1", created[0])
	assert.Equal(t, []string{"S0", "S1", created[0], "S2"}, s.IDs())
	clone, _ := s.Get(created[0])
	assert.Equal(t, models.Point{X: 120, Y: 120}, clone.Position)
	assert.Equal(t, 50.0, clone.Width)
	assert.Equal(t, 50.0, clone.Height)
}

func TestDuplicateGroupRemapsMembers(t *testing.T) {
	s := newTestStore(t)
	addAll(t, s, image("a", 0, 0), image("b", 100, 0))
	groupID, _ := s.CreateGroup([]string{"a", "b"})

	created := s.Duplicate([]string{groupID})
	require.Len(t, created, 3)

	cloneGroup, _ := s.Get(created[0])
	assert.Equal(t, models.ShapeGroup, cloneGroup.Type)
	for _, id := range created[1:] {
		m, _ := s.Get(id)
		assert.Equal(t, cloneGroup.ID, m.GroupID)
	}
}

func TestHydrateRepairsInvariants(t *testing.T) {
	s := newTestStore(t)
	p1 := models.NewShape("p1", models.ShapeSticky, models.Point{}, 10, 10)
	p2 := models.NewShape("p2", models.ShapeSticky, models.Point{}, 10, 10)
	p1.IsTextPrompt, p2.IsTextPrompt = true, true
	orphan := image("o", 0, 0)
	orphan.GroupID = "ghost"

	s.Hydrate([]models.Shape{p1, p2, orphan, image("o", 5, 5)})

	assert.Equal(t, []string{"p1", "p2", "o"}, s.IDs())
	got, _ := s.Get("p2")
	assert.False(t, got.IsTextPrompt)
	got, _ = s.Get("o")
	assert.Empty(t, got.GroupID)
	assert.Equal(t, 0.0, got.Position.X)
}

func TestBatchAbortsOnError(t *testing.T) {
	s := newTestStore(t)
	addAll(t, s, image("a", 0, 0))
	v := s.Version()

	err := s.Batch(func(tx *Tx) error {
		tx.Update("a", models.ShapePatch{Color: models.Ptr("red")})
		return tx.Add(image("a", 0, 0))
	})

	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.Equal(t, v, s.Version())
	got, _ := s.Get("a")
	assert.NotEqual(t, "red", got.Color)
}

func TestReentrantMutationIsDeliveredInOrder(t *testing.T) {
	s := newTestStore(t)
	var versions []uint64
	var lens []int
	s.Subscribe(func(snap Snapshot) {
		versions = append(versions, snap.Version)
		lens = append(lens, len(snap.Shapes))
		if snap.Version == 1 {
			require.NoError(t, s.AddShape(image("echo", 0, 0)))
		}
	})

	require.NoError(t, s.AddShape(image("a", 0, 0)))

	assert.Equal(t, []uint64{1, 2}, versions)
	assert.Equal(t, []int{1, 2}, lens)
}

func TestSnapshotIsIsolated(t *testing.T) {
	s := newTestStore(t)
	sh := image("a", 0, 0)
	sh.Logs = []string{"one"}
	addAll(t, s, sh)

	snap := s.Snapshot()
	snap.Shapes[0].Logs[0] = "mutated"

	got, _ := s.Get("a")
	assert.Equal(t, []string{"one"}, got.Logs)
}

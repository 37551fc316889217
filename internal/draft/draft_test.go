package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/rfpdesk/internal/model"
	"github.com/sells-group/rfpdesk/internal/store"
	"github.com/sells-group/rfpdesk/internal/store/storetest"
)

func setup(t *testing.T) (*Service, store.Store, *model.Project) {
	t.Helper()
	st := storetest.New(t)
	p := storetest.Project(t, st, "Campus Wi-Fi", model.ProjectTypeRFP)
	return NewService(st), st, p
}

func raw(s string) json.RawMessage { return json.RawMessage(s) }

func TestSave_CreatesThenAppends(t *testing.T) {
	svc, st, p := setup(t)
	ctx := context.Background()

	d, changed, err := svc.Save(ctx, p.ID, raw(`{"sections":[{"title":"Intro"}]}`), nil)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, d.CurrentVersion)

	proj, err := st.GetProject(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, proj.ActiveDraftID)
	assert.Equal(t, d.ID, *proj.ActiveDraftID)

	d2, changed, err := svc.Save(ctx, p.ID, raw(`{"sections":[{"title":"Intro"},{"title":"Pricing"}]}`), raw(`{"source":"editor"}`))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, d.ID, d2.ID)
	assert.Equal(t, 2, d2.CurrentVersion)

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentVersion)
	assert.JSONEq(t, `{"sections":[{"title":"Intro"},{"title":"Pricing"}]}`, string(got.Content))
}

func TestSave_IdenticalContentIsNoOp(t *testing.T) {
	svc, _, p := setup(t)
	ctx := context.Background()

	_, _, err := svc.Save(ctx, p.ID, raw(`{"a":1,"b":[1,2]}`), nil)
	require.NoError(t, err)
	_, _, err = svc.Save(ctx, p.ID, raw(`{"x":"changed"}`), nil)
	require.NoError(t, err)

	// Same document with different key order and whitespace.
	d, changed, err := svc.Save(ctx, p.ID, raw("{ \"x\" :\n \"changed\" }"), nil)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 2, d.CurrentVersion)

	_, changed, err = svc.Save(ctx, p.ID, raw(`{"x":"changed"}`), nil)
	require.NoError(t, err)
	assert.False(t, changed)

	revs, err := svc.List(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, revs, 2)
}

func TestSave_Validation(t *testing.T) {
	svc, _, p := setup(t)
	ctx := context.Background()

	for name, content := range map[string]string{"empty": "", "blank": "  ", "invalid": "{nope"} {
		t.Run(name, func(t *testing.T) {
			_, _, err := svc.Save(ctx, p.ID, raw(content), nil)
			assert.True(t, errors.Is(err, model.ErrValidation))
		})
	}

	_, _, err := svc.Save(ctx, p.ID, raw(`{}`), raw(`{bad`))
	assert.True(t, errors.Is(err, model.ErrValidation))

	_, _, err = svc.Save(ctx, "missing", raw(`{}`), nil)
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestRestore_AppendsNewTopRevision(t *testing.T) {
	svc, _, p := setup(t)
	ctx := context.Background()

	for _, c := range []string{`{"v":"one"}`, `{"v":"two"}`, `{"v":"three"}`} {
		_, _, err := svc.Save(ctx, p.ID, raw(c), nil)
		require.NoError(t, err)
	}

	revs, err := svc.List(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, revs, 3)
	first := revs[2]
	assert.Equal(t, 1, first.Version)

	before, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)

	d, err := svc.Restore(ctx, p.ID, first.ID)
	require.NoError(t, err)
	assert.Greater(t, d.CurrentVersion, before.CurrentVersion)
	assert.Equal(t, 4, d.CurrentVersion)

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.JSONEq(t, string(first.Content), string(got.Content))
	assert.Equal(t, d.CurrentVersion, got.CurrentVersion)

	revs, err = svc.List(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, revs, 4, "restore never deletes history")
	assert.Equal(t, 4, revs[0].Version)
	var meta map[string]any
	require.NoError(t, json.Unmarshal(revs[0].Metadata, &meta))
	assert.Equal(t, first.ID, meta["restored_from"])
	assert.EqualValues(t, 1, meta["restored_version"])

	// Restoring the current content still moves the version forward.
	d, err = svc.Restore(ctx, p.ID, revs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 5, d.CurrentVersion)
}

func TestRestore_ForeignOrUnknownRevision(t *testing.T) {
	svc, st, p := setup(t)
	ctx := context.Background()
	other := storetest.Project(t, st, "Other", model.ProjectTypeRFI)

	_, _, err := svc.Save(ctx, other.ID, raw(`{"v":1}`), nil)
	require.NoError(t, err)
	otherRevs, err := svc.List(ctx, other.ID)
	require.NoError(t, err)

	_, _, err = svc.Save(ctx, p.ID, raw(`{"v":2}`), nil)
	require.NoError(t, err)

	_, err = svc.Restore(ctx, p.ID, otherRevs[0].ID)
	assert.True(t, errors.Is(err, model.ErrNotFound))

	_, err = svc.Restore(ctx, p.ID, "no-such-revision")
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestDelete_ClearsDraftAndHistory(t *testing.T) {
	svc, st, p := setup(t)
	ctx := context.Background()

	_, _, err := svc.Save(ctx, p.ID, raw(`{"v":1}`), nil)
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, p.ID))

	_, err = svc.Get(ctx, p.ID)
	assert.True(t, errors.Is(err, model.ErrNotFound))

	revs, err := svc.List(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, revs)

	// A later save starts a fresh draft at version 1.
	d, changed, err := svc.Save(ctx, p.ID, raw(`{"v":1}`), nil)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, d.CurrentVersion)

	acts, err := st.ListActivity(ctx, p.ID, 10)
	require.NoError(t, err)
	actions := make([]string, len(acts))
	for i, a := range acts {
		actions[i] = a.Action
	}
	assert.Contains(t, actions, model.ActivityDraftDeleted)
	assert.Contains(t, actions, model.ActivityDraftSaved)
}

func TestEqual(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{`{"a":1,"b":2}`, `{"b":2,"a":1}`, true},
		{`[1,2]`, `[2,1]`, false},
		{`{"a":1.0}`, `{"a":1}`, true},
		{`{"a":null}`, `{}`, false},
	}
	for _, tt := range tests {
		got, err := Equal(raw(tt.a), raw(tt.b))
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s vs %s", tt.a, tt.b)
	}

	_, err := Equal(raw(`{`), raw(`{}`))
	assert.Error(t, err)
}

// slowReads delays GetActiveDraft so concurrent saves all observe the same
// state before writing, as they would against a networked database.
type slowReads struct {
	store.Store
	delay time.Duration
}

func (s slowReads) GetActiveDraft(ctx context.Context, projectID string) (*model.Draft, error) {
	d, err := s.Store.GetActiveDraft(ctx, projectID)
	time.Sleep(s.delay)
	return d, err
}

func TestSave_ConcurrentFirstSavesShareOneDraft(t *testing.T) {
	_, st, p := setup(t)
	svc := NewService(slowReads{Store: st, delay: 5 * time.Millisecond})
	ctx := context.Background()

	const writers = 4
	ids := make([]string, writers)
	var g errgroup.Group
	for i := 0; i < writers; i++ {
		g.Go(func() error {
			d, changed, err := svc.Save(ctx, p.ID, raw(fmt.Sprintf(`{"writer":%d}`, i)), nil)
			if err != nil {
				return err
			}
			if !changed {
				return fmt.Errorf("writer %d: save reported no change", i)
			}
			ids[i] = d.ID
			return nil
		})
	}
	require.NoError(t, g.Wait())

	active, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	for i, id := range ids {
		assert.Equal(t, active.ID, id, "writer %d saved to a draft the project does not point at", i)
	}
	assert.Equal(t, writers, active.CurrentVersion)

	revs, err := svc.List(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, revs, writers)
	seen := make(map[string]bool)
	for _, r := range revs {
		seen[string(r.Content)] = true
	}
	for i := 0; i < writers; i++ {
		assert.True(t, seen[fmt.Sprintf(`{"writer":%d}`, i)], "content of writer %d not reachable", i)
	}
}

func TestSave_ConcurrentIdenticalSavesStoreOneRevision(t *testing.T) {
	_, st, p := setup(t)
	svc := NewService(slowReads{Store: st, delay: 5 * time.Millisecond})
	ctx := context.Background()

	_, _, err := svc.Save(ctx, p.ID, raw(`{"v":0}`), nil)
	require.NoError(t, err)

	changes := make([]bool, 2)
	var g errgroup.Group
	for i := range changes {
		g.Go(func() error {
			_, changed, err := svc.Save(ctx, p.ID, raw(`{"v":1}`), nil)
			changes[i] = changed
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.ElementsMatch(t, []bool{true, false}, changes)
	revs, err := svc.List(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, revs, 2)
	assert.JSONEq(t, `{"v":1}`, string(revs[0].Content))
	assert.Equal(t, 2, revs[0].Version)
}

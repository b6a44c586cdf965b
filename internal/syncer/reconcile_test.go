package syncer

import (
	"testing"

	"github.com/dmitrijs2005/clubsync/internal/entity"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func membersSchema(t *testing.T) entity.Schema {
	t.Helper()
	s, ok := entity.DefaultRegistry().Get("members")
	require.True(t, ok)
	return s
}

func TestReconcile_LocalWinsAndRemoteAdded(t *testing.T) {
	s := membersSchema(t)
	local := []entity.Record{{"id": float64(1), "email": "a@x.com", "isActive": false}}
	remote := []entity.Record{
		{"id": float64(1), "email": "a@x.com", "isActive": true},
		{"id": float64(2), "email": "b@x.com"},
	}

	got, counts := Reconcile(s, remote, local)

	want := []entity.Record{
		{"id": float64(1), "email": "a@x.com", "isActive": false},
		{"id": float64(2), "email": "b@x.com"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("merged mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, Counts{Remote: 2, Local: 1, Merged: 2, Added: 1, Deleted: 0}, counts)
}

func TestReconcile_RemoteDeletionDropsSyncedRecord(t *testing.T) {
	s := membersSchema(t)
	got, counts := Reconcile(s, nil, []entity.Record{{"id": float64(5), "email": "e@x.com"}})

	assert.Empty(t, got)
	assert.Equal(t, 1, counts.Deleted)
}

func TestReconcile_LocalOnlySurvivesEmptyRemote(t *testing.T) {
	s := membersSchema(t)
	local := []entity.Record{{"id": nil, "tempId": "local-1", "email": "c@x.com"}}

	got, counts := Reconcile(s, []entity.Record{}, local)

	if diff := cmp.Diff(local, got); diff != "" {
		t.Fatalf("local-only record lost (-want +got):\n%s", diff)
	}
	assert.Equal(t, 0, counts.Deleted)
}

func TestReconcile_PlaceholderIDNeverTombstonedOrMatched(t *testing.T) {
	s := membersSchema(t)
	local := []entity.Record{{"id": float64(3), "tempId": "local-3", "email": "p@x.com"}}
	remote := []entity.Record{{"id": float64(3), "email": "someone-else@x.com"}}

	got, _ := Reconcile(s, remote, local)

	require.Len(t, got, 2, "placeholder id 3 must not collide with remote id 3")
	assert.Equal(t, "local-3", got[0]["tempId"])
	assert.Equal(t, "someone-else@x.com", got[1]["email"])
}

func TestReconcile_BackfillsSecondaryIdentity(t *testing.T) {
	s := membersSchema(t)
	local := []entity.Record{{"id": float64(1), "email": "a@x.com", "firstName": "Local"}}
	remote := []entity.Record{{"id": float64(1), "email": "a@x.com", "authUserId": "u-1", "firstName": "Remote"}}

	got, _ := Reconcile(s, remote, local)

	want := []entity.Record{{"id": float64(1), "email": "a@x.com", "authUserId": "u-1", "firstName": "Local"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("backfill mismatch (-want +got):\n%s", diff)
	}
}

func TestReconcile_LocalOnlyAdoptsRemoteIDOnNaturalKey(t *testing.T) {
	s := membersSchema(t)
	local := []entity.Record{{"id": float64(1), "tempId": "local-1", "email": "C@x.com", "firstName": "Cleo"}}
	remote := []entity.Record{{"id": float64(40), "email": "c@x.com"}}

	got, counts := Reconcile(s, remote, local)

	want := []entity.Record{{"id": float64(40), "email": "C@x.com", "firstName": "Cleo"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("adoption mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 0, counts.Added)
}

func TestReconcile_IdentityUniqueness(t *testing.T) {
	s := membersSchema(t)
	local := []entity.Record{
		{"id": float64(1), "email": "a@x.com"},
		{"id": float64(1), "email": "dup@x.com"},
		{"tempId": "local-9", "email": "A@X.com"},
	}
	remote := []entity.Record{
		{"id": float64(1)},
		{"id": float64(2), "authUserId": "u-2"},
		{"id": float64(3), "authUserId": "u-2"},
	}

	got, _ := Reconcile(s, remote, local)

	ix := entity.NewIndex(s)
	for i, r := range got {
		_, clash := ix.Lookup(r)
		assert.False(t, clash, "record %d resolves to an earlier identity: %v", i, r)
		ix.Add(r, i)
	}
	assert.Len(t, got, 2)
}

func TestReconcile_DoesNotMutateInputs(t *testing.T) {
	s := membersSchema(t)
	local := []entity.Record{{"id": float64(1), "email": "a@x.com"}}
	remote := []entity.Record{{"id": float64(1), "email": "a@x.com", "authUserId": "u-1"}}

	got, _ := Reconcile(s, remote, local)
	got[0]["email"] = "changed"

	assert.NotContains(t, local[0], "authUserId")
	assert.Equal(t, "a@x.com", local[0]["email"])
	assert.Equal(t, "a@x.com", remote[0]["email"])
}

func TestReconcile_CountsCollapsedLocalDuplicates(t *testing.T) {
	s := membersSchema(t)
	local := []entity.Record{
		{"id": nil, "tempId": "local-1", "email": "dup@x.com", "firstName": "First"},
		{"id": nil, "tempId": "local-2", "email": "dup@x.com", "firstName": "Second"},
		{"id": nil, "tempId": "local-3", "email": "other@x.com"},
	}

	got, counts := Reconcile(s, nil, local)

	require.Len(t, got, 2)
	assert.Equal(t, "First", got[0]["firstName"])
	assert.Equal(t, 1, counts.Collapsed)
	assert.Equal(t, Counts{Local: 3, Merged: 2, Collapsed: 1}, counts)
}

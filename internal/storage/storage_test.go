package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/moonz/internal/mind"
)

func TestStore_Empty(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "state.json"), "x:moonz")
	require.NoError(t, err)
	defer s.Close()

	id, err := s.LastMentionID()
	require.NoError(t, err)
	assert.Empty(t, id)

	cd, err := s.Cooldowns()
	require.NoError(t, err)
	assert.Empty(t, cd)

	ok, err := s.Followed("u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s, err := New(path, "x:moonz")
	require.NoError(t, err)
	require.NoError(t, s.SetLastMentionID("1834"))
	require.NoError(t, s.SaveCooldowns(mind.CooldownState{mind.ActionUpdateBio: at}))
	require.NoError(t, s.MarkFollowed("u1"))
	require.NoError(t, s.Close())

	s, err = New(path, "x:moonz")
	require.NoError(t, err)
	defer s.Close()

	id, err := s.LastMentionID()
	require.NoError(t, err)
	assert.Equal(t, "1834", id)

	cd, err := s.Cooldowns()
	require.NoError(t, err)
	assert.True(t, at.Equal(cd.Last(mind.ActionUpdateBio)))

	ok, err := s.Followed("u1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_AccountsAreSeparate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	a, err := New(path, "x:moonz")
	require.NoError(t, err)
	defer a.Close()
	require.NoError(t, a.SetLastMentionID("42"))

	id, err := a.LastMentionID()
	require.NoError(t, err)
	assert.Equal(t, "42", id)

	a.account = "discord:moonz"
	id, err = a.LastMentionID()
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestNew_RequiresAccount(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "state.json"), "")
	assert.Error(t, err)
}

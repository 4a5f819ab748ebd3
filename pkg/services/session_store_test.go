package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore(time.Hour, zap.NewNop(), nil)

	s := store.Create()
	assert.NotEmpty(t, s.ID)
	assert.Nil(t, s.Model())

	got, err := store.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	model := &ForecastModel{ID: "m1", ProductKey: "P1"}
	got.Install(model)
	assert.Same(t, model, s.Model())

	other := store.Create()
	assert.Nil(t, other.Model(), "sessions do not share models")
	assert.Equal(t, 2, store.Len())

	assert.True(t, store.Delete(s.ID))
	assert.False(t, store.Delete(s.ID))
	_, err = store.Get(s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionBeginRejectsConcurrentAction(t *testing.T) {
	store := NewSessionStore(0, nil, nil)
	s := store.Create()

	release, err := s.Begin()
	require.NoError(t, err)

	_, err = s.Begin()
	assert.ErrorIs(t, err, ErrSessionBusy)

	release()
	release2, err := s.Begin()
	require.NoError(t, err)
	release2()
}

func TestSessionStorePurgeIdle(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewSessionStore(30*time.Minute, nil, nil)
	store.now = func() time.Time { return now }

	stale := store.Create()
	fresh := store.Create()

	now = now.Add(20 * time.Minute)
	_, err := store.Get(fresh.ID)
	require.NoError(t, err)

	now = now.Add(20 * time.Minute)
	assert.Equal(t, 1, store.PurgeIdle())

	_, err = store.Get(stale.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = store.Get(fresh.ID)
	assert.NoError(t, err)
}

package tokencache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/singlebase/singlebase-go/session"
	"github.com/singlebase/singlebase-go/storage"
)

func TestCache_SetStampsRevisionFromClock(t *testing.T) {
	c := New(storage.NewMemoryMedium(), "ns/auth:session")
	c.SetNowFunc(func() time.Time { return time.UnixMilli(1700000000123) })

	s := &session.Session{IDToken: "tok"}
	require.NoError(t, c.Set(s))
	require.Equal(t, int64(1700000000123), s.Revision)

	got, err := c.Get()
	require.NoError(t, err)
	require.Equal(t, "tok", got.IDToken)
	require.Equal(t, int64(1700000000123), got.Revision)
}

func TestCache_SuccessiveSetsAdvanceRevision(t *testing.T) {
	c := New(storage.NewMemoryMedium(), "ns/auth:session")
	millis := int64(1000)
	c.SetNowFunc(func() time.Time {
		millis++
		return time.UnixMilli(millis)
	})

	s := &session.Session{IDToken: "tok"}
	require.NoError(t, c.Set(s))
	first := s.Revision
	require.NoError(t, c.Set(s))
	require.Greater(t, s.Revision, first)
}

func TestCache_GetWhenEmptyIsAbsent(t *testing.T) {
	c := New(storage.NewMemoryMedium(), "ns/auth:session")

	got, err := c.Get()
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestCache_RemovePurges(t *testing.T) {
	c := New(storage.NewMemoryMedium(), "ns/auth:session")

	require.NoError(t, c.Set(&session.Session{IDToken: "tok"}))
	require.NoError(t, c.Remove())

	got, err := c.Get()
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestCache_SetNilFails(t *testing.T) {
	c := New(storage.NewMemoryMedium(), "ns/auth:session")
	require.Error(t, c.Set(nil))
}

package models

import (
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestSessionStore(t *testing.T) {
	t.Run("acquire hands out a token", func(t *testing.T) {
		var s SessionStore

		info, err := s.Acquire("alice")
		require.NoError(t, err)
		require.Equal(t, "alice", info.Owner)
		require.NotEmpty(t, info.Token)
		require.Equal(t, DefaultSessionTimeout.Seconds(), info.Timeout)
	})

	t.Run("a second user is refused while the session is held", func(t *testing.T) {
		var s SessionStore

		_, err := s.Acquire("alice")
		require.NoError(t, err)

		_, err = s.Acquire("bob")
		require.Error(t, err)
		require.Equal(t, ErrTypeSessionBusy, errors.Type(err))
	})

	t.Run("the holder can reacquire and gets a fresh token", func(t *testing.T) {
		var s SessionStore

		first, err := s.Acquire("alice")
		require.NoError(t, err)

		second, err := s.Acquire("alice")
		require.NoError(t, err)
		require.NotEqual(t, first.Token, second.Token)
	})

	t.Run("owner matching ignores case", func(t *testing.T) {
		var s SessionStore

		info, err := s.Acquire("Alice")
		require.NoError(t, err)

		require.NoError(t, s.ValidateOwner("alice", info.Token))
	})

	t.Run("validate rejects a stale token", func(t *testing.T) {
		var s SessionStore

		_, err := s.Acquire("alice")
		require.NoError(t, err)

		err = s.ValidateOwner("alice", "not-the-token")
		require.Error(t, err)
		require.Equal(t, ErrTypeSessionInvalid, errors.Type(err))
	})

	t.Run("validate rejects when no session is active", func(t *testing.T) {
		var s SessionStore

		err := s.ValidateOwner("alice", "whatever")
		require.Error(t, err)
		require.Equal(t, ErrTypeSessionInvalid, errors.Type(err))
	})

	t.Run("heartbeat keeps the session alive", func(t *testing.T) {
		now := time.Now()
		s := SessionStore{
			Timeout: time.Second * 10,
			Now:     func() time.Time { return now },
		}

		info, err := s.Acquire("alice")
		require.NoError(t, err)

		now = now.Add(time.Second * 8)
		require.NoError(t, s.Heartbeat("alice", info.Token))

		now = now.Add(time.Second * 8)
		require.NoError(t, s.ValidateOwner("alice", info.Token))
	})

	t.Run("a missed heartbeat frees the session", func(t *testing.T) {
		now := time.Now()
		s := SessionStore{
			Timeout: time.Second * 10,
			Now:     func() time.Time { return now },
		}

		info, err := s.Acquire("alice")
		require.NoError(t, err)

		now = now.Add(time.Second * 11)

		err = s.ValidateOwner("alice", info.Token)
		require.Error(t, err)
		require.Equal(t, ErrTypeSessionInvalid, errors.Type(err))

		_, err = s.Acquire("bob")
		require.NoError(t, err)
	})

	t.Run("release frees the session", func(t *testing.T) {
		var s SessionStore

		info, err := s.Acquire("alice")
		require.NoError(t, err)
		require.NoError(t, s.Release("alice", info.Token))

		_, ok := s.Holder()
		require.False(t, ok)

		_, err = s.Acquire("bob")
		require.NoError(t, err)
	})

	t.Run("release rejects a foreign token", func(t *testing.T) {
		var s SessionStore

		_, err := s.Acquire("alice")
		require.NoError(t, err)

		err = s.Release("alice", "stale")
		require.Error(t, err)
		require.Equal(t, ErrTypeSessionInvalid, errors.Type(err))
	})

	t.Run("holder reports the busy info without the token", func(t *testing.T) {
		var s SessionStore

		_, err := s.Acquire("alice")
		require.NoError(t, err)

		info, ok := s.Holder()
		require.True(t, ok)
		require.Equal(t, "alice", info.Owner)
		require.Empty(t, info.Token)
	})
}

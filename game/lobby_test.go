package game

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRoom(t *testing.T) {
	env := newTestEnv(t)

	t.Run("creates lobby room with host", func(t *testing.T) {
		res := env.createRoom(t)

		assert.Len(t, res.Code, RoomCodeLength)
		for _, c := range res.Code {
			assert.True(t, strings.ContainsRune(RoomCodeChars, c), "unexpected code char %q", c)
		}

		room := env.room(t, res.RoomID)
		assert.Equal(t, StatusLobby, room.Status)
		assert.Equal(t, testText, room.Text)
		assert.Equal(t, 60, room.Tier)
		assert.Equal(t, "host", room.HostSession)

		players, err := env.lobby.ListPlayers(env.ctx, res.RoomID)
		require.NoError(t, err)
		require.Len(t, players, 1)
		assert.Equal(t, res.PlayerID, players[0].ID)
		assert.True(t, players[0].IsHost)
		assert.Equal(t, "Host", players[0].Name)
	})

	t.Run("codes are distinct", func(t *testing.T) {
		a := env.createRoom(t)
		b := env.createRoom(t)
		assert.NotEqual(t, a.Code, b.Code)
	})

	t.Run("unknown duration", func(t *testing.T) {
		_, err := env.lobby.CreateRoom(env.ctx, "host", "Host", 42)
		assert.ErrorIs(t, err, ErrUnknownTier)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("rejects blank name and missing session", func(t *testing.T) {
		_, err := env.lobby.CreateRoom(env.ctx, "host", "   ", 60)
		assert.ErrorIs(t, err, ErrInvalidName)

		_, err = env.lobby.CreateRoom(env.ctx, "", "Host", 60)
		assert.ErrorIs(t, err, ErrNoSession)
	})
}

func TestJoinRoom(t *testing.T) {
	env := newTestEnv(t)
	created := env.createRoom(t)

	t.Run("code lookup ignores case", func(t *testing.T) {
		res, err := env.lobby.JoinRoom(env.ctx, strings.ToLower(created.Code), "guest", "Guest")
		require.NoError(t, err)
		assert.Equal(t, created.RoomID, res.RoomID)
		assert.NotEqual(t, created.PlayerID, res.PlayerID)
	})

	t.Run("same session is idempotent", func(t *testing.T) {
		first, err := env.lobby.JoinRoom(env.ctx, created.Code, "again", "Again")
		require.NoError(t, err)
		notified := env.notifier.Count()

		second, err := env.lobby.JoinRoom(env.ctx, created.Code, "again", "Again")
		require.NoError(t, err)
		assert.Equal(t, first.PlayerID, second.PlayerID)
		assert.Equal(t, notified, env.notifier.Count())

		players, err := env.lobby.ListPlayers(env.ctx, created.RoomID)
		require.NoError(t, err)
		count := 0
		for _, p := range players {
			if p.ID == first.PlayerID {
				count++
			}
		}
		assert.Equal(t, 1, count)
		assert.Len(t, players, 3)
	})

	t.Run("joined players are not host", func(t *testing.T) {
		p, err := env.lobby.PlayerForSession(env.ctx, created.RoomID, "guest")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.False(t, p.IsHost)
	})

	t.Run("unknown code", func(t *testing.T) {
		_, err := env.lobby.JoinRoom(env.ctx, "NOPE", "guest", "Guest")
		assert.ErrorIs(t, err, ErrRoomNotFound)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("lobby join seeds no progress", func(t *testing.T) {
		progress, err := env.tracker.GetProgress(env.ctx, created.RoomID)
		require.NoError(t, err)
		assert.Empty(t, progress)
	})
}

func TestJoinRoomDuringRace(t *testing.T) {
	env := newTestEnv(t)
	created := env.createRoom(t)
	env.startRace(t, created.RoomID)

	late := env.join(t, created.Code, "late")

	p, err := env.store.GetProgress(env.ctx, created.RoomID, late)
	require.NoError(t, err)
	require.NotNil(t, p, "late joiner gets a progress record")
	assert.Equal(t, 0, p.CurrentWord)
	assert.Empty(t, p.Input)
}

func TestJoinRoomDuringCountdown(t *testing.T) {
	env := newTestEnv(t)
	created := env.createRoom(t)
	require.NoError(t, env.engine.StartGame(env.ctx, created.RoomID, "host"))

	late := env.join(t, created.Code, "late")

	p, err := env.store.GetProgress(env.ctx, created.RoomID, late)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestLeaveRoom(t *testing.T) {
	t.Run("host leaving hands over to earliest player", func(t *testing.T) {
		env := newTestEnv(t)
		created := env.createRoom(t)
		first := env.join(t, created.Code, "first")
		env.join(t, created.Code, "second")

		require.NoError(t, env.lobby.LeaveRoom(env.ctx, created.RoomID, "host"))

		players, err := env.lobby.ListPlayers(env.ctx, created.RoomID)
		require.NoError(t, err)
		require.Len(t, players, 2)
		hosts := 0
		for _, p := range players {
			if p.IsHost {
				hosts++
				assert.Equal(t, first, p.ID)
			}
		}
		assert.Equal(t, 1, hosts)

		// The new host can run the room.
		require.NoError(t, env.engine.StartGame(env.ctx, created.RoomID, "first"))
	})

	t.Run("leaving removes progress", func(t *testing.T) {
		env := newTestEnv(t)
		created := env.createRoom(t)
		guest := env.join(t, created.Code, "guest")
		env.startRace(t, created.RoomID)

		require.NoError(t, env.lobby.LeaveRoom(env.ctx, created.RoomID, "guest"))

		p, err := env.store.GetProgress(env.ctx, created.RoomID, guest)
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("last unfinished player leaving ends the race", func(t *testing.T) {
		env := newTestEnv(t)
		created := env.createRoom(t)
		env.join(t, created.Code, "guest")
		env.startRace(t, created.RoomID)

		require.NoError(t, env.tracker.MarkPlayerFinished(env.ctx, created.PlayerID))
		assert.Equal(t, StatusInProgress, env.room(t, created.RoomID).Status)

		require.NoError(t, env.lobby.LeaveRoom(env.ctx, created.RoomID, "guest"))
		assert.Equal(t, StatusFinished, env.room(t, created.RoomID).Status)
	})

	t.Run("unknown session", func(t *testing.T) {
		env := newTestEnv(t)
		created := env.createRoom(t)
		err := env.lobby.LeaveRoom(env.ctx, created.RoomID, "stranger")
		assert.ErrorIs(t, err, ErrPlayerNotFound)
	})
}

func TestSnapshot(t *testing.T) {
	env := newTestEnv(t)
	created := env.createRoom(t)
	env.join(t, created.Code, "guest")
	env.startRace(t, created.RoomID)

	_, err := env.tracker.SubmitInput(env.ctx, created.RoomID, created.PlayerID, "a ")
	require.NoError(t, err)

	snap, err := env.lobby.Snapshot(env.ctx, created.RoomID)
	require.NoError(t, err)
	assert.Equal(t, created.RoomID, snap.Room.ID)
	assert.Len(t, snap.Players, 2)
	assert.Len(t, snap.Progress, 2)
	assert.Equal(t, 3, snap.TotalWords)
	require.Len(t, snap.Standings, 2)
	assert.Equal(t, created.PlayerID, snap.Standings[0].PlayerID)
	assert.Equal(t, "1st", snap.Standings[0].Label)
	assert.Equal(t, env.clock.Now(), snap.ServerTime)

	_, err = env.lobby.Snapshot(env.ctx, 999)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestGetRoom(t *testing.T) {
	env := newTestEnv(t)
	created := env.createRoom(t)

	room, err := env.lobby.GetRoom(env.ctx, " "+strings.ToLower(created.Code))
	require.NoError(t, err)
	require.NotNil(t, room)
	assert.Equal(t, created.RoomID, room.ID)

	room, err = env.lobby.GetRoom(env.ctx, "ZZZZ")
	require.NoError(t, err)
	assert.Nil(t, room)
}

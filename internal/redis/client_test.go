package redis

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	t.Run("connects to a running server", func(t *testing.T) {
		mini := miniredis.RunT(t)

		client, err := NewClient("redis://" + mini.Addr())
		require.NoError(t, err)
		defer client.Close()
	})

	t.Run("rejects malformed url", func(t *testing.T) {
		_, err := NewClient("not a url")
		assert.Error(t, err)
	})
}

func TestRoomChannel(t *testing.T) {
	assert.Equal(t, "rooms:abc", RoomChannel("abc"))
}

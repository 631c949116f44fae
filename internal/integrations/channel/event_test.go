package channel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDecodeEvent(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	msg, err := DecodeEvent([]byte(`{"id":{"id":"wamid-1"},"from":"15551234567@c.us","body":"hi","timestamp":1772366400}`), now)
	require.NoError(t, err)
	require.Equal(t, "wamid-1", msg.ChannelMessageID)
	require.Equal(t, "15551234567@c.us", msg.From)
	require.Equal(t, "hi", msg.Body)
	require.Equal(t, time.Unix(1772366400, 0).UTC(), msg.ReceivedAt)

	msg, err = DecodeEvent([]byte(`{"id":{"id":"wamid-2"},"from":"123@g.us","body":""}`), now)
	require.NoError(t, err)
	require.Equal(t, now, msg.ReceivedAt)
	require.Empty(t, msg.Body)
}

func TestDecodeEvent_Invalid(t *testing.T) {
	now := time.Now()
	for name, raw := range map[string]string{
		"malformed":    `{"id":`,
		"missing id":   `{"from":"1@c.us","body":"x"}`,
		"missing from": `{"id":{"id":"w"},"body":"x"}`,
		"from me":      `{"id":{"id":"w"},"from":"1@c.us","fromMe":true}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeEvent([]byte(raw), now)
			require.ErrorIs(t, err, ErrInvalidEvent)
		})
	}
}

package push

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestIsProductionToken(t *testing.T) {
	hex64 := strings.Repeat("ab", 32)

	assert.True(t, IsProductionToken(hex64))
	assert.False(t, IsProductionToken("SIM-"+hex64), "non-hex prefix marks a simulator token")
	assert.False(t, IsProductionToken(strings.Repeat("ab", 16)), "too short")
	assert.False(t, IsProductionToken(strings.ToUpper(hex64)), "uppercase hex is not a device token")
	assert.False(t, IsProductionToken(""))
}

func TestSimulatorTokenShortCircuits(t *testing.T) {
	client := NewClient(false, zerolog.Nop())

	// No HTTP server involved: the simulator send must succeed locally.
	err := client.Send(context.Background(), "SIM-token-1", Message{Title: "t", Body: "b"})
	assert.NoError(t, err)
}

func TestMockModeShortCircuits(t *testing.T) {
	client := NewClient(true, zerolog.Nop())

	err := client.Send(context.Background(), strings.Repeat("ab", 32), Message{Title: "t", Body: "b"})
	assert.NoError(t, err, "mock mode never reaches the push service")
}

func TestEmptyTokenRejected(t *testing.T) {
	client := NewClient(true, zerolog.Nop())
	err := client.Send(context.Background(), "", Message{Title: "t", Body: "b"})
	assert.Error(t, err)
}

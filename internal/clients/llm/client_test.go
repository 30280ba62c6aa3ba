package llm

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNilClientIsUnavailable(t *testing.T) {
	client := NewClient("", "model", zerolog.Nop())
	assert.Nil(t, client)
	assert.False(t, client.Available())

	_, err := client.complete(context.Background(), "", "hi")
	assert.Error(t, err, "a nil client fails fast instead of panicking")
}

func TestConfiguredClientIsAvailable(t *testing.T) {
	client := NewClient("test-key", "", zerolog.Nop())
	assert.True(t, client.Available())
	assert.Equal(t, "claude-3-5-haiku-latest", client.model, "default model applies")
}

func TestNumbersGrounded(t *testing.T) {
	cases := []struct {
		name   string
		output string
		inputs []string
		want   bool
	}{
		{"no digits at all", "Shares moved on the news.", []string{"AAPL moved today"}, true},
		{"grounded number", "AAPL moved 2.1% today.", []string{"AAPL moved 2.1% over the last 15 minutes."}, true},
		{"invented number", "Shares jumped 47% on the report.", []string{"AAPL posts strong results"}, false},
		{"partially grounded", "Up 2.1% to $250.", []string{"AAPL moved 2.1%"}, false},
		{"digits split across inputs", "From 12 to 15.", []string{"window of 12", "and 15 minutes"}, true},
		{"empty output", "", []string{"anything"}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NumbersGrounded(tc.output, tc.inputs...))
		})
	}
}

func TestDigitSequences(t *testing.T) {
	assert.Equal(t, []string{"2", "1"}, digitSequences("2.1%"))
	assert.Equal(t, []string{"15"}, digitSequences("the last 15 minutes"))
	assert.Empty(t, digitSequences("no numbers here"))
}

package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestService_Publish(t *testing.T) {
	service := New()
	ctx := context.Background()

	first, err := service.Publish(ctx, "speech.mp3", []byte("audio"), "audio/mpeg")
	assert.NoError(t, err)
	second, err := service.Publish(ctx, "speech.mp3", []byte("other"), "audio/mpeg")
	assert.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, 2, service.Size())

	data, ok := service.Get(first)
	assert.True(t, ok)
	assert.Equal(t, []byte("audio"), data)

	_, ok = service.Get("mem://artifacts/99/missing")
	assert.False(t, ok)
}

package player

import (
	"context"
	"testing"

	"github.com/alvarorichard/aniplay/internal/models"
	"github.com/alvarorichard/aniplay/internal/util"
	"github.com/stretchr/testify/assert"
)

func TestPlayRejectsEmptyStream(t *testing.T) {
	assert.Equal(t, StatusError, Play(context.Background(), nil, Options{}))
	assert.Equal(t, StatusError, Play(context.Background(), &models.VideoStream{}, Options{}))
}

func TestPlayDebugModeSkipsSubprocess(t *testing.T) {
	util.SetDebugMode(true)
	defer util.SetDebugMode(false)

	stream := &models.VideoStream{URL: "https://cdn.example/ep1.m3u8"}
	assert.Equal(t, StatusOK, Play(context.Background(), stream, Options{}))
}

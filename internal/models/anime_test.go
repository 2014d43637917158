package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVideoStreamLooksPlayable(t *testing.T) {
	assert.True(t, (&VideoStream{URL: "https://cdn.example/master.m3u8"}).LooksPlayable())
	assert.True(t, (&VideoStream{URL: "https://cdn.example/ep1.mp4?token=abc"}).LooksPlayable())
	assert.False(t, (&VideoStream{URL: "https://cdn.example/player.html"}).LooksPlayable())
	assert.False(t, (&VideoStream{}).LooksPlayable())
}

func TestSearchMetadataReduced(t *testing.T) {
	full := SearchMetadata{UsedWords: 3, TotalWords: 3}
	assert.False(t, full.Reduced())

	reduced := SearchMetadata{UsedWords: 2, TotalWords: 5}
	assert.True(t, reduced.Reduced())
}

func TestHistoryRecordWatchedAt(t *testing.T) {
	rec := HistoryRecord{Timestamp: 1700000000}
	assert.Equal(t, time.Unix(1700000000, 0), rec.WatchedAt())
}

func TestAniListTitleDisplay(t *testing.T) {
	assert.Equal(t, "Sousou no Frieren", AniListTitle{Romaji: "Sousou no Frieren", English: "Frieren"}.Display())
	assert.Equal(t, "Frieren", AniListTitle{English: "Frieren"}.Display())
	assert.Equal(t, "葬送のフリーレン", AniListTitle{Native: "葬送のフリーレン"}.Display())
}

package shardkey

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerate(t *testing.T) {
	at := time.Date(2024, 5, 1, 23, 59, 59, 0, time.UTC)
	assert.Equal(t, "T1_S1_3_20240501", Generate("T1", "S1", 3, at))
}

func TestGenerate_SameTerminalDayColocates(t *testing.T) {
	morning := time.Date(2024, 5, 1, 0, 0, 1, 0, time.UTC)
	night := time.Date(2024, 5, 1, 23, 0, 0, 0, time.UTC)
	nextDay := night.Add(2 * time.Hour)

	assert.Equal(t, Generate("T1", "S1", 3, morning), Generate("T1", "S1", 3, night))
	assert.NotEqual(t, Generate("T1", "S1", 3, night), Generate("T1", "S1", 3, nextDay))
	assert.NotEqual(t, Generate("T1", "S1", 3, night), Generate("T1", "S1", 4, night))
}

func TestGenerate_UsesTimestampLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	at := time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC).In(tokyo)

	assert.Equal(t, "T1_S1_1_20240502", Generate("T1", "S1", 1, at))
}

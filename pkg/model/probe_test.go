package model_test

import (
	"testing"
	"time"

	"github.com/jt828/go-span-tracing/pkg/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestProbeDataEntity(t *testing.T) {
	checkedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	result := model.ProbeResult{
		Id:        7,
		Sequence:  3,
		Healthy:   true,
		Latency:   1234567 * time.Nanosecond,
		CheckedAt: checkedAt,
	}

	entity := model.NewProbeDataEntity(result)

	assert.True(t, decimal.RequireFromString("1.234").Equal(entity.LatencyMillis))
	assert.Equal(t, "main.probe_results", entity.TableName())

	back := entity.ToDomain()
	assert.Equal(t, 1234*time.Microsecond, back.Latency)
	assert.Equal(t, result.Id, back.Id)
	assert.Equal(t, result.Sequence, back.Sequence)
	assert.Equal(t, checkedAt, back.CheckedAt)
}

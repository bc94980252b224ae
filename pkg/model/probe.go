package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProbeResult is one database health check.
type ProbeResult struct {
	Id        int64
	Sequence  int64
	Healthy   bool
	Latency   time.Duration
	Error     string
	CheckedAt time.Time
}

type ProbeDataEntity struct {
	Id            int64           `gorm:"column:id"`
	Sequence      int64           `gorm:"column:sequence"`
	Healthy       bool            `gorm:"column:healthy"`
	LatencyMillis decimal.Decimal `gorm:"column:latency_ms;type:numeric(12,3)"`
	Error         string          `gorm:"column:error"`
	CheckedAt     time.Time       `gorm:"column:checked_at"`
}

func (dataEntity *ProbeDataEntity) TableName() string {
	return "main.probe_results"
}

func (dataEntity *ProbeDataEntity) ToDomain() ProbeResult {
	micros := dataEntity.LatencyMillis.Mul(decimal.NewFromInt(1000)).IntPart()
	return ProbeResult{
		Id:        dataEntity.Id,
		Sequence:  dataEntity.Sequence,
		Healthy:   dataEntity.Healthy,
		Latency:   time.Duration(micros) * time.Microsecond,
		Error:     dataEntity.Error,
		CheckedAt: dataEntity.CheckedAt,
	}
}

func NewProbeDataEntity(result ProbeResult) ProbeDataEntity {
	return ProbeDataEntity{
		Id:            result.Id,
		Sequence:      result.Sequence,
		Healthy:       result.Healthy,
		LatencyMillis: decimal.NewFromInt(result.Latency.Microseconds()).Div(decimal.NewFromInt(1000)),
		Error:         result.Error,
		CheckedAt:     result.CheckedAt,
	}
}

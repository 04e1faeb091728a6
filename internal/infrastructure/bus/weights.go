package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/smartcab-platform/transaction-service/pkg/cloudevents"
	"github.com/smartcab-platform/transaction-service/pkg/kafka"
	"github.com/smartcab-platform/transaction-service/pkg/logging"
)

// LoadcellReading is one loadcell measurement inside a weight report
type LoadcellReading struct {
	LoadcellID  string  `json:"loadcellId"`
	WeightGrams float64 `json:"weightGrams"`
}

// WeightReport is the payload the cabinet weighing controllers publish.
// Controllers report the full set of loadcells for a bin in every message.
type WeightReport struct {
	CabinetID  string            `json:"cabinetId"`
	BinID      string            `json:"binId"`
	Loadcells  []LoadcellReading `json:"loadcells"`
	ReportedAt time.Time         `json:"reportedAt"`
}

// WeightCache holds the latest loadcell readings per bin, fed from the
// weight report topic. Reads older than maxAge are treated as missing so a
// dead controller surfaces as a verification failure instead of a silent
// pass on stale numbers.
type WeightCache struct {
	mu       sync.RWMutex
	readings map[string]binReading
	maxAge   time.Duration
	clock    func() time.Time
	logger   *logging.Logger
}

type binReading struct {
	weights map[string]float64
	at      time.Time
}

// NewWeightCache creates a cache that rejects readings older than maxAge
func NewWeightCache(maxAge time.Duration, logger *logging.Logger) *WeightCache {
	return &WeightCache{
		readings: make(map[string]binReading),
		maxAge:   maxAge,
		clock:    time.Now,
		logger:   logger,
	}
}

// RegisterHandlers subscribes the cache to the weight report topic
func (w *WeightCache) RegisterHandlers(consumer *kafka.InstrumentedConsumer) {
	consumer.Subscribe(kafka.Topics.WeightReports, cloudevents.WeightReported, w.handleReport)
}

func (w *WeightCache) handleReport(ctx context.Context, event *cloudevents.CloudEvent) error {
	var report WeightReport
	if err := event.DataAs(&report); err != nil {
		w.logger.Warn("discarding malformed weight report", "event_id", event.ID, "error", err)
		return nil
	}
	if report.BinID == "" {
		report.BinID = event.BinID
	}
	if report.BinID == "" || len(report.Loadcells) == 0 {
		w.logger.Warn("discarding empty weight report", "event_id", event.ID)
		return nil
	}

	at := report.ReportedAt
	if at.IsZero() {
		at = event.Time
	}

	weights := make(map[string]float64, len(report.Loadcells))
	for _, reading := range report.Loadcells {
		weights[reading.LoadcellID] = reading.WeightGrams
	}

	w.mu.Lock()
	w.readings[report.BinID] = binReading{weights: weights, at: at}
	w.mu.Unlock()
	return nil
}

// CaptureBaseline returns the latest readings for the bin
func (w *WeightCache) CaptureBaseline(ctx context.Context, binID string) (map[string]float64, error) {
	return w.snapshot(binID)
}

// ReadCurrent returns the latest readings for the bin
func (w *WeightCache) ReadCurrent(ctx context.Context, binID string) (map[string]float64, error) {
	return w.snapshot(binID)
}

func (w *WeightCache) snapshot(binID string) (map[string]float64, error) {
	w.mu.RLock()
	reading, ok := w.readings[binID]
	w.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("no weight report received for bin %s", binID)
	}
	if age := w.clock().Sub(reading.at); age > w.maxAge {
		return nil, fmt.Errorf("weight report for bin %s is stale (%s old)", binID, age.Round(time.Millisecond))
	}

	weights := make(map[string]float64, len(reading.weights))
	for loadcellID, grams := range reading.weights {
		weights[loadcellID] = grams
	}
	return weights, nil
}

package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcab-platform/transaction-service/pkg/cloudevents"
	"github.com/smartcab-platform/transaction-service/pkg/logging"
)

func testWeightCache(t *testing.T) *WeightCache {
	t.Helper()
	return NewWeightCache(30*time.Second, logging.New(logging.DefaultConfig("weights-test")))
}

func weightEvent(binID string, report WeightReport) *cloudevents.CloudEvent {
	factory := cloudevents.NewEventFactory(cloudevents.SourceCabinetController)
	event := factory.CreateEvent(context.Background(), cloudevents.WeightReported, "bin/"+binID, report)
	event.BinID = binID
	return event
}

func TestWeightCache_LatestReportWins(t *testing.T) {
	cache := testWeightCache(t)

	require.NoError(t, cache.handleReport(context.Background(), weightEvent("BIN-1", WeightReport{
		BinID:      "BIN-1",
		Loadcells:  []LoadcellReading{{LoadcellID: "LC-1", WeightGrams: 150}},
		ReportedAt: time.Now(),
	})))
	require.NoError(t, cache.handleReport(context.Background(), weightEvent("BIN-1", WeightReport{
		BinID:      "BIN-1",
		Loadcells:  []LoadcellReading{{LoadcellID: "LC-1", WeightGrams: 120}, {LoadcellID: "LC-2", WeightGrams: 90}},
		ReportedAt: time.Now(),
	})))

	weights, err := cache.ReadCurrent(context.Background(), "BIN-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"LC-1": 120, "LC-2": 90}, weights)
}

func TestWeightCache_UnknownBin(t *testing.T) {
	cache := testWeightCache(t)

	_, err := cache.CaptureBaseline(context.Background(), "BIN-9")
	assert.ErrorContains(t, err, "no weight report")
}

func TestWeightCache_StaleReportRejected(t *testing.T) {
	cache := testWeightCache(t)
	require.NoError(t, cache.handleReport(context.Background(), weightEvent("BIN-1", WeightReport{
		BinID:      "BIN-1",
		Loadcells:  []LoadcellReading{{LoadcellID: "LC-1", WeightGrams: 150}},
		ReportedAt: time.Now(),
	})))

	cache.clock = func() time.Time { return time.Now().Add(time.Minute) }

	_, err := cache.ReadCurrent(context.Background(), "BIN-1")
	assert.ErrorContains(t, err, "stale")
}

func TestWeightCache_SnapshotIsACopy(t *testing.T) {
	cache := testWeightCache(t)
	require.NoError(t, cache.handleReport(context.Background(), weightEvent("BIN-1", WeightReport{
		BinID:      "BIN-1",
		Loadcells:  []LoadcellReading{{LoadcellID: "LC-1", WeightGrams: 150}},
		ReportedAt: time.Now(),
	})))

	first, err := cache.CaptureBaseline(context.Background(), "BIN-1")
	require.NoError(t, err)
	first["LC-1"] = 0

	second, err := cache.ReadCurrent(context.Background(), "BIN-1")
	require.NoError(t, err)
	assert.Equal(t, 150.0, second["LC-1"])
}

func TestWeightCache_MalformedAndEmptyReportsDropped(t *testing.T) {
	cache := testWeightCache(t)

	assert.NoError(t, cache.handleReport(context.Background(), weightEvent("BIN-1", WeightReport{BinID: "BIN-1"})))

	factory := cloudevents.NewEventFactory(cloudevents.SourceCabinetController)
	bad := factory.CreateEvent(context.Background(), cloudevents.WeightReported, "bin/BIN-1", "garbage")
	assert.NoError(t, cache.handleReport(context.Background(), bad))

	_, err := cache.ReadCurrent(context.Background(), "BIN-1")
	assert.Error(t, err)
}

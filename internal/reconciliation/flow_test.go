package reconciliation

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/yardgate-backend/pkg/db/models"
	"github.com/angelmondragon/yardgate-backend/pkg/enums"
	"github.com/angelmondragon/yardgate-backend/pkg/types"
)

var reportNow = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

func at(day, hour int) *time.Time {
	t := time.Date(2026, 3, day, hour, 0, 0, 0, time.UTC)
	return &t
}

func manifest(t *testing.T, items ...types.Item) types.Manifest {
	t.Helper()
	m, err := types.NewManifest(items...)
	require.NoError(t, err)
	return m
}

func TestComputeFlowEmpty(t *testing.T) {
	report := ComputeFlow(nil, "north", enums.ReportWindowWeek, reportNow)
	assert.Equal(t, 0, report.TotalOutbound)
	assert.Equal(t, 0, report.TotalInbound)
	assert.Equal(t, 0, report.ReturnRate)
	assert.Equal(t, 0, report.AssetsInTransit)
	assert.NotNil(t, report.Days)
	assert.Empty(t, report.Days)
}

func TestComputeFlow(t *testing.T) {
	records := []models.TransactionRecord{
		{
			// completed inside the window
			ID: uuid.New(), Location: "north", Status: enums.TransactionStatusCompleted,
			ExitItemsDesk:  manifest(t, types.Asset("Cilindro 10m3", 5, ""), types.Supply("Guantes", 5, "")),
			EntryItemsDesk: manifest(t, types.Asset("Cilindro 10m3", 4, ""), types.Supply("Guantes", 2, "")),
			ExitTime:       at(8, 9), EntryTime: at(9, 17),
		},
		{
			// away, exit counted, assets in transit
			ID: uuid.New(), Location: "north", Status: enums.TransactionStatusInRoute,
			ExitItemsDesk: manifest(t, types.Asset("Regulador", 3, "0-3"), types.Supply("Guantes", 7, "")),
			ExitTime:      at(9, 8),
		},
		{
			// pending entry counts as away
			ID: uuid.New(), Location: "north", Status: enums.TransactionStatusPendingEntry,
			ExitItemsDesk: manifest(t, types.Asset("Cilindro 10m3", 2, "")),
			ExitTime:      at(1, 8),
		},
		{
			// not yet left
			ID: uuid.New(), Location: "north", Status: enums.TransactionStatusPendingExit,
			ExitItemsDesk: manifest(t, types.Asset("Cilindro 10m3", 100, "")),
		},
		{
			// gate admitted but desk has not closed: inbound not counted
			ID: uuid.New(), Location: "north", Status: enums.TransactionStatusEntryAuthorized,
			ExitItemsDesk:  manifest(t, types.Asset("Cilindro 10m3", 1, "")),
			EntryItemsGate: manifest(t, types.Asset("Cilindro 10m3", 1, "")),
			ExitTime:       at(10, 7), EntryTime: at(10, 12),
		},
		{
			ID: uuid.New(), Location: "south", Status: enums.TransactionStatusInRoute,
			ExitItemsDesk: manifest(t, types.Asset("Cilindro 10m3", 50, "")),
			ExitTime:      at(9, 8),
		},
	}

	report := ComputeFlow(records, "north", enums.ReportWindowWeek, reportNow)

	assert.Equal(t, "2026-03-04", report.From)
	assert.Equal(t, "2026-03-10", report.To)
	assert.Equal(t, 10+10+1, report.TotalOutbound, "the 1 March exit falls outside the week")
	assert.Equal(t, 6, report.TotalInbound)
	assert.Equal(t, 29, report.ReturnRate)
	assert.Equal(t, 3+2, report.AssetsInTransit)
	assert.Equal(t, []DayFlow{
		{Date: "2026-03-08", Outbound: 10},
		{Date: "2026-03-09", Outbound: 10, Inbound: 6},
		{Date: "2026-03-10", Outbound: 1},
	}, report.Days)

	month := ComputeFlow(records, "north", enums.ReportWindowMonth, reportNow)
	assert.Equal(t, 23, month.TotalOutbound)
	assert.Equal(t, "2026-03-01", month.Days[0].Date)

	all := ComputeFlow(records, "", enums.ReportWindowWeek, reportNow)
	assert.Equal(t, 71, all.TotalOutbound)
	assert.Equal(t, 55, all.AssetsInTransit)
}

func TestComputeFlowBucketsByReportTimezone(t *testing.T) {
	zone := time.FixedZone("UTC-5", -5*3600)
	records := []models.TransactionRecord{{
		ID: uuid.New(), Location: "north", Status: enums.TransactionStatusInRoute,
		ExitItemsDesk: manifest(t, types.Asset("Cilindro 10m3", 1, "")),
		ExitTime:      at(10, 2), // 9 March, 21:00 local
	}}

	report := ComputeFlow(records, "north", enums.ReportWindowWeek, reportNow.In(zone))
	require.Len(t, report.Days, 1)
	assert.Equal(t, "2026-03-09", report.Days[0].Date)
}

func TestComputeFlowDoesNotMutateInput(t *testing.T) {
	records := []models.TransactionRecord{{
		ID: uuid.New(), Location: "north", Status: enums.TransactionStatusInRoute,
		ExitItemsDesk: manifest(t, types.Asset("Cilindro 10m3", 1, "")),
		ExitTime:      at(10, 2),
	}}
	before := records[0].Clone()
	ComputeFlow(records, "north", enums.ReportWindowWeek, reportNow)
	assert.Equal(t, before, records[0].Clone())
}

func TestReturnRate(t *testing.T) {
	tests := []struct {
		in, out, want int
	}{
		{0, 0, 0},
		{5, 0, 0},
		{0, 10, 0},
		{6, 21, 29},
		{1, 8, 13},
		{1, 3, 33},
		{2, 3, 67},
		{12, 10, 120},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ReturnRate(tt.in, tt.out), "%d/%d", tt.in, tt.out)
	}
}

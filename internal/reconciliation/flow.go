package reconciliation

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/yardgate-backend/pkg/db/models"
	"github.com/angelmondragon/yardgate-backend/pkg/enums"
)

const dayLayout = "2006-01-02"

// DayFlow is one calendar day of the flow table.
type DayFlow struct {
	Date     string `json:"date"`
	Outbound int    `json:"outbound"`
	Inbound  int    `json:"inbound"`
}

// FlowReport summarises outbound and returned quantities for one location.
type FlowReport struct {
	Location        string             `json:"location,omitempty"`
	Window          enums.ReportWindow `json:"window,omitempty"`
	From            string             `json:"from,omitempty"`
	To              string             `json:"to,omitempty"`
	Days            []DayFlow          `json:"days"`
	TotalOutbound   int                `json:"total_outbound"`
	TotalInbound    int                `json:"total_inbound"`
	ReturnRate      int                `json:"return_rate"`
	AssetsInTransit int                `json:"assets_in_transit"`
}

// ComputeFlow buckets desk-declared quantities by calendar day in now's
// location. Outbound counts every record that has left; inbound counts
// completed records only. An empty location covers every location and an
// unknown window applies no date bound. Assets in transit are counted over
// every open away record regardless of the window.
func ComputeFlow(records []models.TransactionRecord, location string, window enums.ReportWindow, now time.Time) FlowReport {
	report := FlowReport{Location: location, Window: window, Days: []DayFlow{}}

	start, end, bounded := windowBounds(window, now)
	if bounded {
		report.From = start.Format(dayLayout)
		report.To = end.AddDate(0, 0, -1).Format(dayLayout)
	}
	inWindow := func(t time.Time) bool {
		return !bounded || (!t.Before(start) && t.Before(end))
	}

	days := make(map[string]*DayFlow)
	bucket := func(t time.Time) *DayFlow {
		key := t.In(now.Location()).Format(dayLayout)
		day, ok := days[key]
		if !ok {
			day = &DayFlow{Date: key}
			days[key] = day
		}
		return day
	}

	for i := range records {
		rec := &records[i]
		if location != "" && rec.Location != location {
			continue
		}
		if rec.ExitTime != nil && inWindow(*rec.ExitTime) {
			qty := rec.ExitItemsDesk.Total()
			bucket(*rec.ExitTime).Outbound += qty
			report.TotalOutbound += qty
		}
		if rec.Status == enums.TransactionStatusCompleted && rec.EntryTime != nil && inWindow(*rec.EntryTime) {
			qty := rec.EntryItemsDesk.Total()
			bucket(*rec.EntryTime).Inbound += qty
			report.TotalInbound += qty
		}
		if rec.Status.IsAway() {
			report.AssetsInTransit += rec.ExitItemsDesk.TotalByKind(enums.ItemKindAsset)
		}
	}

	for _, day := range days {
		report.Days = append(report.Days, *day)
	}
	sort.Slice(report.Days, func(i, j int) bool { return report.Days[i].Date < report.Days[j].Date })

	report.ReturnRate = ReturnRate(report.TotalInbound, report.TotalOutbound)
	return report
}

// ReturnRate is round(100*inbound/outbound), half away from zero, and 0 when
// nothing went out.
func ReturnRate(inbound, outbound int) int {
	if outbound <= 0 {
		return 0
	}
	rate := decimal.NewFromInt(int64(inbound)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(outbound))).
		Round(0)
	return int(rate.IntPart())
}

// windowBounds returns [start, end) covering the window's calendar days up to
// and including today.
func windowBounds(window enums.ReportWindow, now time.Time) (time.Time, time.Time, bool) {
	days := window.Days()
	if days <= 0 {
		return time.Time{}, time.Time{}, false
	}
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return today.AddDate(0, 0, -(days - 1)), today.AddDate(0, 0, 1), true
}

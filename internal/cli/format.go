package cli

import (
	"fmt"
	"strings"

	"chan-analyzer/internal/analysis/chanlun"
	"chan-analyzer/internal/models"
	"chan-analyzer/pkg/utils"
)

// pricePlaces is the number of decimals shown for prices.
const pricePlaces = 2

// renderReport prints one analysed series as text.
func renderReport(output *Output, r *analysisReport, dateFormat string) {
	output.Bold("%s", r.Symbol)
	if r.Error != "" {
		output.Error("  %s", r.Error)
		return
	}
	if r.RunID != "" {
		output.Dim("  run %s", r.RunID)
	}

	s := r.Summary
	output.Printf("  %s bars, %s merged | fractals %d top / %d bottom | strokes %d | segments %d | hubs %d\n",
		utils.FormatCount(int64(s.Bars)), utils.FormatCount(int64(s.Merged)),
		s.Tops, s.Bottoms, s.Strokes, s.Segments, s.Hubs)
	output.Printf("  signals %s\n", formatSignalCounts(output, s.Signals))

	if n := len(r.Segments); n > 0 {
		last := r.Segments[n-1]
		output.Printf("  last segment %s\n", output.DirectionTag(last.Direction))
	} else if n := len(r.Strokes); n > 0 {
		output.Printf("  last stroke %s\n", output.DirectionTag(r.Strokes[n-1].Direction))
	}

	if len(r.Signals) > 0 {
		output.Println()
		renderSignals(output, r.Signals, dateFormat)
	}
	if len(r.Hubs) > 0 {
		output.Println()
		renderHubs(output, r.Hubs, dateFormat)
	}
	if len(r.Bars) > 0 {
		output.Println()
		renderBars(output, r.Bars, dateFormat)
	}
}

func formatSignalCounts(output *Output, counts map[models.SignalKind]int) string {
	parts := make([]string, 0, len(models.AllSignalKinds))
	for _, k := range models.AllSignalKinds {
		parts = append(parts, fmt.Sprintf("%s %d", output.SignalTag(k), counts[k]))
	}
	return strings.Join(parts, "  ")
}

func renderSignals(output *Output, signals []chanlun.Signal, dateFormat string) {
	table := NewTable(output, "Bar", "Time", "Signal", "Price", "Hub")
	for _, sig := range signals {
		hub := "-"
		if sig.HubID > 0 {
			hub = fmt.Sprintf("#%d", sig.HubID)
		}
		table.AddRow(
			fmt.Sprintf("%d", sig.BarIndex),
			sig.Timestamp.Format(dateFormat),
			output.SignalTag(sig.Kind),
			utils.FormatPrice(sig.Price, pricePlaces),
			hub,
		)
	}
	table.Render()
}

func renderHubs(output *Output, hubs []chanlun.Hub, dateFormat string) {
	table := NewTable(output, "Hub", "From", "To", "Range", "Mid", "Strength")
	for _, h := range hubs {
		table.AddRow(
			fmt.Sprintf("#%d", h.ID),
			h.StartTime.Format(dateFormat),
			h.EndTime.Format(dateFormat),
			utils.FormatRange(h.Low, h.High, pricePlaces),
			utils.FormatPrice(h.Mid, pricePlaces),
			utils.FormatPercent(h.Strength*100),
		)
	}
	table.Render()
}

func renderBars(output *Output, bars []chanlun.BarAnnotation, dateFormat string) {
	table := NewTable(output, "Bar", "Time", "Merged", "High", "Low", "Fractal", "Stroke", "Segment", "Hub", "Hist", "Signals")
	for _, b := range bars {
		stroke := output.DirectionTag(b.StrokeDir)
		if b.StrokeMark {
			stroke += "*"
		}
		segment := output.DirectionTag(b.SegmentDir)
		if b.SegmentMark {
			segment += "*"
		}
		hub := ""
		if b.HubID > 0 {
			hub = fmt.Sprintf("#%d", b.HubID)
		}
		tags := make([]string, 0, len(b.Signals))
		for _, k := range b.Signals {
			tags = append(tags, output.SignalTag(k))
		}
		table.AddRow(
			fmt.Sprintf("%d", b.Index),
			b.Timestamp.Format(dateFormat),
			fmt.Sprintf("%d", b.MergedIndex),
			utils.FormatPrice(b.ProcessedHigh, pricePlaces),
			utils.FormatPrice(b.ProcessedLow, pricePlaces),
			string(b.Fractal),
			stroke,
			segment,
			hub,
			utils.FormatPrice(b.Hist, 4),
			strings.Join(tags, ","),
		)
	}
	table.Render()
}

func renderRuns(output *Output, runs []models.AnalysisRun, dateFormat string) {
	table := NewTable(output, "Run", "Symbol", "TF", "Created", "Range", "Bars", "Hubs", "Signals", "Window")
	for _, r := range runs {
		table.AddRow(
			r.ID,
			r.Symbol,
			r.Timeframe,
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			r.From.Format(dateFormat)+" .. "+r.To.Format(dateFormat),
			utils.FormatCount(int64(r.Bars)),
			fmt.Sprintf("%d", r.Hubs),
			fmt.Sprintf("%d", r.Signals),
			fmt.Sprintf("%d/%s", r.FractalWindow, r.Oscillator),
		)
	}
	table.Render()
}

func renderSignalRecords(output *Output, signals []models.SignalRecord, dateFormat string) {
	table := NewTable(output, "Bar", "Time", "Signal", "Price", "Hub")
	for _, s := range signals {
		hub := "-"
		if s.HubID > 0 {
			hub = fmt.Sprintf("#%d", s.HubID)
		}
		table.AddRow(
			fmt.Sprintf("%d", s.BarIndex),
			s.Timestamp.Format(dateFormat),
			output.SignalTag(s.Kind),
			utils.FormatPrice(s.Price, pricePlaces),
			hub,
		)
	}
	table.Render()
}

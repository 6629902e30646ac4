// session-report renders an HTML report from a delivery archive: ball
// speeds across the session and the adjudication outcomes.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/gully-data/crease.review/internal/store"
)

var (
	archivePath = flag.String("archive", "crease.db", "Sqlite archive path")
	outPath     = flag.String("out", "session-report.html", "Output HTML file")
	limit       = flag.Int("limit", 500, "Max deliveries to include")
)

func main() {
	flag.Parse()

	s, err := store.Open(*archivePath)
	if err != nil {
		log.Fatalf("open archive: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	deliveries, err := s.ListDeliveries(ctx, *limit)
	if err != nil {
		log.Fatalf("list deliveries: %v", err)
	}
	if len(deliveries) == 0 {
		log.Fatalf("archive %s holds no deliveries", *archivePath)
	}
	decisions, err := s.AllDecisions(ctx)
	if err != nil {
		log.Fatalf("list decisions: %v", err)
	}

	page := components.NewPage()
	page.SetPageTitle("Session Report")
	page.AddCharts(speedChart(deliveries), verdictChart(decisions))

	f, err := os.Create(*outPath)
	if err != nil {
		log.Fatalf("create output: %v", err)
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		log.Fatalf("render report: %v", err)
	}
	log.Printf("wrote %s: %d deliveries, %d decisions", *outPath, len(deliveries), len(decisions))
}

// speedChart plots delivery speeds in session order.
func speedChart(deliveries []store.DeliverySummary) components.Charter {
	// ListDeliveries returns newest first; plot oldest first.
	labels := make([]string, 0, len(deliveries))
	data := make([]opts.LineData, 0, len(deliveries))
	for i := len(deliveries) - 1; i >= 0; i-- {
		d := deliveries[i]
		labels = append(labels, shortID(d.ID))
		data = append(data, opts.LineData{Value: d.SpeedKmh})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1100px", Height: "450px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Delivery Speeds",
			Subtitle: fmt.Sprintf("%d deliveries", len(deliveries)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "delivery"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "km/h"}),
	)
	line.SetXAxis(labels).AddSeries("speed", data,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))
	return line
}

// verdictChart summarises decision outcomes per rule.
func verdictChart(decisions []store.DecisionRow) components.Charter {
	counts := map[string]int{}
	for _, d := range decisions {
		counts[d.Kind+"/"+d.Verdict]++
	}

	labels := make([]string, 0, len(counts))
	for k := range counts {
		labels = append(labels, k)
	}
	sort.Strings(labels)
	data := make([]opts.BarData, 0, len(labels))
	for _, k := range labels {
		data = append(data, opts.BarData{Value: counts[k]})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1100px", Height: "450px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Adjudication Outcomes",
			Subtitle: fmt.Sprintf("%d decisions", len(decisions)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(labels).AddSeries("decisions", data,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))
	return bar
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

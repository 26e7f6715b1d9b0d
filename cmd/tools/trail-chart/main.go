// Command trail-chart renders a recorded movement trail from the tracking
// database as a standalone HTML chart: the path as a scatter over lon/lat and
// the speed profile as a line over time.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kudu-data/corridor.watch/internal/db"
	"github.com/kudu-data/corridor.watch/internal/track"
)

var (
	dbFile   = flag.String("db", "corridor_data.db", "SQLite database path")
	entityID = flag.String("entity", "", "Entity id to chart (empty lists available ids)")
	hours    = flag.Int("hours", 24, "Trailing window in hours")
	outFile  = flag.String("out", "trail.html", "Output HTML file")
)

func main() {
	flag.Parse()

	database, err := db.Open(*dbFile)
	if err != nil {
		log.Fatalf("opening database: %v", err)
	}
	defer database.Close()

	if *entityID == "" {
		ids, err := database.EntityIDs()
		if err != nil {
			log.Fatalf("listing entities: %v", err)
		}
		if len(ids) == 0 {
			log.Fatal("no recorded entities; nothing to chart")
		}
		fmt.Println("recorded entities:")
		for _, id := range ids {
			fmt.Println("  " + id)
		}
		return
	}

	trail, err := database.Trail(*entityID, *hours, 0)
	if err != nil {
		log.Fatalf("loading trail: %v", err)
	}
	if len(trail.Points) == 0 {
		log.Fatalf("no recorded trail for %s in the last %dh", *entityID, *hours)
	}

	stats, err := database.Stats(*entityID, *hours)
	if err != nil {
		log.Fatalf("computing stats: %v", err)
	}

	page := components.NewPage()
	page.AddCharts(pathChart(trail.Points, stats), speedChart(database, *entityID, *hours))

	f, err := os.Create(*outFile)
	if err != nil {
		log.Fatalf("creating output file: %v", err)
	}
	defer f.Close()

	if err := page.Render(f); err != nil {
		log.Fatalf("rendering chart: %v", err)
	}
	log.Printf("wrote %s: %d points, %.1f km", *outFile, stats.TotalPoints, stats.DistanceKm)
}

func pathChart(points []track.TrailPoint, stats db.TrailStats) components.Charter {
	data := make([]opts.ScatterData, 0, len(points))
	for i, p := range points {
		data = append(data, opts.ScatterData{Value: []interface{}{p.Lon, p.Lat, i}})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Movement Trail", Width: "900px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Trail: " + stats.EntityID,
			Subtitle: fmt.Sprintf("points=%d distance=%.1fkm p50=%.1f p85=%.1f p98=%.1f km/h", stats.TotalPoints, stats.DistanceKm, stats.SpeedP50, stats.SpeedP85, stats.SpeedP98),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "lon", NameLocation: "middle", NameGap: 25, Scale: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "lat", NameLocation: "middle", NameGap: 30, Scale: opts.Bool(true)}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(len(points)),
			InRange:    &opts.VisualMapInRange{Color: []string{"#31688e", "#35b779", "#fde725"}},
		}),
	)
	scatter.AddSeries("path", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))
	return scatter
}

func speedChart(database *db.DB, entityID string, hours int) components.Charter {
	rows, err := database.Query(`
		SELECT speed_kmh, timestamp FROM observations
		WHERE entity_id = ? AND timestamp >= ?
		ORDER BY timestamp ASC`,
		entityID, time.Now().UTC().Add(-time.Duration(hours)*time.Hour))
	if err != nil {
		log.Fatalf("querying speeds: %v", err)
	}
	defer rows.Close()

	var labels []string
	var data []opts.LineData
	for rows.Next() {
		var speed float64
		var ts time.Time
		if err := rows.Scan(&speed, &ts); err != nil {
			log.Fatalf("scanning speed row: %v", err)
		}
		labels = append(labels, ts.Format("15:04"))
		data = append(data, opts.LineData{Value: speed})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Speed profile (km/h)"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	line.SetXAxis(labels)
	line.AddSeries("speed", data, charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))
	return line
}

package main

import (
	"bufio"
	"cmp"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"slices"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/segmentio/ksuid"
	"github.com/urfave/cli/v2"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Vehicle is one generated vehicle document.
type Vehicle struct {
	ID    string `json:"id"`
	VIN   string `json:"vin"`
	Make  string `json:"make"`
	Model string `json:"model"`
	Year  int    `json:"year"`
	Color string `json:"color"`
}

// TripEvent is one event in a generated vehicle trip.
type TripEvent struct {
	ID        string `json:"id"`
	VIN       string `json:"vin"`
	Event     string `json:"event"`
	Timestamp string `json:"@timestamp"`
	Odometer  int    `json:"odometer"`
}

var (
	makes = map[string][]string{
		"Toyota":    {"Camry", "Corolla", "Prius", "RAV4", "Highlander", "Tacoma", "4Runner"},
		"Honda":     {"Civic", "Accord", "CR-V", "Pilot", "Fit", "HR-V", "Ridgeline"},
		"Ford":      {"F-150", "Mustang", "Explorer", "Escape", "Focus", "Fusion", "Bronco"},
		"BMW":       {"3 Series", "5 Series", "X3", "X5", "i3", "i8", "Z4"},
		"Mercedes":  {"C-Class", "E-Class", "S-Class", "GLC", "GLE", "A-Class", "CLA"},
		"Audi":      {"A3", "A4", "A6", "Q3", "Q5", "Q7", "TT"},
		"Chevrolet": {"Silverado", "Equinox", "Malibu", "Tahoe", "Suburban", "Camaro", "Corvette"},
		"Nissan":    {"Altima", "Sentra", "Rogue", "Pathfinder", "Frontier", "Titan", "370Z"},
	}

	colors = []string{
		"Red", "Blue", "Black", "White", "Silver", "Gray", "Green", "Yellow", "Orange", "Purple",
	}

	// Trips start, may refuel a few times, and usually stop.
	tripEvents = []string{"start", "refuel", "stop"}
)

const vinAlphabet = "ABCDEFGHJKLMNPRSTUVWXYZ0123456789"

// generator produces documents from one random source.
type generator struct {
	rnd      *rand.Rand
	start    time.Time
	makeKeys []string
}

func newGenerator(seed uint64, start time.Time) *generator {
	keys := make([]string, 0, len(makes))
	for k := range makes {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return &generator{
		rnd:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		start:    start,
		makeKeys: keys,
	}
}

// newID returns a ksuid whose timestamp is t and whose payload comes from
// the generator's random source.
func (g *generator) newID(t time.Time) string {
	var payload [16]byte
	for i := range payload {
		payload[i] = byte(g.rnd.UintN(256))
	}
	id, err := ksuid.FromParts(t, payload[:])
	if err != nil {
		return ksuid.New().String()
	}
	return id.String()
}

func (g *generator) vin() string {
	b := make([]byte, 17)
	for i := range b {
		b[i] = vinAlphabet[g.rnd.IntN(len(vinAlphabet))]
	}
	return string(b)
}

func (g *generator) vehicle() Vehicle {
	selectedMake := g.makeKeys[g.rnd.IntN(len(g.makeKeys))]
	models := makes[selectedMake]
	return Vehicle{
		ID:    g.newID(g.start),
		VIN:   g.vin(),
		Make:  selectedMake,
		Model: models[g.rnd.IntN(len(models))],
		Year:  g.rnd.IntN(10) + 2015, // 2015-2024
		Color: colors[g.rnd.IntN(len(colors))],
	}
}

// trip returns the events of one trip of v in time order, and the time of
// the last one.
func (g *generator) trip(v Vehicle, at time.Time, odometer int) ([]TripEvent, time.Time) {
	names := []string{tripEvents[0]}
	for range g.rnd.IntN(3) {
		names = append(names, tripEvents[1])
	}
	if g.rnd.IntN(5) > 0 {
		names = append(names, tripEvents[2])
	}

	events := make([]TripEvent, 0, len(names))
	for _, name := range names {
		at = at.Add(time.Duration(5+g.rnd.IntN(120)) * time.Minute)
		odometer += g.rnd.IntN(200)
		events = append(events, TripEvent{
			ID:        g.newID(at),
			VIN:       v.VIN,
			Event:     name,
			Timestamp: at.UTC().Format(time.RFC3339),
			Odometer:  odometer,
		})
	}
	return events, at
}

// write emits count vehicles as JSON lines. With trips > 0 it emits that
// many trips per vehicle instead, interleaved across vehicles in time order.
func (g *generator) write(w io.Writer, count, trips int) (int, error) {
	enc := json.NewEncoder(w)
	vehicles := make([]Vehicle, count)
	for i := range vehicles {
		vehicles[i] = g.vehicle()
	}

	if trips <= 0 {
		for _, v := range vehicles {
			if err := enc.Encode(v); err != nil {
				return 0, err
			}
		}
		return count, nil
	}

	var events []TripEvent
	for _, v := range vehicles {
		at, odometer := g.start, g.rnd.IntN(100000)
		for range trips {
			var trip []TripEvent
			trip, at = g.trip(v, at, odometer)
			odometer = trip[len(trip)-1].Odometer
			events = append(events, trip...)
		}
	}
	slices.SortStableFunc(events, func(a, b TripEvent) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})
	for _, e := range events {
		if err := enc.Encode(e); err != nil {
			return 0, err
		}
	}
	return len(events), nil
}

func runAction(c *cli.Context) error {
	ctx := c.Context
	count := c.Int("count")
	trips := c.Int("trips")
	seed := c.Uint64("seed")
	if !c.IsSet("seed") {
		seed = rand.Uint64()
	}

	out := c.App.Writer
	if path := c.String("output"); path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer f.Close()
		out = f
	}
	bw := bufio.NewWriter(out)

	slog.InfoContext(ctx, "Starting vehicle generator",
		"count", count,
		"trips", trips,
		"seed", seed,
	)

	n, err := newGenerator(seed, time.Now().UTC().Truncate(time.Second)).write(bw, count, trips)
	if err != nil {
		return fmt.Errorf("failed to write documents: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}

	slog.InfoContext(ctx, "Successfully generated documents", "documents", n)
	return nil
}

func newApp(stdout io.Writer) *cli.App {
	return &cli.App{
		Name:   "generator",
		Usage:  "Generate random vehicle documents as JSON lines",
		Writer: stdout,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "count",
				Aliases: []string{"c"},
				Usage:   "Number of vehicles to generate",
				Value:   1,
			},
			&cli.IntFlag{
				Name:  "trips",
				Usage: "Emit this many trips of events per vehicle instead of the vehicles",
			},
			&cli.Uint64Flag{
				Name:  "seed",
				Usage: "Random seed; random when unset",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file; - writes stdout",
				Value:   "-",
			},
		},
		Action: runAction,
	}
}

func main() {
	// Logs go to stderr so stdout stays a clean JSON lines stream.
	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" || os.Getenv("AWS_REGION") != "" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	} else {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	}

	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

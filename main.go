package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/gully-data/crease.review/internal/api"
	"github.com/gully-data/crease.review/internal/config"
	"github.com/gully-data/crease.review/internal/events"
	"github.com/gully-data/crease.review/internal/geom"
	"github.com/gully-data/crease.review/internal/rules"
	"github.com/gully-data/crease.review/internal/session"
	"github.com/gully-data/crease.review/internal/store"
	"github.com/gully-data/crease.review/internal/track"
	"github.com/gully-data/crease.review/internal/units"
	"github.com/gully-data/crease.review/internal/version"
)

var (
	configPath  = flag.String("config", "", "Session tuning JSON file (optional)")
	calibPath   = flag.String("calibration", "", "Scene calibration JSON file")
	inputPath   = flag.String("input", "-", "Observation JSONL file, or - for stdin")
	archivePath = flag.String("archive", "", "Sqlite archive path (overrides config; \"none\" disables)")
	appealLBW   = flag.Bool("lbw", false, "Evaluate an LBW appeal for every delivery")
	handedness  = flag.String("handedness", "right", "Batsman stance for LBW appeals: right or left")
	shotOffered = flag.Bool("shot-offered", false, "Whether a shot was offered, for LBW appeals")
	playerBox   = flag.String("player-box", "", "Batsman bounding box as minx,miny,maxx,maxy[,bat|pad]")
	listen      = flag.String("listen", "", "Serve the review API on this address after processing input")
	speedUnits  = flag.String("units", "kmph", "Speed units for the review API: kmph, kph, mph or mps")
)

func main() {
	flag.Parse()
	log.Printf("crease.review %s (%s)", version.Version, version.GitSHA)

	if !units.IsValid(*speedUnits) {
		log.Fatalf("invalid -units %q, valid units: %s", *speedUnits, units.GetValidUnitsString())
	}

	cfg := config.EmptySessionConfig()
	if *configPath != "" {
		loaded, err := config.LoadSessionConfig(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = loaded
	}

	var sess *session.Session
	var archive *store.Store

	dbPath := cfg.GetArchivePath()
	if *archivePath != "" {
		dbPath = *archivePath
	}
	if dbPath != "none" {
		var err error
		archive, err = store.Open(dbPath)
		if err != nil {
			log.Fatalf("open archive: %v", err)
		}
		defer archive.Close()
	}

	var sessErr error
	if *calibPath != "" {
		cal, err := config.LoadCalibration(*calibPath)
		if err != nil {
			log.Fatalf("load calibration: %v", err)
		}
		sess, sessErr = session.New(cfg, &cal, storeOrNil(archive))
	} else {
		log.Printf("no calibration provided: tracking only, adjudication disabled")
		sess, sessErr = session.New(cfg, nil, storeOrNil(archive))
	}
	if sessErr != nil {
		log.Fatalf("create session: %v", sessErr)
	}

	if *playerBox != "" {
		box, err := parsePlayerBox(*playerBox)
		if err != nil {
			log.Fatalf("parse player box: %v", err)
		}
		sess.ObservePlayer(box)
	}

	sess.OnDelivery(func(d *session.Delivery) {
		t := d.Trajectory
		fmt.Printf("delivery %s: %d samples, %.1f km/h, deviation %.1f px, %d impacts\n",
			d.ID, t.Len(), t.SpeedKmh, t.DeviationPx, len(d.Impacts))
		if b := t.Bounce(); b != nil {
			fmt.Printf("  bounced at frame %d (%.0f, %.0f)\n", b.Frame, b.Pixel.X, b.Pixel.Y)
		}
		for _, imp := range d.Impacts {
			fmt.Printf("  impact at frame %d: %s (dv %.1f px/frame, conf %.2f)\n",
				imp.Frame, imp.Surface, imp.VelocityChange, imp.Confidence)
		}
		for _, dec := range d.Decisions {
			fmt.Printf("  %s: %s (%s, conf %.2f)\n", dec.Kind, dec.Verdict, dec.Reason, dec.Confidence)
		}
	})

	in, err := openInput(*inputPath)
	if err != nil {
		log.Fatalf("open input: %v", err)
	}
	defer in.Close()

	fed, err := feed(sess, in)
	if err != nil {
		log.Fatalf("read observations: %v", err)
	}
	if err := sess.Close(); err != nil {
		log.Fatalf("finalize session: %v", err)
	}
	log.Printf("processed %d frames, %d deliveries", fed, len(sess.Deliveries()))

	if *appealLBW {
		appealAll(sess)
	}

	if *listen != "" {
		serveReviewAPI(sess, *listen, *speedUnits)
	}
}

// serveReviewAPI exposes the finished session for review until interrupted.
func serveReviewAPI(sess *session.Session, addr, units string) {
	srv := api.NewServer(sess, units)
	httpServer := &http.Server{Addr: addr, Handler: srv.ServeMux()}

	go func() {
		log.Printf("review API listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("review API: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	httpServer.Close()
}

func storeOrNil(s *store.Store) session.Archiver {
	if s == nil {
		return nil
	}
	return s
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

// feed reads one Observation JSON object per line and pushes it through
// the session. Blank lines and # comments are skipped.
func feed(sess *session.Session, r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	n := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var obs track.Observation
		if err := json.Unmarshal([]byte(line), &obs); err != nil {
			return n, fmt.Errorf("line %d: %w", n+1, err)
		}
		if obs.Visibility == "" {
			obs.Visibility = track.VisibilityVisible
		}
		sess.ProcessFrame(obs)
		n++
	}
	return n, scanner.Err()
}

func appealAll(sess *session.Session) {
	for _, d := range sess.Deliveries() {
		printDecision(sess.EvaluateLBW(d.ID, rules.LBWInput{
			Handedness:  rules.Handedness(*handedness),
			ShotOffered: *shotOffered,
		}))
	}
}

func printDecision(d rules.Decision, err error) {
	if err != nil {
		log.Printf("adjudication failed: %v", err)
		return
	}
	fmt.Printf("%s: %s (%s, conf %.2f)\n", d.Kind, d.Verdict, d.Reason, d.Confidence)
}

func parsePlayerBox(s string) (*events.PlayerBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 && len(parts) != 5 {
		return nil, fmt.Errorf("want minx,miny,maxx,maxy[,tag], got %q", s)
	}
	vals := make([]float64, 4)
	for i := 0; i < 4; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return nil, fmt.Errorf("coordinate %d: %w", i+1, err)
		}
		vals[i] = v
	}
	box := &events.PlayerBox{Box: geom.Rect{
		Min: geom.Point{X: vals[0], Y: vals[1]},
		Max: geom.Point{X: vals[2], Y: vals[3]},
	}}
	if len(parts) == 5 {
		switch tag := strings.TrimSpace(parts[4]); tag {
		case "bat":
			box.Tag = events.SurfaceBat
		case "pad":
			box.Tag = events.SurfacePad
		default:
			return nil, fmt.Errorf("unknown tag %q, want bat or pad", tag)
		}
	}
	return box, nil
}

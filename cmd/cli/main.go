package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sonique-audio/sonique/internal/catalog"
	"github.com/sonique-audio/sonique/internal/fingerprint"
	"github.com/sonique-audio/sonique/internal/service"
	"github.com/sonique-audio/sonique/internal/storage"
	"github.com/sonique-audio/sonique/pkg/logger"
)

// Global flags
var (
	dbPath  string
	workers int
)

func init() {
	flag.StringVar(&dbPath, "db", storage.DefaultPath(), "Path to the SQLite database file (env: SONIQUE_DB_PATH)")
	flag.IntVar(&workers, "workers", 0, "Concurrent scoring workers (0 = number of CPUs)")
}

func createService() (*service.Service, error) {
	return service.New(
		service.WithDBPath(dbPath),
		service.WithWorkers(workers),
	)
}

func main() {
	log := logger.GetLogger()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	log.Debugf("Executing command: %s", command)

	switch command {
	case "ingest":
		handleIngest()
	case "match":
		handleMatch()
	case "list":
		handleList()
	case "delete":
		handleDelete()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// landmarkFile is the JSON document produced by the external landmark
// extraction stage.
type landmarkFile struct {
	Landmarks []fingerprint.Landmark `json:"landmarks"`
}

func loadLandmarks(path string) ([]fingerprint.Landmark, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading landmark file: %w", err)
	}
	var doc landmarkFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing landmark file %s: %w", path, err)
	}
	return doc.Landmarks, nil
}

func handleIngest() {
	log := logger.GetLogger()

	args := os.Args[2:]
	var landmarkPath string
	var flagArgs []string
	for i, arg := range args {
		if !strings.HasPrefix(arg, "-") && landmarkPath == "" {
			landmarkPath = arg
		} else {
			flagArgs = append(flagArgs, args[i:]...)
			break
		}
	}

	ingestCmd := flag.NewFlagSet("ingest", flag.ExitOnError)
	title := ingestCmd.String("title", "", "Track title (required)")
	artists := ingestCmd.String("artists", "", "Artist names (required)")
	album := ingestCmd.String("album", "", "Album name (optional)")
	cover := ingestCmd.String("cover", "", "Cover art URL (optional)")
	releaseDate := ingestCmd.String("release-date", "", "Release date (optional)")
	durationMs := ingestCmd.Int("duration-ms", 0, "Track duration in milliseconds (optional)")
	ingestCmd.Parse(flagArgs)

	if landmarkPath == "" {
		fmt.Println("Error: landmark file path required")
		fmt.Println("Usage: sonique ingest <landmarks.json> --title <title> --artists <artists>")
		os.Exit(1)
	}
	if *title == "" || *artists == "" {
		fmt.Println("Error: --title and --artists are required")
		os.Exit(1)
	}

	landmarks, err := loadLandmarks(landmarkPath)
	if err != nil {
		fmt.Printf("Failed to load landmarks: %v\n", err)
		os.Exit(1)
	}
	log.Infof("Loaded %d landmarks from %s", len(landmarks), landmarkPath)

	svc, err := createService()
	if err != nil {
		fmt.Printf("Failed to create service: %v\n", err)
		os.Exit(1)
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	trackID, count, err := svc.IngestTrack(ctx, catalog.Metadata{
		Title:       *title,
		Artists:     *artists,
		Album:       *album,
		Cover:       *cover,
		ReleaseDate: *releaseDate,
		DurationMs:  *durationMs,
	}, landmarks)
	if err != nil {
		fmt.Printf("Failed to ingest track: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nTrack added to catalog")
	fmt.Printf("   ID:           %s\n", trackID)
	fmt.Printf("   Title:        %s\n", *title)
	fmt.Printf("   Artists:      %s\n", *artists)
	fmt.Printf("   Fingerprints: %d\n", count)
}

func handleMatch() {
	log := logger.GetLogger()

	if len(os.Args) < 3 {
		fmt.Println("Usage: sonique match <landmarks.json>")
		os.Exit(1)
	}
	landmarkPath := os.Args[2]

	landmarks, err := loadLandmarks(landmarkPath)
	if err != nil {
		fmt.Printf("Failed to load landmarks: %v\n", err)
		os.Exit(1)
	}
	log.Infof("Loaded %d query landmarks from %s", len(landmarks), landmarkPath)

	svc, err := createService()
	if err != nil {
		fmt.Printf("Failed to create service: %v\n", err)
		os.Exit(1)
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	results, err := svc.MatchLandmarks(ctx, landmarks)
	if err != nil {
		fmt.Printf("Failed to match: %v\n", err)
		os.Exit(1)
	}

	if len(results) == 0 {
		size, sizeErr := svc.IndexSize(ctx)
		if sizeErr == nil && size == 0 {
			fmt.Println("\nCatalog is empty — ingest some tracks first")
		} else {
			fmt.Println("\nNo matches found")
		}
		return
	}

	fmt.Printf("\nFound %d match(es):\n\n", len(results))
	maxDisplay := 10
	if len(results) < maxDisplay {
		maxDisplay = len(results)
	}
	for i := 0; i < maxDisplay; i++ {
		result := results[i]
		fmt.Printf("%d. %q by %s\n", i+1, result.Track.Title, result.Track.Artists)
		fmt.Printf("   Support: %d | Confidence: %.1f%% | Offset: %ds\n",
			result.Support, result.Confidence, result.Offset)
		if result.Track.Album != "" {
			fmt.Printf("   Album: %s\n", result.Track.Album)
		}
		fmt.Println()
	}
	if len(results) > maxDisplay {
		fmt.Printf("... and %d more matches\n", len(results)-maxDisplay)
	}
}

func handleList() {
	svc, err := createService()
	if err != nil {
		fmt.Printf("Failed to create service: %v\n", err)
		os.Exit(1)
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	tracks, err := svc.ListTracks(ctx)
	if err != nil {
		fmt.Printf("Failed to list tracks: %v\n", err)
		os.Exit(1)
	}

	if len(tracks) == 0 {
		fmt.Println("\nNo tracks in catalog")
		return
	}

	fmt.Printf("\nFound %d track(s):\n\n", len(tracks))
	for i, track := range tracks {
		postings, _ := svc.TrackPostings(ctx, track.ID)
		fmt.Printf("%d. %q by %s\n", i+1, track.Title, track.Artists)
		fmt.Printf("   ID: %s | Fingerprints: %d\n", track.ID, postings)
		if track.DurationMs > 0 {
			duration := track.DurationMs / 1000
			fmt.Printf("   Duration: %d:%02d\n", duration/60, duration%60)
		}
		fmt.Println()
	}
}

func handleDelete() {
	log := logger.GetLogger()

	if len(os.Args) < 3 {
		fmt.Println("Usage: sonique delete <track_id>")
		os.Exit(1)
	}
	trackID := os.Args[2]

	svc, err := createService()
	if err != nil {
		fmt.Printf("Failed to create service: %v\n", err)
		os.Exit(1)
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	track, err := svc.GetTrack(ctx, trackID)
	if err != nil {
		fmt.Printf("Track not found: %s\n", trackID)
		os.Exit(1)
	}

	if err := svc.DeleteTrack(ctx, trackID); err != nil {
		fmt.Printf("Failed to delete track: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nDeleted track:")
	fmt.Printf("   ID:      %s\n", trackID)
	fmt.Printf("   Title:   %s\n", track.Title)
	fmt.Printf("   Artists: %s\n", track.Artists)
	log.Infof("Deleted track %s (%q by %q)", trackID, track.Title, track.Artists)
}

func printUsage() {
	fmt.Println("Sonique - Audio Fingerprinting CLI")
	fmt.Println("\nGlobal Options:")
	fmt.Println("  --db <path>        Path to SQLite database (env: SONIQUE_DB_PATH, default: sonique.db)")
	fmt.Println("  --workers <n>      Concurrent scoring workers (default: number of CPUs)")
	fmt.Println("\nUsage:")
	fmt.Println("  sonique [global-options] ingest <landmarks.json> --title <title> --artists <artists> [--album <name>]")
	fmt.Println("  sonique [global-options] match <landmarks.json>")
	fmt.Println("  sonique [global-options] list")
	fmt.Println("  sonique [global-options] delete <track_id>")
	fmt.Println("\nLandmark files are JSON documents produced by the peak extraction stage:")
	fmt.Println(`  {"landmarks": [{"freq_bin": 412, "time": 1.84, "magnitude": 46.2}, ...]}`)
}

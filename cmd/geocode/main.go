package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dbourene/consumerseek/internal/db"
	"github.com/dbourene/consumerseek/internal/geocode"
	"github.com/joho/godotenv"
)

// CLI flags
var (
	communes   = flag.String("communes", "", "Comma-separated INSEE commune codes (required)")
	annee      = flag.Int("annee", 2024, "Dataset year")
	limit      = flag.Int("limit", 0, "Max consumers to geocode (0 = all pending)")
	configPath = flag.String("config", "", "Geocode config YAML (default: env GEOCODE_CONFIG)")
)

func main() {
	_ = godotenv.Load(".env.local")
	flag.Parse()
	if *communes == "" {
		fatalf("--communes is required")
	}

	var codes []string
	for _, c := range strings.Split(*communes, ",") {
		if c = strings.TrimSpace(c); c != "" {
			codes = append(codes, c)
		}
	}
	if len(codes) == 0 {
		fatalf("--communes contains no codes")
	}

	db.Connect()
	geocode.Init(*configPath)

	job, err := geocode.StartJob(codes, *annee, *limit)
	if err != nil {
		fatalf("start job: %v", err)
	}
	fmt.Printf("Job %s started: %d consumers pending for %d communes, annee %d\n",
		job.ID, job.Total, len(codes), *annee)

	for {
		time.Sleep(2 * time.Second)
		snapshot := geocode.GetJob(job.ID)
		if snapshot == nil {
			fatalf("job %s disappeared", job.ID)
		}
		fmt.Printf("  %d/%d processed (success=%d failed=%d)\n",
			snapshot.Processed, snapshot.Total, snapshot.Success, snapshot.Failed)
		if snapshot.Status != "running" {
			fmt.Printf("Job %s %s\n", snapshot.ID, snapshot.Status)
			if snapshot.Failed > 0 {
				os.Exit(1)
			}
			return
		}
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

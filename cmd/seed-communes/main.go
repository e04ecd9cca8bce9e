package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

// CLI flags
var (
	csvPath     = flag.String("csv", "", "Path to the INSEE commune CSV (required)")
	dsn         = flag.String("dsn", os.Getenv("DATABASE_URL"), "Postgres DSN (default: env DATABASE_URL)")
	dryRun      = flag.Bool("dry-run", false, "Parse + validate only; no DB writes")
	confirm     = flag.Bool("confirm", false, "Required to write to the database")
	advisoryKey = flag.Int64("advisory-lock", 0, "Optional Postgres advisory lock key (e.g., 424242). 0 = disabled")
)

// CSV contract
// codgeo,libgeo,dens7,libdens7,epci,latitude,longitude
// dens7 is the INSEE 7-level density grid (1 = dense urban .. 7 = very sparse rural);
// latitude/longitude are the commune centroid and may be empty

type CommuneCSV struct {
	CodGeo     string
	NomCommune string
	Dens7      int
	LibDens7   string
	CodeEPCI   string
	Latitude   *float64
	Longitude  *float64
}

func main() {
	_ = godotenv.Load(".env.local")
	flag.Parse()
	if *csvPath == "" {
		fatalf("--csv is required")
	}
	if *dsn == "" {
		fatalf("--dsn not provided and DATABASE_URL not set")
	}

	rows, err := loadCSV(*csvPath)
	if err != nil {
		fatalf("CSV error: %v", err)
	}
	if err := validateRows(rows); err != nil {
		fatalf("CSV validation failed: %v", err)
	}

	fmt.Printf("Loaded %d communes from %s\n", len(rows), *csvPath)

	if *dryRun {
		printPlan(rows)
		fmt.Println("Dry run complete. No changes made.")
		return
	}

	if !*confirm {
		fatalf("Refusing to run without --confirm. Add --dry-run to preview.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		fatalf("connect: %v", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		fatalf("ping: %v", err)
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		fatalf("begin tx: %v", err)
	}
	defer func() {
		_ = tx.Rollback() // no-op if already committed
	}()

	// Optional advisory lock to avoid concurrent runs
	if *advisoryKey != 0 {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, *advisoryKey); err != nil {
			fatalf("advisory lock: %v", err)
		}
	}

	var before int64
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM communes`).Scan(&before); err != nil {
		fatalf("pre-count: %v", err)
	}
	fmt.Printf("Before: communes=%d\n", before)

	inserted, updated, err := upsertAll(ctx, tx, rows)
	if err != nil {
		fatalf("upsert communes: %v", err)
	}

	var after int64
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM communes`).Scan(&after); err != nil {
		fatalf("post-count: %v", err)
	}
	fmt.Printf("After:  communes=%d (inserted=%d updated=%d)\n", after, inserted, updated)

	// sanity: every CSV row is now present
	if after < before+inserted {
		fatalf("sanity check failed: after=%d before=%d inserted=%d", after, before, inserted)
	}

	if err := tx.Commit(); err != nil {
		fatalf("commit: %v", err)
	}
	fmt.Println("Seed complete ✅")
}

func loadCSV(path string) ([]CommuneCSV, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	r := csv.NewReader(br)
	r.TrimLeadingSpace = true

	headers, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx := map[string]int{}
	for i, h := range headers {
		idx[strings.TrimSpace(strings.ToLower(h))] = i
	}
	required := []string{"codgeo", "libgeo", "dens7", "libdens7"}
	for _, k := range required {
		if _, ok := idx[k]; !ok {
			return nil, fmt.Errorf("missing required column: %s", k)
		}
	}

	get := func(rec []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var out []CommuneCSV
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv read: %w", err)
		}

		dens, err := strconv.Atoi(get(rec, "dens7"))
		if err != nil {
			return nil, fmt.Errorf("codgeo %s: bad dens7 %q", get(rec, "codgeo"), get(rec, "dens7"))
		}

		row := CommuneCSV{
			CodGeo:     get(rec, "codgeo"),
			NomCommune: get(rec, "libgeo"),
			Dens7:      dens,
			LibDens7:   get(rec, "libdens7"),
			CodeEPCI:   get(rec, "epci"),
		}
		if lat := get(rec, "latitude"); lat != "" {
			v, err := strconv.ParseFloat(lat, 64)
			if err != nil {
				return nil, fmt.Errorf("codgeo %s: bad latitude %q", row.CodGeo, lat)
			}
			row.Latitude = &v
		}
		if lon := get(rec, "longitude"); lon != "" {
			v, err := strconv.ParseFloat(lon, 64)
			if err != nil {
				return nil, fmt.Errorf("codgeo %s: bad longitude %q", row.CodGeo, lon)
			}
			row.Longitude = &v
		}

		out = append(out, row)
	}
	return out, nil
}

func validateRows(rows []CommuneCSV) error {
	if len(rows) == 0 {
		return fmt.Errorf("CSV has no data rows")
	}
	seen := make(map[string]struct{}, len(rows))
	for i, r := range rows {
		if len(r.CodGeo) != 5 {
			return fmt.Errorf("row %d: codgeo %q is not 5 characters", i+2, r.CodGeo)
		}
		if r.NomCommune == "" {
			return fmt.Errorf("row %d: libgeo is empty", i+2)
		}
		if r.Dens7 < 1 || r.Dens7 > 7 {
			return fmt.Errorf("row %d: dens7 %d out of range 1..7", i+2, r.Dens7)
		}
		if (r.Latitude == nil) != (r.Longitude == nil) {
			return fmt.Errorf("row %d: latitude and longitude must both be set or both empty", i+2)
		}
		if _, dup := seen[r.CodGeo]; dup {
			return fmt.Errorf("row %d: duplicate codgeo '%s'", i+2, r.CodGeo)
		}
		seen[r.CodGeo] = struct{}{}
	}
	return nil
}

func printPlan(rows []CommuneCSV) {
	densCounts := map[int]int{}
	withCoords := 0
	for _, r := range rows {
		densCounts[r.Dens7]++
		if r.Latitude != nil {
			withCoords++
		}
	}
	fmt.Println("Plan preview:")
	fmt.Printf("  Communes to upsert: %d\n", len(rows))
	fmt.Printf("  With centroid coordinates: %d\n", withCoords)
	for d := 1; d <= 7; d++ {
		if densCounts[d] > 0 {
			fmt.Printf("  dens7=%d: %d communes\n", d, densCounts[d])
		}
	}
}

func upsertAll(ctx context.Context, tx *sql.Tx, rows []CommuneCSV) (inserted, updated int64, err error) {
	// prepared statement for speed & safety
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO communes (codgeo, nom_commune, dens7, lib_dens7, code_epci, latitude, longitude)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
		ON CONFLICT (codgeo) DO UPDATE SET
			nom_commune = EXCLUDED.nom_commune,
			dens7 = EXCLUDED.dens7,
			lib_dens7 = EXCLUDED.lib_dens7,
			code_epci = EXCLUDED.code_epci,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude
		RETURNING (xmax = 0)`)
	if err != nil {
		return 0, 0, err
	}
	defer stmt.Close()

	for _, r := range rows {
		var wasInsert bool
		err := stmt.QueryRowContext(ctx, r.CodGeo, r.NomCommune, r.Dens7, r.LibDens7, r.CodeEPCI, r.Latitude, r.Longitude).Scan(&wasInsert)
		if err != nil {
			return inserted, updated, fmt.Errorf("upsert commune '%s': %w", r.CodGeo, err)
		}
		if wasInsert {
			inserted++
		} else {
			updated++
		}
	}
	return inserted, updated, nil
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

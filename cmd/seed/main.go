// cmd/seed loads questions, avatars, gifts and profiles from a YAML file
// into the arena database. Entries are upserted, so the file can be re-run.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/jason-s-yu/arena/internal/config"
	"github.com/jason-s-yu/arena/internal/database"
	"github.com/jason-s-yu/arena/internal/seed"
	_ "github.com/joho/godotenv/autoload"
)

func main() {
	file := flag.String("file", "seed.yaml", "seed file to load")
	schema := flag.Bool("schema", true, "create missing tables before seeding")
	flag.Parse()

	data, err := seed.Load(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(os.Getenv("ARENA_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if err := database.ConnectDB(ctx, cfg.Database.DSN(), cfg.Database.MaxConns); err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer database.DB.Close()

	if *schema {
		if err := database.EnsureSchema(ctx, database.DB); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	}

	counts, err := seed.Apply(ctx, database.NewStore(database.DB), data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed aborted after %+v: %v\n", counts, err)
		os.Exit(1)
	}
	fmt.Printf("Profiles: %d, avatars: %d, gifts: %d, questions: %d\n",
		counts.Profiles, counts.Avatars, counts.Gifts, counts.Questions)
}

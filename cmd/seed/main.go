// Command seed loads driver profiles and historical events from a YAML
// fixture file into the database, then recomputes the daily and per-driver
// statistics. Intended for local development and demo environments.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm/logger"

	"github.com/driveguard/driveguard/internal/config"
	"github.com/driveguard/driveguard/internal/database"
	"github.com/driveguard/driveguard/internal/feed"
	"github.com/driveguard/driveguard/internal/jobs"
	"github.com/driveguard/driveguard/internal/services"
)

type seedFile struct {
	Drivers []seedDriver `yaml:"drivers"`
	Events  []seedEvent  `yaml:"events"`
}

type seedDriver struct {
	DriverID   string `yaml:"driver_id"`
	Name       string `yaml:"name"`
	Age        int    `yaml:"age"`
	Experience int    `yaml:"experience"`
	Phone      string `yaml:"phone"`
	Email      string `yaml:"email"`
}

type seedEvent struct {
	DriverID        string    `yaml:"driver_id"`
	Status          string    `yaml:"status"`
	Severity        string    `yaml:"severity"`
	StartTime       time.Time `yaml:"start_time"`
	DurationSeconds int       `yaml:"duration_seconds"`
	Notes           string    `yaml:"notes"`
}

func main() {
	var file string
	flag.StringVar(&file, "file", "seed.yaml", "path to the YAML seed file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading it: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		log.Fatalf("Failed to read seed file %s: %v", file, err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		log.Fatalf("Failed to parse seed file %s: %v", file, err)
	}

	if err := database.Connect(cfg.DatabaseURL, logger.Warn); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}
	if err := database.InitializeDefaults(); err != nil {
		log.Fatalf("Failed to initialize database defaults: %v", err)
	}

	db := database.GetDB()
	bus := feed.NewMemoryBus()
	defer bus.Close()

	driverService := services.NewDriverService(db, bus)
	eventService := services.NewEventService(db, bus)
	statsService := services.NewStatsService(db)

	created, err := seedDrivers(driverService, seed.Drivers)
	if err != nil {
		log.Fatalf("Failed to seed drivers: %v", err)
	}
	log.Printf("Seeded %d driver(s)", created)

	if err := seedEvents(eventService, driverService, seed.Events); err != nil {
		log.Fatalf("Failed to seed events: %v", err)
	}
	log.Printf("Seeded %d event(s)", len(seed.Events))

	rollup := jobs.NewStatsRollup(eventService, driverService, statsService)
	written, err := rollup.Run()
	if err != nil {
		log.Fatalf("Failed to recompute statistics: %v", err)
	}
	log.Printf("Recomputed statistics for %d driver(s)", written)

	if err := database.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}
	log.Printf("Seed complete")
}

// seedDrivers creates the drivers that do not exist yet and returns how many
// were created. Existing drivers are left untouched so reruns are safe.
func seedDrivers(driverService *services.DriverService, drivers []seedDriver) (int, error) {
	created := 0
	for _, d := range drivers {
		existing, err := driverService.GetByDriverID(d.DriverID)
		if err != nil {
			return created, fmt.Errorf("lookup driver %s: %w", d.DriverID, err)
		}
		if existing != nil {
			log.Printf("Driver %s already exists, skipping", d.DriverID)
			continue
		}
		profile := database.DriverProfile{
			DriverID:   d.DriverID,
			Name:       d.Name,
			Age:        d.Age,
			Experience: d.Experience,
			Phone:      d.Phone,
			Email:      d.Email,
			Active:     true,
		}
		if err := driverService.Create(&profile); err != nil {
			return created, fmt.Errorf("create driver %s: %w", d.DriverID, err)
		}
		created++
	}
	return created, nil
}

func seedEvents(eventService *services.EventService, driverService *services.DriverService, events []seedEvent) error {
	for i, e := range events {
		input := services.CreateEventInput{
			DriverID:  e.DriverID,
			StartTime: e.StartTime,
			Status:    database.EventStatus(e.Status),
			Severity:  database.Severity(e.Severity),
			Notes:     e.Notes,
		}
		if profile, err := driverService.GetByDriverID(e.DriverID); err == nil && profile != nil {
			input.DriverName = profile.Name
		}
		if e.DurationSeconds > 0 {
			end := e.StartTime.Add(time.Duration(e.DurationSeconds) * time.Second)
			input.EndTime = &end
		}
		if _, err := eventService.Create(input); err != nil {
			return fmt.Errorf("create event %d for driver %s: %w", i, e.DriverID, err)
		}
	}
	return nil
}

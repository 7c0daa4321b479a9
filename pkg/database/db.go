// Package database holds the gorm-backed adapters behind the engines'
// read-only source interfaces, plus the series-occurrence store. The
// engines never touch gorm directly.
package database

import (
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// EmployeeRecord represents the employees table. Certifications and skills
// are stored as JSON arrays in the shapes upstream systems produced (plain
// strings or labeled objects) and normalized on read.
type EmployeeRecord struct {
	ID                string    `gorm:"primaryKey" json:"id"`
	Name              string    `gorm:"not null" json:"name"`
	Title             string    `json:"title"`
	Certifications    string    `json:"certifications"` // JSON array
	Skills            string    `json:"skills"`         // JSON array
	PayRate           float64   `gorm:"index" json:"pay_rate"`
	PerformanceRating *float64  `json:"performance_rating"`
	Active            bool      `gorm:"default:true;index" json:"active"`
	CreatedAt         time.Time `json:"created_at"`
}

// JobRecord represents the jobs table as the scheduling core reads it.
type JobRecord struct {
	ID          string     `gorm:"primaryKey" json:"id"`
	Date        string     `gorm:"index;not null" json:"date"` // 2006-01-02
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	CrewIDs     string     `json:"crew_ids"` // JSON array of employee ids
	ServiceType string     `json:"service_type"`
	Status      string     `gorm:"default:scheduled" json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
}

// EquipmentReservationRecord represents the equipment_reservations table.
type EquipmentReservationRecord struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	EquipmentID string     `gorm:"index;not null" json:"equipment_id"`
	JobID       string     `gorm:"index" json:"job_id"`
	Date        string     `gorm:"index;not null" json:"date"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
}

// JobSeriesRecord represents the job_series table.
type JobSeriesRecord struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	Pattern      string    `gorm:"not null" json:"pattern"`
	Interval     int       `gorm:"default:1" json:"interval"`
	WeekDay      *int      `json:"week_day"`
	MonthDay     *int      `json:"month_day"`
	Month        *int      `json:"month"`
	StartDate    string    `gorm:"not null" json:"start_date"`
	EndDate      *string   `json:"end_date"`
	ServiceType  string    `json:"service_type"`
	DefaultCrew  string    `json:"default_crew"` // JSON array of employee ids
	DefaultHours float64   `json:"default_hours"`
	Notes        string    `json:"notes"`
	CreatedAt    time.Time `json:"created_at"`
}

// SeriesOccurrenceRecord represents the series_occurrences table. The
// unique index on (series_id, date) is what makes concurrent top-ups safe:
// two callers racing to create the same occurrence surface as a duplicate
// key, never a double row.
type SeriesOccurrenceRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SeriesID  string    `gorm:"uniqueIndex:idx_series_date;not null" json:"series_id"`
	Date      string    `gorm:"uniqueIndex:idx_series_date;not null" json:"date"`
	Status    string    `gorm:"default:scheduled" json:"status"`
	JobID     *string   `json:"job_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DurationAggregateRecord represents the duration_aggregates table,
// populated externally as jobs complete. Append-only from this module's
// point of view.
type DurationAggregateRecord struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	ServiceType string  `gorm:"uniqueIndex:idx_duration_key;not null" json:"service_type"`
	SizeBucket  string  `gorm:"uniqueIndex:idx_duration_key;not null" json:"size_bucket"`
	HazardLevel string  `gorm:"uniqueIndex:idx_duration_key;not null" json:"hazard_level"`
	CrewSize    int     `gorm:"uniqueIndex:idx_duration_key;not null" json:"crew_size"`
	SampleCount int     `gorm:"default:0" json:"sample_count"`
	MeanHours   float64 `json:"mean_hours"`
	StddevHours float64 `json:"stddev_hours"`
}

// InitDB initializes the database connection and migrates the schema.
// DATABASE_URL selects postgres; otherwise a sqlite file at DATA_PATH
// (default scheduler.db) is used.
func InitDB() *gorm.DB {
	var db *gorm.DB
	var err error

	dsn := os.Getenv("DATABASE_URL")
	if dsn != "" {
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		}), &gorm.Config{
			PrepareStmt:    false,
			TranslateError: true,
		})
	} else {
		dbPath := os.Getenv("DATA_PATH")
		if dbPath == "" {
			dbPath = "scheduler.db"
		}
		db, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{TranslateError: true})
	}

	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	// Auto Migration
	db.AutoMigrate(
		&EmployeeRecord{},
		&JobRecord{},
		&EquipmentReservationRecord{},
		&JobSeriesRecord{},
		&SeriesOccurrenceRecord{},
		&DurationAggregateRecord{},
	)

	return db
}

package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/i474232898/crop-yield-analytics/internal/crop"
)

// Supported SQL drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// predictionRow is the persisted shape of a crop.Record.
type predictionRow struct {
	ID                  string  `gorm:"primaryKey;size:36"`
	CropType            string  `gorm:"index;not null"`
	State               string  `gorm:"index;not null"`
	District            string  `gorm:"index;not null"`
	Season              string  `gorm:"index;not null"`
	CropYear            int     `gorm:"index;not null"`
	Area                float64 `gorm:"not null"`
	PredictedProduction *float64
	PredictedYield      *float64
	ProductionAnalysis  string
	YieldAnalysis       string
	Recommendations     []string  `gorm:"serializer:json"`
	CreatedAt           time.Time `gorm:"index"`
}

func (predictionRow) TableName() string { return "predictions" }

func rowFromRecord(r crop.Record) predictionRow {
	return predictionRow{
		ID:                  r.ID,
		CropType:            r.CropType,
		State:               r.State,
		District:            r.District,
		Season:              string(r.Season),
		CropYear:            r.CropYear,
		Area:                r.Area,
		PredictedProduction: r.Production,
		PredictedYield:      r.Yield,
		ProductionAnalysis:  r.ProductionAnalysis,
		YieldAnalysis:       r.YieldAnalysis,
		Recommendations:     r.Recommendations,
		CreatedAt:           r.CreatedAt.UTC(),
	}
}

func (row predictionRow) record() crop.Record {
	return crop.Record{
		ID:                 row.ID,
		CropType:           row.CropType,
		State:              row.State,
		District:           row.District,
		Season:             crop.Season(row.Season),
		CropYear:           row.CropYear,
		Area:               row.Area,
		Production:         row.PredictedProduction,
		Yield:              row.PredictedYield,
		ProductionAnalysis: row.ProductionAnalysis,
		YieldAnalysis:      row.YieldAnalysis,
		Recommendations:    row.Recommendations,
		CreatedAt:          row.CreatedAt.UTC(),
	}
}

// SQLStore is a gorm-backed implementation of crop.Store.
type SQLStore struct {
	db  *gorm.DB
	log *zap.Logger
}

// OpenSQL connects to the database, migrates the schema and returns a store.
func OpenSQL(driver, dsn string, log *zap.Logger) (*SQLStore, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve underlying SQL DB: %w", err)
	}
	if driver == DriverSQLite {
		// sqlite allows a single writer; in-memory databases are per connection.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(5)
	}

	if err := db.AutoMigrate(&predictionRow{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	log.Info("connected to database", zap.String("driver", driver))
	return &SQLStore{db: db, log: log.With(zap.String("component", "sql-store"))}, nil
}

// Close releases the underlying connection pool.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Save inserts or replaces a record.
func (s *SQLStore) Save(ctx context.Context, rec crop.Record) error {
	row := rowFromRecord(rec)
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("save prediction %s: %w", rec.ID, err)
	}
	return nil
}

// Get returns the record with the given id.
func (s *SQLStore) Get(ctx context.Context, id string) (crop.Record, error) {
	var row predictionRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return crop.Record{}, crop.ErrNotFound
	}
	if err != nil {
		return crop.Record{}, fmt.Errorf("get prediction %s: %w", id, err)
	}
	return row.record(), nil
}

// Find pushes the filter down as SQL predicates. Criteria naming the Unknown
// label are left to the in-memory filter since missing values are stored empty.
func (s *SQLStore) Find(ctx context.Context, q crop.Query) ([]crop.Record, error) {
	tx := s.db.WithContext(ctx).Model(&predictionRow{})

	f := q.Filter
	// partial is set when a criterion is left to the in-memory filter, in which
	// case the limit cannot be pushed down either.
	partial := namesUnknown(f)
	if f.Crop != "" && f.Crop != crop.Unknown {
		tx = tx.Where("crop_type = ?", f.Crop)
	}
	if f.State != "" && f.State != crop.Unknown {
		tx = tx.Where("state = ?", f.State)
	}
	if f.District != "" && f.District != crop.Unknown {
		tx = tx.Where("district = ?", f.District)
	}
	if f.Year != 0 {
		tx = tx.Where("crop_year = ?", f.Year)
	}
	if len(f.Crops) > 0 && !slices.Contains(f.Crops, crop.Unknown) {
		tx = tx.Where("crop_type IN ?", f.Crops)
	}
	if len(f.Seasons) > 0 && !slices.Contains(f.Seasons, crop.SeasonUnknown) {
		seasons := make([]string, 0, len(f.Seasons))
		for _, season := range f.Seasons {
			seasons = append(seasons, string(season))
		}
		tx = tx.Where("season IN ?", seasons)
	}

	switch q.Sort {
	case crop.SortNewest:
		tx = tx.Order("created_at DESC")
	case crop.SortYearDesc:
		tx = tx.Order("crop_year DESC")
	default:
		tx = tx.Order("created_at ASC")
	}
	if q.Limit > 0 && !partial {
		tx = tx.Limit(q.Limit)
	}

	var rows []predictionRow
	if err := tx.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find predictions: %w", err)
	}

	out := make([]crop.Record, 0, len(rows))
	for _, row := range rows {
		rec := row.record()
		if f.Match(rec) {
			out = append(out, rec)
		}
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func namesUnknown(f crop.Filter) bool {
	return f.Crop == crop.Unknown || f.State == crop.Unknown || f.District == crop.Unknown ||
		slices.Contains(f.Crops, crop.Unknown) || slices.Contains(f.Seasons, crop.SeasonUnknown)
}

// DeleteBefore removes records created before cutoff.
func (s *SQLStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res := s.db.WithContext(ctx).Where("created_at < ?", cutoff.UTC()).Delete(&predictionRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete predictions: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

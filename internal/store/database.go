package store

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/blacktop/fcs-keys/internal/appledb"
	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// BuildRecord is a processed build.
type BuildRecord struct {
	ID        uint        `gorm:"primaryKey"`
	OS        string      `gorm:"uniqueIndex:idx_builds_os_build;not null"`
	Build     string      `gorm:"uniqueIndex:idx_builds_os_build;not null"`
	Keys      []KeyRecord `gorm:"foreignKey:BuildID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
}

func (BuildRecord) TableName() string { return "builds" }

// KeyRecord is one key file of a build.
type KeyRecord struct {
	ID        uint   `gorm:"primaryKey"`
	BuildID   uint   `gorm:"uniqueIndex:idx_keys_build_digest;not null"`
	Digest    string `gorm:"uniqueIndex:idx_keys_build_digest;not null"`
	Name      string
	Size      int64
	Data      []byte
	CreatedAt time.Time
}

func (KeyRecord) TableName() string { return "keys" }

// Database keeps keys in a SQL database through gorm.
type Database struct {
	db *gorm.DB
}

func newDatabase(dialector gorm.Dialector) (*Database, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect database")
	}
	if err := db.AutoMigrate(&BuildRecord{}, &KeyRecord{}); err != nil {
		return nil, errors.Wrap(err, "failed to migrate database")
	}
	return &Database{db: db}, nil
}

// NewSqlite opens (creating if needed) the sqlite database at path.
func NewSqlite(path string) (*Database, error) {
	if path == "" {
		return nil, errors.New("'path' is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create database directory")
	}
	d, err := newDatabase(sqlite.Open(path + "?_pragma=busy_timeout(5000)"))
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer, parallel fetches share one connection
	sqlDB, err := d.db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get database handle")
	}
	sqlDB.SetMaxOpenConns(1)
	return d, nil
}

// NewPostgres connects to the postgres database at dsn.
func NewPostgres(dsn string) (*Database, error) {
	if dsn == "" {
		return nil, errors.New("'dsn' is required")
	}
	return newDatabase(postgres.Open(dsn))
}

func (d *Database) Exists(ctx context.Context, b appledb.Build) (bool, error) {
	var n int64
	if err := d.db.WithContext(ctx).Model(&BuildRecord{}).
		Where("os = ? AND build = ?", b.OS, b.ID).
		Count(&n).Error; err != nil {
		return false, errors.Wrapf(err, "failed to look up %s", b)
	}
	return n > 0, nil
}

func (d *Database) MarkDone(ctx context.Context, b appledb.Build, artifacts []Artifact) (int, error) {
	var n int
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := BuildRecord{OS: b.OS, Build: b.ID}
		if err := tx.Where(&BuildRecord{OS: b.OS, Build: b.ID}).FirstOrCreate(&rec).Error; err != nil {
			return errors.Wrap(err, "failed to record build")
		}
		for _, a := range dedup(artifacts) {
			data, err := os.ReadFile(a.Path)
			if err != nil {
				return errors.Wrap(err, "failed to read artifact")
			}
			key := KeyRecord{
				BuildID: rec.ID,
				Digest:  a.Digest,
				Name:    a.Name,
				Size:    int64(len(data)),
				Data:    data,
			}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&key)
			if res.Error != nil {
				return errors.Wrap(res.Error, "failed to record key")
			}
			n += int(res.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (d *Database) List(ctx context.Context) ([]Entry, error) {
	var recs []BuildRecord
	if err := d.db.WithContext(ctx).
		Preload("Keys", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "build_id", "digest", "name", "size")
		}).
		Order("os, build").
		Find(&recs).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list builds")
	}
	entries := make([]Entry, 0, len(recs))
	for _, r := range recs {
		entries = append(entries, Entry{
			Build: appledb.Build{OS: r.OS, ID: r.Build},
			Keys:  len(r.Keys),
		})
	}
	return entries, nil
}

// Keys returns the stored keys of a build.
func (d *Database) Keys(ctx context.Context, b appledb.Build) ([]KeyRecord, error) {
	var rec BuildRecord
	err := d.db.WithContext(ctx).Preload("Keys").
		Where("os = ? AND build = ?", b.OS, b.ID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, errors.Wrapf(err, "failed to get keys of %s", b)
	}
	return rec.Keys, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

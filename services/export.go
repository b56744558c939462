package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"myhome_scrooper/config"
	"myhome_scrooper/models"
	"myhome_scrooper/storage"
)

const filePrefix = "myhome_listings"

// ListingStore is the local store every run is written to.
type ListingStore interface {
	InsertListings(runID uuid.UUID, records []models.ListingRecord) error
}

// Warehouse is the optional remote sink for runs and their records.
type Warehouse interface {
	SaveRun(ctx context.Context, run *models.ScrapeRun) error
	WriteBatch(ctx context.Context, run *models.ScrapeRun, records []models.ListingRecord) error
}

// FileUploader copies export files off the host.
type FileUploader interface {
	UploadFile(ctx context.Context, runID, localPath string) (string, error)
}

// ExportResult lists what a single export produced.
type ExportResult struct {
	Summary  models.Summary
	Files    []string
	Uploaded []string
}

// ExportService persists the records of a finished run to every configured
// sink. A failing sink does not stop the others.
type ExportService struct {
	output    config.OutputConfig
	store     ListingStore
	warehouse Warehouse
	uploader  FileUploader
	now       func() time.Time
}

func NewExportService(output config.OutputConfig, store ListingStore) *ExportService {
	return &ExportService{
		output: output,
		store:  store,
		now:    time.Now,
	}
}

// SetWarehouse enables the Postgres sink.
func (s *ExportService) SetWarehouse(w Warehouse) {
	s.warehouse = w
}

// SetUploader enables uploading export files.
func (s *ExportService) SetUploader(u FileUploader) {
	s.uploader = u
}

// Export writes the run's records and returns the files produced. The
// returned error joins every sink failure.
func (s *ExportService) Export(ctx context.Context, run *models.ScrapeRun, records []models.ListingRecord) (*ExportResult, error) {
	result := &ExportResult{Summary: Summarize(records)}
	var errs []error

	if s.store != nil {
		if err := s.store.InsertListings(run.ID, records); err != nil {
			errs = append(errs, fmt.Errorf("sqlite: %w", err))
		}
	}

	if s.warehouse != nil {
		if err := s.warehouse.SaveRun(ctx, run); err != nil {
			errs = append(errs, fmt.Errorf("postgres run: %w", err))
		} else if err := s.warehouse.WriteBatch(ctx, run, records); err != nil {
			errs = append(errs, fmt.Errorf("postgres listings: %w", err))
		}
	}

	if len(records) == 0 {
		log.Printf("[warn] export: no records collected, skipping file exports")
		return result, errors.Join(errs...)
	}

	stamp := s.now().Format("20060102_150405")
	if s.output.CSV {
		path := filepath.Join(s.output.Dir, fmt.Sprintf("%s_%s.csv", filePrefix, stamp))
		if err := storage.NewCSVWriter(path).Write(records); err != nil {
			errs = append(errs, fmt.Errorf("csv: %w", err))
		} else {
			result.Files = append(result.Files, path)
		}
	}
	if s.output.XLSX {
		path := filepath.Join(s.output.Dir, fmt.Sprintf("%s_%s.xlsx", filePrefix, stamp))
		if err := storage.NewXLSXWriter(path).Write(records, result.Summary); err != nil {
			errs = append(errs, fmt.Errorf("xlsx: %w", err))
		} else {
			result.Files = append(result.Files, path)
		}
	}

	if s.uploader != nil {
		for _, path := range result.Files {
			key, err := s.uploader.UploadFile(ctx, run.ID.String(), path)
			if err != nil {
				errs = append(errs, fmt.Errorf("upload %s: %w", filepath.Base(path), err))
				continue
			}
			result.Uploaded = append(result.Uploaded, key)
		}
	}

	return result, errors.Join(errs...)
}

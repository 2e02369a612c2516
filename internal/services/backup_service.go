package services

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/s-hosono/stamprally/internal/models"
	"github.com/s-hosono/stamprally/internal/store"
)

const backupPrefix = "stamprally_"

// BackupServiceProvider defines the interface for backup services.
type BackupServiceProvider interface {
	CreateBackup(ctx context.Context) (models.Backup, error)
	ListBackups() ([]models.Backup, error)
}

// BackupService snapshots data collections into zip archives.
type BackupService struct {
	store        *store.Store
	collections  []string
	eventService EventServiceProvider
	backupPath   string
	retain       int
	now          func() time.Time
}

// NewBackupService creates a new BackupService. A non-positive retain keeps
// every archive.
func NewBackupService(s *store.Store, collections []string, eventService EventServiceProvider, backupPath string, retain int) *BackupService {
	return &BackupService{
		store:        s,
		collections:  collections,
		eventService: eventService,
		backupPath:   backupPath,
		retain:       retain,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// CreateBackup writes every collection into a new archive. Each collection is
// read under its own lock, so the archive is consistent per collection but
// not across collections.
func (s *BackupService) CreateBackup(ctx context.Context) (models.Backup, error) {
	if err := os.MkdirAll(s.backupPath, 0o755); err != nil {
		return models.Backup{}, fmt.Errorf("could not create backup directory: %w", err)
	}

	createdAt := s.now()
	name := backupPrefix + createdAt.Format("20060102-150405.000")
	backup := models.Backup{
		ID:        name,
		Name:      name + ".zip",
		Path:      filepath.Join(s.backupPath, name+".zip"),
		CreatedAt: createdAt,
	}

	if err := s.writeArchive(ctx, backup.Path); err != nil {
		os.Remove(backup.Path) // Clean up partial file
		return models.Backup{}, err
	}

	fi, err := os.Stat(backup.Path)
	if err != nil {
		return models.Backup{}, fmt.Errorf("could not get backup file info: %w", err)
	}
	backup.Size = fi.Size()

	s.prune()

	if s.eventService != nil {
		msg := fmt.Sprintf("Backup '%s' created.", backup.Name)
		if err := s.eventService.CreateEvent(ctx, "backup.create", "info", msg, nil); err != nil {
			log.Warn().Err(err).Msg("Failed to record backup event")
		}
	}
	return backup, nil
}

func (s *BackupService) writeArchive(ctx context.Context, path string) error {
	backupFile, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create backup file: %w", err)
	}
	defer backupFile.Close()

	zipWriter := zip.NewWriter(backupFile)
	for _, collection := range s.collections {
		var raw json.RawMessage
		if err := s.store.Read(ctx, collection, &raw); err != nil {
			zipWriter.Close()
			return fmt.Errorf("read %s: %w", collection, err)
		}
		if raw == nil {
			continue
		}
		w, err := zipWriter.Create(collection)
		if err != nil {
			zipWriter.Close()
			return err
		}
		if _, err := w.Write(raw); err != nil {
			zipWriter.Close()
			return err
		}
	}
	if err := zipWriter.Close(); err != nil {
		return fmt.Errorf("failed to finish archive: %w", err)
	}
	return backupFile.Sync()
}

// ListBackups returns the archives in the backup directory, newest first.
func (s *BackupService) ListBackups() ([]models.Backup, error) {
	entries, err := os.ReadDir(s.backupPath)
	if err != nil {
		if os.IsNotExist(err) {
			return []models.Backup{}, nil
		}
		return nil, err
	}

	backups := []models.Backup{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), backupPrefix) || filepath.Ext(e.Name()) != ".zip" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		backups = append(backups, models.Backup{
			ID:        strings.TrimSuffix(e.Name(), ".zip"),
			Name:      e.Name(),
			Path:      filepath.Join(s.backupPath, e.Name()),
			Size:      info.Size(),
			CreatedAt: info.ModTime().UTC(),
		})
	}
	sort.Slice(backups, func(i, j int) bool { return backups[i].Name > backups[j].Name })
	return backups, nil
}

func (s *BackupService) prune() {
	if s.retain <= 0 {
		return
	}
	backups, err := s.ListBackups()
	if err != nil {
		log.Warn().Err(err).Msg("Could not list backups for pruning")
		return
	}
	for _, b := range backups[min(s.retain, len(backups)):] {
		if err := os.Remove(b.Path); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("backup", b.Name).Msg("Could not delete old backup")
		}
	}
}

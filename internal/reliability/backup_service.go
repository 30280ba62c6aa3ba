// Package reliability manages cloud backups of the durable store to
// S3-compatible storage (Cloudflare R2, AWS S3).
package reliability

import (
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/peterbitar/wealthyrabbit/internal/config"
	"github.com/peterbitar/wealthyrabbit/internal/database"
)

// BackupService snapshots the store, gzips it and uploads it with retention
// pruning.
type BackupService struct {
	client    *s3.Client
	bucket    string
	retention time.Duration
	db        *database.DB
	dataDir   string
	log       zerolog.Logger
}

// BackupInfo describes one stored backup.
type BackupInfo struct {
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
}

// NewBackupService creates the backup service, or returns nil when backups
// are not configured.
func NewBackupService(cfg *config.BackupConfig, db *database.DB, dataDir string, log zerolog.Logger) (*BackupService, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 credentials: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &BackupService{
		client:    client,
		bucket:    cfg.Bucket,
		retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		db:        db,
		dataDir:   dataDir,
		log:       log.With().Str("service", "backup").Logger(),
	}, nil
}

// Name implements the scheduler Job interface.
func (s *BackupService) Name() string { return "backup" }

// Run creates and uploads one backup, then prunes aged ones.
func (s *BackupService) Run(ctx context.Context) error {
	if err := s.CreateAndUploadBackup(ctx); err != nil {
		return err
	}
	if err := s.PruneOldBackups(ctx); err != nil {
		s.log.Error().Err(err).Msg("Backup retention pruning failed")
	}
	return nil
}

// CreateAndUploadBackup snapshots the store via VACUUM INTO (a consistent
// copy even with writers active under WAL), gzips it and uploads it.
func (s *BackupService) CreateAndUploadBackup(ctx context.Context) error {
	s.log.Info().Msg("Starting store backup")
	start := time.Now()

	stagingDir := filepath.Join(s.dataDir, "backup-staging")
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	snapshotPath := filepath.Join(stagingDir, "monitor.db")
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", snapshotPath); err != nil {
		return fmt.Errorf("failed to snapshot store: %w", err)
	}

	archivePath := snapshotPath + ".gz"
	checksum, err := gzipFile(snapshotPath, archivePath)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("backups/monitor-%s.db.gz", time.Now().UTC().Format("20060102-150405"))

	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open backup archive: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat backup archive: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		Metadata: map[string]string{
			"checksum": checksum,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload backup %s: %w", key, err)
	}

	s.log.Info().
		Str("key", key).
		Int64("size_bytes", info.Size()).
		Dur("elapsed", time.Since(start)).
		Msg("Backup uploaded")

	return nil
}

// ListBackups returns stored backups, newest first.
func (s *BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	resp, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String("backups/"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	var out []BackupInfo
	for _, obj := range resp.Contents {
		if obj.Key == nil {
			continue
		}
		info := BackupInfo{Key: *obj.Key}
		if obj.LastModified != nil {
			info.Timestamp = *obj.LastModified
		}
		if obj.Size != nil {
			info.SizeBytes = *obj.Size
		}
		out = append(out, info)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

// PruneOldBackups deletes backups older than the retention window, always
// keeping the newest one regardless of age.
func (s *BackupService) PruneOldBackups(ctx context.Context) error {
	backups, err := s.ListBackups(ctx)
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-s.retention)
	for i, b := range backups {
		if i == 0 || b.Timestamp.After(cutoff) {
			continue
		}
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(b.Key),
		})
		if err != nil {
			s.log.Error().Err(err).Str("key", b.Key).Msg("Failed to delete aged backup")
			continue
		}
		s.log.Info().Str("key", b.Key).Msg("Deleted aged backup")
	}

	return nil
}

// gzipFile compresses src into dst and returns the source's sha256 hex.
func gzipFile(src, dst string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	hash := sha256.New()

	if _, err := io.Copy(io.MultiWriter(gz, hash), in); err != nil {
		return "", fmt.Errorf("failed to compress snapshot: %w", err)
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize archive: %w", err)
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

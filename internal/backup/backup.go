// Package backup snapshots the SQLite database, encrypts the copy, and
// uploads it to S3-compatible object storage.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// Service produces encrypted database snapshots. Zero retention keeps
// everything.
type Service struct {
	db            *sql.DB
	dbPath        string
	passphrase    string
	bucket        string
	prefix        string
	retentionDays int
	client        s3Client
	logger        *slog.Logger
}

func New(db *sql.DB, dbPath string, cfg S3Config, passphrase string, retentionDays int, logger *slog.Logger) *Service {
	return &Service{
		db:            db,
		dbPath:        dbPath,
		passphrase:    passphrase,
		bucket:        cfg.Bucket,
		prefix:        "choretab/",
		retentionDays: retentionDays,
		client:        newS3Client(cfg),
		logger:        logger,
	}
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Backup snapshots, encrypts, and uploads the database, then prunes
// snapshots past retention.
func (s *Service) Backup(ctx context.Context) error {
	snapshot := filepath.Join(os.TempDir(), fmt.Sprintf("choretab-backup-%d.db", time.Now().UnixNano()))
	defer os.Remove(snapshot)

	// VACUUM INTO writes a consistent copy without blocking writers the
	// way a wal_checkpoint plus file copy would.
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", snapshot); err != nil {
		return fmt.Errorf("snapshot database: %w", err)
	}

	plaintext, err := os.ReadFile(snapshot)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	encrypted, err := Encrypt(plaintext, s.passphrase)
	if err != nil {
		return fmt.Errorf("encrypt snapshot: %w", err)
	}

	key := fmt.Sprintf("%sbackup-%s.db.enc", s.prefix, time.Now().UTC().Format("2006-01-02T150405Z"))
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(encrypted),
		ContentLength: aws.Int64(int64(len(encrypted))),
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	s.logger.Info("backup uploaded", "key", key, "size", len(encrypted))

	if s.retentionDays > 0 {
		if err := s.prune(ctx); err != nil {
			s.logger.Error("backup prune", "error", err)
		}
	}
	return nil
}

// prune deletes uploaded snapshots older than the retention period,
// using the timestamp embedded in the object key.
func (s *Service) prune(ctx context.Context) error {
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	if err != nil {
		return fmt.Errorf("list backups: %w", err)
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -s.retentionDays)
	for _, obj := range out.Contents {
		key := aws.ToString(obj.Key)
		ts, ok := parseBackupKey(key, s.prefix)
		if !ok || !ts.Before(cutoff) {
			continue
		}
		if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		}); err != nil {
			s.logger.Error("delete old backup", "key", key, "error", err)
		}
	}
	return nil
}

func parseBackupKey(key, prefix string) (time.Time, bool) {
	const layout = "2006-01-02T150405Z"
	rest, found := strings.CutPrefix(key, prefix+"backup-")
	if !found {
		return time.Time{}, false
	}
	rest, found = strings.CutSuffix(rest, ".db.enc")
	if !found {
		return time.Time{}, false
	}
	ts, err := time.Parse(layout, rest)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

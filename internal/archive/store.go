package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/wolfman30/callcrm-ai-platform/pkg/logging"
)

// ErrNotFound is returned by Load when no payload is archived under the event id.
var ErrNotFound = errors.New("archive: payload not found")

// S3API is the subset of the S3 client used by Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// ManifestEntry is one JSONL line in the daily manifest.
type ManifestEntry struct {
	EventID    string `json:"event_id"`
	S3Key      string `json:"s3_key"`
	Bytes      int    `json:"bytes"`
	ArchivedAt string `json:"archived_at"`
}

// Store archives raw webhook payloads to S3 for forensic replay.
type Store struct {
	bucket   string
	s3Client S3API
	logger   *logging.Logger
}

// NewStore creates an archive Store. If bucket is empty, all operations are no-ops.
func NewStore(s3Client S3API, bucket string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{bucket: bucket, s3Client: s3Client, logger: logger}
}

// Enabled returns true if archival is configured.
func (s *Store) Enabled() bool {
	return s != nil && s.bucket != "" && s.s3Client != nil
}

// Key is the object key for an event received at receivedAt.
func Key(eventID string, receivedAt time.Time) string {
	t := receivedAt.UTC()
	return fmt.Sprintf("webhooks/v1/by-date/%d/%02d/%02d/%s.json", t.Year(), t.Month(), t.Day(), safeID(eventID))
}

func manifestKey(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("webhooks/v1/manifests/%d-%02d-%02d.jsonl", t.Year(), t.Month(), t.Day())
}

// Archive writes the raw body and appends a manifest line. Manifest failures are logged only.
func (s *Store) Archive(ctx context.Context, eventID string, receivedAt time.Time, body []byte) error {
	if !s.Enabled() {
		return nil
	}
	if strings.TrimSpace(eventID) == "" {
		return errors.New("archive: event id required")
	}
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}

	key := Key(eventID, receivedAt)
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put %s: %w", key, err)
	}
	s.logger.Debug("archived webhook payload", "event_id", eventID, "s3_key", key, "bytes", len(body))

	entry := ManifestEntry{
		EventID:    eventID,
		S3Key:      key,
		Bytes:      len(body),
		ArchivedAt: receivedAt.UTC().Format(time.RFC3339),
	}
	if err := s.appendManifest(ctx, receivedAt, entry); err != nil {
		s.logger.Warn("failed to append manifest", "error", err, "event_id", eventID)
	}
	return nil
}

// Load returns the archived body for an event received on the given day.
func (s *Store) Load(ctx context.Context, eventID string, receivedAt time.Time) ([]byte, error) {
	if !s.Enabled() {
		return nil, ErrNotFound
	}
	key := Key(eventID, receivedAt)
	out, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("archive: s3 get %s: %w", key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("archive: read %s: %w", key, err)
	}
	return data, nil
}

// Manifest lists entries archived on the given day.
func (s *Store) Manifest(ctx context.Context, day time.Time) ([]ManifestEntry, error) {
	if !s.Enabled() {
		return nil, nil
	}
	raw, err := s.readObject(ctx, manifestKey(day))
	if err != nil {
		return nil, err
	}
	var entries []ManifestEntry
	for _, line := range bytes.Split(raw, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var e ManifestEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("archive: decode manifest line: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// appendManifest does a read-modify-write; S3 has no append.
func (s *Store) appendManifest(ctx context.Context, day time.Time, entry ManifestEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("archive: marshal manifest entry: %w", err)
	}

	key := manifestKey(day)
	existing, err := s.readObject(ctx, key)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if len(existing) > 0 {
		buf.Write(existing)
		if existing[len(existing)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	buf.Write(line)
	buf.WriteByte('\n')

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put manifest: %w", err)
	}
	return nil
}

// readObject returns nil, nil when the key does not exist.
func (s *Store) readObject(ctx context.Context, key string) ([]byte, error) {
	out, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("archive: s3 get %s: %w", key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *s3types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "NoSuchKey") || strings.Contains(msg, "StatusCode: 404")
}

func safeID(id string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ' ':
			return '_'
		}
		return r
	}, strings.TrimSpace(id))
}

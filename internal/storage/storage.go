package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const DefaultVoiceURLTTL = 6 * time.Hour

// Storage is the blob store holding voice-over audio.
type Storage struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	urlTTL    time.Duration
}

type Config struct {
	Endpoint       string
	PublicEndpoint string // Used for presigned URLs; falls back to Endpoint if empty
	Bucket         string
	AccessKey      string
	SecretKey      string
	Region         string
	VoiceURLTTL    time.Duration
}

func New(ctx context.Context, cfg Config) (*Storage, error) {
	if cfg.Region == "" {
		cfg.Region = "eu-central-1"
	}
	if cfg.VoiceURLTTL <= 0 {
		cfg.VoiceURLTTL = DefaultVoiceURLTTL
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})

	presignEndpoint := cfg.Endpoint
	if cfg.PublicEndpoint != "" {
		presignEndpoint = cfg.PublicEndpoint
	}
	presignClient := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(presignEndpoint)
		o.UsePathStyle = true
	})

	return &Storage{
		client:    client,
		presigner: s3.NewPresignClient(presignClient),
		bucket:    cfg.Bucket,
		urlTTL:    cfg.VoiceURLTTL,
	}, nil
}

// Resolve turns a stored voice path into a time-limited playable URL. An
// empty path means the line has no audio and resolves to "".
func (s *Storage) Resolve(ctx context.Context, voicePath string) (string, error) {
	key := strings.TrimPrefix(strings.TrimSpace(voicePath), "/")
	if key == "" {
		return "", nil
	}
	return s.GenerateDownloadURL(ctx, key, s.urlTTL)
}

func (s *Storage) GenerateDownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if s == nil {
		return "", fmt.Errorf("storage not initialized")
	}
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("presign download: %w", err)
	}

	return req.URL, nil
}

func (s *Storage) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return nil
	}

	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}

	return nil
}

func (s *Storage) UploadFile(ctx context.Context, key string, filePath string, contentType string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open file %s: %w", filePath, err)
	}
	defer func() { _ = f.Close() }()

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("upload file %s: %w", key, err)
	}
	return nil
}

// VoiceContentType maps an audio file extension to its MIME type.
func VoiceContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return "audio/mpeg"
	case ".m4a", ".aac":
		return "audio/mp4"
	case ".ogg", ".oga":
		return "audio/ogg"
	case ".wav":
		return "audio/wav"
	case ".webm":
		return "audio/webm"
	default:
		return "application/octet-stream"
	}
}

package extras

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"archiver-go/internal/config"
)

// Fetcher downloads the object at rawURL to the local file dst.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL, dst string) error
}

// HTTPDoer describes the HTTP client used by HTTPFetcher.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPFetcher downloads http and https URLs.
type HTTPFetcher struct {
	client HTTPDoer
}

// NewHTTPFetcher creates an HTTPFetcher. A nil client means http.DefaultClient.
func NewHTTPFetcher(client HTTPDoer) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{client: client}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", rawURL, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("download %s returned %d", rawURL, resp.StatusCode)
	}

	return writeAtomic(dst, func(w *os.File) error {
		_, err := io.Copy(w, resp.Body)
		return err
	})
}

// S3Downloader is the part of the S3 transfer manager S3Fetcher uses.
type S3Downloader interface {
	Download(ctx context.Context, w io.WriterAt, input *s3.GetObjectInput, options ...func(*manager.Downloader)) (int64, error)
}

// S3Fetcher downloads s3://bucket/key URLs.
type S3Fetcher struct {
	downloader S3Downloader
}

// NewS3Fetcher creates an S3Fetcher around an existing downloader.
func NewS3Fetcher(downloader S3Downloader) *S3Fetcher {
	return &S3Fetcher{downloader: downloader}
}

// NewS3FetcherFromConfig builds an S3 client from cfg. Static credentials
// are used when both key fields are set, otherwise the default AWS chain.
// A custom endpoint switches to path-style addressing.
func NewS3FetcherFromConfig(ctx context.Context, cfg config.S3Config) (*S3Fetcher, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3Fetcher(manager.NewDownloader(client)), nil
}

func (f *S3Fetcher) Fetch(ctx context.Context, rawURL, dst string) error {
	bucket, key, err := parseS3URL(rawURL)
	if err != nil {
		return err
	}

	return writeAtomic(dst, func(w *os.File) error {
		_, err := f.downloader.Download(ctx, w, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return fmt.Errorf("download %s: %w", rawURL, err)
		}
		return nil
	})
}

func parseS3URL(rawURL string) (bucket, key string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("parsing %s: %w", rawURL, err)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Scheme != "s3" || u.Host == "" || key == "" {
		return "", "", fmt.Errorf("invalid s3 url %q: want s3://bucket/key", rawURL)
	}
	return u.Host, key, nil
}

// writeAtomic fills a temp file beside dst with write and renames it into
// place, so a failed download never leaves a partial archive behind.
func writeAtomic(dst string, write func(*os.File) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".download-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("renaming download into place: %w", err)
	}
	success = true
	return nil
}

var (
	_ Fetcher = (*HTTPFetcher)(nil)
	_ Fetcher = (*S3Fetcher)(nil)
)

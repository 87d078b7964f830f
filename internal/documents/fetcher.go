package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/gabriel-vasile/mimetype"
)

// ErrFetch wraps every failure to download a document
var ErrFetch = errors.New("document fetch failed")

// Document is a downloaded attachment
type Document struct {
	Data     []byte
	MimeType string
}

// ObjectGetter is the slice of the S3 API the fetcher needs
type ObjectGetter interface {
	GetObjectWithContext(ctx aws.Context, input *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error)
}

// Fetcher downloads documents from http(s) URLs and, when an S3 client is
// configured, from s3://bucket/key URLs
type Fetcher struct {
	httpClient *http.Client
	s3         ObjectGetter
	maxBytes   int64
}

// NewFetcher creates a fetcher. s3Client may be nil. maxBytes bounds a
// single download; anything larger is rejected rather than truncated.
func NewFetcher(timeout time.Duration, maxBytes int64, s3Client ObjectGetter) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		s3:         s3Client,
		maxBytes:   maxBytes,
	}
}

// Fetch downloads the document at rawURL
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Document, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid url: %w", ErrFetch, err)
	}

	switch u.Scheme {
	case "http", "https":
		return f.fetchHTTP(ctx, u.String())
	case "s3":
		return f.fetchS3(ctx, u)
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrFetch, u.Scheme)
	}
}

func (f *Fetcher) fetchHTTP(ctx context.Context, target string) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %d", ErrFetch, target, resp.StatusCode)
	}

	data, err := f.readAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Document{Data: data, MimeType: detect(data, resp.Header.Get("Content-Type"))}, nil
}

func (f *Fetcher) fetchS3(ctx context.Context, u *url.URL) (*Document, error) {
	if f.s3 == nil {
		return nil, fmt.Errorf("%w: s3 source %s but no S3 client configured", ErrFetch, u.String())
	}

	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return nil, fmt.Errorf("%w: s3 url needs bucket and key", ErrFetch)
	}

	out, err := f.s3.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.Host),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer out.Body.Close()

	data, err := f.readAll(out.Body)
	if err != nil {
		return nil, err
	}
	return &Document{Data: data, MimeType: detect(data, aws.StringValue(out.ContentType))}, nil
}

func (f *Fetcher) readAll(r io.Reader) ([]byte, error) {
	if f.maxBytes <= 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFetch, err)
		}
		return data, nil
	}

	data, err := io.ReadAll(io.LimitReader(r, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("%w: document larger than %d bytes", ErrFetch, f.maxBytes)
	}
	return data, nil
}

// detect sniffs the content. A generic sniff result defers to the declared
// header; with neither, portal uploads are assumed to be PDFs.
func detect(data []byte, declared string) string {
	sniffed := ""
	if len(data) > 0 {
		sniffed = baseType(mimetype.Detect(data).String())
	}
	if sniffed != "" && sniffed != "application/octet-stream" && sniffed != "text/plain" {
		return sniffed
	}
	if declared != "" {
		return baseType(declared)
	}
	if sniffed == "text/plain" {
		return sniffed
	}
	return "application/pdf"
}

func baseType(v string) string {
	mt, _, err := mime.ParseMediaType(v)
	if err != nil {
		return v
	}
	return mt
}

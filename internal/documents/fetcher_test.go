package documents

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pdfBytes = []byte("%PDF-1.4\n%âãÏÓ\n1 0 obj\n<<>>\nendobj\n")

func TestFetch_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/contract.pdf":
			w.Header().Set("Content-Type", "application/octet-stream")
			w.Write(pdfBytes)
		case "/note":
			w.Header().Set("Content-Type", "image/png; charset=binary")
			w.Write([]byte{})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewFetcher(5*time.Second, 1<<20, nil)

	doc, err := f.Fetch(context.Background(), srv.URL+"/contract.pdf")
	require.NoError(t, err)
	assert.Equal(t, pdfBytes, doc.Data)
	assert.Equal(t, "application/pdf", doc.MimeType)

	doc, err = f.Fetch(context.Background(), srv.URL+"/note")
	require.NoError(t, err)
	assert.Equal(t, "image/png", doc.MimeType)

	_, err = f.Fetch(context.Background(), srv.URL+"/missing.pdf")
	assert.ErrorIs(t, err, ErrFetch)
}

func TestFetch_TooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	f := NewFetcher(5*time.Second, 16, nil)
	_, err := f.Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrFetch)
}

func TestFetch_UnsupportedScheme(t *testing.T) {
	f := NewFetcher(time.Second, 0, nil)

	_, err := f.Fetch(context.Background(), "ftp://files.example.com/a.pdf")
	assert.ErrorIs(t, err, ErrFetch)

	_, err = f.Fetch(context.Background(), "s3://bucket/a.pdf")
	assert.ErrorIs(t, err, ErrFetch)
}

type fakeS3 struct {
	bucket, key string
	err         error
}

func (f *fakeS3) GetObjectWithContext(ctx aws.Context, input *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error) {
	f.bucket = aws.StringValue(input.Bucket)
	f.key = aws.StringValue(input.Key)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.GetObjectOutput{
		Body:        io.NopCloser(strings.NewReader(string(pdfBytes))),
		ContentType: aws.String("application/pdf"),
	}, nil
}

func TestFetch_S3(t *testing.T) {
	store := &fakeS3{}
	f := NewFetcher(time.Second, 0, store)

	doc, err := f.Fetch(context.Background(), "s3://fleet-docs/contracts/c-17.pdf")
	require.NoError(t, err)
	assert.Equal(t, "fleet-docs", store.bucket)
	assert.Equal(t, "contracts/c-17.pdf", store.key)
	assert.Equal(t, "application/pdf", doc.MimeType)

	store.err = errors.New("AccessDenied")
	_, err = f.Fetch(context.Background(), "s3://fleet-docs/contracts/c-17.pdf")
	assert.ErrorIs(t, err, ErrFetch)

	_, err = f.Fetch(context.Background(), "s3://fleet-docs/")
	assert.ErrorIs(t, err, ErrFetch)
}

package archive

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakePutObject struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutObject) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	if params.Body != nil {
		f.body, _ = io.ReadAll(params.Body)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestObjectKey(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	tests := []struct {
		name   string
		prefix string
		want   string
	}{
		{name: "no prefix", prefix: "", want: "2026/03/14/20260314T092653Z-run-1.json"},
		{name: "prefix", prefix: "waf-audit", want: "waf-audit/2026/03/14/20260314T092653Z-run-1.json"},
		{name: "slashes trimmed", prefix: "/waf-audit/", want: "waf-audit/2026/03/14/20260314T092653Z-run-1.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ObjectKey(tt.prefix, at, "run-1"); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestUpload(t *testing.T) {
	fake := &fakePutObject{}
	a := &S3Archive{cfg: Config{Bucket: "reports", Prefix: "akamai"}, client: fake}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	key, err := a.Upload(context.Background(), at, "abc", []byte(`{"rows":[]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "akamai/2026/01/02/20260102T030405Z-abc.json" {
		t.Fatalf("unexpected key %q", key)
	}
	if *fake.input.Bucket != "reports" {
		t.Fatalf("expected bucket reports, got %s", *fake.input.Bucket)
	}
	if *fake.input.ContentType != "application/json" {
		t.Fatalf("expected JSON content type, got %s", *fake.input.ContentType)
	}
	if string(fake.body) != `{"rows":[]}` {
		t.Fatalf("unexpected body %q", fake.body)
	}
}

func TestUploadError(t *testing.T) {
	fake := &fakePutObject{err: errors.New("access denied")}
	a := &S3Archive{cfg: Config{Bucket: "reports"}, client: fake}

	if _, err := a.Upload(context.Background(), time.Now(), "abc", nil); err == nil {
		t.Fatalf("expected upload error")
	}
}

func TestConfigEnabled(t *testing.T) {
	if (Config{}).Enabled() {
		t.Fatalf("expected empty config to be disabled")
	}
	if !(Config{Bucket: "b"}).Enabled() {
		t.Fatalf("expected bucket to enable archive")
	}
}

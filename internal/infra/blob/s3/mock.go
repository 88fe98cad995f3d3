package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// NewMock returns a Store backed by an in-process fake of the S3 object API
// (HEAD, GET, PUT, DELETE and ListObjectsV2). It lets other packages exercise
// the real adapter without network access.
func NewMock() *Store {
	fake := &fakeBucket{objects: make(map[string]fakeObject)}
	store, err := New(context.Background(), Config{
		Region:          "us-east-1",
		Bucket:          "mock-bucket",
		Endpoint:        "https://mock.s3.local",
		AccessKeyID:     "AKIAMOCK",
		SecretAccessKey: "secret",
		PathStyle:       true,
		HTTPClient:      &http.Client{Transport: fake},
	})
	if err != nil {
		panic(fmt.Sprintf("s3 mock: %v", err))
	}
	return store
}

type fakeObject struct {
	body        []byte
	contentType string
	metadata    http.Header
}

type fakeBucket struct {
	mu      sync.Mutex
	objects map[string]fakeObject
}

func reply(status int, body []byte, header http.Header) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewReader(body)), Header: header, ContentLength: int64(len(body))}
}

func (f *fakeBucket) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, key, _ := strings.Cut(strings.TrimPrefix(req.URL.Path, "/"), "/")
	if req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2" {
		return f.list(req.URL.Query().Get("prefix")), nil
	}
	obj, exists := f.objects[key]
	switch req.Method {
	case http.MethodHead, http.MethodGet:
		if !exists {
			return reply(http.StatusNotFound, nil, nil), nil
		}
		header := obj.metadata.Clone()
		header.Set("Content-Type", obj.contentType)
		header.Set("Content-Length", strconv.Itoa(len(obj.body)))
		header.Set("ETag", `"mock-etag"`)
		header.Set("Last-Modified", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Format(http.TimeFormat))
		if req.Method == http.MethodHead {
			return reply(http.StatusOK, nil, header), nil
		}
		return reply(http.StatusOK, bytes.Clone(obj.body), header), nil
	case http.MethodPut:
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		if decoded, ok := decodeSingleChunk(body); ok {
			body = decoded
		}
		meta := http.Header{}
		for name, values := range req.Header {
			if strings.HasPrefix(strings.ToLower(name), "x-amz-meta-") {
				meta[name] = values
			}
		}
		f.objects[key] = fakeObject{body: body, contentType: req.Header.Get("Content-Type"), metadata: meta}
		return reply(http.StatusOK, nil, http.Header{"Etag": {`"mock-etag"`}}), nil
	case http.MethodDelete:
		delete(f.objects, key)
		return reply(http.StatusNoContent, nil, nil), nil
	}
	return reply(http.StatusNotImplemented, nil, nil), nil
}

func (f *fakeBucket) list(prefix string) *http.Response {
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><ListBucketResult><IsTruncated>false</IsTruncated>`)
	for _, k := range keys {
		fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>2024-01-01T00:00:00Z</LastModified></Contents>", k, len(f.objects[k].body))
	}
	b.WriteString("</ListBucketResult>")
	return reply(http.StatusOK, []byte(b.String()), http.Header{"Content-Type": {"application/xml"}})
}

// decodeSingleChunk unwraps an aws-chunked body holding one data chunk:
// <hex size>\r\n<data>\r\n0\r\n...
func decodeSingleChunk(b []byte) ([]byte, bool) {
	parts := strings.Split(string(b), "\r\n")
	if len(parts) < 3 || parts[2] != "0" {
		return nil, false
	}
	sizeField, _, _ := strings.Cut(parts[0], ";")
	size, err := strconv.ParseInt(sizeField, 16, 64)
	if err != nil || int64(len(parts[1])) != size {
		return nil, false
	}
	return []byte(parts[1]), true
}

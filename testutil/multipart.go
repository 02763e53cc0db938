package testutil

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

// File is one file part of a multipart form
type File struct {
	Field    string
	Filename string
	Content  []byte
}

// MultipartBody encodes fields and files and returns the body and its content type
func MultipartBody(t *testing.T, fields map[string]string, files ...File) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	for _, f := range files {
		part, err := writer.CreateFormFile(f.Field, f.Filename)
		require.NoError(t, err)
		_, err = part.Write(f.Content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

// MultipartRequest builds a request carrying a multipart form
func MultipartRequest(t *testing.T, method, target string, fields map[string]string, files ...File) *http.Request {
	t.Helper()

	body, contentType := MultipartBody(t, fields, files...)
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", contentType)
	return req
}

// FileHeader returns a parsed upload, as a handler would see it
func FileHeader(t *testing.T, field, filename string, content []byte) *multipart.FileHeader {
	t.Helper()

	req := MultipartRequest(t, http.MethodPost, "/", nil, File{Field: field, Filename: filename, Content: content})
	require.NoError(t, req.ParseMultipartForm(32<<20))
	headers := req.MultipartForm.File[field]
	require.Len(t, headers, 1)
	return headers[0]
}

// ReadAll drains and closes r
func ReadAll(t *testing.T, r io.ReadCloser) []byte {
	t.Helper()
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return data
}

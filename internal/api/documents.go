package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
)

// UploadDocument validates the file locally, then uploads it to the thread
// for indexing.
func (c *Client) UploadDocument(ctx context.Context, threadID int64, path string) (*Document, error) {
	if _, err := ValidateDocument(path, c.maxUpload); err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := writer.WriteField("thread_id", strconv.FormatInt(threadID, 10)); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	var doc Document
	if err := c.do(ctx, http.MethodPost, c.endpoint(uploadPath, nil), &body, writer.FormDataContentType(), &doc); err != nil {
		return nil, err
	}
	c.log.Info("Uploaded ", doc.Filename, " to thread ", threadID)
	return &doc, nil
}

// ListDocuments returns the documents attached to a thread, newest first.
func (c *Client) ListDocuments(ctx context.Context, threadID int64) ([]Document, error) {
	query := url.Values{"thread_id": {strconv.FormatInt(threadID, 10)}}
	var docs []Document
	if err := c.doJSON(ctx, http.MethodGet, c.endpoint(documentsPath, query), nil, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *Client) DeleteDocument(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, c.endpoint(documentsPath+strconv.FormatInt(id, 10), nil), nil, nil)
}

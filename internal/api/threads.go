package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"
)

const maxTitleLength = 255

var ErrInvalidTitle = errors.New("thread title must be 1 to 255 characters")

type threadTitle struct {
	Title string `json:"title"`
}

func validTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" || utf8.RuneCountInString(title) > maxTitleLength {
		return "", ErrInvalidTitle
	}
	return title, nil
}

func threadPath(id int64) string {
	return threadsPath + strconv.FormatInt(id, 10)
}

// ListThreads returns all threads, most recently updated first.
func (c *Client) ListThreads(ctx context.Context) ([]Thread, error) {
	var threads []Thread
	if err := c.doJSON(ctx, http.MethodGet, c.endpoint(threadsPath, nil), nil, &threads); err != nil {
		return nil, err
	}
	return threads, nil
}

func (c *Client) CreateThread(ctx context.Context, title string) (*Thread, error) {
	title, err := validTitle(title)
	if err != nil {
		return nil, err
	}
	var thread Thread
	if err := c.doJSON(ctx, http.MethodPost, c.endpoint(threadsPath, nil), threadTitle{Title: title}, &thread); err != nil {
		return nil, err
	}
	c.log.Info("Created thread ", thread.ID, ": ", thread.Title)
	return &thread, nil
}

// GetThread returns the thread with its messages and documents.
func (c *Client) GetThread(ctx context.Context, id int64) (*Thread, error) {
	var thread Thread
	if err := c.doJSON(ctx, http.MethodGet, c.endpoint(threadPath(id), nil), nil, &thread); err != nil {
		return nil, err
	}
	return &thread, nil
}

func (c *Client) RenameThread(ctx context.Context, id int64, title string) (*Thread, error) {
	title, err := validTitle(title)
	if err != nil {
		return nil, err
	}
	var thread Thread
	if err := c.doJSON(ctx, http.MethodPatch, c.endpoint(threadPath(id), nil), threadTitle{Title: title}, &thread); err != nil {
		return nil, err
	}
	return &thread, nil
}

// DeleteThread removes the thread along with its messages and documents.
func (c *Client) DeleteThread(ctx context.Context, id int64) error {
	if err := c.doJSON(ctx, http.MethodDelete, c.endpoint(threadPath(id), nil), nil, nil); err != nil {
		return err
	}
	c.log.Info("Deleted thread ", id)
	return nil
}

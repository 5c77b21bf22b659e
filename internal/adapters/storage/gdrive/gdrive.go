// Package gdrive keeps rendered videos in a Google Drive folder.
package gdrive

import (
	"context"
	"errors"
	"io"
	"net/http"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	apperrors "clipforge/internal/pkg/errors"
	"clipforge/internal/ports"
)

const service = "gdrive"

// Client names each Drive file after its object key but addresses it by
// Drive file id afterwards.
type Client struct {
	files    *drive.FilesService
	about    *drive.AboutService
	folderID string
}

func NewClient(srv *drive.Service, folderID string) *Client {
	return &Client{files: srv.Files, about: srv.About, folderID: folderID}
}

func (c *Client) Provider() string { return service }

func (c *Client) Put(ctx context.Context, key, contentType string, r io.Reader) (ports.Object, error) {
	if key == "" {
		return ports.Object{}, apperrors.ValidationField("object_key", "object key is required")
	}
	meta := &drive.File{Name: key, MimeType: contentType}
	if c.folderID != "" {
		meta.Parents = []string{c.folderID}
	}

	var opts []googleapi.MediaOption
	if contentType != "" {
		opts = append(opts, googleapi.ContentType(contentType))
	}
	f, err := c.files.Create(meta).
		Media(r, opts...).
		Fields("id", "size", "mimeType").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return ports.Object{}, apperrors.Upstream(service, err)
	}
	return ports.Object{Key: f.Id, ContentType: f.MimeType, Size: f.Size}, nil
}

func (c *Client) Get(ctx context.Context, key string) (ports.Object, error) {
	resp, err := c.files.Get(key).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return ports.Object{}, translate(err, key)
	}
	return ports.Object{
		Key:         key,
		ContentType: resp.Header.Get("Content-Type"),
		Size:        resp.ContentLength,
		Body:        resp.Body,
	}, nil
}

func (c *Client) Delete(ctx context.Context, key string) error {
	err := c.files.Delete(key).SupportsAllDrives(true).Context(ctx).Do()
	if err = translate(err, key); apperrors.IsNotFound(err) {
		return nil
	}
	return err
}

// Ping asks Drive who the token belongs to, which fails fast on a revoked
// refresh token.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.about.Get().Fields("user").Context(ctx).Do()
	return translate(err, "")
}

func translate(err error, key string) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return apperrors.NotFound("object", key)
	}
	return apperrors.Upstream(service, err)
}

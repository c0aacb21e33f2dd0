package lode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/justapithecus/lode/lode"
)

// ErrInvalidFilename is returned by PutFile for names containing path
// separators or "..".
var ErrInvalidFilename = errors.New("invalid filename")

// PutFile writes a sidecar file, such as a raw capture, to the session's
// files/ prefix. Files bypass the dataset's segment and manifest
// machinery, so they never show up in record queries.
func (c *LodeClient) PutFile(ctx context.Context, filename, _ string, data []byte) error {
	if filename == "" || strings.ContainsAny(filename, `/\`) || strings.Contains(filename, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}
	store, err := c.getOrCreateStore()
	if err != nil {
		return WrapInitError(err, c.config.Dataset)
	}

	path := c.FilePath(filename)
	if err := store.Put(ctx, path, bytes.NewReader(data)); err != nil {
		return WrapWriteError(err, path)
	}
	return nil
}

func (c *LodeClient) getOrCreateStore() (lode.Store, error) {
	c.storeOnce.Do(func() {
		c.store, c.storeErr = c.storeFactory()
	})
	return c.store, c.storeErr
}

// FilePath computes the Hive-partitioned path for a sidecar file.
// Format: datasets/<dataset>/partitions/device=<d>/day=<day>/session_id=<s>/files/<filename>
func (c *LodeClient) FilePath(filename string) string {
	return fmt.Sprintf("datasets/%s/partitions/device=%s/day=%s/session_id=%s/files/%s",
		c.config.Dataset,
		c.config.Device,
		c.config.Day,
		c.config.SessionID,
		filename,
	)
}

package field

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/gridbot/gridbot/logging"
)

// WaitForHandshakeFile blocks until a complete handshake can be read from path. The file may not
// exist yet; every write to it is retried until one decodes.
func WaitForHandshakeFile(ctx context.Context, path string, logger logging.Logger) (*Handshake, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	//nolint:errcheck
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return nil, errors.Wrapf(err, "cannot watch for handshake file %q", path)
	}

	// it may have been written before the watch started
	if h, err := ReadHandshakeFile(path); err == nil {
		return h, nil
	}
	logger.Infow("waiting for handshake", "path", path)

	want := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil, errors.New("handshake watcher closed")
			}
			return nil, err
		case event, ok := <-watcher.Events:
			if !ok {
				return nil, errors.New("handshake watcher closed")
			}
			if filepath.Clean(event.Name) != want || event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			h, err := ReadHandshakeFile(path)
			if err != nil {
				logger.CDebugw(ctx, "handshake not complete yet", "error", err)
				continue
			}
			return h, nil
		}
	}
}

package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/geowatch/geo-events-bot/internal/models"
	"github.com/sirupsen/logrus"
)

const defaultReloadDelay = 500 * time.Millisecond

// RecipientsWatcher reloads the recipient seed file whenever it changes on
// disk. The directory is watched rather than the file so editors that save
// by rename are picked up too.
type RecipientsWatcher struct {
	path     string
	onChange func([]models.Recipient)
	delay    time.Duration
	watcher  *fsnotify.Watcher
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// WatchRecipients starts watching path. onChange receives every successfully
// parsed version; files that fail to parse are logged and ignored.
func WatchRecipients(path string, onChange func([]models.Recipient)) (*RecipientsWatcher, error) {
	return watchRecipients(path, onChange, defaultReloadDelay)
}

func watchRecipients(path string, onChange func([]models.Recipient), delay time.Duration) (*RecipientsWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	w := &RecipientsWatcher{
		path:     abs,
		onChange: onChange,
		delay:    delay,
		watcher:  watcher,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go w.run()

	logrus.Infof("Watching %s for recipient changes", abs)
	return w, nil
}

func (w *RecipientsWatcher) run() {
	defer close(w.doneCh)

	// rapid saves collapse into one reload
	timer := time.NewTimer(w.delay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				timer.Reset(w.delay)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logrus.Errorf("Recipients watcher error: %v", err)

		case <-timer.C:
			w.reload()
		}
	}
}

func (w *RecipientsWatcher) reload() {
	recipients, err := LoadRecipients(w.path)
	if err != nil {
		logrus.Warnf("Ignoring recipients file change: %v", err)
		return
	}
	logrus.Infof("Reloaded %d recipients from %s", len(recipients), w.path)
	w.onChange(recipients)
}

// Close stops the watcher and waits for the event loop to exit
func (w *RecipientsWatcher) Close() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopCh)
		<-w.doneCh
		err = w.watcher.Close()
	})
	return err
}

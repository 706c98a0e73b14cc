package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	defaultStorePath    = "heat.db"
	defaultPauseTime    = 0
	defaultPollInterval = time.Second
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads, decodes, and validates a configuration file. Unknown fields are
// rejected.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates configuration bytes.
func Parse(data []byte) (*File, error) {
	f := &File{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	f.applyDefaults()
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) applyDefaults() {
	if f.Version == "" {
		f.Version = "1"
	}
	if f.Store.Path == "" {
		f.Store.Path = defaultStorePath
	}
	for i := range f.Groups {
		g := &f.Groups[i]
		if g.Update.MaxBatchSize == 0 {
			g.Update.MaxBatchSize = 1
		}
		if g.Update.PollInterval == 0 {
			g.Update.PollInterval = Duration(defaultPollInterval)
		}
	}
}

// Validate checks structural constraints and group name uniqueness.
func (f *File) Validate() error {
	if err := validate.Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("invalid config: field %s fails %q", first.Namespace(), first.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	seen := make(map[string]bool)
	for _, g := range f.Groups {
		if seen[g.Name] {
			return fmt.Errorf("invalid config: group %s declared twice", g.Name)
		}
		seen[g.Name] = true

		members := make(map[string]bool)
		for _, m := range g.Members {
			if members[m.Name] {
				return fmt.Errorf("invalid config: member %s of group %s declared twice", m.Name, g.Name)
			}
			members[m.Name] = true
		}
	}
	return nil
}

// Watch reloads path whenever it changes and hands the parsed file to fn.
// Files that fail to parse are logged and skipped. Watch blocks until ctx is
// cancelled.
func Watch(ctx context.Context, path string, logger zerolog.Logger, fn func(*File)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors replace files, which drops a watch on
	// the file itself.
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			f, err := Load(abs)
			if err != nil {
				logger.Warn().Str("path", abs).Err(err).Msg("ignoring invalid config change")
				continue
			}
			logger.Info().Str("path", abs).Msg("config reloaded")
			fn(f)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("config watcher error")
		}
	}
}

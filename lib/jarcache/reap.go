// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package jarcache

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ReapReport summarizes one eviction pass.
type ReapReport struct {
	// Kept is the total size in bytes of surviving artifacts.
	Kept int64

	// Removed is the number of artifacts deleted.
	Removed int64

	// Freed is the total size in bytes of deleted artifacts.
	Freed int64
}

// Reap deletes least-recently-used artifacts under root until the
// surviving total is at or below budget bytes. "Recently used" is the
// file mtime, which caches opened with Touch refresh on every hit.
// Only files with the artifact suffix are considered; temporary files
// from in-progress fetches and foreign files are left alone.
//
// Reap is safe to run against a live shared cache: a concurrent
// Retrieve that loses its file mid-fetch simply re-fetches, and the
// atomic rename never exposes a partial artifact for Reap to delete.
func Reap(root string, budget int64, logger *slog.Logger) (ReapReport, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	type artifact struct {
		path    string
		size    int64
		modTime int64
	}
	var artifacts []artifact
	var total int64

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// A shard vanishing mid-walk is another reaper or a
			// cleanup racing us, not a failure.
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".jar") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		artifacts = append(artifacts, artifact{path: path, size: info.Size(), modTime: info.ModTime().UnixNano()})
		total += info.Size()
		return nil
	})
	if err != nil {
		return ReapReport{}, fmt.Errorf("scanning cache %s: %w", root, err)
	}

	// Oldest first.
	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].modTime < artifacts[j].modTime
	})

	report := ReapReport{Kept: total}
	for _, candidate := range artifacts {
		if report.Kept <= budget {
			break
		}
		if err := os.Remove(candidate.path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			logger.Warn("removing cached artifact failed", "path", candidate.path, "error", err)
			continue
		}
		report.Kept -= candidate.size
		report.Removed++
		report.Freed += candidate.size
		logger.Debug("evicted artifact", "path", candidate.path, "size", candidate.size)
	}
	return report, nil
}

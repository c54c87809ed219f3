// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package artifacts

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// CleanupReport summarizes one retention pass over agents/<agent>/<run>/.
type CleanupReport struct {
	ScannedAgents  int      `json:"scanned_agents"`
	ScannedRuns    int      `json:"scanned_runs"`
	DeletedRuns    int      `json:"deleted_runs"`
	ReclaimedBytes int64    `json:"reclaimed_bytes"`
	DeletedPaths   []string `json:"deleted_paths"`
}

// CleanupOptions tunes run-directory retention.
type CleanupOptions struct {
	RetentionDays      int
	KeepLatestPerAgent int
	DryRun             bool
}

// Cleanup removes run directories older than the retention window, always
// keeping the newest KeepLatestPerAgent runs per agent.
func Cleanup(artifactsRoot string, opts CleanupOptions) (*CleanupReport, error) {
	if opts.RetentionDays < 0 {
		return nil, fmt.Errorf("retention days must be >= 0")
	}
	if opts.KeepLatestPerAgent < 0 {
		return nil, fmt.Errorf("keep latest per agent must be >= 0")
	}

	report := &CleanupReport{DeletedPaths: []string{}}
	agentsRoot := filepath.Join(artifactsRoot, "agents")
	agentDirs, err := os.ReadDir(agentsRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return report, nil
		}
		return nil, fmt.Errorf("read agents root: %w", err)
	}

	cutoff := time.Now().UTC().Add(-time.Duration(opts.RetentionDays) * 24 * time.Hour)

	for _, agentEntry := range agentDirs {
		if !agentEntry.IsDir() {
			continue
		}
		report.ScannedAgents++

		agentDir := filepath.Join(agentsRoot, agentEntry.Name())
		runEntries, err := os.ReadDir(agentDir)
		if err != nil {
			return nil, fmt.Errorf("read agent dir %s: %w", agentDir, err)
		}

		type runDir struct {
			path    string
			modTime time.Time
		}
		var runs []runDir
		for _, runEntry := range runEntries {
			if !runEntry.IsDir() {
				continue
			}
			info, err := runEntry.Info()
			if err != nil {
				return nil, err
			}
			runs = append(runs, runDir{
				path:    filepath.Join(agentDir, runEntry.Name()),
				modTime: info.ModTime(),
			})
		}
		report.ScannedRuns += len(runs)

		sort.Slice(runs, func(i, j int) bool { return runs[i].modTime.After(runs[j].modTime) })
		protected := opts.KeepLatestPerAgent
		if protected > len(runs) {
			protected = len(runs)
		}

		for _, run := range runs[protected:] {
			if !run.modTime.Before(cutoff) {
				continue
			}
			size, err := directorySize(run.path)
			if err != nil {
				return nil, err
			}
			report.DeletedRuns++
			report.ReclaimedBytes += size
			report.DeletedPaths = append(report.DeletedPaths, run.path)
			if !opts.DryRun {
				if err := os.RemoveAll(run.path); err != nil {
					return nil, fmt.Errorf("remove run dir %s: %w", run.path, err)
				}
			}
		}
	}
	return report, nil
}

func directorySize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}

// CleanupScheduler runs Cleanup on a cron schedule.
type CleanupScheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
}

// NewCleanupScheduler registers a cleanup job under the given cron spec
// (standard five-field syntax).
func NewCleanupScheduler(artifactsRoot, schedule string, opts CleanupOptions, logger *zap.Logger) (*CleanupScheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		report, err := Cleanup(artifactsRoot, opts)
		if err != nil {
			logger.Error("artifact cleanup failed", zap.Error(err))
			return
		}
		logger.Info("artifact cleanup completed",
			zap.Int("scanned_agents", report.ScannedAgents),
			zap.Int("scanned_runs", report.ScannedRuns),
			zap.Int("deleted_runs", report.DeletedRuns),
			zap.Int64("reclaimed_bytes", report.ReclaimedBytes))
	})
	if err != nil {
		return nil, fmt.Errorf("register cleanup schedule %q: %w", schedule, err)
	}
	return &CleanupScheduler{cron: c, logger: logger}, nil
}

// Start begins scheduled execution.
func (s *CleanupScheduler) Start() { s.cron.Start() }

// Stop halts the scheduler and waits for a running job to finish.
func (s *CleanupScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

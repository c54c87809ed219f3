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
package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teradata-labs/jacquard/pkg/artifacts"
	"github.com/teradata-labs/jacquard/pkg/config"
)

var cleanupDryRun bool

var cleanupCmd = &cobra.Command{
	Use:   "cleanup-artifacts",
	Short: "Run one artifact retention pass",
	Long: `Delete run directories older than the configured retention window,
keeping the newest runs per agent. Prints a JSON report of what was
deleted (or would be, with --dry-run).`,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "report without deleting")
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	report, err := artifacts.Cleanup(cfg.ArtifactsDir, artifacts.CleanupOptions{
		RetentionDays:      cfg.ArtifactRetentionDays,
		KeepLatestPerAgent: cfg.ArtifactKeepLatest,
		DryRun:             cleanupDryRun,
	})
	if err != nil {
		return err
	}
	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(payload))
	return nil
}

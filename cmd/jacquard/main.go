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

// Command jacquard runs the agent workflow optimization service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "jacquard",
	Short: "Automated agent workflow optimization service",
	Long: `Jacquard synthesizes evaluation datasets, searches over agent workflow
blueprints, and serves versioned results over HTTP.

Configuration is read from jacquard.yaml in the working directory and
JACQUARD_* environment variables.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the jacquard version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

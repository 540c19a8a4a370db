// Copyright 2026 The etcd Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"github.com/spf13/cobra"

	"go.etcd.io/oplogapply/cmd/oplogapply/command"
)

const (
	cliName        = "oplogapply"
	cliDescription = "Partitions oplog batches across writer lanes and applies them."
)

var rootCmd = &cobra.Command{
	Use:           cliName,
	Short:         cliDescription,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	command.RegisterGlobalFlags(rootCmd)
	rootCmd.AddCommand(
		command.NewApplyCommand(),
		command.NewPartitionCommand(),
	)
}

func Start() error {
	// Make help just show the usage
	rootCmd.SetHelpTemplate(`{{.UsageString}}`)
	return rootCmd.Execute()
}

// Copyright 2020 Silvio Böhler
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cmd is the main command file for Cobra
package cmd

import (
	"fmt"
	"os"

	"github.com/sboehler/nexotax/cmd/completion"
	"github.com/sboehler/nexotax/cmd/report"
	"github.com/sboehler/nexotax/cmd/web"

	"github.com/spf13/cobra"
)

// RootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "nexotax",
	Short: "nexotax computes Finnish taxes on Nexo transactions",
	Long:  `nexotax computes capital income, capital gains and card cashback profitability from Nexo CSV exports according to Finnish tax rules.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprint(rootCmd.ErrOrStderr(), err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(report.CreateCmd())
	rootCmd.AddCommand(web.CreateCmd())
	rootCmd.AddCommand(completion.CreateCmd(rootCmd))
}

// Copyright 2021 Silvio Böhler
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

package web

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sboehler/nexotax/api"
	"github.com/sboehler/nexotax/lib/config"
)

// CreateCmd creates the command.
func CreateCmd() *cobra.Command {
	var cmd = cobra.Command{
		Use:   "web",
		Short: "start the nexotax HTTP API",
		Long:  `Start an HTTP server accepting report requests at POST /api/run.`,

		Args: cobra.NoArgs,

		Run: run,
	}
	cmd.Flags().Int16P("port", "p", 9001, "port")
	cmd.Flags().StringP("address", "a", "localhost", "listen address")
	cmd.Flags().StringP("config", "c", "", "YAML configuration file")
	return &cmd
}

func run(cmd *cobra.Command, args []string) {
	if err := execute(cmd, args); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
		os.Exit(1)
	}
}

func execute(cmd *cobra.Command, args []string) error {
	var (
		address, path string
		port          int16
		cfg           = config.Default()
		err           error
	)
	if port, err = cmd.Flags().GetInt16("port"); err != nil {
		return err
	}
	if address, err = cmd.Flags().GetString("address"); err != nil {
		return err
	}
	if path, err = cmd.Flags().GetString("config"); err != nil {
		return err
	}
	if path != "" {
		if cfg, err = config.Load(path); err != nil {
			return err
		}
	}
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	var handler = http.NewServeMux()
	handler.Handle("/api/", http.StripPrefix("/api", api.New(cfg, logger)))

	var srv = http.Server{
		Handler: handler,
		Addr:    fmt.Sprintf("%s:%d", address, port),
	}
	go func() {
		logger.Info("listening", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", zap.Error(err))
		}
	}()
	var c = make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	<-c
	fmt.Println("")
	var ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(ctx)
}

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

package report

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/cheggaaa/pb/v3"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/sboehler/nexotax/cmd/flags"
	"github.com/sboehler/nexotax/lib/config"
	"github.com/sboehler/nexotax/lib/model/transaction"
	"github.com/sboehler/nexotax/lib/nexo"
	"github.com/sboehler/nexotax/lib/report"
	"github.com/sboehler/nexotax/lib/tax"
)

// CreateCmd creates the command.
func CreateCmd() *cobra.Command {

	var r runner

	c := &cobra.Command{
		Use:   "report <file.csv>...",
		Short: "compute the annual tax report",
		Long: `Compute capital income, capital gains and card cashback profitability
from one or more Nexo transaction exports. Files are merged and duplicate
transactions are dropped.`,
		Args: cobra.MinimumNArgs(1),
		Run:  r.run,
	}
	r.setupFlags(c)
	return c
}

type runner struct {
	years    flags.YearsFlag
	fallback flags.FallbackFlag
	config   string
	auditDir string
	strict   bool
	color    bool
	verbose  bool
	progress bool
}

func (r *runner) setupFlags(c *cobra.Command) {
	c.Flags().VarP(&r.years, "year", "y", "tax year(s) to report (default: all years in the input)")
	c.Flags().Var(&r.fallback, "fx-fallback", "FX rate fallback for days without card purchases")
	c.Flags().StringVarP(&r.config, "config", "c", "", "YAML configuration file")
	c.Flags().StringVar(&r.auditDir, "audit-csv", "", "write audit CSV files to this directory")
	c.Flags().BoolVar(&r.strict, "strict", false, "abort on the first unparseable transaction")
	c.Flags().BoolVar(&r.color, "color", true, "print output in color")
	c.Flags().BoolVarP(&r.verbose, "verbose", "v", false, "log debug output")
	c.Flags().BoolVar(&r.progress, "progress", false, "show a progress bar while reading files")
}

func (r *runner) run(cmd *cobra.Command, args []string) {
	if err := r.execute(cmd, args); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "%+v\n", err)
		os.Exit(1)
	}
}

func (r *runner) execute(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd.ErrOrStderr(), r.verbose)
	defer logger.Sync()

	cfg, err := r.loadConfig()
	if err != nil {
		return err
	}
	rows, err := r.readFiles(cmd, args)
	if err != nil {
		return err
	}
	logger.Debug("read transactions", zap.Int("files", len(args)), zap.Int("rows", len(rows)))
	engine, err := tax.New(cfg, logger)
	if err != nil {
		return err
	}
	rep, runErr := engine.Run(rows, tax.Options{
		Years:  r.years.Value(),
		Audit:  r.auditDir != "",
		Strict: r.strict,
	})
	out := bufio.NewWriter(cmd.OutOrStdout())
	c := report.Console{Color: r.color}
	if err := c.Render(rep, out); err != nil {
		return err
	}
	if err := out.Flush(); err != nil {
		return err
	}
	if r.auditDir != "" {
		if err := r.writeAudit(rep, logger); err != nil {
			return multierr.Append(runErr, err)
		}
	}
	return runErr
}

func (r *runner) loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if r.config != "" {
		var err error
		if cfg, err = config.Load(r.config); err != nil {
			return nil, err
		}
	}
	if f, ok := r.fallback.Value(); ok {
		cfg.FXFallback = f.String()
	}
	return cfg, nil
}

// readFiles reads the given exports concurrently. The rows are returned in
// the order of the arguments.
func (r *runner) readFiles(cmd *cobra.Command, paths []string) ([]*transaction.Raw, error) {
	var bar *pb.ProgressBar
	if r.progress {
		bar = pb.New(len(paths))
		bar.SetWriter(cmd.ErrOrStderr())
		bar.Start()
		defer bar.Finish()
	}
	var (
		results = make([][]*transaction.Raw, len(paths))
		grp     errgroup.Group
	)
	for i, path := range paths {
		i, path := i, path
		grp.Go(func() error {
			rows, err := readFile(path)
			if err != nil {
				return err
			}
			results[i] = rows
			if bar != nil {
				bar.Increment()
			}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	var rows []*transaction.Raw
	for _, rs := range results {
		rows = append(rows, rs...)
	}
	return rows, nil
}

func readFile(path string) ([]*transaction.Raw, error) {
	r, f, err := flags.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return nexo.Read(r, path)
}

func (r *runner) writeAudit(rep *tax.Report, logger *zap.Logger) error {
	var err error
	for _, y := range rep.Years {
		files, ferr := report.AuditFiles(y)
		if ferr != nil {
			err = multierr.Append(err, ferr)
			continue
		}
		if werr := report.WriteAudit(r.auditDir, files); werr != nil {
			err = multierr.Append(err, werr)
			continue
		}
		logger.Info("wrote audit files", zap.Int("year", y.Year), zap.String("dir", r.auditDir), zap.Int("files", len(files)))
	}
	return err
}

func newLogger(w io.Writer, verbose bool) *zap.Logger {
	level := zap.InfoLevel
	if verbose {
		level = zap.DebugLevel
	}
	enc := zap.NewDevelopmentEncoderConfig()
	enc.TimeKey = ""
	enc.CallerKey = ""
	return zap.New(zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), level))
}

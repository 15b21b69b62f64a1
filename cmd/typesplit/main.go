// Licensed to Elasticsearch B.V. under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. Elasticsearch B.V. licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

// Command typesplit splits a bulk export of a multi-type index into one
// typeless bulk file per index and type.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/elastic/go-typesplit"
)

// defaultInput is read when no usable input path is given.
const defaultInput = "mini-shakespeare.json"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newCommand(os.Stdout).ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newCommand(stdout io.Writer) *cobra.Command {
	var (
		outputDir        string
		placeholder      string
		compressionLevel int
		logLevel         string
	)
	cmd := &cobra.Command{
		Use:   "typesplit [input]",
		Short: "Split a multi-type bulk export into one file per index and type",
		Long: `typesplit reads a bulk export made of {"index":{...}} actions, each followed
by its document, and writes every pair to <_index>-<_type>.json. In the output
the action's _index is set to that name and _type is removed.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(logLevel)
			if err != nil {
				return err
			}
			defer logger.Sync()

			converter, err := typesplit.New(typesplit.Config{
				Logger:           logger,
				Dir:              outputDir,
				Placeholder:      placeholder,
				CompressionLevel: compressionLevel,
			})
			if err != nil {
				return err
			}

			input := resolveInput(stdout, args)
			start := time.Now()
			stats, err := converter.ConvertFile(cmd.Context(), input)
			if err != nil {
				logger.Error("conversion failed",
					zap.String("input", input),
					zap.Int64("pairs", stats.Pairs),
					zap.Error(err),
				)
				return err
			}
			logger.Info("conversion finished",
				zap.String("input", input),
				zap.Int64("pairs", stats.Pairs),
				zap.Int64("dropped", stats.Dropped),
				zap.Int("partitions", stats.Partitions),
				zap.Int64("bytes", stats.BytesWritten),
				zap.Duration("took", time.Since(start)),
			)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&outputDir, "output-dir", "o", ".", "directory the partition files are written to")
	flags.StringVar(&placeholder, "placeholder", typesplit.DefaultPlaceholder, "name used for a missing _index or _type")
	flags.IntVar(&compressionLevel, "compression-level", 0, "gzip level of the partition files, 0 disables compression")
	flags.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
	return cmd
}

// resolveInput returns the path given on the command line, or defaultInput
// if none was given or the given file does not exist.
func resolveInput(stdout io.Writer, args []string) string {
	if len(args) > 0 {
		if _, err := os.Stat(args[0]); err == nil {
			return args[0]
		}
		fmt.Fprintf(stdout, "E: file %s does not exist.\n", args[0])
	}
	fmt.Fprintf(stdout, "I: Trying default path %s\n", defaultInput)
	return defaultInput
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	cfg.Level = lvl
	return cfg.Build()
}

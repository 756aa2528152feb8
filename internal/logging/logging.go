// Copyright 2025 The zkanvil Authors
// This file is part of zkanvil.
//
// zkanvil is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// zkanvil is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with zkanvil. If not, see <http://www.gnu.org/licenses/>.

// Package logging configures the root logger from CLI flags: console output
// on stderr, optionally mirrored to a rotating file.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/c2h5oh/datasize"
	"github.com/ledgerwatch/log/v3"
	"github.com/urfave/cli/v2"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	LogVerbosityFlag = cli.StringFlag{
		Name:  "log.verbosity",
		Usage: "Console logging level: crit, error, warn, info, debug, trace",
		Value: "info",
	}

	LogJsonFlag = cli.BoolFlag{
		Name:  "log.json",
		Usage: "Format console logs as JSON",
	}

	LogFilePathFlag = cli.StringFlag{
		Name:  "log.file",
		Usage: "Path of the file to mirror logs to, disabled when empty",
	}

	LogFileMaxSizeFlag = cli.StringFlag{
		Name:  "log.file.max-size",
		Usage: "Rotate the log file after it reaches this size",
		Value: "100MB",
	}

	// VerbosityShortFlag counts repeated -v occurrences: -v is debug,
	// -vv and beyond is trace.
	VerbosityShortFlag = cli.BoolFlag{
		Name:    "v",
		Aliases: []string{"vv", "vvv", "vvvv"},
		Usage:   "Raise console verbosity, repeatable",
		Count:   &shortVerbosity,
	}
)

var shortVerbosity int

// Flags is the set every command installs.
var Flags = []cli.Flag{
	&LogVerbosityFlag,
	&LogJsonFlag,
	&LogFilePathFlag,
	&LogFileMaxSizeFlag,
	&VerbosityShortFlag,
}

// SetupLoggerCtx builds the root handler from the parsed flags and returns
// a logger tagged with the app name. A bad log file path is a startup
// failure per the error policy for environment problems.
func SetupLoggerCtx(appName string, ctx *cli.Context) (log.Logger, error) {
	level, err := tryGetLogLevel(ctx.String(LogVerbosityFlag.Name))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", LogVerbosityFlag.Name, err)
	}
	switch n := ctx.Count(VerbosityShortFlag.Name); {
	case n == 1 && level < log.LvlDebug:
		level = log.LvlDebug
	case n >= 2:
		level = log.LvlTrace
	}

	var handler log.Handler
	if ctx.Bool(LogJsonFlag.Name) {
		handler = log.LvlFilterHandler(level, log.StreamHandler(os.Stderr, log.JsonFormat()))
	} else {
		handler = log.LvlFilterHandler(level, log.StderrHandler)
	}

	if filePath := ctx.String(LogFilePathFlag.Name); filePath != "" {
		var maxSize datasize.ByteSize
		if err := maxSize.UnmarshalText([]byte(ctx.String(LogFileMaxSizeFlag.Name))); err != nil {
			return nil, fmt.Errorf("parse %s: %w", LogFileMaxSizeFlag.Name, err)
		}
		if dir := filepath.Dir(filePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("log file directory %s: %w", dir, err)
			}
		}
		fileHandler := log.StreamHandler(&lumberjack.Logger{
			Filename:   filePath,
			MaxSize:    int(maxSize.MBytes()),
			MaxBackups: 3,
			Compress:   false,
		}, log.LogfmtFormat())
		handler = log.MultiHandler(handler, log.LvlFilterHandler(level, fileHandler))
	}

	log.Root().SetHandler(handler)
	return log.New("app", appName), nil
}

func tryGetLogLevel(s string) (log.Lvl, error) {
	return log.LvlFromString(s)
}

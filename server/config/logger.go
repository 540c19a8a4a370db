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

package config

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func parseLevel(s string) (zapcore.Level, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return lvl, fmt.Errorf("unknown log-level %q", s)
	}
	return lvl, nil
}

// ZapLoggerConfig builds the logger configuration. The encoder matches the
// production encoder with ISO8601 timestamps.
func (cfg *Config) ZapLoggerConfig() (zap.Config, error) {
	lvl, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return zap.Config{}, err
	}

	outputs := make(map[string]struct{})
	for _, v := range cfg.LogOutputs {
		outputs[v] = struct{}{}
	}
	if len(outputs) == 0 {
		outputs[StdErrLogOutput] = struct{}{}
	}
	paths := make([]string, 0, len(outputs))
	for v := range outputs {
		paths = append(paths, v)
	}
	sort.Strings(paths)

	lcfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(lvl),
		Development: false,
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		},
		Encoding: cfg.LogFormat,
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      paths,
		ErrorOutputPaths: paths,
	}
	return lcfg, nil
}

func (cfg *Config) NewLogger() (*zap.Logger, error) {
	lcfg, err := cfg.ZapLoggerConfig()
	if err != nil {
		return nil, err
	}
	return lcfg.Build()
}

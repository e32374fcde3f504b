/*
 * Copyright 2018 The CovenantSQL Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/ledgercore/ledgercore/conf"
	"github.com/ledgercore/ledgercore/utils"
	"github.com/ledgercore/ledgercore/utils/log"
)

var (
	version = "1"
	commit  = "unknown"
	branch  = "unknown"
)

var (
	// profile
	cpuProfile string
	memProfile string

	// other
	showVersion bool
	configFile  string
	logLevel    string
)

const name = `ledgerd`
const desc = `ledgerd keeps the block log and world state of a ledger node`

func init() {
	flag.BoolVar(&showVersion, "version", false, "Show version information and exit")
	flag.StringVar(&configFile, "config", "./config.yaml", "Config file path")
	flag.StringVar(&logLevel, "log-level", "", "Log level overriding the config, e.g. debug, info, warning")

	flag.StringVar(&cpuProfile, "cpu-profile", "", "Path to file for CPU profiling information")
	flag.StringVar(&memProfile, "mem-profile", "", "Path to file for memory profiling information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "\n%s\n\n", desc)
		fmt.Fprintf(os.Stderr, "Usage: %s [arguments] <command>\n\n", name)
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  status           print the last block id and committed peers\n")
		fmt.Fprintf(os.Stderr, "  apply <file>     apply the blocks of a yaml file\n")
		fmt.Fprintf(os.Stderr, "  show <id>        print a stored block\n")
		fmt.Fprintf(os.Stderr, "  replay           apply stored blocks the world state is missing\n")
		fmt.Fprintf(os.Stderr, "  serve            serve metrics until interrupted\n\n")
		flag.PrintDefaults()
	}
}

func main() {
	log.SetLevel(log.InfoLevel)
	flag.Parse()

	if showVersion {
		fmt.Printf("%v %v %v %v %v %v %v\n",
			name, version, commit, branch, runtime.GOOS, runtime.GOARCH, runtime.Version())
		os.Exit(0)
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	var err error
	conf.GConf, err = conf.LoadConfig(configFile)
	if err != nil {
		log.WithField("config", configFile).WithError(err).Fatal("load config failed")
	}
	level := conf.GConf.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	log.SetStringLevel(level, log.InfoLevel)
	log.Infof("%#v starting, version %#v, commit %#v, branch %#v", name, version, commit, branch)

	if err = utils.StartProfile(cpuProfile, memProfile); err != nil {
		log.WithError(err).Fatal("start profile failed")
	}
	defer utils.StopProfile()

	if err = run(context.Background(), conf.GConf, flag.Args()); err != nil {
		utils.StopProfile()
		log.WithError(err).Fatal("command failed")
	}
}

func run(ctx context.Context, cfg *conf.Config, args []string) (err error) {
	n, err := openNode(ctx, cfg)
	if err != nil {
		return
	}
	defer n.Close()

	switch cmd := args[0]; {
	case cmd == "status" && len(args) == 1:
		return runStatus(ctx, n, os.Stdout)
	case cmd == "apply" && len(args) == 2:
		return runApply(ctx, n, args[1], os.Stdout)
	case cmd == "show" && len(args) == 2:
		return runShow(n, args[1], os.Stdout)
	case cmd == "replay" && len(args) == 1:
		return runReplay(ctx, n, os.Stdout)
	case cmd == "serve" && len(args) == 1:
		return runServe(n, cfg.MetricsAddr)
	default:
		flag.Usage()
		return fmt.Errorf("invalid command line: %v", args)
	}
}

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

package utils

import (
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/pkg/errors"

	"github.com/ledgercore/ledgercore/utils/log"
)

var prof struct {
	cpu *os.File
	mem *os.File
}

// StartProfile starts CPU profiling into cpuprofile and arms heap profiling into
// memprofile. Empty names disable the respective profile.
func StartProfile(cpuprofile, memprofile string) (err error) {
	if cpuprofile != "" {
		var f *os.File
		if f, err = os.Create(cpuprofile); err != nil {
			log.WithField("file", cpuprofile).WithError(err).Error("create cpu profile failed")
			return errors.Wrap(err, "create cpu profile")
		}
		if err = pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return errors.Wrap(err, "start cpu profile")
		}
		prof.cpu = f
		log.WithField("file", cpuprofile).Info("writing cpu profile")
	}

	if memprofile != "" {
		var f *os.File
		if f, err = os.Create(memprofile); err != nil {
			log.WithField("file", memprofile).WithError(err).Error("create memory profile failed")
			return errors.Wrap(err, "create memory profile")
		}
		prof.mem = f
		runtime.MemProfileRate = 4096
		log.WithField("file", memprofile).Info("writing memory profile")
	}
	return
}

// StopProfile flushes and closes running profiles.
func StopProfile() {
	if prof.cpu != nil {
		pprof.StopCPUProfile()
		prof.cpu.Close()
		prof.cpu = nil
		log.Info("cpu profiling stopped")
	}
	if prof.mem != nil {
		if err := pprof.WriteHeapProfile(prof.mem); err != nil {
			log.WithError(err).Warning("write heap profile failed")
		}
		prof.mem.Close()
		prof.mem = nil
		log.Info("memory profiling stopped")
	}
}

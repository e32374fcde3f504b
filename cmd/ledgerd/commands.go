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
	"fmt"
	"io"
	"io/ioutil"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/ledgercore/ledgercore/ledger"
	"github.com/ledgercore/ledgercore/metric"
	"github.com/ledgercore/ledgercore/utils"
	"github.com/ledgercore/ledgercore/utils/log"
)

// blockFile is the yaml document accepted by the apply command.
type blockFile struct {
	Blocks []ledger.Block `yaml:"blocks"`
}

type statusReport struct {
	LastID uint64   `yaml:"last_id"`
	Peers  []string `yaml:"peers"`
}

type applyReport struct {
	ID       uint64 `yaml:"id"`
	Commands int    `yaml:"commands"`
	Rejected []int  `yaml:"rejected,omitempty"`
}

func writeYAML(w io.Writer, v interface{}) error {
	out, err := yaml.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "marshal output")
	}
	_, err = w.Write(out)
	return err
}

func runStatus(ctx context.Context, n *node, w io.Writer) error {
	peers, err := n.state.GetPeers(ctx, true)
	if err != nil {
		return err
	}
	return writeYAML(w, statusReport{LastID: n.ledger.Height(), Peers: peers})
}

func runApply(ctx context.Context, n *node, path string, w io.Writer) (err error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read block file %s", path)
	}
	var f blockFile
	if err = yaml.UnmarshalStrict(data, &f); err != nil {
		return errors.Wrapf(err, "parse block file %s", path)
	}

	reports := make([]applyReport, 0, len(f.Blocks))
	for i := range f.Blocks {
		b := &f.Blocks[i]
		if b.Height == 0 {
			b.Height = n.ledger.Height() + 1
		}
		if b.Timestamp == 0 {
			b.Timestamp = time.Now().UnixNano()
		}
		id, rejected, err := n.ledger.ApplyBlock(ctx, b)
		if err != nil {
			return errors.WithMessagef(err, "apply block %d of %s", i, path)
		}
		reports = append(reports, applyReport{ID: id, Commands: len(b.Commands), Rejected: rejected})
	}
	return writeYAML(w, reports)
}

func runShow(n *node, arg string, w io.Writer) error {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return errors.Wrapf(err, "invalid block id %q", arg)
	}
	b, err := n.ledger.Block(id)
	if err != nil {
		return err
	}
	return writeYAML(w, b)
}

func runReplay(ctx context.Context, n *node, w io.Writer) error {
	replayed, err := n.ledger.Replay(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "replayed %d blocks, height %d\n", replayed, n.ledger.Height())
	return err
}

// runServe serves metrics until the process is told to exit.
func runServe(n *node, addr string) error {
	if addr == "" {
		return errors.New("serve needs MetricsAddr in config")
	}
	srv, listenAddr, err := metric.Serve(addr, n.registry)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"addr":    listenAddr,
		"last_id": n.ledger.Height(),
	}).Info("node serving")

	sig := <-utils.WaitForExit()
	log.WithField("signal", sig.String()).Info("stopping node")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

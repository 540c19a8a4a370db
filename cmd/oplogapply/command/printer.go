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

package command

import (
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"go.etcd.io/oplogapply/server/apply"
	"go.etcd.io/oplogapply/server/storage/backend"
	"go.etcd.io/oplogapply/server/writer"
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	return table
}

func printApplySummary(w io.Writer, st apply.PipelineStats, colls []backend.CollectionStats) {
	fmt.Fprintf(w, "applied %s entries in %d batches (%s units) in %s\n",
		humanize.Comma(int64(st.Entries)), st.Batches, humanize.Comma(int64(st.Units)), st.Took)

	table := newTable(w, "namespace", "capped", "documents", "size")
	var docs, size int64
	for _, c := range colls {
		table.Append([]string{
			c.NS.String(),
			strconv.FormatBool(c.Capped),
			humanize.Comma(int64(c.Docs)),
			humanize.Bytes(uint64(c.Bytes)),
		})
		docs += int64(c.Docs)
		size += c.Bytes
	}
	table.SetFooter([]string{"total", "", humanize.Comma(docs), humanize.Bytes(uint64(size))})
	table.Render()
}

// laneRow summarizes one writer vector of a batch.
type laneRow struct {
	batch, writer int
	units, subOps int
	bytes         int
}

func laneRows(batch int, vectors writer.Vectors) []laneRow {
	var rows []laneRow
	for i, w := range vectors {
		if len(w) == 0 {
			continue
		}
		r := laneRow{batch: batch, writer: i, units: len(w)}
		for _, op := range w {
			r.bytes += op.Entry.Size()
			r.subOps += len(op.SubOps)
		}
		rows = append(rows, r)
	}
	return rows
}

func printPartition(w io.Writer, rows []laneRow) {
	table := newTable(w, "batch", "writer", "units", "prepared ops", "size")
	units := 0
	for _, r := range rows {
		table.Append([]string{
			strconv.Itoa(r.batch),
			strconv.Itoa(r.writer),
			strconv.Itoa(r.units),
			strconv.Itoa(r.subOps),
			humanize.Bytes(uint64(r.bytes)),
		})
		units += r.units
	}
	table.SetFooter([]string{"", "", strconv.Itoa(units), "", ""})
	table.Render()
}

package flowlogs

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

var csvHeader = []string{"Source Name", "Source Type", "Target Name", "Target Type", "Granularity", "Bytes", "Packets", "Flows"}

// Flatten merges every result's connections, tagging each with its granularity name.
func Flatten(results []GranularityResult) []Connection {
	var out []Connection
	for _, r := range results {
		for _, c := range r.Connections {
			c.Granularity = r.GranularityName
			out = append(out, c)
		}
	}
	return out
}

// WriteCSV writes an unquoted header followed by rows whose cells are all quoted.
func WriteCSV(w io.Writer, conns []Connection) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(strings.Join(csvHeader, ",")); err != nil {
		return err
	}
	for _, c := range conns {
		cells := []string{
			c.Source.Name,
			c.Source.Type,
			c.Target.Name,
			c.Target.Type,
			c.Granularity,
			strconv.FormatInt(c.Bytes, 10),
			strconv.FormatInt(c.Packets, 10),
			strconv.FormatInt(c.Flows, 10),
		}
		bw.WriteByte('\n')
		for i, cell := range cells {
			if i > 0 {
				bw.WriteByte(',')
			}
			bw.WriteByte('"')
			bw.WriteString(strings.ReplaceAll(cell, `"`, `""`))
			bw.WriteByte('"')
		}
	}
	return bw.Flush()
}

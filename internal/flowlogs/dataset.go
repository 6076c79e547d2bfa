package flowlogs

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidDatasetPath = errors.New("Invalid format. Expected: project-id.dataset-id.table-id")
	ErrEmptyDatasetPart   = errors.New("All parts (project, dataset, table) must be non-empty")
	ErrDatasetCharacters  = errors.New("Dataset path contains characters that are not allowed in a table reference")
	ErrInvalidTimeRange   = errors.New("time range must be one of 1, 6, 24 or 168 hours")
)

// Default log tables.
const (
	DefaultTopologyDataset = "net-top-viz-demo-208511.default_bq_loganalytics._AllLogs"
	DefaultExplorerDataset = "net-top-viz-demo-208511.VPCFlowLogs.vpc_flows"
)

// TimeRanges lists the supported query windows in hours.
var TimeRanges = []int{1, 6, 24, 168}

// Dataset is a fully qualified BigQuery table holding flow-log records.
type Dataset struct {
	ProjectID string `json:"projectId"`
	DatasetID string `json:"datasetId"`
	TableID   string `json:"tableId"`
}

func (d Dataset) String() string {
	return d.ProjectID + "." + d.DatasetID + "." + d.TableID
}

// TableRef is the backquoted reference used in FROM clauses.
func (d Dataset) TableRef() string {
	return "`" + d.String() + "`"
}

// ValidateDatasetPath parses "project.dataset.table".
func ValidateDatasetPath(path string) (Dataset, error) {
	parts := strings.Split(path, ".")
	if len(parts) != 3 {
		return Dataset{}, ErrInvalidDatasetPath
	}
	if parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return Dataset{}, ErrEmptyDatasetPart
	}
	for _, p := range parts {
		if strings.ContainsAny(p, "`'\";\\ \t\r\n") {
			return Dataset{}, ErrDatasetCharacters
		}
	}
	return Dataset{ProjectID: parts[0], DatasetID: parts[1], TableID: parts[2]}, nil
}

// ValidateTimeRange checks hours against TimeRanges.
func ValidateTimeRange(hours int) error {
	for _, h := range TimeRanges {
		if h == hours {
			return nil
		}
	}
	return fmt.Errorf("%w: got %d", ErrInvalidTimeRange, hours)
}

// Window is the closed [Start, End] interval a query covers.
type Window struct {
	Start time.Time
	End   time.Time
}

// WindowEndingAt returns the window of the given hours ending at end.
func WindowEndingAt(end time.Time, hours int) Window {
	return Window{Start: end.Add(-time.Duration(hours) * time.Hour), End: end}
}

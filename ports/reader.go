package ports

import (
	"context"

	"metaboqc/domain/dataset"
	"metaboqc/domain/sop"
)

// DatasetSource names the files a dataset is imported from. A workbook holds
// the three tables as sheets; otherwise each table has its own CSV or XLSX
// file.
type DatasetSource struct {
	Name      string
	Platform  sop.Platform
	SOP       *sop.SOP
	Workbook  string
	Samples   string
	Features  string
	Intensity string
}

// DatasetReader imports a dataset.
type DatasetReader interface {
	Read(ctx context.Context, src DatasetSource) (*dataset.Dataset, error)
}

// DatasetWriter exports a dataset's tables.
type DatasetWriter interface {
	Write(ctx context.Context, d *dataset.Dataset, path string) error
}

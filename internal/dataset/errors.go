package dataset

import "errors"

// ErrEmptyDataset is returned when no image survives annotation filtering.
var ErrEmptyDataset = errors.New("no labeled images found")

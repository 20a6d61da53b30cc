package dataset

import (
	"github.com/disintegration/imaging"
)

// CorruptImage records an image that failed to decode.
type CorruptImage struct {
	Path string
	Err  error
}

// AuditReport summarizes a full decode pass over the labeled images.
type AuditReport struct {
	Checked   int
	Corrupt   []CorruptImage
	MinWidth  int
	MinHeight int
	MaxWidth  int
	MaxHeight int
}

// Audit fully decodes every image and reports decode failures and the
// dimension range seen. The report is advisory and never shrinks the
// split.
func Audit(images []LabeledImage) *AuditReport {
	report := &AuditReport{}
	for _, img := range images {
		decoded, err := imaging.Open(img.ImagePath)
		if err != nil {
			report.Corrupt = append(report.Corrupt, CorruptImage{Path: img.ImagePath, Err: err})
			continue
		}

		bounds := decoded.Bounds()
		w, h := bounds.Dx(), bounds.Dy()
		if report.Checked == 0 {
			report.MinWidth, report.MaxWidth = w, w
			report.MinHeight, report.MaxHeight = h, h
		} else {
			if w < report.MinWidth {
				report.MinWidth = w
			}
			if w > report.MaxWidth {
				report.MaxWidth = w
			}
			if h < report.MinHeight {
				report.MinHeight = h
			}
			if h > report.MaxHeight {
				report.MaxHeight = h
			}
		}
		report.Checked++
	}
	return report
}

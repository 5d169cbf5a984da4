package catalog

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"storefront-service/internal/domain"
)

const (
	DefaultWarnKB  = 800
	DefaultLimitKB = 1000
)

// CapacityCheck guards the serialized size of a product document. Inline data URL
// images make documents large, and the store refuses oversized documents.
type CapacityCheck struct {
	WarnKB  int
	LimitKB int
}

// CapacityReport is the result of a passing check. Warning is empty unless the
// document is close to the limit.
type CapacityReport struct {
	SizeKB  int    `json:"sizeKB"`
	Warning string `json:"warning,omitempty"`
}

// Check measures doc. At or above the limit it returns a *domain.SizeCapacityError.
func (c CapacityCheck) Check(doc map[string]any) (CapacityReport, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return CapacityReport{}, fmt.Errorf("catalog: measure product document: %w", err)
	}
	sizeKB := float64(len(data)) / 1024
	rounded := int(math.Round(sizeKB))
	if sizeKB >= float64(c.limit()) {
		return CapacityReport{SizeKB: rounded}, &domain.SizeCapacityError{SizeKB: rounded, LimitKB: c.limit()}
	}
	report := CapacityReport{SizeKB: rounded}
	if rounded > c.warn() {
		report.Warning = fmt.Sprintf("product document is %dKB, close to the %dKB limit", rounded, c.limit())
	}
	return report, nil
}

func (c CapacityCheck) limit() int {
	if c.LimitKB <= 0 {
		return DefaultLimitKB
	}
	return c.LimitKB
}

func (c CapacityCheck) warn() int {
	if c.WarnKB <= 0 {
		return DefaultWarnKB
	}
	return c.WarnKB
}

// DataURLSizeKB estimates the decoded size of an inline data URL image. Other
// references count as zero.
func DataURLSizeKB(ref string) float64 {
	if !strings.HasPrefix(ref, "data:") {
		return 0
	}
	return float64(len(ref)) * 3 / 4 / 1024
}

// StripOversizedImages removes inline images larger than maxKB from a product. Colors
// and size images left without any image are dropped, the same way normalization
// drops them. It returns the number of images removed.
func StripOversizedImages(p domain.Product, maxKB float64) (domain.Product, int) {
	removed := 0
	keep := func(images []string) []string {
		out := make([]string, 0, len(images))
		for _, img := range images {
			if DataURLSizeKB(img) > maxKB {
				removed++
				continue
			}
			out = append(out, img)
		}
		return out
	}

	if DataURLSizeKB(p.Image) > maxKB {
		p.Image = ""
		removed++
	}

	colors := make([]domain.Color, 0, len(p.Colors))
	for _, c := range p.Colors {
		c.Images = keep(c.Images)
		if len(c.Images) == 0 {
			continue
		}
		c.Image = c.Images[0]
		colors = append(colors, c)
	}
	p.Colors = colors

	sizeImages := make([]domain.SizeImage, 0, len(p.SizeImages))
	for _, s := range p.SizeImages {
		s.Images = keep(s.Images)
		if len(s.Images) == 0 {
			continue
		}
		s.Image = s.Images[0]
		sizeImages = append(sizeImages, s)
	}
	p.SizeImages = sizeImages
	return p, removed
}

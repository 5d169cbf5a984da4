package catalog

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"storefront-service/internal/domain"
)

// Drop describes a malformed variant removed during normalization.
type Drop struct {
	Kind  string // "color" or "sizeImage"
	Index int
	Label string
}

// NormalizeColor converts a persisted color record, legacy or canonical, into canonical form.
// ok is false when no image can be resolved; the caller must drop the color.
func NormalizeColor(raw any) (domain.Color, bool) {
	if c, isColor := raw.(domain.Color); isColor {
		raw = ColorDocument(c)
	}
	m, isMap := raw.(map[string]any)
	if !isMap {
		return domain.Color{}, false
	}
	images := resolveImages(m)
	if len(images) == 0 {
		return domain.Color{}, false
	}
	return domain.Color{
		Color:      asString(m["color"]),
		Image:      images[0],
		Images:     images,
		Available:  asBool(m["available"], true),
		OutOfStock: asBool(m["outOfStock"], false),
		Sizes:      NormalizeColorSizes(m["sizes"]),
	}, true
}

// NormalizeSizeImage applies the same legacy/canonical image rule to a size image record.
func NormalizeSizeImage(raw any) (domain.SizeImage, bool) {
	if s, isSizeImage := raw.(domain.SizeImage); isSizeImage {
		raw = SizeImageDocument(s)
	}
	m, isMap := raw.(map[string]any)
	if !isMap {
		return domain.SizeImage{}, false
	}
	images := resolveImages(m)
	if len(images) == 0 {
		return domain.SizeImage{}, false
	}
	return domain.SizeImage{
		Size:   asString(m["size"]),
		Image:  images[0],
		Images: images,
	}, true
}

// NormalizeColorSizes accepts bare size labels and availability records and always
// returns records. Entries without a label are skipped.
func NormalizeColorSizes(raw any) []domain.SizeAvailability {
	out := []domain.SizeAvailability{}
	switch v := raw.(type) {
	case []domain.SizeAvailability:
		for _, s := range v {
			if s.Size != "" {
				out = append(out, s)
			}
		}
	case []string:
		for _, s := range v {
			if s != "" {
				out = append(out, domain.DefaultSizeAvailability(s))
			}
		}
	case []any:
		for _, entry := range v {
			if s, ok := sizeEntry(entry); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

func sizeEntry(entry any) (domain.SizeAvailability, bool) {
	switch e := entry.(type) {
	case string:
		if e == "" {
			return domain.SizeAvailability{}, false
		}
		return domain.DefaultSizeAvailability(e), true
	case map[string]any:
		size := asString(e["size"])
		if size == "" {
			return domain.SizeAvailability{}, false
		}
		return domain.SizeAvailability{
			Size:       size,
			Available:  asBool(e["available"], true),
			OutOfStock: asBool(e["outOfStock"], false),
		}, true
	}
	return domain.SizeAvailability{}, false
}

// NormalizeProduct turns a raw product document into a canonical Product and reports
// every variant it had to drop.
func NormalizeProduct(id string, raw map[string]any) (domain.Product, []Drop) {
	var drops []Drop
	p := domain.Product{
		ID:          id,
		Name:        asString(raw["name"]),
		Description: asString(raw["description"]),
		Price:       asFloat(raw["price"]),
		Category:    asString(raw["category"]),
		Type:        asString(raw["type"]),
		Sizes:       asStrings(raw["sizes"]),
		Image:       asString(raw["image"]),
		SoldOut:     asBool(raw["soldOut"], false),
		Offer:       asBool(raw["offer"], false),
		Colors:      []domain.Color{},
		SizeImages:  []domain.SizeImage{},
	}
	if v, ok := raw["version"]; ok {
		p.Version = int64(asFloat(v))
	}
	if d, ok := asNumber(raw["offerDiscount"]); ok {
		p.OfferDiscount = d
	}
	if t, ok := asTime(raw["offerEndTime"]); ok {
		p.OfferEndTime = &t
	}
	if n, ok := asNumber(raw["displayOrder"]); ok {
		order := int(n)
		p.DisplayOrder = &order
	}

	for i, entry := range asSlice(raw["colors"]) {
		c, ok := NormalizeColor(entry)
		if !ok {
			drops = append(drops, Drop{Kind: "color", Index: i, Label: labelOf(entry, "color")})
			continue
		}
		p.Colors = append(p.Colors, c)
	}
	for i, entry := range asSlice(raw["sizeImages"]) {
		s, ok := NormalizeSizeImage(entry)
		if !ok {
			drops = append(drops, Drop{Kind: "sizeImage", Index: i, Label: labelOf(entry, "size")})
			continue
		}
		p.SizeImages = append(p.SizeImages, s)
	}

	p.SizesAvailability = normalizeSizesAvailability(raw["sizesAvailability"], p.Sizes)
	return p, drops
}

// normalizeSizesAvailability accepts the list form or the map form keyed by size label,
// then appends default records for declared sizes that are not mentioned.
func normalizeSizesAvailability(raw any, sizes []string) []domain.SizeAvailability {
	var out []domain.SizeAvailability
	if m, isMap := raw.(map[string]any); isMap {
		for _, size := range sortedKeys(m) {
			entry, _ := m[size].(map[string]any)
			out = append(out, domain.SizeAvailability{
				Size:       size,
				Available:  asBool(entry["available"], true),
				OutOfStock: asBool(entry["outOfStock"], false),
			})
		}
	} else {
		out = NormalizeColorSizes(raw)
	}

	seen := make(map[string]bool, len(out))
	for _, s := range out {
		seen[s.Size] = true
	}
	for _, size := range sizes {
		if !seen[size] {
			out = append(out, domain.DefaultSizeAvailability(size))
			seen[size] = true
		}
	}
	if out == nil {
		out = []domain.SizeAvailability{}
	}
	return out
}

// ColorDocument is the persisted shape of a canonical color. Both image and images are
// written for readers that still expect the legacy field.
func ColorDocument(c domain.Color) map[string]any {
	sizes := make([]any, 0, len(c.Sizes))
	for _, s := range c.Sizes {
		sizes = append(sizes, sizeDocument(s))
	}
	return map[string]any{
		"color":      c.Color,
		"image":      firstOr(c.Images, c.Image),
		"images":     stringsToAny(c.Images),
		"available":  c.Available,
		"outOfStock": c.OutOfStock,
		"sizes":      sizes,
	}
}

func SizeImageDocument(s domain.SizeImage) map[string]any {
	return map[string]any{
		"size":   s.Size,
		"image":  firstOr(s.Images, s.Image),
		"images": stringsToAny(s.Images),
	}
}

// ProductDocument is the persisted shape of a canonical product.
func ProductDocument(p domain.Product) map[string]any {
	colors := make([]any, 0, len(p.Colors))
	for _, c := range p.Colors {
		colors = append(colors, ColorDocument(c))
	}
	sizeImages := make([]any, 0, len(p.SizeImages))
	for _, s := range p.SizeImages {
		sizeImages = append(sizeImages, SizeImageDocument(s))
	}
	availability := make([]any, 0, len(p.SizesAvailability))
	for _, s := range p.SizesAvailability {
		availability = append(availability, sizeDocument(s))
	}
	doc := map[string]any{
		"name":              p.Name,
		"description":       p.Description,
		"price":             p.Price,
		"category":          p.Category,
		"type":              p.Type,
		"sizes":             stringsToAny(p.Sizes),
		"sizesAvailability": availability,
		"colors":            colors,
		"sizeImages":        sizeImages,
		"image":             p.Image,
		"soldOut":           p.SoldOut,
		"offer":             p.Offer,
		"offerDiscount":     p.OfferDiscount,
		"offerEndTime":      nil,
		"displayOrder":      nil,
	}
	if p.OfferEndTime != nil {
		doc["offerEndTime"] = p.OfferEndTime.UnixMilli()
	}
	if p.DisplayOrder != nil {
		doc["displayOrder"] = *p.DisplayOrder
	}
	return doc
}

func sizeDocument(s domain.SizeAvailability) map[string]any {
	return map[string]any{"size": s.Size, "available": s.Available, "outOfStock": s.OutOfStock}
}

// Normalizer runs NormalizeProduct at ingestion, logging and counting every drop.
type Normalizer struct {
	logger  *zap.Logger
	dropped atomic.Int64
}

func NewNormalizer(logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{logger: logger}
}

// Dropped is the number of malformed variants removed since start.
func (n *Normalizer) Dropped() int64 {
	return n.dropped.Load()
}

func (n *Normalizer) Product(id string, raw map[string]any) domain.Product {
	p, drops := NormalizeProduct(id, raw)
	for _, d := range drops {
		n.dropped.Add(1)
		n.logger.Warn("dropped malformed variant",
			zap.String("product_id", id),
			zap.String("kind", d.Kind),
			zap.Int("index", d.Index),
			zap.String("label", d.Label),
		)
	}
	return p
}

// Decode normalizes a JSON document as stored by the product store. The stored version
// takes precedence over any version field inside the document.
func (n *Normalizer) Decode(id string, version int64, data []byte) (domain.Product, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.Product{}, fmt.Errorf("catalog: decode product %s: %w", id, err)
	}
	p := n.Product(id, raw)
	p.Version = version
	return p, nil
}

func resolveImages(m map[string]any) []string {
	images := asStrings(m["images"])
	if len(images) > 0 {
		return images
	}
	if img := asString(m["image"]); img != "" {
		return []string{img}
	}
	return nil
}

func labelOf(entry any, key string) string {
	if m, ok := entry.(map[string]any); ok {
		return asString(m[key])
	}
	return ""
}

func asSlice(v any) []any {
	switch s := v.(type) {
	case []any:
		return s
	case []map[string]any:
		out := make([]any, len(s))
		for i := range s {
			out[i] = s[i]
		}
		return out
	}
	return nil
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case fmt.Stringer:
		return s.String()
	}
	return ""
}

func asStrings(v any) []string {
	out := []string{}
	switch s := v.(type) {
	case []string:
		for _, e := range s {
			if e != "" {
				out = append(out, e)
			}
		}
	case []any:
		for _, e := range s {
			if str := asString(e); str != "" {
				out = append(out, str)
			}
		}
	}
	return out
}

func asBool(v any, def bool) bool {
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// asFloat accepts numbers and numeric strings, falling back to 0.
func asFloat(v any) float64 {
	if n, ok := asNumber(v); ok {
		return n
	}
	if s, ok := v.(string); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && !math.IsNaN(f) {
			return f
		}
	}
	return 0
}

// asTime accepts epoch milliseconds, RFC 3339 strings and {seconds, nanoseconds} records.
func asTime(v any) (time.Time, bool) {
	if ms, ok := asNumber(v); ok {
		return time.UnixMilli(int64(ms)), true
	}
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		return parsed, err == nil
	case map[string]any:
		secs, ok := asNumber(t["seconds"])
		if !ok {
			return time.Time{}, false
		}
		nanos, _ := asNumber(t["nanoseconds"])
		return time.Unix(int64(secs), int64(nanos)), true
	}
	return time.Time{}, false
}

func firstOr(images []string, fallback string) string {
	if len(images) > 0 {
		return images[0]
	}
	return fallback
}

func stringsToAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

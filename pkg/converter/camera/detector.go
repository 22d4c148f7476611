// Package camera normalizes camera make and model strings reported by RAW
// decoders into the canonical brand and model names used for ICC profile
// lookup.
package camera

import (
	"strings"

	"github.com/rawbatch/rawbatch/pkg/converter/codec"
)

// Info is the normalized identification of the camera that produced a file.
type Info struct {
	Brand string
	Model string
}

// makeAliases maps the maker strings cameras embed in metadata to canonical
// brand names. Keys are uppercase.
var makeAliases = map[string]string{
	"NIKON":                       "Nikon",
	"NIKON CORPORATION":           "Nikon",
	"CANON":                       "Canon",
	"SONY":                        "Sony",
	"FUJIFILM":                    "Fujifilm",
	"FUJI PHOTO FILM CO., LTD.":   "Fujifilm",
	"OLYMPUS":                     "Olympus",
	"OLYMPUS CORPORATION":         "Olympus",
	"OLYMPUS IMAGING CORP.":       "Olympus",
	"OM DIGITAL SOLUTIONS":        "Olympus",
	"PANASONIC":                   "Panasonic",
	"PENTAX":                      "Pentax",
	"RICOH IMAGING COMPANY, LTD.": "Pentax",
	"SAMSUNG":                     "Samsung",
	"LEICA":                       "Leica",
	"LEICA CAMERA AG":             "Leica",
	"LEAF":                        "Leaf",
	"HASSELBLAD":                  "Hasselblad",
	"SIGMA":                       "Sigma",
}

// extensionBrands maps RAW extensions that are vendor-specific to the brand
// that produces them, used when file metadata carries no maker string.
var extensionBrands = map[string]string{
	"nef": "Nikon",
	"cr2": "Canon",
	"cr3": "Canon",
	"arw": "Sony",
	"orf": "Olympus",
	"rw2": "Panasonic",
	"pef": "Pentax",
	"srw": "Samsung",
	"mos": "Leaf",
}

// Detector resolves decoder metadata to normalized camera identification.
// Configured brand/model overrides take precedence over anything detected.
type Detector struct {
	brandOverride string
	modelOverride string
}

// NewDetector creates a Detector. Non-empty brand or model override every
// detection result.
func NewDetector(brandOverride, modelOverride string) *Detector {
	return &Detector{
		brandOverride: strings.TrimSpace(brandOverride),
		modelOverride: strings.TrimSpace(modelOverride),
	}
}

// Detect resolves camera identification from decoder metadata, falling back
// to the file extension when the metadata carries no maker string. ext is
// lowercase without a leading dot.
func (d *Detector) Detect(meta codec.Metadata, ext string) Info {
	info := Info{
		Brand: NormalizeMake(meta.Make),
		Model: NormalizeModel(meta.Make, meta.Model),
	}
	if info.Brand == "" {
		info.Brand = extensionBrands[ext]
	}
	if d.brandOverride != "" {
		info.Brand = d.brandOverride
	}
	if d.modelOverride != "" {
		info.Model = d.modelOverride
	}
	return info
}

// NormalizeMake maps a raw maker string to a canonical brand name. Unknown
// makers keep their first word, title-cased by the camera vendor already.
func NormalizeMake(make string) string {
	trimmed := strings.TrimSpace(make)
	if trimmed == "" {
		return ""
	}
	if brand, ok := makeAliases[strings.ToUpper(trimmed)]; ok {
		return brand
	}
	// Many vendors append corporate suffixes not present in profile names.
	first := strings.Fields(trimmed)[0]
	if brand, ok := makeAliases[strings.ToUpper(first)]; ok {
		return brand
	}
	return first
}

// NormalizeModel strips a redundant leading maker name from the model string.
// Nikon bodies, for example, report "NIKON D750" as the model.
func NormalizeModel(make, model string) string {
	trimmed := strings.TrimSpace(model)
	if trimmed == "" {
		return ""
	}
	upper := strings.ToUpper(trimmed)
	for _, prefix := range makePrefixes(make) {
		if strings.HasPrefix(upper, prefix+" ") {
			return strings.TrimSpace(trimmed[len(prefix)+1:])
		}
	}
	return trimmed
}

// makePrefixes returns uppercase prefixes that may redundantly lead a model
// string: the raw maker string, its first word, and the canonical brand.
func makePrefixes(make string) []string {
	trimmed := strings.ToUpper(strings.TrimSpace(make))
	if trimmed == "" {
		return nil
	}
	prefixes := []string{trimmed}
	if first := strings.Fields(trimmed)[0]; first != trimmed {
		prefixes = append(prefixes, first)
	}
	if brand := NormalizeMake(make); brand != "" {
		upperBrand := strings.ToUpper(brand)
		if upperBrand != trimmed {
			prefixes = append(prefixes, upperBrand)
		}
	}
	return prefixes
}

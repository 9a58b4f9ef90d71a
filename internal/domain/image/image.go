// Package image describes specimen images returned by the image service.
package image

// Metadata is one image record of the image service.
type Metadata struct {
	ProcessID            string   `json:"processid"`
	ObjectID             string   `json:"objectid"`
	Score                *float64 `json:"score"`
	Batch                *int     `json:"batch"`
	FileName             *string  `json:"file_name"`
	SampleID             *string  `json:"sampleid"`
	Meta                 *string  `json:"meta"`
	CopyrightHolder      *string  `json:"copyright_license_holder"`
	CopyrightYear        any      `json:"copyright_license_year"`
	CopyrightLicense     *string  `json:"copyright_license"`
	CopyrightInstitution *string  `json:"copyright_license_institution"`
	Photographer         *string  `json:"photographer"`
}

// Copyright holds the license details of an image.
type Copyright struct {
	Holder      *string `json:"holder"`
	Year        any     `json:"year"`
	License     *string `json:"license"`
	Institution *string `json:"institution"`
}

// Image is an image as served to clients.
type Image struct {
	ImageURL     string    `json:"image_url"`
	ThumbnailURL string    `json:"thumbnail_url"`
	ObjectID     string    `json:"object_id"`
	Batch        *int      `json:"batch"`
	FileName     *string   `json:"file_name"`
	ProcessID    string    `json:"processid"`
	SampleID     *string   `json:"sampleid"`
	Taxon        *string   `json:"taxon"`
	Meta         *string   `json:"meta"`
	Copyright    Copyright `json:"copyright"`
	Photographer *string   `json:"photographer"`
}

// Summary groups selected images and counts their photographers.
type Summary struct {
	Images        map[string][]Image `json:"images"`
	Photographers map[string]int     `json:"photographers"`
}

// ScoreOf returns the image score, 0 when absent.
func (m Metadata) ScoreOf() float64 {
	if m.Score == nil {
		return 0
	}
	return *m.Score
}

package graph

// Video is a catalog node for one ingested video.
type Video struct {
	Filename          string
	GCSURL            string
	Division          string
	Emission          string
	Segment           string
	Language          string
	ApplicabilityType string
}

// Section is one merged chunk of a video. Sections of a video are linked in
// order with NEXT edges.
type Section struct {
	ID       string  `json:"id"`
	Filename string  `json:"filename"`
	Index    int     `json:"index"`
	Title    string  `json:"title"`
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
}

func videoToMap(v Video) map[string]any {
	return map[string]any{
		"filename":           v.Filename,
		"gcs_url":            v.GCSURL,
		"division":           v.Division,
		"emission":           v.Emission,
		"segment":            v.Segment,
		"language":           v.Language,
		"applicability_type": v.ApplicabilityType,
	}
}

func sectionToMap(s Section) map[string]any {
	return map[string]any{
		"id":    s.ID,
		"index": int64(s.Index),
		"title": s.Title,
		"start": s.Start,
		"end":   s.End,
	}
}

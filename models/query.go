package models

// QueryRequest is the body of POST /query. Pointer fields distinguish
// "absent" from zero so defaults apply only when the caller omits them.
type QueryRequest struct {
	Query               string `json:"query" binding:"required"`
	TopK                *int   `json:"top_k"`
	TopKImages          *int   `json:"top_k_images"`
	IncludeImages       *bool  `json:"include_images"`
	EnableTemporalDecay *bool  `json:"enable_temporal_decay"`
	UseBM25Fusion       *bool  `json:"use_bm25_fusion"`
}

// Defaults for omitted QueryRequest fields
const (
	DefaultTopK       = 5
	DefaultTopKImages = 3
)

// Options resolves the request into concrete retrieval options.
func (r *QueryRequest) Options() QueryOptions {
	opts := QueryOptions{
		Query:               r.Query,
		TopK:                DefaultTopK,
		TopKImages:          DefaultTopKImages,
		IncludeImages:       true,
		EnableTemporalDecay: true,
		UseBM25Fusion:       true,
	}
	if r.TopK != nil {
		opts.TopK = *r.TopK
	}
	if r.TopKImages != nil {
		opts.TopKImages = *r.TopKImages
	}
	if r.IncludeImages != nil {
		opts.IncludeImages = *r.IncludeImages
	}
	if r.EnableTemporalDecay != nil {
		opts.EnableTemporalDecay = *r.EnableTemporalDecay
	}
	if r.UseBM25Fusion != nil {
		opts.UseBM25Fusion = *r.UseBM25Fusion
	}
	return opts
}

// QueryOptions is the resolved form of a QueryRequest
type QueryOptions struct {
	Query               string
	TopK                int
	TopKImages          int
	IncludeImages       bool
	EnableTemporalDecay bool
	UseBM25Fusion       bool
}

// QueryResponse is the body of the POST /query reply
type QueryResponse struct {
	Response string           `json:"response"`
	Images   []string         `json:"images"`
	Sources  []SourceDocument `json:"sources"`
}

// SourceDocument attributes retrieved content back to the captured
// document it came from.
type SourceDocument struct {
	DocumentID        string         `json:"document_id"`
	URL               string         `json:"url,omitempty"`
	Title             string         `json:"title,omitempty"`
	Domain            string         `json:"domain,omitempty"`
	Favicon           string         `json:"favicon,omitempty"`
	Timestamp         string         `json:"timestamp,omitempty"`
	Snippet           string         `json:"snippet"`
	RelevanceScore    float64        `json:"relevance_score"`
	StructuredContent map[string]any `json:"structured_content,omitempty"`
	YouTubeVideos     any            `json:"youtube_videos,omitempty"`
	CleanHTML         string         `json:"clean_html,omitempty"`
}

// SourceImage is one stored image in a full source view
type SourceImage struct {
	URL    string `json:"url"`
	Alt    string `json:"alt"`
	Width  any    `json:"width,omitempty"`
	Height any    `json:"height,omitempty"`
}

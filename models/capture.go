package models

// SaveResponse is returned by POST /save as soon as the document is
// accepted. Indexing happens in the background after this reply.
type SaveResponse struct {
	Status              string `json:"status"`
	Message             string `json:"message"`
	DocumentID          string `json:"document_id"`
	ProcessingStatus    string `json:"processing_status"`
	TextLength          int    `json:"text_length"`
	ImageURLsCount      int    `json:"image_urls_count"`
	UploadedImagesCount int    `json:"uploaded_images_count"`
}

// ClearResponse is returned by DELETE /clear
type ClearResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// DeleteSourceResponse is returned by DELETE /source/:document_id
type DeleteSourceResponse struct {
	Status         string `json:"status"`
	DocumentID     string `json:"document_id"`
	EntriesRemoved int64  `json:"entries_removed"`
}

package dto

import (
	"lus-laboris-api/pkg/vectorstore"
)

type LoadLocalRequest struct {
	Filename          string `json:"filename" validate:"required,min=1"`
	LocalDataPath     string `json:"local_data_path,omitempty"`
	ReplaceCollection bool   `json:"replace_collection,omitempty"`
}

type LoadRemoteRequest struct {
	Filename          string `json:"filename" validate:"required,min=1"`
	Folder            string `json:"folder" validate:"required,min=1"`
	BucketName        string `json:"bucket_name" validate:"required,min=1"`
	ReplaceCollection bool   `json:"replace_collection,omitempty"`
}

// JobAcceptedResponse is returned immediately on submit; the caller polls
// the jobs endpoint for the outcome.
type JobAcceptedResponse struct {
	JobId  string    `json:"job_id"`
	Status JobStatus `json:"status"`
}

type JobListResponse struct {
	Jobs  []Job `json:"jobs"`
	Total int   `json:"total"`
}

type CollectionsResponse struct {
	Collections []vectorstore.CollectionInfo `json:"collections"`
	Total       int                          `json:"total"`
}

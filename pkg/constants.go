package shared

const (
	ProjectID = "fitglue-project" // Can be overridden by GOOGLE_CLOUD_PROJECT

	TopicPhotoUploaded = "topic-photo-uploaded"
	TopicAnalysisReady = "topic-analysis-ready"

	CollectionPhotos     = "photos"
	CollectionExecutions = "executions"

	DefaultImageBucket = "fitglue-photos"

	EventSourceExtractor   = "/vision-extractor"
	EventTypePhotoUploaded = "com.fitglue.vision.photo.uploaded"
	EventTypeAnalysisReady = "com.fitglue.vision.analysis.ready"
)

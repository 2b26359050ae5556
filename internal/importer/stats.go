package importer

// RunStats aggregates the outcome of one reconciliation run.
type RunStats struct {
	Processed            int `json:"processed"`
	NewConversations     int `json:"new_conversations"`
	SkippedConversations int `json:"skipped_conversations"`
	NewMessages          int `json:"new_messages"`
	SkippedMessages      int `json:"skipped_messages"`
	AutoAssignedProjects int `json:"auto_assigned_projects"`
	ClassifyFailures     int `json:"classify_failures"`
	Errors               int `json:"errors"`
}


package backend

import "github.com/gwlsn/augmentor/internal/options"

// envelope is the part every backend response shares.
type envelope struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
}

type uploadResponse struct {
	Filename string `json:"filename"`
	Message  string `json:"message"`
}

// ProcessRequest is the body of POST /process.
type ProcessRequest struct {
	Filename         string                       `json:"filename"`
	OutputFolder     string                       `json:"output_folder"`
	CustomOutputPath *string                      `json:"custom_output_path"`
	SelectedOptions  map[string]options.Selection `json:"selected_options"`
}

// VideoProcessRequest is the body of POST /process_video.
type VideoProcessRequest struct {
	Filename         string                 `json:"filename"`
	OutputFolder     string                 `json:"output_folder"`
	CustomOutputPath *string                `json:"custom_output_path"`
	StartTime        int                    `json:"start_time"`
	EndTime          int                    `json:"end_time"`
	SelectedOptions  options.VideoSelection `json:"selected_options"`
}

// ProcessResponse is a successful process or process_video reply.
type ProcessResponse struct {
	Message        string `json:"message"`
	ProcessedCount int    `json:"processed_count"`
	ZipFile        string `json:"zip_file"`
	StartTime      *int   `json:"start_time,omitempty"`
	EndTime        *int   `json:"end_time,omitempty"`
}

// OutputPaths is the reply of GET /get_output_paths.
type OutputPaths struct {
	CurrentPath  string   `json:"current_path"`
	DefaultPaths []string `json:"default_paths,omitempty"`
	System       string   `json:"system,omitempty"`
}

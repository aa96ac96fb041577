package model

// TTSRequest is the request for text-to-speech synthesis.
type TTSRequest struct {
	Text           string  `json:"text" validate:"required,min=1,max=5000"`
	Model          string  `json:"model,omitempty"`
	Voice          string  `json:"voice,omitempty"`
	ResponseFormat string  `json:"responseFormat,omitempty" validate:"omitempty,oneof=mp3 opus aac flac wav pcm"`
	Speed          float64 `json:"speed,omitempty" validate:"omitempty,gte=0.25,lte=4"`
}

// TranscribeRequest carries the form fields of a transcription upload. The
// audio file itself arrives as a multipart part.
type TranscribeRequest struct {
	Model       string  `json:"model,omitempty"`
	Language    string  `json:"language,omitempty"`
	Prompt      string  `json:"prompt,omitempty"`
	Temperature float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// TranscribeResponse is the transcription result.
type TranscribeResponse struct {
	Text string `json:"text"`
}

// GenerateAudioRequest is the request for prompt-driven audio generation.
type GenerateAudioRequest struct {
	Prompt      string  `json:"prompt" validate:"required,min=1,max=2000"`
	Model       string  `json:"model,omitempty"`
	Duration    float64 `json:"duration,omitempty" validate:"omitempty,gt=0,lte=120"`
	Temperature float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	TopK        int     `json:"topK,omitempty" validate:"omitempty,gte=0"`
	TopP        float64 `json:"topP,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// SpeechFileResponse reports where a synchronously generated artifact was
// saved.
type SpeechFileResponse struct {
	Path        string `json:"path"`
	ContentType string `json:"contentType,omitempty"`
	Model       string `json:"model,omitempty"`
	Voice       string `json:"voice,omitempty"`
}

// ModelListResponse lists models a backend reports as available.
type ModelListResponse struct {
	Models []string `json:"models"`
}

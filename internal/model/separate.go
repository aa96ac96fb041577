package model

// SeparateRequest starts a stem-separation job against UVR5.
type SeparateRequest struct {
	AudioPath    string      `json:"audioPath" validate:"required"`
	ModelName    string      `json:"modelName,omitempty"`
	OutputFormat AudioFormat `json:"outputFormat,omitempty" validate:"omitempty,oneof=wav flac mp3"`
	StemNaming   string      `json:"stemNaming,omitempty" validate:"omitempty,oneof=standard pair"`
}

// DefaultSeparationModel is used when the request does not name one.
const DefaultSeparationModel = "UVR-MDX-NET-Inst_HQ_3"

package model

// ConvertRequest starts a voice-conversion job against RVC. ModelName is
// mandatory; there is no sensible default voice.
type ConvertRequest struct {
	AudioPath        string      `json:"audioPath" validate:"required"`
	ModelName        string      `json:"modelName" validate:"required"`
	PitchShift       int         `json:"pitchShift,omitempty" validate:"omitempty,gte=-12,lte=12"`
	FilterRadius     int         `json:"filterRadius,omitempty" validate:"omitempty,gte=0,lte=7"`
	IndexRate        float64     `json:"indexRate,omitempty" validate:"omitempty,gte=0,lte=1"`
	RMSMixRate       float64     `json:"rmsMixRate,omitempty" validate:"omitempty,gte=0,lte=1"`
	ProtectVoiceless float64     `json:"protectVoiceless,omitempty" validate:"omitempty,gte=0,lte=0.5"`
	OutputFormat     AudioFormat `json:"outputFormat,omitempty" validate:"omitempty,oneof=wav flac mp3"`
}

// VoiceModel describes an RVC voice model.
type VoiceModel struct {
	Name        string `json:"name"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`
}

// VoiceModelListResponse lists the voice models RVC reports.
type VoiceModelListResponse struct {
	Models []VoiceModel `json:"models"`
}

package pipeline

import "slices"

// Scripts holds the scripts stage artifact.
type Scripts struct {
	MainScript   string   `json:"main_script"`
	VoiceLines   []string `json:"voice_lines"`
	ImagePrompts []string `json:"image_prompts"`
}

// State is the workflow state for one job.
type State struct {
	Step    Step   `json:"step"`
	Reached Step   `json:"reached"`
	JobID   string `json:"job_id"`

	Title       string `json:"title"`
	ChannelType string `json:"channel_type"`
	VideoMode   bool   `json:"video_mode"`

	Content string   `json:"content"`
	Scripts Scripts  `json:"scripts"`
	Images  []string `json:"images"`
	Voices  []string `json:"voices"`

	VoiceChoice string `json:"voice_choice"`
	OwnVoice    bool   `json:"own_voice"`
	// CustomVoice is the file name of the uploaded voice sample, if any.
	CustomVoice string `json:"custom_voice,omitempty"`

	MusicPath  string `json:"music_path,omitempty"`
	BGAdded    bool   `json:"bg_added"`
	Captions   bool   `json:"captions"`
	FinalVideo string `json:"final_video,omitempty"`

	Loading        bool   `json:"loading"`
	LoadingMessage string `json:"loading_message,omitempty"`
	Error          string `json:"error,omitempty"`
}

func freshState(jobID string) State {
	return State{
		JobID:     jobID,
		VideoMode: true,
		Scripts:   Scripts{VoiceLines: []string{}, ImagePrompts: []string{}},
		Images:    []string{},
		Voices:    []string{},
	}
}

// clone returns a deep copy.
func (s State) clone() State {
	out := s
	out.Scripts.VoiceLines = cloneStrings(s.Scripts.VoiceLines)
	out.Scripts.ImagePrompts = cloneStrings(s.Scripts.ImagePrompts)
	out.Images = cloneStrings(s.Images)
	out.Voices = cloneStrings(s.Voices)
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return slices.Clone(in)
}

package pipeline

import "fmt"

// Step is a position in the workflow.
type Step int

const (
	StepLanding Step = iota
	StepCreate
	StepContent
	StepScripts
	StepImages
	StepVoices
	StepAssemble
	StepMusic
	StepCaptions
	StepFinal
)

var stepNames = [...]string{
	StepLanding:  "landing",
	StepCreate:   "create",
	StepContent:  "content",
	StepScripts:  "scripts",
	StepImages:   "images",
	StepVoices:   "voices",
	StepAssemble: "assemble",
	StepMusic:    "music",
	StepCaptions: "captions",
	StepFinal:    "final",
}

func (s Step) String() string {
	if s.Valid() {
		return stepNames[s]
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// Valid reports whether s names a workflow step.
func (s Step) Valid() bool {
	return s >= StepLanding && s <= StepFinal
}

// Stage identifies a transition for logging, events, and error messages.
type Stage string

const (
	StageStart    Stage = "start"
	StageContent  Stage = "content"
	StageScripts  Stage = "scripts"
	StageImages   Stage = "images"
	StageModify   Stage = "modify_image"
	StageVoices   Stage = "voices"
	StageContinue Stage = "continue"
	StageAssemble Stage = "assemble"
	StageMusic    Stage = "music"
	StageCaptions Stage = "captions"
	StageFinal    Stage = "final"
)

type stageSpec struct {
	loading  string
	fallback string
	// allowed lists the steps the transition may be invoked from.
	allowed []Step
}

var stageSpecs = map[Stage]stageSpec{
	StageStart:    {allowed: []Step{StepLanding}},
	StageContent:  {"Generating content...", "Content generation failed", []Step{StepCreate, StepContent}},
	StageScripts:  {"Generating scripts...", "Script generation failed", []Step{StepContent, StepScripts}},
	StageImages:   {"Generating images...", "Image generation failed", []Step{StepScripts, StepImages}},
	StageModify:   {"Modifying image...", "Image modification failed", []Step{StepImages}},
	StageVoices:   {"Generating voices...", "Voice generation failed", []Step{StepImages, StepVoices}},
	StageContinue: {allowed: []Step{StepImages, StepVoices}},
	StageAssemble: {"Editing video...", "Video edit failed", []Step{StepAssemble, StepMusic}},
	StageMusic:    {"Processing background music...", "Background music step failed", []Step{StepMusic}},
	StageCaptions: {"Adding captions...", "Captioning failed", []Step{StepCaptions}},
	StageFinal:    {"Fetching final video...", "Final video fetch failed", []Step{StepFinal}},
}

func (s stageSpec) permits(step Step) bool {
	for _, candidate := range s.allowed {
		if candidate == step {
			return true
		}
	}
	return false
}

package videoapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// PromptSet is the image prompt list returned by the scripts stage. The
// service sends either image_prompts (strings) or image_prompts_detailed
// (strings or objects carrying prompt/description).
type PromptSet struct {
	Flat     []string
	Detailed []DetailedPrompt
}

// DetailedPrompt is one entry of image_prompts_detailed.
type DetailedPrompt struct {
	Prompt      string `json:"prompt"`
	Description string `json:"description"`
}

// UnmarshalJSON accepts a bare string or an object.
func (d *DetailedPrompt) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*d = DetailedPrompt{Prompt: s}
		return nil
	}
	type plain DetailedPrompt
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return fmt.Errorf("image prompt: %w", err)
	}
	*d = DetailedPrompt(p)
	return nil
}

// Text returns prompt, falling back to description.
func (d DetailedPrompt) Text() string {
	if p := strings.TrimSpace(d.Prompt); p != "" {
		return p
	}
	return strings.TrimSpace(d.Description)
}

// Prompts returns the canonical prompt list: the flat list when non-empty,
// otherwise the detailed entries reduced to text. Empty entries are dropped.
func (p PromptSet) Prompts() []string {
	out := make([]string, 0, max(len(p.Flat), len(p.Detailed)))
	for _, s := range p.Flat {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, d := range p.Detailed {
		if text := d.Text(); text != "" {
			out = append(out, text)
		}
	}
	return out
}

// VoicePaths is the voice stage result: an explicit ordered list or a single
// directory prefix to expand.
type VoicePaths struct {
	List   []string
	Prefix string
	isList bool
}

// UnmarshalJSON accepts a list of strings or a single string.
func (v *VoicePaths) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		*v = VoicePaths{}
	case trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*v = VoicePaths{Prefix: s}
	case trimmed[0] == '[':
		var list []string
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return fmt.Errorf("voice paths: %w", err)
		}
		*v = VoicePaths{List: list, isList: true}
	default:
		return fmt.Errorf("voice paths: unexpected json %s", trimmed)
	}
	return nil
}

// IsZero reports whether neither form was supplied.
func (v VoicePaths) IsZero() bool {
	return !v.isList && len(v.List) == 0 && v.Prefix == ""
}

// Expand returns relative voice paths for n voice lines. A prefix yields
// voicescript1.wav..voicescriptN.wav under that directory. Backslashes become
// forward slashes.
func (v VoicePaths) Expand(n int) []string {
	var out []string
	if v.isList || len(v.List) > 0 {
		out = make([]string, 0, len(v.List))
		out = append(out, v.List...)
	} else if v.Prefix != "" {
		base := v.Prefix
		if !strings.HasSuffix(base, "/") && !strings.HasSuffix(base, `\`) {
			base += "/"
		}
		out = make([]string, 0, n)
		for i := 1; i <= n; i++ {
			out = append(out, base+"voicescript"+strconv.Itoa(i)+".wav")
		}
	}
	for i, p := range out {
		out[i] = strings.ReplaceAll(p, `\`, "/")
	}
	return out
}

// VoicesFromList builds a list-form VoicePaths.
func VoicesFromList(paths ...string) VoicePaths {
	return VoicePaths{List: paths, isList: true}
}

// VoicesFromPrefix builds a prefix-form VoicePaths.
func VoicesFromPrefix(prefix string) VoicePaths {
	return VoicePaths{Prefix: prefix}
}

// Scripts is the normalized scripts stage result.
type Scripts struct {
	Script       string
	VoiceScripts []string
	Prompts      PromptSet
}

type scriptsWire struct {
	Script               string           `json:"script"`
	VoiceScripts         []string         `json:"voice_scripts"`
	ImagePrompts         []string         `json:"image_prompts"`
	ImagePromptsDetailed []DetailedPrompt `json:"image_prompts_detailed"`
}

// UnmarshalJSON decodes the scripts envelope.
func (s *Scripts) UnmarshalJSON(data []byte) error {
	var w scriptsWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("scripts response: %w", err)
	}
	*s = Scripts{
		Script:       w.Script,
		VoiceScripts: w.VoiceScripts,
		Prompts:      PromptSet{Flat: w.ImagePrompts, Detailed: w.ImagePromptsDetailed},
	}
	return nil
}

type voicesWire struct {
	VoicePaths json.RawMessage `json:"voice_paths"`
	VoiceFiles json.RawMessage `json:"voice_files"`
}

// decodeVoicePaths prefers voice_paths unless it is absent, null, or an
// empty string, then falls back to voice_files.
func decodeVoicePaths(data []byte) (VoicePaths, error) {
	var w voicesWire
	if err := json.Unmarshal(data, &w); err != nil {
		return VoicePaths{}, fmt.Errorf("voices response: %w", err)
	}
	for _, raw := range []json.RawMessage{w.VoicePaths, w.VoiceFiles} {
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte(`""`)) {
			continue
		}
		var v VoicePaths
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return VoicePaths{}, err
		}
		return v, nil
	}
	return VoicePaths{}, nil
}

// FinalFilename maps the music and caption flags onto the render the service
// produced.
func FinalFilename(musicAdded, captions bool) string {
	switch {
	case captions:
		return "output_with_glowing_captions.mp4"
	case musicAdded:
		return "youtube_shorts_with_music.mp4"
	default:
		return "youtube_shorts.mp4"
	}
}

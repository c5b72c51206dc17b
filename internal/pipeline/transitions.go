package pipeline

import (
	"context"
	"strings"

	"reelcraft/internal/locator"
	"reelcraft/internal/services"
	"reelcraft/internal/videoapi"
)

// MusicOptions configures the background music step.
type MusicOptions struct {
	// Track is mixed into the video when non-nil.
	Track *videoapi.Upload
	// Captions routes to the captions step instead of fetching the final
	// render directly.
	Captions bool
}

// Start leaves the landing step.
func (m *Machine) Start(ctx context.Context) error {
	return m.immediate(ctx, StageStart, nil, StepCreate, false)
}

// Continue advances without a request: images to voices once images exist,
// voices to assembly once voices exist.
func (m *Machine) Continue(ctx context.Context) error {
	m.mu.Lock()
	from := m.state.Step
	m.mu.Unlock()

	to := from + 1
	check := func(s *State, _ *videoapi.Upload) error {
		switch s.Step {
		case StepImages:
			if len(s.Images) == 0 {
				return preconditionError("Generate images first")
			}
		case StepVoices:
			if len(s.Voices) == 0 {
				return preconditionError("Generate voices first")
			}
		}
		if s.Step != from {
			return preconditionError("Step changed, try again")
		}
		return nil
	}
	return m.immediate(ctx, StageContinue, check, to, true)
}

// GenerateContent runs the content stage from the title seed.
func (m *Machine) GenerateContent(ctx context.Context) error {
	check := func(s *State, _ *videoapi.Upload) error {
		if strings.TrimSpace(s.Title) == "" {
			return preconditionError("Enter a title first")
		}
		return nil
	}
	return m.run(ctx, StageContent, check, func(ctx context.Context, t task) (outcome, error) {
		s := t.snapshot
		content, err := m.api.GenerateContent(ctx, videoapi.ContentRequest{
			Title:       s.Title,
			VideoMode:   s.VideoMode,
			ChannelType: strings.TrimSpace(s.ChannelType),
		})
		if err != nil {
			return outcome{}, err
		}
		return outcome{to: StepContent, commit: func(st *State) { st.Content = content }}, nil
	})
}

// GenerateScripts runs the scripts stage from the content.
func (m *Machine) GenerateScripts(ctx context.Context) error {
	check := func(s *State, _ *videoapi.Upload) error {
		if strings.TrimSpace(s.Content) == "" {
			return preconditionError("Generate content first")
		}
		return nil
	}
	return m.run(ctx, StageScripts, check, func(ctx context.Context, t task) (outcome, error) {
		s := t.snapshot
		scripts, err := m.api.GenerateScripts(ctx, videoapi.ScriptsRequest{
			Title:       s.Title,
			Content:     s.Content,
			VideoMode:   s.VideoMode,
			ChannelType: strings.TrimSpace(s.ChannelType),
		})
		if err != nil {
			return outcome{}, err
		}
		normalized := Scripts{
			MainScript:   scripts.Script,
			VoiceLines:   cloneStrings(scripts.VoiceScripts),
			ImagePrompts: cloneStrings(scripts.Prompts.Prompts()),
		}
		return outcome{to: StepScripts, commit: func(st *State) { st.Scripts = normalized }}, nil
	})
}

// GenerateImages runs the images stage from the image prompts.
func (m *Machine) GenerateImages(ctx context.Context) error {
	check := func(s *State, _ *videoapi.Upload) error {
		if len(s.Scripts.ImagePrompts) == 0 {
			return preconditionError("No image prompts available")
		}
		return nil
	}
	return m.run(ctx, StageImages, check, func(ctx context.Context, t task) (outcome, error) {
		s := t.snapshot
		paths, err := m.api.GenerateImages(ctx, s.Scripts.ImagePrompts, s.VideoMode)
		if err != nil {
			return outcome{}, err
		}
		seen := make(map[string]struct{}, len(paths))
		images := make([]string, 0, len(paths))
		for _, p := range paths {
			base := locator.StripQuery(strings.TrimSpace(p))
			if _, dup := seen[base]; dup {
				return outcome{}, services.Wrap(services.ErrApplication, string(StageImages), "normalize",
					"Image service returned duplicate image paths", nil)
			}
			seen[base] = struct{}{}
			images = append(images, m.assets.Busted(base))
		}
		return outcome{to: StepImages, commit: func(st *State) { st.Images = images }}, nil
	})
}

// ModifyImage regenerates the image at target with prompt. target is a
// locator from State.Images, with or without its cache-busting query, or a
// server-relative path.
func (m *Machine) ModifyImage(ctx context.Context, target, prompt string) error {
	prompt = strings.TrimSpace(prompt)
	base := m.imageBase(target)
	index := -1
	check := func(s *State, _ *videoapi.Upload) error {
		if base == "" {
			return preconditionError("Select an image to modify")
		}
		if prompt == "" {
			return preconditionError("Describe the change to make")
		}
		matches := 0
		for i, img := range s.Images {
			if locator.StripQuery(img) == base {
				index = i
				matches++
			}
		}
		switch matches {
		case 0:
			return preconditionError("Image not found in this job")
		case 1:
			return nil
		default:
			return preconditionError("Image path is ambiguous")
		}
	}
	return m.run(ctx, StageModify, check, func(ctx context.Context, t task) (outcome, error) {
		rel := m.assets.ToRelative(base)
		if err := m.api.ModifyImage(ctx, rel, prompt, t.snapshot.VideoMode); err != nil {
			return outcome{}, err
		}
		busted := m.assets.Busted(rel)
		return outcome{to: StepImages, keepReached: true, commit: func(st *State) {
			if index >= 0 && index < len(st.Images) {
				st.Images[index] = busted
			}
		}}, nil
	})
}

func (m *Machine) imageBase(target string) string {
	base := locator.StripQuery(strings.TrimSpace(target))
	if base == "" {
		return ""
	}
	if !locator.HasScheme(base) {
		root := m.assets.Root()
		if root == "" || !strings.HasPrefix(base, root+"/") {
			base = m.assets.Resolve(base)
		}
	}
	return base
}

// GenerateVoices runs the voice stage, uploading the custom voice sample
// first when own voice is selected.
func (m *Machine) GenerateVoices(ctx context.Context) error {
	check := func(s *State, custom *videoapi.Upload) error {
		if len(s.Scripts.VoiceLines) == 0 {
			return preconditionError("No voice lines available")
		}
		if s.OwnVoice && custom != nil {
			if err := custom.Validate(); err != nil {
				return services.Wrap(services.ErrPrecondition, "", "", "Voice sample cannot be read", err)
			}
		}
		return nil
	}
	return m.run(ctx, StageVoices, check, func(ctx context.Context, t task) (outcome, error) {
		s := t.snapshot
		req := videoapi.VoicesRequest{
			Sentences: s.Scripts.VoiceLines,
			Voice:     strings.TrimSpace(s.VoiceChoice),
			OwnVoice:  s.OwnVoice,
			VideoMode: s.VideoMode,
		}
		if s.OwnVoice && t.custom != nil {
			if _, err := m.api.UploadCustomVoice(ctx, t.custom); err != nil {
				return outcome{}, err
			}
			req.Voice = ""
		}
		paths, err := m.api.GenerateVoices(ctx, req)
		if err != nil {
			return outcome{}, err
		}
		expanded := paths.Expand(len(s.Scripts.VoiceLines))
		voices := make([]string, 0, len(expanded))
		for _, p := range expanded {
			voices = append(voices, m.assets.Busted(p))
		}
		return outcome{to: StepVoices, commit: func(st *State) { st.Voices = voices }}, nil
	})
}

// Assemble edits images and voices into a video.
func (m *Machine) Assemble(ctx context.Context) error {
	check := func(s *State, _ *videoapi.Upload) error {
		if len(s.Images) == 0 || len(s.Voices) == 0 {
			return preconditionError("Images and voices are required before editing")
		}
		return nil
	}
	return m.run(ctx, StageAssemble, check, func(ctx context.Context, t task) (outcome, error) {
		if err := m.api.Edit(ctx, t.snapshot.VideoMode); err != nil {
			return outcome{}, err
		}
		return outcome{to: StepMusic, commit: func(st *State) {
			st.MusicPath = ""
			st.BGAdded = false
			st.Captions = false
			st.FinalVideo = ""
		}}, nil
	})
}

// AddMusic optionally mixes a background track, then either moves to the
// captions step or fetches the final render.
func (m *Machine) AddMusic(ctx context.Context, opts MusicOptions) error {
	check := func(_ *State, _ *videoapi.Upload) error {
		if opts.Track != nil {
			if err := opts.Track.Validate(); err != nil {
				return services.Wrap(services.ErrPrecondition, "", "", "Music file cannot be read", err)
			}
		}
		return nil
	}
	return m.run(ctx, StageMusic, check, func(ctx context.Context, t task) (outcome, error) {
		s := t.snapshot
		musicPath := ""
		if opts.Track != nil {
			uploaded, err := m.api.UploadMusic(ctx, opts.Track)
			if err != nil {
				return outcome{}, err
			}
			if err := m.api.AddMusic(ctx, uploaded, s.VideoMode); err != nil {
				return outcome{}, err
			}
			musicPath = uploaded
		}
		added := opts.Track != nil

		if opts.Captions {
			return outcome{to: StepCaptions, commit: func(st *State) {
				st.MusicPath = musicPath
				st.BGAdded = added
				st.Captions = false
				st.FinalVideo = ""
			}}, nil
		}

		m.setLoadingMessage(t, stageSpecs[StageFinal].loading)
		final, err := m.fetchFinal(ctx, added, false)
		if err != nil {
			return outcome{}, err
		}
		return outcome{to: StepFinal, locator: final, commit: func(st *State) {
			st.MusicPath = musicPath
			st.BGAdded = added
			st.Captions = false
			st.FinalVideo = final
		}}, nil
	})
}

// AddCaptions burns captions in and fetches the final render.
func (m *Machine) AddCaptions(ctx context.Context) error {
	return m.run(ctx, StageCaptions, nil, func(ctx context.Context, t task) (outcome, error) {
		s := t.snapshot
		if err := m.api.AddCaptions(ctx, s.VideoMode); err != nil {
			return outcome{}, err
		}
		m.setLoadingMessage(t, stageSpecs[StageFinal].loading)
		final, err := m.fetchFinal(ctx, s.BGAdded, true)
		if err != nil {
			return outcome{}, err
		}
		return outcome{to: StepFinal, locator: final, commit: func(st *State) {
			st.Captions = true
			st.FinalVideo = final
		}}, nil
	})
}

// RefreshFinal re-fetches the final render with a fresh cache token.
func (m *Machine) RefreshFinal(ctx context.Context) error {
	return m.run(ctx, StageFinal, nil, func(ctx context.Context, t task) (outcome, error) {
		s := t.snapshot
		final, err := m.fetchFinal(ctx, s.BGAdded, s.Captions)
		if err != nil {
			return outcome{}, err
		}
		return outcome{to: StepFinal, keepReached: true, locator: final, commit: func(st *State) { st.FinalVideo = final }}, nil
	})
}

func (m *Machine) fetchFinal(ctx context.Context, musicAdded, captions bool) (string, error) {
	file := videoapi.FinalFilename(musicAdded, captions)
	token := m.nextToken()
	if err := m.api.ProbeFinalVideo(ctx, file, token); err != nil {
		return "", services.Wrap(markerFor(err), string(StageFinal), "probe", "Final video fetch failed", err)
	}
	return m.api.FinalVideoURL(file, token), nil
}

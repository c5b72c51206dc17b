package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"reelcraft/internal/logging"
	"reelcraft/internal/pipeline"
	"reelcraft/internal/services"
	"reelcraft/internal/videoapi"
)

const maxUploadBytes = 64 << 20

type stateResponse struct {
	State pipeline.State `json:"state"`
	Busy  bool           `json:"busy"`
}

type settingsRequest struct {
	Title       *string `json:"title"`
	ChannelType *string `json:"channel_type"`
	Voice       *string `json:"voice"`
	OwnVoice    *bool   `json:"own_voice"`
	VideoMode   *bool   `json:"video_mode"`
}

type gotoRequest struct {
	Step int `json:"step"`
}

type modifyImageRequest struct {
	Target string `json:"target"`
	Prompt string `json:"prompt"`
}

type musicRequest struct {
	Captions bool `json:"captions"`
}

// transition is a prepared stage call. Request bodies are consumed before
// the response is written, so the call itself only needs a context.
type transition func(ctx context.Context) error

func (s *Server) state() stateResponse {
	return stateResponse{State: s.pipeline.Snapshot(), Busy: s.pipeline.Busy()}
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Title != nil {
		s.pipeline.SetTitle(*req.Title)
	}
	if req.ChannelType != nil {
		s.pipeline.SetChannelType(*req.ChannelType)
	}
	if req.Voice != nil {
		s.pipeline.SetVoiceChoice(*req.Voice)
	}
	if req.OwnVoice != nil {
		s.pipeline.SetOwnVoice(*req.OwnVoice)
	}
	if req.VideoMode != nil {
		s.pipeline.SetVideoMode(s.scope, *req.VideoMode)
	}
	s.writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	s.pipeline.Reset()
	s.writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleGoTo(w http.ResponseWriter, r *http.Request) {
	var req gotoRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.pipeline.GoTo(pipeline.Step(req.Step)); err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")
	if s.pipeline.Busy() {
		s.writeError(w, http.StatusConflict, services.ErrBusy.Error())
		return
	}
	run, err := s.prepare(action, r)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	requestID, _ := services.RequestIDFromContext(r.Context())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx := services.WithRequestID(s.scope, requestID)
		if err := run(ctx); err != nil && !errors.Is(err, pipeline.ErrReset) {
			logging.WarnWithContext(logging.WithContext(ctx, s.logger), "bridge transition failed", "bridge_transition_failed",
				logging.String("action", action),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "GET /api/state for the surfaced message"),
			)
		}
	}()
	s.writeJSON(w, http.StatusAccepted, s.state())
}

func (s *Server) prepare(action string, r *http.Request) (transition, error) {
	p := s.pipeline
	switch action {
	case "start":
		return p.Start, nil
	case "continue":
		return p.Continue, nil
	case "content":
		return p.GenerateContent, nil
	case "scripts":
		return p.GenerateScripts, nil
	case "images":
		return p.GenerateImages, nil
	case "assemble":
		return p.Assemble, nil
	case "captions":
		return p.AddCaptions, nil
	case "final":
		return p.RefreshFinal, nil
	case "modify-image":
		var req modifyImageRequest
		if err := decodeJSON(r, &req); err != nil {
			return nil, services.Wrap(services.ErrValidation, "bridge", "modify-image", err.Error(), nil)
		}
		if strings.TrimSpace(req.Target) == "" || strings.TrimSpace(req.Prompt) == "" {
			return nil, services.Wrap(services.ErrValidation, "bridge", "modify-image", "target and prompt are required", nil)
		}
		return func(ctx context.Context) error { return p.ModifyImage(ctx, req.Target, req.Prompt) }, nil
	case "voices":
		upload, _, err := readUpload(r, "voice_file")
		if err != nil {
			return nil, err
		}
		if upload != nil {
			p.SetCustomVoice(upload)
			p.SetOwnVoice(true)
		}
		return p.GenerateVoices, nil
	case "music":
		upload, form, err := readUpload(r, "music_file")
		if err != nil {
			return nil, err
		}
		opts := pipeline.MusicOptions{Track: upload}
		if form {
			opts.Captions, _ = strconv.ParseBool(r.FormValue("captions"))
		} else if r.ContentLength != 0 {
			var req musicRequest
			if err := decodeJSON(r, &req); err != nil {
				return nil, services.Wrap(services.ErrValidation, "bridge", "music", err.Error(), nil)
			}
			opts.Captions = req.Captions
		}
		return func(ctx context.Context) error { return p.AddMusic(ctx, opts) }, nil
	default:
		return nil, services.Wrap(services.ErrNotFound, "bridge", action, fmt.Sprintf("unknown action %q", action), nil)
	}
}

// readUpload buffers an optional multipart file. form reports whether the
// request was multipart at all.
func readUpload(r *http.Request, field string) (upload *videoapi.Upload, form bool, err error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return nil, false, nil
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, true, services.Wrap(services.ErrValidation, "bridge", "upload", "invalid multipart body", err)
	}
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, true, nil
	}
	if err != nil {
		return nil, true, services.Wrap(services.ErrValidation, "bridge", "upload", "invalid "+field, err)
	}
	defer file.Close()
	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return nil, true, services.Wrap(services.ErrValidation, "bridge", "upload", "read "+field, err)
	}
	return videoapi.ReaderUpload(header.Filename, string(content)), true, nil
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

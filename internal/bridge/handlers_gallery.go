package bridge

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"reelcraft/internal/gallery"
)

type galleryResponse struct {
	Items []gallery.Asset `json:"items"`
}

type renameRequest struct {
	NewName string `json:"new_name"`
}

func (s *Server) handleGalleryList(w http.ResponseWriter, r *http.Request) {
	if s.gallery == nil {
		s.writeError(w, http.StatusNotFound, "gallery not available")
		return
	}
	items := s.gallery.Items()
	if refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh")); refresh {
		var err error
		items, err = s.gallery.Refresh(r.Context())
		if err != nil {
			s.writeFailure(w, err)
			return
		}
	}
	if items == nil {
		items = []gallery.Asset{}
	}
	s.writeJSON(w, http.StatusOK, galleryResponse{Items: items})
}

// handleGalleryRename applies the rename locally and answers at once; the
// server call is retried in the background and rolled back on give-up.
func (s *Server) handleGalleryRename(w http.ResponseWriter, r *http.Request) {
	if s.gallery == nil {
		s.writeError(w, http.StatusNotFound, "gallery not available")
		return
	}
	var req renameRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	name := itemName(r)
	target, err := s.gallery.Rename(r.Context(), name, req.NewName)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"old": name, "new": target})
}

func (s *Server) handleGalleryDelete(w http.ResponseWriter, r *http.Request) {
	if s.gallery == nil {
		s.writeError(w, http.StatusNotFound, "gallery not available")
		return
	}
	name := itemName(r)
	if err := s.gallery.Delete(r.Context(), name); err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"deleted": name})
}

// itemName returns the decoded {name} segment. chi matches on RawPath when
// the request carried escapes that Path cannot round-trip.
func itemName(r *http.Request) string {
	name := chi.URLParam(r, "name")
	if r.URL.RawPath == "" {
		return name
	}
	if decoded, err := url.PathUnescape(name); err == nil {
		return decoded
	}
	return name
}

package transport

import (
	"net/http"
	"sort"

	"github.com/pitabwire/workdesk/model"
)

func handleAssets(engines Engines) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, ok := sessionEngine(w, r, engines, false)
		if !ok {
			return
		}
		assets, err := e.Assets(r.Context(), r.URL.Query().Get("q"))
		if err != nil {
			writeRequestError(r.Context(), w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"items": nonNil(assets)})
	}
}

func handleTechnicians(engines Engines) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, ok := sessionEngine(w, r, engines, false)
		if !ok {
			return
		}
		techs, err := e.Technicians(r.Context())
		if err != nil {
			writeRequestError(r.Context(), w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"items": nonNil(techs)})
	}
}

func handleSpareParts(engines Engines) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, ok := sessionEngine(w, r, engines, false)
		if !ok {
			return
		}
		parts, err := e.SpareParts(r.Context())
		if err != nil {
			writeRequestError(r.Context(), w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"items": nonNil(parts)})
	}
}

type sessionResponse struct {
	SubjectID    string     `json:"subjectId"`
	Email        string     `json:"email,omitempty"`
	Name         string     `json:"name,omitempty"`
	Role         model.Role `json:"role,omitempty"`
	Timezone     string     `json:"timezone"`
	Capabilities []string   `json:"capabilities"`
}

// handleSession describes the caller. Capabilities are affordance hints;
// the API decides what is allowed.
func handleSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := model.SessionFrom(r.Context())
		if s == nil {
			WriteError(w, model.NewUnauthorizedError("missing session"))
			return
		}
		caps := CapabilitiesFrom(r.Context()).List()
		sort.Strings(caps)
		WriteJSON(w, http.StatusOK, sessionResponse{
			SubjectID:    s.SubjectID,
			Email:        s.Email,
			Name:         s.Name,
			Role:         s.Role,
			Timezone:     s.Location().String(),
			Capabilities: caps,
		})
	}
}

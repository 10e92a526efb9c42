package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"persona_ad_studio/catalog"
	"persona_ad_studio/config"
	"persona_ad_studio/generator"
	"persona_ad_studio/persona"
)

const (
	msgOptimizeRequired = "Original image, prompt, and personas array are required"
	msgVariateDone      = "Analysis and variations completed successfully"
	msgVariateFailed    = "Error processing request"
)

// --- Image refinement ---

type generateImageReq struct {
	Prompt      string `json:"prompt"`
	Quality     string `json:"quality"`
	MaxAttempts int    `json:"maxAttempts"`
}

func (s *Server) handleGenerateImage(w http.ResponseWriter, r *http.Request) {
	var req generateImageReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "Prompt is required")
		return
	}
	if req.Quality != "" && !config.ValidQuality(req.Quality) {
		writeError(w, http.StatusBadRequest, "Quality must be one of low, medium, high, auto")
		return
	}
	refineReq := generator.RefineRequest{Prompt: req.Prompt, Quality: req.Quality}
	if req.MaxAttempts != 0 {
		refineReq.MaxAttempts = config.ClampAttempts(req.MaxAttempts)
	}

	sse := newSSEWriter(w)
	for ev := range s.refiner.Stream(r.Context(), refineReq) {
		if err := sse.send(ev); err != nil {
			s.log.Warn("sse write failed", "err", err)
			return
		}
	}
}

// --- Persona visual variation ---

type optimizeReq struct {
	OriginalImage string          `json:"originalImage"`
	Prompt        string          `json:"prompt"`
	Personas      json.RawMessage `json:"personas"`
	Quality       string          `json:"quality"`
	SessionID     string          `json:"sessionId"`
}

type optimizeResp struct {
	Variations       []persona.VisualVariation `json:"variations"`
	OptimizationCost string                    `json:"optimizationCost"`
}

func (s *Server) handleOptimizeForPersonas(w http.ResponseWriter, r *http.Request) {
	var req optimizeReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.OriginalImage == "" || strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, msgOptimizeRequired)
		return
	}
	personas, status, err := s.resolvePersonas(req.Personas, req.SessionID)
	if err != nil {
		if status == http.StatusBadRequest {
			writeError(w, status, msgOptimizeRequired)
			return
		}
		writeError(w, status, err.Error())
		return
	}
	if req.Quality != "" && !config.ValidQuality(req.Quality) {
		writeError(w, http.StatusBadRequest, "Quality must be one of low, medium, high, auto")
		return
	}
	img, err := generator.DecodeImage(req.OriginalImage)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Original image must be base64 image data")
		return
	}

	res, err := s.variator.Run(r.Context(), persona.VisualRequest{
		Image:         img,
		OriginalImage: req.OriginalImage,
		Prompt:        req.Prompt,
		Personas:      personas,
		Quality:       req.Quality,
	})
	if err != nil {
		s.log.Error("persona optimization failed", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, optimizeResp{
		Variations:       res.Variations,
		OptimizationCost: generator.FormatCost(res.Cost),
	})
}

// --- Persona copy variation ---

type variateReq struct {
	Personas           json.RawMessage `json:"personas"`
	ProductDescription string          `json:"productDescription"`
	UploadedAdImage    json.RawMessage `json:"uploadedAdImage"`
	AdImagePath        json.RawMessage `json:"adImagePath"`
	SessionID          string          `json:"sessionId"`
}

type variateResp struct {
	Success         bool                `json:"success"`
	Message         string              `json:"message"`
	AdImageAnalysis *persona.AdAnalysis `json:"adImageAnalysis,omitempty"`
	Results         []persona.Variation `json:"results,omitempty"`
}

func variateFail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, variateResp{Success: false, Message: msg})
}

func (s *Server) handleVariate(w http.ResponseWriter, r *http.Request) {
	var req variateReq
	if err := decodeJSON(w, r, &req); err != nil {
		variateFail(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	img, msg := s.loadAdImage(req)
	if msg != "" {
		variateFail(w, http.StatusBadRequest, msg)
		return
	}
	personas, status, err := s.resolvePersonas(req.Personas, req.SessionID)
	if err != nil {
		variateFail(w, status, upperFirst(err.Error()))
		return
	}
	if strings.TrimSpace(req.ProductDescription) == "" {
		variateFail(w, http.StatusBadRequest, "Product description is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout())
	defer cancel()
	res, err := s.pipeline.Run(ctx, persona.CopyRequest{
		Personas:           personas,
		ProductDescription: req.ProductDescription,
		AdImage:            img,
	})
	switch {
	case err == nil:
	case errors.Is(err, persona.ErrNoAdImage), errors.Is(err, persona.ErrNoPersonas), errors.Is(err, persona.ErrNoDescription):
		variateFail(w, http.StatusBadRequest, upperFirst(err.Error()))
		return
	case errors.Is(err, persona.ErrAnalysisInvalid):
		s.log.Error("ad analysis invalid", "err", err)
		variateFail(w, http.StatusInternalServerError, "Image analysis parsing failed")
		return
	default:
		s.log.Error("variate failed", "err", err)
		variateFail(w, http.StatusInternalServerError, msgVariateFailed)
		return
	}

	writeJSON(w, http.StatusOK, variateResp{
		Success:         true,
		Message:         msgVariateDone,
		AdImageAnalysis: &res.Analysis,
		Results:         res.Results,
	})
}

// loadAdImage picks the uploaded image over a catalogue path. A non-empty
// message is the client error to return.
func (s *Server) loadAdImage(req variateReq) (generator.Image, string) {
	if present(req.UploadedAdImage) {
		var b64 string
		if err := json.Unmarshal(req.UploadedAdImage, &b64); err != nil {
			return generator.Image{}, "Uploaded ad image must be a base64 string."
		}
		if b64 != "" {
			img, err := generator.DecodeImage(b64)
			if err != nil {
				return generator.Image{}, "Uploaded ad image must be a base64 string."
			}
			return img, ""
		}
	}
	if present(req.AdImagePath) {
		var ref string
		if err := json.Unmarshal(req.AdImagePath, &ref); err != nil {
			return generator.Image{}, "Ad image path must be a string."
		}
		if ref != "" {
			data, err := s.catalog.ReadAd(ref)
			if err != nil {
				if !errors.Is(err, catalog.ErrInvalidAdPath) {
					s.log.Warn("ad image unreadable", "path", ref, "err", err)
				}
				return generator.Image{}, "Ad image could not be loaded"
			}
			return generator.Image{Data: data, MimeType: http.DetectContentType(data)}, ""
		}
	}
	return generator.Image{}, "No ad image provided"
}

// resolvePersonas decodes the personas field, falling back to the visitor
// session's set when it is omitted. With a session, supplied ids select
// from the session's personas.
func (s *Server) resolvePersonas(raw json.RawMessage, sessionID string) ([]persona.Persona, int, error) {
	var active []persona.Persona
	if sessionID != "" {
		sess, ok := s.store.get(sessionID)
		if !ok {
			return nil, http.StatusNotFound, errSessionNotFound
		}
		active = sess.Personas
	}
	if !present(raw) {
		if active != nil {
			return active, 0, nil
		}
		return nil, http.StatusBadRequest, persona.ErrNoPersonas
	}
	var personas []persona.Persona
	if err := json.Unmarshal(raw, &personas); err != nil {
		return nil, http.StatusBadRequest, errors.New("personas must be an array")
	}
	if err := persona.ValidatePersonas(personas, active); err != nil {
		return nil, http.StatusBadRequest, err
	}
	// session personas win over the request body; bios change only through
	// the session edit endpoint
	if active != nil {
		for i, p := range personas {
			stored, _ := persona.Find(active, strings.TrimSpace(p.ID))
			personas[i] = stored
		}
	}
	return personas, 0, nil
}

func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// --- Catalogue and visitor sessions ---

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog)
}

func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	sess := s.store.create(s.catalog.SeedPersonas())
	s.log.Info("visitor session created", "session_id", sess.ID)
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.store.get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

type personaUpdateReq struct {
	Bio string `json:"bio"`
}

func (s *Server) handlePersonaUpdate(w http.ResponseWriter, r *http.Request) {
	var req personaUpdateReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	bio := strings.TrimSpace(req.Bio)
	if bio == "" {
		writeError(w, http.StatusBadRequest, "Bio is required")
		return
	}
	sess, err := s.store.updateBio(chi.URLParam(r, "id"), chi.URLParam(r, "personaID"), bio)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

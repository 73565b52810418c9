package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/mindmark/internal/apperr"
	"github.com/starford/mindmark/internal/converter"
	"github.com/starford/mindmark/internal/metrics"
)

// decodeInput reads a request document. Markdown travels as a JSON string,
// the other formats as JSON objects.
func decodeInput(raw json.RawMessage, format converter.Format) (any, error) {
	if format == converter.FormatMarkdown {
		var md string
		if err := json.Unmarshal(raw, &md); err != nil {
			return nil, fmt.Errorf("markdown input must be a JSON string: %w", apperr.ErrInvalidInput)
		}
		return md, nil
	}
	return converter.Decode(raw, format)
}

func (h *Handler) readDocument(w http.ResponseWriter, r *http.Request) (any, converter.Format, bool) {
	var req DocumentRequest
	if !readJSON(w, r, &req) {
		return nil, "", false
	}
	format, err := converter.ParseFormat(req.Format)
	if err != nil {
		writeError(w, "decode document", err)
		return nil, "", false
	}
	data, err := decodeInput(req.Input, format)
	if err != nil {
		writeError(w, "decode document", err)
		return nil, "", false
	}
	return data, format, true
}

// Convert handles POST /api/convert.
//
//	@Summary		Convert a document between markdown, ast and nodetree
//	@Tags			convert
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ConvertRequest	true	"Document and formats"
//	@Success		200		{object}	ConvertResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/convert [post]
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	var req ConvertRequest
	if !readJSON(w, r, &req) {
		return
	}
	from, err := converter.ParseFormat(req.From)
	if err != nil {
		writeError(w, "convert", err)
		return
	}
	to, err := converter.ParseFormat(req.To)
	if err != nil {
		writeError(w, "convert", err)
		return
	}
	data, err := decodeInput(req.Input, from)
	if err != nil {
		writeError(w, "convert", err)
		return
	}

	start := time.Now()
	out, err := h.svc.Converter().Convert(data, from, to)
	metrics.ObserveConversion(string(from)+"_to_"+string(to), start, err)
	if err != nil {
		writeError(w, "convert", err)
		return
	}
	writeJSON(w, http.StatusOK, ConvertResponse{Format: string(to), Output: out})
}

// Validate handles POST /api/validate.
//
//	@Summary		Check the structure of a document
//	@Tags			convert
//	@Accept			json
//	@Produce		json
//	@Param			body	body		DocumentRequest	true	"Document"
//	@Success		200		{object}	ValidateResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/validate [post]
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	data, format, ok := h.readDocument(w, r)
	if !ok {
		return
	}
	start := time.Now()
	err := h.svc.Converter().Validate(data, format)
	metrics.ObserveConversion("validate", start, nil)

	var verrs validation.Errors
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, ValidateResponse{Valid: true})
	case errors.As(err, &verrs):
		writeJSON(w, http.StatusOK, ValidateResponse{Valid: false, Errors: verrs})
	default:
		writeError(w, "validate", err)
	}
}

// RoundTrip handles POST /api/roundtrip.
//
//	@Summary		Check that a document survives the full conversion cycle
//	@Tags			convert
//	@Accept			json
//	@Produce		json
//	@Param			body	body		DocumentRequest	true	"Document"
//	@Success		200		{object}	converter.RoundTrip
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/roundtrip [post]
func (h *Handler) RoundTrip(w http.ResponseWriter, r *http.Request) {
	data, format, ok := h.readDocument(w, r)
	if !ok {
		return
	}
	start := time.Now()
	rt, err := h.svc.Converter().RoundTripTest(data, format)
	metrics.ObserveConversion("roundtrip", start, err)
	if err != nil {
		writeError(w, "roundtrip", err)
		return
	}
	writeJSON(w, http.StatusOK, rt)
}

// Stats handles POST /api/stats.
//
//	@Summary		Count nodes by type and measure depth
//	@Tags			convert
//	@Accept			json
//	@Produce		json
//	@Param			body	body		DocumentRequest	true	"Document"
//	@Success		200		{object}	converter.Stats
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/stats [post]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	data, format, ok := h.readDocument(w, r)
	if !ok {
		return
	}
	start := time.Now()
	st, err := h.svc.Converter().GetStats(data, format)
	metrics.ObserveConversion("stats", start, err)
	if err != nil {
		writeError(w, "stats", err)
		return
	}
	metrics.ObserveDocumentNodes(st.TotalNodes)
	writeJSON(w, http.StatusOK, st)
}

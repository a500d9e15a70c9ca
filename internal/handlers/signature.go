package handlers

import (
	"net/http"

	"requests-signature/internal/common/logging"
	"requests-signature/internal/signature"
)

// GetSignature echoes the signature validation result of the request itself
// @Summary Check a request signature
// @Description Validates the caller's signature and returns the outcome. The computed signature is never returned.
// @Tags signature
// @Produce json
// @Success 200 {object} signature.ValidationResult
// @Failure 500 {string} string "Signature middleware not installed"
// @Router /api/signature [get]
func (h *Handlers) GetSignature(w http.ResponseWriter, r *http.Request) {
	result, ok := signature.ResultFromContext(r.Context())
	if !ok {
		http.Error(w, "Signature validation unavailable", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, result.Redacted())
}

type optionsResponse struct {
	Disabled       bool     `json:"disabled"`
	HeaderName     string   `json:"header_name"`
	HeaderTemplate string   `json:"header_template,omitempty"`
	ClockSkew      int64    `json:"clock_skew_seconds"`
	Algorithm      string   `json:"algorithm,omitempty"`
	Algorithms     []string `json:"algorithms"`
	Clients        int      `json:"clients"`
}

// GetSignatureOptions returns the active signature settings. Keys and client ids are not exposed.
// @Summary Get signature settings
// @Tags signature
// @Produce json
// @Success 200 {object} optionsResponse
// @Router /api/signature/options [get]
func (h *Handlers) GetSignatureOptions(w http.ResponseWriter, r *http.Request) {
	snapshot := h.registry.Snapshot()

	resp := optionsResponse{
		Disabled:   snapshot.Disabled,
		HeaderName: snapshot.HeaderName,
		ClockSkew:  int64(snapshot.ClockSkew.Seconds()),
		Algorithm:  snapshot.Algorithm,
		Algorithms: signature.Algorithms(),
		Clients:    snapshot.ClientCount(),
	}
	if codec := snapshot.Codec(); codec != nil {
		resp.HeaderTemplate = codec.Template()
	}

	writeJSON(w, http.StatusOK, resp)
}

type echoResponse struct {
	ClientID string `json:"client_id"`
	Method   string `json:"method"`
	Path     string `json:"path"`
	Body     string `json:"body,omitempty"`
}

// Echo returns the authenticated client id and the request body
// @Summary Signed echo
// @Description Sample endpoint that requires a valid signature
// @Tags signature
// @Accept json
// @Produce json
// @Success 200 {object} echoResponse
// @Failure 401 {string} string "Invalid request signature"
// @Router /api/echo [post]
func (h *Handlers) Echo(w http.ResponseWriter, r *http.Request) {
	body, err := signature.PreserveRequestBody(r)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	result, _ := signature.ResultFromContext(r.Context())

	h.logger.WithContext(r.Context()).Debug("Echoing signed request",
		logging.Field{Key: "bytes", Value: len(body)},
	)

	writeJSON(w, http.StatusOK, echoResponse{
		ClientID: result.ClientID,
		Method:   r.Method,
		Path:     r.URL.Path,
		Body:     string(body),
	})
}

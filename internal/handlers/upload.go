package handlers

import (
	"net/http"

	"github.com/eldtechnologies/roomdrop/internal/upload"
)

// UploadToken proxies a token request to the upload token issuer. An
// optional fileName query parameter aligns the key's extension with the
// file about to be uploaded.
func (h *Handler) UploadToken(w http.ResponseWriter, r *http.Request) {
	tok, err := h.tokens.Issue(r.Context())
	if err != nil {
		h.Fail(w, r, err)
		return
	}

	if fileName := r.URL.Query().Get("fileName"); fileName != "" {
		tok.Key = upload.RewriteExtension(tok.Key, fileName)
	}

	h.JSON(w, http.StatusOK, tok)
}

package handlers

import (
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Goodnessmbakara/shield-drug-sub003/internal/logger"
	"github.com/Goodnessmbakara/shield-drug-sub003/internal/services"
)

type VerifyHandler struct {
	log       *logger.Logger
	verifySvc services.VerificationService
	page      *template.Template
}

func NewVerifyHandler(log *logger.Logger, verifySvc services.VerificationService) *VerifyHandler {
	return &VerifyHandler{
		log:       log.With("handler", "VerifyHandler"),
		verifySvc: verifySvc,
		page:      template.Must(template.New("verify").Parse(verifyPageTemplate)),
	}
}

type verifyRequest struct {
	CodeID string `json:"codeId" binding:"required"`
}

// POST /api/verify
// Unknown codes are a normal negative result, never an error response.
func (h *VerifyHandler) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	result, err := h.verifySvc.Verify(c.Request.Context(), req.CodeID)
	if err != nil {
		h.log.Error("Verification failed", "code_id", req.CodeID, "error", err)
		RespondError(c, http.StatusInternalServerError, "verification_failed", err)
		return
	}
	RespondOK(c, result)
}

// GET /verify/:codeId
// Human-facing page; runs the same verification path as the API,
// including the scan-count increment.
func (h *VerifyHandler) VerifyPage(c *gin.Context) {
	codeID := c.Param("codeId")
	result, err := h.verifySvc.Verify(c.Request.Context(), codeID)
	if err != nil {
		h.log.Error("Verification failed", "code_id", codeID, "error", err)
		c.String(http.StatusInternalServerError, "verification unavailable")
		return
	}
	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := h.page.Execute(c.Writer, gin.H{"CodeID": codeID, "Result": result}); err != nil {
		h.log.Error("Verify page render failed", "code_id", codeID, "error", err)
	}
}

const verifyPageTemplate = `<!DOCTYPE html>
<html>
<head><title>Code Verification</title></head>
<body>
<h1>Code Verification</h1>
<p>Code: <strong>{{.CodeID}}</strong></p>
{{if not .Result.Found}}
<p>❌ Unknown code. This product could not be verified.</p>
{{else if .Result.IsValid}}
<p>✅ Authentic.</p>
<ul>
<li>Drug: {{.Result.Code.Metadata.DrugName}}</li>
<li>Batch: {{.Result.Code.Metadata.BatchNumber}}</li>
<li>Manufacturer: {{.Result.Code.Metadata.Manufacturer}}</li>
<li>Expiry: {{.Result.Code.Metadata.ExpiryDate.Format "2006-01-02"}}</li>
<li>Times scanned: {{.Result.Code.ScanCount}}</li>
</ul>
{{else}}
<p>⚠️ Not valid: {{.Result.Reason}}</p>
{{end}}
</body>
</html>`

package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Goodnessmbakara/shield-drug-sub003/internal/logger"
	pkgerrors "github.com/Goodnessmbakara/shield-drug-sub003/internal/pkg/errors"
	"github.com/Goodnessmbakara/shield-drug-sub003/internal/services"
	"github.com/Goodnessmbakara/shield-drug-sub003/internal/types"
)

type CodeHandler struct {
	log       *logger.Logger
	issuerSvc services.IssuerService
	codeSvc   services.CodeService
}

func NewCodeHandler(log *logger.Logger, issuerSvc services.IssuerService, codeSvc services.CodeService) *CodeHandler {
	return &CodeHandler{
		log:       log.With("handler", "CodeHandler"),
		issuerSvc: issuerSvc,
		codeSvc:   codeSvc,
	}
}

type issueCodesRequest struct {
	Quantity  int  `json:"quantity"`
	FullBatch bool `json:"fullBatch"`
}

type issuedCode struct {
	CodeID          string          `json:"codeId"`
	SerialNumber    int             `json:"serialNumber"`
	VerificationURL string          `json:"verificationUrl"`
	LedgerRef       types.LedgerRef `json:"ledgerRef"`
}

type issueCodesResponse struct {
	IssuedCount  int                    `json:"issuedCount"`
	SkippedCount int                    `json:"skippedCount"`
	FailedCount  int                    `json:"failedCount"`
	Codes        []issuedCode           `json:"codes"`
	Failed       []services.UnitFailure `json:"failed,omitempty"`
}

// POST /api/batches/:batchId/codes
func (h *CodeHandler) IssueCodes(c *gin.Context) {
	batchID, err := uuid.Parse(c.Param("batchId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_batch_id", fmt.Errorf("invalid batch id"))
		return
	}
	var req issueCodesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if !req.FullBatch && req.Quantity < 1 {
		RespondError(c, http.StatusBadRequest, "invalid_quantity", fmt.Errorf("quantity must be a positive integer unless fullBatch is set"))
		return
	}

	result, err := h.issuerSvc.Issue(c.Request.Context(), services.IssueRequest{
		BatchID:   batchID,
		Quantity:  req.Quantity,
		FullBatch: req.FullBatch,
	})
	if err != nil {
		switch {
		case errors.Is(err, pkgerrors.ErrNotFound):
			RespondError(c, http.StatusNotFound, "batch_not_found", fmt.Errorf("batch not found"))
		case errors.Is(err, pkgerrors.ErrInvalidArgument):
			RespondError(c, http.StatusBadRequest, "invalid_request", err)
		default:
			h.log.Error("Issuance failed", "batch_id", batchID, "error", err)
			RespondError(c, http.StatusInternalServerError, "issuance_failed", fmt.Errorf("issuance failed"))
		}
		return
	}

	resp := issueCodesResponse{
		IssuedCount:  result.IssuedCount,
		SkippedCount: result.SkippedCount,
		FailedCount:  result.FailedCount,
		Codes:        make([]issuedCode, 0, len(result.Codes)),
		Failed:       result.Failed,
	}
	for _, code := range result.Codes {
		resp.Codes = append(resp.Codes, issuedCode{
			CodeID:          code.CodeID,
			SerialNumber:    code.SerialNumber,
			VerificationURL: code.VerificationURL,
			LedgerRef:       code.Ledger,
		})
	}
	RespondOK(c, resp)
}

// GET /api/batches/:batchId/codes
func (h *CodeHandler) ListCodes(c *gin.Context) {
	batchID, err := uuid.Parse(c.Param("batchId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_batch_id", fmt.Errorf("invalid batch id"))
		return
	}
	limit := queryInt(c, "limit", 100)
	offset := queryInt(c, "offset", 0)

	codes, err := h.codeSvc.ListByBatch(c.Request.Context(), batchID, limit, offset)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			RespondError(c, http.StatusNotFound, "batch_not_found", fmt.Errorf("batch not found"))
			return
		}
		h.log.Error("Code listing failed", "batch_id", batchID, "error", err)
		RespondError(c, http.StatusInternalServerError, "list_failed", fmt.Errorf("listing failed"))
		return
	}
	RespondOK(c, gin.H{"codes": codes, "count": len(codes)})
}

// POST /api/batches/:batchId/codes/download
func (h *CodeHandler) DownloadCodes(c *gin.Context) {
	batchID, err := uuid.Parse(c.Param("batchId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_batch_id", fmt.Errorf("invalid batch id"))
		return
	}
	codes, err := h.codeSvc.Download(c.Request.Context(), batchID)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			RespondError(c, http.StatusNotFound, "batch_not_found", fmt.Errorf("batch not found"))
			return
		}
		h.log.Error("Code download failed", "batch_id", batchID, "error", err)
		RespondError(c, http.StatusInternalServerError, "download_failed", fmt.Errorf("download failed"))
		return
	}
	RespondOK(c, gin.H{"codes": codes, "count": len(codes)})
}

func queryInt(c *gin.Context, key string, defaultVal int) int {
	raw := c.Query(key)
	if raw == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return defaultVal
	}
	return v
}

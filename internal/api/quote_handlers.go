package api

import (
	"bytes"
	"net/http"

	"github.com/aethra/oficina/internal/engine"
	apperrors "github.com/aethra/oficina/internal/errors"
	"github.com/aethra/oficina/internal/export"
	"github.com/aethra/oficina/internal/models"
	"github.com/gin-gonic/gin"
)

// StatusRequest is the body of a status transition
type StatusRequest struct {
	Status models.StatusOrcamento `json:"status" binding:"required"`
}

// ListOrcamentos returns a page of quotes
// GET /api/orcamentos
func (h *Handler) ListOrcamentos(c *gin.Context) {
	result, err := h.quotes.List(c.Request.Context(), queryParams(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetOrcamento returns one quote with its client
// GET /api/orcamentos/:id
func (h *Handler) GetOrcamento(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	orcamento, err := h.quotes.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, orcamento)
}

// CreateOrcamento creates a pending quote with the next number
// POST /api/orcamentos
func (h *Handler) CreateOrcamento(c *gin.Context) {
	var input engine.OrcamentoInput
	if err := bindJSON(c, &input); err != nil {
		respondError(c, h.logger, err)
		return
	}

	orcamento, err := h.quotes.Create(c.Request.Context(), input, actorID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, orcamento)
}

// UpdateOrcamento applies a partial update
// PUT /api/orcamentos/:id
func (h *Handler) UpdateOrcamento(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	var input engine.OrcamentoUpdate
	if err := bindJSON(c, &input); err != nil {
		respondError(c, h.logger, err)
		return
	}

	orcamento, err := h.quotes.Update(c.Request.Context(), id, input, actorID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, orcamento)
}

// UpdateOrcamentoStatus moves a quote to another status
// PATCH /api/orcamentos/:id/status
func (h *Handler) UpdateOrcamentoStatus(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	var input StatusRequest
	if err := bindJSON(c, &input); err != nil {
		respondError(c, h.logger, err)
		return
	}

	orcamento, err := h.quotes.UpdateStatus(c.Request.Context(), id, input.Status, actorID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, orcamento)
}

// DuplicarOrcamento copies a quote into a new pending one
// POST /api/orcamentos/:id/duplicar
func (h *Handler) DuplicarOrcamento(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	orcamento, err := h.quotes.Duplicate(c.Request.Context(), id, actorID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, orcamento)
}

// DeleteOrcamento marks a quote rejected
// DELETE /api/orcamentos/:id
func (h *Handler) DeleteOrcamento(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if err := h.quotes.Delete(c.Request.Context(), id, actorID(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "quote rejected"})
}

// OrcamentoHistorico returns the change history of a quote, newest first
// GET /api/orcamentos/:id/historico
func (h *Handler) OrcamentoHistorico(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if _, err := h.quotes.Get(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.respondHistory(c, "orcamentos", id)
}

// ExportOrcamentos downloads the filtered quote list as XLSX
// GET /api/orcamentos/exportar
func (h *Handler) ExportOrcamentos(c *gin.Context) {
	rows, err := h.quotes.Export(c.Request.Context(), queryParams(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	sendWorkbook(c, h.logger, "orcamentos.xlsx", func(buf *bytes.Buffer) error {
		return export.Orcamentos(buf, rows)
	})
}

func (h *Handler) respondHistory(c *gin.Context, tabela string, id uint) {
	rows, err := h.history.List(c.Request.Context(), tabela, id)
	if err != nil {
		respondError(c, h.logger, apperrors.NewInternalError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows})
}

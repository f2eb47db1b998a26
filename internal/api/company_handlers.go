package api

import (
	"net/http"

	"github.com/aethra/oficina/internal/engine"
	"github.com/gin-gonic/gin"
)

// GetDadosEmpresa returns the company profile
// GET /api/dados-empresa
func (h *Handler) GetDadosEmpresa(c *gin.Context) {
	dados, err := h.company.Get(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dados)
}

// UpdateDadosEmpresa patches the company profile
// PUT /api/dados-empresa
func (h *Handler) UpdateDadosEmpresa(c *gin.Context) {
	var input engine.DadosEmpresaUpdate
	if err := bindJSON(c, &input); err != nil {
		respondError(c, h.logger, err)
		return
	}

	dados, err := h.company.Update(c.Request.Context(), input, actorID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dados)
}

package api

import (
	"bytes"
	"net/http"

	"github.com/aethra/oficina/internal/engine"
	"github.com/aethra/oficina/internal/export"
	"github.com/gin-gonic/gin"
)

// ListClientes returns a page of clients
// GET /api/clientes
func (h *Handler) ListClientes(c *gin.Context) {
	result, err := h.clients.List(c.Request.Context(), queryParams(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetCliente returns one client
// GET /api/clientes/:id
func (h *Handler) GetCliente(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	cliente, err := h.clients.Get(c.Request.Context(), id, parseBoolParam(c.Query("incluir_inativos")))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, cliente)
}

// CreateCliente creates a client
// POST /api/clientes
func (h *Handler) CreateCliente(c *gin.Context) {
	var input engine.ClienteInput
	if err := bindJSON(c, &input); err != nil {
		respondError(c, h.logger, err)
		return
	}

	cliente, err := h.clients.Create(c.Request.Context(), input, actorID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, cliente)
}

// BuscarOuCriarCliente returns the client holding the CPF, creating or
// reactivating it as needed
// POST /api/clientes/buscar-ou-criar
func (h *Handler) BuscarOuCriarCliente(c *gin.Context) {
	var input engine.ClienteInput
	if err := bindJSON(c, &input); err != nil {
		respondError(c, h.logger, err)
		return
	}

	result, err := h.clients.GetOrCreate(c.Request.Context(), input, actorID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	status := http.StatusOK
	if !result.JaExistia {
		status = http.StatusCreated
	}
	c.JSON(status, result)
}

// UpdateCliente applies a partial update
// PUT /api/clientes/:id
func (h *Handler) UpdateCliente(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	var input engine.ClienteUpdate
	if err := bindJSON(c, &input); err != nil {
		respondError(c, h.logger, err)
		return
	}

	cliente, err := h.clients.Update(c.Request.Context(), id, input, actorID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, cliente)
}

// DeleteCliente deactivates a client
// DELETE /api/clientes/:id
func (h *Handler) DeleteCliente(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if err := h.clients.Delete(c.Request.Context(), id, actorID(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "client deactivated"})
}

// ListClienteOrcamentos returns a page of the client's quotes
// GET /api/clientes/:id/orcamentos
func (h *Handler) ListClienteOrcamentos(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	ctx := c.Request.Context()
	if _, err := h.clients.Get(ctx, id, true); err != nil {
		respondError(c, h.logger, err)
		return
	}

	result, err := h.quotes.ListByClient(ctx, id, queryParams(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ClienteHistorico returns the change history of a client, newest first
// GET /api/clientes/:id/historico
func (h *Handler) ClienteHistorico(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	ctx := c.Request.Context()
	if _, err := h.clients.Get(ctx, id, true); err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.respondHistory(c, "clientes", id)
}

// ExportClientes downloads the filtered client list as XLSX
// GET /api/clientes/exportar
func (h *Handler) ExportClientes(c *gin.Context) {
	rows, err := h.clients.Export(c.Request.Context(), queryParams(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	sendWorkbook(c, h.logger, "clientes.xlsx", func(buf *bytes.Buffer) error {
		return export.Clientes(buf, rows)
	})
}

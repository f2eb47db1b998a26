// Package export renders client and quote lists as XLSX workbooks
package export

import (
	"fmt"
	"io"

	"github.com/aethra/oficina/internal/models"
	"github.com/aethra/oficina/internal/validation"
	"github.com/xuri/excelize/v2"
)

// ContentType is the MIME type of the written workbooks
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const dateLayout = "02/01/2006"

var clienteHeader = []interface{}{
	"ID", "Nome", "CPF", "Telefone", "Celular", "Email",
	"Endereço", "Número", "Bairro", "Cidade", "UF", "CEP", "Ativo",
}

var orcamentoHeader = []interface{}{
	"Número", "Cliente", "Data", "Validade", "Status", "Veículo", "Placa",
	"Valor total", "Desconto", "Valor final",
}

// Clientes writes one row per client
func Clientes(w io.Writer, clientes []models.Cliente) error {
	rows := make([][]interface{}, 0, len(clientes))
	for _, c := range clientes {
		cpf := ""
		if c.CPF != nil {
			cpf = validation.FormatCPF(*c.CPF)
		}
		rows = append(rows, []interface{}{
			c.ID, c.Nome, cpf, c.Telefone, c.Celular, c.Email,
			c.Endereco, c.Numero, c.Bairro, c.Cidade, c.Estado, c.CEP, yesNo(c.Ativo),
		})
	}
	return write(w, "Clientes", clienteHeader, rows)
}

// Orcamentos writes one row per quote. Cliente must be preloaded for the
// client column to be filled.
func Orcamentos(w io.Writer, orcamentos []models.Orcamento) error {
	rows := make([][]interface{}, 0, len(orcamentos))
	for _, o := range orcamentos {
		cliente := ""
		if o.Cliente != nil {
			cliente = o.Cliente.Nome
		}
		veiculo := o.VeiculoMarca
		if o.VeiculoModelo != "" {
			veiculo = fmt.Sprintf("%s %s", o.VeiculoMarca, o.VeiculoModelo)
		}
		rows = append(rows, []interface{}{
			o.Numero, cliente,
			o.DataCriacao.Format(dateLayout), o.DataValidade.Format(dateLayout),
			string(o.Status), veiculo, o.VeiculoPlaca,
			o.ValorTotal.InexactFloat64(), o.TotalDesconto.InexactFloat64(), o.ValorFinal.InexactFloat64(),
		})
	}
	return write(w, "Orcamentos", orcamentoHeader, rows)
}

func write(w io.Writer, sheet string, header []interface{}, rows [][]interface{}) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		last, _ := excelize.CoordinatesToCellName(len(header), 1)
		_ = f.SetCellStyle(sheet, "A1", last, style)
	}

	for i, row := range rows {
		if err := setRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, n int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", n, err)
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "Sim"
	}
	return "Não"
}

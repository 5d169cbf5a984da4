package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/tealeg/xlsx"
	"go.uber.org/zap"

	"storefront-service/internal/domain"
)

var orderExportHeaders = []string{
	"Order ID", "Order Number", "Date", "Status", "Customer", "Phone", "Additional Phone",
	"Address", "Governorate", "Center", "Items", "Subtotal", "Delivery", "Total",
}

// ExportOrders downloads the orders of one period as an .xlsx sheet.
func (h *HTTPHandler) ExportOrders(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.session(w, r); !ok {
		return
	}
	period, err := h.period(r)
	if err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}
	orders, err := h.orders.ListOrders(r.Context(), period)
	if err != nil {
		h.respondWithDomainError(w, r, storeFailure("list orders", err))
		return
	}

	file, err := ordersWorkbook(orders)
	if err != nil {
		h.logger.Error("failed to build orders sheet", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Failed to create Excel sheet")
		return
	}

	filename := fmt.Sprintf("orders-%d-week-%02d.xlsx", period.Year, period.WeekNumber)
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Transfer-Encoding", "binary")
	w.Header().Set("Expires", "0")
	if err := file.Write(w); err != nil {
		h.logger.Error("failed to write orders sheet", zap.Error(err))
	}
}

func ordersWorkbook(orders []domain.Order) (*xlsx.File, error) {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Orders")
	if err != nil {
		return nil, err
	}

	header := sheet.AddRow()
	for _, h := range orderExportHeaders {
		header.AddCell().SetValue(h)
	}

	for _, o := range orders {
		c := o.CustomerInfo
		row := sheet.AddRow()
		row.AddCell().SetValue(o.ID)
		row.AddCell().SetValue(o.OrderNumber)
		row.AddCell().SetValue(o.OrderDate.Format("2006-01-02 15:04:05"))
		row.AddCell().SetValue(string(o.Status))
		row.AddCell().SetValue(c.Name)
		row.AddCell().SetValue(c.Phone)
		row.AddCell().SetValue(c.AdditionalPhone)
		row.AddCell().SetValue(c.Address)
		row.AddCell().SetValue(c.Governorate)
		row.AddCell().SetValue(c.Center)
		row.AddCell().SetValue(itemsSummary(o.Items))
		row.AddCell().SetValue(o.Totals.Subtotal)
		row.AddCell().SetValue(o.Totals.DeliveryPrice)
		row.AddCell().SetValue(o.Totals.Total)
	}
	return file, nil
}

func itemsSummary(items []domain.CartItem) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		color := it.Color
		if color == "" {
			color = "-"
		}
		parts = append(parts, fmt.Sprintf("%s (%s/%s) x%d", it.Name, color, it.Size, it.Quantity))
	}
	return strings.Join(parts, "; ")
}

package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"invoice-engine/internal/core"
)

var (
	accent  = lipgloss.Color("#2563EB")
	dim     = lipgloss.Color("#6B7280")
	success = lipgloss.Color("#22C55E")
	warning = lipgloss.Color("#F59E0B")
	danger  = lipgloss.Color("#EF4444")
)

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 2)

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	dimStyle   = lipgloss.NewStyle().Foreground(dim)
	totalStyle = lipgloss.NewStyle().Bold(true)

	statusColors = map[core.InvoiceStatus]lipgloss.Color{
		core.InvoiceStatusDraft:   dim,
		core.InvoiceStatusSent:    accent,
		core.InvoiceStatusViewed:  accent,
		core.InvoiceStatusPartial: warning,
		core.InvoiceStatusPaid:    success,
		core.InvoiceStatusOverdue: danger,
	}
)

func statusBadge(s core.InvoiceStatus) string {
	return lipgloss.NewStyle().Bold(true).Foreground(statusColors[s]).Render(strings.ToUpper(string(s)))
}

// renderInvoice draws the snapshot as a bordered box.
func renderInvoice(inv core.InvoiceSnapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s  %s\n", titleStyle.Render(inv.InvoiceNumber), statusBadge(inv.Status))
	fmt.Fprintln(&b, dimStyle.Render(fmt.Sprintf("%s · due %s · %s", inv.ClientName, inv.DueDate, inv.Currency)))
	fmt.Fprintln(&b)

	fmt.Fprintf(&b, "%-3s %-28s %8s %10s %6s %12s\n", "#", "DESCRIPTION", "QTY", "RATE", "TAX%", "AMOUNT")
	for _, it := range inv.Items {
		fmt.Fprintf(&b, "%-3d %-28s %8s %10s %6s %12s\n",
			it.LineNumber, truncate(it.Description, 28),
			it.Quantity.String(), it.Rate.StringFixed(2), it.ItemTaxRate.String(), it.Amount.StringFixed(2))
	}
	fmt.Fprintln(&b)

	row := func(label, value string) {
		fmt.Fprintf(&b, "%58s %12s\n", label, value)
	}
	row("Subtotal", inv.Subtotal.StringFixed(2))
	row("Tax", inv.Tax.StringFixed(2))
	row("Discount", "-"+inv.DiscountAmount.StringFixed(2))
	row(totalStyle.Render("Total"), totalStyle.Render(inv.Total.StringFixed(2)))
	row("Paid", inv.TotalPaid.StringFixed(2))
	row(totalStyle.Render("Balance due"), totalStyle.Render(inv.RemainingBalance.StringFixed(2)))

	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func renderAttempts(attempts []core.PaymentAttempt) string {
	if len(attempts) == 0 {
		return dimStyle.Render("no payment attempts")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-36s %-11s %12s  %s\n", "GATEWAY ORDER", "STATUS", "AMOUNT", "OPENED")
	for _, a := range attempts {
		fmt.Fprintf(&b, "%-36s %-11s %12s  %s\n",
			a.GatewayOrderID, a.Status, a.Amount.StringFixed(2), a.CreatedAt.Format("2006-01-02 15:04"))
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}

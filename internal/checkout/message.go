package checkout

import (
	"fmt"
	"net/url"
	"strings"

	"storefront-service/internal/domain"
)

const separator = "━━━━━━━━━━━━━━━━━━━━"

// StoreProfile is the store-specific text of the confirmation message.
type StoreProfile struct {
	Name           string
	WhatsAppNumber string
	PaymentMethods string
	PaymentNumber  string
	Currency       string
}

// FormatMessage renders the order as the prefilled conversation text sent to the store.
// Empty lines are omitted.
func FormatMessage(order *domain.Order, profile StoreProfile) string {
	c := order.CustomerInfo
	money := func(v float64) string {
		return fmt.Sprintf("%.0f %s", v, profile.Currency)
	}

	lines := []string{
		"📦 New order - " + profile.Name,
		fmt.Sprintf("🔖 Order number: #%d", order.OrderNumber),
		"",
		separator,
		"👤 Customer:",
		separator,
		"Name: " + orDash(c.Name),
		"📞 Phone: " + orDash(c.Phone),
	}
	if c.AdditionalPhone != "" {
		lines = append(lines, "📞 Additional phone: "+c.AdditionalPhone)
	}
	lines = append(lines,
		fmt.Sprintf("📍 Address: %s, %s, %s", orDash(c.Address), orDash(c.Center), orDash(c.Governorate)),
		separator,
		"🛍️ Items:",
		separator,
	)
	for i, item := range order.Items {
		lines = append(lines,
			fmt.Sprintf("%d. %s", i+1, item.Name),
			fmt.Sprintf("   🎨 Color: %s | 📏 Size: %s", orDash(item.Color), item.Size),
			"   💵 "+money(item.LineTotal()),
		)
	}

	t := order.Totals
	lines = append(lines,
		separator,
		"💰 Summary:",
		separator,
		"Products: "+money(t.Subtotal),
	)
	if t.DeliveryResolved && t.DeliveryPrice > 0 {
		lines = append(lines, "🚚 Delivery: "+money(t.DeliveryPrice))
	}
	lines = append(lines,
		"💳 Total: "+money(t.Total),
		separator,
		"⚠️ To confirm your order:",
		separator,
	)
	if t.DeliveryResolved && t.DeliveryPrice > 0 {
		lines = append(lines, fmt.Sprintf("Please transfer the delivery fee (%s) via:", money(t.DeliveryPrice)))
	} else {
		lines = append(lines, "Please contact us to confirm the order:")
	}
	if profile.PaymentMethods != "" {
		lines = append(lines, "💳 "+profile.PaymentMethods)
	}
	if profile.PaymentNumber != "" {
		lines = append(lines, "📱 "+profile.PaymentNumber)
	}
	lines = append(lines,
		"",
		"📅 Expected delivery: 2-7 business days",
		"✨ Thank you for shopping with "+profile.Name,
	)

	out := lines[:0]
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

// HandoffURL builds the "open a prefilled conversation" link for phone.
func HandoffURL(phone, message string) string {
	text := strings.ReplaceAll(url.QueryEscape(message), "+", "%20")
	return fmt.Sprintf("https://wa.me/%s?text=%s", url.PathEscape(phone), text)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

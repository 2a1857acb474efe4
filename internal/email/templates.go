package email

import (
	"bytes"
	"html/template"

	"github.com/example/technest/internal/validation"
)

// OrderItem represents an item in an order for email purposes
type OrderItem struct {
	ProductID string
	Name      string
	Quantity  int
	Price     int64
}

// OrderConfirmation is what the confirmation e-mail shows.
type OrderConfirmation struct {
	RecordID        string
	Reference       string
	CustomerName    string
	ShippingAddress string
	PaymentMethod   string
	Items           []OrderItem
	Total           int64
}

type itemRow struct {
	Name     string
	Quantity int
	Price    string
	Subtotal string
}

var confirmationTemplate = template.Must(template.New("confirmation").Parse(`<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<div style="background: #1f2937; padding: 30px; border-radius: 10px 10px 0 0;">
		<h1 style="color: white; margin: 0; font-size: 24px;">Thank you for your order</h1>
	</div>

	<div style="background: #fff; padding: 30px; border: 1px solid #eee; border-top: none; border-radius: 0 0 10px 10px;">
		<p style="margin-top: 0;">{{if .CustomerName}}Hi {{.CustomerName}}, your{{else}}Your{{end}} payment was confirmed and your order is being prepared.</p>

		<div style="background: #f8f9fa; padding: 15px; border-radius: 5px; margin: 20px 0;">
			<p style="margin: 0; font-size: 14px; color: #666;">Payment reference</p>
			<p style="margin: 5px 0 0 0; font-size: 18px; font-weight: bold; font-family: monospace;">{{.Reference}}</p>
		</div>

		<h2 style="font-size: 18px; border-bottom: 2px solid #1f2937; padding-bottom: 10px;">Order summary</h2>

		<table style="width: 100%; border-collapse: collapse; margin: 20px 0;">
			<thead>
				<tr style="background: #f8f9fa;">
					<th style="padding: 12px; text-align: left; font-weight: 600;">Item</th>
					<th style="padding: 12px; text-align: center; font-weight: 600;">Qty</th>
					<th style="padding: 12px; text-align: right; font-weight: 600;">Price</th>
					<th style="padding: 12px; text-align: right; font-weight: 600;">Subtotal</th>
				</tr>
			</thead>
			<tbody>
				{{range .Items}}<tr>
					<td style="padding: 12px; border-bottom: 1px solid #eee;">{{.Name}}</td>
					<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: center;">{{.Quantity}}</td>
					<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">${{.Price}}</td>
					<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">${{.Subtotal}}</td>
				</tr>
				{{end}}
			</tbody>
		</table>

		<div style="text-align: right; padding: 20px; background: #f8f9fa; border-radius: 5px;">
			<span style="font-size: 14px; color: #666;">Total</span>
			<span style="font-size: 24px; font-weight: bold; color: #1f2937; margin-left: 10px;">${{.Total}}</span>
		</div>

		{{if .ShippingAddress}}<h2 style="font-size: 18px; border-bottom: 2px solid #1f2937; padding-bottom: 10px;">Shipping to</h2>
		<p>{{.ShippingAddress}}</p>{{end}}

		<hr style="border: none; border-top: 1px solid #eee; margin: 30px 0;">

		<p style="font-size: 12px; color: #999; margin-bottom: 0;">
			Order {{.RecordID}}. This is an automated message from TechNest; replies are not monitored.
		</p>
	</div>
</body>
</html>`))

// BuildOrderConfirmationBody builds the HTML body for order confirmation email
func BuildOrderConfirmationBody(order OrderConfirmation) (string, error) {
	rows := make([]itemRow, 0, len(order.Items))
	for _, item := range order.Items {
		name := item.Name
		if name == "" {
			name = item.ProductID
		}
		rows = append(rows, itemRow{
			Name:     name,
			Quantity: item.Quantity,
			Price:    validation.FormatPrice(item.Price),
			Subtotal: validation.FormatPrice(item.Price * int64(item.Quantity)),
		})
	}

	var buf bytes.Buffer
	err := confirmationTemplate.Execute(&buf, struct {
		OrderConfirmation
		Items []itemRow
		Total string
	}{
		OrderConfirmation: order,
		Items:             rows,
		Total:             validation.FormatPrice(order.Total),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

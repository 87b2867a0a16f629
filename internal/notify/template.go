package notify

import (
	"bytes"
	"fmt"
	"html/template"
)

type Template string

const (
	TemplateUploadReceived         Template = "upload_received"
	TemplateNewOrder               Template = "new_order"
	TemplatePaymentConfirmed       Template = "payment_confirmed"
	TemplateOrderReady             Template = "order_ready"
	TemplateOrderCollectedCustomer Template = "order_collected_customer"
	TemplateOrderCollectedShop     Template = "order_collected_shop"
)

// Payload carries the values a template may reference.
// CustomerName is resolved from CustomerID at delivery time when left empty.
type Payload struct {
	OrderID      string
	CustomerID   string
	CustomerName string
	ShopName     string
	FileName     string
	PickupCode   string
	Amount       string
}

type view struct {
	Payload
	RecipientName string
}

type message struct {
	subject string
	body    *template.Template
}

var messages = map[Template]message{
	TemplateUploadReceived: {
		subject: "Your file has been uploaded!",
		body: template.Must(template.New("upload_received").Parse(`<h1>Upload Successful</h1>
<p>Hi {{.RecipientName}},</p>
<p>Your file "<b>{{.FileName}}</b>" has been successfully uploaded and sent to <b>{{.ShopName}}</b>.</p>
<p>You will be notified again once your document is ready for pickup.</p>
<p>Thank you for using our service!</p>`)),
	},
	TemplateNewOrder: {
		subject: "You have a new print order!",
		body: template.Must(template.New("new_order").Parse(`<h1>New Order</h1>
<p>Hi {{.RecipientName}},</p>
<p>A new order has been placed by <b>{{.CustomerName}}</b>.</p>
<p>File name: <b>{{.FileName}}</b></p>
<p>Please check your dashboard for details.</p>`)),
	},
	TemplatePaymentConfirmed: {
		subject: "Payment received, start printing",
		body: template.Must(template.New("payment_confirmed").Parse(`<h1>Payment Confirmed</h1>
<p>Hi {{.RecipientName}},</p>
<p>Payment of <b>{{.Amount}}</b> for "<b>{{.FileName}}</b>" has been received. The order is ready to print.</p>`)),
	},
	TemplateOrderReady: {
		subject: "Your document is ready for pickup",
		body: template.Must(template.New("order_ready").Parse(`<h1>Ready for Pickup</h1>
<p>Hi {{.RecipientName}},</p>
<p>Your file "<b>{{.FileName}}</b>" has been printed at <b>{{.ShopName}}</b>.</p>
<p>Show this pickup code at the counter: <b>{{.PickupCode}}</b></p>`)),
	},
	TemplateOrderCollectedCustomer: {
		subject: "File Collected!",
		body: template.Must(template.New("order_collected_customer").Parse(`<h1>Collection Confirmed</h1>
<p>Hi {{.RecipientName}},</p>
<p>You have successfully collected your file "<b>{{.FileName}}</b>" from <b>{{.ShopName}}</b>.</p>
<p>Thank you for using our service!</p>`)),
	},
	TemplateOrderCollectedShop: {
		subject: "Order Collected by Customer",
		body: template.Must(template.New("order_collected_shop").Parse(`<h1>Order Collected</h1>
<p>Hi {{.RecipientName}},</p>
<p>The order for file "<b>{{.FileName}}</b>" has been collected by <b>{{.CustomerName}}</b>.</p>
<p>The order status has been updated to 'done'.</p>`)),
	},
}

// Render produces the subject and escaped HTML body for tmpl.
func Render(tmpl Template, recipientName string, p Payload) (string, string, error) {
	m, ok := messages[tmpl]
	if !ok {
		return "", "", fmt.Errorf("unknown template %q", tmpl)
	}

	var buf bytes.Buffer
	if err := m.body.Execute(&buf, view{Payload: p, RecipientName: recipientName}); err != nil {
		return "", "", fmt.Errorf("render %s: %w", tmpl, err)
	}
	return m.subject, buf.String(), nil
}

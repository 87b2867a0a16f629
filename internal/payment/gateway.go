package payment

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"html/template"
	"strings"
)

const DefaultGatewayURL = "https://test.payu.in/_payment"

type Credentials struct {
	MerchantKey   string
	Salt          string
	URL           string
	SiteURL       string
	WebhookSecret string
}

// Gateway computes and checks the digests exchanged with the payment provider.
// Credentials are fixed at construction.
type Gateway struct {
	creds Credentials
}

func NewGateway(creds Credentials) *Gateway {
	if creds.URL == "" {
		creds.URL = DefaultGatewayURL
	}
	creds.SiteURL = strings.TrimRight(creds.SiteURL, "/")
	return &Gateway{creds: creds}
}

func (g *Gateway) ready() error {
	if g.creds.MerchantKey == "" || g.creds.Salt == "" {
		return ErrMissingCredentials
	}
	return nil
}

func sha512Hex(parts []string) string {
	sum := sha512.Sum512([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// RequestHash is sha512(key|txnid|amount|productinfo|firstname|email|udf1..udf5||||||salt).
func RequestHash(key, salt string, f HashFields) string {
	parts := []string{key, f.TxnID, f.Amount, f.ProductInfo, f.FirstName, f.Email}
	parts = append(parts, f.UDF[:]...)
	parts = append(parts, "", "", "", "", "", salt)
	return sha512Hex(parts)
}

// ResponseHash is the reverse digest the gateway sends back:
// sha512(salt|status||||||udf5..udf1|email|firstname|productinfo|amount|txnid|key).
func ResponseHash(key, salt, status string, f HashFields) string {
	parts := []string{salt, status, "", "", "", "", ""}
	for i := len(f.UDF) - 1; i >= 0; i-- {
		parts = append(parts, f.UDF[i])
	}
	parts = append(parts, f.Email, f.FirstName, f.ProductInfo, f.Amount, f.TxnID, key)
	return sha512Hex(parts)
}

// BuildForm returns the ordered fields posted to the gateway.
func (g *Gateway) BuildForm(f HashFields, payer Payer) (*RedirectForm, error) {
	if err := g.ready(); err != nil {
		return nil, err
	}

	return &RedirectForm{
		Action: g.creds.URL,
		Fields: []Field{
			{Name: "key", Value: g.creds.MerchantKey},
			{Name: "txnid", Value: f.TxnID},
			{Name: "amount", Value: f.Amount},
			{Name: "productinfo", Value: f.ProductInfo},
			{Name: "firstname", Value: f.FirstName},
			{Name: "email", Value: f.Email},
			{Name: "phone", Value: payer.Phone},
			{Name: "surl", Value: g.creds.SiteURL + "/payments/return"},
			{Name: "furl", Value: g.creds.SiteURL + "/payments/failure"},
			{Name: "hash", Value: RequestHash(g.creds.MerchantKey, g.creds.Salt, f)},
			{Name: "udf1", Value: f.UDF[0]},
			{Name: "udf2", Value: f.UDF[1]},
		},
	}, nil
}

// VerifyReturn recomputes the reverse digest over the posted fields.
func (g *Gateway) VerifyReturn(rf ReturnFields) error {
	if err := g.ready(); err != nil {
		return err
	}
	if rf.Key != g.creds.MerchantKey || rf.Hash == "" {
		return ErrInvalidSignature
	}

	expected := ResponseHash(g.creds.MerchantKey, g.creds.Salt, rf.Status, rf.HashFields)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(rf.Hash))) {
		return ErrInvalidSignature
	}
	return nil
}

// VerifyWebhook checks the hex HMAC-SHA256 of the raw body.
func (g *Gateway) VerifyWebhook(body []byte, signature string) error {
	if g.creds.WebhookSecret == "" {
		return ErrMissingWebhookKey
	}
	if signature == "" {
		return ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(g.creds.WebhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

// SignWebhook produces the signature header value for body.
func SignWebhook(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

var redirectPage = template.Must(template.New("redirect").Parse(`<!DOCTYPE html>
<html>
<head><title>Redirecting to payment</title></head>
<body onload="document.forms[0].submit()">
<p>Redirecting to the payment page...</p>
<form action="{{.Action}}" method="post">
{{- range .Fields}}
<input type="hidden" name="{{.Name}}" value="{{.Value}}">
{{- end}}
<noscript><button type="submit">Continue to payment</button></noscript>
</form>
</body>
</html>
`))

// Render writes the auto-submitting page. Every value is HTML-escaped.
func (f *RedirectForm) Render() ([]byte, error) {
	var buf bytes.Buffer
	if err := redirectPage.Execute(&buf, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

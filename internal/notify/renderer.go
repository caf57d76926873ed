package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/shopspring/decimal"

	"stockquote-alert/internal/models"
)

const alertEmailTemplate = `<html>
<head>
  <meta charset="UTF-8" />
  <title>{{.Kind}} alert for {{.Ticker}}</title>
</head>
<body style="margin:0;padding:0;">
  <div style="display:none;max-height:0;overflow:hidden;font-size:1px;line-height:1px;color:#ffffff;opacity:0;">
    Price alert for {{.Ticker}}: now at {{.Current}}, {{.Direction}} your {{.KindLower}} target of {{.Target}}.
  </div>
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0">
    <tr>
      <td align="center" style="padding:24px 16px;">
        <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width:600px;background-color:#ffffff;border-radius:12px;overflow:hidden;font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,Helvetica,Arial,sans-serif;">
          <tr>
            <td style="padding:20px 24px 16px 24px;background-color:#0b1f33;color:#ffffff;border-top:4px solid {{.Accent}};">
              <div style="font-size:13px;letter-spacing:0.16em;text-transform:uppercase;opacity:0.8;">Stock Quote Alert</div>
              <div style="font-size:24px;font-weight:700;margin-top:8px;">{{.KindUpper}} signal for {{.Ticker}}</div>
            </td>
          </tr>
          <tr>
            <td style="padding:20px 24px 8px 24px;">
              <p style="margin:0 0 12px 0;font-size:14px;color:#64748b;">We're keeping an eye on <strong>{{.Ticker}}</strong> for you.</p>
              <p style="margin:0 0 12px 0;font-size:15px;color:#0f172a;">The price has just moved {{.Direction}} your {{.KindLower}} threshold and may need your review.</p>
              <p style="margin:0 0 16px 0;font-size:14px;color:{{.Accent}};font-weight:600;">{{.ActionLine}}</p>
            </td>
          </tr>
          <tr>
            <td style="padding:0 24px 16px 24px;">
              <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="border-collapse:collapse;border-radius:8px;background-color:#f8fafc;">
                <tr>
                  <td style="padding:12px 16px;font-size:13px;color:#0f172a;">
                    <div style="margin-bottom:6px;"><strong>Ticker:</strong> {{.Ticker}}</div>
                    <div style="margin-bottom:6px;"><strong>Current price:</strong> {{.Current}}</div>
                    <div style="margin-bottom:6px;"><strong>{{.Kind}} target:</strong> {{.Target}}</div>
                    <div style="margin-bottom:0;"><strong>Difference:</strong> {{.Difference}} {{.Direction}} target</div>
                  </td>
                </tr>
              </table>
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>
`

type alertView struct {
	Kind       string
	KindUpper  string
	KindLower  string
	Ticker     string
	Current    string
	Target     string
	Difference string
	Direction  string
	ActionLine string
	Accent     template.CSS
}

// HTMLRenderer renders alert e-mails. It is stateless and safe for
// concurrent use.
type HTMLRenderer struct {
	tmpl *template.Template
}

// NewHTMLRenderer parses the alert template.
func NewHTMLRenderer() *HTMLRenderer {
	return &HTMLRenderer{
		tmpl: template.Must(template.New("alert").Parse(alertEmailTemplate)),
	}
}

// Render builds the subject and HTML body for action. ActionNone yields
// empty strings.
func (r *HTMLRenderer) Render(action models.Action, asset models.TrackedAsset, price decimal.Decimal) (string, string) {
	var (
		view    alertView
		subject string
	)

	switch action {
	case models.ActionSell:
		subject = fmt.Sprintf("%s hit your sell target at %s", asset.Symbol, FormatUSD(price))
		view = alertView{
			Kind:       "Sell",
			Target:     FormatUSD(asset.SellThreshold),
			Difference: FormatUSD(price.Sub(asset.SellThreshold)),
			Direction:  "above",
			ActionLine: "Consider locking in profits or rebalancing your position.",
			Accent:     "#dc2626",
		}
	case models.ActionBuy:
		subject = fmt.Sprintf("%s entered your buy zone at %s", asset.Symbol, FormatUSD(price))
		view = alertView{
			Kind:       "Buy",
			Target:     FormatUSD(asset.BuyThreshold),
			Difference: FormatUSD(asset.BuyThreshold.Sub(price)),
			Direction:  "below",
			ActionLine: "Consider opening or adding to your position.",
			Accent:     "#16a34a",
		}
	default:
		return "", ""
	}

	view.KindUpper = strings.ToUpper(view.Kind)
	view.KindLower = strings.ToLower(view.Kind)
	view.Ticker = asset.Symbol
	view.Current = FormatUSD(price)

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, view); err != nil {
		return subject, subject
	}
	return subject, buf.String()
}

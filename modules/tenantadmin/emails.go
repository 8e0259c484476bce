package tenantadmin

import (
	"fmt"
	"html"

	"github.com/zenvoice/backoffice/pkg/tenant"
)

// welcomeEmail renders the provisioning notification carrying the
// setup link and one-time passkey. The tenant name is admin-supplied
// free text and must be escaped before it lands in HTML.
func welcomeEmail(t tenant.Tenant, appDomain, passkey string) (subject, htmlBody, text string) {
	setupURL := fmt.Sprintf("https://%s.%s/setup", t.Subdomain, appDomain)

	subject = fmt.Sprintf("Your %s workspace is ready", t.Name)

	htmlBody = fmt.Sprintf(`<p>Hi,</p>
<p>Your workspace <strong>%s</strong> has been created.</p>
<p>Finish setting it up at <a href="%s">%s</a> using this one-time passkey:</p>
<p><code>%s</code></p>
<p>The passkey stops working once setup is complete.</p>`,
		html.EscapeString(t.Name), setupURL, setupURL, passkey)

	text = fmt.Sprintf(`Hi,

Your workspace %q has been created.

Finish setting it up at %s using this one-time passkey:

    %s

The passkey stops working once setup is complete.
`, t.Name, setupURL, passkey)

	return subject, htmlBody, text
}

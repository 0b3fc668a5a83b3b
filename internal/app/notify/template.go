package notify

import "fmt"

// ExtensionEmailSubject is the subject line used for extension requests.
const ExtensionEmailSubject = "Program extension request"

// BuildExtensionEmail renders the HTML body asking a sponsor to approve or
// deny a program extension. The two links differ only in the action
// parameter; both carry the same token.
func BuildExtensionEmail(sponsorName, programName, baseURL, token string, daysRequested int) string {
	return fmt.Sprintf(`<html>
    <body style="font-family:Arial,sans-serif; line-height:1.6">
        <h2>Dear %s,</h2>
        <p>An extension of <strong>%d days</strong> has been requested for the program <strong>%s</strong>.</p>
        <p>Please respond by clicking one of the options below:</p>
        <a href="%s?action=accept&token=%s"
           style="padding:10px 15px; background-color:#28a745; color:white; text-decoration:none; border-radius:5px;">
           Approve
        </a>
        &nbsp;
        <a href="%s?action=deny&token=%s"
           style="padding:10px 15px; background-color:#dc3545; color:white; text-decoration:none; border-radius:5px;">
           Deny
        </a>
        <p>Thank you,<br>The sponsorships team</p>
    </body>
</html>
`, sponsorName, daysRequested, programName, baseURL, token, baseURL, token)
}

package mail

import (
	"fmt"
	"strings"
	"time"
)

// RemovalNotice carries everything needed to notify a student that a
// teacher removed them from a session.
type RemovalNotice struct {
	StudentEmail string
	StudentName  string
	SessionTitle string
	TeacherName  string
	Room         string
	FlexDate     time.Time
	Deadline     time.Time
	AppURL       string
}

// Subject returns the email subject line for the notice.
func (n RemovalNotice) Subject() string {
	return fmt.Sprintf("Flex Time Session Update - %s", n.FlexDate.Format("1/2/2006"))
}

// HTML renders the notice body.
func (n RemovalNotice) HTML() string {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">`)
	b.WriteString(`<div style="max-width: 600px; margin: 0 auto; padding: 20px;">`)
	b.WriteString(`<h1 style="background-color: #3B82F6; color: white; padding: 20px; border-radius: 8px;">Flex Time Session Update</h1>`)
	fmt.Fprintf(&b, `<p>Hi %s,</p>`, n.StudentName)
	b.WriteString(`<p>You have been <strong>removed</strong> from the following flex time session:</p>`)
	b.WriteString(`<div style="background-color: white; padding: 20px; border-left: 4px solid #EF4444;">`)
	fmt.Fprintf(&b, `<p><strong>Session:</strong> %s</p>`, n.SessionTitle)
	fmt.Fprintf(&b, `<p><strong>Teacher:</strong> %s</p>`, n.TeacherName)
	fmt.Fprintf(&b, `<p><strong>Room:</strong> %s</p>`, n.Room)
	fmt.Fprintf(&b, `<p><strong>Date:</strong> %s</p>`, n.FlexDate.Format("Monday, January 2, 2006"))
	b.WriteString(`</div>`)
	b.WriteString(`<p style="color: #D97706; font-weight: bold;">Please log into the Flex Time system and select a new session for this date as soon as possible.</p>`)
	fmt.Fprintf(&b, `<p><strong>Selection Deadline:</strong> %s</p>`, n.Deadline.Format("January 2, 3:04 PM"))
	b.WriteString(`<p>If you don't select a session by the deadline, you will be automatically assigned to your homeroom.</p>`)
	if n.AppURL != "" {
		fmt.Fprintf(&b, `<a href="%s" style="background-color: #3B82F6; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px;">Select New Session</a>`, n.AppURL)
	}
	fmt.Fprintf(&b, `<p style="font-size: 14px; color: #6B7280;">If you have questions about this change, please contact %s.</p>`, n.TeacherName)
	b.WriteString(`</div></body></html>`)
	return b.String()
}

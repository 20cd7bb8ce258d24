package render

import (
	"strings"
	"time"

	"github.com/ignite/cadence-mailer/internal/domain"
)

// Vars builds the Liquid context for one recipient of an occurrence.
// Precedence, lowest first: campaign personalization defaults, the
// recipient's custom fields, then the built-in names.
func Vars(c *domain.RecurringCampaign, o *domain.Occurrence, r domain.Recipient) map[string]interface{} {
	vars := make(map[string]interface{}, len(c.PersonalizationFields)+len(r.Fields)+10)
	for k, v := range c.PersonalizationFields {
		vars[k] = v
	}
	for k, v := range r.Fields {
		vars[k] = v
	}

	loc := c.Schedule.Location()
	at := o.ScheduledAt.In(loc)
	vars["email"] = r.Email
	vars["first_name"] = r.FirstName
	vars["last_name"] = r.LastName
	vars["full_name"] = strings.TrimSpace(r.FirstName + " " + r.LastName)
	vars["campaign_name"] = c.Name
	vars["subject"] = o.Subject
	vars["sequence_number"] = o.SequenceNumber
	vars["send_date"] = at.Format("2006-01-02")
	vars["send_time"] = at.Format(time.Kitchen)
	vars["year"] = at.Year()
	return vars
}

// SampleRecipient is used for template previews.
var SampleRecipient = domain.Recipient{
	ContactID: "preview",
	Email:     "jane.doe@example.com",
	FirstName: "Jane",
	LastName:  "Doe",
}

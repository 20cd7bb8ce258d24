package render

import (
	"testing"
	"time"

	"github.com/ignite/cadence-mailer/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_Render(t *testing.T) {
	e := NewEngine()

	tests := []struct {
		name string
		body string
		vars map[string]interface{}
		want string
	}{
		{"plain variable", "Hi {{ first_name }}", map[string]interface{}{"first_name": "Jane"}, "Hi Jane"},
		{"default filter", `Hi {{ first_name | default: "Friend" }}`, map[string]interface{}{"first_name": ""}, "Hi Friend"},
		{"titlecase", "{{ name | titlecase }}", map[string]interface{}{"name": "jANE doe"}, "Jane Doe"},
		{"truncate", "{{ bio | truncate: 8 }}", map[string]interface{}{"bio": "a very long bio"}, "a ver..."},
		{"email domain", "{{ email | email_domain }}", map[string]interface{}{"email": "jane@example.com"}, "example.com"},
		{"mask email", "{{ email | mask_email }}", map[string]interface{}{"email": "jane@example.com"}, "ja***@example.com"},
		{"conditional", "{% if vip %}VIP{% else %}Regular{% endif %}", map[string]interface{}{"vip": true}, "VIP"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Render("", tt.body, tt.vars)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEngine_RenderCachesByKey(t *testing.T) {
	e := NewEngine()
	vars := map[string]interface{}{"first_name": "Jane"}

	out, err := e.Render("c1:v1", "Hello {{ first_name }}", vars)
	require.NoError(t, err)
	assert.Equal(t, "Hello Jane", out)

	// Same key, different body: the cached template wins until forgotten.
	out, err = e.Render("c1:v1", "Bye {{ first_name }}", vars)
	require.NoError(t, err)
	assert.Equal(t, "Hello Jane", out)

	e.Forget("c1:v1")
	out, err = e.Render("c1:v1", "Bye {{ first_name }}", vars)
	require.NoError(t, err)
	assert.Equal(t, "Bye Jane", out)
}

func TestEngine_ParseError(t *testing.T) {
	e := NewEngine()
	assert.Error(t, e.Parse("{% if %}"))
	_, err := e.Render("", "{% for x in %}", nil)
	assert.Error(t, err)
}

func TestEngine_Missing(t *testing.T) {
	e := NewEngine()
	missing := e.Missing("{{ first_name }} {{ company.name }} {{ first_name }}", map[string]interface{}{
		"first_name": "Jane",
	})
	require.Len(t, missing, 1)
	assert.Equal(t, "company.name", missing[0].Variable)
}

func TestVars(t *testing.T) {
	c := &domain.RecurringCampaign{
		Name:                  "Digest",
		Schedule:              domain.ScheduleRule{Timezone: "UTC"},
		PersonalizationFields: map[string]string{"company": "Acme", "first_name": "ignored"},
	}
	o := &domain.Occurrence{SequenceNumber: 4, Subject: "Digest #4", ScheduledAt: time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)}
	r := domain.Recipient{Email: "jane@example.com", FirstName: "Jane", LastName: "Doe", Fields: map[string]string{"plan": "pro"}}

	vars := Vars(c, o, r)
	assert.Equal(t, "Acme", vars["company"])
	assert.Equal(t, "pro", vars["plan"])
	assert.Equal(t, "Jane", vars["first_name"])
	assert.Equal(t, "Jane Doe", vars["full_name"])
	assert.Equal(t, 4, vars["sequence_number"])
	assert.Equal(t, "2025-03-03", vars["send_date"])
}

func TestPlainText(t *testing.T) {
	body := `<html><head><style>p { color: red; }</style></head><body>
		<h1>Weekly   news</h1>
		<p>Hello <b>Jane</b>!</p>
		<p>Read <a href="https://example.com/post">more</a></p>
		<script>alert(1)</script>
	</body></html>`

	assert.Equal(t, "Weekly news\n\nHello Jane!\n\nRead more (https://example.com/post)", PlainText(body))
}

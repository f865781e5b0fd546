package notify

import (
	"bytes"
	"html/template"

	"findit/pkg/domain"
)

const (
	SubjectConcernUpdate = "Update on Your Concern"
	SubjectClaimUpdate   = "Update on Your Claim"
	SubjectHelperNotice  = "Item Claimed - Action Needed"
)

var concernUpdateTmpl = template.Must(template.New("concern").Parse(`<div style="font-family: Arial, sans-serif; border: 1px solid #ddd; padding: 16px;">
<h2 style="color: #333;">findIT Concern Update</h2>
<p>Your concern for <strong>{{.ItemName}}</strong> has been <strong style="color: {{.Color}};">{{.StatusText}}</strong>.</p>
<p>Check your dashboard for more information or updates.</p>
<hr>
<p style="font-size: 12px; color: #777;">This is an automated message from findIT.</p>
</div>`))

var claimUpdateTmpl = template.Must(template.New("claim").Parse(`<div style="font-family: Arial, sans-serif; border: 1px solid #ddd; padding: 16px;">
<h2 style="color: #333;">Claim Update from findIT</h2>
<p>Your claim for <strong>{{.ItemName}}</strong> has been <strong style="color: {{.Color}};">{{.StatusText}}</strong>.</p>
{{- if .Approved}}
<p>Please contact the helper to collect your item:</p>
<ul>
<li><strong>Name:</strong> {{.HelperName}}</li>
<li><strong>Email:</strong> {{.HelperEmail}}</li>
</ul>
{{- end}}
<hr>
<p style="font-size: 12px; color: #777;">This is an automated message. Please do not reply.</p>
</div>`))

var helperNoticeTmpl = template.Must(template.New("helper").Parse(`<div style="font-family: Arial, sans-serif; border: 1px solid #ddd; padding: 16px;">
<h2 style="color: #333;">Claim Approved</h2>
<p>The item <strong>{{.ItemName}}</strong> you reported has been claimed.</p>
<p>Please expect the following user to contact you:</p>
<ul>
<li><strong>Name:</strong> {{.ClaimerName}}</li>
<li><strong>Email:</strong> {{.ClaimerEmail}}</li>
</ul>
<p>Please verify the person before handing over the item.</p>
<hr>
<p style="font-size: 12px; color: #777;">This is an automated message. Please do not reply.</p>
</div>`))

type messageView struct {
	ItemName     string
	StatusText   string
	Color        template.CSS
	Approved     bool
	HelperName   string
	HelperEmail  string
	ClaimerName  string
	ClaimerEmail string
}

func newView(itemName string, status domain.Status) messageView {
	v := messageView{ItemName: itemName, StatusText: "Rejected", Color: "#dc3545"}
	if status == domain.StatusApproved {
		v.StatusText, v.Color, v.Approved = "Approved", "#28a745", true
	}
	return v
}

// ConcernUpdate renders the reporter's notice for a concern decision.
func ConcernUpdate(itemName string, status domain.Status) (string, error) {
	return render(concernUpdateTmpl, newView(itemName, status))
}

// ClaimUpdate renders the claimer's notice. Helper contact details are
// included only on approval.
func ClaimUpdate(p domain.ClaimParties, status domain.Status) (string, error) {
	v := newView(p.ItemName, status)
	v.HelperName, v.HelperEmail = p.HelperName, p.HelperEmail
	return render(claimUpdateTmpl, v)
}

// HelperNotice renders the helper's notice after a claim is approved.
func HelperNotice(p domain.ClaimParties) (string, error) {
	v := newView(p.ItemName, domain.StatusApproved)
	v.ClaimerName, v.ClaimerEmail = p.ClaimerName, p.ClaimerEmail
	return render(helperNoticeTmpl, v)
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

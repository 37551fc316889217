package export

import (
	"fmt"
	"strings"

	"github.com/sells-group/rfpdesk/internal/model"
)

const dateLayout = "January 2, 2006"

func companyName(c *model.CompanyInfo) string {
	if strings.TrimSpace(c.Name) != "" {
		return c.Name
	}
	return "Our Company"
}

func issuer(p *model.Project) string {
	if p.OrganizationName != "" {
		return p.OrganizationName
	}
	return p.Name
}

func coverPage(d *docx, title string, in Input) {
	d.Title(title)
	d.Subtitle(fmt.Sprintf("Prepared for %s by %s", issuer(in.Project), companyName(in.Company)))
	d.Text("Date: " + in.Generated.Format(dateLayout))
	if in.Project.DueDate != nil {
		d.Text("Response due: " + in.Project.DueDate.Format(dateLayout))
	}
}

func companySection(d *docx, heading string, c *model.CompanyInfo) {
	if c.Empty() && len(c.Capabilities) == 0 {
		return
	}
	d.Heading(1, heading)
	if c.Overview != "" {
		d.Text(c.Overview)
	}
	lists := []struct {
		label string
		items []string
	}{
		{"Capabilities", c.Capabilities},
		{"Differentiators", c.Differentiators},
		{"Certifications", c.Certifications},
	}
	for _, l := range lists {
		if len(l.items) == 0 {
			continue
		}
		d.Heading(2, l.label)
		for _, item := range l.items {
			d.Bullet(item)
		}
	}
}

func contactRows(c *model.CompanyInfo) [][]string {
	var rows [][]string
	add := func(label, v string) {
		if strings.TrimSpace(v) != "" {
			rows = append(rows, []string{label, v})
		}
	}
	add("Company", c.Name)
	add("Contact", c.ContactName)
	add("Email", c.ContactEmail)
	add("Phone", c.ContactPhone)
	add("Website", c.Website)
	return rows
}

func draftSections(d *docx, o *Outline, level int) {
	for _, s := range o.Sections {
		if s.Heading != "" {
			d.Heading(level, s.Heading)
		}
		d.Text(s.Body)
	}
}

func answerText(q model.Question) string {
	if strings.TrimSpace(q.Answer) == "" {
		return "Response pending."
	}
	return q.Answer
}

// renderRFP leads with the draft narrative, then the company profile and a
// question-by-question response.
func renderRFP(in Input) *docx {
	title := firstNonEmpty(in.Draft.Title, "Response to "+in.Project.Name)
	d := newDocx(title, companyName(in.Company))
	coverPage(d, title, in)
	if in.Project.Description != "" {
		d.Heading(1, "Project Understanding")
		d.Text(in.Project.Description)
	}
	d.PageBreak()

	draftSections(d, in.Draft, 1)
	companySection(d, "About "+companyName(in.Company), in.Company)

	if len(in.Questions) > 0 {
		d.Heading(1, "Responses to Requirements")
		for _, cat := range model.QuestionCategories {
			c := cat.(model.QuestionCategory)
			var group []model.Question
			for _, q := range in.Questions {
				if q.Category == c {
					group = append(group, q)
				}
			}
			if len(group) == 0 {
				continue
			}
			d.Heading(2, categoryTitle(c))
			for _, q := range group {
				d.Label(q.Text)
				d.Text(answerText(q))
			}
		}
	}

	if rows := contactRows(in.Company); len(rows) > 0 {
		d.Heading(1, "Contact")
		d.Table(rows, false)
	}
	return d
}

// renderRFI is question-led: numbered questions with answers come first,
// draft sections follow as supporting information.
func renderRFI(in Input) *docx {
	title := firstNonEmpty(in.Draft.Title, "RFI Response: "+in.Project.Name)
	d := newDocx(title, companyName(in.Company))
	coverPage(d, title, in)

	if rows := contactRows(in.Company); len(rows) > 0 {
		d.Heading(1, "Respondent Information")
		d.Table(rows, false)
	}
	if in.Company.Overview != "" {
		d.Heading(1, "Company Overview")
		d.Text(in.Company.Overview)
	}

	d.Heading(1, "Responses")
	if len(in.Questions) == 0 {
		d.Text("No questions have been recorded for this request.")
	}
	for i, q := range in.Questions {
		d.Heading(2, fmt.Sprintf("%d. %s", i+1, q.Text))
		d.Text(answerText(q))
	}

	if len(in.Draft.Sections) > 0 {
		d.Heading(1, "Additional Information")
		draftSections(d, in.Draft, 2)
	}
	return d
}

// renderForm470 lays out an E-Rate service request narrative: applicant
// summary table, requested services from the draft, and requirements from
// the question list.
func renderForm470(in Input) *docx {
	title := firstNonEmpty(in.Draft.Title, "FCC Form 470 Service Request: "+in.Project.Name)
	d := newDocx(title, issuer(in.Project))
	d.Title(title)
	d.Subtitle("Narrative description of services requested")

	due := "Not specified"
	if in.Project.DueDate != nil {
		due = in.Project.DueDate.Format(dateLayout)
	}
	d.Heading(1, "Applicant Summary")
	d.Table([][]string{
		{"Field", "Value"},
		{"Applicant", issuer(in.Project)},
		{"Project", in.Project.Name},
		{"Allowable contract date", due},
		{"Prepared", in.Generated.Format(dateLayout)},
		{"Prepared with", companyName(in.Company)},
	}, true)

	if in.Project.Description != "" {
		d.Heading(1, "Background")
		d.Text(in.Project.Description)
	}

	d.Heading(1, "Services Requested")
	if len(in.Draft.Sections) == 0 {
		d.Text("Service details have not been drafted yet.")
	}
	draftSections(d, in.Draft, 2)

	if len(in.Questions) > 0 {
		d.Heading(1, "Requirements and Clarifications")
		rows := [][]string{{"#", "Category", "Requirement", "Response"}}
		for i, q := range in.Questions {
			rows = append(rows, []string{fmt.Sprint(i + 1), categoryTitle(q.Category), q.Text, answerText(q)})
		}
		d.Table(rows, true)
	}

	d.Heading(1, "Certification")
	d.Text("The applicant certifies that services requested are eligible for E-Rate support and that the competitive bidding process will remain open for at least 28 days from posting.")
	return d
}

func categoryTitle(c model.QuestionCategory) string {
	if c == "" {
		return "General"
	}
	return humanize(string(c))
}


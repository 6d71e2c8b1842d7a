package gmail

import (
	gmail "google.golang.org/api/gmail/v1"
)

// Label types reported by Gmail.
const (
	LabelTypeSystem = "system"
	LabelTypeUser   = "user"
)

// LabelColor is the optional color of a user label.
type LabelColor struct {
	BackgroundColor string `json:"backgroundColor"`
	TextColor       string `json:"textColor"`
}

// Label is a Gmail label as exposed by mailbot.
type Label struct {
	ID                    string      `json:"id"`
	Name                  string      `json:"name"`
	Type                  string      `json:"type"`
	MessageListVisibility string      `json:"messageListVisibility,omitempty"`
	LabelListVisibility   string      `json:"labelListVisibility,omitempty"`
	Color                 *LabelColor `json:"color,omitempty"`
}

// IsSystem reports whether Gmail owns the label. System labels cannot be
// renamed or deleted.
func (l Label) IsSystem() bool {
	return l.Type == LabelTypeSystem
}

// Email is the read-only summary of a message.
type Email struct {
	ID       string   `json:"id"`
	Subject  string   `json:"subject"`
	From     string   `json:"from"`
	Date     string   `json:"date"`
	Body     string   `json:"body"`
	LabelIDs []string `json:"labelIds"`
}

// HasLabel reports whether the email carries labelID.
func (e Email) HasLabel(labelID string) bool {
	for _, id := range e.LabelIDs {
		if id == labelID {
			return true
		}
	}
	return false
}

// LabelFromAPI converts a Gmail API label.
func LabelFromAPI(l *gmail.Label) Label {
	if l == nil {
		return Label{}
	}
	label := Label{
		ID:                    l.Id,
		Name:                  l.Name,
		Type:                  l.Type,
		MessageListVisibility: l.MessageListVisibility,
		LabelListVisibility:   l.LabelListVisibility,
	}
	if label.Type == "" {
		label.Type = LabelTypeUser
	}
	if l.Color != nil && (l.Color.BackgroundColor != "" || l.Color.TextColor != "") {
		label.Color = &LabelColor{
			BackgroundColor: l.Color.BackgroundColor,
			TextColor:       l.Color.TextColor,
		}
	}
	return label
}

// LabelsFromAPI converts a list of Gmail API labels. The result is never nil.
func LabelsFromAPI(in []*gmail.Label) []Label {
	out := make([]Label, 0, len(in))
	for _, l := range in {
		if l == nil {
			continue
		}
		out = append(out, LabelFromAPI(l))
	}
	return out
}

// EmailFromMessage builds the summary of a full-format message.
func EmailFromMessage(m *gmail.Message) Email {
	if m == nil {
		return Email{LabelIDs: []string{}}
	}
	labelIDs := m.LabelIds
	if labelIDs == nil {
		labelIDs = []string{}
	}
	return Email{
		ID:       m.Id,
		Subject:  HeaderValue(m, "Subject"),
		From:     HeaderValue(m, "From"),
		Date:     HeaderValue(m, "Date"),
		Body:     ExtractBody(m.Payload),
		LabelIDs: labelIDs,
	}
}

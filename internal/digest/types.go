package digest

import (
	"github.com/teemow/mailbot/internal/gmail"
)

// EmailSummary is the backend's categorized summary of a batch of emails.
type EmailSummary struct {
	TotalEmails     int             `json:"total_emails"`
	Categories      EmailCategories `json:"categories"`
	ImportantEmails []gmail.Email   `json:"important_emails"`
	SummaryText     string          `json:"summary_text"`
	ProcessedAt     string          `json:"processed_at"`
}

// EmailCategories groups summarized emails.
type EmailCategories struct {
	Work        []gmail.Email `json:"work"`
	Personal    []gmail.Email `json:"personal"`
	Newsletters []gmail.Email `json:"newsletters"`
	Other       []gmail.Email `json:"other"`
	Important   []gmail.Email `json:"important"`
}

// DailyDigest is the structured daily digest.
type DailyDigest struct {
	Overview struct {
		Description          string   `json:"description"`
		TotalEmailsProcessed string   `json:"total_emails_processed"`
		MainTopics           []string `json:"main_topics"`
	} `json:"overview"`
	ImportantUpdates struct {
		Updates       []string `json:"updates"`
		Announcements []string `json:"announcements"`
		Notes         string   `json:"notes"`
	} `json:"important_updates_and_announcements"`
	ActionItems struct {
		KeyActionItems []string `json:"key_action_items"`
		FollowUps      []string `json:"follow_ups"`
		Deadlines      string   `json:"deadlines"`
	} `json:"action_items_and_follow_ups"`
	KeyDiscussions struct {
		Discussions []string `json:"discussions"`
		Decisions   []string `json:"decisions"`
		Notes       string   `json:"notes"`
	} `json:"key_discussions_and_decisions"`
	AdditionalNotes string `json:"additional_notes"`
}

// UserPreferences controls digest delivery.
type UserPreferences struct {
	Timezone      string `json:"timezone"`
	DigestTime    string `json:"digest_time"`
	DigestEnabled bool   `json:"digest_enabled"`
}

// NotificationRequest registers an address for digest notifications.
type NotificationRequest struct {
	Token        string    `json:"token"`
	EmailAddress string    `json:"email_address"`
	EmailData    EmailData `json:"email_data"`
}

// EmailData carries the emails included in a notification.
type EmailData struct {
	Emails []gmail.Email `json:"emails"`
}

// NotificationResponse is returned after a notification was sent.
type NotificationResponse struct {
	Message        string `json:"message"`
	ResendResponse struct {
		ID string `json:"id"`
	} `json:"resend_response"`
}

// PreferencesResponse is returned by the preferences endpoint.
type PreferencesResponse struct {
	Status      string          `json:"status"`
	Preferences UserPreferences `json:"preferences"`
}

type emailsResponse struct {
	Emails []gmail.Email `json:"emails"`
}

type digestResponse struct {
	DailyDigest DailyDigest `json:"daily_digest"`
}

type summarizeRequest struct {
	Emails []gmail.Email `json:"emails"`
}

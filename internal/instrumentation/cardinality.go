package instrumentation

// Upstream operation names. These are the only values recorded in the
// operation label, so the label set stays bounded.
const (
	OperationListLabels    = "labels.list"
	OperationCreateLabel   = "labels.create"
	OperationUpdateLabel   = "labels.patch"
	OperationDeleteLabel   = "labels.delete"
	OperationListMessages  = "messages.list"
	OperationGetMessage    = "messages.get"
	OperationModifyMessage = "messages.modify"

	OperationFetchEmails       = "emails.fetch"
	OperationSummarizeEmails   = "emails.summarize"
	OperationGetDigest         = "digest.get"
	OperationUpdatePreferences = "preferences.update"
	OperationSendNotification  = "notifications.send"

	OperationApplyLabels  = "emails.apply"
	OperationRemoveLabels = "emails.remove"
)

// unmatchedRoute is recorded for requests that did not match a route, so
// arbitrary request paths never become label values.
const unmatchedRoute = "unmatched"

// RouteLabel returns the value recorded in the path label for a request.
// Callers pass the router's pattern (e.g. "/api/labels/{id}"), never the raw URL.
func RouteLabel(pattern string) string {
	if pattern == "" {
		return unmatchedRoute
	}
	return pattern
}

// Package gmail wraps the Gmail REST API for mailbot.
//
// A Client is bound to a single caller's access token and exposes the small
// set of users.labels and users.messages calls the gateway needs. It also
// converts Gmail's library types into mailbot's JSON contract (Label, Email)
// so nothing above this package depends on google.golang.org/api shapes.
//
// Example usage:
//
//	client, err := gmail.NewClient(ctx, token)
//	if err != nil {
//	    return err
//	}
//	labels, err := client.ListLabels(ctx)
package gmail

// Package notify delivers the agent answer as a WhatsApp message through the
// Twilio REST API.
//
// Send never returns an error: the outcome, including a provider failure, is
// reported in Result so that both shells apply the same policy.
package notify

package calendar

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GoogleConfig holds the OAuth2 client and target calendar settings.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	CalendarID   string
}

// GoogleClient implements Client against the Google Calendar API using a
// long-lived refresh token.
type GoogleClient struct {
	svc        *gcal.Service
	calendarID string
}

// NewGoogleClient builds a calendar service from a refresh token.
func NewGoogleClient(ctx context.Context, cfg GoogleConfig) (*GoogleClient, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, fmt.Errorf("google calendar credentials are not configured")
	}
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       []string{gcal.CalendarEventsScope},
		Endpoint:     google.Endpoint,
	}
	source := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})

	svc, err := gcal.NewService(ctx, option.WithTokenSource(source))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	calendarID := cfg.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}
	return &GoogleClient{svc: svc, calendarID: calendarID}, nil
}

// CreateEvent inserts a meeting event with a Meet conference. The event id is
// derived from the idempotency key, so a retried create that raced a previous
// success resolves to the already-created event instead of a duplicate.
func (g *GoogleClient) CreateEvent(ctx context.Context, input CreateEventInput) (CreatedEvent, error) {
	eventID := deterministicEventID(input.IdempotencyKey)
	event := &gcal.Event{
		Id:          eventID,
		Summary:     input.Summary,
		Description: input.Description,
		Start:       &gcal.EventDateTime{DateTime: input.StartUTC.Format(time.RFC3339), TimeZone: "UTC"},
		End:         &gcal.EventDateTime{DateTime: input.EndUTC.Format(time.RFC3339), TimeZone: "UTC"},
		ConferenceData: &gcal.ConferenceData{
			CreateRequest: &gcal.CreateConferenceRequest{
				RequestId:             input.IdempotencyKey,
				ConferenceSolutionKey: &gcal.ConferenceSolutionKey{Type: "hangoutsMeet"},
			},
		},
	}

	created, err := g.svc.Events.Insert(g.calendarID, event).ConferenceDataVersion(1).Context(ctx).Do()
	if isStatus(err, http.StatusConflict) {
		existing, getErr := g.svc.Events.Get(g.calendarID, eventID).Context(ctx).Do()
		if getErr != nil {
			return CreatedEvent{}, fmt.Errorf("fetch existing event %s: %w", eventID, getErr)
		}
		return CreatedEvent{EventID: existing.Id, MeetingLink: meetingLink(existing)}, nil
	}
	if err != nil {
		return CreatedEvent{}, fmt.Errorf("insert event: %w", err)
	}
	return CreatedEvent{EventID: created.Id, MeetingLink: meetingLink(created)}, nil
}

// MarkCancelled deletes the event. An event that is already gone counts as
// cancelled.
func (g *GoogleClient) MarkCancelled(ctx context.Context, eventID string) error {
	err := g.svc.Events.Delete(g.calendarID, eventID).Context(ctx).Do()
	if err == nil || isStatus(err, http.StatusNotFound) || isStatus(err, http.StatusGone) {
		return nil
	}
	return fmt.Errorf("delete event %s: %w", eventID, err)
}

// GetEvent fetches the live status of an event.
func (g *GoogleClient) GetEvent(ctx context.Context, eventID string) (Event, error) {
	event, err := g.svc.Events.Get(g.calendarID, eventID).Context(ctx).Do()
	if isStatus(err, http.StatusNotFound) || isStatus(err, http.StatusGone) {
		return Event{}, ErrEventNotFound
	}
	if err != nil {
		return Event{}, fmt.Errorf("get event %s: %w", eventID, err)
	}
	return Event{Status: event.Status, MeetingLink: meetingLink(event)}, nil
}

// deterministicEventID turns an idempotency key (an attempt UUID) into a valid
// Google event id: lowercase base32hex characters, so stripping the hyphens
// from a UUID is enough.
func deterministicEventID(key string) string {
	return strings.ToLower(strings.ReplaceAll(key, "-", ""))
}

func meetingLink(event *gcal.Event) string {
	if event.HangoutLink != "" {
		return event.HangoutLink
	}
	if event.ConferenceData != nil {
		for _, ep := range event.ConferenceData.EntryPoints {
			if ep.EntryPointType == "video" {
				return ep.Uri
			}
		}
	}
	return event.HtmlLink
}

func isStatus(err error, status int) bool {
	if gErr, ok := err.(*googleapi.Error); ok {
		return gErr.Code == status
	}
	return false
}

var _ Client = (*GoogleClient)(nil)

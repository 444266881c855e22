package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

const (
	graphBaseURL = "https://graph.microsoft.com/v1.0"
	graphScope   = "https://graph.microsoft.com/.default"
)

type GraphConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	UserID       string
	TimeZone     string

	// BaseURL and TokenURL override the Microsoft endpoints.
	BaseURL  string
	TokenURL string
}

// GraphCalendar creates appointments in a Microsoft 365 calendar using the
// client credentials flow.
type GraphCalendar struct {
	client  *http.Client
	baseURL string
	userID  string
	tz      string
	loc     *time.Location
}

func NewGraphCalendar(ctx context.Context, cfg GraphConfig) (*GraphCalendar, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.UserID == "" {
		return nil, fmt.Errorf("graph calendar needs client id, secret and user id")
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		if cfg.TenantID == "" {
			return nil, fmt.Errorf("graph calendar needs a tenant id")
		}
		tokenURL = "https://login.microsoftonline.com/" + cfg.TenantID + "/oauth2/v2.0/token"
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = graphBaseURL
	}
	tz := cfg.TimeZone
	if tz == "" {
		tz = "Africa/Johannesburg"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("loading time zone %q: %w", tz, err)
	}

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{graphScope},
	}
	client := cc.Client(ctx)
	client.Timeout = 15 * time.Second

	return &GraphCalendar{client: client, baseURL: base, userID: cfg.UserID, tz: tz, loc: loc}, nil
}

type graphDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type graphEvent struct {
	Subject  string        `json:"subject"`
	Start    graphDateTime `json:"start"`
	End      graphDateTime `json:"end"`
	Location struct {
		DisplayName string `json:"displayName"`
	} `json:"location"`
	Body struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"body"`
	Categories []string `json:"categories"`
	Importance string   `json:"importance"`
}

func (g *GraphCalendar) Deliver(ctx context.Context, msg Message) (string, error) {
	event, err := g.buildEvent(msg)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(event)
	if err != nil {
		return "", err
	}

	url := g.baseURL + "/users/" + g.userID + "/events"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("creating calendar event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("graph returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decoding graph response: %w", err)
	}
	return created.ID, nil
}

func (g *GraphCalendar) buildEvent(msg Message) (graphEvent, error) {
	start, err := time.ParseInLocation("2006-01-02 15:04", msg.Date+" "+msg.Time, g.loc)
	if err != nil {
		return graphEvent{}, fmt.Errorf("appointment time %q %q: %w", msg.Date, msg.Time, err)
	}
	duration := time.Duration(msg.DurationMinutes) * time.Minute
	if duration <= 0 {
		duration = 30 * time.Minute
	}
	end := start.Add(duration)

	const layout = "2006-01-02T15:04:05"
	var ev graphEvent
	ev.Subject = msg.ServiceType + " - " + msg.PatientName()
	ev.Start = graphDateTime{DateTime: start.Format(layout), TimeZone: g.tz}
	ev.End = graphDateTime{DateTime: end.Format(layout), TimeZone: g.tz}
	ev.Location.DisplayName = msg.Town + " - Mobile Van"
	ev.Body.ContentType = "html"
	ev.Body.Content = eventBody(msg)
	ev.Categories = []string{"Medical Appointment", "Mobile Van"}
	ev.Importance = "high"
	return ev, nil
}

func eventBody(msg Message) string {
	e := html.EscapeString
	var b strings.Builder
	b.WriteString("<h3>Patient Details:</h3><ul>")
	fmt.Fprintf(&b, "<li><strong>Name:</strong> %s</li>", e(msg.PatientName()))
	fmt.Fprintf(&b, "<li><strong>ID Number:</strong> %s</li>", e(msg.IDNumber))
	fmt.Fprintf(&b, "<li><strong>Phone:</strong> %s</li>", e(msg.Phone))
	fmt.Fprintf(&b, "<li><strong>Email:</strong> %s</li>", e(msg.Email))
	b.WriteString("</ul><h3>Appointment Details:</h3><ul>")
	fmt.Fprintf(&b, "<li><strong>Reference:</strong> %s</li>", e(msg.Reference))
	fmt.Fprintf(&b, "<li><strong>Service:</strong> %s</li>", e(msg.ServiceType))
	fmt.Fprintf(&b, "<li><strong>Duration:</strong> %d minutes</li>", msg.DurationMinutes)
	fmt.Fprintf(&b, "<li><strong>Location:</strong> %s, %s</li>", e(msg.Town), e(msg.Province))
	fmt.Fprintf(&b, "<li><strong>Van:</strong> %s (%s)</li>", e(msg.VanName), e(msg.VanLocation))
	b.WriteString("</ul>")
	if msg.Notes != "" {
		fmt.Fprintf(&b, "<h3>Special Requirements:</h3><p>%s</p>", e(msg.Notes))
	}
	b.WriteString("<p><em>Booking created via Radhiant Mobile Health Van System</em></p>")
	return b.String()
}

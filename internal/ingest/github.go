package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/wrongjunior/eventfeed/internal/domain"
)

var (
	// ErrUnsupportedEvent is returned for GitHub events the feed does not show.
	ErrUnsupportedEvent = errors.New("event not supported")
	// ErrMalformedPayload is returned when a payload lacks the part its event needs.
	ErrMalformedPayload = errors.New("malformed payload")
)

// timeLayout matches the zone-less ISO timestamps the feed has always stored.
const timeLayout = "2006-01-02T15:04:05.000000"

var githubEvents = map[string]string{
	"gollum":         "github-wiki",
	"issues":         "github-issue",
	"issue_comment":  "github-issue-comment",
	"commit_comment": "github-commit-comment",
}

// ConvertEvent maps an X-GitHub-Event header value to the feed's event tag.
func ConvertEvent(githubEvent string) (string, bool) {
	tag, ok := githubEvents[githubEvent]
	return tag, ok
}

type user struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
}

type page struct {
	Action  string `json:"action"`
	Title   string `json:"title"`
	HTMLURL string `json:"html_url"`
}

type issue struct {
	Number  int            `json:"number"`
	Title   string         `json:"title"`
	Body    string         `json:"body"`
	HTMLURL string         `json:"html_url"`
	Labels  []domain.Label `json:"labels"`
}

type comment struct {
	Body     string `json:"body"`
	HTMLURL  string `json:"html_url"`
	IssueURL string `json:"issue_url"`
	CommitID string `json:"commit_id"`
}

type payload struct {
	Action     string `json:"action"`
	Sender     user   `json:"sender"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
	Pages   []page   `json:"pages"`
	Issue   *issue   `json:"issue"`
	Comment *comment `json:"comment"`
}

// Parse builds the feed record for a webhook body of the given feed event
// tag (see ConvertEvent). now stamps the record's time.
func Parse(body []byte, event string, now time.Time) (domain.RawEvent, error) {
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return domain.RawEvent{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	var (
		ev  domain.RawEvent
		err error
	)
	switch event {
	case "github-wiki":
		ev, err = githubWiki(p)
	case "github-issue":
		ev, err = githubIssue(p)
	case "github-issue-comment":
		ev, err = githubIssueComment(p)
	case "github-commit-comment":
		ev, err = githubCommitComment(p)
	default:
		return domain.RawEvent{}, fmt.Errorf("%w: %q", ErrUnsupportedEvent, event)
	}
	if err != nil {
		return domain.RawEvent{}, err
	}

	ev.Event = event
	ev.Author = p.Sender.Login
	ev.Avatar = p.Sender.AvatarURL
	ev.Time = now.UTC().Format(timeLayout)
	return ev, nil
}

// Only the first modified page of a wiki edit is shown.
func githubWiki(p payload) (domain.RawEvent, error) {
	if len(p.Pages) == 0 {
		return domain.RawEvent{}, fmt.Errorf("%w: no page in wiki edit", ErrMalformedPayload)
	}
	pg := p.Pages[0]
	return domain.RawEvent{
		Action:    "(compare)",
		ActionURL: pg.HTMLURL,
		Message:   fmt.Sprintf("%s %s on %s", capitalize(pg.Action), pg.Title, p.Repository.FullName),
		Target:    pg.HTMLURL,
	}, nil
}

func githubIssue(p payload) (domain.RawEvent, error) {
	if p.Issue == nil {
		return domain.RawEvent{}, fmt.Errorf("%w: no issue", ErrMalformedPayload)
	}
	body := p.Issue.Body
	return domain.RawEvent{
		Action:    "Go to issue",
		ActionURL: p.Issue.HTMLURL,
		Message:   fmt.Sprintf("%s issue #%d (%s)", p.Action, p.Issue.Number, p.Issue.Title),
		Body:      &body,
		Target:    p.Issue.HTMLURL,
		Labels:    p.Issue.Labels,
	}, nil
}

func githubIssueComment(p payload) (domain.RawEvent, error) {
	if p.Issue == nil || p.Comment == nil {
		return domain.RawEvent{}, fmt.Errorf("%w: no issue comment", ErrMalformedPayload)
	}
	body := p.Comment.Body
	return domain.RawEvent{
		Action:    "Go to comment",
		ActionURL: p.Comment.HTMLURL,
		Message:   fmt.Sprintf("commented on issue #%d", p.Issue.Number),
		Body:      &body,
		Target:    p.Comment.IssueURL,
		Labels:    p.Issue.Labels,
	}, nil
}

func githubCommitComment(p payload) (domain.RawEvent, error) {
	if p.Comment == nil {
		return domain.RawEvent{}, fmt.Errorf("%w: no commit comment", ErrMalformedPayload)
	}
	return domain.RawEvent{
		Action:    "(compare)",
		ActionURL: p.Comment.HTMLURL,
		Message:   fmt.Sprintf("commented on commit %s", p.Repository.FullName),
		Target:    p.Comment.HTMLURL,
	}, nil
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

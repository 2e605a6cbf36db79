package clients

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/maastricht-university/claimlens/identity"
)

// API talks to the people/video/proposition persistence service. It
// implements identity.Repository.
type API struct {
	h   *HTTP
	URL string
}

func NewAPI(h *HTTP, baseURL string) *API { return &API{h: h, URL: baseURL} }

func (a *API) Lookup(ctx context.Context, id string) (identity.Person, error) {
	var p identity.Person
	err := a.h.getJSON(ctx, "api", a.URL+"/people/"+url.PathEscape(id), &p)
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return identity.Person{}, identity.ErrNotFound
	}
	return p, err
}

func (a *API) Search(ctx context.Context, query string, limit int) ([]identity.Person, error) {
	q := url.Values{"q": {query}}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	var out []identity.Person
	if err := a.h.getJSON(ctx, "api", a.URL+"/people/search?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *API) Insert(ctx context.Context, p identity.Person) (identity.Person, error) {
	var out identity.Person
	if err := a.h.postJSON(ctx, "api", a.URL+"/people", p, &out); err != nil {
		return identity.Person{}, err
	}
	return out, nil
}

type Video struct {
	VideoID     string    `json:"video_id,omitempty"`
	VideoPath   string    `json:"video_path"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	VideoURL    string    `json:"video_url"`
	Time        time.Time `json:"time"`
}

type Proposition struct {
	ID        string    `json:"id,omitempty"`
	SpeakerID *string   `json:"speaker_id"`
	Statement string    `json:"statement"`
	VerifyAt  time.Time `json:"verify_at"`
	VideoID   string    `json:"video_id"`
}

func (a *API) CreateVideo(ctx context.Context, v Video) (Video, error) {
	var out Video
	if err := a.h.postJSON(ctx, "api", a.URL+"/videos", v, &out); err != nil {
		return Video{}, err
	}
	return out, nil
}

func (a *API) CreateProposition(ctx context.Context, p Proposition) (Proposition, error) {
	var out Proposition
	if err := a.h.postJSON(ctx, "api", a.URL+"/propositions", p, &out); err != nil {
		return Proposition{}, err
	}
	return out, nil
}

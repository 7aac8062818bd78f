package contentsvc

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/casbytes/lms-sub000/core"
)

var ErrContentNotFound = core.NewNotFoundError("lesson content")

// Client fetches lesson markdown from the content host.
type Client struct {
	http *resty.Client
}

func NewClient(conf *core.Config) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(conf.Content.BaseURL, "/")).
		SetTimeout(conf.Content.Timeout).
		SetRetryCount(2).
		SetHeader("Accept", "text/markdown, text/plain")
	if conf.Content.Token != "" {
		c.SetAuthToken(conf.Content.Token)
	}
	return &Client{http: c}
}

// Markdown returns the raw markdown stored at path.
func (c *Client) Markdown(ctx context.Context, path string) (string, error) {
	res, err := c.http.R().
		SetContext(ctx).
		Get("/" + strings.TrimLeft(path, "/"))
	if err != nil {
		return "", errors.Wrap(err, "fetching lesson content")
	}
	switch code := res.StatusCode(); {
	case code == http.StatusNotFound:
		return "", ErrContentNotFound
	case code >= http.StatusBadRequest:
		return "", errors.Errorf("fetching lesson content: status %d", code)
	}
	return res.String(), nil
}

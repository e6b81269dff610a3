package dataset

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/m-mizutani/goerr/v2"
	"github.com/sirupsen/logrus"
	"sr-dashboard-go/internal/logger"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

var newBackOff = func() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 45 * time.Second
	return bo
}

// Fetch downloads a remote dataset. Transport errors and 5xx responses are
// retried with exponential backoff; other non-2xx responses fail at once.
func Fetch(ctx context.Context, url string) ([]byte, error) {
	log := logger.New().Component("dataset.remote").WithField("url", url)

	var body []byte
	attempt := 0
	op := func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(goerr.Wrap(err, "build request"))
		}
		resp, err := httpClient.Do(req)
		if err != nil {
			log.WithFields(logrus.Fields{"attempt": attempt, "error": err.Error()}).Warn("download failed")
			return err
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return goerr.Wrap(err, "read body")
		}
		if resp.StatusCode >= 500 {
			log.WithFields(logrus.Fields{"attempt": attempt, "status": resp.StatusCode}).Warn("server error")
			return goerr.New("server error", goerr.V("status", resp.StatusCode))
		}
		if resp.StatusCode >= 300 {
			return backoff.Permanent(goerr.New("download failed",
				goerr.V("status", resp.StatusCode), goerr.V("body", string(b))))
		}
		body = b
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(newBackOff(), ctx)); err != nil {
		return nil, goerr.Wrap(err, "fetch dataset", goerr.V("url", url), goerr.V("attempts", attempt))
	}
	log.WithFields(logrus.Fields{"bytes": len(body), "attempts": attempt}).Info("dataset downloaded")
	return body, nil
}
